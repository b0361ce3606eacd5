package rand

import (
	"crypto/rand"
	"math/big"

	"github.com/sirupsen/logrus"
)

const (
	tokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	codeAlphabet  = "0123456789abcdefghijklmnopqrstuvwxyz"
)

// Token returns a random secret of n characters for use as a bearer token.
func Token(n int) string {
	return fromAlphabet(tokenAlphabet, n)
}

// VerificationCode returns n lowercase characters, usable inside a DNS label.
func VerificationCode(n int) string {
	return fromAlphabet(codeAlphabet, n)
}

func fromAlphabet(alphabet string, n int) string {
	max := big.NewInt(int64(len(alphabet)))
	out := make([]byte, n)
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			logrus.Fatalf("Unable to generate random bytes: %v", err)
		}
		out[i] = alphabet[idx.Int64()]
	}
	return string(out)
}
