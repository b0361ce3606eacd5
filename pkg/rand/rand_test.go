package rand

import (
	"strings"
	"testing"
)

func TestAlphabets(t *testing.T) {
	tests := []struct {
		name     string
		gen      func(int) string
		alphabet string
	}{
		{"token", Token, tokenAlphabet},
		{"verification code", VerificationCode, codeAlphabet},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, n := range []int{0, 1, 32, 64} {
				s := tt.gen(n)
				if len(s) != n {
					t.Fatalf("len = %d, want %d", len(s), n)
				}
				for _, r := range s {
					if !strings.ContainsRune(tt.alphabet, r) {
						t.Fatalf("%q contains %q outside the alphabet", s, r)
					}
				}
			}
		})
	}
}

func TestTokensDiffer(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		tok := Token(32)
		if seen[tok] {
			t.Fatalf("duplicate token %s", tok)
		}
		seen[tok] = true
	}
}
