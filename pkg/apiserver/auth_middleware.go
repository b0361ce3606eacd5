package apiserver

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/acorn-io/acorn-domains/pkg/backend"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

type ContextKey string

const DomainID ContextKey = "domainID"

var errForbidden = errors.New("forbidden to use")

// tokenAuthMiddleware requires the bearer token issued when the domain was created.
func tokenAuthMiddleware(b backend.Backend) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			domainID, ok := mux.Vars(r)["domain"]
			if !ok {
				writeError(w, http.StatusForbidden, errors.New("must specify domain"))
				return
			}

			token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if token == "" {
				writeError(w, http.StatusForbidden, errForbidden)
				return
			}

			hash, err := b.GetTokenHash(r.Context(), domainID)
			if err != nil {
				if !errors.Is(err, backend.ErrNotFound) {
					logrus.Errorf("failed to get token hash for %v, err: %v", domainID, err)
				}
				writeError(w, http.StatusForbidden, errForbidden)
				return
			}

			if hash == "" {
				writeError(w, http.StatusForbidden, errForbidden)
				return
			}

			if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(token)); err != nil {
				writeError(w, http.StatusForbidden, errForbidden)
				return
			}

			ctx := context.WithValue(r.Context(), DomainID, domainID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func domainIDFromContext(ctx context.Context) string {
	domainID, _ := ctx.Value(DomainID).(string)
	return domainID
}
