package identity

import (
	"net/http"
	"strings"
)

// Middleware attaches the claims of a bearer token to the request context.
// Requests without a token pass through anonymously; a token that does not
// verify is rejected.
func Middleware(a *AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := r.Header.Get("Authorization")
			if h == "" {
				next.ServeHTTP(w, r)
				return
			}
			if !strings.HasPrefix(h, "Bearer ") {
				http.Error(w, "bad authorization header", http.StatusUnauthorized)
				return
			}
			c, err := a.Parse(strings.TrimPrefix(h, "Bearer "))
			if err != nil {
				http.Error(w, "bad token", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), c)))
		})
	}
}
