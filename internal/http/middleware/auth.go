// Package middleware holds the HTTP cross-cutting layers: authentication,
// CORS, rate limiting and request logging.
package middleware

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/careflow/clinic-scheduling/internal/identity"
)

// authClaims carries the caller's role alongside the registered claims.
type authClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Authenticate resolves the caller's identity from an HMAC-signed bearer
// token and stores it in the request context. Requests without a token pass
// through as anonymous patients; invalid tokens are rejected.
func Authenticate(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if auth == "" {
				next.ServeHTTP(w, r)
				return
			}
			if !strings.HasPrefix(auth, "Bearer ") || secret == "" {
				http.Error(w, "invalid authorization header", http.StatusUnauthorized)
				return
			}

			claims := authClaims{}
			token, err := jwt.ParseWithClaims(strings.TrimPrefix(auth, "Bearer "), &claims, func(token *jwt.Token) (any, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid || claims.Subject == "" {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}

			role := identity.RolePatient
			if claims.Role == string(identity.RoleStaff) {
				role = identity.RoleStaff
			}
			ident := identity.Identity{SubjectID: claims.Subject, Role: role}
			next.ServeHTTP(w, r.WithContext(identity.WithContext(r.Context(), ident)))
		})
	}
}

// RequireStaff rejects callers that are not staff. Mount inside an
// Authenticate group.
func RequireStaff(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !identity.FromContext(r.Context()).IsStaff() {
			http.Error(w, "staff access required", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
