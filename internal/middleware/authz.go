package middleware

import (
	"net/http"
	"strings"

	"go-cms-app/internal/auth"
	"go-cms-app/internal/session"

	"github.com/casbin/casbin/v2"
)

// TokenParser verifies a bearer token and returns its user id.
type TokenParser interface {
	Parse(raw string) (int64, error)
}

// Authenticate puts the caller into the request context. A bearer token takes
// precedence over the session cookie; an invalid token is rejected outright.
func Authenticate(sm session.Manager, tokens TokenParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var userID int64
			if header := r.Header.Get("Authorization"); header != "" {
				raw, ok := strings.CutPrefix(header, "Bearer ")
				if !ok || tokens == nil {
					WriteError(w, http.StatusUnauthorized, "unsupported authorization header")
					return
				}
				id, err := tokens.Parse(raw)
				if err != nil {
					WriteError(w, http.StatusUnauthorized, "invalid bearer token")
					return
				}
				userID = id
			} else {
				userID = sm.GetInt64(r.Context(), session.UserIDKey)
			}

			userInfo := anonymous
			if userID != 0 {
				userInfo = &UserInfo{UserID: userID, Role: auth.RoleEditor}
			}
			next.ServeHTTP(w, r.WithContext(SetUserInfo(r.Context(), userInfo)))
		})
	}
}

// Authorizer checks the caller's role against the Casbin route policies.
// It must run after Authenticate.
func Authorizer(e casbin.IEnforcer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userInfo := GetUserInfo(r.Context())
			allowed, err := e.Enforce(userInfo.Role, r.URL.Path, r.Method)
			if err != nil {
				WriteError(w, http.StatusInternalServerError, "authorization error")
				return
			}
			if !allowed {
				if !userInfo.Authenticated() {
					WriteError(w, http.StatusUnauthorized, "authentication required")
					return
				}
				WriteError(w, http.StatusForbidden, "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
