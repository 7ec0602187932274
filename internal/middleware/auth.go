package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"strings"

	"resto-ops-services/internal/auth"
	"resto-ops-services/internal/lifecycle"
)

type contextKey string

const authContextKey contextKey = "authContext"

type AuthContext struct {
	StaffID     string
	Role        auth.StaffRole
	Name        string
	Permissions []string
}

// Actor is the engine's view of the authenticated staff member.
func (a *AuthContext) Actor() lifecycle.Actor {
	if a == nil {
		return lifecycle.Actor{}
	}
	return lifecycle.Actor{ID: a.StaffID, Role: string(a.Role)}
}

func WithAuthContext(ctx context.Context, authCtx *AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey, authCtx)
}

func GetAuthContext(ctx context.Context) (*AuthContext, bool) {
	value := ctx.Value(authContextKey)
	if value == nil {
		return nil, false
	}
	ac, ok := value.(*AuthContext)
	return ac, ok
}

func writeAuthError(w http.ResponseWriter, status int, code string, message string, debug string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	payload := map[string]any{
		"success": false,
		"error":   code,
		"message": message,
	}
	if os.Getenv("APP_ENV") == "development" && strings.TrimSpace(debug) != "" {
		payload["debug"] = debug
	}
	_ = json.NewEncoder(w).Encode(payload)
}

// StaffAuth verifies the bearer token and enforces the route permission map.
// Routes absent from the map only require a valid token.
func StaffAuth(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := auth.ParseBearerToken(r.Header.Get("Authorization"))
			claims, err := auth.VerifyAccessToken(token, jwtSecret)
			if err != nil {
				writeAuthError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authorization token required", err.Error())
				return
			}

			if perm := auth.GetPermissionForAPI(r.URL.Path, r.Method); perm != nil {
				if !auth.RoleHasPermission(claims.Role, *perm) {
					writeAuthError(w, http.StatusForbidden, "FORBIDDEN", "You do not have permission to access this resource", string(*perm))
					return
				}
			}

			authCtx := &AuthContext{
				StaffID:     claims.StaffID,
				Role:        claims.Role,
				Permissions: auth.PermissionsForRole(claims.Role),
			}
			if claims.Name != nil {
				authCtx.Name = *claims.Name
			}

			next.ServeHTTP(w, r.WithContext(WithAuthContext(r.Context(), authCtx)))
		})
	}
}
