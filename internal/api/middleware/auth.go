package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/hugh/go-crm/internal/api/dto"
	"github.com/hugh/go-crm/internal/auth"
	"github.com/hugh/go-crm/internal/database/models"
)

// TokenCookie is set on login and cleared on logout.
const TokenCookie = "token"

type contextKey string

const sessionKey contextKey = "session"

// Auth validates the bearer token (or session cookie) and stores the caller's
// Session in the request context. It is the single guard for /api routes.
func Auth(jwtService *auth.JWTService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var token string

			authHeader := r.Header.Get("Authorization")
			if strings.HasPrefix(authHeader, "Bearer ") {
				token = strings.TrimPrefix(authHeader, "Bearer ")
			}
			if token == "" {
				if cookie, err := r.Cookie(TokenCookie); err == nil && cookie.Value != "" {
					token = cookie.Value
				}
			}

			if token == "" {
				writeError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			claims, err := jwtService.ValidateToken(token)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			ctx := WithSession(r.Context(), claims.Session())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func WithSession(ctx context.Context, s auth.Session) context.Context {
	if slot, ok := ctx.Value(logUserKey).(*uuid.UUID); ok {
		*slot = s.UserID
	}
	return context.WithValue(ctx, sessionKey, s)
}

// SessionFrom returns the caller's session; ok is false on unauthenticated routes.
func SessionFrom(ctx context.Context) (auth.Session, bool) {
	s, ok := ctx.Value(sessionKey).(auth.Session)
	return s, ok
}

func GetUserID(ctx context.Context) uuid.UUID {
	s, _ := SessionFrom(ctx)
	return s.UserID
}

func GetOrganizationID(ctx context.Context) uuid.UUID {
	s, _ := SessionFrom(ctx)
	return s.OrganizationID
}

func GetUserRole(ctx context.Context) string {
	s, _ := SessionFrom(ctx)
	return s.Role
}

// RequireRole middleware ensures user has specific role
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userRole := GetUserRole(r.Context())

			for _, role := range roles {
				if userRole == role {
					next.ServeHTTP(w, r)
					return
				}
			}

			writeError(w, http.StatusForbidden, "Forbidden")
		})
	}
}

// ReadOnlyViewers rejects writes from users with the viewer role.
func ReadOnlyViewers(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
		default:
			if GetUserRole(r.Context()) == models.RoleViewer {
				writeError(w, http.StatusForbidden, "Viewers have read-only access")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(dto.ErrorResponse{Error: message})
}
