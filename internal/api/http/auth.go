package httpapi

import (
	"context"
	"net/http"
	"strings"

	"forum-invitations/internal/config"
	"forum-invitations/internal/logger"
	"forum-invitations/internal/security"

	"github.com/gorilla/mux"
)

type claimsKey struct{}

// ClaimsFromContext returns the authenticated caller, if any
func ClaimsFromContext(ctx context.Context) (*security.UserClaims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(*security.UserClaims)
	return claims, ok
}

// AuthMiddleware authenticates bearer tokens and enforces the security level
// configured for the matched route
type AuthMiddleware struct {
	tokenManager security.TokenManager
	responder    *responder
}

func newAuthMiddleware(tm security.TokenManager, r *responder) *AuthMiddleware {
	return &AuthMiddleware{tokenManager: tm, responder: r}
}

func (m *AuthMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		level := config.SecurityAdmin
		if route := mux.CurrentRoute(r); route != nil {
			if tpl, err := route.GetPathTemplate(); err == nil {
				level = config.GetSecurityLevel(r.Method, tpl)
			}
		}

		// Public endpoint - skip auth
		if level == config.SecurityPublic {
			next.ServeHTTP(w, r)
			return
		}

		token := extractToken(r)
		if token == "" {
			m.responder.writeKey(w, r, http.StatusUnauthorized, keyNotLoggedIn)
			return
		}

		claims, err := m.tokenManager.ValidateToken(token)
		if err != nil {
			logger.Debug("Rejected API token", "path", r.URL.Path, "error", err)
			m.responder.writeKey(w, r, http.StatusUnauthorized, keyNotLoggedIn)
			return
		}

		if !allowed(level, claims) {
			m.responder.writeKey(w, r, http.StatusForbidden, keyNoPrivileges)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey{}, claims)))
	})
}

func allowed(level config.SecurityLevel, claims *security.UserClaims) bool {
	isUser := claims.Type == security.TokenTypeAccess && claims.UserID > 0
	switch level {
	case config.SecurityMember:
		return isUser
	case config.SecurityService:
		return claims.Type == security.TokenTypeService || (isUser && claims.HasRole(security.RoleAdmin))
	case config.SecurityAdmin:
		return isUser && claims.HasRole(security.RoleAdmin)
	}
	return false
}

func extractToken(r *http.Request) string {
	token := r.Header.Get("Authorization")
	// Remove Bearer prefix if present
	if len(token) > 7 && strings.ToUpper(token[0:7]) == "BEARER " {
		token = token[7:]
	}
	return strings.TrimSpace(token)
}
