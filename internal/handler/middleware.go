package handler

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/BnaryBlade/loyalty-hive-core/internal/domain"
	"github.com/BnaryBlade/loyalty-hive-core/internal/service"
)

type contextKey string

const (
	subjectIDKey contextKey = "subjectID"
	roleKey      contextKey = "role"
	adminKey     contextKey = "admin"
)

// JWTAuthMiddleware validates Bearer tokens and injects the subject id and
// role into the request context.
func JWTAuthMiddleware(authSvc *service.AuthService, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.Warn("auth: missing token",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				writeError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				logger.Warn("auth: invalid token format",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				writeError(w, http.StatusUnauthorized, "invalid authorization header")
				return
			}

			claims, err := authSvc.ValidateAccessToken(parts[1])
			if err != nil {
				logger.Warn("auth: invalid or expired token",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
					zap.Error(err),
				)
				writeError(w, http.StatusUnauthorized, err.Error())
				return
			}

			ctx := context.WithValue(r.Context(), subjectIDKey, claims.Sub)
			ctx = context.WithValue(ctx, roleKey, claims.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole rejects tokens issued for a different kind of subject.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if RoleFromContext(r.Context()) != role {
				writeError(w, http.StatusForbidden, "forbidden: "+role+" token required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequirePermission loads the authenticated admin and checks it holds perm.
// Must run after JWTAuthMiddleware and RequireRole(domain.SubjectAdmin).
func RequirePermission(authSvc *service.AuthService, perm domain.Permission, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			admin, err := authSvc.GetAdmin(r.Context(), SubjectIDFromContext(r.Context()))
			if err != nil {
				// the token outlived the admin record
				handleServiceError(w, &domain.ErrUnauthorized{Message: "admin no longer exists"}, logger)
				return
			}
			if !admin.Can(perm) {
				logger.Warn("admin lacks permission",
					zap.String("admin_id", admin.ID),
					zap.String("permission", string(perm)),
				)
				writeError(w, http.StatusForbidden, "forbidden: missing permission "+string(perm))
				return
			}
			ctx := context.WithValue(r.Context(), adminKey, admin)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SubjectIDFromContext extracts the authenticated customer or admin ID.
func SubjectIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(subjectIDKey).(string)
	return v
}

// RoleFromContext extracts the token role (customer or admin).
func RoleFromContext(ctx context.Context) string {
	v, _ := ctx.Value(roleKey).(string)
	return v
}

// AdminFromContext returns the admin loaded by RequirePermission.
func AdminFromContext(ctx context.Context) *domain.AdminUser {
	v, _ := ctx.Value(adminKey).(*domain.AdminUser)
	return v
}
