package middleware

import (
	"net/http"
	"strings"

	"astro-events/internal/data/entity"
	"astro-events/internal/data/repository"
	"astro-events/pkg/utils"

	"go.uber.org/zap"
)

// AuthSession validates the bearer session token and puts the member
// identity on the request context.
func AuthSession(sessionRepo repository.SessionRepository, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				utils.ResponseUnauthorized(w, "Missing authorization token")
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				utils.ResponseUnauthorized(w, "Invalid token format. Use: Bearer <token>")
				return
			}

			token := parts[1]

			session, err := sessionRepo.FindValidSession(r.Context(), token)
			if err != nil {
				logger.Error("Failed to validate session", zap.Error(err))
				utils.ResponseInternalError(w, "Internal server error")
				return
			}

			if session == nil {
				logger.Warn("Invalid or expired session")
				utils.ResponseUnauthorized(w, "Invalid or expired session")
				return
			}

			ctx := utils.SetMemberContext(r.Context(), session.MemberID, string(entity.RoleMember))
			ctx = utils.SetTokenContext(ctx, token)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Admin requires an authenticated member with the admin role. Must run
// after AuthSession.
func Admin(memberRepo repository.MemberRepository, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			memberID, ok := utils.GetMemberIDFromContext(r.Context())
			if !ok {
				utils.ResponseUnauthorized(w, "Authentication required")
				return
			}

			member, err := memberRepo.FindByID(r.Context(), memberID)
			if err != nil {
				logger.Error("Admin check: failed to get member",
					zap.Error(err), zap.String("member_id", memberID.String()))
				utils.ResponseInternalError(w, "Internal server error")
				return
			}

			if member == nil || member.Role != entity.RoleAdmin {
				logger.Warn("Admin check: non-admin access attempt",
					zap.String("member_id", memberID.String()),
					zap.String("path", r.URL.Path))
				utils.ResponseForbidden(w, "Admin access required")
				return
			}

			ctx := utils.SetMemberContext(r.Context(), memberID, string(entity.RoleAdmin))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
