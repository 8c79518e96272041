package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"tasktracker/internal/api/response"
	"tasktracker/internal/model"
	"tasktracker/internal/pkg/apperr"
	"tasktracker/internal/pkg/metrics"
	"tasktracker/internal/pkg/token"

	"github.com/gin-gonic/gin"
)

// Context keys set by AuthMiddleware.
const (
	ContextUserID = "userID"
	ContextUser   = "user"
)

// TokenVerifier verifies bearer tokens.
type TokenVerifier interface {
	Verify(tokenStr string) (*token.Claims, error)
}

// UserFinder resolves the user embedded in a token.
type UserFinder interface {
	FindByID(ctx context.Context, id uint) (*model.User, error)
}

// AuthMiddleware 校验 JWT，确认用户仍然存在，并将 userID 与用户摘要写入上下文。
func AuthMiddleware(tokens TokenVerifier, users UserFinder, logger *slog.Logger) gin.HandlerFunc {
	reject := func(c *gin.Context, reason, message string) {
		metrics.AuthFailuresTotal.WithLabelValues(reason).Inc()
		response.AbortFail(c, http.StatusUnauthorized, message)
	}
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			reject(c, "missing", "Not authorized, no token")
			return
		}
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			reject(c, "malformed", "Not authorized, no token")
			return
		}

		claims, err := tokens.Verify(strings.TrimSpace(parts[1]))
		if err != nil {
			if logger != nil {
				logger.Debug("token rejected", slog.String("error", err.Error()))
			}
			reject(c, "invalid", "Not authorized, token failed")
			return
		}

		user, err := users.FindByID(c.Request.Context(), claims.UserID)
		if err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				reject(c, "user_not_found", "Not authorized, user not found")
				return
			}
			if logger != nil {
				logger.Error("resolve token user failed",
					slog.Uint64("user_id", uint64(claims.UserID)),
					slog.String("error", err.Error()),
				)
			}
			response.AbortFail(c, http.StatusInternalServerError, "Internal server error")
			return
		}

		c.Set(ContextUserID, user.ID)
		c.Set(ContextUser, user.Profile())
		c.Next()
	}
}

// CurrentUserID 返回网关写入的用户 ID，未认证时为 0。
func CurrentUserID(c *gin.Context) uint {
	v, ok := c.Get(ContextUserID)
	if !ok {
		return 0
	}
	id, _ := v.(uint)
	return id
}

// CurrentUser 返回网关写入的用户摘要。
func CurrentUser(c *gin.Context) (model.Profile, bool) {
	v, ok := c.Get(ContextUser)
	if !ok {
		return model.Profile{}, false
	}
	p, ok := v.(model.Profile)
	return p, ok
}
