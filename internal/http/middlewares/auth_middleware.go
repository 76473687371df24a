package middlewares

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/geocoder89/friendhub/internal/actorctx"
	"github.com/geocoder89/friendhub/internal/auth"
	"github.com/geocoder89/friendhub/internal/observability"
	"github.com/gin-gonic/gin"
)

// Keep this small interface so tests can fake it easily.
type TokenVerifier interface {
	VerifyAccessToken(token string) (*auth.Claims, error)
}

type AuthMiddleware struct {
	jwt  TokenVerifier
	prom *observability.Prom
	log  *slog.Logger
}

func NewAuthMiddleware(jwt TokenVerifier, prom *observability.Prom, log *slog.Logger) *AuthMiddleware {
	if log == nil {
		log = slog.Default()
	}
	return &AuthMiddleware{jwt: jwt, prom: prom, log: log}
}

const ctxUserIDKey = "auth.userID"

// RequireAuth rejects every token fault with the same 403 body. The precise
// reason only reaches logs and metrics.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
		if authHeader == "" {
			m.reject(c, auth.ErrMissingToken)
			return
		}

		// a bare token without the scheme is still accepted
		raw := authHeader
		if len(raw) >= 7 && strings.EqualFold(raw[:7], "Bearer ") {
			raw = strings.TrimSpace(raw[7:])
		}

		claims, err := m.jwt.VerifyAccessToken(raw)
		if err != nil {
			m.reject(c, err)
			return
		}

		c.Set(ctxUserIDKey, claims.UserID)
		c.Request = c.Request.WithContext(actorctx.WithUserID(c.Request.Context(), claims.UserID))

		c.Next()
	}
}

func (m *AuthMiddleware) reject(c *gin.Context, err error) {
	kind := auth.Kind(err)

	m.prom.IncAuthFailure(kind)
	m.log.WarnContext(c.Request.Context(), "auth_rejected",
		"reason", kind,
		"route", c.FullPath(),
		"request_id", c.GetString(CtxRequestID),
	)

	c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
		"error": gin.H{
			"code":      "forbidden",
			"message":   "Forbidden",
			"requestId": c.GetString(CtxRequestID),
		},
	})
}

// UserIDFromContext spares handlers from knowing the context key.
func UserIDFromContext(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxUserIDKey)
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}
