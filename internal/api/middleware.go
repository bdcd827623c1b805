package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"recipebook/internal/user"
)

const userKey = "currentUser"

// RequestID attaches a request id to every request, reusing the
// client's X-Request-ID header when present.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		c.Set("requestID", id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

// RequestLogger logs one line per request with method, path, status and
// latency.
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("request",
			zap.String("request_id", c.GetString("requestID")),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

// RequireAuth resolves the bearer token to a user and rejects the
// request when the token is missing or unknown.
func (h *Handler) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		u := h.resolveUser(c)
		if u == nil {
			detail(c, http.StatusUnauthorized, "Not authenticated")
			return
		}
		c.Set(userKey, u)
		c.Next()
	}
}

// OptionalAuth resolves the bearer token when one is presented but lets
// anonymous requests through.
func (h *Handler) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if u := h.resolveUser(c); u != nil {
			c.Set(userKey, u)
		}
		c.Next()
	}
}

// resolveUser looks up the bearer token. Token use refreshes the
// token's last seen timestamp.
func (h *Handler) resolveUser(c *gin.Context) *user.User {
	token := bearerToken(c)
	if token == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
	defer cancel()

	u, err := h.Users.ByToken(ctx, token, true)
	if err != nil {
		h.Logger.Error("token lookup failed", zap.Error(err))
		return nil
	}
	return u
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(token)
}

func currentUser(c *gin.Context) *user.User {
	v, ok := c.Get(userKey)
	if !ok {
		return nil
	}
	u, _ := v.(*user.User)
	return u
}
