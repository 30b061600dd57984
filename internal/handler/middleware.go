package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"agrimarket/internal/repository"
	"agrimarket/internal/service"
	"agrimarket/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// LoggerMiddleware 访问日志
func LoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		if query != "" {
			path = path + "?" + query
		}
		logger.Info("http",
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
		)
	}
}

// RecoveryMiddleware 恢复中间件，防止 panic 导致服务崩溃
func RecoveryMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error("panic", zap.Any("error", err), zap.String("path", c.Request.URL.Path), zap.Stack("stack"))
				response.ServerError(c)
			}
		}()
		c.Next()
	}
}

// CORSMiddleware 跨域中间件
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization, X-User-ID, Idempotency-Key")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

const (
	HeaderUserID         = "X-User-ID"
	HeaderIdempotencyKey = "Idempotency-Key"

	actorKey = "actor"
)

// ActorMiddleware 网关认证后通过 X-User-ID 传入用户 ID，这里解析成带角色的 Actor
func ActorMiddleware(users repository.UserStore, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(HeaderUserID)
		id, err := strconv.ParseInt(raw, 10, 64)
		if raw == "" || err != nil || id <= 0 {
			response.Error(c, http.StatusUnauthorized, "unauthorized", "missing or malformed "+HeaderUserID+" header")
			return
		}

		user, err := users.GetByID(c.Request.Context(), id)
		if err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				response.Error(c, http.StatusUnauthorized, "unauthorized", "unknown user")
				return
			}
			writeError(c, logger, err)
			return
		}

		c.Set(actorKey, service.Actor{ID: user.ID, Role: user.Role})
		c.Next()
	}
}

func actorFrom(c *gin.Context) service.Actor {
	actor, _ := c.Get(actorKey)
	a, _ := actor.(service.Actor)
	return a
}
