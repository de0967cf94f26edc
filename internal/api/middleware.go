package api

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const requestIDKey = "request_id"

// requestID берёт X-Request-ID клиента или выдаёт ULID.
func (s *Server) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader("X-Request-ID"))
		if id == "" || len(id) > 64 {
			id = s.newID()
		}
		c.Set(requestIDKey, id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("request_id", c.GetString(requestIDKey)),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			s.Log.Error("request", fields...)
		default:
			s.Log.Info("request", fields...)
		}
	}
}

// isAuthor — запрос несёт верный токен автора.
func (s *Server) isAuthor(c *gin.Context) bool {
	if s.Cfg.AuthorToken == "" {
		return false
	}
	token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(strings.TrimSpace(token)), []byte(s.Cfg.AuthorToken)) == 1
}

func (s *Server) authorOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.Cfg.AuthorToken == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Author access is not configured"})
			return
		}
		if !s.isAuthor(c) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Author token required"})
			return
		}
		c.Next()
	}
}

// recovery превращает панику в 500; подробности видит только автор.
func (s *Server) recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			stack := debug.Stack()
			s.Log.Error("panic",
				zap.Any("panic", rec),
				zap.String("path", c.Request.URL.Path),
				zap.String("request_id", c.GetString(requestIDKey)),
				zap.ByteString("stack", stack))

			body := gin.H{"error": "Internal error", "request_id": c.GetString(requestIDKey)}
			if s.isAuthor(c) {
				body["details"] = fmt.Sprint(rec)
				body["stack"] = string(stack)
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, body)
		}()
		c.Next()
	}
}
