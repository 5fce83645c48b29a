package logger

import (
	"context"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type contextKey struct{}

var defaultLogger = logrus.New()
var defaultEntry = logrus.NewEntry(defaultLogger)

// Init 按配置设置日志级别与输出格式
func Init(level, format string) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	defaultLogger.SetLevel(lvl)
	defaultLogger.SetOutput(os.Stdout)
	if format == "json" {
		defaultLogger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		defaultLogger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}

func SetLoggerOptions(optionsFunc func(logger *logrus.Logger)) {
	optionsFunc(defaultLogger)
}

func NewContextWithFields(parent context.Context, fields logrus.Fields) context.Context {
	return context.WithValue(parent, contextKey{}, For(parent).WithFields(fields))
}

// For 返回 ctx 上携带的日志 entry，没有则返回默认 entry
func For(ctx context.Context) *logrus.Entry {
	if ctx == nil {
		return defaultEntry
	}

	if gc, ok := ctx.(*gin.Context); ok {
		if gc.Request == nil {
			return defaultEntry
		}
		ctx = gc.Request.Context()
	}

	if entry, ok := ctx.Value(contextKey{}).(*logrus.Entry); ok {
		return entry.WithContext(ctx)
	}
	return defaultEntry.WithContext(ctx)
}

// Middleware 给每个请求注入 request_id 字段
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		ctx := NewContextWithFields(c.Request.Context(), logrus.Fields{
			"request_id": reqID,
			"method":     c.Request.Method,
			"path":       c.FullPath(),
		})
		c.Request = c.Request.WithContext(ctx)
		c.Header("X-Request-ID", reqID)
		c.Next()

		if len(c.Errors) > 0 {
			For(c).WithField("status", c.Writer.Status()).Warn(c.Errors.String())
		}
	}
}
