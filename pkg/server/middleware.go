package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	RequestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
)

// RequestID tags every request with an id, reusing one sent by the caller.
func RequestID(ctx *gin.Context) {
	id := ctx.GetHeader(RequestIDHeader)
	if id == "" {
		id = uuid.New().String()
	}
	ctx.Set(requestIDKey, id)
	ctx.Header(RequestIDHeader, id)
	ctx.Next()
}

// Logger writes one line per request. Request bodies are not logged.
func Logger(ctx *gin.Context) {
	start := time.Now()
	path := ctx.Request.URL.Path

	ctx.Next()

	latency := time.Since(start)
	debugLog.Infof("[%s] %s %s| %d| %s| %s",
		ctx.GetString(requestIDKey), ctx.Request.Method, path,
		ctx.Writer.Status(), latency, ctx.ClientIP())
	for _, err := range ctx.Errors {
		debugLog.Errorf("[%s] %v", ctx.GetString(requestIDKey), err.Err)
	}
}

// CORS allows any origin.
func CORS(ctx *gin.Context) {
	h := ctx.Writer.Header()
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "GET,HEAD,PUT,PATCH,POST,DELETE")
	h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+RequestIDHeader)
	h.Set("Access-Control-Expose-Headers", RequestIDHeader)

	if ctx.Request.Method == http.MethodOptions {
		ctx.AbortWithStatus(http.StatusNoContent)
		return
	}
	ctx.Next()
}
