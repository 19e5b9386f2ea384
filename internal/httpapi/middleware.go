package httpapi

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	headerAuthorization = "Authorization"
	headerCacheControl  = "Cache-Control"
	headerExpires       = "Expires"
	headerPragma        = "Pragma"
	bearerPrefix        = "Bearer "

	noCacheControlValue = "no-cache, must-revalidate, max-age=0, no-store, private"
	noCacheExpiresValue = "Wed, 11 Jan 1984 05:00:00 GMT"
	noCachePragmaValue  = "no-cache"

	errorValueAdminDisabled = "admin_disabled"
	errorValueMissingBearer = "missing_bearer"
	errorValueForbidden     = "forbidden"
)

func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(context *gin.Context) {
		start := time.Now()
		context.Next()
		logger.Info("http",
			zap.String("method", context.Request.Method),
			zap.String("path", context.Request.URL.Path),
			zap.Int("status", context.Writer.Status()),
			zap.Duration("dur", time.Since(start)),
			zap.String("ip", context.ClientIP()),
			zap.String("ua", context.Request.UserAgent()),
		)
	}
}

func AdminAuthMiddleware(adminBearerToken string) gin.HandlerFunc {
	expected := []byte(strings.TrimSpace(adminBearerToken))
	return func(context *gin.Context) {
		if len(expected) == 0 {
			context.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{jsonKeyError: errorValueAdminDisabled})
			return
		}
		authorizationHeader := strings.TrimSpace(context.GetHeader(headerAuthorization))
		if !strings.HasPrefix(authorizationHeader, bearerPrefix) {
			context.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{jsonKeyError: errorValueMissingBearer})
			return
		}
		provided := []byte(strings.TrimSpace(strings.TrimPrefix(authorizationHeader, bearerPrefix)))
		if subtle.ConstantTimeCompare(provided, expected) != 1 {
			context.AbortWithStatusJSON(http.StatusForbidden, gin.H{jsonKeyError: errorValueForbidden})
			return
		}
		context.Next()
	}
}

// NoCacheHeaders marks responses as uncacheable by browsers and intermediaries.
func NoCacheHeaders() gin.HandlerFunc {
	return func(context *gin.Context) {
		setNoCacheHeaders(context.Writer.Header())
		context.Next()
	}
}

func setNoCacheHeaders(header http.Header) {
	header.Set(headerCacheControl, noCacheControlValue)
	header.Set(headerExpires, noCacheExpiresValue)
	header.Set(headerPragma, noCachePragmaValue)
}
