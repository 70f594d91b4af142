package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/PolarWolf314/kaitiaki/internal/api"
	kerrors "github.com/PolarWolf314/kaitiaki/internal/errors"
	"github.com/PolarWolf314/kaitiaki/internal/identity"
	logger "github.com/PolarWolf314/kaitiaki/internal/logging"
)

const (
	userIDKey       = "kaitiaki.user"
	requestIDHeader = "X-Request-ID"
)

// authenticate resolves the bearer token and stores the user ID on the context.
func authenticate(resolver Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := identity.BearerToken(c.GetHeader("Authorization"))
		if !ok || resolver == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, api.ErrorResponse{Success: false, Error: api.CodeUnauthorized})
			return
		}
		user, err := resolver.Resolve(token)
		if err != nil {
			_ = c.Error(kerrors.ErrUnauthorized)
			c.AbortWithStatusJSON(http.StatusUnauthorized, api.ErrorResponse{Success: false, Error: api.CodeUnauthorized})
			return
		}
		c.Set(userIDKey, user)
		c.Next()
	}
}

func userID(c *gin.Context) string {
	return c.GetString(userIDKey)
}

// requestID echoes the caller's request ID or assigns a new one.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.New().String()
		}
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func requestLogger(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		user := userID(c)
		if user == "" {
			user = "-"
		}
		log.Infof("%s %s %d %s user=%s id=%s",
			c.Request.Method, c.Request.URL.Path, c.Writer.Status(),
			time.Since(start).Round(time.Microsecond), user, c.Writer.Header().Get(requestIDHeader))
	}
}

func limitBody(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		}
		c.Next()
	}
}

func cors(origin string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, "+requestIDHeader)
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
