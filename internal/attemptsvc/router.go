package attemptsvc

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/verte-zerg/tuiexam/internal/clock"
	"github.com/verte-zerg/tuiexam/internal/remote"
	"github.com/verte-zerg/tuiexam/internal/response"
	"github.com/verte-zerg/tuiexam/internal/validator"
)

// contextKeyOwner is the Gin context key for the caller identity.
const contextKeyOwner = "owner"

// AnonymousOwner owns attempts started without a bearer token.
const AnonymousOwner = "anonymous"

// RouterConfig configures NewRouter.
type RouterConfig struct {
	Mode           string
	AllowedOrigins []string
	Logger         zerolog.Logger
	Clock          clock.Clock
}

// NewRouter wires the attempt endpoints with CORS, request IDs and request
// logging.
func NewRouter(svc *Service, cfg RouterConfig) *gin.Engine {
	if cfg.Mode == "" {
		cfg.Mode = gin.ReleaseMode
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.System{}
	}
	gin.SetMode(cfg.Mode)
	validator.Setup()

	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PATCH", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", response.HeaderRequestID}
	corsConfig.ExposeHeaders = []string{response.HeaderRequestID}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	router.Use(response.RequestIDMiddleware())

	log := cfg.Logger.With().Str("component", "attemptsvc").Logger()
	router.Use(requestLogger(log))

	h := NewHandler(svc, log)
	router.GET("/health", h.Health)

	api := router.Group("/api/attempts")
	api.Use(identify(cfg.Clock))
	{
		api.POST("", h.StartAttempt)
		api.GET("/:id", h.GetAttempt)
		api.PATCH("/:id", h.CheckpointAttempt)
		api.POST("/:id/submit", h.SubmitAttempt)
	}

	router.NoRoute(func(c *gin.Context) {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	})
	return router
}

// identify resolves the caller from the bearer token. Tokens are not
// verified here; a JWT contributes its subject and is rejected once
// expired, an opaque token is its own identity.
func identify(clk clock.Clock) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.Set(contextKeyOwner, AnonymousOwner)
			c.Next()
			return
		}
		token, ok := strings.CutPrefix(header, "Bearer ")
		token = strings.TrimSpace(token)
		if !ok || token == "" {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenInvalid)
			return
		}
		creds := remote.Credentials{Token: token}
		if err := creds.Check(clk.Now()); err != nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenInvalid)
			return
		}
		owner := creds.Subject()
		if owner == "" {
			owner = token
		}
		c.Set(contextKeyOwner, owner)
		c.Next()
	}
}

func ownerOf(c *gin.Context) string {
	if v, ok := c.Get(contextKeyOwner); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return AnonymousOwner
}

func requestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()
		reqID, _ := c.Get(response.ContextKeyRequestID)
		ev := log.Debug()
		if c.Writer.Status() >= http.StatusInternalServerError {
			ev = log.Error()
		}
		ev.
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Interface("request_id", reqID).
			Dur("took", time.Since(started)).
			Msg("request")
	}
}
