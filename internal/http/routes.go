package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/sujalbistaa/slidont/internal/ws"
)

// RouterOptions configures SetupRoutes.
type RouterOptions struct {
	CORSOrigin string
	Hub        *ws.Hub // nil disables /ws
	// SubmitLimit overrides the per-IP submission rate.
	SubmitLimit rate.Limit
	SubmitBurst int
}

// SetupRoutes configures all application routes and middleware. The rate
// limiter janitor runs until ctx is cancelled.
func SetupRoutes(ctx context.Context, router *gin.Engine, env *Env, opts RouterOptions) {
	router.Use(gin.Recovery())
	router.Use(RequestLoggerMiddleware())
	router.Use(SecurityHeadersMiddleware())

	origin := opts.CORSOrigin
	if origin == "" {
		origin = "*"
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{origin},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", presenterSecretHeader, requestIDHeader},
		ExposeHeaders:    []string{"Content-Length", requestIDHeader},
		AllowCredentials: origin != "*",
		MaxAge:           12 * time.Hour,
	}))

	limit, burst := opts.SubmitLimit, opts.SubmitBurst
	if limit == 0 {
		limit = rate.Limit(submitRPS)
	}
	if burst == 0 {
		burst = submitBurst
	}
	limiter := NewIPRateLimiter(limit, burst)
	go limiter.Janitor(ctx, limiterSweepInterval, limiterIdleTTL)

	router.GET("/health", env.Health)
	router.GET("/ready", env.Ready)

	questions := newItemHandlers(env, env.Svc.Questions)
	buzz := newItemHandlers(env, env.Svc.Buzz)

	api := router.Group("/api")
	{
		api.POST("/events/seed", env.SeedEvent)
		api.GET("/events/:slug", env.GetEvent)

		api.GET("/events/:slug/questions", questions.List)
		api.GET("/events/:slug/questions/all", questions.ListAll)
		api.POST("/events/:slug/questions", RateLimitMiddleware(limiter), questions.Create)
		api.POST("/events/:slug/questions/:id/done", questions.MarkDone)

		api.GET("/events/:slug/buzz", buzz.List)
		api.GET("/events/:slug/buzz/all", buzz.ListAll)
		api.POST("/events/:slug/buzz", RateLimitMiddleware(limiter), buzz.Create)

		api.POST("/questions/:id/vote", questions.ToggleVote)
		api.GET("/questions/:id/vote", questions.HasVoted)
		api.POST("/questions/:id/flag", questions.ToggleFlag)
		api.GET("/questions/:id/flag", questions.HasFlagged)

		api.POST("/buzz/:id/vote", buzz.ToggleVote)
		api.GET("/buzz/:id/vote", buzz.HasVoted)
		api.POST("/buzz/:id/flag", buzz.ToggleFlag)
		api.GET("/buzz/:id/flag", buzz.HasFlagged)
	}

	if opts.Hub != nil {
		router.GET("/ws", func(c *gin.Context) {
			ws.ServeWs(opts.Hub, c.Writer, c.Request)
		})
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{
			"code":    "NOT_FOUND",
			"message": "route not found: " + c.Request.URL.Path,
		}})
	})
}
