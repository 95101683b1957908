package server

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	httpHandler "github.com/larry311012/ai-news-hub-sub002/interfaces/http"
	"github.com/larry311012/ai-news-hub-sub002/interfaces/middleware"
)

// Streamer serves the live publish event stream.
type Streamer interface {
	Serve(ctx *gin.Context)
}

type Handlers struct {
	Health      httpHandler.IHealthHandler
	OAuth       httpHandler.IOAuthHandler
	Connections httpHandler.IConnectionHandler
	Credentials httpHandler.ICredentialHandler
	Jobs        httpHandler.IJobHandler
	Publish     httpHandler.IPublishHandler
	Stream      Streamer
}

type Options struct {
	SecretKey    string
	LocalUserID  string
	AllowOrigins []string
}

func InitiateRouter(h Handlers, opts Options) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     opts.AllowOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/healthz", h.Health.Healthz)
	// Providers redirect the browser here; the transaction store identifies the user.
	router.GET("/callback/:platform", h.OAuth.Callback)

	api := router.Group("/")
	api.Use(middleware.Auth(opts.SecretKey, opts.LocalUserID))

	api.POST("/connect/:platform", h.OAuth.Connect)
	api.POST("/connect/:platform/abandon", h.OAuth.Abandon)

	api.GET("/connections", h.Connections.List)
	api.DELETE("/connections/:platform", h.Connections.Disconnect)

	api.GET("/credentials", h.Credentials.List)
	api.PUT("/credentials/:platform", h.Credentials.Save)
	api.DELETE("/credentials/:platform", h.Credentials.Delete)

	api.POST("/jobs", h.Jobs.Submit)
	api.GET("/jobs/:job_id", h.Jobs.Status)

	api.POST("/posts", h.Publish.CreatePost)
	api.GET("/posts/:post_id", h.Publish.GetPost)
	api.POST("/publish", h.Publish.Publish)
	api.GET("/publish/stream", h.Stream.Serve)
	api.GET("/publish/:post_id", h.Publish.Status)
	api.GET("/publish/:post_id/history", h.Publish.History)

	return router
}
