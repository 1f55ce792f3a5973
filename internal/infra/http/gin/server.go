package ginserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	gin "github.com/gin-gonic/gin"

	"dmchat/internal/infra/config"
	"dmchat/internal/infra/obs"
)

type Handlers struct {
	Chat           ChatHTTP
	Users          UserHTTP
	Socket         http.Handler
	AuthMiddleware gin.HandlerFunc
}

func NewServer(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *http.Server {
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           NewRouter(cfg.Env, obsMW, health, h),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// NewRouter builds the gin engine with every route mounted under /api.
func NewRouter(env string, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *gin.Engine {
	mode := configureGinMode(env)
	if obsMW.Logger != nil {
		obsMW.Logger.Info("gin initialized", "mode", mode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(obsMW.RequestID())
	router.Use(obsMW.LoggerMiddleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{
			"Content-Length",
			"Content-Type",
			obs.HeaderRequestID,
		},
		MaxAge: 12 * time.Hour,
	}))

	router.GET("/livez", health.Livez)
	router.GET("/readyz", health.Readyz)
	if h.Socket != nil {
		router.GET("/ws", gin.WrapH(h.Socket))
	}

	requireAuth := h.AuthMiddleware
	if requireAuth == nil {
		requireAuth = func(c *gin.Context) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"msg": msgProvideToken})
		}
	}

	api := router.Group("/api")
	if h.Users != nil {
		usersGroup := api.Group("/users")
		usersGroup.POST("/register", h.Users.Register)
		usersGroup.POST("/login", h.Users.Login)
		usersGroup.GET("", h.Users.List)
		usersGroup.GET("/:userId", h.Users.Profile)
		usersGroup.PUT("/:userId", requireAuth, h.Users.UpdateProfile)
		usersGroup.PUT("/change-password/:userId", requireAuth, h.Users.ChangePassword)
		usersGroup.DELETE("", requireAuth, h.Users.Delete)
	}
	if h.Chat != nil {
		api.GET("/conversations", requireAuth, h.Chat.ListConversations)
		api.GET("/conversations/:id", requireAuth, h.Chat.Thread)

		messages := api.Group("/messages", requireAuth)
		messages.POST("", h.Chat.SendMessage)
		messages.PUT("", h.Chat.EditMessage)
		messages.PUT("/mark-read/:conversationId/:senderId", h.Chat.MarkRead)
		messages.DELETE("/:conversationId/:messageId", h.Chat.DeleteMessage)
	}
	return router
}

func configureGinMode(env string) string {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "debug":
		gin.SetMode(gin.DebugMode)
		return gin.DebugMode
	case "test", "testing":
		gin.SetMode(gin.TestMode)
		return gin.TestMode
	default:
		gin.SetMode(gin.ReleaseMode)
		return gin.ReleaseMode
	}
}
