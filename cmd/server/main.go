package main

import (
	"os"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"whatsapp-broadcast/internal/api"
	"whatsapp-broadcast/internal/config"
	"whatsapp-broadcast/internal/database"
	"whatsapp-broadcast/internal/gateway"
	"whatsapp-broadcast/internal/media"
	"whatsapp-broadcast/internal/metrics"
	"whatsapp-broadcast/internal/ws"
)

func main() {
	cfg := config.LoadConfig()

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()
	log.Logger = logger

	database.InitGorm(cfg)

	r := gin.Default()

	// CORS Middleware
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	gatewayClient := gateway.NewClient(cfg.GatewayBaseURL, logger)
	resolver := media.NewResolver(gatewayClient, logger)

	hub := ws.NewHub()
	go hub.Run()

	templateHandler := api.NewTemplateHandler(gatewayClient, cfg)
	mediaHandler := api.NewMediaHandler(resolver, gatewayClient, cfg)
	broadcastHandler := api.NewBroadcastHandler(gatewayClient, cfg, hub, logger)

	r.GET("/ws", func(c *gin.Context) {
		hub.ServeWs(c.Writer, c.Request)
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/templates", templateHandler.GetTemplates)
		apiGroup.POST("/templates/sync", templateHandler.SyncTemplates)
		apiGroup.GET("/templates/:id", templateHandler.GetTemplate)

		apiGroup.POST("/templates/:id/preview", broadcastHandler.Preview)
		apiGroup.POST("/templates/:id/send", broadcastHandler.Send)
		apiGroup.POST("/templates/:id/send-bulk", broadcastHandler.SendBulk)

		apiGroup.POST("/broadcasts/:session/retry", broadcastHandler.Retry)
		apiGroup.GET("/broadcasts/:session/results", broadcastHandler.Results)

		apiGroup.POST("/media", mediaHandler.Upload)
		apiGroup.GET("/media", mediaHandler.List)
	}

	logger.Info().Str("port", cfg.Port).Msg("server starting")
	if err := r.Run(":" + cfg.Port); err != nil {
		logger.Fatal().Err(err).Msg("failed to run server")
	}
}
