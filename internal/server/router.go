package server

import (
	"time"

	"github.com/gin-gonic/gin"

	"fieldreport/internal/auth"
	"fieldreport/internal/capture"
	"fieldreport/internal/export"
	"fieldreport/internal/handler"
	"fieldreport/internal/hub"
	"fieldreport/internal/identity"
	"fieldreport/internal/middleware"
	"fieldreport/internal/model"
	"fieldreport/internal/session"
	"fieldreport/internal/view"
)

type Deps struct {
	Identity    *identity.Store
	Sessions    *session.Manager
	Pipeline    *capture.Pipeline
	Exporter    *export.Exporter
	Locations   *view.Feed[model.LocationRecord]
	Pictures    *view.Feed[model.MediaRecord]
	Hub         *hub.Hub
	TokenConfig auth.TokenConfig
}

func NewRouter(deps Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})
	r.GET("/version", handler.GetVersion)

	loginLimiter := middleware.NewRateLimiter(10, time.Minute)
	authHandler := &handler.AuthHandler{
		Sessions:     deps.Sessions,
		TokenConfig:  deps.TokenConfig,
		LoginLimiter: loginLimiter,
	}
	r.POST("/v1/login", authHandler.Login)

	protected := r.Group("/v1")
	protected.Use(middleware.RequireAuth(deps.TokenConfig))
	protected.POST("/logout", authHandler.Logout)
	protected.POST("/reset-primary", authHandler.ResetPrimary)
	protected.GET("/session", authHandler.Session)

	deviceHandler := &handler.DeviceHandler{Identity: deps.Identity}
	r.GET("/v1/device", deviceHandler.Get)

	captureHandler := &handler.CaptureHandler{Pipeline: deps.Pipeline}
	r.POST("/v1/submit/location", captureHandler.SubmitLocation)
	r.POST("/v1/submit/media", captureHandler.SubmitMedia)

	recordsHandler := &handler.RecordsHandler{Locations: deps.Locations, Pictures: deps.Pictures}
	protected.GET("/records/locations", recordsHandler.ListLocations)
	protected.GET("/records/pictures", recordsHandler.ListPictures)

	exportHandler := &handler.ExportHandler{Exporter: deps.Exporter}
	protected.POST("/export/:collection", exportHandler.Run)
	protected.GET("/exports", exportHandler.List)
	protected.GET("/exports/:name", exportHandler.Download)

	feedHandler := &handler.FeedHandler{
		Hub:         deps.Hub,
		TokenConfig: deps.TokenConfig,
		Locations:   deps.Locations,
		Pictures:    deps.Pictures,
	}
	r.GET("/ws/feed", feedHandler.Serve)

	return r
}
