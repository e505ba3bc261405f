package handlers

import (
	"net/http"
	"time"

	"houtveilig/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRouter registers every route on a new engine.
func SetupRouter(h *Handlers) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = h.Config.AllowedOrigins
	if len(corsConfig.AllowOrigins) == 1 && corsConfig.AllowOrigins[0] == "*" {
		corsConfig.AllowOrigins = nil
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	router.Use(cors.New(corsConfig))

	router.GET("/health", h.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	limit := middleware.RateLimit(h.Config.RateLimit, time.Minute)

	api := router.Group("/api/v1")
	{
		api.GET("/events", h.Events)

		zipped := api.Group("", gzip.Gzip(gzip.DefaultCompression))
		zipped.GET("/draft", h.GetDraft)
		zipped.PATCH("/draft", h.UpdateDraft)
		zipped.DELETE("/draft", h.ResetDraft)
		zipped.POST("/draft/photos", limit, h.AddPhotos)
		zipped.DELETE("/draft/photos/:index", h.RemovePhoto)
		api.GET("/draft/photos/:index", h.GetPhoto)

		api.POST("/location/acquire", h.AcquireLocation)
		api.POST("/location/fix", h.LocationFix)
		api.GET("/location/status", h.LocationStatus)

		zipped.POST("/submit", limit, h.Submit)
		zipped.POST("/save", limit, h.SaveLocal)

		zipped.GET("/reports", h.ListReports)
		zipped.GET("/reports/export.geojson", h.ExportGeoJSON)
		zipped.GET("/reports/:id", h.GetReport)
		api.DELETE("/reports/:id", h.DeleteReport)
		api.DELETE("/reports", h.ClearReports)

		api.GET("/session", h.GetSession)
		api.POST("/session", h.CreateSession)
		api.DELETE("/session", h.DeleteSession)
		api.GET("/preferences", h.GetPreferences)
	}

	router.GET("/reports", gzip.Gzip(gzip.DefaultCompression), h.ReportsPage)
	router.GET("/offline-manifest.json", h.OfflineManifest)

	static := router.Group("/", middleware.StaticHeaders())
	static.Static("/exports", h.Config.ExportDir)
	router.NoRoute(middleware.StaticHeaders(), gin.WrapH(http.FileServer(http.Dir(h.Config.StaticDir))))

	return router
}
