package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"houtveilig/config"
	"houtveilig/handlers"
	"houtveilig/metrics"
	"houtveilig/service"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Warn(".env file not found, using system environment variables")
	}

	// Load configuration
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("Invalid configuration")
	}

	log.SetLevelFromString(cfg.LogLevel)
	if cfg.LogLevel == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	metrics.Register()

	svc, err := service.NewService(cfg)
	if err != nil {
		log.WithError(err).Fatal("Failed to create service")
	}
	if err := svc.Start(); err != nil {
		log.WithError(err).Fatal("Failed to start service")
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: handlers.SetupRouter(svc.GetHandlers()),
	}

	go func() {
		log.Infof("Starting HTTP server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("Failed to start HTTP server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Error("Server forced to shutdown")
	}
	if err := svc.Stop(); err != nil {
		log.WithError(err).Error("Error stopping service")
	}

	log.Info("Server exited")
}
