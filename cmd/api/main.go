package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/juju/loggo/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"amalnama/internal/app"
	"amalnama/internal/config"
	"amalnama/internal/handler"
	"amalnama/internal/httpmiddleware"
)

var logger = loggo.GetLogger("amalnama.api")

func main() {
	cfg := config.Load()
	if err := app.ConfigureLogging(cfg.LogLevel); err != nil {
		logger.Warningf("%v", err)
	}

	// Set Gin mode based on environment
	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		logger.Criticalf("http server failed: %v", err)
		os.Exit(1)
	}
}

func runHTTP(cfg config.App) error {
	a, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warningf("close store: %v", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := a.SeedIfEnabled(ctx); err != nil {
		return err
	}

	// The in-memory outbox is only visible to this process.
	dispatched := make(chan struct{})
	if cfg.QueueBackend == "" || cfg.QueueBackend == "memory" {
		go func() {
			defer close(dispatched)
			if err := a.Dispatcher.Run(ctx, a.Queue); err != nil {
				logger.Errorf("email dispatcher: %v", err)
			}
		}()
	} else {
		close(dispatched)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(httpmiddleware.CORS(cfg.CORSOrigins))
	r.Use(httpmiddleware.SecurityHeaders())
	r.Use(httpmiddleware.NewRateLimiter(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", func(c *gin.Context) {
		healthy := a.Healthy(c.Request.Context())
		status := http.StatusOK
		if !healthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "store": healthy, "backend": cfg.StoreBackend})
	})

	handler.New(a).Register(r)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Infof("starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serveErr:
		cancel()
		return err
	}
	logger.Infof("shutting down server...")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warningf("server forced shutdown: %v", err)
	}
	cancel()
	<-dispatched

	logger.Infof("server exited")
	return nil
}
