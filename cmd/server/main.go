package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rongwang/unit-roster/internal/api"
	"github.com/rongwang/unit-roster/internal/config"
	"github.com/rongwang/unit-roster/internal/metrics"
	"github.com/rongwang/unit-roster/internal/repository"
	"github.com/rongwang/unit-roster/internal/service"
	"github.com/rongwang/unit-roster/internal/utils"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := utils.NewLogger(cfg.Log.Level, cfg.Log.Format)

	// Set up database connection
	db, err := config.SetupDatabase(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("failed to set up database")
	}
	defer db.Close()

	repo := repository.NewPostgresRepository(db)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	svc := service.NewDefaultService(repo,
		service.WithLogger(log),
		service.WithMetrics(metrics.New(registry)),
		service.WithReportUnits(cfg.Report.Units),
	)

	// Repair assignment fields left stale by earlier versions, once per process
	if _, err := svc.ReconcileOnce(context.Background()); err != nil {
		log.WithError(err).Error("startup reconciliation failed")
	}

	handler := api.NewHandler(svc, log, registry)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), api.RequestLogger(log))
	handler.SetupRoutes(router, api.AuthMiddleware([]byte(cfg.Auth.JWTSecret), cfg.Auth.Disabled))
	if cfg.Auth.Disabled {
		log.Warn("operator authentication disabled, history entries are authored by \"system\"")
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithField("addr", server.Addr).Info("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("failed to start server")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
	log.Info("server stopped")
}
