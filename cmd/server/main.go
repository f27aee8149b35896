package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"
	log "github.com/sirupsen/logrus"

	"github.com/rpattn/chronicle/internal/config"
	"github.com/rpattn/chronicle/internal/db"
	"github.com/rpattn/chronicle/internal/history"
	"github.com/rpattn/chronicle/internal/middleware"
	"github.com/rpattn/chronicle/internal/publisher"
	"github.com/rpattn/chronicle/internal/records"
	"github.com/rpattn/chronicle/internal/repository"
	"github.com/rpattn/chronicle/internal/trash"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load(".")
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}
	if level, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	if err := db.RunMigrations(cfg.Database, "./migrations"); err != nil {
		log.WithError(err).Fatal("failed to run migrations")
	}

	conn, err := db.NewConnection(ctx, cfg.Database)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}
	defer conn.Close()

	var events repository.EventPublisher
	if cfg.Kafka.Brokers != "" {
		auditPublisher, err := publisher.NewAuditPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			log.WithError(err).Fatal("failed to create audit publisher")
		}
		defer auditPublisher.Close()
		events = auditPublisher
	}

	recordStore := repository.NewRecordRepository(conn, events)
	auditLog := repository.NewAuditLogRepository(conn.Pool)

	historyService := history.NewService(auditLog, cfg.Audit)
	trashService := trash.NewService(auditLog, recordStore, cfg.Audit)

	mux := http.NewServeMux()
	mux.Handle("/history", history.NewHTTPHandler(historyService))
	mux.Handle("/history/", history.NewHTTPHandler(historyService))
	mux.Handle("/trash", trash.NewHTTPHandler(trashService))
	mux.Handle("/trash/", trash.NewHTTPHandler(trashService))
	mux.Handle("/records", records.NewHTTPHandler(recordStore))
	mux.Handle("/records/", records.NewHTTPHandler(recordStore))

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000"},
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
	})

	handler := middleware.LoggingMiddleware(middleware.ActorMiddleware(corsHandler.Handler(mux)))

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.WithField("addr", cfg.Server.Addr).Info("starting chronicle server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Fatal("server forced to shutdown")
	}

	log.Info("server exited")
}
