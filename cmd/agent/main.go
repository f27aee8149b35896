// The agent runs on each client device: it owns the local SQLite store and
// drains queued delete intents against the chronicle server.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/rpattn/chronicle/internal/config"
	"github.com/rpattn/chronicle/internal/tombstone"
)

func main() {
	cfg, err := config.Load(".")
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}
	if level, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	actorID := uuid.Nil
	if raw := os.Getenv("CHRONICLE_ACTOR_ID"); raw != "" {
		actorID, err = uuid.Parse(raw)
		if err != nil {
			log.WithError(err).Fatal("invalid CHRONICLE_ACTOR_ID")
		}
	}

	store, err := tombstone.Open(cfg.Queue.Path)
	if err != nil {
		log.WithError(err).Fatal("failed to open local store")
	}
	defer store.Close()

	remote := tombstone.NewHTTPRemote(cfg.Queue.RemoteURL, actorID)
	drainer := tombstone.NewDrainer(store, remote, cfg.Queue.MaxRetries, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connectivity regain has no reliable signal from here, so a periodic
	// kick stands in: a pass against a reachable server settles everything
	// pending, and an unreachable one just records the failures.
	ticker := time.NewTicker(cfg.Queue.KickInterval)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				drainer.Kick()
			}
		}
	}()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Info("shutting down agent")
		cancel()
	}()

	log.WithField("remote", cfg.Queue.RemoteURL).Info("starting tombstone drain loop")
	if err := drainer.Run(ctx); err != nil && err != context.Canceled {
		log.WithError(err).Fatal("drain loop failed")
	}
	log.Info("agent exited")
}
