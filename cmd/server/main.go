package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/eternisai/status-notifier/internal/auth"
	"github.com/eternisai/status-notifier/internal/config"
	"github.com/eternisai/status-notifier/internal/directory"
	"github.com/eternisai/status-notifier/internal/firebase"
	"github.com/eternisai/status-notifier/internal/logger"
	"github.com/eternisai/status-notifier/internal/notifications"
	"github.com/eternisai/status-notifier/internal/statuschange"
	"github.com/eternisai/status-notifier/internal/trigger"
	"github.com/gin-gonic/gin"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	config.LoadConfig()
	cfg := config.AppConfig

	log := logger.New(logger.FromConfig(cfg.LogLevel, cfg.LogFormat))

	log.Info("setting Gin mode", slog.String("mode", cfg.GinMode))
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	firebaseClient, err := firebase.NewClient(ctx, cfg.FirebaseProjectID, cfg.FirebaseCredJSON)
	if err != nil {
		log.Error("failed to initialize Firebase", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer firebaseClient.Close()

	userDirectory := directory.NewFirestoreDirectory(firebaseClient.Firestore, cfg.UsersCollection, log)
	pushNotifier := notifications.NewFCMNotifier(firebaseClient.Messaging, log, notifications.Options{
		DryRun:    cfg.PushDryRun,
		DebugCurl: cfg.PushDebugCurl,
		CredJSON:  cfg.FirebaseCredJSON,
		ProjectID: cfg.FirebaseProjectID,
	})
	changeNotifier := statuschange.NewChangeNotifier(userDirectory, pushNotifier, log)

	var wg sync.WaitGroup

	// Firestore realtime listener
	if cfg.WatcherEnabled {
		watcher := trigger.NewWatcher(firebaseClient.Firestore, cfg.UsersCollection, changeNotifier, cfg.HandleTimeout(), log)
		wg.Add(1)
		go func() {
			defer wg.Done()
			watcher.Run(ctx)
		}()
	} else {
		log.Info("⚠️  firestore watcher disabled")
	}

	// NATS trigger
	var natsSubscriber *trigger.NATSSubscriber
	if cfg.NatsURL != "" {
		nc, err := nats.Connect(cfg.NatsURL, nats.Name("status-notifier-"+logger.GetInstanceID()))
		if err != nil {
			log.Error("failed to connect to NATS", slog.String("url", cfg.NatsURL), slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer nc.Close()

		natsSubscriber = trigger.NewNATSSubscriber(nc, cfg.NatsSubject, cfg.NatsQueueGroup, changeNotifier, cfg.HandleTimeout(), log)
		if err := natsSubscriber.Start(); err != nil {
			log.Error("failed to start NATS trigger", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "instance_id": logger.GetInstanceID()})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if cfg.HTTPTriggerEnabled {
		// Validate guarantees auth is enabled for the HTTP trigger.
		validator, err := auth.NewTokenValidator(cfg.TriggerJWKSURL, cfg.TriggerAudience)
		if err != nil {
			log.Error("failed to initialize trigger token validator", slog.String("error", err.Error()))
			os.Exit(1)
		}
		if cfg.TriggerJWKSURL == "" {
			log.Warn("⚠️  trigger auth runs in dev mode, tokens are not verified")
		}
		events := router.Group("/")
		events.Use(auth.RequireBearer(validator, log))
		trigger.NewHTTPTrigger(changeNotifier, cfg.UsersCollection, cfg.HandleTimeout(), log).RegisterRoutes(events)
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Info("🔔 status notifier listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("failed to start server", slog.String("error", err.Error()))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("🛑 shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ServerShutdownTimeoutSeconds)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", slog.String("error", err.Error()))
	}

	if err := natsSubscriber.Stop(shutdownCtx); err != nil {
		log.Error("failed to stop NATS trigger", slog.String("error", err.Error()))
	}

	wg.Wait()
	log.Info("✅ server exited")
}
