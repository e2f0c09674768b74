package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"facultyeval/internal/adapters/api"
	emailPkg "facultyeval/internal/adapters/email"
	web "facultyeval/internal/adapters/http"
	"facultyeval/internal/adapters/storage"
	draftStore "facultyeval/internal/adapters/storage/draft"
	sessionStore "facultyeval/internal/adapters/storage/session"
	"facultyeval/internal/adapters/storage/upload"
	"facultyeval/internal/application/orchestrators"
	"facultyeval/internal/config"
	"facultyeval/internal/domain/session"
	"facultyeval/internal/logging"
	"facultyeval/internal/metrics"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

// janitorSchedule is how often abandoned drafts and expired sessions are swept.
const janitorSchedule = "@every 10m"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := logging.New(logging.Config{Level: cfg.Logging.Level, Dev: cfg.Logging.Dev, File: cfg.Logging.File})
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server_failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	db, err := storage.Open(cfg.Storage.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := storage.Migrate(db); err != nil {
		return err
	}
	timedDB := storage.NewTimedDB(db, logger, m, 0)
	logger.Info("database_ready", zap.String("path", cfg.Storage.DBPath))

	// Sessions live in Redis when configured so several front-ends can share them.
	var sessions interface {
		session.Repository
		orchestrators.SessionSweeper
	}
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer client.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := client.Ping(ctx).Err()
		cancel()
		if err != nil {
			return err
		}
		sessions = sessionStore.NewRedisStore(client)
		logger.Info("session_store", zap.String("backend", "redis"), zap.String("addr", cfg.Redis.Addr))
	} else {
		sessions = sessionStore.NewSQLiteStore(timedDB)
		logger.Info("session_store", zap.String("backend", "sqlite"))
	}
	sessionSvc := session.NewService(sessions, cfg.Storage.SessionTTL)

	sealer, err := draftStore.NewSealer(cfg.Security.DraftKey)
	if err != nil {
		return err
	}
	if cfg.Security.DraftKey == nil {
		logger.Warn("draft_key_generated", zap.String("hint", "set DRAFT_KEY so drafts survive restarts"))
	}
	drafts := draftStore.NewSQLiteStore(timedDB, sealer)

	uploads, err := upload.New(cfg.Storage.UploadDir, logger)
	if err != nil {
		return err
	}

	client := api.New(cfg.API.BaseURL,
		api.WithTimeout(cfg.API.Timeout),
		api.WithRegisterTimeout(cfg.API.RegisterTimeout),
		api.WithLogger(logger),
	)

	var sender emailPkg.Sender
	if cfg.Email.Key != "" {
		sender = emailPkg.NewResendSender(cfg.Email.Key, cfg.Email.From, logger)
		logger.Info("email_sender", zap.String("backend", "resend"))
	} else {
		sender = emailPkg.NewNoopSender(logger)
		if cfg.IsProduction() {
			logger.Warn("email_disabled", zap.String("hint", "set RESEND_KEY to send welcome emails"))
		}
	}

	janitor, err := orchestrators.StartJanitor(janitorSchedule, orchestrators.JanitorDeps{
		Drafts:   drafts,
		Sessions: sessions,
		Uploads:  uploads,
		DraftTTL: cfg.Storage.DraftTTL,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	defer func() { <-janitor.Stop().Done() }()

	handler, err := web.NewRouter(web.Deps{
		API:      client,
		Sessions: sessionSvc,
		Drafts:   drafts,
		Uploads:  uploads,
		Email:    sender,
		Metrics:  m,
		Logger:   logger,
		Options: web.Options{
			CSRFKey:        cfg.Security.CSRFKey,
			Secure:         cfg.IsProduction(),
			TrustedOrigins: cfg.Security.TrustedOrigins,
			RatePerMinute:  cfg.Server.RatePerMinute,
			SlowRequest:    cfg.Server.SlowRequest,
			UploadsOrigin:  cfg.API.BaseURL,
			PublicURL:      cfg.Server.PublicURL,
			DraftTTL:       cfg.Storage.DraftTTL,
		},
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       time.Minute,
		WriteTimeout:      time.Minute,
		IdleTimeout:       2 * time.Minute,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server_starting",
			zap.String("version", version),
			zap.String("addr", cfg.Server.Addr),
			zap.String("env", cfg.Server.Env),
			zap.String("api", cfg.API.BaseURL),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("server_stopping")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
