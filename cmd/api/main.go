package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"go.uber.org/zap"

	"github.com/petermazzocco/go-order-wizard/internal/auth"
	"github.com/petermazzocco/go-order-wizard/internal/background"
	"github.com/petermazzocco/go-order-wizard/internal/config"
	"github.com/petermazzocco/go-order-wizard/internal/database"
	"github.com/petermazzocco/go-order-wizard/internal/handlers"
	"github.com/petermazzocco/go-order-wizard/internal/imaging"
	"github.com/petermazzocco/go-order-wizard/internal/imaging/vips"
	"github.com/petermazzocco/go-order-wizard/internal/logging"
	"github.com/petermazzocco/go-order-wizard/internal/notify"
	"github.com/petermazzocco/go-order-wizard/internal/profiles"
	"github.com/petermazzocco/go-order-wizard/internal/storage"
	"github.com/petermazzocco/go-order-wizard/internal/submissions"
	"github.com/petermazzocco/go-order-wizard/internal/wizard"
)

const (
	wizardMaxIdle  = 2 * time.Hour
	pruneInterval  = 10 * time.Minute
	shutdownWindow = 30 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := logging.New(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(cfg.DatabaseURL, logger)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}

	store := auth.NewCookieStore(cfg.SessionSecret, cfg.IsProd())
	auth.Setup(store, cfg.GoogleKey, cfg.GoogleSecret, cfg.OAuthCallbackURL)

	client, err := newBucketClient(ctx, cfg)
	if err != nil {
		return fmt.Errorf("object storage: %w", err)
	}

	policy, err := wizard.ParseTipPolicy(cfg.TipPolicy)
	if err != nil {
		return err
	}

	runner := background.NewRunner(logger)
	profileStore := profiles.NewStore(db)
	recorder := submissions.NewRecorder(db)
	registry := wizard.NewRegistry(policy, wizard.WithLimits(wizard.Limits{
		MaxImages: cfg.MaxWizardImages,
		MaxBytes:  cfg.MaxWizardBytes,
	}))
	notifier := notify.NewDiscordNotifier(cfg.DiscordWebhookURL, logger,
		notify.WithBatching(cfg.NotifyBatchSize, cfg.NotifyBatchDelay))

	pipeline := wizard.NewPipeline(wizard.Deps{
		Normalizer:        normalizer(cfg.ImageBackend),
		Uploader:          storage.NewUploader(client, cfg.BucketName, cfg.PublicURL, logger),
		Recorder:          recorder,
		Profiles:          profileStore,
		Notifier:          notifier,
		Tasks:             runner,
		Log:               logger,
		UploadConcurrency: cfg.UploadConcurrency,
	})

	h := handlers.New(handlers.Options{
		DB:             db,
		Profiles:       profileStore,
		Submissions:    recorder,
		Wizards:        registry,
		Pipeline:       pipeline,
		Webhook:        notifier,
		Log:            logger,
		MaxUploadBytes: cfg.MaxUploadBytes,
		MapsAPIKey:     cfg.GoogleMapsAPIKey,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           router(cfg, h),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go pruneWizards(ctx, registry, logger)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting API server", zap.String("addr", srv.Addr), zap.String("env", cfg.AppEnv))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownWindow)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	if err := runner.Wait(shutdownCtx); err != nil {
		logger.Warn("background tasks still running at exit", zap.Error(err))
	}
	return nil
}

func router(cfg *config.Config, h *handlers.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/auth/{provider}/callback", h.UserLoginHandler)
	r.Post("/auth/{provider}", h.BeginAuthHandler)
	r.With(auth.UserMiddleware).Post("/logout/{provider}", h.LogoutHandler)
	r.With(auth.UserMiddleware).Get(handlers.ConfirmationPath, h.ConfirmationHandler)

	r.Route("/api", func(r chi.Router) {
		r.Use(auth.UserMiddleware)
		r.Use(httprate.Limit(
			cfg.RateLimitPerMinute,
			1*time.Minute,
			httprate.WithKeyFuncs(httprate.KeyByIP, httprate.KeyByEndpoint),
		))
		h.APIRoutes(r)
	})

	return r
}

// newBucketClient builds an S3 client for the account's R2 endpoint.
func newBucketClient(ctx context.Context, cfg *config.Config) (*s3.Client, error) {
	tr := &http.Transport{
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
			MaxVersion: tls.VersionTLS13,
			CipherSuites: []uint16{
				tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
				tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
				tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
				tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
			},
		},
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithHTTPClient(&http.Client{Transport: tr}),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.AccessKeySecret, "")),
		awsconfig.WithRegion("auto"),
	)
	if err != nil {
		return nil, err
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID))
	}), nil
}

func normalizer(backend string) imaging.Normalizer {
	if backend == "vips" {
		return vips.Greyscale{}
	}
	return imaging.Greyscale{}
}

// pruneWizards drops orders left untouched for wizardMaxIdle.
func pruneWizards(ctx context.Context, registry *wizard.Registry, logger *zap.Logger) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := registry.Prune(wizardMaxIdle); n > 0 {
				logger.Debug("pruned idle wizards", zap.Int("count", n))
			}
		}
	}
}
