package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"neongen/internal/adapter/repo"
	"neongen/internal/domain"
	"neongen/internal/generation"
	"neongen/internal/http/handlers"
	"neongen/internal/http/httpapi"
	"neongen/internal/infra"
	"neongen/internal/infra/geoip"
	"neongen/internal/middleware"
	"neongen/internal/providers/fal"
	"neongen/internal/providers/prompt"
	"neongen/internal/storage"
	"neongen/internal/training"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()

	// Persistence: Postgres when DATABASE_URL is set, in-memory otherwise.
	var (
		styles    domain.StyleRepository
		analytics domain.AnalyticsRepository
	)
	if cfg.DatabaseURL != "" {
		pool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect database")
		}
		defer pool.Close()

		styles, err = repo.NewStyleRepository(ctx, pool)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to prepare style repository")
		}
		analytics, err = repo.NewAnalyticsRepository(ctx, pool)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to prepare analytics repository")
		}
	} else {
		logger.Warn().Msg("DATABASE_URL not set, using in-memory repositories")
		styles = repo.NewStyleRepositoryMemory()
		analytics = repo.NewAnalyticsRepositoryMemory()
	}

	falClient, err := fal.NewClient(fal.Options{
		APIKey:       cfg.FalKey,
		QueueBaseURL: cfg.FalQueueBaseURL,
		SyncBaseURL:  cfg.FalSyncBaseURL,
		RestBaseURL:  cfg.FalRestBaseURL,
		Logger:       &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init fal client")
	}

	uploader, err := buildUploader(cfg, falClient)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init archive uploader")
	}
	logger.Info().Str("backend", cfg.UploadBackend).Msg("archive uploader ready")

	submitter := training.NewSubmitter(training.SubmitterOptions{
		Repo:         styles,
		Uploader:     uploader,
		Queue:        falClient,
		Model:        cfg.TrainingModel,
		Steps:        cfg.TrainSteps,
		LearningRate: cfg.TrainLearningRate,
		Logger:       logger,
	})
	poller := training.NewPoller(styles, falClient, cfg.TrainingModel, logger)
	resolver := generation.NewResolver(styles, falClient, cfg.GenerationModel, logger)

	app := &handlers.App{
		Logger:    logger,
		Config:    cfg,
		Styles:    styles,
		Analytics: analytics,
		Submitter: submitter,
		Poller:    poller,
		Resolver:  resolver,
		Suggester: prompt.NewStaticSuggester(),
	}

	var countryLookup middleware.CountryLookup
	if resolverGeo, err := geoip.NewResolver(cfg.GeoIPDBPath); err != nil {
		logger.Warn().Err(err).Msg("geoip disabled")
	} else if resolverGeo != nil {
		countryLookup = resolverGeo.CountryCode
	}

	router := httpapi.NewRouter(app, httpapi.RouterOptions{
		CountryLookup:   countryLookup,
		AllowedOrigins:  []string{"*"},
		RateLimitPerMin: cfg.RateLimitPerMin,
	})

	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}

func buildUploader(cfg *infra.Config, falClient *fal.Client) (training.ArchiveUploader, error) {
	switch cfg.UploadBackend {
	case infra.UploadBackendS3:
		return storage.NewMinioStore(storage.MinioOptions{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
	case infra.UploadBackendFile:
		store, err := storage.NewFileStore(cfg.StoragePath)
		if err != nil {
			return nil, err
		}
		return storage.NewFileUploader(store, cfg.StorageBaseURL), nil
	default:
		return falClient, nil
	}
}
