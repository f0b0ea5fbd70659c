// Package main is the entry point for the Zulu7 dashboard backend.
// It serves the dashboard assets and relays the third-party APIs its widgets need:
// market data, feeds, Drive media, health probes, iframe embedding and the camera streamer.
package main

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/zulu7/internal/cache"
	"github.com/aristath/zulu7/internal/clients/upstream"
	"github.com/aristath/zulu7/internal/clients/yahoo"
	"github.com/aristath/zulu7/internal/config"
	"github.com/aristath/zulu7/internal/modules/drive"
	"github.com/aristath/zulu7/internal/modules/embed"
	"github.com/aristath/zulu7/internal/modules/feeds"
	"github.com/aristath/zulu7/internal/modules/healthcheck"
	"github.com/aristath/zulu7/internal/modules/market"
	"github.com/aristath/zulu7/internal/modules/media"
	"github.com/aristath/zulu7/internal/modules/publish"
	"github.com/aristath/zulu7/internal/modules/streamer"
	"github.com/aristath/zulu7/internal/reliability"
	"github.com/aristath/zulu7/internal/scheduler"
	"github.com/aristath/zulu7/internal/server"
	"github.com/aristath/zulu7/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Use fallback logger if config fails
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.LogPretty,
	})
	logger.SetGlobalLogger(log)

	log.Info().Msg("Starting Zulu7")

	// One pooled transport for every outbound call
	transport := upstream.NewTransport()
	defer transport.CloseIdleConnections()

	marketData := cache.New[[]byte]("market_data", cache.TTLMarketData)
	titles := cache.New[string]("page_title", cache.TTLPageTitle)
	listings := cache.New[[]media.File]("media_listing", cache.TTLMediaListing)

	snapshotPath := cfg.TitleCacheSnapshotPath()
	if n, err := titles.LoadFile(snapshotPath); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Warn().Err(err).Str("path", snapshotPath).Msg("Failed to restore title cache")
		}
	} else {
		log.Info().Int("entries", n).Msg("Title cache restored")
	}

	// Optional off-host mirror of published configs
	var mirror publish.Mirror
	if cfg.R2.Enabled() {
		r2, err := reliability.NewR2Client(cfg.R2.AccountID, cfg.R2.AccessKeyID, cfg.R2.SecretAccessKey, cfg.R2.BucketName, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize R2 client")
		}
		mirror = r2
		log.Info().Str("bucket", cfg.R2.BucketName).Msg("R2 mirror enabled")
	}

	store, err := publish.NewStore(cfg.PublishedConfigsDir(), mirror, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize config store")
	}

	streamerProxy, err := streamer.NewProxy(cfg.StreamerURL, "/api/streamer", transport, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize streamer proxy")
	}

	srv := server.New(server.Config{
		Log:         log,
		Config:      cfg,
		Market:      market.NewHandler(market.NewService(yahoo.NewClient(transport, log), marketData, log), log),
		HealthCheck: healthcheck.NewHandler(healthcheck.NewProber(transport, cfg.PingPrivileged, log), log),
		Drive:       drive.NewHandler(drive.NewDownloader(transport, log), log),
		Embed:       embed.NewProxy(transport, "/api/proxy", log),
		Feeds:       feeds.NewHandler(feeds.NewRSSClient(transport, log), feeds.NewTitleScraper(transport, titles, log), log),
		Media:       media.NewHandler(media.NewService(transport, listings, log), log),
		Publish:     publish.NewHandler(store, cfg.PublishRateLimit, log),
		Streamer:    streamerProxy,
		System:      server.NewSystemHandlers(log),
	})

	// Background jobs
	sched := scheduler.New(log)
	cleanup := publish.NewCleanupJob(store, cfg.ConfigMaxAge, log)
	if err := sched.AddJob(cfg.SweepSchedule, cleanup); err != nil {
		log.Fatal().Err(err).Str("schedule", cfg.SweepSchedule).Msg("Failed to register config cleanup job")
	}
	if err := sched.RunNow(cleanup); err != nil {
		log.Error().Err(err).Msg("Initial config cleanup failed")
	}
	sched.Start()

	// Start server in goroutine
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	sched.Stop()

	if err := titles.SaveFile(snapshotPath); err != nil {
		log.Error().Err(err).Str("path", snapshotPath).Msg("Failed to save title cache")
	} else {
		log.Info().Int("entries", titles.Len()).Msg("Title cache saved")
	}

	log.Info().Msg("Server stopped")
}
