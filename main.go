package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	// Carry the tz database so TIMEZONE resolves in scratch containers.
	_ "time/tzdata"

	"mkobal/avtowatch/config"
	"mkobal/avtowatch/helpers"
	"mkobal/avtowatch/internal/api"
	"mkobal/avtowatch/internal/scraper"
	"mkobal/avtowatch/logger"
	"mkobal/avtowatch/services/cache"
	"mkobal/avtowatch/services/notify"
	"mkobal/avtowatch/services/publisher"
	"mkobal/avtowatch/services/render"
	"mkobal/avtowatch/services/store"
	"mkobal/avtowatch/services/worker"

	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	godotenv.Load()

	// Initialize logger first
	logger.Init()
	log := logger.Default

	// Load and validate configuration
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	log.Info().
		Str("environment", cfg.Environment).
		Str("renderer", cfg.Renderer).
		Str("timezone", cfg.Timezone).
		Msg("Starting application")

	// Set up context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Initialize services
	services, err := initializeServices(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize services")
	}
	defer services.Cleanup()

	sched := worker.NewScheduler(worker.SchedulerOptions{
		Location:      cfg.Location,
		NightInterval: cfg.NightInterval,
		DayMin:        cfg.DayIntervalMin,
		DayMax:        cfg.DayIntervalMax,
	})

	w := worker.New(worker.Options{
		Store:       services.Store,
		Scraper:     services.Scraper,
		Dispatcher:  services.Dispatcher,
		Publisher:   services.Publisher,
		Cache:       services.Cache,
		Cooldown:    cfg.Cooldown,
		Concurrency: cfg.WorkerConcurrency,
		ErrorLog:    services.ErrorLog,
	})

	// Start the cycle loop
	workerDone := make(chan struct{})
	go func() {
		log.Info().Msg("Starting listing monitor")
		w.Run(ctx, sched)
		close(workerDone)
	}()

	// Start the HTTP front door
	apiServer := api.New(api.Options{
		Store:      services.Store,
		Dispatcher: services.Dispatcher,
		Reporter:   w,
	})
	httpServer := &http.Server{
		Addr:    cfg.APIAddr,
		Handler: apiServer.Handler(),
	}
	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.APIAddr).Msg("API listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	// Wait for shutdown signal or server error
	select {
	case sig := <-sigChan:
		log.Info().
			Str("signal", sig.String()).
			Msg("Received shutdown signal")
	case err := <-serverErr:
		log.Error().Err(err).Msg("API server failed")
	}

	// Stop scheduling, let the in-flight cycle finish, then close the
	// front door.
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("API shutdown incomplete")
	}

	<-workerDone
	log.Info().Msg("Shut down gracefully")
}

// Services holds all the initialized services
type Services struct {
	Store      store.Store
	Cache      cache.CacheService
	Renderer   render.Engine
	Scraper    *scraper.Scraper
	Dispatcher *notify.Dispatcher
	Publisher  publisher.Publisher
	ErrorLog   helpers.LoggerInterface
}

// Cleanup cleans up all services
func (s *Services) Cleanup() {
	if s.Publisher != nil {
		s.Publisher.Close()
	}
	if s.Renderer != nil {
		s.Renderer.Close()
	}
	if s.Store != nil {
		s.Store.Close()
	}
}

// initializeServices initializes all required services
func initializeServices(cfg *config.Config) (*Services, error) {
	services := &Services{}

	for _, path := range []string{cfg.DatabasePath, cfg.ErrorLogFile} {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, err
			}
		}
	}

	st, err := store.NewSQLite(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}
	services.Store = st
	logger.Info("Opened database at %s", cfg.DatabasePath)

	services.Cache = cache.New(cfg.MemcacheAddr)
	if cfg.MemcacheAddr != "" {
		logger.Info("Connected to Memcache at %s", cfg.MemcacheAddr)
	}

	selectors, err := scraper.LoadSelectors(cfg.SelectorsPath)
	if err != nil {
		return nil, err
	}

	renderer, err := render.New(cfg)
	if err != nil {
		return nil, err
	}
	services.Renderer = renderer

	services.Scraper = scraper.New(renderer, selectors, scraper.Options{
		BaseURL:  cfg.BaseURL,
		DelayMin: cfg.RequestDelayMin,
		DelayMax: cfg.RequestDelayMax,
	})

	sender := notify.NewPushoverSender(cfg.PushoverAPIURL)
	services.Dispatcher = notify.NewDispatcher(sender, 0)

	if cfg.RedisAddr != "" {
		services.Publisher = publisher.NewRedisPublisher(cfg.RedisAddr, cfg.RedisDB, cfg.RedisStream, cfg.RedisStreamMaxLen)
		logger.Info("Connected to Redis at %s (DB: %d, Stream: %s)",
			cfg.RedisAddr, cfg.RedisDB, cfg.RedisStream)
	} else {
		services.Publisher = publisher.Noop{}
	}

	services.ErrorLog = helpers.NewLogger(cfg.ErrorLogFile)

	return services, nil
}
