package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"hotelbook/internal/api"
	"hotelbook/internal/config"
	"hotelbook/internal/database"
	"hotelbook/internal/domain"
	"hotelbook/internal/events"
	"hotelbook/internal/google"
	"hotelbook/internal/importer"
	"hotelbook/internal/logging"
	"hotelbook/internal/mail"
	"hotelbook/internal/metrics"
	"hotelbook/internal/models"
	"hotelbook/internal/postgres"
	"hotelbook/internal/repository"
	"hotelbook/internal/service"
	"hotelbook/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, sqliteDB, err := initStore(ctx, cfg, &logger)
	if err != nil {
		return err
	}
	defer repo.Close()

	seeded, err := seedCatalog(ctx, cfg.Catalog.Path, repo, &logger)
	if err != nil {
		return err
	}

	redisClient := initRedis(ctx, cfg, &logger)
	if redisClient != nil {
		defer repository.Close(redisClient)
	}
	cache := initSearchCache(redisClient, &logger)

	eventBus := events.NewEventBus()
	eventBus.OnError(func(ev *events.Event, err error) {
		logger.Error().Err(err).Str("event", ev.Type).Msg("event handler failed")
	})

	queue, notifyTasks, outbox, err := initNotifications(ctx, cfg, repo, redisClient, &logger)
	if err != nil {
		return err
	}
	if outbox != nil {
		go outbox.Start(ctx)
	}

	bookingService := service.NewBookingService(repo, eventBus, queue, notifyTasks, cfg.Booking.MaxStayDays, &logger)
	catalogService := service.NewCatalogService(repo, cache, eventBus, time.Duration(cfg.Booking.SearchCacheTTLSeconds)*time.Second, cfg.Booking.MaxStayDays, &logger)
	catalogService.SubscribeInvalidation(eventBus)
	if seeded > 0 {
		// a shared redis cache may still hold searches from before the seed
		if err := eventBus.PublishJSON(events.EventCatalogChanged, events.CatalogChangedPayload{Table: "hotels", Rows: seeded}); err != nil {
			logger.Warn().Err(err).Msg("publish catalog change")
		}
	}
	userService := service.NewUserService(repo, &logger)

	if cfg.Backup.Enabled {
		if sqliteDB == nil {
			logger.Warn().Str("driver", cfg.Database.Driver).Msg("backups are only supported for sqlite")
		} else {
			go database.NewBackupService(sqliteDB, cfg.Backup, &logger).Start(ctx)
		}
	}

	if !cfg.API.Enabled {
		logger.Warn().Msg("API is disabled in config, but starting API application. Check your config.")
	}

	var grpcServer *api.GRPCServer
	if cfg.API.GRPC.Enabled {
		grpcServer, err = api.NewGRPCServer(&cfg.API, bookingService, &logger)
		if err != nil {
			logger.Error().Err(err).Msg("create grpc server")
			return err
		}
	}

	httpServer := api.NewHTTPServer(cfg.API, cfg.Booking, api.Services{
		Bookings: bookingService,
		Catalog:  catalogService,
		Users:    userService,
		Cache:    cache,
		Importer: importer.New(repo, eventBus, &logger),
		Health:   repo,
	}, &logger)

	startMetrics(ctx, cfg, &logger)

	return startServers(ctx, grpcServer, httpServer, cfg, &logger)
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "api-main").Logger()

	return cfg, logger, closer, nil
}

// initStore opens the configured store. The sqlite handle is also returned
// for the backup service.
func initStore(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (domain.Repository, *database.DB, error) {
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		store, err := postgres.New(ctx, cfg.Database.Postgres.DSN(), logger)
		if err != nil {
			logger.Error().Err(err).Str("host", cfg.Database.Postgres.Host).Msg("init postgres")
			return nil, nil, err
		}
		return store, nil, nil
	default:
		if dir := filepath.Dir(cfg.Database.Path); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				logger.Error().Err(err).Msg("create database directory")
				return nil, nil, err
			}
		}
		db, err := database.NewDB(cfg.Database.Path, logger)
		if err != nil {
			logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
			return nil, nil, err
		}
		return db, db, nil
	}
}

// seedCatalog inserts the hotels of the catalog file that are not stored
// yet and returns how many it inserted. Hotels and rooms in the file carry
// explicit ids so restarts are idempotent.
func seedCatalog(ctx context.Context, path string, repo domain.Repository, logger *zerolog.Logger) (int, error) {
	if path == "" {
		return 0, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Error().Err(err).Str("catalog_path", path).Msg("read catalog")
		return 0, err
	}

	var catalog models.Catalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		logger.Error().Err(err).Str("catalog_path", path).Msg("parse catalog")
		return 0, err
	}

	var hotels []models.Hotel
	var rooms []models.Room
	for _, h := range catalog.Hotels {
		if h.ID <= 0 {
			return 0, fmt.Errorf("catalog hotel %q has no id", h.Name)
		}
		if _, err := repo.GetHotel(ctx, h.ID); err == nil {
			continue
		}
		hotels = append(hotels, h.Hotel)
		for _, r := range h.Rooms {
			if r.ID <= 0 {
				return 0, fmt.Errorf("catalog room %q of hotel %d has no id", r.Name, h.ID)
			}
			r.HotelID = h.ID
			rooms = append(rooms, r)
		}
	}
	if len(hotels) == 0 {
		return 0, nil
	}

	if _, err := repo.BulkInsertHotels(ctx, hotels); err != nil {
		return 0, fmt.Errorf("seed hotels: %w", err)
	}
	if len(rooms) > 0 {
		if _, err := repo.BulkInsertRooms(ctx, rooms); err != nil {
			return 0, fmt.Errorf("seed rooms: %w", err)
		}
	}
	logger.Info().Int("hotels", len(hotels)).Int("rooms", len(rooms)).Msg("catalog seeded")
	return len(hotels), nil
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	client := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, client); err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, search cache falls back to memory until it recovers")
	} else {
		logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	}
	return client
}

func initSearchCache(client *redis.Client, logger *zerolog.Logger) domain.SearchCache {
	memory := repository.NewMemorySearchCache()
	if client == nil {
		return memory
	}
	return repository.NewFailoverSearchCache(repository.NewRedisSearchCache(client), memory, logger)
}

// initNotifications builds the outbox worker and registers a handler for
// every configured sink. The returned queue is nil when notifications are
// off.
func initNotifications(
	ctx context.Context,
	cfg *config.Config,
	repo domain.Repository,
	redisClient *redis.Client,
	logger *zerolog.Logger,
) (domain.NotificationQueue, []string, *worker.OutboxWorker, error) {
	if !cfg.Notifications.Enabled {
		return nil, nil, nil, nil
	}

	retry, err := worker.RetryPolicyFromConfig(cfg.Notifications)
	if err != nil {
		return nil, nil, nil, err
	}
	outbox := worker.NewOutboxWorker(repo, redisClient, worker.Options{
		Retry:         retry,
		QueueKey:      cfg.Notifications.QueueKey,
		DeadLetterKey: cfg.Notifications.DeadLetterKey,
		PollInterval:  time.Duration(cfg.Notifications.PollIntervalMS) * time.Millisecond,
	}, logger)

	var tasks []string
	if cfg.Mail.Enabled {
		outbox.Handle(models.TaskConfirmationEmail, mail.NewMailer(cfg.Mail).SendBookingConfirmation)
		tasks = append(tasks, models.TaskConfirmationEmail)
	}
	if ledger := initLedger(ctx, cfg, logger); ledger != nil {
		outbox.Handle(models.TaskLedgerAppend, ledger.AppendBooking)
		tasks = append(tasks, models.TaskLedgerAppend)
	}
	if len(tasks) == 0 {
		logger.Warn().Msg("notifications enabled but no sink is configured")
	}
	return outbox, tasks, outbox, nil
}

func initLedger(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *google.SheetsLedger {
	if cfg.Google.GoogleCredentialsFile == "" || cfg.Google.BookingSpreadSheetID == "" {
		return nil
	}

	ledger, err := google.NewSheetsLedger(ctx, cfg.Google.GoogleCredentialsFile, cfg.Google.BookingSpreadSheetID, cfg.Google.BookingSheetName)
	if err != nil {
		logger.Warn().Err(err).Msg("google sheets init failed, continuing without ledger")
		return nil
	}
	if err := ledger.EnsureHeader(ctx); err != nil {
		logger.Warn().Err(err).Msg("google sheets connection test failed, continuing without ledger")
		return nil
	}
	if err := ledger.WarmUpCache(ctx); err != nil {
		logger.Warn().Err(err).Msg("google sheets cache warm-up failed")
	}

	logger.Info().Msg("google sheets ledger connected")
	return ledger
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	port := cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9090
	}
	go startMetricsServer(ctx, port, logger)
}

func startServers(
	ctx context.Context,
	grpcServer *api.GRPCServer,
	httpServer *api.HTTPServer,
	cfg *config.Config,
	logger *zerolog.Logger,
) error {
	if grpcServer != nil {
		go func() {
			if err := grpcServer.Serve(); err != nil {
				logger.Error().Err(err).Msg("grpc server stopped")
			}
		}()
	}

	go func() {
		if !cfg.API.HTTP.Enabled {
			return
		}
		if err := httpServer.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	ev := logger.Info().Int("http_port", cfg.API.HTTP.Port)
	if grpcServer != nil {
		ev = ev.Str("grpc_addr", grpcServer.Addr())
	}
	ev.Msg("API server started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if grpcServer != nil {
		grpcServer.Shutdown(shutdownCtx)
	}
	_ = httpServer.Shutdown(shutdownCtx)

	logger.Info().Msg("API server stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
