// Command export writes the XLSX bookings report for a period into
// exports.path.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"hotelbook/internal/config"
	"hotelbook/internal/database"
	"hotelbook/internal/domain"
	"hotelbook/internal/export"
	"hotelbook/internal/logging"
	"hotelbook/internal/models"
	"hotelbook/internal/postgres"
	"hotelbook/internal/service"

	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	var (
		configPath = flag.String("config", envOr("CONFIG_PATH", "configs/config.yaml"), "path to config.yaml")
		from       = flag.String("from", "", "first day of the period, YYYY-MM-DD")
		to         = flag.String("to", "", "day after the period, YYYY-MM-DD")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if closer != nil {
		defer closer.Close()
	}
	logger := baseLogger.With().Str("component", "export").Logger()

	stay, err := models.ParseStay(*from, *to)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	repo, err := openStore(ctx, cfg, &logger)
	if err != nil {
		return err
	}
	defer repo.Close()

	bookings := service.NewBookingService(repo, nil, nil, nil, cfg.Booking.MaxStayDays, &logger)
	rows, err := bookings.ExportBookings(ctx, stay)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.Exports.Path, 0o755); err != nil {
		return fmt.Errorf("create exports directory: %w", err)
	}
	path := filepath.Join(cfg.Exports.Path, export.FileName(stay))
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	if err := export.WriteBookings(f, stay, rows); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close export file: %w", err)
	}

	logger.Info().Str("path", path).Int("bookings", len(rows)).Str("stay", stay.String()).Msg("bookings exported")
	return nil
}

func openStore(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (domain.Repository, error) {
	if cfg.Database.Driver == config.DriverPostgres {
		store, err := postgres.New(ctx, cfg.Database.Postgres.DSN(), logger)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	db, err := database.NewDB(cfg.Database.Path, logger)
	if err != nil {
		return nil, err
	}
	return db, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
