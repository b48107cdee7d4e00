package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"hotelbook/internal/database"
	"hotelbook/internal/domain"
	"hotelbook/internal/importer"
	"hotelbook/internal/postgres"

	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	var (
		table       = flag.String("table", "", "target table: hotels, rooms or bookings")
		file        = flag.String("file", "", "path to a ;-separated csv file with a header line")
		dbPath      = flag.String("db", "./data/hotelbook.db", "path to sqlite db")
		postgresDSN = flag.String("postgres", "", "postgres DSN; overrides -db")
	)
	flag.Parse()

	if *table == "" || *file == "" {
		flag.Usage()
		return fmt.Errorf("-table and -file are required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	var loader domain.BulkLoader
	if *postgresDSN != "" {
		store, err := postgres.New(ctx, *postgresDSN, &logger)
		if err != nil {
			return fmt.Errorf("open postgres: %w", err)
		}
		defer store.Close()
		loader = store
	} else {
		if *dbPath == ":memory:" {
			return fmt.Errorf("importing into an in-memory database has no effect")
		}
		db, err := database.NewDB(*dbPath, &logger)
		if err != nil {
			return fmt.Errorf("open db: %w", err)
		}
		defer db.Close()
		loader = db
	}

	f, err := os.Open(*file)
	if err != nil {
		return fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	n, err := importer.New(loader, nil, &logger).Import(ctx, *table, f)
	if err != nil {
		return err
	}
	logger.Info().Str("table", *table).Int("rows", n).Str("file", *file).Msg("import completed")
	return nil
}
