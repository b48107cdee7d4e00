package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"hotelbook/internal/config"
	"hotelbook/internal/models"

	"github.com/rs/zerolog"
)

// New constructs a zerolog logger based on config settings.
// Defaults to JSON, info level, stdout when fields are empty.
// Output "tee" writes to stdout and to logging.file_path.
func New(cfg config.LoggingConfig, app config.AppConfig) (*zerolog.Logger, io.Closer, error) {
	level := zerolog.InfoLevel
	if parsed, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.Level))); err == nil && parsed != zerolog.NoLevel {
		level = parsed
	}

	output := io.Writer(os.Stdout)
	var closer io.Closer

	switch mode := strings.ToLower(strings.TrimSpace(cfg.Output)); mode {
	case "stderr":
		output = os.Stderr
	case "file", "tee":
		if cfg.FilePath == "" {
			return nil, nil, fmt.Errorf("logging.output=%s requires logging.file_path", mode)
		}
		file, err := os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		output = file
		closer = file
		if mode == "tee" {
			output = zerolog.MultiLevelWriter(os.Stdout, file)
		}
	}

	if strings.ToLower(strings.TrimSpace(cfg.Format)) == "console" {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: time.RFC3339}
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano
	base := zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Str("app", app.Name).
		Str("env", app.Environment).
		Str("version", app.Version).
		Logger()

	return &base, closer, nil
}

// ForBooking returns a child logger carrying the fields every admission log
// line must have.
func ForBooking(l *zerolog.Logger, req models.BookingRequest) zerolog.Logger {
	return l.With().
		Int64("user_id", req.UserID).
		Int64("room_id", req.RoomID).
		Str("date_from", req.Stay.From.Format(models.DateLayout)).
		Str("date_to", req.Stay.To.Format(models.DateLayout)).
		Logger()
}
