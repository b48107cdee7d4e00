// Package importer loads catalog and historical booking rows from
// semicolon-separated CSV files with a header line.
package importer

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"hotelbook/internal/domain"
	"hotelbook/internal/events"
	"hotelbook/internal/models"

	"github.com/rs/zerolog"
)

const (
	TableHotels   = "hotels"
	TableRooms    = "rooms"
	TableBookings = "bookings"
)

var (
	ErrUnknownTable = errors.New("unknown import table")
	ErrNoRows       = errors.New("csv contains no data rows")
)

type Importer struct {
	loader   domain.BulkLoader
	eventBus domain.EventPublisher
	logger   *zerolog.Logger
}

// New builds an importer. eventBus may be nil; otherwise every successful
// import publishes events.EventCatalogChanged.
func New(loader domain.BulkLoader, eventBus domain.EventPublisher, logger *zerolog.Logger) *Importer {
	return &Importer{loader: loader, eventBus: eventBus, logger: logger}
}

// Import parses r as rows of table and inserts them in one transaction.
// Bookings are loaded as recorded; admission does not run for them.
func (i *Importer) Import(ctx context.Context, table string, r io.Reader) (int, error) {
	rows, err := readRows(r)
	if err != nil {
		return 0, err
	}

	var (
		n       int
		payload = events.CatalogChangedPayload{Table: table}
	)
	switch table {
	case TableHotels:
		hotels, err := decodeAll(rows, decodeHotel)
		if err != nil {
			return 0, err
		}
		n, err = i.loader.BulkInsertHotels(ctx, hotels)
		if err != nil {
			return 0, err
		}
	case TableRooms:
		rooms, err := decodeAll(rows, decodeRoom)
		if err != nil {
			return 0, err
		}
		n, err = i.loader.BulkInsertRooms(ctx, rooms)
		if err != nil {
			return 0, err
		}
	case TableBookings:
		bookings, err := decodeAll(rows, decodeBooking)
		if err != nil {
			return 0, err
		}
		n, err = i.loader.BulkInsertBookings(ctx, bookings)
		if err != nil {
			return 0, err
		}
		span := bookingSpan(bookings)
		payload.DateFrom = span.From.Format(models.DateLayout)
		payload.DateTo = span.To.Format(models.DateLayout)
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownTable, table)
	}

	i.logger.Info().Str("table", table).Int("rows", n).Msg("csv imported")

	if i.eventBus != nil {
		payload.Rows = n
		if err := i.eventBus.PublishJSON(events.EventCatalogChanged, payload); err != nil {
			i.logger.Error().Err(err).Str("table", table).Msg("publish event error")
		}
	}
	return n, nil
}

// bookingSpan is the smallest stay covering every booking.
func bookingSpan(bookings []models.Booking) models.Stay {
	span := bookings[0].Stay()
	for _, b := range bookings[1:] {
		if b.DateFrom.Before(span.From) {
			span.From = b.DateFrom
		}
		if b.DateTo.After(span.To) {
			span.To = b.DateTo
		}
	}
	return span
}

// row is one CSV record keyed by header name. line is the 1-based line
// number in the source for error messages.
type row struct {
	line   int
	fields map[string]string
}

func readRows(r io.Reader) ([]row, error) {
	reader := csv.NewReader(r)
	reader.Comma = ';'
	reader.TrimLeadingSpace = true
	reader.LazyQuotes = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	for i, h := range header {
		header[i] = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
	}

	var rows []row
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		line, _ := reader.FieldPos(0)
		fields := make(map[string]string, len(header))
		for i, h := range header {
			if i < len(record) {
				fields[h] = strings.TrimSpace(record[i])
			}
		}
		rows = append(rows, row{line: line, fields: fields})
	}
	if len(rows) == 0 {
		return nil, ErrNoRows
	}
	return rows, nil
}

func decodeAll[T any](rows []row, decode func(row) (T, error)) ([]T, error) {
	out := make([]T, 0, len(rows))
	for _, r := range rows {
		v, err := decode(r)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", r.line, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func (r row) str(key string) (string, error) {
	v, ok := r.fields[key]
	if !ok || v == "" {
		return "", fmt.Errorf("column %q is required", key)
	}
	return v, nil
}

func (r row) optionalInt(key string) (int64, error) {
	v := r.fields[key]
	if v == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("column %q: %w", key, err)
	}
	return n, nil
}

func (r row) int(key string) (int64, error) {
	if _, err := r.str(key); err != nil {
		return 0, err
	}
	return r.optionalInt(key)
}

func (r row) date(key string) (time.Time, error) {
	v, err := r.str(key)
	if err != nil {
		return time.Time{}, err
	}
	d, err := models.ParseDay(v)
	if err != nil {
		return time.Time{}, fmt.Errorf("column %q: %w", key, err)
	}
	return d, nil
}

// services accepts a JSON list, also written with single quotes.
func (r row) services(key string) (models.Services, error) {
	v := r.fields[key]
	if v == "" {
		return models.Services{}, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(strings.ReplaceAll(v, "'", `"`)), &out); err != nil {
		return nil, fmt.Errorf("column %q: %w", key, err)
	}
	return out, nil
}

func decodeHotel(r row) (models.Hotel, error) {
	var h models.Hotel
	var err error
	if h.ID, err = r.optionalInt("id"); err != nil {
		return h, err
	}
	if h.Name, err = r.str("name"); err != nil {
		return h, err
	}
	if h.Location, err = r.str("location"); err != nil {
		return h, err
	}
	if h.Services, err = r.services("services"); err != nil {
		return h, err
	}
	quantity, err := r.optionalInt("rooms_quantity")
	if err != nil {
		return h, err
	}
	h.RoomsQuantity = int(quantity)
	h.ImageID, err = r.optionalInt("image_id")
	return h, err
}

func decodeRoom(r row) (models.Room, error) {
	var m models.Room
	var err error
	if m.ID, err = r.optionalInt("id"); err != nil {
		return m, err
	}
	if m.HotelID, err = r.int("hotel_id"); err != nil {
		return m, err
	}
	if m.Name, err = r.str("name"); err != nil {
		return m, err
	}
	m.Description = r.fields["description"]
	if m.Price, err = r.int("price"); err != nil {
		return m, err
	}
	if m.Services, err = r.services("services"); err != nil {
		return m, err
	}
	quantity, err := r.int("quantity")
	if err != nil {
		return m, err
	}
	if quantity < 0 || m.Price < 0 {
		return m, fmt.Errorf("price and quantity must not be negative")
	}
	m.Quantity = int(quantity)
	m.ImageID, err = r.optionalInt("image_id")
	return m, err
}

func decodeBooking(r row) (models.Booking, error) {
	var b models.Booking
	var err error
	if b.ID, err = r.optionalInt("id"); err != nil {
		return b, err
	}
	if b.RoomID, err = r.int("room_id"); err != nil {
		return b, err
	}
	if b.UserID, err = r.int("user_id"); err != nil {
		return b, err
	}
	if b.Price, err = r.int("price"); err != nil {
		return b, err
	}
	if b.DateFrom, err = r.date("date_from"); err != nil {
		return b, err
	}
	if b.DateTo, err = r.date("date_to"); err != nil {
		return b, err
	}
	if !b.DateFrom.Before(b.DateTo) {
		return b, fmt.Errorf("%w: %s", models.ErrInvalidDateRange, b.Stay())
	}
	return b, nil
}
