package postgres

import (
	"context"
	"fmt"

	"hotelbook/internal/models"

	"github.com/jackc/pgx/v5"
)

func (s *Store) BulkInsertHotels(ctx context.Context, hotels []models.Hotel) (int, error) {
	return s.bulk(ctx, "hotels", len(hotels), func(tx pgx.Tx, i int) error {
		h := hotels[i]
		_, err := tx.Exec(ctx, `
            INSERT INTO hotels (id, name, location, services, rooms_quantity, image_id)
            VALUES (COALESCE(NULLIF($1::bigint, 0), nextval(pg_get_serial_sequence('hotels', 'id'))), $2, $3, $4, $5, $6)`,
			h.ID, h.Name, h.Location, h.Services, h.RoomsQuantity, h.ImageID)
		return err
	})
}

func (s *Store) BulkInsertRooms(ctx context.Context, rooms []models.Room) (int, error) {
	return s.bulk(ctx, "rooms", len(rooms), func(tx pgx.Tx, i int) error {
		r := rooms[i]
		_, err := tx.Exec(ctx, `
            INSERT INTO rooms (id, hotel_id, name, description, price, services, quantity, image_id)
            VALUES (COALESCE(NULLIF($1::bigint, 0), nextval(pg_get_serial_sequence('rooms', 'id'))), $2, $3, $4, $5, $6, $7, $8)`,
			r.ID, r.HotelID, r.Name, r.Description, r.Price, r.Services, r.Quantity, r.ImageID)
		return err
	})
}

func (s *Store) BulkInsertBookings(ctx context.Context, bookings []models.Booking) (int, error) {
	return s.bulk(ctx, "bookings", len(bookings), func(tx pgx.Tx, i int) error {
		b := bookings[i]
		_, err := tx.Exec(ctx, `
            INSERT INTO bookings (id, room_id, user_id, date_from, date_to, price)
            VALUES (COALESCE(NULLIF($1::bigint, 0), nextval(pg_get_serial_sequence('bookings', 'id'))), $2, $3, $4, $5, $6)`,
			b.ID, b.RoomID, b.UserID, b.DateFrom, b.DateTo, b.Price)
		return err
	})
}

// bulk inserts n rows in one transaction and moves the table's id sequence
// past any explicit ids.
func (s *Store) bulk(ctx context.Context, table string, n int, insert func(tx pgx.Tx, i int) error) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(context.WithoutCancel(ctx)) }()

	for i := 0; i < n; i++ {
		if err := insert(tx, i); err != nil {
			return 0, fmt.Errorf("insert %s row %d: %w", table, i+1, err)
		}
	}

	_, err = tx.Exec(ctx, fmt.Sprintf(
		`SELECT setval(pg_get_serial_sequence('%[1]s', 'id'), GREATEST((SELECT COALESCE(MAX(id), 0) FROM %[1]s), 1))`, table))
	if err != nil {
		return 0, fmt.Errorf("advance %s sequence: %w", table, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit %s import: %w", table, err)
	}
	return n, nil
}
