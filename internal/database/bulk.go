package database

import (
	"context"
	"fmt"

	"hotelbook/internal/models"

	"github.com/jmoiron/sqlx"
)

// BulkInsertHotels keeps explicit ids from the input; rows with id 0 get a
// generated one.
func (db *DB) BulkInsertHotels(ctx context.Context, hotels []models.Hotel) (int, error) {
	return db.bulk(ctx, "hotels", len(hotels), func(tx *sqlx.Tx, i int) error {
		h := hotels[i]
		_, err := tx.ExecContext(ctx, `
            INSERT INTO hotels (id, name, location, services, rooms_quantity, image_id)
            VALUES (NULLIF(?, 0), ?, ?, ?, ?, ?)`,
			h.ID, h.Name, h.Location, h.Services, h.RoomsQuantity, h.ImageID)
		return err
	})
}

func (db *DB) BulkInsertRooms(ctx context.Context, rooms []models.Room) (int, error) {
	return db.bulk(ctx, "rooms", len(rooms), func(tx *sqlx.Tx, i int) error {
		r := rooms[i]
		_, err := tx.ExecContext(ctx, `
            INSERT INTO rooms (id, hotel_id, name, description, price, services, quantity, image_id)
            VALUES (NULLIF(?, 0), ?, ?, ?, ?, ?, ?, ?)`,
			r.ID, r.HotelID, r.Name, r.Description, r.Price, r.Services, r.Quantity, r.ImageID)
		return err
	})
}

func (db *DB) BulkInsertBookings(ctx context.Context, bookings []models.Booking) (int, error) {
	return db.bulk(ctx, "bookings", len(bookings), func(tx *sqlx.Tx, i int) error {
		b := bookings[i]
		if b.ID != 0 {
			_, err := tx.ExecContext(ctx, `
                INSERT INTO bookings (id, room_id, user_id, date_from, date_to, price)
                VALUES (?, ?, ?, ?, ?, ?)`,
				b.ID, b.RoomID, b.UserID, sqlDay(b.DateFrom), sqlDay(b.DateTo), b.Price)
			return err
		}
		return insertBooking(ctx, tx, &b)
	})
}

func (db *DB) bulk(ctx context.Context, table string, n int, insert func(tx *sqlx.Tx, i int) error) (int, error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i := 0; i < n; i++ {
		if err := insert(tx, i); err != nil {
			return 0, fmt.Errorf("failed to insert %s row %d: %w", table, i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit %s import: %w", table, err)
	}
	return n, nil
}
