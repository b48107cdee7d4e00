package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"hotelbook/internal/availability"
	"hotelbook/internal/domain"
	"hotelbook/internal/models"

	"github.com/jmoiron/sqlx"
)

const bookingColumns = `id, room_id, user_id, date_from, date_to, price, created_at`

// roomTx is an open admission transaction.
type roomTx struct {
	tx *sqlx.Tx
}

func (t *roomTx) GetRoom(ctx context.Context, roomID int64) (*models.Room, error) {
	return getRoom(ctx, t.tx, roomID)
}

func (t *roomTx) CountOverlapping(ctx context.Context, roomID int64, stay models.Stay) (int, error) {
	return countOverlapping(ctx, t.tx, roomID, stay)
}

func (t *roomTx) ListOverlapping(ctx context.Context, roomID int64, stay models.Stay) ([]models.Booking, error) {
	return listOverlapping(ctx, t.tx, roomID, stay)
}

func (t *roomTx) InsertBooking(ctx context.Context, booking *models.Booking) error {
	return insertBooking(ctx, t.tx, booking)
}

func (t *roomTx) LoadNotice(ctx context.Context, booking *models.Booking) (*models.BookingNotice, error) {
	var row struct {
		Email     string `db:"email"`
		RoomName  string `db:"room_name"`
		HotelName string `db:"hotel_name"`
	}
	err := t.tx.GetContext(ctx, &row, `
        SELECT u.email, r.name AS room_name, h.name AS hotel_name
        FROM users u, rooms r
        JOIN hotels h ON h.id = r.hotel_id
        WHERE u.id = ? AND r.id = ?`, booking.UserID, booking.RoomID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load booking notice: %w", err)
	}
	return &models.BookingNotice{
		Booking:   *booking,
		Email:     row.Email,
		HotelName: row.HotelName,
		RoomName:  row.RoomName,
	}, nil
}

func (t *roomTx) InsertOutboxTask(ctx context.Context, task *models.OutboxTask) error {
	return insertOutboxTask(ctx, t.tx, task)
}

// InRoomTx runs fn in an immediate transaction. SQLite has a single writer
// lock, so roomID does not narrow it.
func (db *DB) InRoomTx(ctx context.Context, roomID int64, fn func(ctx context.Context, tx domain.RoomTx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for room %d: %w", roomID, err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(ctx, &roomTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func insertBooking(ctx context.Context, e sqlx.ExecerContext, booking *models.Booking) error {
	if booking.CreatedAt.IsZero() {
		booking.CreatedAt = time.Now().UTC()
	}
	result, err := e.ExecContext(ctx, `
        INSERT INTO bookings (room_id, user_id, date_from, date_to, price, created_at)
        VALUES (?, ?, ?, ?, ?, ?)`,
		booking.RoomID, booking.UserID, sqlDay(booking.DateFrom), sqlDay(booking.DateTo), booking.Price, booking.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert booking: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	booking.ID = id
	return nil
}

func (db *DB) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	var booking models.Booking
	err := db.GetContext(ctx, &booking, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return &booking, nil
}

// ListUserBookings returns the user's bookings with their rooms, outer
// joined so a booking survives a missing room row.
func (db *DB) ListUserBookings(ctx context.Context, userID int64) ([]models.UserBooking, error) {
	bookings := []models.UserBooking{}
	err := db.SelectContext(ctx, &bookings, `
        SELECT b.id, b.room_id, b.user_id, b.date_from, b.date_to, b.price, b.created_at,
               COALESCE(r.name, '') AS room_name,
               COALESCE(r.description, '') AS room_description,
               COALESCE(r.services, '[]') AS room_services,
               COALESCE(r.image_id, 0) AS room_image_id
        FROM bookings b
        LEFT JOIN rooms r ON r.id = b.room_id
        WHERE b.user_id = ?
        ORDER BY b.date_from, b.id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user bookings: %w", err)
	}
	return bookings, nil
}

// DeleteUserBooking removes the booking only when userID owns it.
func (db *DB) DeleteUserBooking(ctx context.Context, userID, bookingID int64) error {
	result, err := db.ExecContext(ctx, `DELETE FROM bookings WHERE id = ? AND user_id = ?`, bookingID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete booking: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return models.ErrBookingNotFound
	}
	return nil
}

func (db *DB) ListBookingsOverlapping(ctx context.Context, stay models.Stay) ([]models.BookingReportRow, error) {
	query := `
        SELECT b.id, b.room_id, b.user_id, b.date_from, b.date_to, b.price, b.created_at,
               r.name AS room_name, h.name AS hotel_name, h.location
        FROM bookings b
        JOIN rooms r ON r.id = b.room_id
        JOIN hotels h ON h.id = r.hotel_id
        WHERE ` + availability.OverlapSQL("b.date_from", "b.date_to", "?1", "?2") + `
        ORDER BY b.date_from, b.id`

	rows := []models.BookingReportRow{}
	if err := db.SelectContext(ctx, &rows, query, sqlDay(stay.From), sqlDay(stay.To)); err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	return rows, nil
}
