package postgres

import (
	"context"
	"fmt"

	"hotelbook/internal/availability"
	"hotelbook/internal/domain"
	"hotelbook/internal/models"

	"github.com/jackc/pgx/v5"
)

const bookingColumns = `id, room_id, user_id, date_from, date_to, price, created_at`

type roomTx struct {
	tx pgx.Tx
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
	notice := &models.BookingNotice{Booking: *booking}
	err := t.tx.QueryRow(ctx, `
        SELECT u.email, r.name, h.name
        FROM users u, rooms r
        JOIN hotels h ON h.id = r.hotel_id
        WHERE u.id = $1 AND r.id = $2`, booking.UserID, booking.RoomID,
	).Scan(&notice.Email, &notice.RoomName, &notice.HotelName)
	if isNotFound(err) {
		return nil, models.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load booking notice: %w", err)
	}
	return notice, nil
}

func (t *roomTx) InsertOutboxTask(ctx context.Context, task *models.OutboxTask) error {
	return insertOutboxTask(ctx, t.tx, task)
}

// InRoomTx locks the room row for the lifetime of the transaction. Under
// READ COMMITTED every statement after the lock sees bookings committed by
// the previous holder.
func (s *Store) InRoomTx(ctx context.Context, roomID int64, fn func(ctx context.Context, tx domain.RoomTx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin transaction for room %d: %w", roomID, err)
	}
	defer func() { _ = tx.Rollback(context.WithoutCancel(ctx)) }()

	var locked int64
	err = tx.QueryRow(ctx, `SELECT id FROM rooms WHERE id = $1 FOR UPDATE`, roomID).Scan(&locked)
	if isNotFound(err) {
		return models.ErrRoomNotFound
	}
	if err != nil {
		return fmt.Errorf("lock room %d: %w", roomID, err)
	}

	if err := fn(ctx, &roomTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func insertBooking(ctx context.Context, q querier, booking *models.Booking) error {
	err := q.QueryRow(ctx, `
        INSERT INTO bookings (room_id, user_id, date_from, date_to, price)
        VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at`,
		booking.RoomID, booking.UserID, booking.DateFrom, booking.DateTo, booking.Price,
	).Scan(&booking.ID, &booking.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}
	return nil
}

func (s *Store) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	rows, _ := s.pool.Query(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id)
	booking, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[models.Booking])
	if isNotFound(err) {
		return nil, models.ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get booking: %w", err)
	}
	return booking, nil
}

// ListUserBookings outer joins rooms so a booking survives a missing room.
func (s *Store) ListUserBookings(ctx context.Context, userID int64) ([]models.UserBooking, error) {
	rows, _ := s.pool.Query(ctx, `
        SELECT b.id, b.room_id, b.user_id, b.date_from, b.date_to, b.price, b.created_at,
               COALESCE(r.name, '') AS room_name,
               COALESCE(r.description, '') AS room_description,
               COALESCE(r.services, '[]') AS room_services,
               COALESCE(r.image_id, 0) AS room_image_id
        FROM bookings b
        LEFT JOIN rooms r ON r.id = b.room_id
        WHERE b.user_id = $1
        ORDER BY b.date_from, b.id`, userID)
	bookings, err := pgx.CollectRows(rows, pgx.RowToStructByName[models.UserBooking])
	if err != nil {
		return nil, fmt.Errorf("list user bookings: %w", err)
	}
	return bookings, nil
}

func (s *Store) DeleteUserBooking(ctx context.Context, userID, bookingID int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM bookings WHERE id = $1 AND user_id = $2`, bookingID, userID)
	if err != nil {
		return fmt.Errorf("delete booking: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrBookingNotFound
	}
	return nil
}

func (s *Store) ListBookingsOverlapping(ctx context.Context, stay models.Stay) ([]models.BookingReportRow, error) {
	query := `
        SELECT b.id, b.room_id, b.user_id, b.date_from, b.date_to, b.price, b.created_at,
               r.name AS room_name, h.name AS hotel_name, h.location
        FROM bookings b
        JOIN rooms r ON r.id = b.room_id
        JOIN hotels h ON h.id = r.hotel_id
        WHERE ` + availability.OverlapSQL("b.date_from", "b.date_to", "$1", "$2") + `
        ORDER BY b.date_from, b.id`

	rows, _ := s.pool.Query(ctx, query, stay.From, stay.To)
	out, err := pgx.CollectRows(rows, pgx.RowToStructByName[models.BookingReportRow])
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	return out, nil
}
