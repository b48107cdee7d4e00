package postgres

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"hotelbook/internal/availability"
	"hotelbook/internal/domain"
	"hotelbook/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Tests run against a disposable database named by HOTELBOOK_TEST_POSTGRES_DSN;
// every table is truncated before each test.
func setupStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("HOTELBOOK_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("HOTELBOOK_TEST_POSTGRES_DSN is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger := zerolog.Nop()
	s, err := New(ctx, dsn, &logger)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	_, err = s.pool.Exec(ctx, `TRUNCATE outbox_tasks, bookings, rooms, hotels, users RESTART IDENTITY CASCADE`)
	require.NoError(t, err)
	return s
}

func day(s string) time.Time {
	d, err := models.ParseDay(s)
	if err != nil {
		panic(err)
	}
	return d
}

func seed(t *testing.T, s *Store, quantity int) (*models.Room, *models.User) {
	t.Helper()
	ctx := context.Background()

	hotel := &models.Hotel{Name: "Cosmos", Location: "Altai", Services: models.Services{"wifi"}}
	require.NoError(t, s.CreateHotel(ctx, hotel))
	room := &models.Room{HotelID: hotel.ID, Name: "Standard", Price: 4500, Quantity: quantity}
	require.NoError(t, s.CreateRoom(ctx, room))
	user := &models.User{Email: "guest@example.com", HashedPassword: "x"}
	require.NoError(t, s.CreateUser(ctx, user))
	return room, user
}

var errFull = errors.New("full")

func admit(ctx context.Context, s *Store, req models.BookingRequest) error {
	return s.InRoomTx(ctx, req.RoomID, func(ctx context.Context, tx domain.RoomTx) error {
		room, left, err := availability.Check(ctx, tx, req.RoomID, req.Stay)
		if err != nil {
			return err
		}
		if left <= 0 {
			return errFull
		}
		return tx.InsertBooking(ctx, &models.Booking{
			RoomID: req.RoomID, UserID: req.UserID, DateFrom: req.Stay.From, DateTo: req.Stay.To, Price: room.Price,
		})
	})
}

func TestStore_ConcurrentAdmissions(t *testing.T) {
	s := setupStore(t)
	room, user := seed(t, s, 2)
	req := models.BookingRequest{UserID: user.ID, RoomID: room.ID, Stay: models.NewStay(day("2024-07-01"), day("2024-07-03"))}

	const n = 20
	var wg sync.WaitGroup
	results := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- admit(context.Background(), s, req)
		}()
	}
	wg.Wait()
	close(results)

	admitted := 0
	for err := range results {
		if err == nil {
			admitted++
		} else {
			assert.ErrorIs(t, err, errFull)
		}
	}
	assert.Equal(t, 2, admitted)
}

func TestStore_InRoomTx_UnknownRoom(t *testing.T) {
	s := setupStore(t)
	err := s.InRoomTx(context.Background(), 404, func(context.Context, domain.RoomTx) error { return nil })
	assert.ErrorIs(t, err, models.ErrRoomNotFound)
}

func TestStore_BookingsAndSearch(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	room, user := seed(t, s, 1)

	require.NoError(t, admit(ctx, s, models.BookingRequest{UserID: user.ID, RoomID: room.ID, Stay: models.NewStay(day("2024-06-01"), day("2024-06-05"))}))
	require.NoError(t, admit(ctx, s, models.BookingRequest{UserID: user.ID, RoomID: room.ID, Stay: models.NewStay(day("2024-06-05"), day("2024-06-10"))}))
	assert.ErrorIs(t, admit(ctx, s, models.BookingRequest{UserID: user.ID, RoomID: room.ID, Stay: models.NewStay(day("2024-06-04"), day("2024-06-08"))}), errFull)

	bookings, err := s.ListUserBookings(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, bookings, 2)
	assert.Equal(t, day("2024-06-01"), bookings[0].DateFrom.UTC())
	assert.Equal(t, "Standard", bookings[0].RoomName)
	assert.Equal(t, models.Services{}, bookings[0].RoomServices)

	hotels, err := s.SearchHotels(ctx, "alt", models.NewStay(day("2024-06-10"), day("2024-06-12")))
	require.NoError(t, err)
	require.Len(t, hotels, 1)
	assert.Equal(t, 1, hotels[0].RoomsLeft)

	hotels, err = s.SearchHotels(ctx, "alt", models.NewStay(day("2024-06-04"), day("2024-06-06")))
	require.NoError(t, err)
	assert.Empty(t, hotels)

	rooms, err := s.ListRooms(ctx, room.HotelID, models.NewStay(day("2024-06-04"), day("2024-06-06")))
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, -1, rooms[0].RoomsLeft)

	require.NoError(t, s.UpdateRoomPrice(ctx, room.ID, 9000))
	b, err := s.GetBooking(ctx, bookings[0].ID)
	require.NoError(t, err)
	assert.Equal(t, int64(4500), b.Price)

	assert.ErrorIs(t, s.DeleteUserBooking(ctx, user.ID+1, b.ID), models.ErrBookingNotFound)
	require.NoError(t, s.DeleteUserBooking(ctx, user.ID, b.ID))

	report, err := s.ListBookingsOverlapping(ctx, models.NewStay(day("2024-06-01"), day("2024-06-30")))
	require.NoError(t, err)
	require.Len(t, report, 1)
	assert.Equal(t, "Cosmos", report[0].HotelName)
}

func TestStore_Users(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	u := &models.User{Email: "A@example.com", HashedPassword: "h"}
	require.NoError(t, s.CreateUser(ctx, u))
	assert.ErrorIs(t, s.CreateUser(ctx, &models.User{Email: "a@EXAMPLE.com", HashedPassword: "h"}), models.ErrUserExists)

	got, err := s.GetUserByEmail(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = s.GetUserByID(ctx, 999)
	assert.ErrorIs(t, err, models.ErrUserNotFound)
}

func TestStore_BulkAndOutbox(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	_, err := s.BulkInsertHotels(ctx, []models.Hotel{{ID: 5, Name: "Skala", Location: "Sochi"}})
	require.NoError(t, err)
	h := &models.Hotel{Name: "Next", Location: "Sochi"}
	require.NoError(t, s.CreateHotel(ctx, h))
	assert.Equal(t, int64(6), h.ID)

	task := &models.OutboxTask{TaskType: models.TaskLedgerAppend, BookingID: 1, Payload: "{}"}
	require.NoError(t, s.CreateOutboxTask(ctx, task))
	pending, err := s.GetPendingOutboxTasks(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	require.NoError(t, s.UpdateOutboxTaskStatus(ctx, task.ID, models.TaskStatusCompleted, "", nil))
	pending, err = s.GetPendingOutboxTasks(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestStore_OutboxTaskInAdmission(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	room, user := seed(t, s, 1)

	err := s.InRoomTx(ctx, room.ID, func(ctx context.Context, tx domain.RoomTx) error {
		b := &models.Booking{RoomID: room.ID, UserID: user.ID, DateFrom: day("2024-06-01"), DateTo: day("2024-06-03"), Price: room.Price}
		if err := tx.InsertBooking(ctx, b); err != nil {
			return err
		}
		notice, err := tx.LoadNotice(ctx, b)
		if err != nil {
			return err
		}
		assert.Equal(t, "guest@example.com", notice.Email)
		assert.Equal(t, "Cosmos", notice.HotelName)
		task, err := models.NewOutboxTask(models.TaskLedgerAppend, notice)
		if err != nil {
			return err
		}
		return tx.InsertOutboxTask(ctx, &task)
	})
	require.NoError(t, err)

	tasks, err := s.GetPendingOutboxTasks(ctx, 10)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, models.TaskLedgerAppend, tasks[0].TaskType)
}
