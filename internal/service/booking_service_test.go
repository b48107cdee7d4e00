package service

import (
	"context"
	"sync"
	"testing"

	"hotelbook/internal/availability"
	"hotelbook/internal/events"
	"hotelbook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBookingService(t *testing.T, quantity int, price int64) (*BookingService, fixture, *fakePublisher, *fakeQueue) {
	t.Helper()
	db := newTestDB(t)
	fx := seed(t, db, "sochi", quantity, price)
	pub := &fakePublisher{}
	queue := &fakeQueue{}
	svc := NewBookingService(db, pub, queue, []string{models.TaskConfirmationEmail, models.TaskLedgerAppend}, 0, nopLogger())
	return svc, fx, pub, queue
}

func TestValidateStay(t *testing.T) {
	svc := NewBookingService(nil, nil, nil, nil, 31, nopLogger())

	tests := []struct {
		name    string
		from    string
		to      string
		wantErr error
	}{
		{"one night", "2024-06-01", "2024-06-02", nil},
		{"max stay", "2024-06-01", "2024-07-02", nil},
		{"reversed", "2024-06-05", "2024-06-01", models.ErrInvalidDateRange},
		{"zero nights", "2024-06-05", "2024-06-05", models.ErrInvalidDateRange},
		{"too long", "2024-06-01", "2024-07-03", models.ErrStayTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.ValidateStay(stay(t, tt.from, tt.to))
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestAdmitBooking_Boundary(t *testing.T) {
	svc, fx, _, _ := newBookingService(t, 1, 100)
	ctx := context.Background()
	req := func(from, to string) models.BookingRequest {
		return models.BookingRequest{UserID: fx.user.ID, RoomID: fx.room.ID, Stay: stay(t, from, to)}
	}

	first := svc.AdmitBooking(ctx, req("2024-06-01", "2024-06-05"))
	require.Equal(t, models.OutcomeAdmitted, first.Outcome)

	adjacent := svc.AdmitBooking(ctx, req("2024-06-05", "2024-06-10"))
	assert.Equal(t, models.OutcomeAdmitted, adjacent.Outcome, "checkout day may be the next check-in day")

	before := svc.AdmitBooking(ctx, req("2024-05-28", "2024-06-01"))
	assert.Equal(t, models.OutcomeAdmitted, before.Outcome, "a stay ending on an existing check-in day does not overlap")

	overlapping := svc.AdmitBooking(ctx, req("2024-06-04", "2024-06-08"))
	assert.Equal(t, models.OutcomeFullyBooked, overlapping.Outcome)
	assert.Nil(t, overlapping.Booking)
	assert.NoError(t, overlapping.Err)
}

func TestAdmitBooking_Scenarios(t *testing.T) {
	ctx := context.Background()

	t.Run("quantity one", func(t *testing.T) {
		svc, fx, pub, queue := newBookingService(t, 1, 3500)
		s := stay(t, "2024-07-01", "2024-07-03")

		left, err := svc.RoomsLeft(ctx, fx.room.ID, s)
		require.NoError(t, err)
		assert.Equal(t, 1, left)

		res := svc.AdmitBooking(ctx, models.BookingRequest{UserID: fx.user.ID, RoomID: fx.room.ID, Stay: s})
		require.Equal(t, models.OutcomeAdmitted, res.Outcome)
		b := res.Booking
		assert.NotZero(t, b.ID)
		assert.Equal(t, fx.user.ID, b.UserID)
		assert.Equal(t, fx.room.ID, b.RoomID)
		assert.Equal(t, s.From, b.DateFrom)
		assert.Equal(t, s.To, b.DateTo)
		assert.Equal(t, int64(3500), b.Price)
		assert.Equal(t, 2, b.TotalDays())
		assert.Equal(t, int64(7000), b.TotalCost())

		left, err = svc.RoomsLeft(ctx, fx.room.ID, s)
		require.NoError(t, err)
		assert.Equal(t, 0, left)

		full := svc.AdmitBooking(ctx, models.BookingRequest{UserID: fx.user.ID, RoomID: fx.room.ID, Stay: stay(t, "2024-07-02", "2024-07-04")})
		assert.Equal(t, models.OutcomeFullyBooked, full.Outcome)

		assert.Equal(t, []string{events.EventBookingCreated}, pub.types())
		require.Len(t, queue.queued, 2)
		assert.Equal(t, models.TaskConfirmationEmail, queue.queued[0].TaskType)
		assert.Equal(t, "sochi@example.com", queue.queued[0].Notice.Email)
		assert.Equal(t, "Hotel sochi", queue.queued[1].Notice.HotelName)
		assert.Equal(t, b.ID, queue.queued[1].Notice.Booking.ID)
	})

	t.Run("quantity two", func(t *testing.T) {
		svc, fx, _, _ := newBookingService(t, 2, 100)
		existing := svc.AdmitBooking(ctx, models.BookingRequest{UserID: fx.user.ID, RoomID: fx.room.ID, Stay: stay(t, "2024-07-01", "2024-07-03")})
		require.Equal(t, models.OutcomeAdmitted, existing.Outcome)

		req := models.BookingRequest{UserID: fx.user.ID, RoomID: fx.room.ID, Stay: stay(t, "2024-07-02", "2024-07-04")}
		left, err := svc.RoomsLeft(ctx, fx.room.ID, req.Stay)
		require.NoError(t, err)
		assert.Equal(t, 1, left)

		assert.Equal(t, models.OutcomeAdmitted, svc.AdmitBooking(ctx, req).Outcome)
		assert.Equal(t, models.OutcomeFullyBooked, svc.AdmitBooking(ctx, req).Outcome)
	})
}

func TestAdmitBooking_SequentialIdenticalRequests(t *testing.T) {
	svc, fx, _, _ := newBookingService(t, 3, 100)
	ctx := context.Background()
	req := models.BookingRequest{UserID: fx.user.ID, RoomID: fx.room.ID, Stay: stay(t, "2024-08-01", "2024-08-02")}

	ids := map[int64]bool{}
	for i := 0; i < 3; i++ {
		res := svc.AdmitBooking(ctx, req)
		require.Equal(t, models.OutcomeAdmitted, res.Outcome)
		assert.False(t, ids[res.Booking.ID], "each admission creates a new row")
		ids[res.Booking.ID] = true
	}
	assert.Equal(t, models.OutcomeFullyBooked, svc.AdmitBooking(ctx, req).Outcome)

	bookings, err := svc.ListUserBookings(ctx, fx.user.ID)
	require.NoError(t, err)
	assert.Len(t, bookings, 3)
}

func TestAdmitBooking_PriceSnapshot(t *testing.T) {
	db := newTestDB(t)
	fx := seed(t, db, "kazan", 1, 1200)
	svc := NewBookingService(db, nil, nil, nil, 0, nopLogger())
	catalog := NewCatalogService(db, nil, nil, 0, 0, nopLogger())
	ctx := context.Background()

	res := svc.AdmitBooking(ctx, models.BookingRequest{UserID: fx.user.ID, RoomID: fx.room.ID, Stay: stay(t, "2024-09-01", "2024-09-04")})
	require.Equal(t, models.OutcomeAdmitted, res.Outcome)
	assert.Equal(t, int64(3600), res.Booking.TotalCost())

	require.NoError(t, catalog.UpdateRoomPrice(ctx, fx.room.ID, 5000))

	bookings, err := svc.ListUserBookings(ctx, fx.user.ID)
	require.NoError(t, err)
	require.Len(t, bookings, 1)
	assert.Equal(t, int64(1200), bookings[0].Price)
	assert.Equal(t, int64(3600), bookings[0].TotalCost())

	next := svc.AdmitBooking(ctx, models.BookingRequest{UserID: fx.user.ID, RoomID: fx.room.ID, Stay: stay(t, "2024-09-04", "2024-09-05")})
	require.Equal(t, models.OutcomeAdmitted, next.Outcome)
	assert.Equal(t, int64(5000), next.Booking.Price)
}

func TestAdmitBooking_Failures(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown room", func(t *testing.T) {
		svc, fx, pub, _ := newBookingService(t, 1, 100)
		res := svc.AdmitBooking(ctx, models.BookingRequest{UserID: fx.user.ID, RoomID: fx.room.ID + 100, Stay: stay(t, "2024-06-01", "2024-06-02")})
		assert.Equal(t, models.OutcomeFailed, res.Outcome)
		assert.ErrorIs(t, res.Err, models.ErrRoomNotFound)
		assert.Empty(t, pub.types())
	})

	t.Run("cancelled context", func(t *testing.T) {
		svc, fx, _, _ := newBookingService(t, 1, 100)
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		res := svc.AdmitBooking(cctx, models.BookingRequest{UserID: fx.user.ID, RoomID: fx.room.ID, Stay: stay(t, "2024-06-01", "2024-06-02")})
		assert.Equal(t, models.OutcomeFailed, res.Outcome)
		assert.ErrorIs(t, res.Err, context.Canceled)

		bookings, err := svc.ListUserBookings(ctx, fx.user.ID)
		require.NoError(t, err)
		assert.Empty(t, bookings)
	})

	t.Run("oversold room", func(t *testing.T) {
		db := newTestDB(t)
		fx := seed(t, db, "omsk", 1, 100)
		_, err := db.BulkInsertBookings(ctx, []models.Booking{
			{RoomID: fx.room.ID, UserID: fx.user.ID, DateFrom: stay(t, "2024-06-01", "2024-06-03").From, DateTo: stay(t, "2024-06-01", "2024-06-03").To, Price: 100},
			{RoomID: fx.room.ID, UserID: fx.user.ID, DateFrom: stay(t, "2024-06-02", "2024-06-04").From, DateTo: stay(t, "2024-06-02", "2024-06-04").To, Price: 100},
		})
		require.NoError(t, err)
		svc := NewBookingService(db, nil, nil, nil, 0, nopLogger())

		s := stay(t, "2024-06-02", "2024-06-03")
		res := svc.AdmitBooking(ctx, models.BookingRequest{UserID: fx.user.ID, RoomID: fx.room.ID, Stay: s})
		assert.Equal(t, models.OutcomeFailed, res.Outcome)
		assert.ErrorIs(t, res.Err, availability.ErrOversold)

		left, err := svc.RoomsLeft(ctx, fx.room.ID, s)
		require.NoError(t, err)
		assert.Equal(t, 0, left)
	})

	t.Run("user without account", func(t *testing.T) {
		svc, fx, pub, queue := newBookingService(t, 1, 100)
		res := svc.AdmitBooking(ctx, models.BookingRequest{UserID: fx.user.ID + 100, RoomID: fx.room.ID, Stay: stay(t, "2024-06-01", "2024-06-02")})
		assert.Equal(t, models.OutcomeFailed, res.Outcome)
		assert.Empty(t, pub.types())
		assert.Empty(t, queue.queued)

		left, err := svc.RoomsLeft(ctx, fx.room.ID, stay(t, "2024-06-01", "2024-06-02"))
		require.NoError(t, err)
		assert.Equal(t, 1, left)
	})
}

func TestAdmitBooking_OutboxTasks(t *testing.T) {
	ctx := context.Background()

	t.Run("committed with the booking", func(t *testing.T) {
		svc, fx, _, _ := newBookingService(t, 1, 100)
		s := stay(t, "2024-06-01", "2024-06-03")

		res := svc.AdmitBooking(ctx, models.BookingRequest{UserID: fx.user.ID, RoomID: fx.room.ID, Stay: s})
		require.Equal(t, models.OutcomeAdmitted, res.Outcome)
		full := svc.AdmitBooking(ctx, models.BookingRequest{UserID: fx.user.ID, RoomID: fx.room.ID, Stay: s})
		require.Equal(t, models.OutcomeFullyBooked, full.Outcome)

		tasks, err := fx.db.GetPendingOutboxTasks(ctx, 10)
		require.NoError(t, err)
		require.Len(t, tasks, 2)
		for _, task := range tasks {
			assert.Equal(t, res.Booking.ID, task.BookingID)
		}
	})

	t.Run("request cancelled after commit", func(t *testing.T) {
		svc, fx, pub, queue := newBookingService(t, 1, 100)
		cctx, cancel := context.WithCancel(ctx)
		defer cancel()
		pub.onEvent = func(string) { cancel() }

		res := svc.AdmitBooking(cctx, models.BookingRequest{UserID: fx.user.ID, RoomID: fx.room.ID, Stay: stay(t, "2024-06-01", "2024-06-02")})
		require.Equal(t, models.OutcomeAdmitted, res.Outcome)
		require.Error(t, cctx.Err())

		tasks, err := fx.db.GetPendingOutboxTasks(ctx, 10)
		require.NoError(t, err)
		assert.Len(t, tasks, 2)

		require.Len(t, queue.queued, 2)
		for _, q := range queue.queued {
			assert.NoError(t, q.Err, "scheduling runs detached from the request")
			assert.Equal(t, res.Booking.ID, q.Notice.Booking.ID)
		}
	})
}

func TestAdmitBooking_Concurrent(t *testing.T) {
	for _, quantity := range []int{1, 2, 5} {
		db := newFileDB(t)
		fx := seed(t, db, "tver", quantity, 100)
		svc := NewBookingService(db, nil, nil, nil, 0, nopLogger())
		req := models.BookingRequest{UserID: fx.user.ID, RoomID: fx.room.ID, Stay: stay(t, "2024-07-01", "2024-07-03")}

		const n = 20
		var wg sync.WaitGroup
		outcomes := make(chan models.AdmissionResult, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				outcomes <- svc.AdmitBooking(context.Background(), req)
			}()
		}
		wg.Wait()
		close(outcomes)

		counts := map[models.AdmissionOutcome]int{}
		for res := range outcomes {
			counts[res.Outcome]++
			if res.Outcome == models.OutcomeFailed {
				t.Logf("unexpected failure: %v", res.Err)
			}
		}
		assert.Equal(t, quantity, counts[models.OutcomeAdmitted], "quantity %d", quantity)
		assert.Equal(t, n-quantity, counts[models.OutcomeFullyBooked], "quantity %d", quantity)

		left, err := svc.RoomsLeft(context.Background(), fx.room.ID, req.Stay)
		require.NoError(t, err)
		assert.Equal(t, 0, left)
	}
}

func TestDeleteBooking(t *testing.T) {
	svc, fx, pub, _ := newBookingService(t, 1, 100)
	ctx := context.Background()
	s := stay(t, "2024-06-01", "2024-06-03")

	res := svc.AdmitBooking(ctx, models.BookingRequest{UserID: fx.user.ID, RoomID: fx.room.ID, Stay: s})
	require.Equal(t, models.OutcomeAdmitted, res.Outcome)

	assert.ErrorIs(t, svc.DeleteBooking(ctx, fx.user.ID+1, res.Booking.ID), models.ErrBookingNotFound)
	assert.ErrorIs(t, svc.DeleteBooking(ctx, fx.user.ID, res.Booking.ID+100), models.ErrBookingNotFound)

	require.NoError(t, svc.DeleteBooking(ctx, fx.user.ID, res.Booking.ID))
	assert.Equal(t, []string{events.EventBookingCreated, events.EventBookingDeleted}, pub.types())

	again := svc.AdmitBooking(ctx, models.BookingRequest{UserID: fx.user.ID, RoomID: fx.room.ID, Stay: s})
	assert.Equal(t, models.OutcomeAdmitted, again.Outcome, "a delete frees capacity")
}

func TestExportBookings(t *testing.T) {
	svc, fx, _, _ := newBookingService(t, 2, 100)
	ctx := context.Background()

	for _, r := range [][2]string{{"2024-06-01", "2024-06-03"}, {"2024-06-10", "2024-06-12"}} {
		res := svc.AdmitBooking(ctx, models.BookingRequest{UserID: fx.user.ID, RoomID: fx.room.ID, Stay: stay(t, r[0], r[1])})
		require.Equal(t, models.OutcomeAdmitted, res.Outcome)
	}

	rows, err := svc.ExportBookings(ctx, stay(t, "2024-06-03", "2024-06-11"))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Hotel sochi", rows[0].HotelName)
	assert.Equal(t, "Standard", rows[0].RoomName)

	_, err = svc.ExportBookings(ctx, models.Stay{From: rows[0].DateTo, To: rows[0].DateFrom})
	assert.ErrorIs(t, err, models.ErrInvalidDateRange)
}
