package availability

import (
	"context"
	"errors"
	"testing"
	"time"

	"hotelbook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) time.Time {
	t, err := time.Parse(models.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

type fakeReader struct {
	room     *models.Room
	bookings []models.Booking
	err      error
}

func (f *fakeReader) GetRoom(_ context.Context, roomID int64) (*models.Room, error) {
	if f.room == nil || f.room.ID != roomID {
		return nil, models.ErrRoomNotFound
	}
	return f.room, nil
}

func (f *fakeReader) CountOverlapping(_ context.Context, roomID int64, stay models.Stay) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	n := 0
	for _, b := range f.bookings {
		if b.RoomID == roomID && Overlaps(b.DateFrom, b.DateTo, stay.From, stay.To) {
			n++
		}
	}
	return n, nil
}

func (f *fakeReader) ListOverlapping(_ context.Context, roomID int64, stay models.Stay) ([]models.Booking, error) {
	var out []models.Booking
	for _, b := range f.bookings {
		if b.RoomID == roomID && Overlaps(b.DateFrom, b.DateTo, stay.From, stay.To) {
			out = append(out, b)
		}
	}
	return out, nil
}

func booking(from, to string) models.Booking {
	return models.Booking{RoomID: 1, DateFrom: d(from), DateTo: d(to)}
}

func TestOverlaps(t *testing.T) {
	tests := []struct {
		name                 string
		exFrom, exTo, qf, qt string
		want                 bool
	}{
		{"checkout equals checkin", "2024-06-01", "2024-06-05", "2024-06-05", "2024-06-10", false},
		{"query ends on existing start", "2024-06-05", "2024-06-10", "2024-06-01", "2024-06-05", false},
		{"partial overlap", "2024-06-01", "2024-06-05", "2024-06-04", "2024-06-08", true},
		{"contained", "2024-06-01", "2024-06-10", "2024-06-03", "2024-06-04", true},
		{"containing", "2024-06-03", "2024-06-04", "2024-06-01", "2024-06-10", true},
		{"identical", "2024-07-01", "2024-07-03", "2024-07-01", "2024-07-03", true},
		{"disjoint", "2024-07-01", "2024-07-03", "2024-08-01", "2024-08-03", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Overlaps(d(tt.exFrom), d(tt.exTo), d(tt.qf), d(tt.qt)))
		})
	}
}

func TestOverlapSQL(t *testing.T) {
	assert.Equal(t, "(b.date_from < ? AND ? < b.date_to)", OverlapSQL("b.date_from", "b.date_to", "?", "?"))
	assert.Equal(t, "(date_from < $3 AND $2 < date_to)", OverlapSQL("date_from", "date_to", "$2", "$3"))
}

func TestRemaining(t *testing.T) {
	assert.Equal(t, 1, Remaining(2, 1))
	assert.Equal(t, 0, Remaining(1, 1))
	assert.Equal(t, 0, Remaining(1, 3))
}

func TestPeakOccupancy(t *testing.T) {
	window := models.NewStay(d("2024-06-04"), d("2024-06-08"))
	tests := []struct {
		name     string
		bookings []models.Booking
		want     int
	}{
		{"none", nil, 0},
		{"back to back", []models.Booking{booking("2024-06-01", "2024-06-05"), booking("2024-06-05", "2024-06-10")}, 1},
		{"shared night", []models.Booking{booking("2024-06-01", "2024-06-06"), booking("2024-06-05", "2024-06-10")}, 2},
		{"outside window", []models.Booking{booking("2024-06-01", "2024-06-04"), booking("2024-06-08", "2024-06-09")}, 0},
		{"nested", []models.Booking{
			booking("2024-06-01", "2024-06-10"),
			booking("2024-06-04", "2024-06-05"),
			booking("2024-06-05", "2024-06-06"),
			booking("2024-06-05", "2024-06-07"),
		}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PeakOccupancy(tt.bookings, window))
		})
	}
}

func TestRoomsLeft(t *testing.T) {
	ctx := context.Background()
	r := &fakeReader{
		room: &models.Room{ID: 1, Quantity: 2, Price: 100},
		bookings: []models.Booking{
			{RoomID: 1, DateFrom: d("2024-07-01"), DateTo: d("2024-07-03")},
			{RoomID: 2, DateFrom: d("2024-07-01"), DateTo: d("2024-07-03")},
		},
	}

	left, err := RoomsLeft(ctx, r, 1, models.NewStay(d("2024-07-02"), d("2024-07-04")))
	require.NoError(t, err)
	assert.Equal(t, 1, left)

	left, err = RoomsLeft(ctx, r, 1, models.NewStay(d("2024-07-03"), d("2024-07-05")))
	require.NoError(t, err)
	assert.Equal(t, 2, left)

	_, err = RoomsLeft(ctx, r, 9, models.NewStay(d("2024-07-03"), d("2024-07-05")))
	assert.ErrorIs(t, err, models.ErrRoomNotFound)
}

func TestCheck_BackToBackStaysAreFull(t *testing.T) {
	r := &fakeReader{
		room:     &models.Room{ID: 1, Quantity: 1},
		bookings: []models.Booking{booking("2024-06-01", "2024-06-05"), booking("2024-06-05", "2024-06-10")},
	}

	_, left, err := Check(context.Background(), r, 1, models.NewStay(d("2024-06-04"), d("2024-06-08")))
	require.NoError(t, err)
	assert.Equal(t, 0, left)
}

func TestCheck_Oversold(t *testing.T) {
	r := &fakeReader{
		room: &models.Room{ID: 1, Quantity: 1},
		bookings: []models.Booking{
			{RoomID: 1, DateFrom: d("2024-07-01"), DateTo: d("2024-07-03")},
			{RoomID: 1, DateFrom: d("2024-07-02"), DateTo: d("2024-07-04")},
		},
	}

	room, left, err := Check(context.Background(), r, 1, models.NewStay(d("2024-07-02"), d("2024-07-03")))
	assert.ErrorIs(t, err, ErrOversold)
	assert.Equal(t, 0, left)
	require.NotNil(t, room)
	assert.Equal(t, int64(1), room.ID)
}

func TestCheck_StorageError(t *testing.T) {
	boom := errors.New("disk I/O error")
	r := &fakeReader{room: &models.Room{ID: 1, Quantity: 1}, err: boom}

	_, _, err := Check(context.Background(), r, 1, models.NewStay(d("2024-07-02"), d("2024-07-03")))
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrOversold)
}
