package database

import (
	"context"
	"testing"

	"hotelbook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetHotel(t *testing.T) {
	db := setupTestDB(t)
	f := seedRoom(t, db, "Altai", 1, 100)
	ctx := context.Background()

	got, err := db.GetHotel(ctx, f.hotel.ID)
	require.NoError(t, err)
	assert.Equal(t, "Hotel Altai", got.Name)
	assert.Equal(t, models.Services{"wifi"}, got.Services)

	_, err = db.GetHotel(ctx, 999)
	assert.ErrorIs(t, err, models.ErrHotelNotFound)
}

func TestSearchHotels(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	altai := seedRoom(t, db, "Altai Republic", 1, 100)
	sochi := seedRoom(t, db, "Sochi", 2, 100)
	second := &models.Room{HotelID: altai.hotel.ID, Name: "Suite", Price: 300, Quantity: 2}
	require.NoError(t, db.CreateRoom(ctx, second))

	book(t, db, altai.room.ID, altai.user.ID, "2024-06-01", "2024-06-05")
	book(t, db, second.ID, altai.user.ID, "2024-06-01", "2024-06-05")
	book(t, db, second.ID, altai.user.ID, "2024-06-02", "2024-06-03")
	book(t, db, sochi.room.ID, sochi.user.ID, "2024-06-01", "2024-06-05")

	t.Run("fully booked hotel is excluded", func(t *testing.T) {
		hotels, err := db.SearchHotels(ctx, "altai", stay("2024-06-02", "2024-06-04"))
		require.NoError(t, err)
		assert.Empty(t, hotels)
	})

	t.Run("sums free units across rooms", func(t *testing.T) {
		hotels, err := db.SearchHotels(ctx, "ALTAI", stay("2024-06-04", "2024-06-06"))
		require.NoError(t, err)
		require.Len(t, hotels, 1)
		assert.Equal(t, altai.hotel.ID, hotels[0].ID)
		assert.Equal(t, 1, hotels[0].RoomsLeft)
	})

	t.Run("checkout day is free", func(t *testing.T) {
		hotels, err := db.SearchHotels(ctx, "", stay("2024-06-05", "2024-06-07"))
		require.NoError(t, err)
		require.Len(t, hotels, 2)
		assert.Equal(t, 3, hotels[0].RoomsLeft)
		assert.Equal(t, 2, hotels[1].RoomsLeft)
	})

	t.Run("like wildcards are literal", func(t *testing.T) {
		hotels, err := db.SearchHotels(ctx, "%", stay("2024-06-05", "2024-06-07"))
		require.NoError(t, err)
		assert.Empty(t, hotels)
	})
}

func TestSearchHotels_OversoldRoomDoesNotHideOthers(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	f := seedRoom(t, db, "Altai", 1, 100)
	spare := &models.Room{HotelID: f.hotel.ID, Name: "Suite", Price: 300, Quantity: 1}
	require.NoError(t, db.CreateRoom(ctx, spare))

	book(t, db, f.room.ID, f.user.ID, "2024-06-01", "2024-06-05")
	book(t, db, f.room.ID, f.user.ID, "2024-06-01", "2024-06-05")

	hotels, err := db.SearchHotels(ctx, "Altai", stay("2024-06-01", "2024-06-02"))
	require.NoError(t, err)
	require.Len(t, hotels, 1)
	assert.Equal(t, 1, hotels[0].RoomsLeft)
}

func TestListRooms(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	f := seedRoom(t, db, "Altai", 2, 100)
	suite := &models.Room{HotelID: f.hotel.ID, Name: "Suite", Price: 300, Quantity: 1, Services: models.Services{"spa"}}
	require.NoError(t, db.CreateRoom(ctx, suite))
	book(t, db, f.room.ID, f.user.ID, "2024-06-01", "2024-06-05")

	rooms, err := db.ListRooms(ctx, f.hotel.ID, stay("2024-06-03", "2024-06-06"))
	require.NoError(t, err)
	require.Len(t, rooms, 2)
	assert.Equal(t, "Standard", rooms[0].Name)
	assert.Equal(t, 1, rooms[0].RoomsLeft)
	assert.Equal(t, "Suite", rooms[1].Name)
	assert.Equal(t, 1, rooms[1].RoomsLeft)
	assert.Equal(t, models.Services{"spa"}, rooms[1].Services)

	empty, err := db.ListRooms(ctx, 999, stay("2024-06-03", "2024-06-06"))
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestUpdateRoomPrice(t *testing.T) {
	db := setupTestDB(t)
	f := seedRoom(t, db, "Altai", 1, 100)
	ctx := context.Background()
	b := book(t, db, f.room.ID, f.user.ID, "2024-06-01", "2024-06-03")

	require.NoError(t, db.UpdateRoomPrice(ctx, f.room.ID, 250))

	room, err := db.GetRoom(ctx, f.room.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(250), room.Price)

	got, err := db.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), got.Price)
	assert.Equal(t, int64(200), got.TotalCost())

	assert.ErrorIs(t, db.UpdateRoomPrice(ctx, 999, 1), models.ErrRoomNotFound)
}

func TestGetRoom_NotFound(t *testing.T) {
	db := setupTestDB(t)
	_, err := db.GetRoom(context.Background(), 42)
	assert.ErrorIs(t, err, models.ErrRoomNotFound)
}
