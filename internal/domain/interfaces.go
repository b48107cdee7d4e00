package domain

import (
	"context"
	"time"

	"hotelbook/internal/models"
)

// RoomReader is the storage view the availability calculator works on. Both
// a store and an open admission transaction implement it.
type RoomReader interface {
	GetRoom(ctx context.Context, roomID int64) (*models.Room, error)
	CountOverlapping(ctx context.Context, roomID int64, stay models.Stay) (int, error)
	ListOverlapping(ctx context.Context, roomID int64, stay models.Stay) ([]models.Booking, error)
}

// RoomTx is a transaction holding the admission lock of one room. Outbox
// tasks inserted through it commit or roll back with the booking.
type RoomTx interface {
	RoomReader
	InsertBooking(ctx context.Context, booking *models.Booking) error
	LoadNotice(ctx context.Context, booking *models.Booking) (*models.BookingNotice, error)
	InsertOutboxTask(ctx context.Context, task *models.OutboxTask) error
}

// UnitOfWork runs fn inside a transaction that serializes admissions for
// roomID. A non-nil error from fn, or a cancelled ctx, rolls it back.
type UnitOfWork interface {
	InRoomTx(ctx context.Context, roomID int64, fn func(ctx context.Context, tx RoomTx) error) error
}

type CatalogRepository interface {
	CreateHotel(ctx context.Context, hotel *models.Hotel) error
	CreateRoom(ctx context.Context, room *models.Room) error
	GetHotel(ctx context.Context, id int64) (*models.Hotel, error)
	GetRoom(ctx context.Context, roomID int64) (*models.Room, error)
	UpdateRoomPrice(ctx context.Context, roomID int64, price int64) error
	SearchHotels(ctx context.Context, location string, stay models.Stay) ([]models.HotelAvailability, error)
	ListRooms(ctx context.Context, hotelID int64, stay models.Stay) ([]models.RoomAvailability, error)
}

type BookingRepository interface {
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	ListUserBookings(ctx context.Context, userID int64) ([]models.UserBooking, error)
	DeleteUserBooking(ctx context.Context, userID, bookingID int64) error
	ListBookingsOverlapping(ctx context.Context, stay models.Stay) ([]models.BookingReportRow, error)
}

type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

type OutboxRepository interface {
	CreateOutboxTask(ctx context.Context, task *models.OutboxTask) error
	GetPendingOutboxTasks(ctx context.Context, limit int) ([]models.OutboxTask, error)
	UpdateOutboxTaskStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error
}

// BulkLoader inserts catalog and historical booking rows in one transaction
// per call, bypassing admission.
type BulkLoader interface {
	BulkInsertHotels(ctx context.Context, hotels []models.Hotel) (int, error)
	BulkInsertRooms(ctx context.Context, rooms []models.Room) (int, error)
	BulkInsertBookings(ctx context.Context, bookings []models.Booking) (int, error)
}

// Repository is implemented by the sqlite and postgres stores.
type Repository interface {
	UnitOfWork
	RoomReader
	CatalogRepository
	BookingRepository
	UserRepository
	OutboxRepository
	BulkLoader
	Ping(ctx context.Context) error
	Close() error
}

// SearchCache holds hotel search results for a short TTL.
type SearchCache interface {
	GetHotels(ctx context.Context, key models.SearchKey) ([]models.HotelAvailability, bool, error)
	SetHotels(ctx context.Context, key models.SearchKey, hotels []models.HotelAvailability, ttl time.Duration) error
	// InvalidateOverlapping drops cached searches whose stay overlaps stay.
	InvalidateOverlapping(ctx context.Context, stay models.Stay) error
	CheckRateLimit(ctx context.Context, userID int64, limit int, window time.Duration) (bool, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// NotificationQueue hands committed outbox tasks to the worker. Tasks it
// cannot take are still found by polling the table.
type NotificationQueue interface {
	Schedule(ctx context.Context, task models.OutboxTask)
}

type ConfirmationSender interface {
	SendBookingConfirmation(ctx context.Context, notice *models.BookingNotice) error
}

type BookingLedger interface {
	AppendBooking(ctx context.Context, notice *models.BookingNotice) error
}

type BookingService interface {
	ValidateStay(stay models.Stay) error
	AdmitBooking(ctx context.Context, req models.BookingRequest) models.AdmissionResult
	RoomsLeft(ctx context.Context, roomID int64, stay models.Stay) (int, error)
	ListUserBookings(ctx context.Context, userID int64) ([]models.UserBooking, error)
	DeleteBooking(ctx context.Context, userID, bookingID int64) error
	ExportBookings(ctx context.Context, stay models.Stay) ([]models.BookingReportRow, error)
}

type CatalogService interface {
	SearchHotels(ctx context.Context, location string, stay models.Stay) ([]models.HotelAvailability, error)
	GetHotel(ctx context.Context, id int64) (*models.Hotel, error)
	ListRooms(ctx context.Context, hotelID int64, stay models.Stay) ([]models.RoomAvailability, error)
	CreateHotel(ctx context.Context, hotel *models.Hotel) error
	CreateRoom(ctx context.Context, room *models.Room) error
	UpdateRoomPrice(ctx context.Context, roomID int64, price int64) error
}

type UserService interface {
	Register(ctx context.Context, email, password string) (*models.User, error)
	Authenticate(ctx context.Context, email, password string) (*models.User, error)
	GetUser(ctx context.Context, id int64) (*models.User, error)
}
