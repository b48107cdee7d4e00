package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"hotelbook/internal/availability"
	"hotelbook/internal/domain"
	"hotelbook/internal/events"
	"hotelbook/internal/metrics"
	"hotelbook/internal/models"

	"github.com/rs/zerolog"
)

const invalidationTimeout = 5 * time.Second

type CatalogService struct {
	repo        domain.Repository
	cache       domain.SearchCache
	eventBus    domain.EventPublisher
	cacheTTL    time.Duration
	maxStayDays int
	logger      *zerolog.Logger
}

// NewCatalogService builds the catalog service. cache may be nil, which
// disables search caching.
func NewCatalogService(repo domain.Repository, cache domain.SearchCache, eventBus domain.EventPublisher, cacheTTL time.Duration, maxStayDays int, logger *zerolog.Logger) *CatalogService {
	if cacheTTL <= 0 {
		cacheTTL = models.DefaultSearchCacheTTL * time.Second
	}
	if maxStayDays <= 0 {
		maxStayDays = models.DefaultMaxStayDays
	}
	return &CatalogService{
		repo:        repo,
		cache:       cache,
		eventBus:    eventBus,
		cacheTTL:    cacheTTL,
		maxStayDays: maxStayDays,
		logger:      logger,
	}
}

// SubscribeInvalidation drops cached searches whose stay overlaps a booking
// when one is created or deleted, and those touched by catalog writes.
func (s *CatalogService) SubscribeInvalidation(bus *events.EventBus) {
	if s.cache == nil {
		return
	}
	onBooking := func(event *events.Event) error {
		var payload events.BookingEventPayload
		if err := event.Decode(&payload); err != nil {
			return fmt.Errorf("decode %s: %w", event.Type, err)
		}
		stay, err := models.ParseStay(payload.DateFrom, payload.DateTo)
		if err != nil {
			return err
		}
		return s.invalidate(stay)
	}
	onCatalog := func(event *events.Event) error {
		var payload events.CatalogChangedPayload
		if err := event.Decode(&payload); err != nil {
			return fmt.Errorf("decode %s: %w", event.Type, err)
		}
		if payload.DateFrom == "" || payload.DateTo == "" {
			return s.invalidate(models.AllDays)
		}
		stay, err := models.ParseStay(payload.DateFrom, payload.DateTo)
		if err != nil {
			return err
		}
		return s.invalidate(stay)
	}
	bus.Subscribe(events.EventBookingCreated, onBooking)
	bus.Subscribe(events.EventBookingDeleted, onBooking)
	bus.Subscribe(events.EventCatalogChanged, onCatalog)
}

func (s *CatalogService) invalidate(stay models.Stay) error {
	ctx, cancel := context.WithTimeout(context.Background(), invalidationTimeout)
	defer cancel()
	return s.cache.InvalidateOverlapping(ctx, stay)
}

func (s *CatalogService) SearchHotels(ctx context.Context, location string, stay models.Stay) ([]models.HotelAvailability, error) {
	if err := validateStay(stay, s.maxStayDays); err != nil {
		return nil, err
	}
	location = strings.TrimSpace(location)
	key := models.SearchKey{Location: location, Stay: stay}

	if s.cache != nil {
		hotels, ok, err := s.cache.GetHotels(ctx, key)
		if err != nil {
			s.logger.Warn().Err(err).Str("key", key.String()).Msg("search cache read failed")
		}
		metrics.IncSearchCache(ok)
		if ok {
			return hotels, nil
		}
	}

	hotels, err := s.repo.SearchHotels(ctx, location, stay)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetHotels(ctx, key, hotels, s.cacheTTL); err != nil {
			s.logger.Warn().Err(err).Str("key", key.String()).Msg("search cache write failed")
		}
	}
	return hotels, nil
}

func (s *CatalogService) GetHotel(ctx context.Context, id int64) (*models.Hotel, error) {
	return s.repo.GetHotel(ctx, id)
}

// ListRooms returns every room of the hotel with the units left for stay and
// the cost of the stay at the current price.
func (s *CatalogService) ListRooms(ctx context.Context, hotelID int64, stay models.Stay) ([]models.RoomAvailability, error) {
	if !stay.From.Before(stay.To) {
		return nil, fmt.Errorf("%w: %s", models.ErrInvalidDateRange, stay)
	}
	if _, err := s.repo.GetHotel(ctx, hotelID); err != nil {
		return nil, err
	}

	rooms, err := s.repo.ListRooms(ctx, hotelID, stay)
	if err != nil {
		return nil, err
	}

	nights := int64(stay.Nights())
	for i := range rooms {
		r := &rooms[i]
		r.RoomsLeft = availability.Remaining(r.Quantity, r.Quantity-r.RoomsLeft)
		r.TotalCost = nights * r.Price
	}
	return rooms, nil
}

func (s *CatalogService) CreateHotel(ctx context.Context, hotel *models.Hotel) error {
	if strings.TrimSpace(hotel.Name) == "" || strings.TrimSpace(hotel.Location) == "" {
		return fmt.Errorf("hotel name and location are required")
	}
	if err := s.repo.CreateHotel(ctx, hotel); err != nil {
		return err
	}
	s.logger.Info().Int64("hotel_id", hotel.ID).Str("name", hotel.Name).Msg("hotel created")
	s.publishCatalogChange("hotels")
	return nil
}

func (s *CatalogService) CreateRoom(ctx context.Context, room *models.Room) error {
	if room.Quantity < 0 || room.Price < 0 {
		return fmt.Errorf("room quantity and price must not be negative")
	}
	if _, err := s.repo.GetHotel(ctx, room.HotelID); err != nil {
		return err
	}
	if err := s.repo.CreateRoom(ctx, room); err != nil {
		return err
	}
	s.logger.Info().Int64("room_id", room.ID).Int64("hotel_id", room.HotelID).Int("quantity", room.Quantity).Msg("room created")
	s.publishCatalogChange("rooms")
	return nil
}

// UpdateRoomPrice changes the price charged to bookings admitted from now on.
// Existing bookings keep their snapshot.
func (s *CatalogService) UpdateRoomPrice(ctx context.Context, roomID int64, price int64) error {
	if price < 0 {
		return fmt.Errorf("room price must not be negative")
	}
	room, err := s.repo.GetRoom(ctx, roomID)
	if err != nil {
		return err
	}
	if err := s.repo.UpdateRoomPrice(ctx, roomID, price); err != nil {
		return err
	}

	if s.eventBus != nil {
		payload := events.RoomPriceChangedPayload{RoomID: roomID, HotelID: room.HotelID, OldPrice: room.Price, NewPrice: price}
		if err := s.eventBus.PublishJSON(events.EventRoomPriceChanged, payload); err != nil {
			s.logger.Error().Err(err).Int64("room_id", roomID).Msg("publish event error")
		}
	}
	return nil
}

// publishCatalogChange announces one new row of table, which may change
// search results for any stay.
func (s *CatalogService) publishCatalogChange(table string) {
	if s.eventBus == nil {
		return
	}
	if err := s.eventBus.PublishJSON(events.EventCatalogChanged, events.CatalogChangedPayload{Table: table, Rows: 1}); err != nil {
		s.logger.Error().Err(err).Str("table", table).Msg("publish event error")
	}
}
