package events

import (
	"encoding/json"
	"sync"
	"time"
)

const (
	EventBookingCreated   = "booking.created"
	EventBookingDeleted   = "booking.deleted"
	EventRoomPriceChanged = "room.price_changed"
	EventCatalogChanged   = "catalog.changed"
)

// BookingEventPayload is the booking snapshot carried by booking events.
type BookingEventPayload struct {
	BookingID int64  `json:"booking_id"`
	UserID    int64  `json:"user_id"`
	RoomID    int64  `json:"room_id"`
	DateFrom  string `json:"date_from"`
	DateTo    string `json:"date_to"`
	Price     int64  `json:"price"`
}

type RoomPriceChangedPayload struct {
	RoomID   int64 `json:"room_id"`
	HotelID  int64 `json:"hotel_id"`
	OldPrice int64 `json:"old_price"`
	NewPrice int64 `json:"new_price"`
}

// CatalogChangedPayload reports rows written outside admission. DateFrom and
// DateTo bound the affected nights; both are empty when every stay is
// affected.
type CatalogChangedPayload struct {
	Table    string `json:"table"`
	Rows     int    `json:"rows"`
	DateFrom string `json:"date_from,omitempty"`
	DateTo   string `json:"date_to,omitempty"`
}

// Event represents a lightweight domain event.
type Event struct {
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// Decode unmarshals the event payload into v.
func (e *Event) Decode(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// ErrorHandler receives handler failures. Publish never fails because of them.
type ErrorHandler func(event *Event, err error)

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	onError     ErrorHandler
	mu          sync.RWMutex
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// OnError installs a callback for handler errors.
func (b *EventBus) OnError(fn ErrorHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onError = fn
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers of the event type.
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	onError := b.onError
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	// Handlers run synchronously; caller decides concurrency model.
	for _, handler := range handlers {
		if err := handler(event); err != nil && onError != nil {
			onError(event, err)
		}
	}
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	b.Publish(&Event{Type: eventType, Payload: raw, CreatedAt: time.Now()})
	return nil
}
