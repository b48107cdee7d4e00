package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Services is a list of amenity names stored as a JSON array.
type Services []string

func (s Services) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(s))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (s *Services) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*s = Services{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported services type %T", src)
	}
	if len(raw) == 0 {
		*s = Services{}
		return nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("decode services: %w", err)
	}
	*s = out
	return nil
}

type Hotel struct {
	ID            int64    `json:"id" db:"id" yaml:"id"`
	Name          string   `json:"name" db:"name" yaml:"name"`
	Location      string   `json:"location" db:"location" yaml:"location"`
	Services      Services `json:"services" db:"services" yaml:"services"`
	RoomsQuantity int      `json:"rooms_quantity" db:"rooms_quantity" yaml:"rooms_quantity"`
	ImageID       int64    `json:"image_id" db:"image_id" yaml:"image_id"`
}

// Room is a room type of a hotel with Quantity interchangeable units.
type Room struct {
	ID          int64    `json:"id" db:"id" yaml:"id"`
	HotelID     int64    `json:"hotel_id" db:"hotel_id" yaml:"hotel_id"`
	Name        string   `json:"name" db:"name" yaml:"name"`
	Description string   `json:"description" db:"description" yaml:"description"`
	Price       int64    `json:"price" db:"price" yaml:"price"`
	Services    Services `json:"services" db:"services" yaml:"services"`
	Quantity    int      `json:"quantity" db:"quantity" yaml:"quantity"`
	ImageID     int64    `json:"image_id" db:"image_id" yaml:"image_id"`
}

// HotelAvailability is a search result: a hotel and the units left across
// all of its rooms for the searched stay.
type HotelAvailability struct {
	Hotel
	RoomsLeft int `json:"rooms_left" db:"rooms_left"`
}

type RoomAvailability struct {
	Room
	RoomsLeft int   `json:"rooms_left" db:"rooms_left"`
	TotalCost int64 `json:"total_cost" db:"-"`
}

// Catalog is the seed file layout.
type Catalog struct {
	Hotels []CatalogHotel `yaml:"hotels"`
}

type CatalogHotel struct {
	Hotel `yaml:",inline"`
	Rooms []Room `yaml:"rooms"`
}
