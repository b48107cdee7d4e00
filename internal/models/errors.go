package models

import "errors"

var (
	ErrHotelNotFound   = errors.New("hotel not found")
	ErrRoomNotFound    = errors.New("room not found")
	ErrBookingNotFound = errors.New("booking not found")
	ErrUserNotFound    = errors.New("user not found")
	ErrUserExists      = errors.New("user already exists")

	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidDate        = errors.New("invalid date")
	ErrInvalidDateRange   = errors.New("date_from must be before date_to")
	ErrStayTooLong        = errors.New("stay is too long")
)
