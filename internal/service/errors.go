package service

import "errors"

var (
	// ErrInvalidPayload is returned when a webhook payload is missing
	ErrInvalidPayload = errors.New("invalid webhook payload")

	// ErrBusClosed is returned when publishing after the bus has been closed
	ErrBusClosed = errors.New("alert bus closed")
)
