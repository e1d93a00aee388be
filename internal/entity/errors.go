package entity

import "errors"

var (
	// ErrUnknownCommand is returned when a command payload names an action
	// the entity does not support.
	ErrUnknownCommand = errors.New("entity: unknown command")

	// ErrInvalidPayload is returned when a command payload cannot be
	// parsed or is out of range.
	ErrInvalidPayload = errors.New("entity: invalid payload")

	// ErrUnknownEntity is returned when a command topic does not match
	// any known entity.
	ErrUnknownEntity = errors.New("entity: unknown entity")
)
