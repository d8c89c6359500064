package session

import "errors"

// Error taxonomy for session operations. NotFound may legitimately race
// with eviction and is never fatal.
var (
	ErrNotFound     = errors.New("game not found")
	ErrSessionFull  = errors.New("game is full")
	ErrForbidden    = errors.New("not allowed")
	ErrSlotOccupied = errors.New("seat is already connected")
)
