package store

import "errors"

var (
	ErrEventNotFound     = errors.New("event not found")
	ErrTicketingDisabled = errors.New("ticketing disabled for event")
	ErrTicketNotFound    = errors.New("ticket not found")
	ErrEventMismatch     = errors.New("ticket belongs to a different event")
	ErrInvalidMethod     = errors.New("invalid redemption method")
	ErrSessionNotFound   = errors.New("session not found")
	ErrSessionExpired    = errors.New("session expired")
	ErrAccessDenied      = errors.New("access denied")
)
