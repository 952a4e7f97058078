package models

import "time"

type Event struct {
	EventID          string    `json:"event_id"`
	Title            string    `json:"title"`
	Venue            string    `json:"venue"`
	StartsAt         time.Time `json:"starts_at"`
	TicketingEnabled bool      `json:"ticketing_enabled"`
}

// Manifest is a self-contained allow-list of unredeemed ticket hashes for one
// event. It is a disposable snapshot: redemptions that happen after
// GeneratedAt are not reflected, which is why offline scan results stay
// pending until they are reconciled against the store.
type Manifest struct {
	EventID       string    `json:"event_id"`
	EventTitle    string    `json:"event_title"`
	Venue         string    `json:"venue"`
	EventStartsAt time.Time `json:"event_starts_at"`
	TicketHashes  []string  `json:"ticket_hashes"`
	TotalTickets  int       `json:"total_tickets"`
	ManifestHash  string    `json:"manifest_hash"`
	GeneratedAt   time.Time `json:"generated_at"`
	ExpiresAt     time.Time `json:"expires_at"`
	Version       int64     `json:"version"`
}
