package store

import (
	"context"
	"encoding/json"
	"time"

	"entrypass/scan-service/internal/models"
)

// RedeemInput describes one redemption attempt. Either QRHash or TicketID
// identifies the ticket; TicketID is used by the override path after the
// human-readable identifier has been resolved.
type RedeemInput struct {
	QRHash     string
	TicketID   string
	EventID    string
	RedeemerID string
	Location   string
	Method     string
	Reason     string
	RedeemedAt time.Time
}

// TicketStore is the narrow repository boundary of the redemption core. All
// mutation goes through RedeemTicket, a conditional compare-and-set on a
// single ticket: the store owns the unredeemed -> redeemed invariant.
type TicketStore interface {
	GetEvent(ctx context.Context, eventID string) (models.Event, error)

	// ListUnredeemedHashes returns the qr_hash values of every ticket of the
	// event still in state unredeemed, for manifest generation.
	ListUnredeemedHashes(ctx context.Context, eventID string) ([]string, error)

	// RedeemTicket attempts the unredeemed -> redeemed transition. The bool
	// reports whether this call applied the transition; when the ticket was
	// already redeemed it returns (prior ticket, false, nil) so the caller can
	// surface the original redemption. Unknown ticket or wrong event are
	// returned as ErrTicketNotFound / ErrEventMismatch.
	RedeemTicket(ctx context.Context, input RedeemInput) (models.Ticket, bool, error)

	// FindTicketByIdentifier resolves a ticket number or holder email to a
	// ticket within the event, for the manual override path.
	FindTicketByIdentifier(ctx context.Context, eventID, identifier string) (models.Ticket, error)

	GetTicketByHash(ctx context.Context, eventID, qrHash string) (models.Ticket, error)

	ListRedemptionEvents(ctx context.Context, eventID, ticketID string) ([]RedemptionEvent, error)
	ListOutboxEvents(ctx context.Context, eventID string, after time.Time, limit int) ([]OutboxEvent, error)

	GetSession(ctx context.Context, sessionID string) (Session, error)
}

type Session struct {
	SessionID string
	BouncerID string
	Role      string
	ExpiresAt time.Time
}

const (
	RoleBouncer = "bouncer"
	RoleManager = "manager"
	RoleAdmin   = "admin"
)

type OutboxEvent struct {
	OutboxID  string          `json:"outbox_id"`
	EventID   string          `json:"event_id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}
