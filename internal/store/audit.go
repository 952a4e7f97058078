package store

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"

	"entrypass/scan-service/internal/models"
)

// RedemptionEvent is one link in the per-ticket audit chain. Each event hashes
// over its predecessor, so tampering with a recorded redemption breaks every
// later hash.
type RedemptionEvent struct {
	TicketID  string          `json:"ticket_id"`
	TicketSeq int             `json:"ticket_seq"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
	PrevHash  string          `json:"prev_hash"`
	Hash      string          `json:"hash"`
}

type auditPayload struct {
	TicketID     string     `json:"ticket_id"`
	TicketNumber string     `json:"ticket_number"`
	EventID      string     `json:"event_id"`
	Status       string     `json:"status"`
	Method       string     `json:"method"`
	RedeemedBy   string     `json:"redeemed_by"`
	Location     string     `json:"location"`
	Reason       string     `json:"reason"`
	RedeemedAt   *time.Time `json:"redeemed_at"`
}

func ComputeRedemptionEventHash(prevHash, ticketID, eventType string, payload json.RawMessage, createdAt time.Time, seq int) string {
	raw := fmt.Sprintf("%s|%s|%s|%s|%d|%s", prevHash, ticketID, eventType, createdAt.UTC().Format(time.RFC3339Nano), seq, payload)
	sum := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%x", sum)
}

// RehydrateRedemption replays an audit chain into the redemption fields of a
// ticket, for verification tooling.
func RehydrateRedemption(events []RedemptionEvent) (models.Ticket, error) {
	var ticket models.Ticket
	for _, event := range events {
		if len(event.Payload) == 0 {
			continue
		}
		var payload auditPayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return models.Ticket{}, err
		}
		if payload.TicketID != "" {
			ticket.TicketID = payload.TicketID
		}
		if payload.TicketNumber != "" {
			ticket.TicketNumber = payload.TicketNumber
		}
		if payload.EventID != "" {
			ticket.EventID = payload.EventID
		}
		if payload.Status != "" {
			ticket.Status = payload.Status
		}
		if payload.Method != "" {
			method := payload.Method
			ticket.RedemptionMethod = &method
		}
		if payload.RedeemedBy != "" {
			redeemer := payload.RedeemedBy
			ticket.RedeemedBy = &redeemer
		}
		if payload.Location != "" {
			location := payload.Location
			ticket.RedeemedLocation = &location
		}
		if payload.Reason != "" {
			reason := payload.Reason
			ticket.OverrideReason = &reason
		}
		if payload.RedeemedAt != nil {
			ticket.RedeemedAt = payload.RedeemedAt
		}
	}
	return ticket, nil
}
