package models

import "time"

type Ticket struct {
	TicketID         string     `json:"ticket_id"`
	TicketNumber     string     `json:"ticket_number"`
	EventID          string     `json:"event_id"`
	HolderEmail      string     `json:"holder_email,omitempty"`
	TicketType       string     `json:"ticket_type"`
	QRHash           string     `json:"qr_hash,omitempty"`
	Status           string     `json:"status"`
	IssuedAt         time.Time  `json:"issued_at"`
	RedeemedAt       *time.Time `json:"redeemed_at,omitempty"`
	RedeemedBy       *string    `json:"redeemed_by,omitempty"`
	RedeemedLocation *string    `json:"redeemed_location,omitempty"`
	RedemptionMethod *string    `json:"redemption_method,omitempty"`
	OverrideReason   *string    `json:"override_reason,omitempty"`
}

const (
	StatusUnredeemed = "unredeemed"
	StatusRedeemed   = "redeemed"
)

const (
	MethodOnline          = "online"
	MethodOfflineManifest = "offline_manifest"
	MethodManualOverride  = "manual_override"
)
