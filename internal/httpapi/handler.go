package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"entrypass/scan-service/internal/manifest"
	"entrypass/scan-service/internal/models"
	"entrypass/scan-service/internal/reconcile"
	"entrypass/scan-service/internal/store"

	qrcode "github.com/skip2/go-qrcode"
)

type ManifestSource interface {
	GetManifest(ctx context.Context, eventID string) (models.Manifest, error)
}

type Handler struct {
	store      store.TicketStore
	manifests  ManifestSource
	reconciler *reconcile.Reconciler
}

func NewHandler(store store.TicketStore, manifests ManifestSource, reconciler *reconcile.Reconciler) *Handler {
	return &Handler{
		store:      store,
		manifests:  manifests,
		reconciler: reconciler,
	}
}

func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.handleHealth)
	mux.HandleFunc("/api/manifest", h.handleManifest)
	mux.HandleFunc("/api/scan", h.handleScan)
	mux.HandleFunc("/api/sync", h.handleSync)
	mux.HandleFunc("/api/override", h.handleOverride)
	mux.HandleFunc("/api/tickets/qr", h.handleTicketQR)
	mux.HandleFunc("/api/redemptions", h.handleRedemptions)
	mux.HandleFunc("/api/events", h.handleOutbox)
	return mux
}

const (
	scanStatusRedeemed        = "redeemed"
	scanStatusAlreadyRedeemed = "already_redeemed"
	scanStatusInvalid         = "invalid"
	scanStatusInvalidEvent    = "invalid_event"
	scanStatusScannedOffline  = "scanned_offline"
)

type scanRequest struct {
	QRHash          string   `json:"qr_hash"`
	EventID         string   `json:"event_id"`
	Location        string   `json:"location"`
	Mode            string   `json:"mode"`
	OfflineManifest []string `json:"offline_manifest"`
}

type scanResponse struct {
	Success          bool       `json:"success"`
	TicketID         string     `json:"ticket_id,omitempty"`
	EventTitle       string     `json:"event_title,omitempty"`
	Venue            string     `json:"venue,omitempty"`
	TicketType       string     `json:"ticket_type,omitempty"`
	Status           string     `json:"status"`
	Message          string     `json:"message"`
	Timestamp        time.Time  `json:"timestamp"`
	QRHash           string     `json:"qr_hash,omitempty"`
	EventID          string     `json:"event_id,omitempty"`
	PendingSync      bool       `json:"pending_sync,omitempty"`
	RedeemedBy       *string    `json:"redeemed_by,omitempty"`
	RedeemedAt       *time.Time `json:"redeemed_at,omitempty"`
	RedeemedLocation *string    `json:"redeemed_location,omitempty"`
	RedemptionMethod *string    `json:"redemption_method,omitempty"`
}

type syncRequest struct {
	DeviceID string                 `json:"device_id"`
	EventID  string                 `json:"event_id"`
	Scans    []reconcile.ScanResult `json:"scans"`
}

type syncResponse struct {
	Synced    int       `json:"synced"`
	Failed    int       `json:"failed"`
	Errors    []string  `json:"errors"`
	Timestamp time.Time `json:"timestamp"`
}

type overrideRequest struct {
	Identifier string `json:"identifier"`
	EventID    string `json:"event_id"`
	Location   string `json:"location"`
	Reason     string `json:"reason"`
}

type overrideResponse struct {
	Success   bool      `json:"success"`
	TicketID  string    `json:"ticket_id,omitempty"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

type errorResponse struct {
	Error responseError `json:"error"`
}

type responseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) handleManifest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	eventID := strings.TrimSpace(r.URL.Query().Get("event_id"))
	if eventID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "event_id is required")
		return
	}

	m, err := h.manifests.GetManifest(r.Context(), eventID)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	if m.TicketHashes == nil {
		m.TicketHashes = []string{}
	}

	writeJSON(w, http.StatusOK, m)
}

func (h *Handler) handleScan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req scanRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.QRHash = strings.TrimSpace(req.QRHash)
	req.EventID = strings.TrimSpace(req.EventID)
	req.Location = strings.TrimSpace(req.Location)
	req.Mode = strings.TrimSpace(req.Mode)
	if req.Mode == "" {
		req.Mode = "online"
	}

	if req.QRHash == "" || req.EventID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "qr_hash and event_id are required")
		return
	}

	switch req.Mode {
	case "online":
		h.scanOnline(w, r, req)
	case "offline":
		h.scanOffline(w, req)
	default:
		writeError(w, http.StatusBadRequest, "invalid_request", "mode must be online or offline")
	}
}

func (h *Handler) scanOnline(w http.ResponseWriter, r *http.Request, req scanRequest) {
	session, ok := sessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing session")
		return
	}

	now := time.Now().UTC()
	ticket, applied, err := h.store.RedeemTicket(r.Context(), store.RedeemInput{
		QRHash:     req.QRHash,
		EventID:    req.EventID,
		RedeemerID: session.BouncerID,
		Location:   req.Location,
		Method:     models.MethodOnline,
		RedeemedAt: now,
	})
	if err != nil {
		switch {
		case errors.Is(err, store.ErrTicketNotFound):
			writeJSON(w, http.StatusNotFound, scanResponse{
				Status:    scanStatusInvalid,
				Message:   "invalid code",
				QRHash:    req.QRHash,
				EventID:   req.EventID,
				Timestamp: now,
			})
		case errors.Is(err, store.ErrEventMismatch):
			writeJSON(w, http.StatusConflict, scanResponse{
				Status:    scanStatusInvalidEvent,
				Message:   "ticket belongs to a different event",
				QRHash:    req.QRHash,
				EventID:   req.EventID,
				Timestamp: now,
			})
		default:
			status, code, msg := mapError(err)
			writeError(w, status, code, msg)
		}
		return
	}

	if !applied {
		writeJSON(w, http.StatusConflict, scanResponse{
			Status:           scanStatusAlreadyRedeemed,
			Message:          conflictMessage(ticket),
			TicketID:         ticket.TicketID,
			QRHash:           req.QRHash,
			EventID:          req.EventID,
			Timestamp:        now,
			RedeemedBy:       ticket.RedeemedBy,
			RedeemedAt:       ticket.RedeemedAt,
			RedeemedLocation: ticket.RedeemedLocation,
			RedemptionMethod: ticket.RedemptionMethod,
		})
		return
	}

	resp := scanResponse{
		Success:    true,
		TicketID:   ticket.TicketID,
		TicketType: ticket.TicketType,
		Status:     scanStatusRedeemed,
		Message:    "ticket redeemed",
		Timestamp:  now,
	}
	if event, eventErr := h.store.GetEvent(r.Context(), req.EventID); eventErr == nil {
		resp.EventTitle = event.Title
		resp.Venue = event.Venue
	} else {
		log.Printf("scan event lookup failed event=%s: %v", req.EventID, eventErr)
	}

	writeJSON(w, http.StatusOK, resp)
}

// scanOffline checks the hash against the manifest the device supplied. It
// never touches ticket state: a match is pending until reconciled.
func (h *Handler) scanOffline(w http.ResponseWriter, req scanRequest) {
	if req.OfflineManifest == nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "offline_manifest is required in offline mode")
		return
	}

	now := time.Now().UTC()
	if !manifest.VerifyOffline(req.QRHash, manifest.HashSet(req.OfflineManifest)) {
		writeJSON(w, http.StatusOK, scanResponse{
			Status:      scanStatusInvalid,
			Message:     "hash not present in manifest",
			QRHash:      req.QRHash,
			EventID:     req.EventID,
			Timestamp:   now,
			PendingSync: true,
		})
		return
	}

	writeJSON(w, http.StatusOK, scanResponse{
		Success:     true,
		Status:      scanStatusScannedOffline,
		Message:     "valid as of manifest generation, pending sync",
		QRHash:      req.QRHash,
		EventID:     req.EventID,
		Timestamp:   now,
		PendingSync: true,
	})
}

func (h *Handler) handleSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req syncRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.DeviceID = strings.TrimSpace(req.DeviceID)
	req.EventID = strings.TrimSpace(req.EventID)

	if req.EventID == "" || req.DeviceID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "device_id and event_id are required")
		return
	}
	if req.Scans == nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "scans is required")
		return
	}
	if len(req.Scans) > h.reconciler.MaxBatch() {
		writeError(w, http.StatusBadRequest, "invalid_request", "scan batch too large")
		return
	}

	report := h.reconciler.Sync(r.Context(), req.EventID, req.DeviceID, req.Scans)
	if report.Errors == nil {
		report.Errors = []string{}
	}

	writeJSON(w, http.StatusOK, syncResponse{
		Synced:    report.Synced,
		Failed:    report.Failed,
		Errors:    report.Errors,
		Timestamp: time.Now().UTC(),
	})
}

func (h *Handler) handleOverride(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	session, ok := requirePrivileged(w, r)
	if !ok {
		return
	}

	var req overrideRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.Identifier = strings.TrimSpace(req.Identifier)
	req.EventID = strings.TrimSpace(req.EventID)
	req.Location = strings.TrimSpace(req.Location)
	req.Reason = strings.TrimSpace(req.Reason)

	if req.Identifier == "" || req.EventID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "identifier and event_id are required")
		return
	}
	if req.Reason == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "reason is required for overrides")
		return
	}
	if session.BouncerID == "" {
		writeError(w, http.StatusForbidden, "access_denied", "unknown bouncer")
		return
	}

	ticket, err := h.store.FindTicketByIdentifier(r.Context(), req.EventID, req.Identifier)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}

	now := time.Now().UTC()
	redeemed, applied, err := h.store.RedeemTicket(r.Context(), store.RedeemInput{
		TicketID:   ticket.TicketID,
		EventID:    req.EventID,
		RedeemerID: session.BouncerID,
		Location:   req.Location,
		Method:     models.MethodManualOverride,
		Reason:     req.Reason,
		RedeemedAt: now,
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	if !applied {
		writeJSON(w, http.StatusConflict, overrideResponse{
			TicketID:  redeemed.TicketID,
			Message:   conflictMessage(redeemed),
			Timestamp: now,
		})
		return
	}

	// Overrides bypass proof of possession; the log line must stand apart
	// from scan-based redemptions.
	log.Printf("OVERRIDE redemption ticket=%s event=%s bouncer=%s location=%q reason=%q", redeemed.TicketID, req.EventID, session.BouncerID, req.Location, req.Reason)

	writeJSON(w, http.StatusOK, overrideResponse{
		Success:   true,
		TicketID:  redeemed.TicketID,
		Message:   "ticket redeemed by manual override",
		Timestamp: now,
	})
}

func (h *Handler) handleTicketQR(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	eventID := strings.TrimSpace(r.URL.Query().Get("event_id"))
	qrHash := strings.TrimSpace(r.URL.Query().Get("qr_hash"))
	if eventID == "" || qrHash == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "event_id and qr_hash are required")
		return
	}

	ticket, err := h.store.GetTicketByHash(r.Context(), eventID, qrHash)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}

	png, err := qrcode.Encode(ticket.QRHash, qrcode.Medium, 256)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "qr encoding failed")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

func (h *Handler) handleRedemptions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	eventID := strings.TrimSpace(r.URL.Query().Get("event_id"))
	ticketID := strings.TrimSpace(r.URL.Query().Get("ticket_id"))
	if eventID == "" || ticketID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "event_id and ticket_id are required")
		return
	}

	events, err := h.store.ListRedemptionEvents(r.Context(), eventID, ticketID)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}

	writeJSON(w, http.StatusOK, events)
}

func (h *Handler) handleOutbox(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	eventID := strings.TrimSpace(r.URL.Query().Get("event_id"))
	if eventID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "event_id is required")
		return
	}

	afterRaw := strings.TrimSpace(r.URL.Query().Get("after"))
	var after time.Time
	if afterRaw != "" {
		parsed, err := time.Parse(time.RFC3339, afterRaw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "after must be RFC3339 timestamp")
			return
		}
		after = parsed
	}

	limit := 100
	if limitRaw := strings.TrimSpace(r.URL.Query().Get("limit")); limitRaw != "" {
		parsed, err := strconv.Atoi(limitRaw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_request", "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	events, err := h.store.ListOutboxEvents(r.Context(), eventID, after, limit)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}

	writeJSON(w, http.StatusOK, events)
}

func conflictMessage(ticket models.Ticket) string {
	by := "unknown"
	if ticket.RedeemedBy != nil {
		by = *ticket.RedeemedBy
	}
	at := "unknown time"
	if ticket.RedeemedAt != nil {
		at = ticket.RedeemedAt.UTC().Format(time.RFC3339)
	}
	location := "unknown location"
	if ticket.RedeemedLocation != nil && *ticket.RedeemedLocation != "" {
		location = *ticket.RedeemedLocation
	}
	return "already redeemed by " + by + " at " + at + " (" + location + ")"
}

func decodeBody(w http.ResponseWriter, r *http.Request, target interface{}) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return false
	}
	return true
}

func mapError(err error) (int, string, string) {
	switch {
	case errors.Is(err, store.ErrEventNotFound):
		return http.StatusNotFound, "event_not_found", "event not found"
	case errors.Is(err, store.ErrTicketingDisabled):
		return http.StatusForbidden, "ticketing_disabled", "ticketing is disabled for this event"
	case errors.Is(err, store.ErrTicketNotFound):
		return http.StatusNotFound, "ticket_not_found", "invalid code"
	case errors.Is(err, store.ErrEventMismatch):
		return http.StatusConflict, "invalid_event", "ticket belongs to a different event"
	case errors.Is(err, store.ErrInvalidMethod):
		return http.StatusBadRequest, "invalid_request", "invalid redemption method"
	case errors.Is(err, store.ErrSessionNotFound), errors.Is(err, store.ErrSessionExpired):
		return http.StatusUnauthorized, "unauthorized", "invalid session"
	case errors.Is(err, store.ErrAccessDenied):
		return http.StatusForbidden, "access_denied", "access denied"
	default:
		return http.StatusServiceUnavailable, "storage_unavailable", "storage unavailable, retry"
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		Error: responseError{
			Code:    code,
			Message: message,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}
