package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"entrypass/scan-service/internal/manifest"
	"entrypass/scan-service/internal/models"
	"entrypass/scan-service/internal/reconcile"
	"entrypass/scan-service/internal/store"
)

type fakeStore struct {
	getEventFn    func(ctx context.Context, eventID string) (models.Event, error)
	listHashesFn  func(ctx context.Context, eventID string) ([]string, error)
	redeemFn      func(ctx context.Context, input store.RedeemInput) (models.Ticket, bool, error)
	findFn        func(ctx context.Context, eventID, identifier string) (models.Ticket, error)
	getByHashFn   func(ctx context.Context, eventID, qrHash string) (models.Ticket, error)
	redemptionsFn func(ctx context.Context, eventID, ticketID string) ([]store.RedemptionEvent, error)
	outboxFn      func(ctx context.Context, eventID string, after time.Time, limit int) ([]store.OutboxEvent, error)
	getSessionFn  func(ctx context.Context, sessionID string) (store.Session, error)
}

func (f fakeStore) GetEvent(ctx context.Context, eventID string) (models.Event, error) {
	if f.getEventFn == nil {
		return models.Event{}, store.ErrEventNotFound
	}
	return f.getEventFn(ctx, eventID)
}

func (f fakeStore) ListUnredeemedHashes(ctx context.Context, eventID string) ([]string, error) {
	if f.listHashesFn == nil {
		return nil, nil
	}
	return f.listHashesFn(ctx, eventID)
}

func (f fakeStore) RedeemTicket(ctx context.Context, input store.RedeemInput) (models.Ticket, bool, error) {
	if f.redeemFn == nil {
		return models.Ticket{}, false, store.ErrTicketNotFound
	}
	return f.redeemFn(ctx, input)
}

func (f fakeStore) FindTicketByIdentifier(ctx context.Context, eventID, identifier string) (models.Ticket, error) {
	if f.findFn == nil {
		return models.Ticket{}, store.ErrTicketNotFound
	}
	return f.findFn(ctx, eventID, identifier)
}

func (f fakeStore) GetTicketByHash(ctx context.Context, eventID, qrHash string) (models.Ticket, error) {
	if f.getByHashFn == nil {
		return models.Ticket{}, store.ErrTicketNotFound
	}
	return f.getByHashFn(ctx, eventID, qrHash)
}

func (f fakeStore) ListRedemptionEvents(ctx context.Context, eventID, ticketID string) ([]store.RedemptionEvent, error) {
	if f.redemptionsFn == nil {
		return nil, nil
	}
	return f.redemptionsFn(ctx, eventID, ticketID)
}

func (f fakeStore) ListOutboxEvents(ctx context.Context, eventID string, after time.Time, limit int) ([]store.OutboxEvent, error) {
	if f.outboxFn == nil {
		return nil, nil
	}
	return f.outboxFn(ctx, eventID, after, limit)
}

func (f fakeStore) GetSession(ctx context.Context, sessionID string) (store.Session, error) {
	if f.getSessionFn == nil {
		return store.Session{}, store.ErrSessionNotFound
	}
	return f.getSessionFn(ctx, sessionID)
}

func newTestHandler(st fakeStore) *Handler {
	manifests := manifest.NewBuilder(st, manifest.Options{TTL: time.Minute})
	reconciler := reconcile.New(st, reconcile.Config{MaxBatch: 10})
	return NewHandler(st, manifests, reconciler)
}

func withSession(req *http.Request, session store.Session) *http.Request {
	ctx := context.WithValue(req.Context(), authContextKey{}, session)
	return req.WithContext(ctx)
}

func bouncerSession() store.Session {
	return store.Session{SessionID: "sess-1", BouncerID: "bouncer-7", Role: store.RoleBouncer, ExpiresAt: time.Now().Add(time.Hour)}
}

func managerSession() store.Session {
	return store.Session{SessionID: "sess-2", BouncerID: "manager-1", Role: store.RoleManager, ExpiresAt: time.Now().Add(time.Hour)}
}

func postJSON(t *testing.T, h *Handler, path string, payload interface{}, session *store.Session) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	if session != nil {
		req = withSession(req, *session)
	}
	resp := httptest.NewRecorder()
	h.Routes().ServeHTTP(resp, req)
	return resp
}

func TestManifestSuccess(t *testing.T) {
	st := fakeStore{
		getEventFn: func(ctx context.Context, eventID string) (models.Event, error) {
			return models.Event{EventID: eventID, Title: "Warehouse Rave", Venue: "Pier 9", StartsAt: time.Date(2026, 9, 4, 22, 0, 0, 0, time.UTC), TicketingEnabled: true}, nil
		},
		listHashesFn: func(ctx context.Context, eventID string) ([]string, error) {
			return []string{"hash-b", "hash-a", "hash-c"}, nil
		},
	}
	h := newTestHandler(st)

	req := httptest.NewRequest(http.MethodGet, "/api/manifest?event_id=event-1", nil)
	resp := httptest.NewRecorder()
	h.Routes().ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	var m models.Manifest
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if m.TotalTickets != 3 || len(m.TicketHashes) != 3 {
		t.Fatalf("unexpected manifest size: %+v", m)
	}
	if m.TicketHashes[0] != "hash-a" {
		t.Fatalf("expected sorted hashes, got %v", m.TicketHashes)
	}
	if m.ManifestHash == "" || m.Version != 1 {
		t.Fatalf("unexpected manifest metadata: %+v", m)
	}
}

func TestManifestEventNotFound(t *testing.T) {
	h := newTestHandler(fakeStore{})

	req := httptest.NewRequest(http.MethodGet, "/api/manifest?event_id=missing", nil)
	resp := httptest.NewRecorder()
	h.Routes().ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", resp.Code)
	}
}

func TestManifestTicketingDisabled(t *testing.T) {
	st := fakeStore{
		getEventFn: func(ctx context.Context, eventID string) (models.Event, error) {
			return models.Event{EventID: eventID, TicketingEnabled: false}, nil
		},
	}
	h := newTestHandler(st)

	req := httptest.NewRequest(http.MethodGet, "/api/manifest?event_id=event-1", nil)
	resp := httptest.NewRecorder()
	h.Routes().ServeHTTP(resp, req)

	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d", resp.Code)
	}
}

func TestManifestMissingEventID(t *testing.T) {
	h := newTestHandler(fakeStore{})

	req := httptest.NewRequest(http.MethodGet, "/api/manifest", nil)
	resp := httptest.NewRecorder()
	h.Routes().ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}
}

func TestScanOnlineSuccess(t *testing.T) {
	var gotInput store.RedeemInput
	st := fakeStore{
		redeemFn: func(ctx context.Context, input store.RedeemInput) (models.Ticket, bool, error) {
			gotInput = input
			return models.Ticket{TicketID: "ticket-1", TicketType: "vip", Status: models.StatusRedeemed}, true, nil
		},
		getEventFn: func(ctx context.Context, eventID string) (models.Event, error) {
			return models.Event{EventID: eventID, Title: "Warehouse Rave", Venue: "Pier 9", TicketingEnabled: true}, nil
		},
	}
	h := newTestHandler(st)
	session := bouncerSession()

	resp := postJSON(t, h, "/api/scan", map[string]string{
		"qr_hash":  "hash-a",
		"event_id": "event-1",
		"location": "north gate",
	}, &session)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	var body scanResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !body.Success || body.Status != scanStatusRedeemed || body.EventTitle != "Warehouse Rave" {
		t.Fatalf("unexpected response: %+v", body)
	}
	if gotInput.Method != models.MethodOnline || gotInput.RedeemerID != "bouncer-7" || gotInput.Location != "north gate" {
		t.Fatalf("unexpected redeem input: %+v", gotInput)
	}
}

func TestScanAlreadyRedeemed(t *testing.T) {
	redeemedAt := time.Date(2026, 9, 4, 22, 15, 0, 0, time.UTC)
	redeemedBy := "bouncer-2"
	location := "south gate"
	method := models.MethodOnline
	st := fakeStore{
		redeemFn: func(ctx context.Context, input store.RedeemInput) (models.Ticket, bool, error) {
			return models.Ticket{
				TicketID:         "ticket-1",
				Status:           models.StatusRedeemed,
				RedeemedAt:       &redeemedAt,
				RedeemedBy:       &redeemedBy,
				RedeemedLocation: &location,
				RedemptionMethod: &method,
			}, false, nil
		},
	}
	h := newTestHandler(st)
	session := bouncerSession()

	resp := postJSON(t, h, "/api/scan", map[string]string{
		"qr_hash":  "hash-a",
		"event_id": "event-1",
	}, &session)

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", resp.Code)
	}
	var body scanResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Status != scanStatusAlreadyRedeemed || body.RedeemedBy == nil || *body.RedeemedBy != "bouncer-2" {
		t.Fatalf("unexpected response: %+v", body)
	}
	if !strings.Contains(body.Message, "bouncer-2") || !strings.Contains(body.Message, "south gate") {
		t.Fatalf("conflict message missing prior redemption context: %q", body.Message)
	}
}

func TestScanUnknownHash(t *testing.T) {
	st := fakeStore{
		redeemFn: func(ctx context.Context, input store.RedeemInput) (models.Ticket, bool, error) {
			return models.Ticket{}, false, store.ErrTicketNotFound
		},
	}
	h := newTestHandler(st)
	session := bouncerSession()

	resp := postJSON(t, h, "/api/scan", map[string]string{
		"qr_hash":  "no-such-hash",
		"event_id": "event-1",
	}, &session)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", resp.Code)
	}
	var body scanResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Status != scanStatusInvalid {
		t.Fatalf("expected invalid status, got %+v", body)
	}
}

func TestScanWrongEvent(t *testing.T) {
	st := fakeStore{
		redeemFn: func(ctx context.Context, input store.RedeemInput) (models.Ticket, bool, error) {
			return models.Ticket{}, false, store.ErrEventMismatch
		},
	}
	h := newTestHandler(st)
	session := bouncerSession()

	resp := postJSON(t, h, "/api/scan", map[string]string{
		"qr_hash":  "hash-a",
		"event_id": "other-event",
	}, &session)

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", resp.Code)
	}
	var body scanResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Status != scanStatusInvalidEvent {
		t.Fatalf("expected invalid_event status, got %+v", body)
	}
}

func TestScanStorageError(t *testing.T) {
	st := fakeStore{
		redeemFn: func(ctx context.Context, input store.RedeemInput) (models.Ticket, bool, error) {
			return models.Ticket{}, false, errors.New("connection refused")
		},
	}
	h := newTestHandler(st)
	session := bouncerSession()

	resp := postJSON(t, h, "/api/scan", map[string]string{
		"qr_hash":  "hash-a",
		"event_id": "event-1",
	}, &session)

	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", resp.Code)
	}
}

func TestScanMissingSession(t *testing.T) {
	h := newTestHandler(fakeStore{})

	resp := postJSON(t, h, "/api/scan", map[string]string{
		"qr_hash":  "hash-a",
		"event_id": "event-1",
	}, nil)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", resp.Code)
	}
}

func TestScanMissingFields(t *testing.T) {
	h := newTestHandler(fakeStore{})
	session := bouncerSession()

	resp := postJSON(t, h, "/api/scan", map[string]string{
		"qr_hash": "hash-a",
	}, &session)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}
}

func TestScanMethodNotAllowed(t *testing.T) {
	h := newTestHandler(fakeStore{})

	req := httptest.NewRequest(http.MethodGet, "/api/scan", nil)
	resp := httptest.NewRecorder()
	h.Routes().ServeHTTP(resp, req)

	if resp.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected status 405, got %d", resp.Code)
	}
}

func TestScanOfflineValid(t *testing.T) {
	st := fakeStore{
		redeemFn: func(ctx context.Context, input store.RedeemInput) (models.Ticket, bool, error) {
			t.Fatal("offline scan must not touch ticket state")
			return models.Ticket{}, false, nil
		},
	}
	h := newTestHandler(st)
	session := bouncerSession()

	resp := postJSON(t, h, "/api/scan", map[string]interface{}{
		"qr_hash":          "hash-b",
		"event_id":         "event-1",
		"mode":             "offline",
		"offline_manifest": []string{"hash-a", "hash-b"},
	}, &session)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	var body scanResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !body.Success || body.Status != scanStatusScannedOffline || !body.PendingSync {
		t.Fatalf("unexpected response: %+v", body)
	}
}

func TestScanOfflineUnknownHash(t *testing.T) {
	h := newTestHandler(fakeStore{})
	session := bouncerSession()

	resp := postJSON(t, h, "/api/scan", map[string]interface{}{
		"qr_hash":          "hash-z",
		"event_id":         "event-1",
		"mode":             "offline",
		"offline_manifest": []string{"hash-a", "hash-b"},
	}, &session)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	var body scanResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Success || body.Status != scanStatusInvalid || !body.PendingSync {
		t.Fatalf("unexpected response: %+v", body)
	}
}

func TestScanOfflineMissingManifest(t *testing.T) {
	h := newTestHandler(fakeStore{})
	session := bouncerSession()

	resp := postJSON(t, h, "/api/scan", map[string]string{
		"qr_hash":  "hash-a",
		"event_id": "event-1",
		"mode":     "offline",
	}, &session)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}
}

func TestSyncDuplicateBatch(t *testing.T) {
	redeemed := make(map[string]bool)
	st := fakeStore{
		redeemFn: func(ctx context.Context, input store.RedeemInput) (models.Ticket, bool, error) {
			if redeemed[input.QRHash] {
				by := "bouncer-7:device-1"
				return models.Ticket{TicketID: "ticket-1", Status: models.StatusRedeemed, RedeemedBy: &by}, false, nil
			}
			redeemed[input.QRHash] = true
			return models.Ticket{TicketID: "ticket-1", Status: models.StatusRedeemed}, true, nil
		},
	}
	h := newTestHandler(st)
	session := bouncerSession()

	scannedAt := time.Date(2026, 9, 4, 23, 0, 0, 0, time.UTC)
	resp := postJSON(t, h, "/api/sync", map[string]interface{}{
		"device_id": "device-1",
		"event_id":  "event-1",
		"scans": []map[string]interface{}{
			{"qr_hash": "hash-a", "bouncer_id": "bouncer-7", "scanned_at": scannedAt},
			{"qr_hash": "hash-a", "bouncer_id": "bouncer-7", "scanned_at": scannedAt.Add(time.Minute)},
		},
	}, &session)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	var body syncResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Synced != 1 || body.Failed != 1 || len(body.Errors) != 1 {
		t.Fatalf("unexpected report: %+v", body)
	}
}

func TestSyncMissingScans(t *testing.T) {
	h := newTestHandler(fakeStore{})
	session := bouncerSession()

	resp := postJSON(t, h, "/api/sync", map[string]string{
		"device_id": "device-1",
		"event_id":  "event-1",
	}, &session)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}
}

func TestSyncBatchTooLarge(t *testing.T) {
	h := newTestHandler(fakeStore{})
	session := bouncerSession()

	scans := make([]map[string]interface{}, 11)
	for i := range scans {
		scans[i] = map[string]interface{}{"qr_hash": "hash", "bouncer_id": "bouncer-7", "scanned_at": time.Now().UTC()}
	}
	resp := postJSON(t, h, "/api/sync", map[string]interface{}{
		"device_id": "device-1",
		"event_id":  "event-1",
		"scans":     scans,
	}, &session)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}
}

func TestOverrideSuccess(t *testing.T) {
	var gotInput store.RedeemInput
	st := fakeStore{
		findFn: func(ctx context.Context, eventID, identifier string) (models.Ticket, error) {
			return models.Ticket{TicketID: "ticket-9", EventID: eventID, TicketNumber: identifier}, nil
		},
		redeemFn: func(ctx context.Context, input store.RedeemInput) (models.Ticket, bool, error) {
			gotInput = input
			return models.Ticket{TicketID: input.TicketID, Status: models.StatusRedeemed}, true, nil
		},
	}
	h := newTestHandler(st)
	session := managerSession()

	resp := postJSON(t, h, "/api/override", map[string]string{
		"identifier": "TK-0042",
		"event_id":   "event-1",
		"reason":     "phone died, verified ID against guest list",
	}, &session)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	if gotInput.Method != models.MethodManualOverride || gotInput.TicketID != "ticket-9" || gotInput.Reason == "" {
		t.Fatalf("unexpected redeem input: %+v", gotInput)
	}
}

func TestOverrideEmptyReason(t *testing.T) {
	st := fakeStore{
		findFn: func(ctx context.Context, eventID, identifier string) (models.Ticket, error) {
			t.Fatal("override with empty reason must not reach the store")
			return models.Ticket{}, nil
		},
	}
	h := newTestHandler(st)
	session := managerSession()

	resp := postJSON(t, h, "/api/override", map[string]string{
		"identifier": "TK-0042",
		"event_id":   "event-1",
		"reason":     "   ",
	}, &session)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}
}

func TestOverrideRequiresPrivilegedRole(t *testing.T) {
	h := newTestHandler(fakeStore{})
	session := bouncerSession()

	resp := postJSON(t, h, "/api/override", map[string]string{
		"identifier": "TK-0042",
		"event_id":   "event-1",
		"reason":     "lost ticket",
	}, &session)

	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d", resp.Code)
	}
}

func TestOverrideAlreadyRedeemed(t *testing.T) {
	by := "bouncer-2"
	st := fakeStore{
		findFn: func(ctx context.Context, eventID, identifier string) (models.Ticket, error) {
			return models.Ticket{TicketID: "ticket-9", EventID: eventID}, nil
		},
		redeemFn: func(ctx context.Context, input store.RedeemInput) (models.Ticket, bool, error) {
			return models.Ticket{TicketID: "ticket-9", Status: models.StatusRedeemed, RedeemedBy: &by}, false, nil
		},
	}
	h := newTestHandler(st)
	session := managerSession()

	resp := postJSON(t, h, "/api/override", map[string]string{
		"identifier": "TK-0042",
		"event_id":   "event-1",
		"reason":     "lost ticket",
	}, &session)

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", resp.Code)
	}
}

func TestOverrideUnknownIdentifier(t *testing.T) {
	h := newTestHandler(fakeStore{})
	session := managerSession()

	resp := postJSON(t, h, "/api/override", map[string]string{
		"identifier": "nobody@example.com",
		"event_id":   "event-1",
		"reason":     "lost ticket",
	}, &session)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", resp.Code)
	}
}

func TestTicketQRSuccess(t *testing.T) {
	st := fakeStore{
		getByHashFn: func(ctx context.Context, eventID, qrHash string) (models.Ticket, error) {
			return models.Ticket{TicketID: "ticket-1", EventID: eventID, QRHash: qrHash}, nil
		},
	}
	h := newTestHandler(st)

	req := httptest.NewRequest(http.MethodGet, "/api/tickets/qr?event_id=event-1&qr_hash=hash-a", nil)
	resp := httptest.NewRecorder()
	h.Routes().ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	if contentType := resp.Header().Get("Content-Type"); contentType != "image/png" {
		t.Fatalf("expected image/png, got %s", contentType)
	}
	if resp.Body.Len() == 0 {
		t.Fatal("expected PNG bytes")
	}
}

func TestRedemptionsMissingParams(t *testing.T) {
	h := newTestHandler(fakeStore{})

	req := httptest.NewRequest(http.MethodGet, "/api/redemptions?event_id=event-1", nil)
	resp := httptest.NewRecorder()
	h.Routes().ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}
}

func TestAuthMiddlewareRejectsMissingSession(t *testing.T) {
	h := newTestHandler(fakeStore{})
	wrapped := AuthMiddleware(fakeStore{}, h.Routes())

	req := httptest.NewRequest(http.MethodGet, "/api/manifest?event_id=event-1", nil)
	resp := httptest.NewRecorder()
	wrapped.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", resp.Code)
	}
}

func TestAuthMiddlewareExpiredSession(t *testing.T) {
	st := fakeStore{
		getSessionFn: func(ctx context.Context, sessionID string) (store.Session, error) {
			return store.Session{}, store.ErrSessionExpired
		},
	}
	h := newTestHandler(st)
	wrapped := AuthMiddleware(st, h.Routes())

	req := httptest.NewRequest(http.MethodGet, "/api/manifest?event_id=event-1", nil)
	req.Header.Set("Authorization", "Bearer stale-session")
	resp := httptest.NewRecorder()
	wrapped.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", resp.Code)
	}
}

func TestAuthMiddlewarePassesHealthz(t *testing.T) {
	h := newTestHandler(fakeStore{})
	wrapped := AuthMiddleware(fakeStore{}, h.Routes())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	resp := httptest.NewRecorder()
	wrapped.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
}
