package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"entrypass/scan-service/internal/models"
	"entrypass/scan-service/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	pool      *pgxpool.Pool
	opTimeout time.Duration
}

type Options struct {
	OpTimeout time.Duration
}

func NewStore(pool *pgxpool.Pool, options Options) *Store {
	timeout := options.OpTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Store{
		pool:      pool,
		opTimeout: timeout,
	}
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opTimeout)
}

func (s *Store) GetEvent(ctx context.Context, eventID string) (models.Event, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var event models.Event
	row := s.pool.QueryRow(ctx, `
		SELECT event_id, title, venue, starts_at, ticketing_enabled
		FROM events
		WHERE event_id = $1
	`, eventID)
	if err := row.Scan(&event.EventID, &event.Title, &event.Venue, &event.StartsAt, &event.TicketingEnabled); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Event{}, store.ErrEventNotFound
		}
		return models.Event{}, err
	}
	return event, nil
}

func (s *Store) ListUnredeemedHashes(ctx context.Context, eventID string) ([]string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.pool.Query(ctx, `
		SELECT qr_hash
		FROM tickets
		WHERE event_id = $1 AND status = $2
	`, eventID, models.StatusUnredeemed)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hashes []string
	for rows.Next() {
		var hash string
		if err := rows.Scan(&hash); err != nil {
			return nil, err
		}
		hashes = append(hashes, hash)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return hashes, nil
}

// RedeemTicket is the single mutation of this service. The transition is one
// conditional UPDATE keyed on status = 'unredeemed': under concurrent attempts
// on the same ticket exactly one statement matches a row and every other
// caller is routed through the already-redeemed diagnosis.
func (s *Store) RedeemTicket(ctx context.Context, input store.RedeemInput) (models.Ticket, bool, error) {
	if !store.ValidTransition(input.Method, models.StatusUnredeemed) {
		return models.Ticket{}, false, store.ErrInvalidMethod
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Ticket{}, false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	redeemedAt := input.RedeemedAt
	if redeemedAt.IsZero() {
		redeemedAt = time.Now().UTC()
	}

	query := `
		UPDATE tickets
		SET status = $1,
			redeemed_at = $2,
			redeemed_by = $3,
			redeemed_location = $4,
			redemption_method = $5,
			override_reason = $6
		WHERE event_id = $7 AND status = $8
	`
	args := []interface{}{
		models.StatusRedeemed, redeemedAt, input.RedeemerID, nullIfEmpty(input.Location),
		input.Method, nullIfEmpty(input.Reason), input.EventID, models.StatusUnredeemed,
	}
	if input.TicketID != "" {
		query += " AND ticket_id = $9"
		args = append(args, input.TicketID)
	} else {
		query += " AND qr_hash = $9"
		args = append(args, input.QRHash)
	}
	query += " RETURNING " + ticketColumns

	row := tx.QueryRow(ctx, query, args...)
	ticket, err := scanTicket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			prior, loadErr := s.diagnoseRejection(ctx, tx, input)
			if loadErr != nil {
				err = loadErr
				return models.Ticket{}, false, loadErr
			}
			err = tx.Commit(ctx)
			if err != nil {
				return models.Ticket{}, false, err
			}
			return prior, false, nil
		}
		return models.Ticket{}, false, err
	}

	if err = insertOutboxRedeemed(ctx, tx, ticket); err != nil {
		return models.Ticket{}, false, err
	}

	if err = tx.Commit(ctx); err != nil {
		return models.Ticket{}, false, err
	}

	return ticket, true, nil
}

// diagnoseRejection figures out why the conditional UPDATE matched nothing:
// the ticket does not exist, belongs to another event, or was already
// redeemed. In the last case the prior redemption is returned so staff can
// see who admitted the holder, when, and where.
func (s *Store) diagnoseRejection(ctx context.Context, tx pgx.Tx, input store.RedeemInput) (models.Ticket, error) {
	query := "SELECT " + ticketColumns + " FROM tickets WHERE "
	var arg string
	if input.TicketID != "" {
		query += "ticket_id = $1"
		arg = input.TicketID
	} else {
		query += "qr_hash = $1"
		arg = input.QRHash
	}

	row := tx.QueryRow(ctx, query, arg)
	ticket, err := scanTicket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Ticket{}, store.ErrTicketNotFound
		}
		return models.Ticket{}, err
	}
	if ticket.EventID != input.EventID {
		return models.Ticket{}, store.ErrEventMismatch
	}
	return ticket, nil
}

func (s *Store) FindTicketByIdentifier(ctx context.Context, eventID, identifier string) (models.Ticket, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	row := s.pool.QueryRow(ctx, `
		SELECT `+ticketColumns+`
		FROM tickets
		WHERE event_id = $1 AND (ticket_number = $2 OR lower(holder_email) = lower($2))
		LIMIT 1
	`, eventID, identifier)
	ticket, err := scanTicket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Ticket{}, store.ErrTicketNotFound
		}
		return models.Ticket{}, err
	}
	return ticket, nil
}

func (s *Store) GetTicketByHash(ctx context.Context, eventID, qrHash string) (models.Ticket, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	row := s.pool.QueryRow(ctx, `
		SELECT `+ticketColumns+`
		FROM tickets
		WHERE event_id = $1 AND qr_hash = $2
	`, eventID, qrHash)
	ticket, err := scanTicket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Ticket{}, store.ErrTicketNotFound
		}
		return models.Ticket{}, err
	}
	return ticket, nil
}

func (s *Store) ListRedemptionEvents(ctx context.Context, eventID, ticketID string) ([]store.RedemptionEvent, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.pool.Query(ctx, `
		SELECT e.ticket_id, e.ticket_seq, e.type, e.payload, e.created_at, e.prev_hash, e.hash
		FROM redemption_events e
		JOIN tickets t ON t.ticket_id = e.ticket_id
		WHERE t.event_id = $1 AND e.ticket_id = $2
		ORDER BY e.ticket_seq ASC
	`, eventID, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []store.RedemptionEvent
	for rows.Next() {
		var event store.RedemptionEvent
		if err := rows.Scan(&event.TicketID, &event.TicketSeq, &event.Type, &event.Payload, &event.CreatedAt, &event.PrevHash, &event.Hash); err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

func (s *Store) ListOutboxEvents(ctx context.Context, eventID string, after time.Time, limit int) ([]store.OutboxEvent, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT outbox_id, event_id, type, payload_json, created_at
		FROM outbox_events
		WHERE event_id = $1
	`
	args := []interface{}{eventID}
	if !after.IsZero() {
		query += " AND created_at > $2"
		args = append(args, after)
		query += " ORDER BY created_at ASC LIMIT $3"
		args = append(args, limit)
	} else {
		query += " ORDER BY created_at ASC LIMIT $2"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []store.OutboxEvent
	for rows.Next() {
		var event store.OutboxEvent
		if err := rows.Scan(&event.OutboxID, &event.EventID, &event.Type, &event.Payload, &event.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

func (s *Store) GetSession(ctx context.Context, sessionID string) (store.Session, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var session store.Session
	row := s.pool.QueryRow(ctx, `
		SELECT session_id, bouncer_id, role, expires_at
		FROM sessions
		WHERE session_id = $1
	`, sessionID)
	if err := row.Scan(&session.SessionID, &session.BouncerID, &session.Role, &session.ExpiresAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.Session{}, store.ErrSessionNotFound
		}
		return store.Session{}, err
	}
	if time.Now().UTC().After(session.ExpiresAt) {
		return store.Session{}, store.ErrSessionExpired
	}
	return session, nil
}

const ticketColumns = `ticket_id, ticket_number, event_id, holder_email, ticket_type, qr_hash, status, issued_at, redeemed_at, redeemed_by, redeemed_location, redemption_method, override_reason`

func scanTicket(row pgx.Row) (models.Ticket, error) {
	var ticket models.Ticket
	var holderEmailNull sql.NullString
	var redeemedAtNull sql.NullTime
	var redeemedByNull sql.NullString
	var locationNull sql.NullString
	var methodNull sql.NullString
	var reasonNull sql.NullString
	if err := row.Scan(&ticket.TicketID, &ticket.TicketNumber, &ticket.EventID, &holderEmailNull, &ticket.TicketType, &ticket.QRHash, &ticket.Status, &ticket.IssuedAt, &redeemedAtNull, &redeemedByNull, &locationNull, &methodNull, &reasonNull); err != nil {
		return models.Ticket{}, err
	}
	if holderEmailNull.Valid {
		ticket.HolderEmail = holderEmailNull.String
	}
	ticket.RedeemedAt = nullTimePtr(redeemedAtNull)
	ticket.RedeemedBy = nullStringPtr(redeemedByNull)
	ticket.RedeemedLocation = nullStringPtr(locationNull)
	ticket.RedemptionMethod = nullStringPtr(methodNull)
	ticket.OverrideReason = nullStringPtr(reasonNull)
	return ticket, nil
}

func insertOutboxRedeemed(ctx context.Context, tx pgx.Tx, ticket models.Ticket) error {
	eventType := "ticket.redeemed"
	if ticket.RedemptionMethod != nil && *ticket.RedemptionMethod == models.MethodManualOverride {
		eventType = "ticket.override_redeemed"
	}

	payload := map[string]interface{}{
		"ticket_id":     ticket.TicketID,
		"ticket_number": ticket.TicketNumber,
		"event_id":      ticket.EventID,
		"status":        ticket.Status,
		"method":        ticket.RedemptionMethod,
		"redeemed_by":   ticket.RedeemedBy,
		"location":      ticket.RedeemedLocation,
		"redeemed_at":   ticket.RedeemedAt,
	}
	if ticket.OverrideReason != nil {
		payload["reason"] = *ticket.OverrideReason
	}

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO outbox_events (outbox_id, event_id, type, payload_json, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, uuid.NewString(), ticket.EventID, eventType, payloadJSON, time.Now().UTC())
	if err != nil {
		return err
	}
	return insertRedemptionEvent(ctx, tx, ticket.TicketID, eventType, payloadJSON)
}

func insertRedemptionEvent(ctx context.Context, tx pgx.Tx, ticketID, eventType string, payload []byte) error {
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, ticketID); err != nil {
		return err
	}

	var lastSeq int
	var prevHash sql.NullString
	row := tx.QueryRow(ctx, `
		SELECT ticket_seq, hash
		FROM redemption_events
		WHERE ticket_id = $1
		ORDER BY ticket_seq DESC
		LIMIT 1
		FOR UPDATE
	`, ticketID)
	if err := row.Scan(&lastSeq, &prevHash); err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return err
	}
	nextSeq := lastSeq + 1
	prev := ""
	if prevHash.Valid {
		prev = prevHash.String
	}
	// timestamptz stores microseconds; hash over the value the column will
	// actually hold so the chain verifies from read-back rows.
	createdAt := time.Now().UTC().Truncate(time.Microsecond)
	hash := store.ComputeRedemptionEventHash(prev, ticketID, eventType, payload, createdAt, nextSeq)

	_, err := tx.Exec(ctx, `
		INSERT INTO redemption_events (ticket_id, ticket_seq, type, payload, created_at, prev_hash, hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, ticketID, nextSeq, eventType, payload, createdAt, prev, hash)
	return err
}

func nullIfEmpty(value string) interface{} {
	if value == "" {
		return nil
	}
	return value
}

func nullTimePtr(value sql.NullTime) *time.Time {
	if !value.Valid {
		return nil
	}
	return &value.Time
}

func nullStringPtr(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	return &value.String
}
