package reconcile

import (
	"context"
	"fmt"
	"log"
	"time"

	"entrypass/scan-service/internal/models"
	"entrypass/scan-service/internal/store"
)

// ScanResult is one queued offline scan as reported by a device.
type ScanResult struct {
	QRHash    string    `json:"qr_hash"`
	BouncerID string    `json:"bouncer_id"`
	Location  string    `json:"location"`
	ScannedAt time.Time `json:"scanned_at"`
}

// Report summarizes a reconciled batch. Errors holds one entry per failed
// scan; per-item failures are data, not transport errors.
type Report struct {
	Synced int      `json:"synced"`
	Failed int      `json:"failed"`
	Errors []string `json:"errors"`
}

// Redeemer is the single store operation the reconciler needs.
type Redeemer interface {
	RedeemTicket(ctx context.Context, input store.RedeemInput) (models.Ticket, bool, error)
}

// Reconciler replays batches of offline scans against the canonical store.
// Each scan goes through the same atomic redemption as an online scan, so
// resubmitting a batch cannot change ticket state beyond the first successful
// application.
type Reconciler struct {
	store    Redeemer
	maxBatch int
}

type Config struct {
	MaxBatch int
}

func New(store Redeemer, cfg Config) *Reconciler {
	maxBatch := cfg.MaxBatch
	if maxBatch <= 0 {
		maxBatch = 500
	}
	return &Reconciler{
		store:    store,
		maxBatch: maxBatch,
	}
}

func (r *Reconciler) MaxBatch() int {
	return r.maxBatch
}

// Sync applies the batch in the device's original scan order. A scan whose
// ticket is already redeemed fails that scan only; the rest of the batch
// continues. If the context ends partway, already-applied redemptions stay
// committed and the report covers only what was attempted.
func (r *Reconciler) Sync(ctx context.Context, eventID, deviceID string, scans []ScanResult) Report {
	var report Report
	for i, scan := range scans {
		if ctx.Err() != nil {
			remaining := len(scans) - i
			report.Failed += remaining
			report.Errors = append(report.Errors, fmt.Sprintf("sync aborted with %d scans unprocessed: %v", remaining, ctx.Err()))
			break
		}

		redeemer := scan.BouncerID
		if deviceID != "" {
			redeemer = scan.BouncerID + ":" + deviceID
		}

		ticket, applied, err := r.store.RedeemTicket(ctx, store.RedeemInput{
			QRHash:     scan.QRHash,
			EventID:    eventID,
			RedeemerID: redeemer,
			Location:   scan.Location,
			Method:     models.MethodOfflineManifest,
			RedeemedAt: scan.ScannedAt,
		})
		switch {
		case err != nil:
			report.Failed++
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", scan.QRHash, err))
		case !applied:
			report.Failed++
			report.Errors = append(report.Errors, conflictMessage(scan.QRHash, ticket))
		default:
			report.Synced++
		}
	}

	log.Printf("sync event=%s device=%s scans=%d synced=%d failed=%d", eventID, deviceID, len(scans), report.Synced, report.Failed)
	return report
}

func conflictMessage(qrHash string, ticket models.Ticket) string {
	by := "unknown"
	if ticket.RedeemedBy != nil {
		by = *ticket.RedeemedBy
	}
	at := ""
	if ticket.RedeemedAt != nil {
		at = ticket.RedeemedAt.UTC().Format(time.RFC3339)
	}
	method := ""
	if ticket.RedemptionMethod != nil {
		method = *ticket.RedemptionMethod
	}
	return fmt.Sprintf("%s: already redeemed by %s at %s via %s", qrHash, by, at, method)
}
