package manifest

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"entrypass/scan-service/internal/models"
	"entrypass/scan-service/internal/store"
)

// TicketSource is the read-only slice of the store the builder needs.
type TicketSource interface {
	GetEvent(ctx context.Context, eventID string) (models.Event, error)
	ListUnredeemedHashes(ctx context.Context, eventID string) ([]string, error)
}

// Builder produces self-contained manifests for offline scanning. A manifest
// is a snapshot: it knows nothing about redemptions that happen after it is
// generated. Generated manifests are cached until they expire; regeneration
// replaces the snapshot wholesale.
type Builder struct {
	source TicketSource
	ttl    time.Duration

	mu       sync.Mutex
	cache    map[string]models.Manifest
	versions map[string]int64
}

type Options struct {
	TTL time.Duration
}

func NewBuilder(source TicketSource, options Options) *Builder {
	ttl := options.TTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Builder{
		source:   source,
		ttl:      ttl,
		cache:    make(map[string]models.Manifest),
		versions: make(map[string]int64),
	}
}

// GetManifest returns the cached manifest for the event while it is fresh,
// otherwise generates a new one.
func (b *Builder) GetManifest(ctx context.Context, eventID string) (models.Manifest, error) {
	b.mu.Lock()
	cached, ok := b.cache[eventID]
	b.mu.Unlock()
	if ok && time.Now().UTC().Before(cached.ExpiresAt) {
		return cached, nil
	}
	return b.GenerateManifest(ctx, eventID)
}

// GenerateManifest computes a fresh snapshot of all currently unredeemed
// ticket hashes for the event. Generation never mutates ticket state.
func (b *Builder) GenerateManifest(ctx context.Context, eventID string) (models.Manifest, error) {
	event, err := b.source.GetEvent(ctx, eventID)
	if err != nil {
		return models.Manifest{}, err
	}
	if !event.TicketingEnabled {
		return models.Manifest{}, store.ErrTicketingDisabled
	}

	hashes, err := b.source.ListUnredeemedHashes(ctx, eventID)
	if err != nil {
		return models.Manifest{}, err
	}
	sort.Strings(hashes)

	generatedAt := time.Now().UTC()
	manifest := models.Manifest{
		EventID:       event.EventID,
		EventTitle:    event.Title,
		Venue:         event.Venue,
		EventStartsAt: event.StartsAt,
		TicketHashes:  hashes,
		TotalTickets:  len(hashes),
		ManifestHash:  ComputeManifestHash(hashes),
		GeneratedAt:   generatedAt,
		ExpiresAt:     generatedAt.Add(b.ttl),
	}

	b.mu.Lock()
	b.versions[eventID]++
	manifest.Version = b.versions[eventID]
	b.cache[eventID] = manifest
	b.mu.Unlock()

	return manifest, nil
}

// Invalidate drops the cached manifest for an event so the next request
// regenerates it.
func (b *Builder) Invalidate(eventID string) {
	b.mu.Lock()
	delete(b.cache, eventID)
	b.mu.Unlock()
}

// SweepExpired evicts expired snapshots and reports how many were dropped.
func (b *Builder) SweepExpired() int {
	now := time.Now().UTC()
	b.mu.Lock()
	defer b.mu.Unlock()
	dropped := 0
	for eventID, cached := range b.cache {
		if !now.Before(cached.ExpiresAt) {
			delete(b.cache, eventID)
			dropped++
		}
	}
	return dropped
}

// ComputeManifestHash digests a hash set into a single deterministic value.
// The input is sorted before digesting, so the result does not depend on
// storage order.
func ComputeManifestHash(hashes []string) string {
	ordered := make([]string, len(hashes))
	copy(ordered, hashes)
	sort.Strings(ordered)
	sum := sha256.Sum256([]byte(strings.Join(ordered, "\n")))
	return fmt.Sprintf("%x", sum)
}

// VerifyOffline is a pure membership test against a manifest held on the
// scanning device. A true result only proves the hash was valid as of
// manifest generation: the ticket may since have been redeemed online or by
// another offline device. Callers must treat a match as pending_sync, not as
// a final admit decision; reconciliation against the store is authoritative.
func VerifyOffline(qrHash string, manifestHashes map[string]struct{}) bool {
	_, ok := manifestHashes[qrHash]
	return ok
}

// HashSet builds the membership set VerifyOffline expects from a manifest's
// hash list.
func HashSet(hashes []string) map[string]struct{} {
	set := make(map[string]struct{}, len(hashes))
	for _, hash := range hashes {
		set[hash] = struct{}{}
	}
	return set
}
