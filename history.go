package imagesort

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// HistoryCapacity is the maximum number of persisted entries.
	HistoryCapacity = 20

	// DefaultHistoryKey is the KV key the history list is stored under.
	DefaultHistoryKey = "imagesort:history"
)

// ErrNotFound is returned by KV.Get for a missing key.
var ErrNotFound = errors.New("not found")

// KV is the persistent key-value storage backing the history.
// Implementations live in package kvstore.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error) // ErrNotFound if missing
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// HistoryEntry records one human verdict on an analysis. Entries are never
// modified after creation.
type HistoryEntry struct {
	ID                      string    `json:"id"`
	Timestamp               time.Time `json:"timestamp"`
	ImageName               string    `json:"imageName"`
	ImageURL                string    `json:"imageUrl"`
	UserClassification      Category  `json:"userClassification"`
	SuggestedClassification Category  `json:"suggestedClassification"`
	IsCorrect               bool      `json:"isCorrect"`
	UserVerdict             string    `json:"userVerdict"`
	Confidence              float64   `json:"confidence"`
}

// NewEntry is the caller-supplied part of a HistoryEntry.
type NewEntry struct {
	ImageName               string   `json:"imageName"`
	ImageURL                string   `json:"imageUrl"`
	UserClassification      Category `json:"userClassification"`
	SuggestedClassification Category `json:"suggestedClassification"`
	UserVerdict             string   `json:"userVerdict"`
	Confidence              float64  `json:"confidence"`
}

// HistoryStats summarizes the persisted history for score display.
type HistoryStats struct {
	Total   int `json:"total"`
	Correct int `json:"correct"`
}

// HistoryOption configures a History.
type HistoryOption func(*History)

// WithHistoryKey overrides DefaultHistoryKey.
func WithHistoryKey(key string) HistoryOption {
	return func(h *History) { h.key = key }
}

// WithClock overrides time.Now for timestamps.
func WithClock(now func() time.Time) HistoryOption {
	return func(h *History) { h.now = now }
}

// History is an append-only, capacity-bounded list of verdicts, newest
// first, stored as one JSON document under a single KV key.
//
// Each operation is one read-modify-write of the whole list, serialized
// within the process. Writers in other processes are last-write-wins.
type History struct {
	kv  KV
	key string
	now func() time.Time

	mu sync.Mutex
}

// NewHistory returns a History persisted in kv.
func NewHistory(kv KV, opts ...HistoryOption) *History {
	h := &History{kv: kv, key: DefaultHistoryKey, now: time.Now}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Record creates an entry from e, prepends it, trims the list to
// HistoryCapacity and persists it.
func (h *History) Record(ctx context.Context, e NewEntry) (HistoryEntry, error) {
	if !e.UserClassification.Valid() || !e.SuggestedClassification.Valid() {
		return HistoryEntry{}, fmt.Errorf("%w: classifications must be one of living, manufactured, natural", ErrInvalidInput)
	}

	now := h.now()
	entry := HistoryEntry{
		ID:                      newEntryID(now),
		Timestamp:               now,
		ImageName:               e.ImageName,
		ImageURL:                e.ImageURL,
		UserClassification:      e.UserClassification,
		SuggestedClassification: e.SuggestedClassification,
		IsCorrect:               e.UserClassification == e.SuggestedClassification,
		UserVerdict:             strings.TrimSpace(e.UserVerdict),
		Confidence:              e.Confidence,
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	prev, err := h.load(ctx)
	if err != nil {
		return HistoryEntry{}, fmt.Errorf("read history: %w", err)
	}
	entries := append([]HistoryEntry{entry}, prev...)
	if len(entries) > HistoryCapacity {
		entries = entries[:HistoryCapacity]
	}

	data, err := json.Marshal(entries)
	if err != nil {
		return HistoryEntry{}, fmt.Errorf("marshal history: %w", err)
	}
	if err := h.kv.Set(ctx, h.key, data); err != nil {
		return HistoryEntry{}, fmt.Errorf("persist history: %w", err)
	}
	return entry, nil
}

// List returns the persisted entries, newest first. Missing, unreadable or
// corrupt state yields an empty list.
func (h *History) List(ctx context.Context) []HistoryEntry {
	h.mu.Lock()
	defer h.mu.Unlock()
	entries, err := h.load(ctx)
	if err != nil {
		slog.Warn("imagesort: history unreadable, treating as empty", "key", h.key, "error", err.Error())
		return []HistoryEntry{}
	}
	return entries
}

// Clear deletes every entry.
func (h *History) Clear(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.kv.Delete(ctx, h.key); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}

// Stats counts entries and correct verdicts.
func (h *History) Stats(ctx context.Context) HistoryStats {
	var s HistoryStats
	for _, e := range h.List(ctx) {
		s.Total++
		if e.IsCorrect {
			s.Correct++
		}
	}
	return s
}

// load reads the list. A missing key or corrupt JSON yields an empty
// list; storage read failures are returned. Caller holds h.mu.
func (h *History) load(ctx context.Context) ([]HistoryEntry, error) {
	data, err := h.kv.Get(ctx, h.key)
	if errors.Is(err, ErrNotFound) {
		return []HistoryEntry{}, nil
	}
	if err != nil {
		return nil, err
	}

	var entries []HistoryEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		slog.Warn("imagesort: history corrupt, treating as empty", "key", h.key, "error", err.Error())
		return []HistoryEntry{}, nil
	}
	if entries == nil {
		return []HistoryEntry{}, nil
	}
	if len(entries) > HistoryCapacity {
		entries = entries[:HistoryCapacity]
	}
	return entries, nil
}

// newEntryID returns a UUIDv7 whose timestamp is the entry's creation time,
// so ids sort like timestamps even under an injected clock.
func newEntryID(now time.Time) string {
	id, err := uuid.NewRandom()
	if err != nil {
		return fmt.Sprintf("%d", now.UnixNano())
	}
	var ms [8]byte
	binary.BigEndian.PutUint64(ms[:], uint64(now.UnixMilli()))
	copy(id[:6], ms[2:])
	id[6] = id[6]&0x0f | 0x70 // version 7; NewRandom already set the variant
	return id.String()
}
