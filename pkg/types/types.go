// Package types defines the core data types shared across the Pulse
// retrieval engine: health metric records, consolidated AI memory,
// cached responses, and protocol snapshots.
package types

import (
	"fmt"
	"time"
)

// MetricRecord is a single health metric observation owned by a user.
// The record body (Value) is supplied in plaintext by the encryption
// collaborator; this engine never sees ciphertext.
type MetricRecord struct {
	// ID is the unique record identifier (UUID).
	ID string `json:"id"`

	// OwnerID is the user the record belongs to. Every search is scoped
	// to a single owner.
	OwnerID string `json:"owner_id"`

	// MetricType is the category tag, e.g. "sleep", "activity", "heart_rate".
	MetricType string `json:"metric_type"`

	// Source identifies where the observation came from (e.g. "oura", "manual").
	Source string `json:"source"`

	// Date is the observation date.
	Date time.Time `json:"date"`

	// Value holds the metric payload.
	Value MetricValue `json:"value"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MemoryEntry is one discrete insight inside a user's consolidated memory
// document. Entries are stored structured rather than re-parsed out of
// concatenated text.
type MemoryEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Content   string    `json:"content"`
}

// MemoryDocument is the consolidated narrative memory for one owner.
// There is exactly one document per owner; it grows by appending entries
// and is truncated at entry boundaries when it exceeds the size cap.
// The embedding always covers the full rendered document.
type MemoryDocument struct {
	OwnerID   string        `json:"owner_id"`
	Entries   []MemoryEntry `json:"entries"`
	Embedding []float32     `json:"-"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// entryTimeFormat matches the timestamp prefix used in rendered entries.
const entryTimeFormat = "2006-01-02 15:04:05"

// Rendered returns the document as a single text, entries separated by a
// blank line. This is the text that gets embedded and injected into prompts.
func (d *MemoryDocument) Rendered() string {
	out := ""
	for i, e := range d.Entries {
		if i > 0 {
			out += "\n\n"
		}
		out += fmt.Sprintf("[%s] %s", e.Timestamp.UTC().Format(entryTimeFormat), e.Content)
	}
	return out
}

// RenderedLen returns the length of the rendered document without building
// the full string.
func (d *MemoryDocument) RenderedLen() int {
	if len(d.Entries) == 0 {
		return 0
	}
	n := 0
	for _, e := range d.Entries {
		// "[" + timestamp + "] " + content
		n += 1 + len(entryTimeFormat) + 2 + len(e.Content)
	}
	// blank-line separators between entries
	n += 2 * (len(d.Entries) - 1)
	return n
}

// CacheEntry is one cached AI response. Entries are immutable once written
// except for the expiry rewrite performed by invalidation.
type CacheEntry struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Endpoint  string    `json:"endpoint"`
	TimeFrame string    `json:"time_frame"`
	Key       string    `json:"key"`
	Payload   []byte    `json:"payload"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Fresh reports whether the entry is still valid at the given instant.
func (e *CacheEntry) Fresh(now time.Time) bool {
	return now.Before(e.ExpiresAt)
}

// ProtocolSnapshot is a caller-supplied view of an active health protocol.
// The engine renders snapshots into the context but never computes them.
type ProtocolSnapshot struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	TargetMetrics []string  `json:"target_metrics,omitempty"`
	StartDate     time.Time `json:"start_date"`
	Status        string    `json:"status"`
	DurationType  string    `json:"duration_type,omitempty"`
	DurationDays  int       `json:"duration_days,omitempty"`
}
