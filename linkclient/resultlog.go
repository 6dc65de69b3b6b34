package linkclient

import (
	"encoding/json"
	"sync"
	"time"
)

// ResultLogCapacity bounds the diagnostics log; pushing past it evicts the
// oldest entry.
const ResultLogCapacity = 6

// ResultEntry is one diagnostics record: what happened, when, and the raw
// payload involved.
type ResultEntry struct {
	Title     string
	Timestamp time.Time
	Payload   json.RawMessage
}

// ResultLog is a bounded ring of recent action results, used only for
// diagnostics. It carries no durability guarantees.
type ResultLog struct {
	mu      sync.Mutex
	entries []ResultEntry
}

// NewResultLog creates an empty result log
func NewResultLog() *ResultLog {
	return &ResultLog{}
}

// Push appends an entry, evicting the oldest when the log is full
func (l *ResultLog) Push(entry ResultEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append(l.entries, entry)
	if len(l.entries) > ResultLogCapacity {
		l.entries = l.entries[len(l.entries)-ResultLogCapacity:]
	}
}

// Entries returns a copy of the log, oldest first
func (l *ResultLog) Entries() []ResultEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]ResultEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of entries currently held
func (l *ResultLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
