// Package tally keeps the authoritative tally state per NDI source and
// reconciles it against the cameras on a fixed tick.
package tally

import (
	"sync"
	"time"

	"github.com/koensayr/visca-srt/pkg/frame"
)

// Entry - the latest state received for one source. The timestamp is
// carried for observability only, ordering is last-write-wins: the gateway
// is not a clock authority.
type Entry struct {
	State     frame.TallyState `json:"state"`
	Timestamp uint32           `json:"timestamp"`
	Updated   time.Time        `json:"updated"`
}

// Table - source name to latest tally state. Its mutex is released before
// any socket write.
type Table struct {
	mu      sync.Mutex
	sources map[string]Entry
}

func NewTable() *Table {
	return &Table{sources: map[string]Entry{}}
}

func (t *Table) Update(source string, state frame.TallyState, timestamp uint32) {
	t.mu.Lock()
	t.sources[source] = Entry{State: state, Timestamp: timestamp, Updated: time.Now()}
	t.mu.Unlock()
}

func (t *Table) Get(source string) (frame.TallyState, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.sources[source]
	return e.State, ok
}

// Snapshot copies the table for the status API.
func (t *Table) Snapshot() map[string]Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]Entry, len(t.sources))
	for k, v := range t.sources {
		out[k] = v
	}
	return out
}
