// Package progress keeps session-scoped pipeline counters. Nothing here is
// persisted; a restart starts a fresh session.
package progress

import (
	"sync"

	"github.com/davidgr87/whats-that-sound/internal/domain"
)

// Stats is a point-in-time copy of the session counters.
type Stats struct {
	TotalProcessed int               `json:"total_processed"`
	Successful     int               `json:"successful"`
	Skipped        int               `json:"skipped"`
	Errors         int               `json:"errors"`
	Accepted       []domain.Proposal `json:"accepted,omitempty"`
}

// Tracker accumulates pipeline outcomes for the current session.
type Tracker struct {
	mu       sync.Mutex
	stats    Stats
	accepted []domain.Proposal
}

func NewTracker() *Tracker {
	return &Tracker{}
}

// RecordSuccess counts one organized folder and remembers its proposal.
func (t *Tracker) RecordSuccess(p domain.Proposal) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stats.TotalProcessed++
	t.stats.Successful++
	t.accepted = append(t.accepted, p)
}

// RecordSkip counts one skipped folder.
func (t *Tracker) RecordSkip() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stats.TotalProcessed++
	t.stats.Skipped++
}

// RecordError counts one failed folder.
func (t *Tracker) RecordError() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stats.TotalProcessed++
	t.stats.Errors++
}

// Stats returns a copy of the counters, including the accepted proposals.
func (t *Tracker) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := t.stats
	out.Accepted = make([]domain.Proposal, len(t.accepted))
	copy(out.Accepted, t.accepted)
	return out
}
