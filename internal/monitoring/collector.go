// Package monitoring watches board passes and raises webhook alerts when the
// board stops making progress.
package monitoring

import (
	"strings"
	"sync"
	"time"

	"github.com/sells-group/dealdock/internal/dock"
	"github.com/sells-group/dealdock/internal/model"
)

// Snapshot holds a point-in-time view of board health.
type Snapshot struct {
	// Deal counts by phase name, plus "unknown" for invalid phases.
	Phases   map[string]int `json:"phases"`
	Deals    int            `json:"deals"`
	Archived int            `json:"archived"`

	// Incoming deals older than the stale cutoff.
	StaleIncoming []string `json:"stale_incoming,omitempty"`

	// Pass outcome.
	Advanced            int `json:"advanced"`
	Downgraded          int `json:"downgraded"`
	FailedCommits       int `json:"failed_commits"`
	ConsecutiveFailures int `json:"consecutive_failures"`
	// Deals whose conflict set differs from the one last seen for them.
	NewConflicts        int `json:"new_conflicts"`
	QueueDepth          int `json:"queue_depth"`

	// Metadata.
	StaleAfterHours int       `json:"stale_after_hours"`
	CollectedAt     time.Time `json:"collected_at"`
}

// Collector turns pass reports into snapshots. It remembers how many passes
// in a row reported commit failures, and the last conflict set reported for
// each open deal so a re-check of a known conflict is not counted again.
type Collector struct {
	staleAfter time.Duration
	now        func() time.Time

	mu          sync.Mutex
	consecutive int
	conflicts   map[string]string // deal id -> conflict signature
}

// NewCollector creates a collector that flags incoming deals older than
// staleAfterHours. Zero disables the stale check.
func NewCollector(staleAfterHours int) *Collector {
	return &Collector{
		staleAfter: time.Duration(staleAfterHours) * time.Hour,
		now:        func() time.Time { return time.Now().UTC() },
		conflicts:  make(map[string]string),
	}
}

// Collect summarizes one pass and the snapshot it ran on.
func (c *Collector) Collect(report dock.PassReport, deals []model.Deal) *Snapshot {
	now := c.now()
	snap := &Snapshot{
		Phases:          make(map[string]int, 5),
		Deals:           len(deals),
		Advanced:        len(report.Advanced),
		Downgraded:      len(report.Downgraded),
		FailedCommits:   len(report.Notices),
		StaleAfterHours: int(c.staleAfter / time.Hour),
		CollectedAt:     now,
	}

	for i := range deals {
		d := &deals[i]
		if d.IsTerminal() {
			snap.Archived++
		}
		snap.Phases[d.DockPhase.String()]++
		if c.staleAfter > 0 && !d.IsTerminal() && d.DockPhase == model.PhaseIncoming &&
			!d.CreatedAt.IsZero() && now.Sub(d.CreatedAt) > c.staleAfter {
			snap.StaleIncoming = append(snap.StaleIncoming, d.ID)
		}
	}

	for _, n := range report.Pending {
		snap.QueueDepth += n
	}

	c.mu.Lock()
	for _, h := range report.Checked {
		if !h.HasConflicts() {
			delete(c.conflicts, h.DealID)
			continue
		}
		sig := conflictSignature(h)
		if c.conflicts[h.DealID] != sig {
			snap.NewConflicts++
			c.conflicts[h.DealID] = sig
		}
	}
	c.forgetClosed(deals)
	if report.Failed() {
		c.consecutive++
	} else {
		c.consecutive = 0
	}
	snap.ConsecutiveFailures = c.consecutive
	c.mu.Unlock()

	return snap
}

// forgetClosed drops remembered conflicts of deals that are gone or
// archived. Caller holds mu.
func (c *Collector) forgetClosed(deals []model.Deal) {
	open := make(map[string]bool, len(deals))
	for i := range deals {
		if !deals[i].IsTerminal() {
			open[deals[i].ID] = true
		}
	}
	for id := range c.conflicts {
		if !open[id] {
			delete(c.conflicts, id)
		}
	}
}

func conflictSignature(h model.ConflictHint) string {
	var b strings.Builder
	for _, cf := range h.Conflicts {
		b.WriteString(cf.KVNumber)
		b.WriteByte('=')
		b.WriteString(strings.Join(cf.DealIDs, ","))
		b.WriteByte(';')
	}
	return b.String()
}
