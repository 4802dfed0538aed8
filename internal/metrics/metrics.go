// Package metrics provides lightweight, lock-free counters for tracking
// what an sshmux run did to its remote hosts.
//
// All methods are safe for concurrent use.  A nil *Collector is a
// valid no-op receiver, so callers never need to nil-check.
package metrics

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

// Op names one kind of remote operation.
type Op int

const (
	OpExecute Op = iota
	OpTest
	OpUpload
	OpDownload
	numOps
)

func (o Op) String() string {
	switch o {
	case OpExecute:
		return "execute"
	case OpTest:
		return "test"
	case OpUpload:
		return "upload"
	case OpDownload:
		return "download"
	}
	return "unknown"
}

// Collector tracks runtime metrics for a set of sessions.
// A nil Collector is safe to use; all methods become no-ops.
type Collector struct {
	sessionsOpened  atomic.Int64
	sessionsClosed  atomic.Int64
	discoveryMisses atomic.Int64
	spawnErrors     atomic.Int64

	ops      [numOps]atomic.Int64
	failures [numOps]atomic.Int64

	mu           sync.RWMutex
	startTime    time.Time
	lastError    time.Time
	lastErrorMsg string
}

// New creates a metrics collector with the start time set to now.
func New() *Collector {
	return &Collector{startTime: time.Now()}
}

// ── Session metrics ──────────────────────────────────────────────────

// SessionOpened records a control connection that finished preconnect.
func (c *Collector) SessionOpened() {
	if c == nil {
		return
	}
	c.sessionsOpened.Add(1)
}

// SessionClosed records a completed teardown.
func (c *Collector) SessionClosed() {
	if c == nil {
		return
	}
	c.sessionsClosed.Add(1)
}

// ActiveSessions returns opened minus closed.
func (c *Collector) ActiveSessions() int64 {
	if c == nil {
		return 0
	}
	return c.sessionsOpened.Load() - c.sessionsClosed.Load()
}

// DiscoveryMiss records a control process that could not be located.
func (c *Collector) DiscoveryMiss() {
	if c == nil {
		return
	}
	c.discoveryMisses.Add(1)
}

// DiscoveryMisses returns the number of failed process lookups.
func (c *Collector) DiscoveryMisses() int64 {
	if c == nil {
		return 0
	}
	return c.discoveryMisses.Load()
}

// ── Operation metrics ────────────────────────────────────────────────

// Operation records one remote operation and whether it succeeded.
func (c *Collector) Operation(op Op, ok bool) {
	if c == nil || op < 0 || op >= numOps {
		return
	}
	c.ops[op].Add(1)
	if !ok {
		c.failures[op].Add(1)
	}
}

// Operations returns how many times op ran.
func (c *Collector) Operations(op Op) int64 {
	if c == nil || op < 0 || op >= numOps {
		return 0
	}
	return c.ops[op].Load()
}

// Failures returns how many runs of op reported failure.
func (c *Collector) Failures(op Op) int64 {
	if c == nil || op < 0 || op >= numOps {
		return 0
	}
	return c.failures[op].Load()
}

// ── Error metrics ────────────────────────────────────────────────────

// SpawnError records a tool that could not be started.
func (c *Collector) SpawnError(msg string) {
	if c == nil {
		return
	}
	c.spawnErrors.Add(1)
	c.mu.Lock()
	c.lastError = time.Now()
	c.lastErrorMsg = msg
	c.mu.Unlock()
}

// SpawnErrors returns the number of spawn failures recorded.
func (c *Collector) SpawnErrors() int64 {
	if c == nil {
		return 0
	}
	return c.spawnErrors.Load()
}

// ── Snapshot ─────────────────────────────────────────────────────────

// OpStats is the per-operation part of a Snapshot.
type OpStats struct {
	Total    int64 `json:"total"`
	Failures int64 `json:"failures"`
}

// Snapshot is a point-in-time view of all metrics.
type Snapshot struct {
	Uptime           string             `json:"uptime"`
	SessionsOpened   int64              `json:"sessions_opened"`
	SessionsClosed   int64              `json:"sessions_closed"`
	DiscoveryMisses  int64              `json:"discovery_misses"`
	SpawnErrors      int64              `json:"spawn_errors"`
	Operations       map[string]OpStats `json:"operations"`
	LastError        string             `json:"last_error,omitempty"`
	LastErrorMessage string             `json:"last_error_message,omitempty"`
}

// Snapshot returns a copy of all current metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Snapshot{
		Uptime:          time.Since(c.startTime).Truncate(time.Second).String(),
		SessionsOpened:  c.sessionsOpened.Load(),
		SessionsClosed:  c.sessionsClosed.Load(),
		DiscoveryMisses: c.discoveryMisses.Load(),
		SpawnErrors:     c.spawnErrors.Load(),
		Operations:      make(map[string]OpStats, numOps),
	}
	for op := Op(0); op < numOps; op++ {
		s.Operations[op.String()] = OpStats{
			Total:    c.ops[op].Load(),
			Failures: c.failures[op].Load(),
		}
	}
	if !c.lastError.IsZero() {
		s.LastError = c.lastError.Format(time.RFC3339)
		s.LastErrorMessage = c.lastErrorMsg
	}
	return s
}

// JSON returns the snapshot as indented JSON.
func (c *Collector) JSON() string {
	b, _ := json.MarshalIndent(c.Snapshot(), "", "  ")
	return string(b)
}
