package conversation

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// State of one call's dialogue.
type State string

const (
	StateGreeting       State = "greeting"
	StateAwaitingSpeech State = "awaiting_speech"
	StateProcessing     State = "processing"
	StateEnded          State = "ended"
)

// Role of a turn's speaker, aligned with the dialogue gateway's wire roles.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one utterance within a call.
type Turn struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// session is the per-call dialogue state. Its mutex serializes webhook
// processing for one call id: a whole turn runs under the lock so history
// appends never interleave.
type session struct {
	mu sync.Mutex

	callID      string
	phoneNumber string
	state       State
	turns       []Turn

	lastActivity time.Time
}

// Table maps provider call ids to live sessions. It is owned by the engine
// instance, not ambient global state; operations on different call ids are
// independent.
type Table struct {
	mu       sync.Mutex
	sessions map[string]*session

	clock func() time.Time
}

func NewTable() *Table {
	return &Table{sessions: map[string]*session{}, clock: time.Now}
}

// getOrCreate returns the session for callID, creating an empty one seeded
// with phoneNumber if absent. Creation here is defensive: the first webhook
// for a call id can arrive before (or instead of) the connected callback.
func (t *Table) getOrCreate(callID, phoneNumber string) *session {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok := t.sessions[callID]; ok {
		return s
	}
	s := &session{
		callID:       callID,
		phoneNumber:  phoneNumber,
		state:        StateGreeting,
		lastActivity: t.clock().UTC(),
	}
	t.sessions[callID] = s
	return s
}

// remove drops the session so a future reuse of the call id starts clean.
func (t *Table) remove(callID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.sessions, callID)
}

// touch refreshes the idle timestamp. lastActivity is guarded by the table
// lock so the sweep can read it without taking per-session locks.
func (t *Table) touch(s *session) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s.lastActivity = t.clock().UTC()
}

// Len reports the number of live sessions.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sessions)
}

// Snapshot is a read-only copy of one session's state for inspection.
type Snapshot struct {
	CallID      string
	PhoneNumber string
	State       State
	Turns       []Turn
}

// Lookup returns a snapshot of the session for callID, if present.
func (t *Table) Lookup(callID string) (Snapshot, bool) {
	t.mu.Lock()
	s, ok := t.sessions[callID]
	t.mu.Unlock()
	if !ok {
		return Snapshot{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	turns := make([]Turn, len(s.turns))
	copy(turns, s.turns)
	return Snapshot{CallID: s.callID, PhoneNumber: s.phoneNumber, State: s.state, Turns: turns}, true
}

// Sweep removes sessions idle for longer than ttl and returns their call
// ids. This is the safety net for calls whose terminal webhook never
// arrives; without it a provider-side silence leaks the session forever.
func (t *Table) Sweep(now time.Time, ttl time.Duration) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var removed []string
	for id, s := range t.sessions {
		if now.Sub(s.lastActivity) > ttl {
			delete(t.sessions, id)
			removed = append(removed, id)
		}
	}
	return removed
}

// RunSweeper sweeps the table periodically until ctx is cancelled. Swept
// call ids are passed to release so an outbound call abandoned mid-dialogue
// still frees its slot; release may be nil.
func (t *Table) RunSweeper(ctx context.Context, every, ttl time.Duration, release func(context.Context, string) error, log *slog.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			ids := t.Sweep(t.clock().UTC(), ttl)
			for _, id := range ids {
				if release == nil {
					continue
				}
				if err := release(ctx, id); err != nil {
					log.Warn("call slot release failed for swept session", "call_id", id, "err", err)
				}
			}
			if len(ids) > 0 {
				log.Warn("swept idle call sessions", "count", len(ids), "ttl", ttl)
			}
		case <-ctx.Done():
			return
		}
	}
}
