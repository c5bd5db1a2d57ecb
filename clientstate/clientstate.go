// Package clientstate implements the readiness barrier between client
// processes. Each client publishes the phase of every client it knows about,
// so late joiners converge without a coordinator.
package clientstate

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/brensch/teamgrid/game"
	"github.com/brensch/teamgrid/protocol"
)

// BroadcastFunc publishes the full known state map.
type BroadcastFunc func(ctx context.Context, states protocol.ClientStates) error

type Synchronizer struct {
	broadcast BroadcastFunc

	mu     sync.Mutex
	states protocol.ClientStates
	// local holds the IDs set through SetLocalState; only this process
	// speaks for them.
	local   map[string]bool
	changed chan struct{}
}

func New(broadcast BroadcastFunc) *Synchronizer {
	return &Synchronizer{
		broadcast: broadcast,
		states:    make(protocol.ClientStates),
		local:     make(map[string]bool),
		changed:   make(chan struct{}),
	}
}

func (s *Synchronizer) notifyLocked() {
	close(s.changed)
	s.changed = make(chan struct{})
}

// SetLocalState records phase for id. When the value changes every known
// entry is broadcast, not only id's.
func (s *Synchronizer) SetLocalState(ctx context.Context, id string, phase game.Phase) error {
	s.mu.Lock()
	s.local[id] = true
	if s.states[id] == phase {
		s.mu.Unlock()
		return nil
	}
	s.states[id] = phase
	s.notifyLocked()
	snapshot := maps.Clone(s.states)
	s.mu.Unlock()

	if s.broadcast == nil {
		return nil
	}
	return s.broadcast(ctx, snapshot)
}

// Merge applies a received map and reports whether anything changed. It
// never broadcasts. Peers relay every entry they know, possibly stale, so an
// entry never overrides a local client and never moves a client back to an
// earlier phase.
func (s *Synchronizer) Merge(states protocol.ClientStates) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := false
	for id, phase := range states {
		if id == "" || s.local[id] || phase.Rank() < 0 {
			continue
		}
		if cur, ok := s.states[id]; ok && phase.Rank() <= cur.Rank() {
			continue
		}
		s.states[id] = phase
		changed = true
	}
	if changed {
		s.notifyLocked()
	}
	return changed
}

// AllSynced reports whether at least one client is known and every known
// client is in phase.
func (s *Synchronizer) AllSynced(phase game.Phase) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.allSyncedLocked(phase)
}

func (s *Synchronizer) allSyncedLocked(phase game.Phase) bool {
	if len(s.states) == 0 {
		return false
	}
	for _, p := range s.states {
		if p != phase {
			return false
		}
	}
	return true
}

// AwaitSynced waits for AllSynced(phase), then waits dwell and checks again,
// repeating until the predicate still holds after the dwell. Clients that
// have not announced themselves by then are not waited for.
func (s *Synchronizer) AwaitSynced(ctx context.Context, phase game.Phase, dwell time.Duration) error {
	for {
		s.mu.Lock()
		ok, wait := s.allSyncedLocked(phase), s.changed
		s.mu.Unlock()

		if !ok {
			select {
			case <-wait:
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if dwell > 0 {
			t := time.NewTimer(dwell)
			select {
			case <-t.C:
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			}
		}
		if s.AllSynced(phase) {
			return nil
		}
	}
}

// Known returns every known client ID, sorted.
func (s *Synchronizer) Known() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Sorted(maps.Keys(s.states))
}

func (s *Synchronizer) State(id string) (game.Phase, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.states[id]
	return p, ok
}

// Leader returns the smallest known client ID.
func (s *Synchronizer) Leader() string {
	known := s.Known()
	if len(known) == 0 {
		return ""
	}
	return known[0]
}
