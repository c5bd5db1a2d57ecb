// Package turn holds the round-robin turn order every client agrees on and
// the name of the player whose move it is.
package turn

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/brensch/teamgrid/protocol"
)

var ErrInvalidState = errors.New("invalid turn state")

type State int

const (
	NotStarted State = iota
	InProgress
	Finished
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case InProgress:
		return "in_progress"
	case Finished:
		return "finished"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// PublishFunc announces a new current player to every client.
type PublishFunc func(ctx context.Context, current string) error

type Scheduler struct {
	publish PublishFunc

	mu      sync.Mutex
	state   State
	order   []string
	current string
	changed chan struct{}
}

func New(publish PublishFunc) *Scheduler {
	return &Scheduler{publish: publish, changed: make(chan struct{})}
}

func (s *Scheduler) notifyLocked() {
	close(s.changed)
	s.changed = make(chan struct{})
}

// Finalize fixes the turn order. It may only be called once, before Start.
func (s *Scheduler) Finalize(order []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(order) == 0 {
		return fmt.Errorf("finalize empty order: %w", ErrInvalidState)
	}
	if s.state != NotStarted || s.order != nil {
		return fmt.Errorf("finalize in state %s: %w", s.state, ErrInvalidState)
	}
	s.order = slices.Clone(order)
	// A current_player notice may have arrived before the order was known.
	if s.current != "" && !slices.Contains(s.order, s.current) {
		s.current = ""
	}
	return nil
}

// Start moves to InProgress, defaulting the current player to the first in
// the order.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.state == InProgress:
		return nil
	case s.state != NotStarted || len(s.order) == 0:
		return fmt.Errorf("start in state %s: %w", s.state, ErrInvalidState)
	}
	s.state = InProgress
	if s.current == "" {
		s.current = s.order[0]
	}
	s.notifyLocked()
	return nil
}

// Next returns the player after current without changing anything.
func (s *Scheduler) Next(current string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextLocked(current)
}

func (s *Scheduler) nextLocked(current string) (string, error) {
	i := slices.Index(s.order, current)
	if i < 0 {
		return "", fmt.Errorf("advance from %q: not in turn order: %w", current, ErrInvalidState)
	}
	return s.order[(i+1)%len(s.order)], nil
}

// Advance publishes and adopts the player after current. If the publish
// fails the local current player is left unchanged.
func (s *Scheduler) Advance(ctx context.Context, current string) (string, error) {
	s.mu.Lock()
	if s.state != InProgress {
		st := s.state
		s.mu.Unlock()
		return "", fmt.Errorf("advance in state %s: %w", st, ErrInvalidState)
	}
	next, err := s.nextLocked(current)
	s.mu.Unlock()
	if err != nil {
		return "", err
	}

	if s.publish != nil {
		if err := s.publish(ctx, next); err != nil {
			return "", fmt.Errorf("publish current player %s: %w", next, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == InProgress && s.current != next {
		s.current = next
		s.notifyLocked()
	}
	return next, nil
}

// SetCurrent applies a current_player notice from the bus. Names outside a
// finalized order are dropped and reported false.
func (s *Scheduler) SetCurrent(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if name == "" || s.state == Finished {
		return false
	}
	if s.order != nil && !slices.Contains(s.order, name) {
		return false
	}
	if s.current != name {
		s.current = name
		s.notifyLocked()
	}
	return true
}

func (s *Scheduler) Finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Finished {
		return
	}
	s.state = Finished
	s.notifyLocked()
}

// AwaitChange blocks until the current player is not from, or the game has
// finished, and returns the current player at that point.
func (s *Scheduler) AwaitChange(ctx context.Context, from string) (string, error) {
	for {
		s.mu.Lock()
		cur, st, wait := s.current, s.state, s.changed
		s.mu.Unlock()
		if st == Finished || (st == InProgress && cur != from) {
			return cur, nil
		}
		select {
		case <-wait:
		case <-ctx.Done():
			return cur, ctx.Err()
		}
	}
}

func (s *Scheduler) Current() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Scheduler) Order() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.order)
}

// IsGameOver reports whether a lobby payload ends the game.
func IsGameOver(payload string) bool { return protocol.IsGameOver(payload) }
