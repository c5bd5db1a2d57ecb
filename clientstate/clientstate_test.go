package clientstate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/brensch/teamgrid/game"
	"github.com/brensch/teamgrid/protocol"
)

func TestAllSyncedEmptyIsFalse(t *testing.T) {
	s := New(nil)
	for _, ph := range []game.Phase{game.PhaseTitle, game.PhaseLobby, game.PhaseReady} {
		if s.AllSynced(ph) {
			t.Fatalf("AllSynced(%s) true on empty map", ph)
		}
	}
}

func TestReadyBarrier(t *testing.T) {
	var sent []protocol.ClientStates
	s := New(func(_ context.Context, st protocol.ClientStates) error {
		sent = append(sent, st)
		return nil
	})
	s.Merge(protocol.ClientStates{"c1": game.PhaseReady, "c2": game.PhaseReady, "c3": game.PhaseLobby})
	if s.AllSynced(game.PhaseReady) {
		t.Fatalf("AllSynced(ready)=true with c3 in lobby")
	}
	if len(sent) != 0 {
		t.Fatalf("Merge broadcast %d times", len(sent))
	}

	if err := s.SetLocalState(context.Background(), "c3", game.PhaseReady); err != nil {
		t.Fatalf("SetLocalState: %v", err)
	}
	if !s.AllSynced(game.PhaseReady) {
		t.Fatalf("AllSynced(ready)=false after c3 ready")
	}
	if len(sent) != 1 || len(sent[0]) != 3 {
		t.Fatalf("broadcasts=%v, want one full map of 3", sent)
	}
}

func TestSetLocalStateUnchangedDoesNotBroadcast(t *testing.T) {
	n := 0
	s := New(func(context.Context, protocol.ClientStates) error { n++; return nil })
	ctx := context.Background()
	_ = s.SetLocalState(ctx, "c1", game.PhaseLobby)
	_ = s.SetLocalState(ctx, "c1", game.PhaseLobby)
	if n != 1 {
		t.Fatalf("broadcasts=%d want=1", n)
	}
}

func TestSetLocalStateReturnsBroadcastError(t *testing.T) {
	boom := errors.New("down")
	s := New(func(context.Context, protocol.ClientStates) error { return boom })
	if err := s.SetLocalState(context.Background(), "c1", game.PhaseLobby); !errors.Is(err, boom) {
		t.Fatalf("err=%v want=%v", err, boom)
	}
}

func TestMergeReportsChange(t *testing.T) {
	s := New(nil)
	if !s.Merge(protocol.ClientStates{"a": game.PhaseLobby}) {
		t.Fatalf("first merge reported no change")
	}
	if s.Merge(protocol.ClientStates{"a": game.PhaseLobby}) {
		t.Fatalf("repeat merge reported change")
	}
}

func TestLeader(t *testing.T) {
	s := New(nil)
	if s.Leader() != "" {
		t.Fatalf("leader of empty set=%q", s.Leader())
	}
	s.Merge(protocol.ClientStates{"b7": game.PhaseLobby, "a3": game.PhaseLobby, "c1": game.PhaseLobby})
	if got := s.Leader(); got != "a3" {
		t.Fatalf("Leader=%s want=a3", got)
	}
}

func TestAwaitSyncedWaitsForLateClient(t *testing.T) {
	s := New(nil)
	ctx := context.Background()
	_ = s.SetLocalState(ctx, "c1", game.PhaseReady)
	s.Merge(protocol.ClientStates{"c2": game.PhaseLobby})

	done := make(chan error, 1)
	go func() { done <- s.AwaitSynced(ctx, game.PhaseReady, 10*time.Millisecond) }()

	select {
	case err := <-done:
		t.Fatalf("AwaitSynced returned early: %v", err)
	case <-time.After(30 * time.Millisecond):
	}

	s.Merge(protocol.ClientStates{"c2": game.PhaseReady})
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("AwaitSynced: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("AwaitSynced did not return")
	}
}

func TestAwaitSyncedRechecksAfterDwell(t *testing.T) {
	s := New(nil)
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	s.Merge(protocol.ClientStates{"c1": game.PhaseReady})

	done := make(chan error, 1)
	go func() { done <- s.AwaitSynced(ctx, game.PhaseReady, 100*time.Millisecond) }()

	// A new client shows up during the dwell and is not ready yet.
	time.Sleep(20 * time.Millisecond)
	s.Merge(protocol.ClientStates{"c2": game.PhaseLobby})

	if err := <-done; !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err=%v, want deadline since c2 never became ready", err)
	}
}

func TestMergeIgnoresStaleEntries(t *testing.T) {
	s := New(nil)
	ctx := context.Background()
	_ = s.SetLocalState(ctx, "me", game.PhaseReady)
	s.Merge(protocol.ClientStates{"peer": game.PhaseReady})

	if s.Merge(protocol.ClientStates{"me": game.PhaseLobby, "peer": game.PhaseLobby}) {
		t.Fatalf("stale merge reported a change")
	}
	if p, _ := s.State("me"); p != game.PhaseReady {
		t.Fatalf("local entry overwritten: %s", p)
	}
	if p, _ := s.State("peer"); p != game.PhaseReady {
		t.Fatalf("peer moved backwards: %s", p)
	}
	if s.Merge(protocol.ClientStates{"peer": "dancing"}) {
		t.Fatalf("unknown phase accepted")
	}
	if !s.Merge(protocol.ClientStates{"peer": game.PhaseInGame}) {
		t.Fatalf("forward progress rejected")
	}
}
