package chat

import (
	"context"
	"encoding/json"
	"reflect"
	"testing"
	"time"

	"github.com/brensch/teamgrid/game"
	"github.com/brensch/teamgrid/protocol"
	"github.com/brensch/teamgrid/registry"
	"github.com/brensch/teamgrid/transport"
	"github.com/brensch/teamgrid/transport/membus"
)

func newRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	r := registry.New(nil)
	for _, p := range []struct{ name, team string }{
		{"alice", "Red"}, {"bob", "Blue"}, {"carol", "Red"},
	} {
		if err := r.AddPlayer(p.name, game.KindUser, p.team); err != nil {
			t.Fatalf("AddPlayer: %v", err)
		}
	}
	return r
}

func TestRelayNeverCrossesTeams(t *testing.T) {
	reg := newRegistry(t)
	rel := New(reg, nil, "L", nil)

	if n := rel.Relay("Red", "alice: hi"); n != 2 {
		t.Fatalf("Relay delivered=%d want=2", n)
	}
	rel.Relay("Blue", "bob: psst")

	if got := rel.Drain("bob"); !reflect.DeepEqual(got, []string{"bob: psst"}) {
		t.Fatalf("bob drained %v", got)
	}
	for _, name := range []string{"alice", "carol"} {
		if got := rel.Drain(name); !reflect.DeepEqual(got, []string{"alice: hi"}) {
			t.Fatalf("%s drained %v", name, got)
		}
	}
}

func TestDrainIsFIFO(t *testing.T) {
	rel := New(newRegistry(t), nil, "L", nil)
	for _, line := range []string{"1", "2", "3"} {
		rel.Relay("Red", line)
	}
	if got := rel.Drain("alice"); !reflect.DeepEqual(got, []string{"1", "2", "3"}) {
		t.Fatalf("Drain=%v want=[1 2 3]", got)
	}
}

func TestVisible(t *testing.T) {
	current := "alice"
	rel := New(newRegistry(t), nil, "L", func() string { return current })

	if !rel.Visible("alice", "Red") {
		t.Fatalf("current player should see own team chat")
	}
	if rel.Visible("carol", "Red") {
		t.Fatalf("non-current teammate sees chat without opening the room")
	}
	if rel.Visible("alice", "Blue") {
		t.Fatalf("current player sees another team's chat")
	}

	rel.OpenRoom("carol", "Red")
	if !rel.Visible("carol", "Red") {
		t.Fatalf("opened room not visible")
	}
	rel.CloseRoom("carol", "Red")
	if rel.Visible("carol", "Red") {
		t.Fatalf("closed room still visible")
	}

	current = "bob"
	if rel.Visible("alice", "Red") {
		t.Fatalf("alice still sees chat after the turn passed")
	}
}

func TestSendPublishesRenderedLine(t *testing.T) {
	broker := membus.NewBroker()
	bus := broker.Connect()
	defer bus.Close()

	ns := protocol.Namespace("L")
	ctx := context.Background()
	if err := bus.Subscribe(ctx, ns.Chat("Red"), transport.AtMostOnce); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	rel := New(newRegistry(t), bus, ns, nil)
	if err := rel.Send(ctx, "Red", "alice", "  go left  "); err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case m := <-bus.Messages():
		var c protocol.Chat
		if err := json.Unmarshal(m.Payload, &c); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if c["Red"] != "alice: go left" {
			t.Fatalf("payload=%v", c)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no chat published")
	}
}
