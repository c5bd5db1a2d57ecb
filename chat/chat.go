// Package chat routes team-scoped chat lines into player queues and decides
// which viewer may see them.
package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/brensch/teamgrid/protocol"
	"github.com/brensch/teamgrid/registry"
	"github.com/brensch/teamgrid/transport"
)

type Relay struct {
	reg     *registry.Registry
	bus     transport.Transport
	ns      protocol.Namespace
	current func() string

	mu   sync.Mutex
	open map[string]map[string]bool // viewer -> team -> opened
}

// New returns a relay over reg. current reports the player whose turn it is;
// bus may be nil when only inbound relaying is needed.
func New(reg *registry.Registry, bus transport.Transport, ns protocol.Namespace, current func() string) *Relay {
	if current == nil {
		current = func() string { return "" }
	}
	return &Relay{reg: reg, bus: bus, ns: ns, current: current, open: make(map[string]map[string]bool)}
}

// Relay queues line for every player on team and returns how many players
// received it.
func (r *Relay) Relay(team, line string) int {
	return r.reg.PushChat(team, line)
}

// Drain pops everything queued for player, oldest first.
func (r *Relay) Drain(player string) []string {
	return r.reg.DrainChat(player)
}

// Visible reports whether viewer may see chat for team: either it is
// viewer's turn and viewer is on team, or viewer opened that team's room.
func (r *Relay) Visible(viewer, team string) bool {
	if viewer == "" {
		return false
	}
	r.mu.Lock()
	opened := r.open[viewer][team]
	r.mu.Unlock()
	if opened {
		return true
	}
	return r.current() == viewer && r.reg.TeamOf(viewer) == team
}

func (r *Relay) OpenRoom(viewer, team string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.open[viewer] == nil {
		r.open[viewer] = make(map[string]bool)
	}
	r.open[viewer][team] = true
}

func (r *Relay) CloseRoom(viewer, team string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.open[viewer], team)
}

// Send renders "from: text" and publishes it on team's chat topic.
func (r *Relay) Send(ctx context.Context, team, from, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if r.bus == nil {
		return fmt.Errorf("send chat: no transport")
	}
	payload, err := json.Marshal(protocol.Chat{team: protocol.RenderChat(from, text)})
	if err != nil {
		return fmt.Errorf("encode chat: %w", err)
	}
	if err := r.bus.Publish(ctx, r.ns.Chat(team), payload, transport.AtMostOnce); err != nil {
		return fmt.Errorf("send chat to %s: %w", team, err)
	}
	return nil
}
