// Package registry tracks the players and teams of one lobby as seen by this
// client, together with each player's latest local map and chat queue.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/brensch/teamgrid/game"
	"github.com/brensch/teamgrid/protocol"
)

var (
	ErrDuplicateName = errors.New("player name already taken")
	ErrUnknownPlayer = errors.New("unknown player")
	ErrInvalidName   = errors.New("invalid name")
)

// ValidName reports whether name can be used as a player or team name. Names
// are topic levels, so they must be non-empty and free of '/', '+' and '#'.
func ValidName(name string) error {
	if strings.TrimSpace(name) == "" || strings.ContainsAny(name, "/+#") {
		return fmt.Errorf("%q: %w", name, ErrInvalidName)
	}
	return nil
}

// Player is a value copy of one registry entry.
type Player struct {
	Name string
	// Kind is empty for players learned from the bus.
	Kind game.Kind
	Team string
	// Local is set for players created by this process.
	Local bool
	// Position is the world position from the last snapshot.
	Position game.Point
	Map      game.LocalMap
	HasMap   bool
	MapFresh bool
	Mode     game.Mode
	Bot      game.BotState
	// Chat holds queued lines, oldest first.
	Chat []string
}

type player struct {
	Player
	// notify is closed and replaced on every snapshot.
	notify chan struct{}
}

type Registry struct {
	mu        sync.RWMutex
	players   map[string]*player
	teams     map[string][]string
	teamOrder []string

	onTeamCreated func(team string)
}

// New returns an empty registry. onTeamCreated, if non-nil, is called outside
// the lock once for every team name seen for the first time.
func New(onTeamCreated func(team string)) *Registry {
	return &Registry{
		players:       make(map[string]*player),
		teams:         make(map[string][]string),
		onTeamCreated: onTeamCreated,
	}
}

// AddPlayer registers a player created by this process.
func (r *Registry) AddPlayer(name string, kind game.Kind, team string) error {
	if err := ValidName(name); err != nil {
		return fmt.Errorf("add player: player %w", err)
	}
	if err := ValidName(team); err != nil {
		return fmt.Errorf("add player %s: team %w", name, err)
	}
	if !kind.Valid() {
		return fmt.Errorf("add player %s: invalid kind %q", name, kind)
	}

	r.mu.Lock()
	if _, ok := r.players[name]; ok {
		r.mu.Unlock()
		return fmt.Errorf("add player %s: %w", name, ErrDuplicateName)
	}
	created := r.addLocked(name, kind, team, true)
	r.mu.Unlock()

	if created && r.onTeamCreated != nil {
		r.onTeamCreated(team)
	}
	return nil
}

func (r *Registry) addLocked(name string, kind game.Kind, team string, local bool) (teamCreated bool) {
	r.players[name] = &player{
		Player: Player{Name: name, Kind: kind, Team: team, Local: local, Mode: game.ModePlay},
		notify: make(chan struct{}),
	}
	if _, ok := r.teams[team]; !ok {
		r.teamOrder = append(r.teamOrder, team)
		teamCreated = true
	}
	r.teams[team] = append(r.teams[team], name)
	return teamCreated
}

// MergeTeams applies a teams payload received from the bus. Unknown players
// are added as remote; a player already assigned to a different team keeps
// its first assignment. It returns the number of players added.
func (r *Registry) MergeTeams(teams protocol.Teams) int {
	var created []string
	added := 0

	r.mu.Lock()
	for _, t := range teams {
		if ValidName(t.Name) != nil {
			continue
		}
		for _, name := range t.Members {
			if ValidName(name) != nil {
				continue
			}
			if _, ok := r.players[name]; ok {
				continue
			}
			if r.addLocked(name, "", t.Name, false) {
				created = append(created, t.Name)
			}
			added++
		}
	}
	r.mu.Unlock()

	if r.onTeamCreated != nil {
		for _, team := range created {
			r.onTeamCreated(team)
		}
	}
	return added
}

// RecordSnapshot projects snap into name's local map and wakes any AwaitMap
// caller. It reports false for unknown players.
func (r *Registry) RecordSnapshot(name string, snap *game.Snapshot) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.players[name]
	if !ok {
		return false
	}
	p.Position = snap.CurrentPosition
	p.Map = game.Project(name, snap)
	p.HasMap = true
	p.MapFresh = true
	close(p.notify)
	p.notify = make(chan struct{})
	return true
}

// AwaitMap blocks until name has a map newer than the last one returned,
// then clears the freshness flag and returns it.
func (r *Registry) AwaitMap(ctx context.Context, name string) (game.LocalMap, error) {
	for {
		r.mu.Lock()
		p, ok := r.players[name]
		if !ok {
			r.mu.Unlock()
			return game.LocalMap{}, fmt.Errorf("await map %s: %w", name, ErrUnknownPlayer)
		}
		if p.MapFresh {
			p.MapFresh = false
			m := p.Map
			r.mu.Unlock()
			return m, nil
		}
		wait := p.notify
		r.mu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			return game.LocalMap{}, ctx.Err()
		}
	}
}

// TeamsView returns the teams in registration order.
func (r *Registry) TeamsView() protocol.Teams {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(protocol.Teams, 0, len(r.teamOrder))
	for _, t := range r.teamOrder {
		out = append(out, protocol.Team{Name: t, Members: append([]string(nil), r.teams[t]...)})
	}
	return out
}

func (r *Registry) TeamOrder() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.teamOrder...)
}

// TurnOrder flattens teams in registration order, members in join order.
func (r *Registry) TurnOrder() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for _, t := range r.teamOrder {
		out = append(out, r.teams[t]...)
	}
	return out
}

func (r *Registry) Player(name string) (Player, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.players[name]
	if !ok {
		return Player{}, false
	}
	out := p.Player
	out.Chat = append([]string(nil), p.Chat...)
	return out, true
}

// LocalPlayers returns the names of players created by this process, in
// turn order.
func (r *Registry) LocalPlayers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for _, t := range r.teamOrder {
		for _, name := range r.teams[t] {
			if r.players[name].Local {
				out = append(out, name)
			}
		}
	}
	return out
}

// Names returns every known player name, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.players))
	for name := range r.players {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.players)
}

func (r *Registry) IsLocal(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.players[name]
	return ok && p.Local
}

// TeamOf returns name's team, or "" if unknown.
func (r *Registry) TeamOf(name string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.players[name]; ok {
		return p.Team
	}
	return ""
}

// MaxChatQueue bounds each player's chat queue. Only a viewer's queue is
// ever drained, so the oldest lines are dropped once it is full.
const MaxChatQueue = 64

// PushChat appends line to the queue of every player on team and returns how
// many players received it.
func (r *Registry) PushChat(team, line string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, name := range r.teams[team] {
		p := r.players[name]
		if len(p.Chat) >= MaxChatQueue {
			p.Chat = append(p.Chat[:0], p.Chat[len(p.Chat)-MaxChatQueue+1:]...)
		}
		p.Chat = append(p.Chat, line)
		n++
	}
	return n
}

// DrainChat empties name's chat queue, returning lines oldest first.
func (r *Registry) DrainChat(name string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.players[name]
	if !ok {
		return nil
	}
	out := p.Chat
	p.Chat = nil
	return out
}

func (r *Registry) SetMode(name string, mode game.Mode) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.players[name]
	if !ok {
		return false
	}
	p.Mode = mode
	return true
}

func (r *Registry) BotState(name string) game.BotState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.players[name]; ok {
		return p.Bot
	}
	return game.BotState{}
}

func (r *Registry) SetBotState(name string, st game.BotState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.players[name]; ok {
		p.Bot = st
	}
}
