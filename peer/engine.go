// Package peer runs one client of a lobby: it keeps the local registry, turn
// order and readiness barrier in step with the bus, and drives the moves of
// the players created by this process.
package peer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/brensch/teamgrid/chat"
	"github.com/brensch/teamgrid/clientstate"
	"github.com/brensch/teamgrid/game"
	"github.com/brensch/teamgrid/protocol"
	"github.com/brensch/teamgrid/registry"
	"github.com/brensch/teamgrid/store"
	"github.com/brensch/teamgrid/transport"
	"github.com/brensch/teamgrid/turn"
)

const (
	DefaultBarrierDwell = 500 * time.Millisecond
	eventBuffer         = 256
)

type Config struct {
	Lobby    string
	ClientID string
	// BarrierDwell is how long the ready barrier must keep holding before
	// the game starts.
	BarrierDwell time.Duration
}

type Engine struct {
	cfg    Config
	bus    transport.Transport
	logger *slog.Logger
	rec    *store.Recorder
	ns     protocol.Namespace

	reg   *registry.Registry
	sched *turn.Scheduler
	sync  *clientstate.Synchronizer
	chat  *chat.Relay

	events chan Event

	mu           sync.Mutex
	ctx          context.Context
	pendingTeams []string
	scores       protocol.Scores
	phase        game.Phase
	lobbyStatus  string
	// agreedTeams is the last teams payload seen before the game started.
	// The leader publishes its view just before START, so every client
	// derives the same turn order from it.
	agreedTeams protocol.Teams
	// moves counts the moves made by each local player.
	moves map[string]int32

	started   chan struct{}
	startOnce sync.Once
	over      chan struct{}
	overOnce  sync.Once
	done      chan struct{}
	err       error
}

func New(cfg Config, bus transport.Transport, logger *slog.Logger, rec *store.Recorder) (*Engine, error) {
	if cfg.Lobby == "" || cfg.ClientID == "" {
		return nil, fmt.Errorf("peer: lobby and client id are required")
	}
	if bus == nil {
		return nil, fmt.Errorf("peer: transport is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BarrierDwell <= 0 {
		cfg.BarrierDwell = DefaultBarrierDwell
	}

	e := &Engine{
		cfg:     cfg,
		bus:     bus,
		logger:  logger.With("lobby", cfg.Lobby, "client_id", cfg.ClientID),
		rec:     rec,
		ns:      protocol.Namespace(cfg.Lobby),
		events:  make(chan Event, eventBuffer),
		scores:  protocol.Scores{},
		moves:   make(map[string]int32),
		phase:   game.PhaseTitle,
		started: make(chan struct{}),
		over:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	e.reg = registry.New(e.onTeamCreated)
	e.sched = turn.New(e.publishCurrent)
	e.sync = clientstate.New(e.publishClientStates)
	e.chat = chat.New(e.reg, bus, e.ns, e.sched.Current)
	return e, nil
}

func (e *Engine) Registry() *registry.Registry { return e.reg }
func (e *Engine) Scheduler() *turn.Scheduler { return e.sched }
func (e *Engine) Clients() *clientstate.Synchronizer { return e.sync }
func (e *Engine) Chat() *chat.Relay { return e.chat }
func (e *Engine) Events() <-chan Event { return e.events }
func (e *Engine) ClientID() string { return e.cfg.ClientID }
func (e *Engine) Lobby() string { return e.cfg.Lobby }

func (e *Engine) Scores() protocol.Scores {
	e.mu.Lock()
	defer e.mu.Unlock()
	return maps.Clone(e.scores)
}

func (e *Engine) Phase() game.Phase {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phase
}

func (e *Engine) LobbyStatus() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lobbyStatus
}

// Start subscribes to the lobby topics, announces this client and starts
// the dispatch goroutine. Use Wait to learn why dispatch stopped.
func (e *Engine) Start(ctx context.Context) error {
	filters := []string{
		e.ns.Lobby(),
		e.ns.GameStateFilter(),
		e.ns.Scores(),
		e.ns.CurrentPlayer(),
		e.ns.Teams(),
		e.ns.ClientStates(),
		e.ns.Start(),
	}
	for _, f := range filters {
		if err := e.bus.Subscribe(ctx, f, qosFor(f, e.ns)); err != nil {
			return fmt.Errorf("subscribe %s: %w", f, err)
		}
	}

	e.mu.Lock()
	e.ctx = ctx
	pending := e.pendingTeams
	e.pendingTeams = nil
	e.mu.Unlock()
	for _, team := range pending {
		e.subscribeChat(ctx, team)
	}

	go func() {
		err := e.dispatch(ctx)
		e.mu.Lock()
		e.err = err
		e.mu.Unlock()
		close(e.done)
	}()

	return e.setPhase(ctx, game.PhaseTitle)
}

// Wait blocks until the dispatch loop stops and returns its error.
func (e *Engine) Wait() error {
	<-e.done
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

// Done is closed when the dispatch loop stops.
func (e *Engine) Done() <-chan struct{} { return e.done }

// GameOver is closed once an end-of-game notice has been received.
func (e *Engine) GameOver() <-chan struct{} { return e.over }

func qosFor(topic string, ns protocol.Namespace) transport.QoS {
	route, _ := ns.Parse(topic)
	switch route {
	case protocol.RouteChat, protocol.RouteScores, protocol.RouteGameState, protocol.RouteLobby:
		return transport.AtMostOnce
	}
	return transport.AtLeastOnce
}

func (e *Engine) onTeamCreated(team string) {
	e.mu.Lock()
	ctx := e.ctx
	if ctx == nil {
		e.pendingTeams = append(e.pendingTeams, team)
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()
	e.subscribeChat(ctx, team)
}

func (e *Engine) subscribeChat(ctx context.Context, team string) {
	if err := e.bus.Subscribe(ctx, e.ns.Chat(team), transport.AtMostOnce); err != nil {
		e.logger.Warn("subscribe team chat failed", "team", team, "err", err)
		return
	}
	e.logger.Debug("subscribed team chat", "team", team)
}

func (e *Engine) emit(ev Event) {
	select {
	case e.events <- ev:
	default:
		e.logger.Debug("event dropped, no reader", "kind", ev.Kind)
	}
}

func (e *Engine) publish(ctx context.Context, topic string, payload []byte) error {
	if err := e.bus.Publish(ctx, topic, payload, qosFor(topic, e.ns)); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

func (e *Engine) publishJSON(ctx context.Context, topic string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", topic, err)
	}
	return e.publish(ctx, topic, b)
}

func (e *Engine) publishCurrent(ctx context.Context, name string) error {
	return e.publish(ctx, e.ns.CurrentPlayer(), []byte(name))
}

func (e *Engine) publishClientStates(ctx context.Context, states protocol.ClientStates) error {
	return e.publishJSON(ctx, e.ns.ClientStates(), states)
}

func (e *Engine) setPhase(ctx context.Context, phase game.Phase) error {
	e.mu.Lock()
	changed := e.phase != phase
	e.phase = phase
	e.mu.Unlock()
	if changed {
		e.emit(Event{Kind: EventPhase, Phase: phase})
	}
	if err := e.sync.SetLocalState(ctx, e.cfg.ClientID, phase); err != nil {
		return fmt.Errorf("announce phase %s: %w", phase, err)
	}
	return nil
}

// CreatePlayer registers a player owned by this process, tells the game
// server about it and publishes the updated teams. An empty bot name is
// replaced with Player{n}. It returns the name used.
func (e *Engine) CreatePlayer(ctx context.Context, name string, kind game.Kind, team string) (string, error) {
	if name == "" && kind == game.KindBot {
		name = e.defaultBotName()
	}
	if err := e.reg.AddPlayer(name, kind, team); err != nil {
		return "", err
	}
	e.logger.Info("player created", "player", name, "kind", kind, "team", team)

	if err := e.publishJSON(ctx, protocol.TopicNewGame, protocol.NewGame{
		LobbyName:  e.cfg.Lobby,
		TeamName:   team,
		PlayerName: name,
	}); err != nil {
		return name, err
	}
	if err := e.publishJSON(ctx, e.ns.Teams(), e.reg.TeamsView()); err != nil {
		return name, err
	}
	e.emit(Event{Kind: EventPlayers, Player: name, Team: team})
	return name, nil
}

func (e *Engine) defaultBotName() string {
	for n := e.reg.Len() + 1; ; n++ {
		name := fmt.Sprintf("Player%d", n)
		if _, ok := e.reg.Player(name); !ok {
			return name
		}
	}
}

func (e *Engine) EnterLobby(ctx context.Context) error {
	return e.setPhase(ctx, game.PhaseLobby)
}

func (e *Engine) MarkReady(ctx context.Context) error {
	return e.setPhase(ctx, game.PhaseReady)
}

// WaitForStart waits for every known client to be ready. The leader then
// republishes the teams, sends START and the first current player; every
// client, the leader included, starts when START arrives.
func (e *Engine) WaitForStart(ctx context.Context) error {
	select {
	case <-e.started:
		return e.setPhase(ctx, game.PhaseInGame)
	default:
	}

	// The leader moves to in_game as soon as it starts, which would break
	// the barrier for anyone still dwelling, so START also ends the wait.
	bctx, cancel := context.WithCancel(ctx)
	go func() {
		select {
		case <-e.started:
		case <-e.done:
		case <-bctx.Done():
		}
		cancel()
	}()
	err := e.sync.AwaitSynced(bctx, game.PhaseReady, e.cfg.BarrierDwell)
	cancel()
	if ctx.Err() != nil {
		return ctx.Err()
	}

	select {
	case <-e.started:
	case <-e.done:
		return e.Wait()
	default:
		if err != nil {
			return fmt.Errorf("wait for ready barrier: %w", err)
		}
		if err := e.lead(ctx); err != nil {
			return err
		}
	}

	select {
	case <-e.started:
	case <-e.over:
		return nil
	case <-e.done:
		return e.Wait()
	case <-ctx.Done():
		return ctx.Err()
	}
	return e.setPhase(ctx, game.PhaseInGame)
}

// lead publishes the start of the game if this client is the leader.
func (e *Engine) lead(ctx context.Context) error {
	if leader := e.sync.Leader(); leader == e.cfg.ClientID {
		teams := e.reg.TeamsView()
		order := flatten(teams)
		if len(order) == 0 {
			return fmt.Errorf("start game: no players: %w", turn.ErrInvalidState)
		}
		e.logger.Info("leading game start", "order", order)
		if err := e.publishJSON(ctx, e.ns.Teams(), teams); err != nil {
			return err
		}
		if err := e.publish(ctx, e.ns.Start(), []byte(protocol.StartPayload)); err != nil {
			return err
		}
		if err := e.publishCurrent(ctx, order[0]); err != nil {
			return err
		}
	} else {
		e.logger.Info("waiting for leader to start", "leader", leader)
	}
	return nil
}

func flatten(teams protocol.Teams) []string {
	var out []string
	for _, t := range teams {
		out = append(out, t.Members...)
	}
	return out
}

// turnOrder is the agreed teams flattened, followed by any players this
// client knows that the agreed payload missed.
func (e *Engine) turnOrder() []string {
	e.mu.Lock()
	agreed := e.agreedTeams
	e.mu.Unlock()

	order := flatten(agreed)
	seen := make(map[string]bool, len(order))
	out := make([]string, 0, len(order))
	for _, name := range order {
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	for _, name := range e.reg.TurnOrder() {
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}

func (e *Engine) onStart() {
	e.startOnce.Do(func() {
		order := e.turnOrder()
		if err := e.sched.Finalize(order); err != nil {
			e.logger.Error("finalize turn order", "err", err)
		}
		if err := e.sched.Start(); err != nil {
			e.logger.Error("start turns", "err", err)
		}
		e.logger.Info("game started", "order", order, "current", e.sched.Current())
		close(e.started)
		e.emit(Event{Kind: EventTurn, Player: e.sched.Current()})
	})
}

func (e *Engine) finish(ctx context.Context, status string) {
	e.overOnce.Do(func() {
		e.sched.Finish()
		e.logger.Info("game over", "status", status, "scores", e.Scores())
		if err := e.setPhase(ctx, game.PhaseGameOver); err != nil && !errors.Is(err, context.Canceled) {
			e.logger.Warn("announce game over failed", "err", err)
		}
		close(e.over)
		e.emit(Event{Kind: EventGameOver, Text: status, Scores: e.Scores()})
	})
}
