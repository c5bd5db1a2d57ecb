// Command teamgrid joins a lobby as one peer: it creates this terminal's
// players, waits for every client to be ready and then plays turns until the
// game server announces game over.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brensch/teamgrid/game"
	"github.com/brensch/teamgrid/logging"
	"github.com/brensch/teamgrid/peer"
	"github.com/brensch/teamgrid/store"
	"github.com/brensch/teamgrid/transport"
	"github.com/brensch/teamgrid/transport/mqtt"
	"github.com/brensch/teamgrid/transport/wsbus"
	"github.com/brensch/teamgrid/tui"
)

func main() {
	cfg, err := parseConfig(os.Args[1:], os.Stderr)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger, closeLog, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = closeLog() }()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("teamgrid stopped", "err", err)
		stop()
		_ = closeLog()
		os.Exit(1)
	}
}

func dial(ctx context.Context, cfg config, logger *slog.Logger) (transport.Transport, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if cfg.Transport == transportWS {
		c, err := wsbus.Dial(dialCtx, cfg.RelayURL, logger)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	c, err := mqtt.Dial(dialCtx, cfg.MQTT, logger)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func run(ctx context.Context, cfg config, logger *slog.Logger) error {
	bus, err := dial(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = bus.Close() }()

	var rec *store.Recorder
	if cfg.ArchiveDir != "" {
		if rec, err = store.NewRecorder(cfg.ArchiveDir); err != nil {
			return err
		}
		defer func() {
			path, err := rec.Flush()
			if err != nil {
				logger.Error("failed to write turn archive", "err", err)
				return
			}
			if path != "" {
				logger.Info("turn archive written", "path", path)
			}
		}()
	}

	eng, err := peer.New(peer.Config{
		Lobby:        cfg.Lobby,
		ClientID:     cfg.ClientID,
		BarrierDwell: cfg.BarrierDwell,
	}, bus, logger, rec)
	if err != nil {
		return err
	}
	if err := eng.Start(ctx); err != nil {
		return err
	}

	if cfg.Mode == game.KindUser {
		return runInteractive(ctx, cfg, eng, logger)
	}
	if _, err := createPlayers(ctx, cfg, eng, logger); err != nil {
		return err
	}
	return play(ctx, eng, nil, logger)
}

// createPlayers registers this terminal's player and any extra bots and
// returns the name the terminal is viewing as.
func createPlayers(ctx context.Context, cfg config, eng *peer.Engine, logger *slog.Logger) (string, error) {
	viewer, err := eng.CreatePlayer(ctx, cfg.Name, cfg.Mode, cfg.Team)
	if err != nil {
		return "", err
	}
	logger.Info("player created", "player", viewer, "team", cfg.Team, "kind", cfg.Mode)
	for i := 0; i < cfg.Bots; i++ {
		name, err := eng.CreatePlayer(ctx, "", game.KindBot, cfg.BotTeam)
		if err != nil {
			return "", err
		}
		logger.Info("bot created", "player", name, "team", cfg.BotTeam)
	}
	return viewer, nil
}

func play(ctx context.Context, eng *peer.Engine, input peer.MoveSource, logger *slog.Logger) error {
	if err := eng.EnterLobby(ctx); err != nil {
		return err
	}
	if err := eng.MarkReady(ctx); err != nil {
		return err
	}
	logger.Info("waiting for other clients")
	if err := eng.WaitForStart(ctx); err != nil {
		return err
	}
	logger.Info("game started", "order", eng.Scheduler().Order())
	if err := eng.PlayTurns(ctx, input); err != nil {
		return err
	}
	logger.Info("game over", "status", eng.LobbyStatus(), "scores", eng.Scores())
	return nil
}

// runInteractive plays in the background while the terminal UI owns the
// screen. Closing the UI stops the game loop.
func runInteractive(ctx context.Context, cfg config, eng *peer.Engine, logger *slog.Logger) error {
	viewer, err := createPlayers(ctx, cfg, eng, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	prompter := tui.NewPrompter()
	playErr := make(chan error, 1)
	go func() { playErr <- play(ctx, eng, prompter, logger) }()

	uiErr := tui.Run(ctx, eng, prompter, viewer)
	cancel()
	err = <-playErr
	if uiErr != nil && !errors.Is(uiErr, context.Canceled) {
		return uiErr
	}
	return err
}
