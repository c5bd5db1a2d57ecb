// Command relay runs the websocket publish/subscribe relay used by
// `teamgrid -transport=ws` when no MQTT broker is available.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brensch/teamgrid/logging"
	"github.com/brensch/teamgrid/transport/wsbus"
)

func main() {
	fs := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	addr := fs.String("listen", getEnvOrDefault("RELAY_LISTEN", ":8090"), "HTTP listen address")
	path := fs.String("path", getEnvOrDefault("RELAY_PATH", "/ws"), "Websocket endpoint path")
	var logOpts logging.Options
	fs.StringVar(&logOpts.Format, "log-format", getEnvOrDefault("LOG_FORMAT", logging.FormatPretty), "Log format: pretty, json or text")
	fs.StringVar(&logOpts.Level, "log-level", getEnvOrDefault("LOG_LEVEL", "info"), "Log level")
	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}

	logger, closeLog, err := logging.New(logOpts)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = closeLog() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	relay := wsbus.NewServer(logger)
	srv := &http.Server{
		Addr:              *addr,
		Handler:           newMux(*path, relay),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("relay listening", "addr", *addr, "path", *path)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("relay server failed", "err", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logger.Info("shutting down relay")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("relay shutdown", "err", err)
		}
	}
}

func newMux(path string, relay *wsbus.Server) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle(path, relay)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]any{"status": "ok", "conns": relay.Conns()}); err != nil {
			slog.Warn("health encode failed", "err", err)
		}
	})
	return mux
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
