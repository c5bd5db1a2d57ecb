// Command viewer serves the Parquet turn archives written by
// `teamgrid -archive-dir` as a small JSON API.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/brensch/teamgrid/logging"
)

func main() {
	fs := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	listen := fs.String("listen", "127.0.0.1:8080", "HTTP listen address")
	dataDirs := fs.String("data-dirs", "archive", "Comma-separated list of directories containing turn archives")
	staticDir := fs.String("static-dir", "", "Optional directory to serve as SPA static")
	var logOpts logging.Options
	fs.StringVar(&logOpts.Format, "log-format", logging.FormatPretty, "Log format: pretty, json or text")
	fs.StringVar(&logOpts.Level, "log-level", "info", "Log level")
	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}

	logger, closeLog, err := logging.New(logOpts)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = closeLog() }()

	roots := parseDataRoots(*dataDirs)
	logger.Info("viewer data roots", "roots", roots)

	mux := newMux(roots, logger)
	if strings.TrimSpace(*staticDir) != "" {
		mux.Handle("/", spaHandler{staticPath: *staticDir})
		logger.Info("serving SPA", "dir", *staticDir)
	}

	srv := &http.Server{
		Addr:              *listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	logger.Info("viewer API listening", "url", "http://"+*listen)
	if err := srv.ListenAndServe(); err != nil {
		logger.Error("viewer stopped", "err", err)
		os.Exit(1)
	}
}

func parseDataRoots(csv string) []string {
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	seen := make(map[string]bool, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}
