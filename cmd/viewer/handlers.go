package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/brensch/teamgrid/store"
)

type GamesResponse struct {
	Total int                  `json:"total"`
	Games []store.LobbySummary `json:"games"`
}

// Turn is an archived move with its view reshaped into map rows.
type Turn struct {
	store.TurnRow
	Rows []string `json:"rows,omitempty"`
}

func newMux(roots []string, logger *slog.Logger) *http.ServeMux {
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()

	mux.HandleFunc("/api/games", func(w http.ResponseWriter, r *http.Request) {
		if !allowGet(w, r) {
			return
		}
		rows, err := store.LoadDir(roots...)
		if err != nil {
			logger.Error("load archives", "err", err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		games := store.Summarize(rows)
		total := len(games)
		offset := min(parseIntQuery(r, "offset", 0), total)
		limit := parseIntQuery(r, "limit", 200)
		end := min(offset+limit, total)
		writeJSON(w, GamesResponse{Total: total, Games: games[offset:end]})
	})

	mux.HandleFunc("/api/games/", func(w http.ResponseWriter, r *http.Request) {
		if !allowGet(w, r) {
			return
		}
		// /api/games/{lobby}/turns
		rest := strings.TrimPrefix(r.URL.Path, "/api/games/")
		parts := strings.Split(rest, "/")
		if len(parts) != 2 || parts[0] == "" || parts[1] != "turns" {
			http.NotFound(w, r)
			return
		}
		lobby, err := url.PathUnescape(parts[0])
		if err != nil {
			http.Error(w, "bad lobby", http.StatusBadRequest)
			return
		}
		rows, err := store.LoadDir(roots...)
		if err != nil {
			logger.Error("load archives", "err", err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		lobbyRows := store.LobbyTurns(rows, lobby)
		if len(lobbyRows) == 0 {
			http.NotFound(w, r)
			return
		}
		player := strings.TrimSpace(r.URL.Query().Get("player"))
		turns := make([]Turn, 0, len(lobbyRows))
		for _, row := range lobbyRows {
			if player != "" && row.Player != player {
				continue
			}
			turns = append(turns, Turn{TurnRow: row, Rows: viewRows(row.View)})
		}
		writeJSON(w, turns)
	})

	return mux
}

// viewRows renders a row-major 5x5 view as five space separated lines.
func viewRows(view []string) []string {
	const size = 5
	if len(view) != size*size {
		return nil
	}
	out := make([]string, size)
	for i := range size {
		out[i] = strings.Join(view[i*size:(i+1)*size], " ")
	}
	return out
}

func allowGet(w http.ResponseWriter, r *http.Request) bool {
	withCORS(w, r)
	if r.Method == http.MethodOptions {
		return false
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func withCORS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	_ = enc.Encode(v)
}

func parseIntQuery(r *http.Request, key string, def int) int {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

type spaHandler struct {
	staticPath string
}

func (h spaHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	index := filepath.Join(h.staticPath, "index.html")
	path := filepath.Clean(r.URL.Path)
	if path == "/" {
		http.ServeFile(w, r, index)
		return
	}
	candidate := filepath.Join(h.staticPath, strings.TrimPrefix(path, "/"))
	if fi, err := os.Stat(candidate); err == nil && !fi.IsDir() {
		http.ServeFile(w, r, candidate)
		return
	}
	http.ServeFile(w, r, index)
}
