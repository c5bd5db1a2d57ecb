package store

import (
	"cmp"
	"fmt"
	"path/filepath"
	"slices"
)

// LobbySummary aggregates the archived turns of one lobby.
type LobbySummary struct {
	Lobby   string   `json:"lobby"`
	Moves   int      `json:"moves"`
	MaxTurn int32    `json:"max_turn"`
	Players []string `json:"players"`
	Teams   []string `json:"teams"`
	FirstNs int64    `json:"first_ns"`
	LastNs  int64    `json:"last_ns"`
}

// ListArchives returns the turn files directly under dir, oldest first.
func ListArchives(dir string) ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "turns_*.parquet"))
	if err != nil {
		return nil, fmt.Errorf("list archives: %w", err)
	}
	slices.Sort(paths)
	return paths, nil
}

// LoadDir reads every archive under each of dirs, ordered by record time.
func LoadDir(dirs ...string) ([]TurnRow, error) {
	var all []TurnRow
	for _, dir := range dirs {
		paths, err := ListArchives(dir)
		if err != nil {
			return nil, err
		}
		for _, p := range paths {
			rows, err := ReadTurns(p)
			if err != nil {
				return nil, err
			}
			all = append(all, rows...)
		}
	}
	slices.SortStableFunc(all, func(a, b TurnRow) int { return cmp.Compare(a.RecordedNs, b.RecordedNs) })
	return all, nil
}

// Summarize groups rows by lobby, most recently active lobby first.
func Summarize(rows []TurnRow) []LobbySummary {
	byLobby := make(map[string]*LobbySummary)
	for _, r := range rows {
		s, ok := byLobby[r.Lobby]
		if !ok {
			s = &LobbySummary{Lobby: r.Lobby, FirstNs: r.RecordedNs}
			byLobby[r.Lobby] = s
		}
		s.Moves++
		s.MaxTurn = max(s.MaxTurn, r.Turn)
		s.FirstNs = min(s.FirstNs, r.RecordedNs)
		s.LastNs = max(s.LastNs, r.RecordedNs)
		if !slices.Contains(s.Players, r.Player) {
			s.Players = append(s.Players, r.Player)
		}
		if r.Team != "" && !slices.Contains(s.Teams, r.Team) {
			s.Teams = append(s.Teams, r.Team)
		}
	}

	out := make([]LobbySummary, 0, len(byLobby))
	for _, s := range byLobby {
		out = append(out, *s)
	}
	slices.SortFunc(out, func(a, b LobbySummary) int {
		if c := cmp.Compare(b.LastNs, a.LastNs); c != 0 {
			return c
		}
		return cmp.Compare(a.Lobby, b.Lobby)
	})
	return out
}

// LobbyTurns returns the rows of one lobby in the order given.
func LobbyTurns(rows []TurnRow, lobby string) []TurnRow {
	var out []TurnRow
	for _, r := range rows {
		if r.Lobby == lobby {
			out = append(out, r)
		}
	}
	return out
}
