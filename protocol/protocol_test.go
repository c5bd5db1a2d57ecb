package protocol

import (
	"encoding/json"
	"testing"
)

func TestNamespaceRoundTrip(t *testing.T) {
	ns := Namespace("L1")
	cases := []struct {
		topic   string
		route   Route
		subject string
	}{
		{ns.Lobby(), RouteLobby, ""},
		{ns.GameState("alice"), RouteGameState, "alice"},
		{ns.Scores(), RouteScores, ""},
		{ns.CurrentPlayer(), RouteCurrentPlayer, ""},
		{ns.Teams(), RouteTeams, ""},
		{ns.ClientStates(), RouteClientStates, ""},
		{ns.Chat("Red"), RouteChat, "Red"},
		{ns.Move("bob"), RouteMove, "bob"},
		{ns.Start(), RouteStart, ""},
		{TopicNewGame, RouteNewGame, ""},
		{"games/L2/lobby", RouteUnknown, ""},
		{"games/L1/a/b/c", RouteUnknown, ""},
		{"games/L1//chat", RouteUnknown, ""},
	}
	for _, tc := range cases {
		route, subject := ns.Parse(tc.topic)
		if route != tc.route || subject != tc.subject {
			t.Fatalf("Parse(%q)=(%v,%q) want=(%v,%q)", tc.topic, route, subject, tc.route, tc.subject)
		}
	}
	if got := ns.GameStateFilter(); got != "games/L1/+/game_state" {
		t.Fatalf("GameStateFilter=%q", got)
	}
}

func TestTeamsKeepOrder(t *testing.T) {
	in := []byte(`{"Zeta":["z1","z2"],"Alpha":["a1"],"Mid":[]}`)
	var ts Teams
	if err := json.Unmarshal(in, &ts); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	want := []string{"Zeta", "Alpha", "Mid"}
	if len(ts) != len(want) {
		t.Fatalf("len=%d want=%d", len(ts), len(want))
	}
	for i, name := range want {
		if ts[i].Name != name {
			t.Fatalf("team %d=%s want=%s", i, ts[i].Name, name)
		}
	}
	if ts[0].Members[1] != "z2" {
		t.Fatalf("members=%v", ts[0].Members)
	}

	out, err := json.Marshal(ts)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != `{"Zeta":["z1","z2"],"Alpha":["a1"],"Mid":[]}` {
		t.Fatalf("marshal=%s", out)
	}
}

func TestTeamsRejectsNonObject(t *testing.T) {
	var ts Teams
	if err := json.Unmarshal([]byte(`["Red"]`), &ts); err == nil {
		t.Fatalf("expected error for array payload")
	}
	if err := json.Unmarshal([]byte(`{"Red":"alice"}`), &ts); err == nil {
		t.Fatalf("expected error for non-list members")
	}
}

func TestIsGameOver(t *testing.T) {
	cases := map[string]bool{
		GameOverAllCoins:          true,
		"Game Over: Team Red won": true,
		"Game Over":               true,
		"game over":               false,
		"Waiting for players":     false,
		"":                        false,
	}
	for payload, want := range cases {
		if got := IsGameOver(payload); got != want {
			t.Fatalf("IsGameOver(%q)=%v want=%v", payload, got, want)
		}
	}
}

func TestNewGameWireNames(t *testing.T) {
	b, err := json.Marshal(NewGame{LobbyName: "L", TeamName: "Red", PlayerName: "alice"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"lobby_name":"L","team_name":"Red","player_name":"alice"}` {
		t.Fatalf("got %s", b)
	}
}
