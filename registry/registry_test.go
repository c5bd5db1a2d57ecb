package registry

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/brensch/teamgrid/game"
	"github.com/brensch/teamgrid/protocol"
)

func TestAddPlayerCreatesTeamsInOrder(t *testing.T) {
	var created []string
	r := New(func(team string) { created = append(created, team) })

	for _, p := range []struct{ name, team string }{
		{"Alice", "Red"}, {"Bob", "Blue"}, {"Carol", "Red"},
	} {
		if err := r.AddPlayer(p.name, game.KindUser, p.team); err != nil {
			t.Fatalf("AddPlayer(%s): %v", p.name, err)
		}
	}

	if !reflect.DeepEqual(created, []string{"Red", "Blue"}) {
		t.Fatalf("created=%v want=[Red Blue]", created)
	}
	if got := r.TurnOrder(); !reflect.DeepEqual(got, []string{"Alice", "Carol", "Bob"}) {
		t.Fatalf("TurnOrder=%v", got)
	}
	if !r.IsLocal("Alice") {
		t.Fatalf("Alice should be local")
	}
}

func TestAddPlayerDuplicateLeavesNoPartialState(t *testing.T) {
	r := New(nil)
	if err := r.AddPlayer("Alice", game.KindUser, "Red"); err != nil {
		t.Fatalf("AddPlayer: %v", err)
	}
	err := r.AddPlayer("Alice", game.KindBot, "Blue")
	if !errors.Is(err, ErrDuplicateName) {
		t.Fatalf("err=%v want=%v", err, ErrDuplicateName)
	}
	if got := r.TeamOrder(); !reflect.DeepEqual(got, []string{"Red"}) {
		t.Fatalf("TeamOrder=%v, duplicate created a team", got)
	}
	p, _ := r.Player("Alice")
	if p.Team != "Red" || p.Kind != game.KindUser {
		t.Fatalf("player overwritten: %+v", p)
	}
}

func TestMergeTeamsIdempotentFirstWriterWins(t *testing.T) {
	var created []string
	r := New(func(team string) { created = append(created, team) })
	if err := r.AddPlayer("Alice", game.KindBot, "Red"); err != nil {
		t.Fatalf("AddPlayer: %v", err)
	}

	in := protocol.Teams{
		{Name: "Red", Members: []string{"Alice"}},
		{Name: "Blue", Members: []string{"Bob"}},
	}
	if n := r.MergeTeams(in); n != 1 {
		t.Fatalf("first merge added=%d want=1", n)
	}
	if n := r.MergeTeams(in); n != 0 {
		t.Fatalf("repeat merge added=%d want=0", n)
	}
	if n := r.MergeTeams(protocol.Teams{{Name: "Green", Members: []string{"Bob"}}}); n != 0 {
		t.Fatalf("conflicting merge added=%d want=0", n)
	}
	if got := r.TeamOf("Bob"); got != "Blue" {
		t.Fatalf("Bob team=%s want=Blue", got)
	}
	if r.IsLocal("Bob") {
		t.Fatalf("Bob learned from the bus must not be local")
	}
	if !reflect.DeepEqual(created, []string{"Red", "Blue"}) {
		t.Fatalf("created=%v", created)
	}
	if got := r.LocalPlayers(); !reflect.DeepEqual(got, []string{"Alice"}) {
		t.Fatalf("LocalPlayers=%v", got)
	}
}

func TestEveryPlayerInExactlyOneTeam(t *testing.T) {
	r := New(nil)
	_ = r.AddPlayer("a", game.KindUser, "Red")
	r.MergeTeams(protocol.Teams{{Name: "Blue", Members: []string{"b", "a"}}, {Name: "Red", Members: []string{"c"}}})

	seen := map[string]string{}
	for _, team := range r.TeamsView() {
		for _, m := range team.Members {
			if prev, ok := seen[m]; ok {
				t.Fatalf("%s in both %s and %s", m, prev, team.Name)
			}
			seen[m] = team.Name
		}
	}
	for _, name := range r.Names() {
		if seen[name] != r.TeamOf(name) {
			t.Fatalf("%s team=%s membership=%s", name, r.TeamOf(name), seen[name])
		}
	}
}

func TestRecordSnapshotUnknownPlayer(t *testing.T) {
	r := New(nil)
	if r.RecordSnapshot("ghost", &game.Snapshot{}) {
		t.Fatalf("RecordSnapshot for unknown player returned true")
	}
	if _, err := r.AwaitMap(context.Background(), "ghost"); !errors.Is(err, ErrUnknownPlayer) {
		t.Fatalf("AwaitMap err=%v want=%v", err, ErrUnknownPlayer)
	}
}

func TestAwaitMapWakesOnSnapshot(t *testing.T) {
	r := New(nil)
	_ = r.AddPlayer("P", game.KindBot, "Red")

	got := make(chan game.LocalMap, 1)
	go func() {
		m, err := r.AwaitMap(context.Background(), "P")
		if err != nil {
			t.Errorf("AwaitMap: %v", err)
		}
		got <- m
	}()

	time.Sleep(20 * time.Millisecond)
	r.RecordSnapshot("P", &game.Snapshot{CurrentPosition: game.Point{X: 5, Y: 5}})

	select {
	case m := <-got:
		if m[2][2] != "P" {
			t.Fatalf("centre=%q want=P", m[2][2])
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("AwaitMap did not wake")
	}

	p, _ := r.Player("P")
	if p.MapFresh {
		t.Fatalf("map still fresh after AwaitMap")
	}
	if !p.HasMap {
		t.Fatalf("HasMap=false after snapshot")
	}
}

func TestAwaitMapReturnsImmediatelyWhenFresh(t *testing.T) {
	r := New(nil)
	_ = r.AddPlayer("P", game.KindBot, "Red")
	r.RecordSnapshot("P", &game.Snapshot{CurrentPosition: game.Point{X: 0, Y: 0}})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	m, err := r.AwaitMap(ctx, "P")
	if err != nil {
		t.Fatalf("AwaitMap: %v", err)
	}
	if m[0][0] != game.LabelOutOfBounds || m[2][2] != "P" {
		t.Fatalf("unexpected map:\n%s", m.String())
	}

	ctx2, cancel2 := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel2()
	if _, err := r.AwaitMap(ctx2, "P"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("second AwaitMap err=%v, want deadline (map already consumed)", err)
	}
}

func TestChatQueueFIFOAndTeamScoped(t *testing.T) {
	r := New(nil)
	_ = r.AddPlayer("a", game.KindUser, "Red")
	_ = r.AddPlayer("b", game.KindUser, "Red")
	_ = r.AddPlayer("c", game.KindUser, "Blue")

	if n := r.PushChat("Red", "a: one"); n != 2 {
		t.Fatalf("PushChat delivered=%d want=2", n)
	}
	r.PushChat("Red", "b: two")
	r.PushChat("Nobody", "x: lost")

	if got := r.DrainChat("b"); !reflect.DeepEqual(got, []string{"a: one", "b: two"}) {
		t.Fatalf("DrainChat(b)=%v", got)
	}
	if got := r.DrainChat("b"); len(got) != 0 {
		t.Fatalf("second drain=%v want empty", got)
	}
	if got := r.DrainChat("c"); len(got) != 0 {
		t.Fatalf("Blue player got Red chat: %v", got)
	}
}

func TestBotStateAndMode(t *testing.T) {
	r := New(nil)
	_ = r.AddPlayer("bot", game.KindBot, "Red")
	r.SetBotState("bot", game.BotState{ScaleUp: true})
	if st := r.BotState("bot"); !st.ScaleUp || st.ScaleRight {
		t.Fatalf("BotState=%+v", st)
	}
	if !r.SetMode("bot", game.ModeChat) {
		t.Fatalf("SetMode returned false")
	}
	if p, _ := r.Player("bot"); p.Mode != game.ModeChat {
		t.Fatalf("Mode=%s want=%s", p.Mode, game.ModeChat)
	}
	if r.SetMode("ghost", game.ModeChat) {
		t.Fatalf("SetMode on unknown player returned true")
	}
}

func TestAddPlayerRejectsTopicUnsafeNames(t *testing.T) {
	r := New(nil)
	cases := []struct{ name, team string }{
		{"a/b", "Red"},
		{"a+", "Red"},
		{"#", "Red"},
		{" ", "Red"},
		{"", "Red"},
		{"alice", "Red/Blue"},
		{"alice", "Re+d"},
		{"alice", "#"},
		{"alice", ""},
	}
	for _, tc := range cases {
		err := r.AddPlayer(tc.name, game.KindUser, tc.team)
		if !errors.Is(err, ErrInvalidName) {
			t.Fatalf("AddPlayer(%q, %q) err=%v want=%v", tc.name, tc.team, err, ErrInvalidName)
		}
	}
	if r.Len() != 0 || len(r.TeamOrder()) != 0 {
		t.Fatalf("rejected names left state: players=%d teams=%v", r.Len(), r.TeamOrder())
	}
	if err := r.AddPlayer("alice-1", game.KindUser, "Red Team"); err != nil {
		t.Fatalf("AddPlayer valid: %v", err)
	}
}

func TestMergeTeamsSkipsTopicUnsafeNames(t *testing.T) {
	r := New(nil)
	added := r.MergeTeams(protocol.Teams{
		{Name: "Red", Members: []string{"alice", "a/b"}},
		{Name: "Bl#ue", Members: []string{"bob"}},
	})
	if added != 1 {
		t.Fatalf("added=%d want=1", added)
	}
	if got := r.TurnOrder(); !reflect.DeepEqual(got, []string{"alice"}) {
		t.Fatalf("TurnOrder=%v want=[alice]", got)
	}
}

func TestChatQueueDropsOldest(t *testing.T) {
	r := New(nil)
	if err := r.AddPlayer("bot", game.KindBot, "Red"); err != nil {
		t.Fatalf("AddPlayer: %v", err)
	}
	total := MaxChatQueue + 10
	for i := 0; i < total; i++ {
		r.PushChat("Red", fmt.Sprintf("line%d", i))
	}
	p, _ := r.Player("bot")
	if len(p.Chat) != MaxChatQueue {
		t.Fatalf("queue len=%d want=%d", len(p.Chat), MaxChatQueue)
	}
	got := r.DrainChat("bot")
	if got[0] != "line10" || got[len(got)-1] != fmt.Sprintf("line%d", total-1) {
		t.Fatalf("kept %s..%s want=line10..line%d", got[0], got[len(got)-1], total-1)
	}
	for i := 1; i < len(got); i++ {
		if got[i] != fmt.Sprintf("line%d", i+10) {
			t.Fatalf("line %d=%s, order broken", i, got[i])
		}
	}
}
