package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRecorderFlushRoundTrip(t *testing.T) {
	dir := t.TempDir()
	rec, err := NewRecorder(dir)
	if err != nil {
		t.Fatalf("NewRecorder: %v", err)
	}

	view := make([]string, 25)
	for i := range view {
		view[i] = "__"
	}
	view[12] = "bot1"
	rec.Record(TurnRow{Lobby: "L", Turn: 1, Player: "bot1", Team: "Red", Kind: "bot", Move: "UP", PosX: 4, PosY: 7, View: view})
	rec.Record(TurnRow{Lobby: "L", Turn: 3, Player: "bot1", Team: "Red", Kind: "bot", Move: "LEFT", PosX: -1, PosY: -1})
	if rec.Buffered() != 2 {
		t.Fatalf("Buffered=%d want=2", rec.Buffered())
	}

	path, err := rec.Flush()
	if err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if filepath.Dir(path) != dir {
		t.Fatalf("flushed to %s, want inside %s", path, dir)
	}
	if !strings.HasPrefix(filepath.Base(path), "turns_") || !strings.HasSuffix(path, ".parquet") {
		t.Fatalf("unexpected file name %s", path)
	}
	if rec.Buffered() != 0 {
		t.Fatalf("Buffered=%d after flush", rec.Buffered())
	}

	tmpEntries, err := os.ReadDir(filepath.Join(dir, "tmp"))
	if err != nil {
		t.Fatalf("read tmp: %v", err)
	}
	if len(tmpEntries) != 0 {
		t.Fatalf("tmp dir not empty: %d entries", len(tmpEntries))
	}

	rows, err := ReadTurns(path)
	if err != nil {
		t.Fatalf("ReadTurns: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows=%d want=2", len(rows))
	}
	if rows[0].Move != "UP" || rows[0].PosY != 7 || rows[0].View[12] != "bot1" || len(rows[0].View) != 25 {
		t.Fatalf("row0=%+v", rows[0])
	}
	if rows[1].Move != "LEFT" || rows[1].PosX != -1 || rows[1].RecordedNs == 0 {
		t.Fatalf("row1=%+v", rows[1])
	}
}

func TestFlushEmptyWritesNothing(t *testing.T) {
	dir := t.TempDir()
	rec, err := NewRecorder(dir)
	if err != nil {
		t.Fatalf("NewRecorder: %v", err)
	}
	path, err := rec.Flush()
	if err != nil || path != "" {
		t.Fatalf("Flush()=%q,%v want empty", path, err)
	}
	matches, _ := filepath.Glob(filepath.Join(dir, "*.parquet"))
	if len(matches) != 0 {
		t.Fatalf("unexpected files %v", matches)
	}
}

func TestNilRecorder(t *testing.T) {
	var rec *Recorder
	rec.Record(TurnRow{Player: "x"})
	if rec.Buffered() != 0 {
		t.Fatalf("nil recorder buffered rows")
	}
	if path, err := rec.Flush(); path != "" || err != nil {
		t.Fatalf("nil Flush()=%q,%v", path, err)
	}
}

func TestNewRecorderRequiresDir(t *testing.T) {
	if _, err := NewRecorder(""); err == nil {
		t.Fatalf("expected error for empty dir")
	}
}
