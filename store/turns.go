// Package store archives the moves made by this client's players as Parquet
// files, one file per flush.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"
)

const schemaName = "teamgrid_turn_v1"

// TurnRow is one move made by a local player.
//
// Turn is the player's own move number, starting at 1.
// View is the 5x5 local map the move was decided on, row-major, 25 labels.
// PosX/PosY are the player's world position from the last snapshot, or -1
// if no snapshot had arrived.
type TurnRow struct {
	Lobby      string   `parquet:"lobby,dict" json:"lobby"`
	Turn       int32    `parquet:"turn" json:"turn"`
	Player     string   `parquet:"player,dict" json:"player"`
	Team       string   `parquet:"team,dict" json:"team"`
	Kind       string   `parquet:"kind,dict" json:"kind"`
	Move       string   `parquet:"move,dict" json:"move"`
	PosX       int32    `parquet:"pos_x" json:"pos_x"`
	PosY       int32    `parquet:"pos_y" json:"pos_y"`
	View       []string `parquet:"view" json:"view"`
	RecordedNs int64    `parquet:"recorded_ns" json:"recorded_ns"`
}

// Recorder buffers rows until Flush. A nil *Recorder accepts and drops
// everything so callers need not check whether archiving is enabled.
type Recorder struct {
	outDir string

	mu   sync.Mutex
	rows []TurnRow
}

func NewRecorder(outDir string) (*Recorder, error) {
	if outDir == "" {
		return nil, fmt.Errorf("outDir is required")
	}
	absOut, err := filepath.Abs(outDir)
	if err != nil {
		absOut = outDir
	}
	if err := os.MkdirAll(filepath.Join(absOut, "tmp"), 0o755); err != nil {
		return nil, fmt.Errorf("create tmp dir: %w", err)
	}
	return &Recorder{outDir: absOut}, nil
}

func (r *Recorder) Record(row TurnRow) {
	if r == nil {
		return
	}
	if row.RecordedNs == 0 {
		row.RecordedNs = time.Now().UnixNano()
	}
	r.mu.Lock()
	r.rows = append(r.rows, row)
	r.mu.Unlock()
}

func (r *Recorder) Buffered() int {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

// Flush writes buffered rows to <outDir>/turns_<unixnano>.parquet via the
// tmp directory and returns the final path. With nothing buffered it
// returns "" and writes no file.
func (r *Recorder) Flush() (string, error) {
	if r == nil {
		return "", nil
	}
	r.mu.Lock()
	rows := r.rows
	r.rows = nil
	r.mu.Unlock()
	if len(rows) == 0 {
		return "", nil
	}

	path, err := writeAtomic(r.outDir, rows)
	if err != nil {
		// Put the rows back so a later flush can retry.
		r.mu.Lock()
		r.rows = append(rows, r.rows...)
		r.mu.Unlock()
		return "", err
	}
	return path, nil
}

func writeAtomic(outDir string, rows []TurnRow) (string, error) {
	tmpDir := filepath.Join(outDir, "tmp")
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return "", fmt.Errorf("create tmp dir: %w", err)
	}

	name := fmt.Sprintf("turns_%d.parquet", time.Now().UnixNano())
	finalPath := filepath.Join(outDir, name)
	tmpPath := filepath.Join(tmpDir, name+".tmp")
	_ = os.Remove(tmpPath)

	if err := parquet.WriteFile(tmpPath, rows,
		parquet.Compression(&zstd.Codec{Level: zstd.SpeedBetterCompression}),
		parquet.KeyValueMetadata("schema", schemaName),
	); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("write parquet: %w", err)
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("rename parquet: %w", err)
	}
	return finalPath, nil
}

// ReadTurns loads every row of an archive file.
func ReadTurns(path string) ([]TurnRow, error) {
	rows, err := parquet.ReadFile[TurnRow](path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return rows, nil
}
