// Package replay persists world snapshots as a zstd-compressed JSON lines
// stream next to a small manifest.
package replay

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"

	"github.com/zeusync/orca/internal/core/observability/log"
	"github.com/zeusync/orca/pkg/rvo"
)

const (
	manifestName = "manifest.json"
	framesName   = "frames.jsonl.zst"
	version      = 1
)

var ErrClosed = errors.New("replay recorder closed")

// Manifest describes a recorded run.
type Manifest struct {
	Version    int     `json:"version"`
	RunID      string  `json:"run_id"`
	CreatedAt  string  `json:"created_at"`
	TimeStep   float64 `json:"time_step"`
	FramesPath string  `json:"frames_path"`
}

// Frame is one recorded tick.
type Frame struct {
	Tick     uint64       `json:"tick"`
	Snapshot rvo.Snapshot `json:"snapshot"`
}

// Recorder streams frames into a run directory under root.
type Recorder struct {
	mu       sync.Mutex
	dir      string
	logger   log.Log
	file     *os.File
	stream   *zstd.Encoder
	buf      *bufio.Writer
	frames   uint64
	closed   bool
	manifest Manifest
}

// NewRecorder creates root/<run id> and opens the frame stream.
func NewRecorder(root string, timeStep float64, clock func() time.Time, logger log.Log) (*Recorder, error) {
	if root == "" {
		return nil, fmt.Errorf("replay root must be provided")
	}
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = log.NewNop()
	}

	runID := uuid.NewString()
	dir := filepath.Join(root, runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create replay dir: %w", err)
	}

	manifest := Manifest{
		Version:    version,
		RunID:      runID,
		CreatedAt:  clock().UTC().Format(time.RFC3339Nano),
		TimeStep:   timeStep,
		FramesPath: framesName,
	}
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(dir, manifestName), data, 0o644); err != nil {
		return nil, fmt.Errorf("write manifest: %w", err)
	}

	file, err := os.Create(filepath.Join(dir, framesName))
	if err != nil {
		return nil, fmt.Errorf("create frame stream: %w", err)
	}
	stream, err := zstd.NewWriter(file)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("open zstd encoder: %w", err)
	}

	logger = logger.With(log.String("run_id", runID))
	logger.Info("Replay recording started", log.String("dir", dir))

	return &Recorder{
		dir:      dir,
		logger:   logger,
		file:     file,
		stream:   stream,
		buf:      bufio.NewWriter(stream),
		manifest: manifest,
	}, nil
}

// Dir is the run directory.
func (r *Recorder) Dir() string { return r.dir }

func (r *Recorder) Manifest() Manifest { return r.manifest }

// Record appends one snapshot as the next frame.
func (r *Recorder) Record(snap rvo.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}

	line, err := json.Marshal(Frame{Tick: r.frames, Snapshot: snap})
	if err != nil {
		return fmt.Errorf("encode frame %d: %w", r.frames, err)
	}
	if _, err = r.buf.Write(line); err != nil {
		return err
	}
	if err = r.buf.WriteByte('\n'); err != nil {
		return err
	}
	r.frames++
	return nil
}

// Frames is the number of frames recorded so far.
func (r *Recorder) Frames() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}

// Close flushes the stream. It is safe to call more than once.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	err := errors.Join(r.buf.Flush(), r.stream.Close(), r.file.Close())
	if err != nil {
		r.logger.Error("Failed to close replay", log.Error(err))
		return err
	}
	r.logger.Info("Replay recording finished", log.Uint64("frames", r.frames))
	return nil
}
