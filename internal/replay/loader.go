package replay

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

// maxLine bounds a single encoded frame.
const maxLine = 64 << 20

// Replay is a fully loaded run.
type Replay struct {
	Manifest Manifest
	Frames   []Frame
}

// Load reads the run stored in dir.
func Load(dir string) (*Replay, error) {
	if dir == "" {
		return nil, fmt.Errorf("replay dir must be provided")
	}

	data, err := os.ReadFile(filepath.Join(dir, manifestName))
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var manifest Manifest
	if err = json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	if manifest.Version != version {
		return nil, fmt.Errorf("unsupported replay version %d", manifest.Version)
	}

	file, err := os.Open(filepath.Join(dir, manifest.FramesPath))
	if err != nil {
		return nil, fmt.Errorf("open frames: %w", err)
	}
	defer file.Close()

	dec, err := zstd.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("open zstd decoder: %w", err)
	}
	defer dec.Close()

	out := &Replay{Manifest: manifest}
	scanner := bufio.NewScanner(dec)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLine)
	for scanner.Scan() {
		var f Frame
		if err = json.Unmarshal(scanner.Bytes(), &f); err != nil {
			return nil, fmt.Errorf("decode frame %d: %w", len(out.Frames), err)
		}
		out.Frames = append(out.Frames, f)
	}
	if err = scanner.Err(); err != nil {
		return nil, fmt.Errorf("read frames: %w", err)
	}

	return out, nil
}
