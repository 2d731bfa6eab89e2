package recorder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"hftbacktest/internal/schema"
)

// ReplayConfig controls how a prior run's recorded segments are read back.
type ReplayConfig struct {
	Dir             string
	FilePrefix      string
	DisableChecksum bool
	MaxPayloadSize  int
}

// Replay reads a prior run's recorded segments back in file order. Unlike
// a live-system's paced playback, a backtest run has no real-time axis to
// reproduce — the run already replayed tape timestamps once, at whatever
// speed the tape iterator ran — so Replay just walks every record as fast
// as the handler accepts it.
type Replay struct {
	cfg ReplayConfig
}

// NewReplay validates the config and creates a replay reader.
func NewReplay(cfg ReplayConfig) (*Replay, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Replay{cfg: cfg}, nil
}

// Run reads every record across the run's segments, in segment and
// in-segment order, and calls handler for each.
func (p *Replay) Run(ctx context.Context, handler func(schema.EventHeader, []byte) error) error {
	if handler == nil {
		return errors.New("replay handler is nil")
	}
	files, err := p.collectFiles()
	if err != nil {
		return err
	}
	for _, path := range files {
		if err := p.playFile(ctx, path, handler); err != nil {
			return err
		}
	}
	return nil
}

func (c ReplayConfig) withDefaults() ReplayConfig {
	if c.FilePrefix == "" {
		c.FilePrefix = defaultFilePrefix
	}
	return c
}

// Validate checks if the config is usable.
func (c ReplayConfig) Validate() error {
	if c.Dir == "" {
		return fmt.Errorf("invalid replay config: Dir is empty")
	}
	if c.MaxPayloadSize < 0 {
		return fmt.Errorf("invalid replay config: MaxPayloadSize must be >= 0")
	}
	return nil
}

func (p *Replay) collectFiles() ([]string, error) {
	entries, err := os.ReadDir(p.cfg.Dir)
	if err != nil {
		return nil, err
	}
	prefix := p.cfg.FilePrefix + "-"
	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".rec") {
			continue
		}
		files = append(files, filepath.Join(p.cfg.Dir, name))
	}
	sort.Strings(files)
	return files, nil
}

func (p *Replay) playFile(ctx context.Context, path string, handler func(schema.EventHeader, []byte) error) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	reader := NewReader(file, ReaderOptions{
		DisableChecksum: p.cfg.DisableChecksum,
		MaxPayloadSize:  p.cfg.MaxPayloadSize,
	})

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		header, payload, err := reader.Next()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("read %s: %w", path, err)
		}
		if err := handler(header, payload); err != nil {
			return err
		}
	}
}
