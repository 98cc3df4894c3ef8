package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// FileDestination writes JSONL data to a local file, replacing it atomically.
type FileDestination struct {
	Path string
}

// Write replaces the file's contents via a temp file and rename, so readers
// never see a partial export.
func (d FileDestination) Write(_ context.Context, data []byte) error {
	dir := filepath.Dir(d.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".scanline-export-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write export: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close export: %w", err)
	}
	if err := os.Rename(tmp.Name(), d.Path); err != nil {
		return fmt.Errorf("rename export: %w", err)
	}
	return nil
}
