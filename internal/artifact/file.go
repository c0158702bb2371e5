package artifact

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Path returns the canonical file path of an artifact called name in dir.
func Path(dir, name string) string {
	return filepath.Join(dir, name+Extension)
}

// WriteFile encodes meta and payload and atomically replaces path with the
// result.
func WriteFile(path string, meta Meta, payload any) error {
	data, err := Encode(meta, payload)
	if err != nil {
		return err
	}
	return WriteAtomic(path, data)
}

// WriteAtomic writes data to a temp file next to path, syncs it and renames
// it over path. A crash at any point leaves either the old file or the new
// one, never a partial write.
func WriteAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating artifact directory: %w", err)
	}
	f, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp artifact file: %w", err)
	}
	tmpPath := f.Name()
	cleanup := func() {
		f.Close()
		os.Remove(tmpPath)
	}
	if _, err := f.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("writing artifact: %w", err)
	}
	if err := f.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("syncing artifact file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing artifact file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming artifact file: %w", err)
	}
	return nil
}

// ReadFile loads and validates the artifact at path.
func ReadFile(path string) (Meta, json.RawMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Meta{}, nil, fmt.Errorf("reading artifact %s: %w", path, err)
	}
	meta, payload, err := Decode(data)
	if err != nil {
		return Meta{}, nil, fmt.Errorf("decoding artifact %s: %w", path, err)
	}
	return meta, payload, nil
}
