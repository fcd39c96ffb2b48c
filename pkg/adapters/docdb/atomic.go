package docdb

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// TempFilePrefix marks in-flight writes so loadDocs and the watch
	// worker skip them.
	TempFilePrefix = "tensai-tmp-"

	docFileMode = 0o644
)

// writeFileAtomic persists a document payload via write-to-temp-then-
// rename so a reader (or a crash) never observes a torn JSON file. The
// temp file is created next to the target to keep the rename on one
// filesystem, and the containing directory is synced afterwards so the
// rename itself is durable.
func writeFileAtomic(filename string, data []byte) error {
	dir := filepath.Dir(filename)

	tmp, err := os.CreateTemp(dir, TempFilePrefix+"*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op once the rename lands

	_, err = tmp.Write(data)
	if err == nil {
		err = tmp.Sync()
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("failed to stage %s: %w", filename, err)
	}

	if err := os.Chmod(tmp.Name(), docFileMode); err != nil {
		return fmt.Errorf("failed to chmod temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), filename); err != nil {
		return fmt.Errorf("failed to replace %s: %w", filename, err)
	}
	return syncDir(dir)
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return fmt.Errorf("failed to open %s for sync: %w", dir, err)
	}
	defer d.Close()
	if err := d.Sync(); err != nil {
		return fmt.Errorf("failed to sync %s: %w", dir, err)
	}
	return nil
}
