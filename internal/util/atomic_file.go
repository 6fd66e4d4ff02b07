package util

import (
	"fmt"
	"os"
	"path/filepath"
)

// WriteFileAtomic writes payload to path so that readers only ever observe
// either the previous content or the new content, never a partial file.
// The payload goes to a temp file created in the target's own directory,
// is synced, then renamed over the target. Keeping the temp file beside
// the target guarantees the rename never crosses filesystems, so it is a
// single atomic operation. Any failure leaves the original file intact.
func WriteFileAtomic(path string, payload []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file in %s: %w", dir, err)
	}
	tmpPath := tmp.Name()

	_, writeErr := tmp.Write(payload)
	syncErr := tmp.Sync()
	closeErr := tmp.Close()
	for _, err := range []error{writeErr, syncErr, closeErr} {
		if err != nil {
			_ = os.Remove(tmpPath)
			return fmt.Errorf("write temp file %s: %w", tmpPath, err)
		}
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("chmod temp file %s: %w", tmpPath, err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename %s over %s: %w", tmpPath, path, err)
	}
	return nil
}
