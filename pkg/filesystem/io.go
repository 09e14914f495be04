package filesystem

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
)

// WriteFileAtomic replaces filename with content. The data is written to a
// temporary file in the same directory, synced and renamed over the target,
// so readers observe either the previous file or the new one, never a
// partial write.
func WriteFileAtomic(filename, content string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("could not create directory %s: %w", dir, err)
	}

	// Normalize EOLs to existing file style if present
	data := []byte(content)
	if b, err := os.ReadFile(filename); err == nil && bytes.Contains(b, []byte("\r\n")) {
		data = bytes.ReplaceAll(bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n")), []byte("\n"), []byte("\r\n"))
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(filename)+".tmp-*")
	if err != nil {
		return fmt.Errorf("could not create temp file for %s: %w", filename, err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("could not write %s: %w", filename, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("could not sync %s: %w", filename, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("could not close %s: %w", filename, err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return fmt.Errorf("could not chmod %s: %w", filename, err)
	}
	if err := os.Rename(tmpName, filename); err != nil {
		return fmt.Errorf("could not replace %s: %w", filename, err)
	}
	committed = true
	return nil
}

// FileExists reports whether path names an existing regular file.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// Stash moves an existing file out of the way and returns a function that
// puts it back. When nothing exists at path the restore function is a no-op.
// The restore function is safe to call more than once.
func Stash(path string) (restore func() error, err error) {
	if !FileExists(path) {
		return func() error { return nil }, nil
	}
	hidden := filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+".proven-stash")
	if err := os.Rename(path, hidden); err != nil {
		return nil, fmt.Errorf("could not stash %s: %w", path, err)
	}
	done := false
	return func() error {
		if done {
			return nil
		}
		done = true
		// a file created at path in the meantime wins over the stashed copy
		if FileExists(path) {
			return os.Remove(hidden)
		}
		if err := os.Rename(hidden, path); err != nil {
			return fmt.Errorf("could not restore %s: %w", path, err)
		}
		return nil
	}, nil
}
