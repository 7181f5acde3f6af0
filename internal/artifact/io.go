// Package artifact implements the atomic JSON/JSONL read-write layer shared
// by every GateForge command: temp-file-plus-rename for single artifacts,
// and advisory-locked append for ledgers, following the same "never leave a
// torn file behind" discipline the teacher applies to its own output writers.
package artifact

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// ReadJSON decodes a JSON file into v. Unknown keys are tolerated.
func ReadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read artifact %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode artifact %s: %w", path, err)
	}
	return nil
}

// WriteJSON marshals v and writes it to path via a temp file plus atomic
// rename, so a reader never observes a partially written artifact.
func WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode artifact %s: %w", path, err)
	}
	return writeAtomic(path, data)
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", path, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp file for %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("sync temp file for %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file for %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp file into %s: %w", path, err)
	}
	return nil
}

// WriteText writes a plain-text artifact (e.g. a rendered markdown report)
// with the same temp-file-plus-rename discipline as WriteJSON.
func WriteText(path, content string) error {
	return writeAtomic(path, []byte(content))
}

// AppendJSONL appends one record to a JSONL ledger as a single
// newline-terminated O_APPEND write, serialized against concurrent
// appenders with an advisory flock so no reader ever sees a torn line.
func AppendJSONL(path string, v any) error {
	line, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode ledger record for %s: %w", path, err)
	}
	line = append(line, '\n')

	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open ledger %s: %w", path, err)
	}
	defer f.Close()

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		return fmt.Errorf("lock ledger %s: %w", path, err)
	}
	defer unix.Flock(int(f.Fd()), unix.LOCK_UN)

	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("append ledger %s: %w", path, err)
	}
	return nil
}

// ReadJSONLRecord is a function invoked once per decoded JSONL line.
// Returning an error from fn aborts iteration.
type ReadJSONLRecord func(raw json.RawMessage) error

// ReadJSONL streams every line of a JSONL file into fn, in file order.
// A missing file is treated as zero records, not an error.
func ReadJSONL(path string, fn ReadJSONLRecord) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open ledger %s: %w", path, err)
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	for dec.More() {
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("decode ledger %s: %w", path, err)
		}
		if err := fn(raw); err != nil {
			return err
		}
	}
	return nil
}

// Exists reports whether a path exists.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
