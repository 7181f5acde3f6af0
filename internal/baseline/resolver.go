// Package baseline resolves the evidence path a candidate run should be
// compared against, given a backend and model script pair.
package baseline

import (
	"fmt"

	"github.com/wangzizhe/gateforge/internal/artifact"
)

// Index is the on-disk shape of baselines/index.json: an ordered list of
// (backend, model_script) -> evidence path mappings.
type Index struct {
	Entries []IndexEntry `json:"entries"`
}

// IndexEntry is one row of the baseline index.
type IndexEntry struct {
	Backend     string `json:"backend"`
	ModelScript string `json:"model_script"`
	Path        string `json:"path"`
}

// ErrNotFound is returned when no index entry matches the requested key.
type ErrNotFound struct {
	Backend     string
	ModelScript string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("baseline_not_found: no baseline for backend=%s model_script=%s", e.Backend, e.ModelScript)
}

// LoadIndex reads baselines/index.json from the given path.
func LoadIndex(path string) (*Index, error) {
	var idx Index
	if err := artifact.ReadJSON(path, &idx); err != nil {
		return nil, err
	}
	return &idx, nil
}

// Resolve is a pure function of the loaded index and (backend, model_script):
// it returns the first matching entry's path, or ErrNotFound on a miss.
func Resolve(idx *Index, backend, modelScript string) (string, error) {
	for _, entry := range idx.Entries {
		if entry.Backend == backend && entry.ModelScript == modelScript {
			return entry.Path, nil
		}
	}
	return "", &ErrNotFound{Backend: backend, ModelScript: modelScript}
}

// ResolveAuto loads the index at indexPath and resolves (backend, modelScript) against it.
func ResolveAuto(indexPath, backend, modelScript string) (string, error) {
	idx, err := LoadIndex(indexPath)
	if err != nil {
		return "", fmt.Errorf("load baseline index: %w", err)
	}
	return Resolve(idx, backend, modelScript)
}
