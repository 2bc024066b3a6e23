package project

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ManifestName is the project manifest looked up by FindManifest.
const ManifestName = "Cargo.toml"

// FindManifest walks up from start to locate Cargo.toml. start may name a
// source file or a directory. When boundary is set the search never leaves
// it: boundary itself is the last directory checked, and a start outside
// boundary finds nothing.
func FindManifest(start, boundary string) (path string, ok bool, err error) {
	if start == "" {
		start = "."
	}
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start path: %w", err)
	}
	if info, statErr := os.Stat(dir); statErr != nil || !info.IsDir() {
		dir = filepath.Dir(dir)
	}
	stop := ""
	if boundary != "" {
		stop, err = filepath.Abs(boundary)
		if err != nil {
			return "", false, fmt.Errorf("failed to resolve boundary: %w", err)
		}
		if !within(stop, dir) {
			return "", false, nil
		}
	}
	for {
		candidate := filepath.Join(dir, ManifestName)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, true, nil
		} else if err != nil && !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		if dir == stop {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// FindRoot returns the directory containing the nearest Cargo.toml, if any.
func FindRoot(start, boundary string) (root string, ok bool, err error) {
	manifestPath, ok, err := FindManifest(start, boundary)
	if err != nil || !ok {
		return "", ok, err
	}
	return filepath.Dir(manifestPath), true, nil
}

func within(base, path string) bool {
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
