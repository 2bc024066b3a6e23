package diagfmt

import (
	"path/filepath"
	"strings"
)

func formatPath(path string, mode PathMode, baseDir string) string {
	if path == "" {
		return ""
	}
	switch mode {
	case PathModeBasename:
		return filepath.Base(path)
	case PathModeRelative, PathModeAuto:
		if baseDir == "" || !filepath.IsAbs(path) {
			break
		}
		rel, err := filepath.Rel(baseDir, path)
		if err != nil {
			break
		}
		outside := rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator))
		if mode == PathModeRelative || !outside {
			return filepath.ToSlash(rel)
		}
	}
	return filepath.ToSlash(path)
}
