package diag

import (
	"fmt"
	"path/filepath"
	"strings"
)

// FormatShort renders diagnostics as one line per entry, in input order:
//
//	<severity> <CODE> <path>:<line>:<col> <message>
//
// Paths under baseDir are printed relative to it. The output is stable and is
// what logs and golden tests compare against.
func FormatShort(ds []Diagnostic, baseDir string) string {
	if len(ds) == 0 {
		return ""
	}
	var b strings.Builder
	for i := range ds {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(shortLine(&ds[i], baseDir))
	}
	return b.String()
}

func shortLine(d *Diagnostic, baseDir string) string {
	code := d.Code.ID()
	if d.ToolCode != "" {
		code = d.ToolCode
	}
	loc := "-"
	if d.Span != nil {
		sp := *d.Span
		sp.File = relativePath(sp.File, baseDir)
		loc = sp.String()
	}
	return fmt.Sprintf("%s %s %s %s", d.Severity, code, loc, sanitizeMessage(d.Message))
}

func relativePath(path, baseDir string) string {
	if path == "" || baseDir == "" || !filepath.IsAbs(path) {
		return filepath.ToSlash(path)
	}
	rel, err := filepath.Rel(baseDir, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

func sanitizeMessage(msg string) string {
	msg = strings.ReplaceAll(msg, "\r\n", "\n")
	msg = strings.ReplaceAll(msg, "\r", "\n")
	msg = strings.ReplaceAll(msg, "\n", " ")
	return strings.TrimSpace(msg)
}
