package toolchain

import (
	"regexp"
	"strings"

	"wasmloader/internal/diag"
)

// Parser turns captured toolchain output into diagnostics. Parsers never
// fail: text they cannot interpret is skipped.
type Parser interface {
	Parse(text string) []diag.Diagnostic
}

// parserOr returns p, or a TextBlockParser when p is nil.
func parserOr(p Parser) Parser {
	if p == nil {
		return TextBlockParser{}
	}
	return p
}

var (
	ansiRe      = regexp.MustCompile(`\x1b\[[0-9;?]*[A-Za-z]`)
	aggregateRe = regexp.MustCompile("(?i)^(?:aborting due to|could not compile|build failed|\\d+ warnings? emitted|`[^`]*` \\([^)]*\\) generated \\d+ warnings?)")
)

func stripANSI(s string) string {
	if !strings.Contains(s, "\x1b") {
		return s
	}
	return ansiRe.ReplaceAllString(s, "")
}

// isAggregate matches summary messages that repeat information already
// reported by individual diagnostics.
func isAggregate(msg string) bool {
	return aggregateRe.MatchString(strings.TrimSpace(msg))
}
