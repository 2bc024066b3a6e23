package toolchain

import (
	"regexp"
	"strconv"
	"strings"

	"wasmloader/internal/diag"
)

// TextBlockParser reads human-oriented rustc/cargo output. A block starts at
// an `error…:` or `warning…:` heading and runs until a blank line or the
// next heading.
type TextBlockParser struct {
	// Code overrides the code given to parsed diagnostics; zero means
	// diag.CompilerMessage.
	Code diag.Code
}

var (
	headingRe = regexp.MustCompile(`^(error|warning)(?:\[([A-Za-z]+[0-9]+)\])?:\s*(.*)$`)
	arrowRe   = regexp.MustCompile(`^\s*-->\s*(.+?):(\d+):(\d+)\s*$`)
)

type textBlock struct {
	sev   diag.Severity
	tool  string
	msg   string
	lines []string
	span  *diag.Span
}

func (p TextBlockParser) Parse(text string) []diag.Diagnostic {
	code := p.Code
	if code == diag.UnknownCode {
		code = diag.CompilerMessage
	}
	var (
		out []diag.Diagnostic
		cur *textBlock
	)
	flush := func() {
		if cur == nil {
			return
		}
		d := diag.New(cur.sev, code, cur.msg).
			WithToolCode(cur.tool).
			WithRendered(strings.Join(cur.lines, "\n"))
		if cur.span != nil {
			d = d.WithSpan(*cur.span)
		}
		out = append(out, d)
		cur = nil
	}
	for _, raw := range strings.Split(stripANSI(text), "\n") {
		line := strings.TrimRight(raw, "\r")
		if m := headingRe.FindStringSubmatch(line); m != nil {
			flush()
			msg := strings.TrimSpace(m[3])
			if isAggregate(msg) {
				continue
			}
			sev, _ := diag.ParseSeverity(m[1])
			cur = &textBlock{sev: sev, tool: m[2], msg: msg, lines: []string{line}}
			continue
		}
		if cur == nil {
			continue
		}
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		cur.lines = append(cur.lines, line)
		if cur.span == nil {
			if m := arrowRe.FindStringSubmatch(line); m != nil {
				cur.span = &diag.Span{File: m[1], Line: parsePos(m[2]), Column: parsePos(m[3])}
			}
		}
	}
	flush()
	return out
}

func parsePos(s string) uint32 {
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0
	}
	return uint32(n)
}
