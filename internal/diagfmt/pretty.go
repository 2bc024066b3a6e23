package diagfmt

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"wasmloader/internal/diag"
)

type palette struct {
	err, warning, code, path, gutter *color.Color
}

func newPalette(enabled bool) palette {
	mk := func(attrs ...color.Attribute) *color.Color {
		c := color.New(attrs...)
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
		return c
	}
	return palette{
		err:     mk(color.FgRed, color.Bold),
		warning: mk(color.FgYellow, color.Bold),
		code:    mk(color.Faint),
		path:    mk(color.Bold),
		gutter:  mk(color.FgBlue),
	}
}

// Pretty formats diagnostics for a terminal, in input order:
//
//	<path>:<line>:<col>: <SEV> <CODE>: <Message>
//
// followed by the toolchain rendering when ShowRendered is set. Entries
// without a span start with the severity.
func Pretty(w io.Writer, ds []diag.Diagnostic, opts PrettyOpts) error {
	pal := newPalette(opts.Color)
	for i := range ds {
		d := &ds[i]
		var b strings.Builder
		if d.Span != nil && d.Span.File != "" {
			sp := *d.Span
			sp.File = formatPath(sp.File, opts.PathMode, opts.BaseDir)
			b.WriteString(pal.path.Sprint(sp.String()))
			b.WriteString(": ")
		}
		sev := strings.ToUpper(d.Severity.String())
		if d.IsError() {
			b.WriteString(pal.err.Sprint(sev))
		} else {
			b.WriteString(pal.warning.Sprint(sev))
		}
		b.WriteByte(' ')
		b.WriteString(pal.code.Sprint(codeOf(d)))
		b.WriteString(": ")
		b.WriteString(d.Message)
		b.WriteByte('\n')

		if opts.ShowRendered && d.Rendered != "" {
			for _, line := range strings.Split(strings.TrimRight(d.Rendered, "\n"), "\n") {
				b.WriteString(pal.gutter.Sprint("  | "))
				b.WriteString(line)
				b.WriteByte('\n')
			}
		}
		if _, err := io.WriteString(w, b.String()); err != nil {
			return err
		}
	}

	if opts.Summary {
		errs := diag.Count(ds, diag.SevError)
		warns := diag.Count(ds, diag.SevWarning)
		if _, err := fmt.Fprintf(w, "%s, %s\n", plural(errs, "error"), plural(warns, "warning")); err != nil {
			return err
		}
	}
	return nil
}

// codeOf appends the toolchain's own code (E0425) to ours.
func codeOf(d *diag.Diagnostic) string {
	if d.ToolCode == "" {
		return d.Code.ID()
	}
	return d.Code.ID() + "[" + d.ToolCode + "]"
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
