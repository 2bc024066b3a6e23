package diagfmt

import (
	"encoding/json"
	"io"

	"wasmloader/internal/diag"
)

// LocationJSON представляет местоположение в файле для JSON
type LocationJSON struct {
	File      string `json:"file"`
	StartLine uint32 `json:"start_line,omitempty"`
	StartCol  uint32 `json:"start_col,omitempty"`
	EndLine   uint32 `json:"end_line,omitempty"`
	EndCol    uint32 `json:"end_col,omitempty"`
}

// DiagnosticJSON представляет диагностику в JSON формате
type DiagnosticJSON struct {
	Severity string        `json:"severity"`
	Code     string        `json:"code"`
	ToolCode string        `json:"tool_code,omitempty"`
	Message  string        `json:"message"`
	Location *LocationJSON `json:"location,omitempty"`
	Rendered string        `json:"rendered,omitempty"`
}

// DiagnosticsOutput представляет корневую структуру JSON вывода
type DiagnosticsOutput struct {
	Diagnostics []DiagnosticJSON `json:"diagnostics"`
	Count       int              `json:"count"`
	Errors      int              `json:"errors"`
	Warnings    int              `json:"warnings"`
}

// BuildDiagnosticsOutput формирует структуру JSON-вывода без сериализации.
// Errors and Warnings count the full input even when Max truncates it.
func BuildDiagnosticsOutput(ds []diag.Diagnostic, opts JSONOpts) DiagnosticsOutput {
	n := len(ds)
	if opts.Max > 0 && opts.Max < n {
		n = opts.Max
	}
	out := make([]DiagnosticJSON, 0, n)
	for i := range n {
		d := ds[i]
		dj := DiagnosticJSON{
			Severity: d.Severity.String(),
			Code:     d.Code.ID(),
			ToolCode: d.ToolCode,
			Message:  d.Message,
		}
		if d.Span != nil {
			dj.Location = &LocationJSON{
				File:      formatPath(d.Span.File, opts.PathMode, opts.BaseDir),
				StartLine: d.Span.Line,
				StartCol:  d.Span.Column,
				EndLine:   d.Span.EndLine,
				EndCol:    d.Span.EndColumn,
			}
		}
		if opts.IncludeRendered {
			dj.Rendered = d.Rendered
		}
		out = append(out, dj)
	}
	return DiagnosticsOutput{
		Diagnostics: out,
		Count:       len(out),
		Errors:      diag.Count(ds, diag.SevError),
		Warnings:    diag.Count(ds, diag.SevWarning),
	}
}

// JSON writes diagnostics as one indented JSON document.
func JSON(w io.Writer, ds []diag.Diagnostic, opts JSONOpts) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(BuildDiagnosticsOutput(ds, opts))
}
