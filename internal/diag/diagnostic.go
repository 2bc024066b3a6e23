package diag

import "fmt"

// Span locates a diagnostic in a source file. Lines and columns are 1-based;
// zero means unknown.
type Span struct {
	File      string `json:"file" msgpack:"file"`
	Line      uint32 `json:"line,omitempty" msgpack:"line,omitempty"`
	Column    uint32 `json:"column,omitempty" msgpack:"column,omitempty"`
	EndLine   uint32 `json:"end_line,omitempty" msgpack:"end_line,omitempty"`
	EndColumn uint32 `json:"end_column,omitempty" msgpack:"end_column,omitempty"`
}

func (s Span) String() string {
	if s.Line == 0 {
		return s.File
	}
	if s.Column == 0 {
		return fmt.Sprintf("%s:%d", s.File, s.Line)
	}
	return fmt.Sprintf("%s:%d:%d", s.File, s.Line, s.Column)
}

type Diagnostic struct {
	Severity Severity `json:"severity" msgpack:"severity"`
	Code     Code     `json:"code" msgpack:"code"`
	ToolCode string   `json:"tool_code,omitempty" msgpack:"tool_code,omitempty"`
	Message  string   `json:"message" msgpack:"message"`
	Rendered string   `json:"rendered,omitempty" msgpack:"rendered,omitempty"`
	Span     *Span    `json:"span,omitempty" msgpack:"span,omitempty"`
}

func New(sev Severity, code Code, msg string) Diagnostic {
	return Diagnostic{
		Severity: sev,
		Code:     code,
		Message:  msg,
	}
}

func NewError(code Code, msg string) Diagnostic {
	return New(SevError, code, msg)
}

func NewWarning(code Code, msg string) Diagnostic {
	return New(SevWarning, code, msg)
}

// Errorf builds an error diagnostic with a formatted message.
func Errorf(code Code, format string, args ...any) Diagnostic {
	return NewError(code, fmt.Sprintf(format, args...))
}

func (d Diagnostic) WithSpan(sp Span) Diagnostic {
	d.Span = &sp
	return d
}

func (d Diagnostic) WithToolCode(code string) Diagnostic {
	d.ToolCode = code
	return d
}

func (d Diagnostic) WithRendered(text string) Diagnostic {
	d.Rendered = text
	return d
}

// IsError reports whether d blocks artifact emission.
func (d Diagnostic) IsError() bool {
	return d.Severity == SevError
}
