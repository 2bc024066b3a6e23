package diag

import "fmt"

// Severity defines the importance of a diagnostic.
type Severity uint8

const (
	// SevWarning is for diagnostics that never block artifact emission.
	SevWarning Severity = iota + 1
	// SevError marks a diagnostic that fails the build.
	SevError
)

func (s Severity) String() string {
	switch s {
	case SevWarning:
		return "warning"
	case SevError:
		return "error"
	}
	return "unknown"
}

// ParseSeverity maps a toolchain level onto a Severity.
// Levels that are not errors or warnings (note, help, failure-note) report ok=false.
func ParseSeverity(level string) (Severity, bool) {
	switch level {
	case "warning", "WARNING":
		return SevWarning, true
	case "error", "ERROR", "error: internal compiler error":
		return SevError, true
	}
	return 0, false
}

// MarshalText implements encoding.TextMarshaler.
func (s Severity) MarshalText() ([]byte, error) {
	switch s {
	case SevWarning, SevError:
		return []byte(s.String()), nil
	}
	return nil, fmt.Errorf("invalid severity %d", s)
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Severity) UnmarshalText(text []byte) error {
	sev, ok := ParseSeverity(string(text))
	if !ok {
		return fmt.Errorf("invalid severity %q", text)
	}
	*s = sev
	return nil
}
