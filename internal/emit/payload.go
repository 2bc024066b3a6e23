package emit

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"

	"wasmloader/internal/diag"
)

// Payload is what a host adapter receives for one build.
type Payload struct {
	Module       string            `json:"module" msgpack:"module"`
	Success      bool              `json:"success" msgpack:"success"`
	Diagnostics  []diag.Diagnostic `json:"diagnostics" msgpack:"diagnostics"`
	Assets       []Asset           `json:"assets" msgpack:"assets"`
	ModuleSource string            `json:"module_source,omitempty" msgpack:"module_source,omitempty"`
}

// Format selects a Payload encoding.
type Format string

const (
	FormatJSON    Format = "json"
	FormatMsgpack Format = "msgpack"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatJSON, FormatMsgpack:
		return Format(s), nil
	}
	return "", fmt.Errorf("unsupported payload format %q (supported: json, msgpack)", s)
}

// Encode writes p to w.
func (p Payload) Encode(w io.Writer, f Format) error {
	if p.Diagnostics == nil {
		p.Diagnostics = []diag.Diagnostic{}
	}
	if p.Assets == nil {
		p.Assets = []Asset{}
	}
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(p); err != nil {
			return fmt.Errorf("failed to encode payload: %w", err)
		}
		return nil
	case FormatMsgpack:
		enc := msgpack.NewEncoder(w)
		if err := enc.Encode(p); err != nil {
			return fmt.Errorf("failed to encode payload: %w", err)
		}
		return nil
	}
	return fmt.Errorf("unsupported payload format %q", f)
}

// DecodePayload reads a payload written by Encode.
func DecodePayload(r io.Reader, f Format) (Payload, error) {
	var p Payload
	switch f {
	case FormatJSON:
		if err := json.NewDecoder(r).Decode(&p); err != nil {
			return Payload{}, fmt.Errorf("failed to decode payload: %w", err)
		}
	case FormatMsgpack:
		if err := msgpack.NewDecoder(r).Decode(&p); err != nil {
			return Payload{}, fmt.Errorf("failed to decode payload: %w", err)
		}
	default:
		return Payload{}, fmt.Errorf("unsupported payload format %q", f)
	}
	return p, nil
}
