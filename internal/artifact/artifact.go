// Package artifact defines the values passed between artifact pipeline stages.
package artifact

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Kind tags what an artifact holds.
type Kind uint8

const (
	PrimaryBinary Kind = iota + 1
	ReducedBinary
	GlueSource
	ShimSource
)

func (k Kind) String() string {
	switch k {
	case PrimaryBinary:
		return "primary-binary"
	case ReducedBinary:
		return "reduced-binary"
	case GlueSource:
		return "generated-glue-source"
	case ShimSource:
		return "shim-module-source"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind name.
func (k *Kind) UnmarshalText(text []byte) error {
	for _, candidate := range []Kind{PrimaryBinary, ReducedBinary, GlueSource, ShimSource} {
		if string(text) == candidate.String() {
			*k = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown artifact kind %q", text)
}

// IsBinary reports whether the kind carries a compiled module.
func (k Kind) IsBinary() bool {
	return k == PrimaryBinary || k == ReducedBinary
}

// Artifact is one output of a pipeline stage. Stages never modify an
// artifact they receive; Derive produces the successor.
type Artifact struct {
	Kind Kind
	// Name is the logical base name, e.g. the module name.
	Name string
	// Ext includes the leading dot.
	Ext  string
	Data []byte
}

// New returns an artifact holding a private copy of data.
func New(kind Kind, name, ext string, data []byte) Artifact {
	return Artifact{Kind: kind, Name: name, Ext: ext, Data: bytes.Clone(data)}
}

// Derive returns a new artifact of the given kind that keeps a's name and
// owns a copy of data.
func (a Artifact) Derive(kind Kind, ext string, data []byte) Artifact {
	return New(kind, a.Name, ext, data)
}

// Clone returns a deep copy of a.
func (a Artifact) Clone() Artifact {
	a.Data = bytes.Clone(a.Data)
	return a
}

// Hash returns the lowercase hex SHA-256 of the artifact's bytes.
func (a Artifact) Hash() string {
	return HashBytes(a.Data)
}

// HashBytes returns the lowercase hex SHA-256 of data.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Binary returns the first binary-class artifact in list.
func Binary(list []Artifact) (Artifact, bool) {
	for _, a := range list {
		if a.Kind.IsBinary() {
			return a, true
		}
	}
	return Artifact{}, false
}

// CloneAll deep-copies list.
func CloneAll(list []Artifact) []Artifact {
	if list == nil {
		return nil
	}
	out := make([]Artifact, len(list))
	for i, a := range list {
		out[i] = a.Clone()
	}
	return out
}

// SafeName maps a logical module name onto a string usable as a file stem:
// every byte outside [A-Za-z0-9_.] becomes '_'. That covers '-', which
// matches cargo's crate naming, and each byte of a non-ASCII rune.
func SafeName(name string) string {
	if name == "" {
		return "module"
	}
	b := []byte(name)
	for i, c := range b {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_', c == '.':
		default:
			b[i] = '_'
		}
	}
	s := string(b)
	if s == "." || s == ".." {
		return "module"
	}
	return s
}
