package diag

import (
	"fmt"
)

type Code uint16

const (
	UnknownCode Code = 0

	// Project resolution
	PrjInfo         Code = 1000
	ProjectNotFound Code = 1001
	ManifestInvalid Code = 1002
	ManifestWarning Code = 1003

	// Toolchain
	ToolInfo        Code = 2000
	ToolchainLaunch Code = 2001
	CompilerMessage Code = 2002
	CompileFailure  Code = 2003
	ArtifactMissing Code = 2004

	// Artifact pipeline
	StageInfo     Code = 3000
	StageFailure  Code = 3001
	InvalidBinary Code = 3002

	// Output
	EmitInfo    Code = 4000
	EmitFailure Code = 4001
)

var codeDescription = map[Code]string{
	UnknownCode:     "Unknown error",
	PrjInfo:         "Project information",
	ProjectNotFound: "No project manifest found",
	ManifestInvalid: "Project manifest could not be read",
	ManifestWarning: "Project manifest is unlikely to produce a wasm binary",
	ToolInfo:        "Toolchain information",
	ToolchainLaunch: "Toolchain executable could not be started",
	CompilerMessage: "Compiler message",
	CompileFailure:  "Toolchain exited with a failure status",
	ArtifactMissing: "Toolchain did not report a wasm artifact",
	StageInfo:       "Pipeline stage information",
	StageFailure:    "Post-processing stage failed",
	InvalidBinary:   "Compiled binary is not a valid wasm module",
	EmitInfo:        "Output information",
	EmitFailure:     "Assets could not be emitted",
}

func (c Code) ID() string {
	switch ic := int(c); {
	case ic >= 1000 && ic < 2000:
		return fmt.Sprintf("PRJ%04d", ic)
	case ic >= 2000 && ic < 3000:
		return fmt.Sprintf("TCH%04d", ic)
	case ic >= 3000 && ic < 4000:
		return fmt.Sprintf("STG%04d", ic)
	case ic >= 4000 && ic < 5000:
		return fmt.Sprintf("OUT%04d", ic)
	}
	return "E0000"
}

func (c Code) Title() string {
	desc, ok := codeDescription[c]
	if !ok {
		return codeDescription[UnknownCode]
	}
	return desc
}

func (c Code) String() string {
	return fmt.Sprintf("[%s]: %s", c.ID(), c.Title())
}

// MarshalText encodes the code by its ID, e.g. "TCH2002".
func (c Code) MarshalText() ([]byte, error) {
	return []byte(c.ID()), nil
}

// UnmarshalText accepts any known ID.
func (c *Code) UnmarshalText(text []byte) error {
	id := string(text)
	for code := range codeDescription {
		if code.ID() == id {
			*c = code
			return nil
		}
	}
	return fmt.Errorf("unknown diagnostic code %q", id)
}
