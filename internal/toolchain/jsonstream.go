package toolchain

import (
	"encoding/json"
	"strings"

	"fortio.org/safecast"

	"wasmloader/internal/diag"
)

// CompilerArtifact is one `compiler-artifact` record of cargo's JSON stream.
type CompilerArtifact struct {
	PackageID    string
	ManifestPath string
	TargetName   string
	Kinds        []string
	Filenames    []string
}

// Stream is everything recognized in a cargo JSON message stream.
type Stream struct {
	Diagnostics []diag.Diagnostic
	Artifacts   []CompilerArtifact
	// Finished is set when a build-finished record was seen.
	Finished     bool
	BuildSuccess bool
}

// JSONStreamParser reads `cargo build --message-format=json` output.
type JSONStreamParser struct{}

type cargoMessage struct {
	Reason       string        `json:"reason"`
	PackageID    string        `json:"package_id"`
	ManifestPath string        `json:"manifest_path"`
	Target       *cargoTarget  `json:"target"`
	Message      *rustcMessage `json:"message"`
	Filenames    []string      `json:"filenames"`
	Success      *bool         `json:"success"`
}

type cargoTarget struct {
	Name       string   `json:"name"`
	Kind       []string `json:"kind"`
	CrateTypes []string `json:"crate_types"`
}

type rustcMessage struct {
	Message  string      `json:"message"`
	Level    string      `json:"level"`
	Rendered string      `json:"rendered"`
	Code     *rustcCode  `json:"code"`
	Spans    []rustcSpan `json:"spans"`
}

type rustcCode struct {
	Code string `json:"code"`
}

type rustcSpan struct {
	FileName    string `json:"file_name"`
	LineStart   int64  `json:"line_start"`
	LineEnd     int64  `json:"line_end"`
	ColumnStart int64  `json:"column_start"`
	ColumnEnd   int64  `json:"column_end"`
	IsPrimary   bool   `json:"is_primary"`
}

func (JSONStreamParser) Parse(text string) []diag.Diagnostic {
	return JSONStreamParser{}.ParseStream(text).Diagnostics
}

// ParseStream decodes every line of text independently. The whole buffer is
// split up front so no line is ever truncated by a reader limit.
func (JSONStreamParser) ParseStream(text string) Stream {
	var st Stream
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "{") {
			continue
		}
		var msg cargoMessage
		if err := json.Unmarshal([]byte(line), &msg); err != nil {
			continue
		}
		switch msg.Reason {
		case "compiler-message":
			if d, ok := convertMessage(msg.Message); ok {
				st.Diagnostics = append(st.Diagnostics, d)
			}
		case "compiler-artifact":
			art := CompilerArtifact{
				PackageID:    msg.PackageID,
				ManifestPath: msg.ManifestPath,
				Filenames:    msg.Filenames,
			}
			if msg.Target != nil {
				art.TargetName = msg.Target.Name
				art.Kinds = msg.Target.Kind
			}
			st.Artifacts = append(st.Artifacts, art)
		case "build-finished":
			st.Finished = true
			st.BuildSuccess = msg.Success != nil && *msg.Success
		}
	}
	return st
}

func convertMessage(m *rustcMessage) (diag.Diagnostic, bool) {
	if m == nil {
		return diag.Diagnostic{}, false
	}
	sev, ok := diag.ParseSeverity(m.Level)
	if !ok || isAggregate(m.Message) {
		return diag.Diagnostic{}, false
	}
	d := diag.New(sev, diag.CompilerMessage, m.Message)
	if m.Code != nil && m.Code.Code != "" {
		d = d.WithToolCode(m.Code.Code)
	}
	if r := strings.TrimRight(m.Rendered, "\n"); r != "" {
		d = d.WithRendered(r)
	}
	if sp, ok := primarySpan(m.Spans); ok {
		d = d.WithSpan(sp)
	}
	return d, true
}

func primarySpan(spans []rustcSpan) (diag.Span, bool) {
	for _, s := range spans {
		if !s.IsPrimary {
			continue
		}
		return diag.Span{
			File:      s.FileName,
			Line:      toPos(s.LineStart),
			Column:    toPos(s.ColumnStart),
			EndLine:   toPos(s.LineEnd),
			EndColumn: toPos(s.ColumnEnd),
		}, true
	}
	return diag.Span{}, false
}

func toPos(v int64) uint32 {
	n, err := safecast.Conv[uint32](v)
	if err != nil {
		return 0
	}
	return n
}
