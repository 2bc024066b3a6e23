// Package diag defines the diagnostic model shared by every toolchain driver
// and pipeline stage.
//
// # Purpose
//
//   - Provide one deterministic, serialisable record for compiler messages no
//     matter which toolchain produced them (cargo's JSON stream, cargo-web's
//     free text, post-pass tools' stderr).
//   - Offer a small ordered container (Bag) that the build pipeline fills
//     stage by stage.
//
// # Data model
//
// Diagnostic is the central record:
//
//   - Severity – Warning or Error. Toolchain notes and help messages are not
//     diagnostics of their own; they stay inside Rendered.
//   - Code – this system's classification (see codes.go).
//   - ToolCode – the toolchain's own code such as E0425, when present.
//   - Message – the short message text.
//   - Rendered – the toolchain's human rendering, when it supplies one.
//   - Span – optional file/line/column location.
//
// # Ordering
//
// Diagnostics keep the order in which the toolchain emitted them. Bag never
// sorts and never deduplicates: running the same failing input twice must
// yield the same sequence.
//
// # Scope
//
// Package diag performs no formatting beyond the single-line Short form used
// by logs and tests. Rendering for terminals and machines lives in
// internal/diagfmt.
package diag
