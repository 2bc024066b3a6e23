package diagfmt

// PathMode specifies how file paths are displayed.
type PathMode uint8

const (
	// PathModeAuto prints paths relative to BaseDir when they live under it.
	PathModeAuto PathMode = iota
	// PathModeAbsolute always uses the path reported by the toolchain.
	PathModeAbsolute
	PathModeRelative
	PathModeBasename
)

// PrettyOpts configures pretty-printing of diagnostics.
type PrettyOpts struct {
	Color    bool
	PathMode PathMode
	BaseDir  string
	// ShowRendered prints the toolchain's own rendering under each entry.
	ShowRendered bool
	// Summary appends an "N errors, M warnings" line.
	Summary bool
}

// JSONOpts configures JSON output of diagnostics.
type JSONOpts struct {
	PathMode        PathMode
	BaseDir         string
	Max             int // обрезка вывода, не входных данных
	IncludeRendered bool
}
