package emit

import (
	"strings"

	"wasmloader/internal/config"
)

// DefaultHashLength is the width of a bare [hash] placeholder.
const DefaultHashLength = config.DefaultHashLength

// ErrTemplate reports an unusable name template.
var ErrTemplate = config.ErrTemplate

// Expand names one asset; see config.ExpandName for the template grammar.
func Expand(tmpl, name, fullHash, ext string) (string, error) {
	return config.ExpandName(tmpl, name, fullHash, ext)
}

// sourceTemplate derives the template used for JavaScript sources: a
// template ending in ".wasm" ends in ".js" instead.
func sourceTemplate(tmpl string) string {
	if trimmed, ok := strings.CutSuffix(tmpl, ".wasm"); ok {
		return trimmed + ".js"
	}
	return tmpl
}
