package config

import (
	"errors"
	"fmt"
	"path"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// DefaultHashLength is the width of a bare [hash] placeholder.
const DefaultHashLength = 20

// ErrTemplate reports an unusable name template.
var ErrTemplate = errors.New("invalid name template")

var placeholderRe = regexp.MustCompile(`\[(name|hash|ext)(?::(\d+))?\]`)

// ExpandName substitutes [name], [hash], [hash:N] and [ext] in tmpl. fullHash is
// the hex digest; ext is given without the leading dot. Brackets that are not
// placeholders are kept literally. The result is NFC-normalized and must be a
// relative path that stays inside the output directory.
func ExpandName(tmpl, name, fullHash, ext string) (string, error) {
	var expandErr error
	out := placeholderRe.ReplaceAllStringFunc(tmpl, func(m string) string {
		sub := placeholderRe.FindStringSubmatch(m)
		key, width := sub[1], sub[2]
		if width != "" && key != "hash" {
			expandErr = fmt.Errorf("%w: [%s] takes no length", ErrTemplate, key)
			return m
		}
		switch key {
		case "name":
			return name
		case "ext":
			return strings.TrimPrefix(ext, ".")
		}
		n := DefaultHashLength
		if width != "" {
			v, err := strconv.Atoi(width)
			if err != nil || v < 1 || v > 64 {
				expandErr = fmt.Errorf("%w: hash length %s out of range 1..64", ErrTemplate, width)
				return m
			}
			n = v
		}
		if n > len(fullHash) {
			n = len(fullHash)
		}
		return fullHash[:n]
	})
	if expandErr != nil {
		return "", expandErr
	}
	out = norm.NFC.String(out)
	if err := checkRelative(out); err != nil {
		return "", err
	}
	return out, nil
}

func checkRelative(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: expands to an empty name", ErrTemplate)
	}
	if strings.ContainsRune(name, '\\') || strings.HasPrefix(name, "/") {
		return fmt.Errorf("%w: %q is not a relative slash-separated path", ErrTemplate, name)
	}
	clean := path.Clean(name)
	if clean != name || clean == ".." || strings.HasPrefix(clean, "../") {
		return fmt.Errorf("%w: %q escapes or is not clean", ErrTemplate, name)
	}
	return nil
}

// sampleHash stands in for a real digest when a template is checked before
// anything has been built.
var sampleHash = strings.Repeat("0", 64)

// CheckName reports whether tmpl expands to a usable asset name.
func CheckName(tmpl string) error {
	_, err := ExpandName(tmpl, "module", sampleHash, "wasm")
	return err
}
