// Package promptname normalizes free-text prompt names into identifiers the
// prompt library accepts.
package promptname

import (
	"regexp"
	"strings"
)

// Default is returned when nothing usable survives sanitization.
const Default = "Prompt"

// leadingPrefix is prepended when the identifier would start with a non-letter.
// The prompt library rejects names that begin with a digit.
const leadingPrefix = "P_"

var (
	disallowedRe = regexp.MustCompile(`[^A-Za-z0-9_]`)
	alnumRe      = regexp.MustCompile(`[A-Za-z0-9]`)
)

// Sanitize replaces hyphens with underscores, strips everything outside
// [A-Za-z0-9_] and guarantees a leading letter. The result always matches
// [A-Za-z_][A-Za-z0-9_]* and is never empty.
//
// A result made only of underscores counts as empty, so "---" maps to Default
// rather than to an identifier with no name in it.
func Sanitize(raw string) string {
	name := strings.ReplaceAll(raw, "-", "_")
	name = disallowedRe.ReplaceAllString(name, "")
	if !alnumRe.MatchString(name) {
		return Default
	}
	if !isASCIILetter(name[0]) {
		name = leadingPrefix + name
	}
	return name
}

// IsBlank reports whether raw carries no name at all (empty or whitespace).
func IsBlank(raw string) bool {
	return strings.TrimSpace(raw) == ""
}

func isASCIILetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
