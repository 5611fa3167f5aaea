package sync

import (
	"fmt"
	"strings"
)

// illegal filename characters and their placeholders. Each illegal
// character maps to a distinct token so two different remote names can
// never sanitize to the same local path. Path separators are left alone;
// directory handling deals with those.
var sanitizeTable = map[rune]string{
	':':  "%3a",
	'<':  "%3c",
	'>':  "%3e",
	'"':  "%22",
	'|':  "%7c",
	'?':  "%3f",
	'*':  "%2a",
	'\\': "%5c",
}

// SanitizePath rewrites every character of a remote asset name that
// cannot appear in a local path. Applied to each name before it is used
// as a mirror path, and again by the migration resolver so both sides
// agree on the local spelling.
func SanitizePath(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if repl, ok := sanitizeTable[r]; ok {
			b.WriteString(repl)
			continue
		}
		if r < 0x20 || r == 0x7f || (r >= 0xfdd0 && r <= 0xfdef) {
			// control characters and the reserved noncharacter block
			b.WriteString(fmt.Sprintf("%%%02x", r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// NormalizeDirPath strips duplicate, leading and trailing separators
// from a directory path.
func NormalizeDirPath(p string) string {
	segments := strings.Split(p, "/")
	kept := segments[:0]
	for _, s := range segments {
		if s != "" {
			kept = append(kept, s)
		}
	}
	return strings.Join(kept, "/")
}
