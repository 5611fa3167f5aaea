package migrate

import (
	"fmt"
	"strings"
)

// Report aggregates everything a migration could not resolve. The
// migration counts as fully successful only when all three checks are
// clean; anything else is a partial success surfaced to the operator,
// never an exception.
type Report struct {
	// Unreachable lists external or offline asset references that were
	// left unrewritten.
	Unreachable []string

	// MissingPackages lists bundles referenced by the world but not
	// installed locally.
	MissingPackages []string

	// WorldMetadataFailed is set when the world-level background or
	// description could not be updated.
	WorldMetadataFailed bool
}

// Clean reports whether the migration completed with nothing left
// unresolved.
func (r *Report) Clean() bool {
	return len(r.Unreachable) == 0 && len(r.MissingPackages) == 0 && !r.WorldMetadataFailed
}

// Summary renders the report as a human-readable listing.
func (r *Report) Summary() string {
	if r.Clean() {
		return "world migration completed with no unresolved references"
	}

	var b strings.Builder
	b.WriteString("world migration completed with unresolved items:\n")
	if len(r.MissingPackages) > 0 {
		fmt.Fprintf(&b, "  missing packages (%d):\n", len(r.MissingPackages))
		for _, name := range r.MissingPackages {
			fmt.Fprintf(&b, "    - %s\n", name)
		}
	}
	if len(r.Unreachable) > 0 {
		fmt.Fprintf(&b, "  unreachable assets (%d):\n", len(r.Unreachable))
		for _, ref := range r.Unreachable {
			fmt.Fprintf(&b, "    - %s\n", ref)
		}
	}
	if r.WorldMetadataFailed {
		b.WriteString("  world metadata (background/description) could not be updated\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
