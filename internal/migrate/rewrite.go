package migrate

import (
	"context"
	"regexp"
	"strings"

	"golang.org/x/sync/errgroup"
)

// ResolveFlags qualify one reference handed to the resolver.
type ResolveFlags struct {
	// IsAsset marks a real asset reference (an image src, a sound path)
	// as opposed to a decorative link target.
	IsAsset bool
	// SupportsWildcard marks a field the host accepts wildcard patterns in.
	SupportsWildcard bool
}

// ResolveFunc maps one embedded reference to its local replacement.
// Returning the input unchanged is a valid passthrough.
type ResolveFunc func(ctx context.Context, ref string, flags ResolveFlags) (string, error)

var (
	htmlRefPattern     = regexp.MustCompile(`(src|href)="([^"]*)"`)
	markdownRefPattern = regexp.MustCompile(`(!?)\[([^\]]*)\]\(([^)\s]+)\)`)
)

type refMatch struct {
	start, end  int // bounds of the reference inside the text
	replacement string
}

// rewriteRefs finds all matches eagerly, resolves every replacement
// concurrently and then substitutes by position. Resolving in place
// while scanning would interleave async replacements with shifting
// offsets; matching up front keeps the offsets stable. Matches from a
// single pass of the regexp engine never overlap, which is what makes
// positional substitution safe.
func rewriteRefs(ctx context.Context, text string, matches []refMatch, refs []string, flags []ResolveFlags, resolve ResolveFunc) (string, error) {
	g, ctx := errgroup.WithContext(ctx)
	for i := range matches {
		i := i
		g.Go(func() error {
			resolved, err := resolve(ctx, refs[i], flags[i])
			if err != nil {
				return err
			}
			matches[i].replacement = resolved
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	var b strings.Builder
	b.Grow(len(text))
	last := 0
	for _, m := range matches {
		b.WriteString(text[last:m.start])
		b.WriteString(m.replacement)
		last = m.end
	}
	b.WriteString(text[last:])
	return b.String(), nil
}

// rewriteHTML replaces asset references inside src= and href=
// attribute values. src attributes are real assets; href targets are
// decorative.
func rewriteHTML(ctx context.Context, text string, resolve ResolveFunc) (string, error) {
	idx := htmlRefPattern.FindAllStringSubmatchIndex(text, -1)
	if len(idx) == 0 {
		return text, nil
	}

	matches := make([]refMatch, 0, len(idx))
	refs := make([]string, 0, len(idx))
	flags := make([]ResolveFlags, 0, len(idx))
	for _, m := range idx {
		attr := text[m[2]:m[3]]
		matches = append(matches, refMatch{start: m[4], end: m[5]})
		refs = append(refs, text[m[4]:m[5]])
		flags = append(flags, ResolveFlags{IsAsset: attr == "src"})
	}
	return rewriteRefs(ctx, text, matches, refs, flags, resolve)
}

// rewriteMarkdown replaces asset references inside markdown link
// syntax. Image links (![alt](path)) are real assets; plain links are
// decorative.
func rewriteMarkdown(ctx context.Context, text string, resolve ResolveFunc) (string, error) {
	idx := markdownRefPattern.FindAllStringSubmatchIndex(text, -1)
	if len(idx) == 0 {
		return text, nil
	}

	matches := make([]refMatch, 0, len(idx))
	refs := make([]string, 0, len(idx))
	flags := make([]ResolveFlags, 0, len(idx))
	for _, m := range idx {
		isImage := m[3] > m[2] // the optional "!" matched
		matches = append(matches, refMatch{start: m[6], end: m[7]})
		refs = append(refs, text[m[6]:m[7]])
		flags = append(flags, ResolveFlags{IsAsset: isImage})
	}
	return rewriteRefs(ctx, text, matches, refs, flags, resolve)
}
