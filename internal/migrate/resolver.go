package migrate

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	gosync "sync"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/forgevtt/forgesync/internal/forgeapi"
	"github.com/forgevtt/forgesync/internal/sync"
	"github.com/forgevtt/forgesync/internal/utils"
)

const dirCollisionAttempts = 5

// Resolver maps absolute asset-library URLs to local mirror paths. It
// is handed to the walker as the ResolveFunc for every reference and
// accumulates everything it could not resolve for the final report.
type Resolver struct {
	assetsBase string // personal library prefix, e.g. https://assets.forge-vtt.com/<user>/
	bazaarBase string // package bundle prefix, e.g. https://assets.forge-vtt.com/bazaar/
	packages   PackageIndex
	worldRoot  string // directory of the active world, for world-export byte copies

	mu       gosync.Mutex
	urlIndex map[string]string // asset URL → local mirror path
	report   Report
}

func NewResolver(assetsBase, bazaarBase string, packages PackageIndex, worldRoot string) *Resolver {
	return &Resolver{
		assetsBase: assetsBase,
		bazaarBase: bazaarBase,
		packages:   packages,
		worldRoot:  worldRoot,
		urlIndex:   make(map[string]string),
	}
}

// SetFiles indexes the freshly synchronized remote file map by URL.
// Called once by the walker before traversal; read-only afterwards.
func (r *Resolver) SetFiles(files map[string]*forgeapi.Asset) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for localPath, asset := range files {
		if asset.URL != "" {
			r.urlIndex[asset.URL] = localPath
		}
	}
}

// Report returns the accumulated unresolved items.
func (r *Resolver) Report() *Report {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := r.report
	copied.Unreachable = append([]string(nil), r.report.Unreachable...)
	copied.MissingPackages = append([]string(nil), r.report.MissingPackages...)
	return &copied
}

// Resolve implements ResolveFunc.
func (r *Resolver) Resolve(ctx context.Context, ref string, flags ResolveFlags) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if ref == "" {
		return ref, nil
	}

	switch {
	case r.bazaarBase != "" && strings.HasPrefix(ref, r.bazaarBase):
		return r.resolveBazaar(ref)
	case r.assetsBase != "" && strings.HasPrefix(ref, r.assetsBase):
		return r.resolvePersonal(ref, flags)
	default:
		// not in the asset library namespace at all; real assets hosted
		// elsewhere would go dark in an offline world, so remember them
		if flags.IsAsset && (strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")) {
			r.recordUnreachable(ref)
		}
		return ref, nil
	}
}

// resolveBazaar rewrites a package-bundled asset to its locally
// installed copy, when the bundle is present.
func (r *Resolver) resolveBazaar(ref string) (string, error) {
	rest := strings.TrimPrefix(ref, r.bazaarBase)
	parts := strings.SplitN(rest, "/", 3)
	if len(parts) < 3 {
		r.recordUnreachable(ref)
		return ref, nil
	}

	kind := PackageKind(parts[0])
	name := parts[1]
	assetPath := decodePath(parts[2])

	switch kind {
	case PackageModule, PackageSystem, PackageWorld:
	default:
		r.recordUnreachable(ref)
		return ref, nil
	}

	root, ok := r.packages.Installed(kind, name)
	if !ok {
		r.recordMissingPackage(string(kind) + "/" + name)
		return ref, nil
	}

	localRel := string(kind) + "/" + name + "/" + assetPath

	if kind == PackageWorld && r.worldRoot != "" {
		// a world export carries its assets inside the bundle; they must
		// be copied into the active world's own directory
		copied, err := r.copyWorldAsset(root, assetPath)
		if err != nil {
			slog.Warn("world asset copy failed", "asset", assetPath, "error", err)
			r.recordUnreachable(ref)
			return ref, nil
		}
		return copied, nil
	}

	return localRel, nil
}

// copyWorldAsset copies a bundled asset into the active world
// directory, creating parents with collision-safe names and skipping
// the copy when the destination already exists.
func (r *Resolver) copyWorldAsset(bundleRoot, assetPath string) (string, error) {
	relDir, file := filepath.Split(filepath.FromSlash(assetPath))
	dstDir, err := ensureDirSafe(r.worldRoot, filepath.ToSlash(filepath.Clean(relDir)))
	if err != nil {
		return "", err
	}

	dst := filepath.Join(dstDir, file)
	if _, err := os.Stat(dst); err == nil {
		// identical path already in place
	} else {
		src := filepath.Join(bundleRoot, filepath.FromSlash(assetPath))
		if err := utils.CopyFile(src, dst); err != nil {
			return "", err
		}
	}

	// references to world assets are rooted at the host data directory:
	// worlds/<world>/<path>
	rel, err := filepath.Rel(filepath.Dir(r.worldRoot), dst)
	if err != nil {
		return "", err
	}
	return string(PackageWorld) + "/" + filepath.ToSlash(rel), nil
}

// resolvePersonal rewrites a personal-library URL to the synchronized
// local copy.
func (r *Resolver) resolvePersonal(ref string, flags ResolveFlags) (string, error) {
	r.mu.Lock()
	localPath, ok := r.urlIndex[ref]
	r.mu.Unlock()
	if ok {
		return localPath, nil
	}

	// wildcard-capable fields never match a concrete library entry;
	// pass the pattern through as long as it is well-formed. Checked on
	// the unescaped form, before sanitization eats the metacharacters.
	unescaped := strings.TrimPrefix(ref, r.assetsBase)
	if u, err := url.PathUnescape(unescaped); err == nil {
		unescaped = u
	}
	if flags.SupportsWildcard && strings.ContainsAny(unescaped, "*?[") {
		if doublestar.ValidatePattern(unescaped) {
			return unescaped, nil
		}
	}

	r.recordUnreachable(ref)
	return ref, nil
}

func (r *Resolver) recordUnreachable(ref string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.report.Unreachable {
		if existing == ref {
			return
		}
	}
	r.report.Unreachable = append(r.report.Unreachable, ref)
}

func (r *Resolver) setWorldMetadataFailed() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.report.WorldMetadataFailed = true
}

func (r *Resolver) recordMissingPackage(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.report.MissingPackages {
		if existing == name {
			return
		}
	}
	r.report.MissingPackages = append(r.report.MissingPackages, name)
}

// decodePath url-decodes a reference path and sanitizes it the same way
// the inventory sanitizes remote names, so both agree on the local
// spelling.
func decodePath(p string) string {
	if unescaped, err := url.PathUnescape(p); err == nil {
		p = unescaped
	}
	return sync.SanitizePath(p)
}

// ensureDirSafe creates relDir below base segment by segment. When a
// segment's name collides with an existing file, a disambiguating
// suffix is appended and creation retried.
func ensureDirSafe(base, relDir string) (string, error) {
	current := base
	if relDir == "" || relDir == "." {
		return current, nil
	}

	for _, segment := range strings.Split(relDir, "/") {
		if segment == "" || segment == "." {
			continue
		}

		candidate := segment
		created := false
		for attempt := 0; attempt < dirCollisionAttempts; attempt++ {
			target := filepath.Join(current, candidate)
			info, err := os.Stat(target)
			switch {
			case err == nil && info.IsDir():
				current = target
				created = true
			case err == nil:
				// a file squats on the name, disambiguate and retry
				candidate = fmt.Sprintf("%s_%d", segment, attempt+1)
				continue
			default:
				if err := os.Mkdir(target, 0o755); err != nil && !os.IsExist(err) {
					return "", err
				}
				current = target
				created = true
			}
			break
		}
		if !created {
			return "", fmt.Errorf("no creatable name for directory %q under %q", segment, current)
		}
	}
	return current, nil
}
