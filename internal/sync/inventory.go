package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/forgevtt/forgesync/internal/datastore"
	"github.com/forgevtt/forgesync/internal/forgeapi"
)

var ErrEmptyLibrary = errors.New("sync: remote asset library is empty")

// Inventory is the three-set view of one run: remote directories, remote
// files and the local mirror's directories/files. Built once per run;
// only directory provisioning appends to LocalDirs afterwards.
type Inventory struct {
	// RemoteDirs and RemoteFiles are keyed by sanitized path without a
	// trailing separator; the value keeps the original listing record.
	RemoteDirs  map[string]*forgeapi.Asset
	RemoteFiles map[string]*forgeapi.Asset

	LocalDirs  mapset.Set[string]
	LocalFiles mapset.Set[string]
}

func NewInventory() *Inventory {
	return &Inventory{
		RemoteDirs:  make(map[string]*forgeapi.Asset),
		RemoteFiles: make(map[string]*forgeapi.Asset),
		LocalDirs:   mapset.NewSet[string](),
		LocalFiles:  mapset.NewSet[string](),
	}
}

// RemoteDirSet returns the remote directory paths as a set.
func (inv *Inventory) RemoteDirSet() mapset.Set[string] {
	set := mapset.NewSet[string]()
	for dir := range inv.RemoteDirs {
		set.Add(dir)
	}
	return set
}

// InventoryBuilder queries the two providers and normalizes their
// listings into an Inventory.
type InventoryBuilder struct {
	remote   RemoteLibrary
	store    datastore.Store
	progress *progressSink
}

func NewInventoryBuilder(remote RemoteLibrary, store datastore.Store, progress *progressSink) *InventoryBuilder {
	return &InventoryBuilder{
		remote:   remote,
		store:    store,
		progress: progress,
	}
}

// BuildRemote fetches the full remote listing, sanitizes every name and
// partitions it into directories and files. An empty listing is an
// error: syncing against nothing is always a misconfiguration.
func (b *InventoryBuilder) BuildRemote(ctx context.Context, inv *Inventory) error {
	assets, err := b.remote.ListAssets(ctx)
	if err != nil {
		return fmt.Errorf("list remote assets: %w", err)
	}
	if len(assets) == 0 {
		return ErrEmptyLibrary
	}

	for _, asset := range assets {
		name := SanitizePath(asset.Name)
		if asset.IsDirectory() {
			inv.RemoteDirs[NormalizeDirPath(name)] = asset
		} else {
			inv.RemoteFiles[name] = asset
		}
	}

	slog.Info("remote inventory", "dirs", len(inv.RemoteDirs), "files", len(inv.RemoteFiles))
	return nil
}

// BuildLocal lists the mirror root plus every directory named by the
// remote inventory. A directory that doesn't exist locally yet is
// expected and skipped; any other browse failure aborts the build.
func (b *InventoryBuilder) BuildLocal(ctx context.Context, inv *Inventory) error {
	dirs := make([]string, 0, len(inv.RemoteDirs)+1)
	dirs = append(dirs, "")
	for dir := range inv.RemoteDirs {
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)

	for i, dir := range dirs {
		if err := ctx.Err(); err != nil {
			return err
		}

		b.progress.Send(ProgressUpdate{
			Step:    "inventory",
			Name:    dir,
			Current: i + 1,
			Total:   len(dirs),
		})

		listing, err := b.store.Browse(ctx, dir)
		if err != nil {
			if errors.Is(err, datastore.ErrNotFound) {
				continue
			}
			return fmt.Errorf("browse local %q: %w", dir, err)
		}

		for _, entry := range listing.Entries {
			child := path.Join(dir, entry.Name)
			if entry.IsDir {
				inv.LocalDirs.Add(child)
			} else {
				inv.LocalFiles.Add(child)
			}
		}
	}

	slog.Info("local inventory", "dirs", inv.LocalDirs.Cardinality(), "files", inv.LocalFiles.Cardinality())
	return nil
}

// dirOf returns the directory portion of a file path, "" for root files.
func dirOf(filePath string) string {
	dir := path.Dir(filePath)
	if dir == "." || dir == "/" {
		return ""
	}
	return strings.TrimPrefix(dir, "/")
}
