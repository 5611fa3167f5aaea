package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	gosync "sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/forgevtt/forgesync/internal/datastore"
	"github.com/forgevtt/forgesync/internal/forgeapi"
)

const syncWorkers = 4

var ErrSyncAlreadyRunning = errors.New("sync already running")

// WorldMigrator rewrites asset references inside the host's world
// database after a sync. Receives the remote file map of the run just
// completed; reports whether the migration was fully clean.
type WorldMigrator interface {
	Migrate(ctx context.Context, files map[string]*forgeapi.Asset) (clean bool, err error)
}

// AssetFailure describes one asset that could not be synced.
type AssetFailure struct {
	Name   string
	Reason string
}

// Result is the aggregate outcome of one sync run.
type Result struct {
	Status   Status
	Synced   []string
	Skipped  []string
	Failed   []AssetFailure
	Duration time.Duration
}

// Engine drives the whole pipeline: prepare, inventory, directory
// provisioning, per-asset reconciliation, mapping persistence and the
// optional world migration. One Engine runs one sync at a time.
type Engine struct {
	remote     RemoteLibrary
	store      datastore.Store
	opts       Options
	migrator   WorldMigrator
	progressFn ProgressFunc

	statusMu gosync.RWMutex
	status   Status

	cancelled atomic.Bool

	// per-run state, owned exclusively for the duration of Run
	mapping  *MappingStore
	inv      *Inventory
	dirs     *DirProvisioner
	progress *progressSink

	resMu   gosync.Mutex
	synced  []string
	skipped []string
	failed  []AssetFailure
}

// NewEngine creates a sync engine. migrator may be nil when the world
// migration phase is disabled.
func NewEngine(remote RemoteLibrary, store datastore.Store, opts Options, migrator WorldMigrator, progress ProgressFunc) *Engine {
	return &Engine{
		remote:     remote,
		store:      store,
		opts:       opts,
		migrator:   migrator,
		progressFn: progress,
		status:     StatusReady,
	}
}

// Status returns the engine's current lifecycle state.
func (e *Engine) Status() Status {
	e.statusMu.RLock()
	defer e.statusMu.RUnlock()
	return e.status
}

func (e *Engine) setStatus(s Status) {
	e.statusMu.Lock()
	e.status = s
	e.statusMu.Unlock()
	e.progress.Send(ProgressUpdate{Step: string(s)})
	slog.Debug("sync status", "status", s)
}

// Cancel requests a cooperative stop. In-flight requests are not
// aborted; their results are discarded at the next checkpoint.
func (e *Engine) Cancel() {
	e.cancelled.Store(true)
}

func (e *Engine) isCancelled(ctx context.Context) bool {
	return e.cancelled.Load() || ctx.Err() != nil
}

// Run executes one full sync. Returns ErrSyncAlreadyRunning if the
// engine is not in the Ready state.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	e.statusMu.Lock()
	if e.status != StatusReady {
		e.statusMu.Unlock()
		return nil, ErrSyncAlreadyRunning
	}
	e.status = StatusPreparing
	e.statusMu.Unlock()

	started := time.Now()
	e.cancelled.Store(false)
	e.synced, e.skipped, e.failed = nil, nil, nil
	e.progress = newProgressSink(e.progressFn)
	defer e.progress.Close()

	status := e.run(ctx)
	e.setStatus(status)

	result := &Result{
		Status:   status,
		Synced:   e.synced,
		Skipped:  e.skipped,
		Failed:   e.failed,
		Duration: time.Since(started),
	}
	slog.Info("sync finished",
		"status", status,
		"synced", len(result.Synced),
		"skipped", len(result.Skipped),
		"failed", len(result.Failed),
		"took", result.Duration,
	)
	return result, nil
}

func (e *Engine) run(ctx context.Context) Status {
	// Phase 1: credential validation and mapping load. Nothing is
	// persisted if this fails.
	e.progress.Send(ProgressUpdate{Step: "preparing"})
	if _, err := e.remote.ValidateKey(ctx); err != nil {
		switch {
		case errors.Is(err, forgeapi.ErrMissingKey):
			slog.Error("no access key configured")
			return StatusMissingKey
		case errors.Is(err, forgeapi.ErrUnauthorized):
			slog.Error("access key rejected")
			return StatusUnauthorized
		default:
			slog.Error("key validation failed", "error", err)
			return StatusFailed
		}
	}

	e.mapping = NewMappingStore(e.store, e.opts.retries())
	if err := e.mapping.Load(ctx); err != nil {
		slog.Error("mapping load failed", "error", err)
		return StatusFailed
	}

	if e.isCancelled(ctx) {
		return StatusCancelled
	}

	// Phase 2: inventories. Remote first; its directory set drives the
	// local listing.
	e.inv = NewInventory()
	builder := NewInventoryBuilder(e.remote, e.store, e.progress)
	if err := builder.BuildRemote(ctx, e.inv); err != nil {
		slog.Error("remote inventory failed", "error", err)
		return StatusFailed
	}
	if err := builder.BuildLocal(ctx, e.inv); err != nil {
		slog.Error("local inventory failed", "error", err)
		return StatusFailed
	}

	if e.isCancelled(ctx) {
		return StatusCancelled
	}

	// Phase 3: directory reconciliation.
	e.dirs = NewDirProvisioner(e.store, e.inv, e.opts.retries())
	if status, ok := e.provisionDirectories(ctx, builder); !ok {
		return status
	}

	// Phase 4: per-asset sync.
	e.setStatus(StatusSyncing)
	e.syncAssets(ctx)

	// Phase 5: persist the mapping unconditionally so no progress is
	// ever lost, even on cancellation or an overall failure.
	e.setStatus(StatusPostSync)
	if err := e.mapping.Save(ctx); err != nil {
		slog.Error("mapping save failed", "error", err)
	}

	if e.isCancelled(ctx) {
		return StatusCancelled
	}

	// Phase 6: optional world migration.
	migrationClean := true
	if e.opts.UpdateWorldDb && e.migrator != nil {
		e.setStatus(StatusRewritingDb)
		clean, err := e.migrator.Migrate(ctx, e.inv.RemoteFiles)
		if err != nil {
			slog.Error("world migration failed", "error", err)
			migrationClean = false
		} else {
			migrationClean = clean
		}
		if e.isCancelled(ctx) {
			return StatusCancelled
		}
	}

	// Finalize.
	switch {
	case len(e.synced) == 0 && len(e.failed) > 0:
		return StatusFailed
	case len(e.failed) > 0 || !migrationClean:
		return StatusCompletedWithErrors
	default:
		return StatusComplete
	}
}

// provisionDirectories creates the missing remote directories, then
// re-lists the mirror and blacklists whatever still failed to
// materialize so dependent files are failed without network attempts.
func (e *Engine) provisionDirectories(ctx context.Context, builder *InventoryBuilder) (Status, bool) {
	missing := Missing(e.inv.RemoteDirSet(), e.inv.LocalDirs)
	if missing.Cardinality() == 0 {
		return "", true
	}

	// shortest paths first so parents are created before children
	dirs := missing.ToSlice()
	sort.Slice(dirs, func(i, j int) bool {
		if len(dirs[i]) != len(dirs[j]) {
			return len(dirs[i]) < len(dirs[j])
		}
		return dirs[i] < dirs[j]
	})

	created := 0
	for i, dir := range dirs {
		if e.isCancelled(ctx) {
			// checkpoint: keep whatever progress the mapping has
			if err := e.mapping.Save(ctx); err != nil {
				slog.Error("mapping save failed", "error", err)
			}
			return StatusCancelled, false
		}

		e.progress.Send(ProgressUpdate{
			Step:    "directories",
			Name:    dir,
			Current: i + 1,
			Total:   len(dirs),
			Type:    "directory",
		})

		n, err := e.dirs.Ensure(ctx, dir)
		created += n
		if err != nil && !errors.Is(err, ErrDirUncreatable) {
			slog.Warn("directory provisioning failed", "dir", dir, "error", err)
		}
	}
	slog.Info("directories provisioned", "requested", len(dirs), "created", created)

	// provisioning can partially fail; the authoritative answer is a
	// fresh listing
	fresh := NewInventory()
	fresh.RemoteDirs = e.inv.RemoteDirs
	if err := builder.BuildLocal(ctx, fresh); err != nil {
		slog.Error("local re-inventory failed", "error", err)
		return StatusFailed, false
	}
	e.inv.LocalDirs = fresh.LocalDirs
	e.inv.LocalFiles = fresh.LocalFiles

	stillMissing := Missing(e.inv.RemoteDirSet(), e.inv.LocalDirs)
	for dir := range stillMissing.Iter() {
		e.dirs.Blacklist(dir)
	}
	if stillMissing.Cardinality() > 0 {
		slog.Warn("directories could not be created", "count", stillMissing.Cardinality())
	}

	return "", true
}

// syncAssets runs the reconcile decision for every remote file. Each
// asset's outcome is independent; a failure (or panic) in one never
// aborts the others.
func (e *Engine) syncAssets(ctx context.Context) {
	names := make([]string, 0, len(e.inv.RemoteFiles))
	for name := range e.inv.RemoteFiles {
		names = append(names, name)
	}
	sort.Strings(names)

	var done atomic.Int64
	g := new(errgroup.Group)
	g.SetLimit(syncWorkers)

	for _, name := range names {
		if e.isCancelled(ctx) {
			break
		}
		name := name
		asset := e.inv.RemoteFiles[name]
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("asset sync panicked", "asset", name, "panic", r)
					e.addFailed(name, fmt.Sprintf("internal error: %v", r))
				}
			}()

			if e.isCancelled(ctx) {
				return nil
			}

			e.progress.Send(ProgressUpdate{
				Step:    "sync",
				Name:    name,
				Current: int(done.Add(1)),
				Total:   len(names),
				Type:    "file",
			})

			e.syncAsset(ctx, name, asset)
			return nil
		})
	}
	g.Wait()
}

func (e *Engine) addSynced(name string) {
	e.resMu.Lock()
	e.synced = append(e.synced, name)
	e.resMu.Unlock()
}

func (e *Engine) addSkipped(name string) {
	e.resMu.Lock()
	e.skipped = append(e.skipped, name)
	e.resMu.Unlock()
}

func (e *Engine) addFailed(name, reason string) {
	e.resMu.Lock()
	e.failed = append(e.failed, AssetFailure{Name: name, Reason: reason})
	e.resMu.Unlock()
}
