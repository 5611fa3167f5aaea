package sync

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/forgevtt/forgesync/internal/etag"
	"github.com/forgevtt/forgesync/internal/forgeapi"
)

// syncAsset runs the decision procedure for one remote file and records
// its outcome. Expected divergences (conflicts, blacklisted directories,
// untracked local files) are outcomes, not errors.
func (e *Engine) syncAsset(ctx context.Context, name string, asset *forgeapi.Asset) {
	if !e.inv.LocalFiles.Contains(name) {
		// no local counterpart. If the target directory never
		// materialized there is no point attempting network I/O.
		if dir := dirOf(name); dir != "" && e.dirs.Blacklisted(dir) {
			e.addFailed(name, "target directory could not be created")
			return
		}
		e.transfer(ctx, name, asset)
		return
	}

	e.reconcileExisting(ctx, name, asset)
}

// reconcileExisting decides what to do about an asset that already has a
// local namesake.
func (e *Engine) reconcileExisting(ctx context.Context, name string, asset *forgeapi.Asset) {
	row := e.mapping.Row(name)

	if row != nil && !e.opts.ForceLocalRehash {
		if row.ForgeHash == asset.Hash {
			// remote unchanged since last sync
			e.addSynced(name)
			return
		}

		localTag, err := e.localEtag(ctx, name)
		if err != nil {
			e.addFailed(name, fmt.Sprintf("query local etag: %v", err))
			return
		}

		if e.verifyEquivalent(ctx, name, asset.Hash, localTag) {
			e.mapping.Record(name, asset.Hash, localTag, asset.Hash)
			e.addSynced(name)
			return
		}

		if !e.opts.OverwriteLocalMismatches && localTag != row.LocalEtag {
			// the file was edited locally since last sync and the remote
			// changed too; never silently clobber either side
			slog.Warn("conflict: local file modified since last sync", "asset", name)
			e.addFailed(name, "conflict: local and remote both changed")
			return
		}

		e.transfer(ctx, name, asset)
		return
	}

	if row == nil && !e.opts.ForceLocalRehash && !e.opts.OverwriteLocalMismatches {
		// first time seeing this local file; without an explicit opt-in
		// we leave it untouched
		e.addSkipped(name)
		return
	}

	// no prior mapping but rehash/overwrite requested, or force-rehash
	// over an existing row: verify by content
	localTag, err := e.localEtag(ctx, name)
	if err != nil {
		e.addFailed(name, fmt.Sprintf("query local etag: %v", err))
		return
	}

	if e.verifyEquivalent(ctx, name, asset.Hash, localTag) {
		e.mapping.Record(name, asset.Hash, localTag, asset.Hash)
		e.addSynced(name)
		return
	}

	if e.opts.OverwriteLocalMismatches || (row != nil && localTag == row.LocalEtag) {
		e.transfer(ctx, name, asset)
		return
	}

	slog.Warn("conflict: local file does not match remote", "asset", name)
	e.addFailed(name, "conflict: local content differs from remote")
}

// verifyEquivalent reports whether the local file already carries the
// remote content. Cheap checks first: a known hash→etag association or
// an etag that literally equals the remote hash; only then a full local
// content hash.
func (e *Engine) verifyEquivalent(ctx context.Context, name, remoteHash, localTag string) bool {
	if localTag == "" || remoteHash == "" {
		return false
	}
	if localTag == remoteHash {
		return true
	}
	if e.mapping.HasEtag(remoteHash, localTag) {
		return true
	}

	localHash, err := e.localContentHash(ctx, name)
	if err != nil {
		slog.Debug("local content hash failed", "asset", name, "error", err)
		return false
	}
	if localHash == remoteHash {
		e.mapping.AddEtag(remoteHash, localTag)
		return true
	}
	return false
}

// transfer performs a full sync: download the remote blob, upload it to
// the mirror, record the fresh mapping row.
func (e *Engine) transfer(ctx context.Context, name string, asset *forgeapi.Asset) {
	var localTag string
	err := withRetry(ctx, e.opts.retries(), func() error {
		rc, err := e.remote.Download(ctx, asset.URL)
		if err != nil {
			return err
		}
		defer rc.Close()

		localTag, err = e.store.Upload(ctx, name, rc)
		return err
	})
	if err != nil {
		e.addFailed(name, fmt.Sprintf("transfer: %v", err))
		return
	}

	e.mapping.Record(name, asset.Hash, localTag, localTag)
	e.addSynced(name)
	slog.Debug("asset synced", "asset", name, "etag", localTag)
}

func (e *Engine) localEtag(ctx context.Context, name string) (string, error) {
	var tag string
	err := withRetry(ctx, e.opts.retries(), func() error {
		var err error
		tag, err = e.store.Etag(ctx, name)
		return err
	})
	return tag, err
}

func (e *Engine) localContentHash(ctx context.Context, name string) (string, error) {
	var hash string
	err := withRetry(ctx, e.opts.retries(), func() error {
		rc, err := e.store.Open(ctx, name)
		if err != nil {
			return err
		}
		defer rc.Close()
		hash, err = etag.HashReader(rc)
		return err
	})
	return hash, err
}
