package migrate

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	gosync "sync"

	json "github.com/goccy/go-json"
	"golang.org/x/sync/errgroup"

	"github.com/forgevtt/forgesync/internal/forgeapi"
)

const walkerWorkers = 8

// Walker traverses the world's entity collections, rewrites every
// embedded asset reference through the resolver and writes back sparse
// diffs. Implements the sync engine's WorldMigrator.
type Walker struct {
	docs     DocumentStore
	resolver *Resolver
}

func NewWalker(docs DocumentStore, resolver *Resolver) *Walker {
	return &Walker{
		docs:     docs,
		resolver: resolver,
	}
}

// Report returns the unresolved items accumulated by the last Migrate.
func (w *Walker) Report() *Report {
	return w.resolver.Report()
}

// Migrate rewrites the whole world against the freshly synchronized
// remote file map. Per-entity and per-collection failures are logged
// and counted, never propagated; the only returned errors are fatal
// ones (a cancelled context, an unreadable world).
func (w *Walker) Migrate(ctx context.Context, files map[string]*forgeapi.Asset) (bool, error) {
	w.resolver.SetFiles(files)

	collections, err := w.docs.Collections(ctx)
	if err != nil {
		return false, fmt.Errorf("list collections: %w", err)
	}

	collectionErrors := 0
	for _, t := range collections {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		if err := w.migrateCollection(ctx, t); err != nil {
			slog.Error("collection migration failed", "type", t, "error", err)
			collectionErrors++
		}
	}

	w.migrateWorldMetadata(ctx)

	report := w.resolver.Report()
	if !report.Clean() {
		slog.Warn("world migration left unresolved references",
			"unreachable", len(report.Unreachable),
			"missingPackages", len(report.MissingPackages),
			"worldMetadataFailed", report.WorldMetadataFailed,
		)
	}
	return report.Clean() && collectionErrors == 0, nil
}

// migrateCollection migrates every entity of one type. Entities are
// independent, so they are processed concurrently; their diffs are
// committed in one batch afterwards.
func (w *Walker) migrateCollection(ctx context.Context, t EntityType) error {
	entities, err := w.docs.List(ctx, t)
	if err != nil {
		return fmt.Errorf("list %s: %w", t, err)
	}
	if len(entities) == 0 {
		return nil
	}

	var (
		mu    gosync.Mutex
		diffs []Diff
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(walkerWorkers)
	for _, entity := range entities {
		entity := entity
		g.Go(func() error {
			changes, err := w.migrateEntity(gctx, t, entity)
			if err != nil {
				// one malformed entity must not sink its siblings
				slog.Warn("entity migration failed", "type", t, "id", entity.ID(), "error", err)
				return nil
			}
			if len(changes) == 0 {
				return nil
			}
			mu.Lock()
			diffs = append(diffs, Diff{ID: entity.ID(), Changes: changes})
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if len(diffs) == 0 {
		return nil
	}

	slog.Info("updating collection", "type", t, "changed", len(diffs), "total", len(entities))
	return w.commit(ctx, t, diffs)
}

// commit tries the batch update first and falls back to one-at-a-time
// updates on failure, so one rejected entity doesn't block the valid
// ones. The original batch error is re-raised either way.
func (w *Walker) commit(ctx context.Context, t EntityType, diffs []Diff) error {
	batchErr := w.docs.UpdateBatch(ctx, t, diffs)
	if batchErr == nil {
		return nil
	}

	slog.Warn("batch update failed, retrying individually", "type", t, "error", batchErr)
	for _, diff := range diffs {
		if err := w.docs.Update(ctx, t, diff); err != nil {
			slog.Warn("entity update failed", "type", t, "id", diff.ID, "error", err)
		}
	}
	return fmt.Errorf("batch update %s: %w", t, batchErr)
}

// migrateEntity serializes a baseline, rewrites the entity's asset
// references (children fully resolved before the parent is considered
// done) and returns the sparse diff, nil when nothing changed.
func (w *Walker) migrateEntity(ctx context.Context, t EntityType, entity Entity) (map[string]any, error) {
	baseline, err := json.Marshal(entity)
	if err != nil {
		return nil, fmt.Errorf("serialize baseline: %w", err)
	}

	migrated, err := cloneEntity(entity)
	if err != nil {
		return nil, err
	}

	if err := w.walkEntity(ctx, t, migrated); err != nil {
		return nil, err
	}

	after, err := json.Marshal(migrated)
	if err != nil {
		return nil, fmt.Errorf("serialize migrated: %w", err)
	}
	if bytes.Equal(baseline, after) {
		return nil, nil
	}

	return sparseDiff(entity, migrated), nil
}

// walkEntity applies the type's field specs in place and recurses into
// embedded collections. Fields of one entity are applied sequentially
// (they may share nested maps); sibling children migrate concurrently.
func (w *Walker) walkEntity(ctx context.Context, t EntityType, entity Entity) error {
	spec, ok := entitySpecs[t]
	if !ok {
		return nil
	}

	for _, field := range spec.fields {
		if err := w.applyField(ctx, entity, field); err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, child := range spec.children {
		value, ok := entity[child.key]
		if !ok || value == nil {
			continue
		}
		child := child
		g.Go(func() error {
			return w.walkChild(gctx, child.typ, value)
		})
	}
	return g.Wait()
}

// walkChild handles both embedded lists and single embedded documents
// (a token's actor delta).
func (w *Walker) walkChild(ctx context.Context, t EntityType, value any) error {
	switch v := value.(type) {
	case []any:
		g, gctx := errgroup.WithContext(ctx)
		for _, item := range v {
			child, ok := item.(map[string]any)
			if !ok {
				continue
			}
			g.Go(func() error {
				return w.walkEntity(gctx, t, Entity(child))
			})
		}
		return g.Wait()
	case map[string]any:
		return w.walkEntity(ctx, t, Entity(v))
	default:
		return nil
	}
}

// applyField rewrites one declared field, resolving every embedded
// reference according to the field's kind.
func (w *Walker) applyField(ctx context.Context, entity Entity, field fieldSpec) error {
	return visitStrings(map[string]any(entity), field.path, func(value string) (string, error) {
		switch field.kind {
		case fieldHTML:
			return rewriteHTML(ctx, value, w.resolver.Resolve)
		case fieldMarkdown:
			return rewriteMarkdown(ctx, value, w.resolver.Resolve)
		default:
			return w.resolver.Resolve(ctx, value, ResolveFlags{
				IsAsset:          !field.decor,
				SupportsWildcard: field.wildcard,
			})
		}
	})
}

// migrateWorldMetadata rewrites the world's background image and
// description. A failure here is part of the completion criterion, not
// a fatal error.
func (w *Walker) migrateWorldMetadata(ctx context.Context) {
	meta, err := w.docs.World(ctx)
	if err != nil {
		slog.Warn("world metadata read failed", "error", err)
		w.resolver.setWorldMetadataFailed()
		return
	}
	if meta == nil {
		return
	}

	background, err := w.resolver.Resolve(ctx, meta.Background, ResolveFlags{IsAsset: true})
	if err != nil {
		w.resolver.setWorldMetadataFailed()
		return
	}
	description, err := rewriteHTML(ctx, meta.Description, w.resolver.Resolve)
	if err != nil {
		w.resolver.setWorldMetadataFailed()
		return
	}

	if background == meta.Background && description == meta.Description {
		return
	}

	meta.Background = background
	meta.Description = description
	if err := w.docs.UpdateWorld(ctx, meta); err != nil {
		slog.Warn("world metadata update failed", "error", err)
		w.resolver.setWorldMetadataFailed()
	}
}

// cloneEntity deep-copies an entity through its JSON form.
func cloneEntity(entity Entity) (Entity, error) {
	data, err := json.Marshal(entity)
	if err != nil {
		return nil, fmt.Errorf("clone entity: %w", err)
	}
	var copied Entity
	if err := json.Unmarshal(data, &copied); err != nil {
		return nil, fmt.Errorf("clone entity: %w", err)
	}
	return copied, nil
}

// visitStrings walks a dot path into nested maps, iterating array
// elements at "*" segments, and applies fn to every string found at
// the leaf.
func visitStrings(node map[string]any, path []string, fn func(string) (string, error)) error {
	if len(path) == 0 {
		return nil
	}

	key := path[0]
	value, ok := node[key]
	if !ok || value == nil {
		return nil
	}

	if len(path) == 1 {
		if s, isStr := value.(string); isStr {
			replaced, err := fn(s)
			if err != nil {
				return err
			}
			node[key] = replaced
		}
		return nil
	}

	rest := path[1:]
	if rest[0] == "*" {
		list, isList := value.([]any)
		if !isList {
			return nil
		}
		for _, item := range list {
			child, isMap := item.(map[string]any)
			if !isMap {
				continue
			}
			if err := visitStrings(child, rest[1:], fn); err != nil {
				return err
			}
		}
		return nil
	}

	child, isMap := value.(map[string]any)
	if !isMap {
		return nil
	}
	return visitStrings(child, rest, fn)
}
