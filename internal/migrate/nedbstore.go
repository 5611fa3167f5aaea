package migrate

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	gosync "sync"

	json "github.com/goccy/go-json"
)

// collectionFiles maps the top-level entity collections to their
// newline-delimited JSON database files under <world>/data/. Embedded
// types (tokens, tiles, pages...) live inside these and are reached
// through the walker's child specs.
var collectionFiles = map[EntityType]string{
	TypeActor:        "actors.db",
	TypeCards:        "cards.db",
	TypeChatMessage:  "chat.db",
	TypeItem:         "items.db",
	TypeJournalEntry: "journal.db",
	TypeMacro:        "macros.db",
	TypePlaylist:     "playlists.db",
	TypeRollTable:    "tables.db",
	TypeScene:        "scenes.db",
	TypeUser:         "users.db",
}

const worldManifest = "world.json"

// NeDBStore is a DocumentStore over a world directory holding one
// newline-delimited JSON file per collection plus a world manifest.
// Updates rewrite the whole collection file through a temp-and-rename,
// so a torn write never leaves a half-updated database behind.
type NeDBStore struct {
	worldRoot string

	mu gosync.Mutex
}

func NewNeDBStore(worldRoot string) *NeDBStore {
	return &NeDBStore{worldRoot: worldRoot}
}

func (s *NeDBStore) collectionPath(t EntityType) (string, error) {
	file, ok := collectionFiles[t]
	if !ok {
		return "", fmt.Errorf("no collection file for entity type %q", t)
	}
	return filepath.Join(s.worldRoot, "data", file), nil
}

// Collections returns the entity types whose database files exist in
// this world.
func (s *NeDBStore) Collections(ctx context.Context) ([]EntityType, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var present []EntityType
	for _, t := range []EntityType{
		TypeActor, TypeCards, TypeChatMessage, TypeItem, TypeJournalEntry,
		TypeMacro, TypePlaylist, TypeRollTable, TypeScene, TypeUser,
	} {
		path, _ := s.collectionPath(t)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			present = append(present, t)
		}
	}
	return present, nil
}

func (s *NeDBStore) List(ctx context.Context, t EntityType) ([]Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := s.collectionPath(t)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return readCollection(path)
}

func readCollection(path string) ([]Entity, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open collection: %w", err)
	}
	defer f.Close()

	var entities []Entity
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var entity Entity
		if err := json.Unmarshal(line, &entity); err != nil {
			return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
		}
		entities = append(entities, entity)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	return entities, nil
}

// UpdateBatch applies all diffs to the collection and rewrites its
// file in one atomic rename. An unknown id rejects the whole batch.
func (s *NeDBStore) UpdateBatch(ctx context.Context, t EntityType, diffs []Diff) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.collectionPath(t)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entities, err := readCollection(path)
	if err != nil {
		return err
	}

	byID := make(map[string]Entity, len(entities))
	for _, entity := range entities {
		byID[entity.ID()] = entity
	}

	for _, diff := range diffs {
		entity, ok := byID[diff.ID]
		if !ok {
			return fmt.Errorf("update %s: no entity with id %q", t, diff.ID)
		}
		for fieldPath, value := range diff.Changes {
			setPath(entity, fieldPath, value)
		}
	}

	return writeCollection(path, entities)
}

func (s *NeDBStore) Update(ctx context.Context, t EntityType, diff Diff) error {
	return s.UpdateBatch(ctx, t, []Diff{diff})
}

func writeCollection(path string, entities []Entity) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".forgesync-*.db")
	if err != nil {
		return fmt.Errorf("write collection: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	for _, entity := range entities {
		line, err := json.Marshal(entity)
		if err != nil {
			tmp.Close()
			return fmt.Errorf("serialize entity: %w", err)
		}
		w.Write(line)
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("write collection: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("write collection: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write collection: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

// setPath writes value at a dot-separated path, creating intermediate
// maps as needed.
func setPath(entity Entity, fieldPath string, value any) {
	segments := strings.Split(fieldPath, ".")
	node := map[string]any(entity)
	for _, key := range segments[:len(segments)-1] {
		child, ok := node[key].(map[string]any)
		if !ok {
			child = make(map[string]any)
			node[key] = child
		}
		node = child
	}
	node[segments[len(segments)-1]] = value
}

// World reads the background and description out of the world
// manifest. A world without a manifest has no metadata to migrate.
func (s *NeDBStore) World(ctx context.Context) (*WorldMetadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	manifest, err := s.readManifest()
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	meta := &WorldMetadata{}
	meta.Background, _ = manifest["background"].(string)
	meta.Description, _ = manifest["description"].(string)
	return meta, nil
}

// UpdateWorld rewrites the manifest's background and description while
// preserving every other manifest field.
func (s *NeDBStore) UpdateWorld(ctx context.Context, meta *WorldMetadata) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	manifest, err := s.readManifest()
	if err != nil {
		return err
	}
	manifest["background"] = meta.Background
	manifest["description"] = meta.Description

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("serialize manifest: %w", err)
	}

	path := filepath.Join(s.worldRoot, worldManifest)
	tmp, err := os.CreateTemp(s.worldRoot, ".forgesync-*.json")
	if err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

func (s *NeDBStore) readManifest() (map[string]any, error) {
	data, err := os.ReadFile(filepath.Join(s.worldRoot, worldManifest))
	if err != nil {
		return nil, err
	}
	var manifest map[string]any
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("parse %s: %w", worldManifest, err)
	}
	return manifest, nil
}
