package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	gosync "sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/forgevtt/forgesync/internal/datastore"
)

// MappingFileName is the fixed key of the mapping document on the local
// mirror. It is the only state forgesync persists across runs.
const MappingFileName = "forge-assets-map.json"

// MappingStore holds the per-asset sync records and the hash→etags
// reverse index for one run, and reads/writes the durable mapping file
// by whole-value replacement.
type MappingStore struct {
	store   datastore.Store
	retries int

	// guards assets and etags; rows are mutated per-asset from the
	// engine's worker pool
	mu     gosync.RWMutex
	assets map[string]*MappingRow
	etags  map[string]mapset.Set[string]
}

func NewMappingStore(store datastore.Store, retries int) *MappingStore {
	return &MappingStore{
		store:   store,
		retries: retries,
		assets:  make(map[string]*MappingRow),
		etags:   make(map[string]mapset.Set[string]),
	}
}

// Load reads the mapping document from the mirror. A missing or empty
// file is a legitimate fresh start; transient read errors are retried up
// to the budget and then surfaced as fatal.
func (m *MappingStore) Load(ctx context.Context) error {
	var data []byte
	err := withRetry(ctx, m.retries, func() error {
		rc, err := m.store.Open(ctx, MappingFileName)
		if err != nil {
			return err
		}
		defer rc.Close()
		data, err = io.ReadAll(rc)
		return err
	})
	if err != nil {
		if errors.Is(err, datastore.ErrNotFound) {
			slog.Debug("mapping file not found, starting fresh")
			return nil
		}
		return fmt.Errorf("load mapping file: %w", err)
	}

	if len(bytes.TrimSpace(data)) == 0 {
		slog.Debug("mapping file empty, starting fresh")
		return nil
	}

	var doc MappingDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse mapping file: %w", err)
	}

	m.applyDocument(&doc)
	slog.Info("mapping file loaded", "assets", len(m.assets), "hashes", len(m.etags))
	return nil
}

func (m *MappingStore) applyDocument(doc *MappingDocument) {
	for _, row := range doc.Assets {
		if row == nil || row.ForgeName == "" {
			continue
		}
		m.assets[row.ForgeName] = row
	}
	for _, es := range doc.Etags {
		if es == nil || es.Hash == "" {
			continue
		}
		set, ok := m.etags[es.Hash]
		if !ok {
			set = mapset.NewSet[string]()
			m.etags[es.Hash] = set
		}
		for _, tag := range es.Etags {
			if tag != "" {
				set.Add(tag)
			}
		}
	}
}

// Row returns a copy of the mapping row for a remote asset name, or nil.
func (m *MappingStore) Row(forgeName string) *MappingRow {
	m.mu.RLock()
	defer m.mu.RUnlock()
	row, ok := m.assets[forgeName]
	if !ok {
		return nil
	}
	copied := *row
	return &copied
}

// Count returns the number of mapping rows.
func (m *MappingStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.assets)
}

// Record upserts the mapping row for an asset. FirstSyncDate of an
// existing row is preserved; LastSyncDate always moves forward.
func (m *MappingStore) Record(forgeName, forgeHash, localEtag, localHash string) *MappingRow {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	row, ok := m.assets[forgeName]
	if !ok {
		row = &MappingRow{
			ForgeName:     forgeName,
			FirstSyncDate: now,
		}
		m.assets[forgeName] = row
	}
	row.ForgeHash = forgeHash
	row.LocalEtag = localEtag
	row.LocalHash = localHash
	row.LastSyncDate = now

	m.addEtagLocked(forgeHash, localEtag)
	if localHash != "" && localHash != forgeHash {
		m.addEtagLocked(localHash, localEtag)
	}
	copied := *row
	return &copied
}

// AddEtag registers an observed etag for a content hash. The index only
// ever grows within a run.
func (m *MappingStore) AddEtag(hash, tag string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addEtagLocked(hash, tag)
}

func (m *MappingStore) addEtagLocked(hash, tag string) {
	if hash == "" || tag == "" {
		return
	}
	set, ok := m.etags[hash]
	if !ok {
		set = mapset.NewSet[string]()
		m.etags[hash] = set
	}
	set.Add(tag)
}

// HasEtag reports whether tag has already been verified to correspond to
// hash, sparing a local re-hash.
func (m *MappingStore) HasEtag(hash, tag string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	set, ok := m.etags[hash]
	return ok && set.Contains(tag)
}

// Serialize array-ifies both maps into the persisted document shape.
// Output is sorted so saving the same state twice produces identical
// bytes. Entries with empty keys are skipped rather than failing the
// whole serialization.
func (m *MappingStore) Serialize() *MappingDocument {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc := &MappingDocument{
		Assets: make([]*MappingRow, 0, len(m.assets)),
		Etags:  make([]*EtagSet, 0, len(m.etags)),
	}

	for name, row := range m.assets {
		if name == "" || row == nil {
			continue
		}
		doc.Assets = append(doc.Assets, row)
	}
	sort.Slice(doc.Assets, func(i, j int) bool {
		return doc.Assets[i].ForgeName < doc.Assets[j].ForgeName
	})

	for hash, set := range m.etags {
		if hash == "" || set == nil {
			continue
		}
		tags := set.ToSlice()
		sort.Strings(tags)
		doc.Etags = append(doc.Etags, &EtagSet{Hash: hash, Etags: tags})
	}
	sort.Slice(doc.Etags, func(i, j int) bool {
		return doc.Etags[i].Hash < doc.Etags[j].Hash
	})

	return doc
}

// Save writes the mapping document back to the mirror, replacing any
// previous version. The error is for logging; callers decide whether a
// persistence failure aborts the run (it never should mid-pipeline).
func (m *MappingStore) Save(ctx context.Context) error {
	doc := m.Serialize()
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("serialize mapping file: %w", err)
	}

	err = withRetry(ctx, m.retries, func() error {
		_, err := m.store.Upload(ctx, MappingFileName, bytes.NewReader(data))
		return err
	})
	if err != nil {
		return fmt.Errorf("save mapping file: %w", err)
	}

	slog.Debug("mapping file saved", "assets", len(doc.Assets), "hashes", len(doc.Etags))
	return nil
}
