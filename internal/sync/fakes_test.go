package sync

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"sort"
	gosync "sync"
	"testing"

	"github.com/forgevtt/forgesync/internal/datastore"
	"github.com/forgevtt/forgesync/internal/etag"
	"github.com/forgevtt/forgesync/internal/forgeapi"
)

// memStore is an in-memory datastore.Store for engine tests.
type memStore struct {
	mu    gosync.Mutex
	dirs  map[string]bool
	files map[string][]byte

	// per-path error overrides
	createDirErr map[string]error
	etagErr      map[string]error
	uploadErr    map[string]error
}

func newMemStore() *memStore {
	return &memStore{
		dirs:         map[string]bool{},
		files:        map[string][]byte{},
		createDirErr: map[string]error{},
		etagErr:      map[string]error{},
		uploadErr:    map[string]error{},
	}
}

func (s *memStore) put(name string, content []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[name] = append([]byte(nil), content...)
	for dir := dirOf(name); dir != ""; dir = dirOf(dir) {
		s.dirs[dir] = true
	}
}

func (s *memStore) content(name string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.files[name]
	return data, ok
}

func (s *memStore) Browse(ctx context.Context, dir string) (*datastore.Listing, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	dir = NormalizeDirPath(dir)
	if dir != "" && !s.dirs[dir] {
		return nil, fmt.Errorf("browse %s: %w", dir, datastore.ErrNotFound)
	}

	children := map[string]*datastore.Entry{}
	addChild := func(p string, isDir bool, size int64) {
		if dirOf(p) != dir {
			return
		}
		name := path.Base(p)
		if existing, ok := children[name]; ok {
			existing.IsDir = existing.IsDir || isDir
			return
		}
		children[name] = &datastore.Entry{Name: name, IsDir: isDir, Size: size}
	}
	for d := range s.dirs {
		addChild(d, true, 0)
	}
	for f, data := range s.files {
		addChild(f, false, int64(len(data)))
	}

	listing := &datastore.Listing{Path: dir}
	for _, e := range children {
		listing.Entries = append(listing.Entries, e)
	}
	sort.Slice(listing.Entries, func(i, j int) bool {
		return listing.Entries[i].Name < listing.Entries[j].Name
	})
	return listing, nil
}

func (s *memStore) CreateDir(ctx context.Context, dirPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	dirPath = NormalizeDirPath(dirPath)
	if err, ok := s.createDirErr[dirPath]; ok {
		return fmt.Errorf("create dir %s: %w", dirPath, err)
	}
	if s.dirs[dirPath] {
		return fmt.Errorf("create dir %s: %w", dirPath, datastore.ErrExists)
	}
	s.dirs[dirPath] = true
	return nil
}

func (s *memStore) Upload(ctx context.Context, filePath string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	if err, ok := s.uploadErr[filePath]; ok {
		s.mu.Unlock()
		return "", fmt.Errorf("upload %s: %w", filePath, err)
	}
	s.mu.Unlock()

	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.files[filePath] = data
	s.mu.Unlock()

	return etag.HashReader(bytes.NewReader(data))
}

func (s *memStore) Etag(ctx context.Context, filePath string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	if err, ok := s.etagErr[filePath]; ok {
		s.mu.Unlock()
		return "", fmt.Errorf("etag %s: %w", filePath, err)
	}
	data, ok := s.files[filePath]
	s.mu.Unlock()

	if !ok {
		return "", fmt.Errorf("etag %s: %w", filePath, datastore.ErrNotFound)
	}
	return etag.HashReader(bytes.NewReader(data))
}

func (s *memStore) Open(ctx context.Context, filePath string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, ok := s.content(filePath)
	if !ok {
		return nil, fmt.Errorf("open %s: %w", filePath, datastore.ErrNotFound)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// fakeRemote is an in-memory RemoteLibrary.
type fakeRemote struct {
	assets      []*forgeapi.Asset
	blobs       map[string][]byte
	keyErr      error
	downloadErr error
	onDownload  func()

	mu        gosync.Mutex
	downloads int
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{blobs: map[string][]byte{}}
}

// addFile registers a remote file whose URL and hash derive from the name.
func (r *fakeRemote) addFile(name string, content []byte) *forgeapi.Asset {
	url := "https://assets.test/" + name
	hash, _ := etag.HashReader(bytes.NewReader(content))
	asset := &forgeapi.Asset{Name: name, URL: url, Hash: hash}
	r.assets = append(r.assets, asset)
	r.blobs[url] = append([]byte(nil), content...)

	for dir := dirOf(name); dir != ""; dir = dirOf(dir) {
		r.addDirOnce(dir)
	}
	return asset
}

func (r *fakeRemote) addDirOnce(dir string) {
	name := dir + "/"
	for _, a := range r.assets {
		if a.Name == name {
			return
		}
	}
	r.assets = append(r.assets, &forgeapi.Asset{Name: name})
}

func (r *fakeRemote) addDir(dir string) {
	for d := NormalizeDirPath(dir); d != ""; d = dirOf(d) {
		r.addDirOnce(d)
	}
}

func (r *fakeRemote) ValidateKey(ctx context.Context) (*forgeapi.AccountInfo, error) {
	if r.keyErr != nil {
		return nil, r.keyErr
	}
	return &forgeapi.AccountInfo{}, nil
}

func (r *fakeRemote) ListAssets(ctx context.Context) ([]*forgeapi.Asset, error) {
	return r.assets, nil
}

func (r *fakeRemote) Download(ctx context.Context, url string) (io.ReadCloser, error) {
	r.mu.Lock()
	r.downloads++
	hook := r.onDownload
	r.mu.Unlock()

	if hook != nil {
		hook()
	}
	if r.downloadErr != nil {
		return nil, r.downloadErr
	}
	blob, ok := r.blobs[url]
	if !ok {
		return nil, fmt.Errorf("no blob for %s", url)
	}
	return io.NopCloser(bytes.NewReader(blob)), nil
}

func (r *fakeRemote) downloadCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.downloads
}

func mustHash(t *testing.T, content []byte) string {
	t.Helper()
	hash, err := etag.HashReader(bytes.NewReader(content))
	if err != nil {
		t.Fatalf("hash content: %v", err)
	}
	return hash
}

// failedNames flattens failures for assertions.
func failedNames(failures []AssetFailure) []string {
	names := make([]string, 0, len(failures))
	for _, f := range failures {
		names = append(names, f.Name)
	}
	sort.Strings(names)
	return names
}
