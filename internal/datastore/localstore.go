package datastore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/forgevtt/forgesync/internal/etag"
	"github.com/forgevtt/forgesync/internal/utils"
)

const etagCacheSize = 4096

// reserved device names that no amount of escaping makes creatable on
// Windows volumes; rejected everywhere for a portable mirror
var reservedNames = map[string]struct{}{
	"con": {}, "prn": {}, "aux": {}, "nul": {},
	"com1": {}, "com2": {}, "com3": {}, "com4": {}, "com5": {},
	"com6": {}, "com7": {}, "com8": {}, "com9": {},
	"lpt1": {}, "lpt2": {}, "lpt3": {}, "lpt4": {}, "lpt5": {},
	"lpt6": {}, "lpt7": {}, "lpt8": {}, "lpt9": {},
}

// LocalStore serves a directory on the local filesystem as a Store.
// Etags are cached on (size, mtime) so repeated runs don't re-hash an
// unchanged mirror.
type LocalStore struct {
	root      string
	etagCache *lru.Cache[string, string]
}

func NewLocalStore(root string) (*LocalStore, error) {
	absRoot, err := utils.ResolvePath(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}
	if err := utils.EnsureDir(absRoot); err != nil {
		return nil, fmt.Errorf("ensure root: %w", err)
	}

	cache, err := lru.New[string, string](etagCacheSize)
	if err != nil {
		return nil, err
	}

	return &LocalStore{
		root:      absRoot,
		etagCache: cache,
	}, nil
}

// Root returns the absolute mirror root directory.
func (s *LocalStore) Root() string {
	return s.root
}

func (s *LocalStore) abs(rel string) string {
	return filepath.Join(s.root, filepath.FromSlash(path.Clean("/"+rel)))
}

func (s *LocalStore) Browse(ctx context.Context, dir string) (*Listing, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(s.abs(dir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("browse %s: %w", dir, ErrNotFound)
		}
		return nil, fmt.Errorf("browse %s: %w", dir, err)
	}

	listing := &Listing{Path: dir}
	for _, e := range entries {
		entry := &Entry{Name: e.Name(), IsDir: e.IsDir()}
		if info, err := e.Info(); err == nil {
			entry.Size = info.Size()
		}
		listing.Entries = append(listing.Entries, entry)
	}
	return listing, nil
}

func (s *LocalStore) CreateDir(ctx context.Context, dirPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	name := path.Base(path.Clean("/" + dirPath))
	if !creatableName(name) {
		return fmt.Errorf("create dir %s: %w", dirPath, ErrInvalidName)
	}

	abs := s.abs(dirPath)
	if info, err := os.Stat(abs); err == nil {
		if info.IsDir() {
			return fmt.Errorf("create dir %s: %w", dirPath, ErrExists)
		}
		// a file is squatting on the name
		return fmt.Errorf("create dir %s: %w", dirPath, ErrInvalidName)
	}

	if err := os.Mkdir(abs, 0o755); err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("create dir %s: %w", dirPath, ErrExists)
		}
		return fmt.Errorf("create dir %s: %w", dirPath, err)
	}
	return nil
}

func (s *LocalStore) Upload(ctx context.Context, filePath string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	abs := s.abs(filePath)

	// write to a temp file in the same directory so the final rename is
	// atomic and a crashed upload never leaves a half-written asset
	tmp, err := os.CreateTemp(filepath.Dir(abs), ".forgesync.tmp.*")
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", filePath, err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if _, err := io.Copy(tmp, r); err != nil {
		return "", fmt.Errorf("upload %s: %w", filePath, err)
	}
	if err := tmp.Sync(); err != nil {
		return "", fmt.Errorf("upload %s: sync: %w", filePath, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("upload %s: close: %w", filePath, err)
	}
	if err := os.Rename(tmpPath, abs); err != nil {
		return "", fmt.Errorf("upload %s: rename: %w", filePath, err)
	}
	success = true

	tag, err := etag.HashFile(abs)
	if err != nil {
		return "", fmt.Errorf("upload %s: etag: %w", filePath, err)
	}
	s.cacheEtag(abs, tag)
	return tag, nil
}

func (s *LocalStore) Etag(ctx context.Context, filePath string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	abs := s.abs(filePath)
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("etag %s: %w", filePath, ErrNotFound)
		}
		return "", fmt.Errorf("etag %s: %w", filePath, err)
	}

	key := cacheKey(abs, info.Size(), info.ModTime().UnixNano())
	if tag, ok := s.etagCache.Get(key); ok {
		return tag, nil
	}

	tag, err := etag.HashFile(abs)
	if err != nil {
		return "", fmt.Errorf("etag %s: %w", filePath, err)
	}
	s.etagCache.Add(key, tag)
	return tag, nil
}

func (s *LocalStore) Open(ctx context.Context, filePath string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(s.abs(filePath))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("open %s: %w", filePath, ErrNotFound)
		}
		return nil, fmt.Errorf("open %s: %w", filePath, err)
	}
	return f, nil
}

func (s *LocalStore) cacheEtag(abs string, tag string) {
	if info, err := os.Stat(abs); err == nil {
		s.etagCache.Add(cacheKey(abs, info.Size(), info.ModTime().UnixNano()), tag)
	}
}

func cacheKey(abs string, size, mtime int64) string {
	return fmt.Sprintf("%s|%d|%d", abs, size, mtime)
}

// creatableName reports whether a single path segment can exist on every
// filesystem the mirror may live on.
func creatableName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	if strings.HasSuffix(name, ".") || strings.HasSuffix(name, " ") {
		return false
	}
	base := strings.ToLower(name)
	if i := strings.IndexByte(base, '.'); i >= 0 {
		base = base[:i]
	}
	if _, ok := reservedNames[base]; ok {
		return false
	}
	for _, r := range name {
		if r < 0x20 {
			return false
		}
		switch r {
		case '<', '>', ':', '"', '|', '?', '*', '\\':
			return false
		}
	}
	return true
}
