package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/forgevtt/forgesync/internal/datastore"
)

// ErrDirUncreatable marks a directory whose name can never exist on the
// local mirror. Files below it are failed without a network attempt.
var ErrDirUncreatable = errors.New("sync: directory cannot be created")

// DirProvisioner creates missing mirror directories segment by segment,
// tolerating creation races and permanently blacklisting segments whose
// names the local filesystem refuses.
type DirProvisioner struct {
	store     datastore.Store
	inv       *Inventory
	blacklist mapset.Set[string]
	retries   int
}

func NewDirProvisioner(store datastore.Store, inv *Inventory, retries int) *DirProvisioner {
	return &DirProvisioner{
		store:     store,
		inv:       inv,
		blacklist: mapset.NewSet[string](),
		retries:   retries,
	}
}

// Blacklisted reports whether p or any of its ancestors is known
// uncreatable.
func (d *DirProvisioner) Blacklisted(p string) bool {
	p = NormalizeDirPath(p)
	for p != "" {
		if d.blacklist.Contains(p) {
			return true
		}
		i := strings.LastIndexByte(p, '/')
		if i < 0 {
			return false
		}
		p = p[:i]
	}
	return false
}

// Blacklist marks a directory (and implicitly everything below it) as
// permanently unsyncable for this run.
func (d *DirProvisioner) Blacklist(p string) {
	d.blacklist.Add(NormalizeDirPath(p))
}

// Ensure walks the segments of dirPath left to right and creates each
// missing one. Returns how many segments were newly created; the error
// reports why the walk stopped early, if it did.
func (d *DirProvisioner) Ensure(ctx context.Context, dirPath string) (int, error) {
	created := 0
	current := ""

	for _, segment := range strings.Split(NormalizeDirPath(dirPath), "/") {
		if segment == "" {
			continue
		}
		if current == "" {
			current = segment
		} else {
			current = current + "/" + segment
		}

		if d.inv.LocalDirs.Contains(current) {
			continue
		}
		if d.blacklist.Contains(current) {
			return created, fmt.Errorf("%q: %w", current, ErrDirUncreatable)
		}

		err := withRetry(ctx, d.retries, func() error {
			return d.store.CreateDir(ctx, current)
		})
		switch {
		case err == nil:
			created++
			d.inv.LocalDirs.Add(current)
		case errors.Is(err, datastore.ErrExists):
			// lost a race with another run or a case-folding filesystem;
			// the directory is there, which is all that matters
			d.inv.LocalDirs.Add(current)
		case errors.Is(err, datastore.ErrInvalidName):
			d.blacklist.Add(current)
			slog.Warn("directory name is not creatable locally, skipping subtree", "dir", current)
			return created, fmt.Errorf("%q: %w", current, ErrDirUncreatable)
		default:
			return created, fmt.Errorf("create %q: %w", current, err)
		}
	}

	return created, nil
}
