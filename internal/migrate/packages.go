package migrate

import (
	"os"
	"path/filepath"
)

// PackageKind is the bundle category of a bazaar asset.
type PackageKind string

const (
	PackageModule PackageKind = "modules"
	PackageSystem PackageKind = "systems"
	PackageWorld  PackageKind = "worlds"
)

// PackageIndex answers whether a bundle is installed locally and where
// its files live.
type PackageIndex interface {
	// Installed returns the bundle's root directory when the package is
	// present locally.
	Installed(kind PackageKind, name string) (string, bool)
}

// FSPackageIndex locates installed packages under a host data
// directory laid out as <root>/{modules,systems,worlds}/<name>.
type FSPackageIndex struct {
	root string
}

func NewFSPackageIndex(root string) *FSPackageIndex {
	return &FSPackageIndex{root: root}
}

func (p *FSPackageIndex) Installed(kind PackageKind, name string) (string, bool) {
	if name == "" {
		return "", false
	}
	dir := filepath.Join(p.root, string(kind), name)
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return "", false
	}
	return dir, true
}
