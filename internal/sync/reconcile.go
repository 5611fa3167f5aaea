package sync

import (
	mapset "github.com/deckarep/golang-set/v2"
)

// Missing returns every key present in source but absent from target.
// Nil inputs yield an empty set.
func Missing(source, target mapset.Set[string]) mapset.Set[string] {
	if source == nil {
		return mapset.NewSet[string]()
	}
	if target == nil {
		return source.Clone()
	}
	return source.Difference(target)
}
