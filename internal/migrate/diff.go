package migrate

import (
	"reflect"
)

// sparseDiff computes the minimal set of changed fields between a
// baseline entity and its migrated version, keyed by dot-separated
// path. Maps are descended into; arrays and scalars are replaced
// wholesale when they differ. Only fields present in the updated
// entity are considered: migration never deletes fields.
func sparseDiff(base, updated Entity) map[string]any {
	changes := make(map[string]any)
	diffInto(changes, "", map[string]any(base), map[string]any(updated))
	if len(changes) == 0 {
		return nil
	}
	return changes
}

func diffInto(changes map[string]any, prefix string, base, updated map[string]any) {
	for key, newVal := range updated {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}

		oldVal, existed := base[key]
		if !existed {
			changes[path] = newVal
			continue
		}

		newMap, newIsMap := newVal.(map[string]any)
		oldMap, oldIsMap := oldVal.(map[string]any)
		if newIsMap && oldIsMap {
			diffInto(changes, path, oldMap, newMap)
			continue
		}

		if !reflect.DeepEqual(oldVal, newVal) {
			changes[path] = newVal
		}
	}
}
