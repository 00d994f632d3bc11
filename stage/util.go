package stage

import "sort"

// sortedKeys walks m in canonical sorted order for the same determinism
// reason filter.Parse does (invariant I4 / testable property P3): a
// stage payload's field list is a Go map, and output SQL must be
// byte-identical for the same input regardless of Go's randomized map
// iteration.
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
