package patch

import (
	"slices"
	"strings"
)

// Diff returns the ops that bring current up to date with next. Keys missing from
// next are left alone and blank values in next are skipped, so a diff only adds
// information.
func Diff(current, next map[string]string) []Operation {
	keys := make([]string, 0, len(next))
	for k := range next {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	ops := make([]Operation, 0, len(keys))
	for _, k := range keys {
		v := next[k]
		if strings.TrimSpace(v) == "" {
			continue
		}
		old, exists := current[k]
		switch {
		case !exists:
			ops = append(ops, Operation{Op: OperationAdd, Path: PathForKey(k), Value: v})
		case old != v:
			ops = append(ops, Operation{Op: OperationReplace, Path: PathForKey(k), Value: v})
		}
	}
	return ops
}
