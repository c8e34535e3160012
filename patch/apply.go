package patch

import (
	"fmt"
	"maps"
	"strings"

	"github.com/bytedance/sonic"
	jsonpatch "github.com/evanphx/json-patch/v5"
)

// ApplyOperations applies RFC6902 ops to a collected parameter map and returns the
// new map. The input map is never modified.
func ApplyOperations(current map[string]string, ops []Operation) (map[string]string, error) {
	if current == nil {
		current = map[string]string{}
	}
	if len(ops) == 0 {
		return maps.Clone(current), nil
	}

	currentJSON, err := sonic.Marshal(current)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal parameters: %w", err)
	}

	ops = FixOperations(current, ops)
	patchJSON, err := sonic.Marshal(ops)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal patch operations: %w", err)
	}

	p, err := jsonpatch.DecodePatch(patchJSON)
	if err != nil {
		return nil, fmt.Errorf("failed to decode patch: %w", err)
	}
	modifiedJSON, err := p.Apply(currentJSON)
	if err != nil {
		return nil, fmt.Errorf("failed to apply patch: %w", err)
	}

	result := map[string]string{}
	if err := sonic.Unmarshal(modifiedJSON, &result); err != nil {
		return nil, fmt.Errorf("patch produced non-string parameter values: %w", err)
	}
	return result, nil
}

// FixOperations turns replace of an absent key into add and drops remove of an absent key.
func FixOperations(current map[string]string, ops []Operation) []Operation {
	fixed := make([]Operation, 0, len(ops))
	for _, op := range ops {
		_, exists := current[KeyFromPath(op.Path)]
		switch op.Op {
		case OperationReplace:
			if !exists {
				op.Op = OperationAdd
			}
			fixed = append(fixed, op)
		case OperationRemove:
			if exists {
				fixed = append(fixed, op)
			}
		default:
			fixed = append(fixed, op)
		}
	}
	return fixed
}

// MergeParameters adds updates to current, restricted to allowedKeys when non-empty.
// Blank updates are ignored.
func MergeParameters(current, updates map[string]string, allowedKeys []string) (map[string]string, error) {
	ops := Diff(current, updates)
	if err := ValidateOperations(ops, allowedKeys); err != nil {
		return nil, err
	}
	return ApplyOperations(current, ops)
}

func PathForKey(key string) string {
	return "/" + strings.NewReplacer("~", "~0", "/", "~1").Replace(key)
}

func KeyFromPath(path string) string {
	return strings.NewReplacer("~1", "/", "~0", "~").Replace(strings.TrimPrefix(path, "/"))
}
