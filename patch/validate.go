package patch

import (
	"fmt"
	"strings"
)

// ValidateOperations checks that every op targets a single top-level allowed key.
func ValidateOperations(ops []Operation, allowedKeys []string) error {
	allowed := make(map[string]bool, len(allowedKeys))
	for _, k := range allowedKeys {
		allowed[k] = true
	}
	for i, op := range ops {
		switch op.Op {
		case OperationAdd, OperationReplace, OperationRemove:
		default:
			return fmt.Errorf("operation %d: unsupported op %q", i, op.Op)
		}
		if err := validatePath(op.Path, allowed); err != nil {
			return fmt.Errorf("operation %d: %w", i, err)
		}
		if op.Op != OperationRemove {
			if _, ok := op.Value.(string); !ok {
				return fmt.Errorf("operation %d: value of %q must be a string", i, op.Path)
			}
		}
	}
	return nil
}

func validatePath(path string, allowed map[string]bool) error {
	if !strings.HasPrefix(path, "/") || strings.Count(path, "/") != 1 || len(path) == 1 {
		return fmt.Errorf("path %q does not name a parameter", path)
	}
	if len(allowed) == 0 {
		return nil
	}
	if !allowed[KeyFromPath(path)] {
		return fmt.Errorf("path %q is not in the allowed keys set", path)
	}
	return nil
}
