package patch

import (
	"github.com/tbxark/draftagent/errors"
	"github.com/tbxark/draftagent/types"
)

// Operation is one RFC6902 operation over the collected parameter map.
type Operation struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	Value any    `json:"value,omitempty"`
}

const (
	OperationAdd     = "add"
	OperationReplace = "replace"
	OperationRemove  = "remove"
)

// Resolution strategies recorded on applied replacement ops.
const (
	StrategyExact    = "exact"
	StrategyWindow   = "window"
	StrategyGlobal   = "global"
	StrategyFallback = "fallback"
)

// Reasons an occurrence could not be patched.
const (
	ReasonNotFound   = "not_found"
	ReasonEmptyText  = "empty_text"
	ReasonEmptyValue = "empty_value"
	ReasonShifted    = "shifted"
)

// Unresolved is an occurrence that was left untouched.
type Unresolved struct {
	ValueID    string           `json:"value_id"`
	Label      string           `json:"label"`
	Occurrence types.Occurrence `json:"occurrence"`
	Reason     string           `json:"reason"`
}

func (u Unresolved) Err() *errors.DraftError {
	return errors.NewOccurrenceUnresolved(u.Label, u.Occurrence.Text, u.Reason)
}

type Result struct {
	UpdatedDocument       string                `json:"updated_document"`
	Applied               []types.ReplacementOp `json:"applied"`
	UnresolvedOccurrences []Unresolved          `json:"unresolved_occurrences"`
}

// Errors returns one OCCURRENCE_UNRESOLVED error per unresolved occurrence.
func (r *Result) Errors() []error {
	out := make([]error, 0, len(r.UnresolvedOccurrences))
	for _, u := range r.UnresolvedOccurrences {
		out = append(out, u.Err())
	}
	return out
}
