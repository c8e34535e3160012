package agent

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"

	"github.com/tbxark/draftagent/errors"
	"github.com/tbxark/draftagent/marker"
	"github.com/tbxark/draftagent/patch"
	"github.com/tbxark/draftagent/types"
	"github.com/tbxark/draftagent/validate"
)

// PatchDocument applies named values to a document outside of any session.
func (c *Controller) PatchDocument(document string, values []types.NamedValue) *patch.Result {
	return patch.NewPatcher(patch.WithLogger(c.logger)).Patch(document, values)
}

// PatchReply is the outcome of editing the fields of a generated document.
type PatchReply struct {
	Session *types.DraftSession `json:"session"`
	Result  *patch.Result       `json:"result"`
}

// PatchSessionDocument replaces the values of field markers in a completed session's
// document. updates maps field names to new raw values. Values of known parameters
// are validated first and stored as collected parameters.
func (c *Controller) PatchSessionDocument(ctx context.Context, id string, updates map[string]string) (*PatchReply, error) {
	if len(updates) == 0 {
		return nil, errors.NewInvalidRequest("no field updates")
	}
	unlock := c.lock(id)
	defer unlock()

	s, ok, err := c.store.Read(ctx, id)
	if err != nil {
		return nil, errors.NewInternal(fmt.Errorf("read session: %w", err))
	}
	if !ok {
		return nil, errors.NewSessionNotFound(id)
	}
	if s.Status != types.StatusComplete || s.GeneratedDocument == nil {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("session %s has no generated document", id))
	}
	s = s.Clone()

	markers := make(map[string]int, len(s.FieldMarkers))
	for i, m := range s.FieldMarkers {
		markers[m.FieldName] = i
	}
	fieldTypes := map[string]types.ParameterType{}
	normalized := map[string]string{}
	for _, name := range slices.Sorted(maps.Keys(updates)) {
		if _, ok := markers[name]; !ok {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("unknown field %q", name))
		}
		value := updates[name]
		if d, ok := s.Descriptor(name); ok {
			res := validate.Check(d, value)
			if !res.Valid {
				return nil, errors.NewParameterValidationFailed(name, res.Error)
			}
			value = res.Value
			fieldTypes[name] = d.Type
		}
		normalized[name] = value
	}

	selected := make([]types.FieldMarker, 0, len(normalized))
	for _, m := range s.FieldMarkers {
		if _, ok := normalized[m.FieldName]; ok {
			selected = append(selected, m)
		}
	}
	values := marker.NamedValues(selected, fieldTypes)
	for i := range values {
		values[i].UserInput = normalized[values[i].ID]
	}

	result := c.PatchDocument(*s.GeneratedDocument, values)
	updated := result.UpdatedDocument
	s.GeneratedDocument = &updated

	touched := map[string]bool{}
	for _, op := range result.Applied {
		touched[op.ValueID] = true
	}
	occurrences := trackOccurrences(s.FieldMarkers, touched, result.Applied, updated)
	for i, m := range s.FieldMarkers {
		if touched[m.FieldName] {
			m.CurrentValue = patch.FormatValue(fieldTypes[m.FieldName], normalized[m.FieldName])
			if _, ok := s.Descriptor(m.FieldName); ok {
				s.CollectedParameters[m.FieldName] = normalized[m.FieldName]
			}
		}
		m.Occurrences = occurrences[m.FieldName]
		s.FieldMarkers[i] = m
	}
	if err := c.save(ctx, s); err != nil {
		return nil, err
	}
	c.logger.Info("Session document patched", "session", id, "applied", len(result.Applied), "unresolved", len(result.UnresolvedOccurrences))
	return &PatchReply{Session: s.Clone(), Result: result}, nil
}

// span is a tracked occurrence while applied ops are replayed over its position.
type span struct {
	field string
	occ   types.Occurrence
	live  bool
}

// trackOccurrences carries the recorded occurrence positions through applied, in the
// order the ops were spliced. Untouched fields keep their spans shifted by the size
// change of every op before them; touched fields get the spans of their new text.
// A recorded span an op overlaps is dropped.
func trackOccurrences(markers []types.FieldMarker, touched map[string]bool, applied []types.ReplacementOp, document string) map[string][]types.Occurrence {
	var spans []*span
	for _, m := range markers {
		if touched[m.FieldName] {
			continue
		}
		for _, o := range m.Occurrences {
			if o.Position != nil {
				p := *o.Position
				o.Position = &p
			}
			spans = append(spans, &span{field: m.FieldName, occ: o, live: true})
		}
	}
	for _, op := range applied {
		delta := len(op.NewText) - (op.End - op.Start)
		for _, sp := range spans {
			pos := sp.occ.Position
			if !sp.live || pos == nil {
				continue
			}
			switch {
			case pos.Start >= op.End:
				pos.Start += delta
				pos.End += delta
			case pos.End <= op.Start:
			default:
				sp.live = false
			}
		}
		spans = append(spans, &span{
			field: op.ValueID,
			occ: types.Occurrence{
				Text:     op.NewText,
				Position: &types.Position{Start: op.Start, End: op.Start + len(op.NewText)},
			},
			live: true,
		})
	}

	out := make(map[string][]types.Occurrence, len(markers))
	for _, sp := range spans {
		if !sp.live {
			continue
		}
		if pos := sp.occ.Position; pos != nil {
			sp.occ.ContextSnippet = marker.Snippet(document, pos.Start, pos.End)
		}
		out[sp.field] = append(out[sp.field], sp.occ)
	}
	for _, occ := range out {
		sort.SliceStable(occ, func(i, j int) bool {
			a, b := occ[i].Position, occ[j].Position
			return a != nil && (b == nil || a.Start < b.Start)
		})
	}
	return out
}
