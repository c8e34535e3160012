package patch

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/tbxark/draftagent/types"
)

// Window is how far around a recorded position the second tier searches, in bytes.
const Window = 100

// Patcher substitutes named values into a document snapshot. One Patcher may be
// shared; callers must serialize patches against the same document themselves.
type Patcher struct {
	logger *slog.Logger
}

type Option func(*Patcher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Patcher) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func NewPatcher(opts ...Option) *Patcher {
	p := &Patcher{logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Patch applies values to document with the default patcher.
func Patch(document string, values []types.NamedValue) *Result {
	return NewPatcher().Patch(document, values)
}

// planned ties a replacement op back to the occurrence it came from.
type planned struct {
	op    types.ReplacementOp
	label string
	occ   types.Occurrence
}

// Patch resolves every occurrence, then splices the accepted ops in descending start
// order. Bytes outside accepted spans are never touched.
func (p *Patcher) Patch(document string, values []types.NamedValue) *Result {
	ops, unresolved := p.plan(document, values)
	updated, applied, failed := p.apply(document, ops)
	for _, f := range failed {
		unresolved = append(unresolved, Unresolved{
			ValueID:    f.op.ValueID,
			Label:      f.label,
			Occurrence: f.occ,
			Reason:     ReasonShifted,
		})
	}
	for _, u := range unresolved {
		p.logger.Debug("Occurrence unresolved", "value", u.ValueID, "text", u.Occurrence.Text, "reason", u.Reason)
	}
	if len(unresolved) > 0 {
		p.logger.Info("Patched document with unresolved occurrences", "applied", len(applied), "unresolved", len(unresolved))
	}
	if applied == nil {
		applied = []types.ReplacementOp{}
	}
	if unresolved == nil {
		unresolved = []Unresolved{}
	}
	return &Result{UpdatedDocument: updated, Applied: applied, UnresolvedOccurrences: unresolved}
}

// Resolve locates one occurrence in document: exact recorded position, then the first
// match within Window bytes of it, then the first match anywhere.
func Resolve(document string, occ types.Occurrence) (types.Position, string, bool) {
	text := occ.Text
	if text == "" {
		return types.Position{}, "", false
	}
	if pos := occ.Position; pos != nil && pos.Start >= 0 && pos.End >= pos.Start {
		if pos.End <= len(document) && document[pos.Start:pos.End] == text {
			return *pos, StrategyExact, true
		}
		lo := min(max(0, pos.Start-Window), len(document))
		hi := min(len(document), pos.End+Window)
		if lo < hi {
			if idx := strings.Index(document[lo:hi], text); idx >= 0 {
				return types.Position{Start: lo + idx, End: lo + idx + len(text)}, StrategyWindow, true
			}
		}
	}
	if idx := strings.Index(document, text); idx >= 0 {
		return types.Position{Start: idx, End: idx + len(text)}, StrategyGlobal, true
	}
	return types.Position{}, "", false
}

// Plan computes the replacement ops for values without applying them.
func Plan(document string, values []types.NamedValue) ([]types.ReplacementOp, []Unresolved) {
	ops, unresolved := NewPatcher().plan(document, values)
	out := make([]types.ReplacementOp, len(ops))
	for i, o := range ops {
		out[i] = o.op
	}
	return out, unresolved
}

func (p *Patcher) plan(document string, values []types.NamedValue) ([]planned, []Unresolved) {
	var (
		ops        []planned
		unresolved []Unresolved
	)
	for _, v := range values {
		blank := strings.TrimSpace(v.UserInput) == ""
		newText := FormatValue(v.FieldType, v.UserInput)
		for _, occ := range v.Occurrences {
			reason := ""
			switch {
			case blank:
				reason = ReasonEmptyValue
			case occ.Text == "":
				reason = ReasonEmptyText
			}
			if reason == "" {
				pos, strategy, ok := Resolve(document, occ)
				if ok {
					ops = append(ops, planned{
						op: types.ReplacementOp{
							Start:        pos.Start,
							End:          pos.End,
							OriginalText: document[pos.Start:pos.End],
							NewText:      newText,
							ValueID:      v.ID,
							Strategy:     strategy,
						},
						label: v.Label,
						occ:   occ,
					})
					continue
				}
				reason = ReasonNotFound
			}
			unresolved = append(unresolved, Unresolved{ValueID: v.ID, Label: v.Label, Occurrence: occ, Reason: reason})
		}
	}
	return ops, unresolved
}

// Apply splices ops into document in descending start order. Each op is re-verified
// right before it is applied; a shifted op falls back to the first match of its
// original text, and is returned as failed when that is gone too.
func Apply(document string, ops []types.ReplacementOp) (string, []types.ReplacementOp, []types.ReplacementOp) {
	in := make([]planned, len(ops))
	for i, op := range ops {
		in[i] = planned{op: op}
	}
	updated, applied, failed := NewPatcher().apply(document, in)
	out := make([]types.ReplacementOp, len(failed))
	for i, f := range failed {
		out[i] = f.op
	}
	return updated, applied, out
}

func (p *Patcher) apply(document string, ops []planned) (string, []types.ReplacementOp, []planned) {
	sorted := make([]planned, len(ops))
	copy(sorted, ops)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].op.Start > sorted[j].op.Start
	})

	var (
		applied []types.ReplacementOp
		failed  []planned
	)
	for _, item := range sorted {
		op := item.op
		if !(op.Start >= 0 && op.Start <= op.End && op.End <= len(document) && document[op.Start:op.End] == op.OriginalText) {
			idx := -1
			if op.OriginalText != "" {
				idx = strings.Index(document, op.OriginalText)
			}
			if idx < 0 {
				failed = append(failed, item)
				continue
			}
			op.Start, op.End = idx, idx+len(op.OriginalText)
			op.Strategy = StrategyFallback
		}
		document = document[:op.Start] + op.NewText + document[op.End:]
		applied = append(applied, op)
	}
	return document, applied, failed
}
