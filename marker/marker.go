// Package marker implements the inline field marker protocol used by document
// generators. A marker has the form {{field_name|current value}}; decoding
// replaces every marker with its value and records where each value landed.
package marker

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/tbxark/draftagent/errors"
	"github.com/tbxark/draftagent/types"
)

const (
	Open      = "{{"
	Close     = "}}"
	Separator = "|"

	snippetRadius = 30
)

var fieldNamePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_.-]*$`)

// Malformed reasons.
const (
	ReasonUnterminated     = "unterminated"
	ReasonNested           = "nested"
	ReasonMissingSeparator = "missing separator"
	ReasonInvalidName      = "invalid field name"
)

type Malformed struct {
	Offset int    `json:"offset"`
	Raw    string `json:"raw"`
	Reason string `json:"reason"`
}

func (m Malformed) Err() *errors.DraftError {
	return errors.NewMalformedFieldMarker(m.Offset, m.Reason)
}

// Decoded is the clean document produced from raw generator output.
type Decoded struct {
	Document  string              `json:"document"`
	Markers   []types.FieldMarker `json:"markers"`
	Malformed []Malformed         `json:"malformed,omitempty"`
}

// ValidName reports whether name can be used as a marker field name.
func ValidName(name string) bool {
	return fieldNamePattern.MatchString(name)
}

// Encode renders one inline marker. Values that would break the delimiters are refused.
func Encode(name, value string) (string, error) {
	if !ValidName(name) {
		return "", fmt.Errorf("invalid field name %q", name)
	}
	if strings.Contains(value, Open) || strings.Contains(value, Close) {
		return "", fmt.Errorf("value of %q contains a marker delimiter", name)
	}
	return Open + name + Separator + value + Close, nil
}

// Decode scans raw for markers in order of first appearance. Malformed markers are
// copied verbatim into the document and reported, the scan always runs to the end.
func Decode(raw string) *Decoded {
	return decode(raw, slog.Default())
}

func decode(raw string, logger *slog.Logger) *Decoded {
	var (
		out       strings.Builder
		markers   []types.FieldMarker
		index     = map[string]int{}
		malformed []Malformed
	)
	out.Grow(len(raw))

	report := func(offset int, text, reason string) {
		malformed = append(malformed, Malformed{Offset: offset, Raw: text, Reason: reason})
		logger.Warn("Skipping malformed field marker", "offset", offset, "reason", reason)
	}

	i := 0
	for i < len(raw) {
		j := strings.Index(raw[i:], Open)
		if j < 0 {
			out.WriteString(raw[i:])
			break
		}
		start := i + j
		out.WriteString(raw[i:start])

		body := raw[start+len(Open):]
		closeAt := strings.Index(body, Close)
		if closeAt < 0 {
			report(start, raw[start:], ReasonUnterminated)
			out.WriteString(raw[start:])
			break
		}
		if nextOpen := strings.Index(body, Open); nextOpen >= 0 && nextOpen < closeAt {
			end := start + len(Open) + nextOpen
			report(start, raw[start:end], ReasonNested)
			out.WriteString(raw[start:end])
			i = end
			continue
		}

		end := start + len(Open) + closeAt + len(Close)
		name, value, ok := strings.Cut(body[:closeAt], Separator)
		if !ok {
			report(start, raw[start:end], ReasonMissingSeparator)
			out.WriteString(raw[start:end])
			i = end
			continue
		}
		name = strings.TrimSpace(name)
		if !ValidName(name) {
			report(start, raw[start:end], ReasonInvalidName)
			out.WriteString(raw[start:end])
			i = end
			continue
		}

		pos := out.Len()
		out.WriteString(value)
		k, seen := index[name]
		if !seen {
			k = len(markers)
			index[name] = k
			markers = append(markers, types.FieldMarker{
				FieldName:    name,
				CurrentValue: value,
				DisplayName:  Humanize(name),
			})
		}
		if value != "" {
			markers[k].Occurrences = append(markers[k].Occurrences, types.Occurrence{
				Text:     value,
				Position: &types.Position{Start: pos, End: pos + len(value)},
			})
		}
		i = end
	}

	doc := out.String()
	for k := range markers {
		for n := range markers[k].Occurrences {
			p := markers[k].Occurrences[n].Position
			markers[k].Occurrences[n].ContextSnippet = Snippet(doc, p.Start, p.End)
		}
	}
	return &Decoded{Document: doc, Markers: markers, Malformed: malformed}
}

// Resolve builds the clean document and its markers from generator output. A non-empty
// field side channel wins over inline markers: text is taken as plain and every field
// value is located by literal search.
func Resolve(text string, fields []types.FieldValue) *Decoded {
	if len(fields) == 0 {
		return Decode(text)
	}
	return &Decoded{Document: text, Markers: FromFields(text, fields)}
}

// FromFields turns side-channel field values into markers ordered by first appearance
// in text. Fields that cannot be found keep their given order at the end.
func FromFields(text string, fields []types.FieldValue) []types.FieldMarker {
	type located struct {
		marker types.FieldMarker
		first  int
	}
	var found, missing []located
	seen := map[string]bool{}
	for _, f := range fields {
		name := strings.TrimSpace(f.Path)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		m := types.FieldMarker{
			FieldName:    name,
			CurrentValue: f.Value,
			DisplayName:  Humanize(name),
			Occurrences:  Locate(text, f.Value),
		}
		if len(m.Occurrences) == 0 {
			missing = append(missing, located{marker: m})
			continue
		}
		found = append(found, located{marker: m, first: m.Occurrences[0].Position.Start})
	}
	// insertion sort keeps equal starts in field order
	for a := 1; a < len(found); a++ {
		for b := a; b > 0 && found[b].first < found[b-1].first; b-- {
			found[b], found[b-1] = found[b-1], found[b]
		}
	}
	out := make([]types.FieldMarker, 0, len(found)+len(missing))
	for _, l := range found {
		out = append(out, l.marker)
	}
	for _, l := range missing {
		out = append(out, l.marker)
	}
	return out
}

// Locate returns every non-overlapping literal occurrence of text in document.
func Locate(document, text string) []types.Occurrence {
	if text == "" {
		return nil
	}
	var out []types.Occurrence
	for from := 0; from <= len(document); {
		idx := strings.Index(document[from:], text)
		if idx < 0 {
			break
		}
		start := from + idx
		end := start + len(text)
		out = append(out, types.Occurrence{
			Text:           text,
			ContextSnippet: Snippet(document, start, end),
			Position:       &types.Position{Start: start, End: end},
		})
		from = end
	}
	return out
}

// Snippet returns the text around [start,end) widened to rune boundaries.
func Snippet(document string, start, end int) string {
	lo := max(0, start-snippetRadius)
	hi := min(len(document), end+snippetRadius)
	for lo > 0 && !utf8.RuneStart(document[lo]) {
		lo--
	}
	for hi < len(document) && !utf8.RuneStart(document[hi]) {
		hi++
	}
	return document[lo:hi]
}

// NamedValues converts markers into patchable named values. fieldTypes may be nil.
func NamedValues(markers []types.FieldMarker, fieldTypes map[string]types.ParameterType) []types.NamedValue {
	out := make([]types.NamedValue, 0, len(markers))
	for _, m := range markers {
		ft := fieldTypes[m.FieldName]
		if ft == "" {
			ft = types.ParameterText
		}
		occ := make([]types.Occurrence, len(m.Occurrences))
		for i, o := range m.Occurrences {
			if o.Position != nil {
				p := *o.Position
				o.Position = &p
			}
			occ[i] = o
		}
		out = append(out, types.NamedValue{
			ID:          m.FieldName,
			Label:       m.DisplayName,
			UserInput:   m.CurrentValue,
			FieldType:   ft,
			Occurrences: occ,
		})
	}
	return out
}
