package classify

import (
	"context"
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/tbxark/draftagent/registry"
)

// Alias weights. A single-word alias such as "nda" or "lease" is a weak signal on
// its own; a multi-word name is a strong one.
const (
	weakAliasScore   = 0.5
	strongAliasScore = 0.8
	bonusScore       = 0.1
	maxScore         = 0.95
	ambiguousScore   = 0.5
)

// LocalClassifier recognizes document types by alias and extracts parameters with
// the registry's mention patterns. It never calls a model.
type LocalClassifier struct {
	registry *registry.Registry
}

func NewLocalClassifier(reg *registry.Registry) *LocalClassifier {
	return &LocalClassifier{registry: reg}
}

type candidate struct {
	def      *registry.Definition
	score    float64
	mentions map[string]string
}

func (c *LocalClassifier) Classify(ctx context.Context, req *Request) (*Result, error) {
	if req == nil {
		return nil, fmt.Errorf("nil classify request")
	}
	text := " " + normalizeWords(req.Text) + " "

	var best []candidate
	for _, def := range c.registry.Definitions() {
		score := 0.0
		for _, alias := range aliasesOf(def) {
			if !strings.Contains(text, " "+alias+" ") {
				continue
			}
			w := weakAliasScore
			if strings.Contains(alias, " ") {
				w = strongAliasScore
			}
			score = math.Max(score, w)
		}
		if score == 0 {
			continue
		}
		mentions := ExtractMentions(def, req.Text)
		if len(mentions) > 0 {
			score += bonusScore
		}
		score = math.Min(maxScore, math.Round(score*100)/100)

		cand := candidate{def: def, score: score, mentions: mentions}
		switch {
		case len(best) == 0 || score > best[0].score:
			best = []candidate{cand}
		case score == best[0].score:
			best = append(best, cand)
		}
	}

	if len(best) == 0 {
		return &Result{}, nil
	}
	top := best[0]
	confidence := top.score
	if len(best) > 1 {
		confidence = math.Min(confidence, ambiguousScore)
	}
	return &Result{
		DocumentType:        top.def.Type,
		Confidence:          confidence,
		MentionedParameters: top.mentions,
	}, nil
}

// ExtractMentions applies the definition's mention patterns line by line. The
// first capture of each parameter wins.
func ExtractMentions(def *registry.Definition, text string) map[string]string {
	out := map[string]string{}
	for _, line := range strings.Split(text, "\n") {
		for _, re := range def.Patterns() {
			match := re.FindStringSubmatch(line)
			if match == nil {
				continue
			}
			for i, name := range re.SubexpNames() {
				if name == "" {
					continue
				}
				value := strings.TrimSpace(strings.TrimRight(match[i], ".,;!? "))
				if value == "" {
					continue
				}
				if _, ok := out[name]; !ok {
					out[name] = value
				}
			}
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func aliasesOf(def *registry.Definition) []string {
	seen := map[string]bool{}
	var out []string
	for _, a := range append([]string{def.Type, def.Title}, def.Aliases...) {
		n := normalizeWords(a)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

// normalizeWords lowercases s and collapses every run of non-alphanumerics to one space.
func normalizeWords(s string) string {
	return strings.Join(strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}), " ")
}
