package registry

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"slices"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/tbxark/draftagent/marker"
	"github.com/tbxark/draftagent/types"
)

//go:embed builtin.yaml
var builtinDefinitions []byte

// Definition describes one document type: its ordered parameters and reference material.
type Definition struct {
	Type            string                      `yaml:"type"`
	Title           string                      `yaml:"title"`
	Description     string                      `yaml:"description,omitempty"`
	Aliases         []string                    `yaml:"aliases,omitempty"`
	MentionPatterns []string                    `yaml:"mention_patterns,omitempty"`
	Parameters      []types.ParameterDescriptor `yaml:"parameters"`
	Templates       []types.Template            `yaml:"templates,omitempty"`
	Clauses         []types.Clause              `yaml:"clauses,omitempty"`

	patterns []*regexp.Regexp
}

// Patterns returns the compiled mention patterns of the definition.
func (d *Definition) Patterns() []*regexp.Regexp {
	return d.patterns
}

type file struct {
	DocumentTypes []Definition `yaml:"document_types"`
}

// Registry maps document types to their parameter descriptors. It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	defs  map[string]*Definition
	order []string
}

func New(defs ...Definition) (*Registry, error) {
	r := &Registry{defs: map[string]*Definition{}}
	if err := r.Add(defs...); err != nil {
		return nil, err
	}
	return r, nil
}

// Default returns a registry holding the built-in document types.
func Default() (*Registry, error) {
	defs, err := Parse(builtinDefinitions)
	if err != nil {
		return nil, fmt.Errorf("parse builtin definitions: %w", err)
	}
	return New(defs...)
}

func Parse(data []byte) ([]Definition, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("unmarshal definitions: %w", err)
	}
	return f.DocumentTypes, nil
}

func LoadFile(path string) ([]Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read definitions: %w", err)
	}
	return Parse(data)
}

// Add registers definitions, replacing any existing definition of the same type.
func (r *Registry) Add(defs ...Definition) error {
	prepared := make([]*Definition, 0, len(defs))
	for i := range defs {
		def := defs[i]
		def.Parameters = slices.Clone(def.Parameters)
		def.patterns = nil
		if err := prepare(&def); err != nil {
			return err
		}
		prepared = append(prepared, &def)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, def := range prepared {
		if _, exists := r.defs[def.Type]; !exists {
			r.order = append(r.order, def.Type)
		}
		r.defs[def.Type] = def
	}
	return nil
}

func prepare(def *Definition) error {
	def.Type = NormalizeType(def.Type)
	if def.Type == "" {
		return fmt.Errorf("document type is required")
	}
	if def.Title == "" {
		def.Title = def.Type
	}
	seen := make(map[string]bool, len(def.Parameters))
	for i, p := range def.Parameters {
		if p.Key == "" {
			return fmt.Errorf("%s: parameter %d has no key", def.Type, i)
		}
		if !marker.ValidName(p.Key) {
			return fmt.Errorf("%s: parameter key %q is not a valid field name", def.Type, p.Key)
		}
		if seen[p.Key] {
			return fmt.Errorf("%s: duplicate parameter key %q", def.Type, p.Key)
		}
		seen[p.Key] = true
		if p.Type == "" {
			def.Parameters[i].Type = types.ParameterText
		}
		if p.Label == "" {
			def.Parameters[i].Label = p.Key
		}
		if p.Type == types.ParameterSelect && len(p.Options) == 0 {
			return fmt.Errorf("%s: select parameter %q has no options", def.Type, p.Key)
		}
		if p.Rules.Pattern != "" {
			if _, err := regexp.Compile(p.Rules.Pattern); err != nil {
				return fmt.Errorf("%s: parameter %q: invalid pattern: %w", def.Type, p.Key, err)
			}
		}
	}
	for _, expr := range def.MentionPatterns {
		re, err := regexp.Compile(expr)
		if err != nil {
			return fmt.Errorf("%s: invalid mention pattern: %w", def.Type, err)
		}
		for _, name := range re.SubexpNames() {
			if name != "" && !seen[name] {
				return fmt.Errorf("%s: mention pattern group %q is not a parameter key", def.Type, name)
			}
		}
		def.patterns = append(def.patterns, re)
	}
	return nil
}

// NormalizeType lowercases a document type and joins its words with underscores.
func NormalizeType(t string) string {
	t = strings.ToLower(strings.TrimSpace(t))
	return strings.Join(strings.FieldsFunc(t, func(r rune) bool {
		return r == ' ' || r == '-' || r == '_'
	}), "_")
}

// Lookup returns a copy of the ordered parameter descriptors for documentType.
func (r *Registry) Lookup(documentType string) ([]types.ParameterDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[NormalizeType(documentType)]
	if !ok {
		return nil, false
	}
	out := slices.Clone(def.Parameters)
	for i := range out {
		out[i].Options = slices.Clone(out[i].Options)
	}
	return out, true
}

func (r *Registry) Definition(documentType string) (*Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[NormalizeType(documentType)]
	return def, ok
}

// Resolve maps a type name or one of its aliases onto a registered document type.
func (r *Registry) Resolve(name string) (string, bool) {
	norm := NormalizeType(name)
	if norm == "" {
		return "", false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.defs[norm]; ok {
		return norm, true
	}
	for _, t := range r.order {
		for _, alias := range r.defs[t].Aliases {
			if NormalizeType(alias) == norm {
				return t, true
			}
		}
	}
	return "", false
}

// Types returns the registered document types in registration order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.order)
}

func (r *Registry) Definitions() []*Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Definition, 0, len(r.order))
	for _, t := range r.order {
		out = append(out, r.defs[t])
	}
	return out
}

// Infos summarizes the registered types for prompts.
func (r *Registry) Infos() []types.DocumentTypeInfo {
	defs := r.Definitions()
	out := make([]types.DocumentTypeInfo, 0, len(defs))
	for _, d := range defs {
		out = append(out, types.DocumentTypeInfo{Type: d.Type, Title: d.Title, Description: d.Description})
	}
	return out
}

// ComputeMissing returns the keys of required parameters not yet collected, in registry order.
func ComputeMissing(required []types.ParameterDescriptor, collected map[string]string) []string {
	missing := make([]string, 0, len(required))
	for _, d := range required {
		if !d.Required {
			continue
		}
		if _, ok := collected[d.Key]; ok {
			continue
		}
		missing = append(missing, d.Key)
	}
	return missing
}

// Keys returns the parameter keys of descriptors in order.
func Keys(descriptors []types.ParameterDescriptor) []string {
	keys := make([]string, 0, len(descriptors))
	for _, d := range descriptors {
		keys = append(keys, d.Key)
	}
	return keys
}
