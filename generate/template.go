package generate

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/tbxark/draftagent/marker"
	"github.com/tbxark/draftagent/patch"
	"github.com/tbxark/draftagent/types"
)

var placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z][A-Za-z0-9_.-]*)\s*\}\}`)

// TemplateGenerator fills the first retrieved template, or a generic outline when
// there is none, and wraps every value in an inline field marker. Parameters without
// a value get their bracketed label as current value so they can be patched later.
type TemplateGenerator struct{}

func NewTemplateGenerator() *TemplateGenerator {
	return &TemplateGenerator{}
}

func (g *TemplateGenerator) Generate(ctx context.Context, req *Request) (*Draft, error) {
	if req == nil {
		return nil, fmt.Errorf("nil generate request")
	}
	descriptors := make(map[string]types.ParameterDescriptor, len(req.Descriptors))
	for _, d := range req.Descriptors {
		descriptors[d.Key] = d
	}

	body := ""
	if req.References != nil && len(req.References.Templates) > 0 {
		body = strings.TrimRight(req.References.Templates[0].Body, "\n")
	} else {
		body = outline(req)
	}

	var encodeErr error
	text := placeholderPattern.ReplaceAllStringFunc(body, func(m string) string {
		key := placeholderPattern.FindStringSubmatch(m)[1]
		s, err := fieldMarker(key, descriptors[key], req.Parameters)
		if err != nil && encodeErr == nil {
			encodeErr = err
		}
		return s
	})
	if encodeErr != nil {
		return nil, encodeErr
	}

	if req.References != nil {
		for _, c := range req.References.Clauses {
			text += fmt.Sprintf("\n\n## %s\n\n%s", c.Title, strings.TrimSpace(c.Body))
		}
	}
	return &Draft{Text: text + "\n"}, nil
}

func fieldMarker(key string, d types.ParameterDescriptor, params map[string]string) (string, error) {
	if value, ok := params[key]; ok && strings.TrimSpace(value) != "" {
		return marker.Encode(key, patch.FormatValue(d.Type, value))
	}
	label := d.Label
	if label == "" {
		label = marker.Humanize(key)
	}
	return marker.Encode(key, "["+label+"]")
}

func outline(req *Request) string {
	title := req.Title
	if title == "" {
		title = marker.Humanize(req.DocumentType)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\nThis %s is made on the following terms:\n", strings.ToUpper(title), title)
	for _, d := range req.Descriptors {
		fmt.Fprintf(&sb, "\n- %s: {{%s}}", d.Label, d.Key)
	}
	return sb.String()
}
