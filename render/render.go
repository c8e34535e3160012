// Package render previews generated documents as HTML.
package render

import (
	"bytes"
	"fmt"
	"html/template"
	"io"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/tbxark/draftagent/types"
)

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// HTML converts a Markdown document to an HTML fragment.
func HTML(document string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(document), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return template.HTML(buf.String()), nil
}

type pageData struct {
	Title  string
	Body   template.HTML
	Fields []types.FieldMarker
}

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
</head>
<body>
<article>
{{.Body}}
</article>
{{- if .Fields}}
<aside>
<h2>Fields</h2>
<table>
<thead><tr><th>Field</th><th>Value</th></tr></thead>
<tbody>
{{- range .Fields}}
<tr><td>{{.DisplayName}}</td><td>{{.CurrentValue}}</td></tr>
{{- end}}
</tbody>
</table>
</aside>
{{- end}}
</body>
</html>
`))

// Page writes a standalone HTML page with the rendered document and a table of its fields.
func Page(w io.Writer, title, document string, fields []types.FieldMarker) error {
	body, err := HTML(document)
	if err != nil {
		return err
	}
	if title == "" {
		title = "Draft"
	}
	return pageTemplate.Execute(w, pageData{Title: title, Body: body, Fields: fields})
}
