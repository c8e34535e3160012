package types

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
)

// Purpose tells a prompt-driven component what the controller needs from it.
type Purpose string

const (
	PurposeAskRequest   Purpose = "ask_request"
	PurposeClarify      Purpose = "clarify_request"
	PurposeAskParameter Purpose = "ask_parameter"
	PurposeReask        Purpose = "reask_parameter"
	PurposeClassify     Purpose = "classify_request"
	PurposeExtract      Purpose = "extract_parameter"
	PurposeIntent       Purpose = "recognize_intent"
)

type MessagePair struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type DocumentTypeInfo struct {
	Type        string `json:"type"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// ToolRequest is the shared view of a session handed to LLM-backed components.
type ToolRequest struct {
	Purpose         Purpose
	Status          Status
	DocumentType    string
	DocumentTitle   string
	Collected       map[string]string
	Missing         []ParameterDescriptor
	Pending         *ParameterDescriptor
	ValidationError string
	MessagePair     MessagePair
	History         []Turn
	SupportedTypes  []DocumentTypeInfo
}

func formatCollectedSection(collected map[string]string) string {
	if len(collected) == 0 {
		return ""
	}
	keys := make([]string, 0, len(collected))
	for k := range collected {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	var buf strings.Builder
	buf.WriteString("# Collected parameters:\n")
	table := tablewriter.NewTable(&buf, tablewriter.WithRenderer(renderer.NewMarkdown()))
	table.Header("Key", "Value")
	for _, k := range keys {
		_ = table.Append(k, collected[k])
	}
	_ = table.Render()
	return buf.String()
}

func formatMissingSection(missing []ParameterDescriptor) string {
	if len(missing) == 0 {
		return ""
	}
	var buf strings.Builder
	buf.WriteString("# Missing required parameters:\n")
	table := tablewriter.NewTable(&buf, tablewriter.WithRenderer(renderer.NewMarkdown()))
	table.Header("Key", "Label", "Type", "Help")
	for _, d := range missing {
		_ = table.Append(d.Key, d.Label, string(d.Type), d.HelpText)
	}
	_ = table.Render()
	return buf.String()
}

func formatSupportedTypesSection(infos []DocumentTypeInfo) string {
	if len(infos) == 0 {
		return ""
	}
	var buf strings.Builder
	buf.WriteString("# Supported document types:\n")
	table := tablewriter.NewTable(&buf, tablewriter.WithRenderer(renderer.NewMarkdown()))
	table.Header("Type", "Title", "Description")
	for _, info := range infos {
		_ = table.Append(info.Type, info.Title, info.Description)
	}
	_ = table.Render()
	return buf.String()
}

func formatPendingSection(d *ParameterDescriptor) string {
	if d == nil {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("# Parameter to ask for:\n")
	fmt.Fprintf(&sb, "- key: %s\n- label: %s\n- type: %s", d.Key, d.Label, d.Type)
	if d.HelpText != "" {
		fmt.Fprintf(&sb, "\n- help: %s", d.HelpText)
	}
	if d.Example != "" {
		fmt.Fprintf(&sb, "\n- example: %s", d.Example)
	}
	if len(d.Options) > 0 {
		fmt.Fprintf(&sb, "\n- options: %s", strings.Join(d.Options, ", "))
	}
	return sb.String()
}

func formatHistorySection(history []Turn) string {
	if len(history) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("# Conversation so far:")
	for _, turn := range history {
		fmt.Fprintf(&sb, "\n%s: %s", turn.Role, turn.Content)
	}
	return sb.String()
}

// FormatToolRequest renders req as the user message of an LLM prompt.
func FormatToolRequest(req *ToolRequest) (string, error) {
	if req == nil {
		return "", fmt.Errorf("nil tool request")
	}
	sections := []string{
		fmt.Sprintf("# Current Date: \n %s", time.Now().Format(time.RFC3339)),
	}
	if req.Purpose != "" {
		sections = append(sections, fmt.Sprintf("# Task:\n%s", req.Purpose))
	}
	if req.DocumentType != "" {
		title := req.DocumentTitle
		if title == "" {
			title = req.DocumentType
		}
		sections = append(sections, fmt.Sprintf("# Document:\n%s (%s)", title, req.DocumentType))
	}
	if s := formatSupportedTypesSection(req.SupportedTypes); s != "" {
		sections = append(sections, s)
	}
	if s := formatCollectedSection(req.Collected); s != "" {
		sections = append(sections, s)
	}
	if s := formatMissingSection(req.Missing); s != "" {
		sections = append(sections, s)
	}
	if s := formatPendingSection(req.Pending); s != "" {
		sections = append(sections, s)
	}
	if req.ValidationError != "" {
		sections = append(sections, fmt.Sprintf("# Problem with the last answer:\n%s", req.ValidationError))
	}
	if s := formatHistorySection(req.History); s != "" {
		sections = append(sections, s)
	}
	if req.MessagePair.Question != "" || req.MessagePair.Answer != "" {
		sections = append(sections, "# Latest Dialogue:")
		if req.MessagePair.Question != "" {
			sections = append(sections, fmt.Sprintf("## Assistant Question:\n%s", req.MessagePair.Question))
		}
		if req.MessagePair.Answer != "" {
			sections = append(sections, fmt.Sprintf("## User Answer:\n%s", req.MessagePair.Answer))
		}
	}
	return strings.Join(sections, "\n\n"), nil
}
