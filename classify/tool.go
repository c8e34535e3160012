package classify

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"

	"github.com/tbxark/draftagent/registry"
	"github.com/tbxark/draftagent/structured"
	"github.com/tbxark/draftagent/types"
)

const (
	classifyToolName        = "classify_request"
	classifyToolDescription = "Classify a document drafting request into one supported document type and report parameters the user already mentioned."
)

// DefaultClassifySystemPromptTemplate may contain a single "%s" placeholder for the tool name.
const DefaultClassifySystemPromptTemplate = `You route legal document drafting requests.

Read the user's request and decide which supported document type they want drafted.
- document_type must be one of the listed types, or empty when none fits.
- confidence is your probability (0 to 1) that the type is right. Use a value below 0.7 when the request is vague, could fit more than one type, or only uses an abbreviation without context.
- mentioned_parameters lists only values the user stated explicitly, keyed by the parameter keys of the chosen type. Never guess values.

Call the '%s' tool with the result.
`

type mentionedParameter struct {
	Key   string `json:"key" jsonschema:"required,description=Parameter key of the chosen document type"`
	Value string `json:"value" jsonschema:"required,description=Value exactly as stated by the user"`
}

type classifyOutput struct {
	DocumentType        string               `json:"document_type" jsonschema:"description=One of the supported document types or empty"`
	Confidence          float64              `json:"confidence" jsonschema:"required,minimum=0,maximum=1,description=Confidence that document_type is correct"`
	MentionedParameters []mentionedParameter `json:"mentioned_parameters,omitempty" jsonschema:"description=Parameters already stated by the user"`
}

type classifierOptions struct {
	systemPromptTemplate string
	chainOptions         []structured.Option
}

type ClassifierOption func(*classifierOptions)

func WithClassifySystemPromptTemplate(tpl string) ClassifierOption {
	return func(o *classifierOptions) {
		o.systemPromptTemplate = tpl
	}
}

func WithClassifyChainOptions(opts ...structured.Option) ClassifierOption {
	return func(o *classifierOptions) {
		o.chainOptions = append(o.chainOptions, opts...)
	}
}

// ToolBasedClassifier asks a chat model to classify the request through a forced tool call.
type ToolBasedClassifier struct {
	registry *registry.Registry
	chain    *structured.Chain[*Request, classifyOutput]
}

func NewToolBasedClassifier(chatModel model.ToolCallingChatModel, reg *registry.Registry, opts ...ClassifierOption) (*ToolBasedClassifier, error) {
	options := classifierOptions{systemPromptTemplate: DefaultClassifySystemPromptTemplate}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	c := &ToolBasedClassifier{registry: reg}
	systemPrompt := options.systemPromptTemplate
	if strings.Contains(systemPrompt, "%s") {
		systemPrompt = fmt.Sprintf(systemPrompt, classifyToolName)
	}
	chain, err := structured.NewChain[*Request, classifyOutput](
		chatModel,
		func(ctx context.Context, req *Request) ([]*schema.Message, error) {
			return c.buildPrompt(systemPrompt, req)
		},
		classifyToolName,
		classifyToolDescription,
		options.chainOptions...,
	)
	if err != nil {
		return nil, err
	}
	c.chain = chain
	return c, nil
}

func (c *ToolBasedClassifier) Classify(ctx context.Context, req *Request) (*Result, error) {
	out, err := c.chain.Invoke(ctx, req)
	if err != nil {
		return nil, err
	}
	result := &Result{Confidence: min(1, max(0, out.Confidence))}
	docType, ok := c.registry.Resolve(out.DocumentType)
	if !ok {
		return result, nil
	}
	result.DocumentType = docType

	params, _ := c.registry.Lookup(docType)
	known := make(map[string]bool, len(params))
	for _, p := range params {
		known[p.Key] = true
	}
	for _, m := range out.MentionedParameters {
		value := strings.TrimSpace(m.Value)
		if !known[m.Key] || value == "" {
			continue
		}
		if result.MentionedParameters == nil {
			result.MentionedParameters = map[string]string{}
		}
		if _, dup := result.MentionedParameters[m.Key]; !dup {
			result.MentionedParameters[m.Key] = value
		}
	}
	return result, nil
}

func (c *ToolBasedClassifier) buildPrompt(systemPrompt string, req *Request) ([]*schema.Message, error) {
	message, err := types.FormatToolRequest(&types.ToolRequest{
		Purpose:        types.PurposeClassify,
		SupportedTypes: c.registry.Infos(),
		History:        req.History,
		MessagePair:    types.MessagePair{Answer: req.Text},
	})
	if err != nil {
		return nil, fmt.Errorf("convert to prompt message failed: %w", err)
	}
	return []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(message + "\n\n" + c.formatParameterKeys()),
	}, nil
}

func (c *ToolBasedClassifier) formatParameterKeys() string {
	var buf strings.Builder
	buf.WriteString("# Parameter keys by type:\n")
	table := tablewriter.NewTable(&buf, tablewriter.WithRenderer(renderer.NewMarkdown()))
	table.Header("Type", "Keys")
	for _, def := range c.registry.Definitions() {
		_ = table.Append(def.Type, strings.Join(registry.Keys(def.Parameters), ", "))
	}
	_ = table.Render()
	return buf.String()
}
