package generate

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/tbxark/draftagent/structured"
	"github.com/tbxark/draftagent/types"
)

const (
	draftToolName        = "draft_document"
	draftToolDescription = "Return the drafted document together with every parameter value it contains."
)

// DefaultDraftSystemPromptTemplate may contain a single "%s" placeholder for the tool name.
const DefaultDraftSystemPromptTemplate = `You are a careful legal drafter.

Draft the requested document in Markdown using the collected parameters, the reference templates and clauses, and the user's original request.
- Use every collected parameter value verbatim.
- For parameters without a value write a bracketed placeholder such as [Governing Law].
- List every parameter value or placeholder you wrote in fields, with path set to the parameter key and value set to the exact text as it appears in the document.
- Do not invent party names, dates or amounts.

Call the '%s' tool with the result.
`

type draftOutput struct {
	Document string             `json:"document" jsonschema:"required,description=The complete drafted document in Markdown"`
	Fields   []types.FieldValue `json:"fields" jsonschema:"required,description=Every parameter value written into the document"`
}

type generatorOptions struct {
	systemPromptTemplate string
	chainOptions         []structured.Option
}

type GeneratorOption func(*generatorOptions)

func WithDraftSystemPromptTemplate(tpl string) GeneratorOption {
	return func(o *generatorOptions) {
		o.systemPromptTemplate = tpl
	}
}

func WithDraftChainOptions(opts ...structured.Option) GeneratorOption {
	return func(o *generatorOptions) {
		o.chainOptions = append(o.chainOptions, opts...)
	}
}

// ToolBasedGenerator drafts with a chat model and returns values through the
// structured field side channel instead of inline markers.
type ToolBasedGenerator struct {
	chain *structured.Chain[*Request, draftOutput]
}

func NewToolBasedGenerator(chatModel model.ToolCallingChatModel, opts ...GeneratorOption) (*ToolBasedGenerator, error) {
	options := generatorOptions{systemPromptTemplate: DefaultDraftSystemPromptTemplate}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	systemPrompt := options.systemPromptTemplate
	if strings.Contains(systemPrompt, "%s") {
		systemPrompt = fmt.Sprintf(systemPrompt, draftToolName)
	}
	chain, err := structured.NewChain[*Request, draftOutput](
		chatModel,
		func(ctx context.Context, req *Request) ([]*schema.Message, error) {
			message, err := FormatRequest(req)
			if err != nil {
				return nil, err
			}
			return []*schema.Message{
				schema.SystemMessage(systemPrompt),
				schema.UserMessage(message),
			}, nil
		},
		draftToolName,
		draftToolDescription,
		options.chainOptions...,
	)
	if err != nil {
		return nil, err
	}
	return &ToolBasedGenerator{chain: chain}, nil
}

func (g *ToolBasedGenerator) Generate(ctx context.Context, req *Request) (*Draft, error) {
	out, err := g.chain.Invoke(ctx, req)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(out.Document) == "" {
		return nil, fmt.Errorf("model returned an empty document")
	}
	return &Draft{Text: out.Document, Fields: out.Fields}, nil
}

// FormatRequest renders req as the user message of a drafting prompt.
func FormatRequest(req *Request) (string, error) {
	if req == nil {
		return "", fmt.Errorf("nil generate request")
	}
	var missing []types.ParameterDescriptor
	for _, d := range req.Descriptors {
		if _, ok := req.Parameters[d.Key]; !ok {
			missing = append(missing, d)
		}
	}
	message, err := types.FormatToolRequest(&types.ToolRequest{
		DocumentType:  req.DocumentType,
		DocumentTitle: req.Title,
		Collected:     req.Parameters,
		Missing:       missing,
	})
	if err != nil {
		return "", fmt.Errorf("convert to prompt message failed: %w", err)
	}
	sections := []string{message}
	if refs := req.References; refs != nil {
		for _, tpl := range refs.Templates {
			sections = append(sections, fmt.Sprintf("# Reference template %q:\n%s", tpl.Name, tpl.Body))
		}
		if len(refs.Clauses) > 0 {
			var sb strings.Builder
			sb.WriteString("# Reference clauses:")
			for _, c := range refs.Clauses {
				fmt.Fprintf(&sb, "\n## %s\n%s", c.Title, c.Body)
			}
			sections = append(sections, sb.String())
		}
	}
	if req.OriginalRequest != "" {
		sections = append(sections, fmt.Sprintf("# Original request:\n%s", req.OriginalRequest))
	}
	return strings.Join(sections, "\n\n"), nil
}
