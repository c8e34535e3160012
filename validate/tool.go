package validate

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
	extractToolName        = "extract_parameter"
	extractToolDescription = "Extract the value of one document parameter from the user's answer."
)

// DefaultExtractSystemPromptTemplate may contain a single "%s" placeholder for the tool name.
const DefaultExtractSystemPromptTemplate = `You help fill in one parameter of a legal document.

Combine the assistant's question with the user's answer and extract the value of the requested parameter.
- Set found to false when the answer does not contain a value for this parameter, and explain why in reason.
- value must be the user's value only, without surrounding words (for "it's Acme Corp" return "Acme Corp").
- Dates should be returned as YYYY-MM-DD. Numbers without currency symbols or thousands separators.
- For select parameters return one of the listed options.

Call the '%s' tool with the result.
`

type extractOutput struct {
	Found  bool   `json:"found" jsonschema:"required,description=Whether the answer contains a value for the parameter"`
	Value  string `json:"value" jsonschema:"description=Extracted value"`
	Reason string `json:"reason,omitempty" jsonschema:"description=Why no value could be extracted"`
}

type validatorOptions struct {
	systemPromptTemplate string
	chainOptions         []structured.Option
}

type ValidatorOption func(*validatorOptions)

func WithExtractSystemPromptTemplate(tpl string) ValidatorOption {
	return func(o *validatorOptions) {
		o.systemPromptTemplate = tpl
	}
}

func WithExtractChainOptions(opts ...structured.Option) ValidatorOption {
	return func(o *validatorOptions) {
		o.chainOptions = append(o.chainOptions, opts...)
	}
}

// ToolBasedValidator lets a chat model pull the value out of a conversational
// answer, then applies the same checks as LocalValidator.
type ToolBasedValidator struct {
	chain *structured.Chain[*Request, extractOutput]
}

func NewToolBasedValidator(chatModel model.ToolCallingChatModel, opts ...ValidatorOption) (*ToolBasedValidator, error) {
	options := validatorOptions{systemPromptTemplate: DefaultExtractSystemPromptTemplate}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	systemPrompt := options.systemPromptTemplate
	if strings.Contains(systemPrompt, "%s") {
		systemPrompt = fmt.Sprintf(systemPrompt, extractToolName)
	}
	chain, err := structured.NewChain[*Request, extractOutput](
		chatModel,
		func(ctx context.Context, req *Request) ([]*schema.Message, error) {
			return buildExtractPrompt(systemPrompt, req)
		},
		extractToolName,
		extractToolDescription,
		options.chainOptions...,
	)
	if err != nil {
		return nil, err
	}
	return &ToolBasedValidator{chain: chain}, nil
}

func (v *ToolBasedValidator) Validate(ctx context.Context, req *Request) (*Result, error) {
	if req == nil {
		return nil, fmt.Errorf("nil validate request")
	}
	out, err := v.chain.Invoke(ctx, req)
	if err != nil {
		return nil, err
	}
	if !out.Found || strings.TrimSpace(out.Value) == "" {
		reason := strings.TrimSpace(out.Reason)
		if reason == "" {
			reason = fmt.Sprintf("no value for %s was found in the answer", req.Descriptor.Label)
		}
		return invalid(reason), nil
	}
	return Check(req.Descriptor, out.Value), nil
}

func buildExtractPrompt(systemPrompt string, req *Request) ([]*schema.Message, error) {
	d := req.Descriptor
	message, err := types.FormatToolRequest(&types.ToolRequest{
		Purpose:     types.PurposeExtract,
		Pending:     &d,
		History:     req.History,
		MessagePair: types.MessagePair{Question: req.Question, Answer: req.Input},
	})
	if err != nil {
		return nil, fmt.Errorf("convert to prompt message failed: %w", err)
	}
	return []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(message),
	}, nil
}
