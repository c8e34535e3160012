package intent

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/tbxark/draftagent/structured"
	"github.com/tbxark/draftagent/types"
)

const (
	parseIntentToolName        = "parse_intent"
	parseIntentToolDescription = "Analyze the user's latest answer and decide whether it abandons the drafting session: cancel or continue."
)

// DefaultParseIntentSystemPromptTemplate asks the model whether the latest answer
// cancels the draft. "%s" is the tool name.
const DefaultParseIntentSystemPromptTemplate = `
You are an assistant for a legal drafting robot that collects the details of a document over several turns.

Analyze the latest exchange between the assistant and the user to decide whether the user wants to abandon drafting.

IMPORTANT: Always combine the assistant's question with the user's answer. An answer that happens to contain words like "stop" or "no" is usually just a value (a company called "Full Stop Ltd", "no governing law preference").

Choose one intent:
- cancel: only if the user clearly wants to abandon or cancel the document (e.g., "cancel", "forget it", "I don't need this anymore").
- continue: everything else, including answers, questions and chatter.

Call the '%s' tool with the result.
`

type PromptBuilder func(systemPrompt string) func(ctx context.Context, req *types.ToolRequest) ([]*schema.Message, error)

type intentRecognizerOptions struct {
	systemPromptTemplate string
	promptBuilder        PromptBuilder
	chainOptions         []structured.Option
}

type RecognizerOption func(*intentRecognizerOptions)

func WithIntentSystemPromptTemplate(systemPromptTemplate string) RecognizerOption {
	return func(o *intentRecognizerOptions) {
		o.systemPromptTemplate = systemPromptTemplate
	}
}

func WithIntentPromptBuilder(promptBuilder PromptBuilder) RecognizerOption {
	return func(o *intentRecognizerOptions) {
		o.promptBuilder = promptBuilder
	}
}

func WithIntentChainOptions(opts ...structured.Option) RecognizerOption {
	return func(o *intentRecognizerOptions) {
		o.chainOptions = append(o.chainOptions, opts...)
	}
}

func newIntentRecognizerOptions(opts ...RecognizerOption) *intentRecognizerOptions {
	opt := intentRecognizerOptions{
		systemPromptTemplate: DefaultParseIntentSystemPromptTemplate,
		promptBuilder: func(systemPrompt string) func(ctx context.Context, req *types.ToolRequest) ([]*schema.Message, error) {
			return func(ctx context.Context, req *types.ToolRequest) ([]*schema.Message, error) {
				message, err := types.FormatToolRequest(req)
				if err != nil {
					return nil, fmt.Errorf("convert to prompt message failed: %w", err)
				}
				return []*schema.Message{
					schema.SystemMessage(systemPrompt),
					schema.UserMessage(message),
				}, nil
			}
		},
	}
	for _, o := range opts {
		if o != nil {
			o(&opt)
		}
	}
	return &opt
}

type parseIntentOutput struct {
	Intent Intent `json:"intent" jsonschema:"required,enum=cancel,enum=continue,description=Whether the user abandons the session"`
}

type ToolBasedIntentRecognizer struct {
	chain *structured.Chain[*types.ToolRequest, parseIntentOutput]
}

func NewToolBasedIntentRecognizer(chatModel model.ToolCallingChatModel, opts ...RecognizerOption) (*ToolBasedIntentRecognizer, error) {
	options := newIntentRecognizerOptions(opts...)
	chain, err := structured.NewChain[*types.ToolRequest, parseIntentOutput](
		chatModel,
		options.promptBuilder(fmt.Sprintf(options.systemPromptTemplate, parseIntentToolName)),
		parseIntentToolName,
		parseIntentToolDescription,
		options.chainOptions...,
	)
	if err != nil {
		return nil, err
	}
	return &ToolBasedIntentRecognizer{chain: chain}, nil
}

func (p *ToolBasedIntentRecognizer) RecognizeIntent(ctx context.Context, req *types.ToolRequest) (Intent, error) {
	result, err := p.chain.Invoke(ctx, req)
	if err != nil {
		return Continue, err
	}
	switch result.Intent {
	case Cancel, Continue:
		return result.Intent, nil
	default:
		return Continue, fmt.Errorf("unexpected intent %q returned by %s", result.Intent, parseIntentToolName)
	}
}
