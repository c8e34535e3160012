package structured

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bytedance/sonic"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"
)

type PromptBuilder[TInput any] func(ctx context.Context, input TInput) ([]*schema.Message, error)

// Chain asks a chat model for exactly one forced tool call and decodes its arguments into TOutput.
type Chain[TInput, TOutput any] struct {
	PromptBuilder PromptBuilder[TInput]
	ChatModel     model.ToolCallingChatModel
	ToolInfo      *schema.ToolInfo
	ModelOptions  []model.Option
}

type Option func(*chainOptions)

type chainOptions struct {
	modelOptions []model.Option
}

// WithModelOptions passes extra options (temperature, max tokens) to every model call.
func WithModelOptions(opts ...model.Option) Option {
	return func(o *chainOptions) {
		o.modelOptions = append(o.modelOptions, opts...)
	}
}

func NewChain[TInput, TOutput any](
	chatModel model.ToolCallingChatModel,
	promptBuilder PromptBuilder[TInput],
	toolName string,
	toolDesc string,
	opts ...Option,
) (*Chain[TInput, TOutput], error) {
	if chatModel == nil {
		return nil, fmt.Errorf("chat model is required for tool %s", toolName)
	}
	toolInfo, err := utils.GoStruct2ToolInfo[TOutput](toolName, toolDesc)
	if err != nil {
		return nil, fmt.Errorf("convert tool info failed: %w", err)
	}
	var o chainOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return &Chain[TInput, TOutput]{
		PromptBuilder: promptBuilder,
		ChatModel:     chatModel,
		ToolInfo:      toolInfo,
		ModelOptions:  o.modelOptions,
	}, nil
}

func (s *Chain[TInput, TOutput]) Invoke(ctx context.Context, input TInput) (*TOutput, error) {
	messages, err := s.PromptBuilder(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("build prompt failed: %w", err)
	}

	opts := append([]model.Option{
		model.WithTools([]*schema.ToolInfo{s.ToolInfo}),
		model.WithToolChoice(schema.ToolChoiceForced, s.ToolInfo.Name),
	}, s.ModelOptions...)

	slog.Debug("Invoking structured chain", "tool", s.ToolInfo.Name, "messages", len(messages))
	response, err := s.ChatModel.Generate(ctx, messages, opts...)
	if err != nil {
		return nil, fmt.Errorf("call model failed: %w", err)
	}
	if response == nil {
		return nil, fmt.Errorf("empty model response for tool %s", s.ToolInfo.Name)
	}
	return Decode[TOutput](response, s.ToolInfo.Name)
}

// Decode parses the arguments of the tool call named toolName, falling back to the first tool call.
func Decode[TOutput any](msg *schema.Message, toolName string) (*TOutput, error) {
	if len(msg.ToolCalls) == 0 {
		return nil, fmt.Errorf("no ToolCall found in model response: %s", msg.Content)
	}
	call := msg.ToolCalls[0]
	for _, c := range msg.ToolCalls {
		if c.Function.Name == toolName {
			call = c
			break
		}
	}
	var result TOutput
	if err := sonic.UnmarshalString(call.Function.Arguments, &result); err != nil {
		return nil, fmt.Errorf("parse ToolCall arguments failed: %w", err)
	}
	return &result, nil
}

func (s *Chain[TInput, TOutput]) GetToolInfo() *schema.ToolInfo {
	return s.ToolInfo
}
