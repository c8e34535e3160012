package generate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/tbxark/draftagent/marker"
)

type Prompt struct {
	System string
	User   string
}

// Completer is a plain text completion backend.
type Completer interface {
	Complete(ctx context.Context, prompt Prompt) (string, error)
}

const defaultCompletionSystemPrompt = `You are a careful legal drafter.

Draft the requested document in Markdown using the collected parameters, the reference templates and clauses, and the user's original request.
Wrap every parameter value you write in an inline field marker of the form ` + marker.Open + `parameter_key` + marker.Separator + `value` + marker.Close + `, for example ` + marker.Open + `party1_name` + marker.Separator + `Acme Corporation` + marker.Close + `.
For parameters without a value use a bracketed placeholder inside the marker, for example ` + marker.Open + `governing_law` + marker.Separator + `[Governing Law]` + marker.Close + `.
Output only the document.`

// CompletionGenerator drafts through a text completion and expects inline field markers.
type CompletionGenerator struct {
	completer    Completer
	systemPrompt string
}

func NewCompletionGenerator(completer Completer) *CompletionGenerator {
	return &CompletionGenerator{completer: completer, systemPrompt: defaultCompletionSystemPrompt}
}

func (g *CompletionGenerator) Generate(ctx context.Context, req *Request) (*Draft, error) {
	user, err := FormatRequest(req)
	if err != nil {
		return nil, err
	}
	raw, err := g.completer.Complete(ctx, Prompt{System: g.systemPrompt, User: user})
	if err != nil {
		return nil, err
	}
	text := stripFence(raw)
	if text == "" {
		return nil, errors.New("model returned an empty document")
	}
	return &Draft{Text: text}, nil
}

// stripFence removes a surrounding ``` block that some models add.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") || !strings.HasSuffix(s, "```") || len(s) < 6 {
		return s
	}
	s = strings.TrimSuffix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	return strings.TrimSpace(s)
}

// OpenAICompleter implements Completer with the openai-go chat completions API.
type OpenAICompleter struct {
	Model string
	Opts  []option.RequestOption
}

func NewOpenAICompleter(apiKey, baseURL, model string) (*OpenAICompleter, error) {
	if apiKey == "" {
		return nil, errors.New("openai api key missing; provide llm.api_key")
	}
	if model == "" {
		return nil, errors.New("llm model is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAICompleter{Model: model, Opts: opts}, nil
}

func (o *OpenAICompleter) Complete(ctx context.Context, prompt Prompt) (string, error) {
	client := openai.NewClient(o.Opts...)
	resp, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(prompt.System),
			openai.UserMessage(prompt.User),
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: empty choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// ChatModelCompleter adapts an eino chat model to Completer.
type ChatModelCompleter struct {
	chatModel model.BaseChatModel
}

func NewChatModelCompleter(chatModel model.BaseChatModel) *ChatModelCompleter {
	return &ChatModelCompleter{chatModel: chatModel}
}

func (c *ChatModelCompleter) Complete(ctx context.Context, prompt Prompt) (string, error) {
	resp, err := c.chatModel.Generate(ctx, []*schema.Message{
		schema.SystemMessage(prompt.System),
		schema.UserMessage(prompt.User),
	})
	if err != nil {
		return "", fmt.Errorf("LLM call failed: %w", err)
	}
	if resp == nil {
		return "", errors.New("empty model response")
	}
	return resp.Content, nil
}
