package dialogue

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/tbxark/draftagent/types"
)

const defaultLang = "English"

// DefaultDialogueSystemPromptTemplate is the system prompt of ToolBasedDialogueGenerator.
// A single "%s" is replaced with the reply language.
const DefaultDialogueSystemPromptTemplate = `You are a friendly legal drafting assistant collecting the details needed to draft a document.

Write the single next message to the user based on the task:
- ask_request: ask what document they would like to draft.
- clarify_request: the request was ambiguous; ask which of the supported document types they mean.
- ask_parameter: ask for the parameter to ask for, and only that one. Mention its help text or example when useful.
- reask_parameter: explain briefly what was wrong with the last answer and ask for the same parameter again.
Keep it to one or two short sentences. Never ask for a parameter that is already collected.
Reply in %s.
`

// ToolBasedDialogueGenerator phrases questions with a chat model.
type ToolBasedDialogueGenerator struct {
	chatModel    model.BaseChatModel
	lang         string
	template     string
	systemPrompt string
}

type GeneratorOption func(*ToolBasedDialogueGenerator)

// WithDialogueLang sets the reply language. Ignored when a fixed system prompt is set.
func WithDialogueLang(lang string) GeneratorOption {
	return func(g *ToolBasedDialogueGenerator) {
		if lang != "" {
			g.lang = lang
		}
	}
}

// WithDialogueSystemPrompt replaces the system prompt verbatim.
func WithDialogueSystemPrompt(systemPrompt string) GeneratorOption {
	return func(g *ToolBasedDialogueGenerator) {
		g.systemPrompt = systemPrompt
	}
}

// WithDialogueSystemPromptTemplate replaces the template; "%s" is the language.
func WithDialogueSystemPromptTemplate(tpl string) GeneratorOption {
	return func(g *ToolBasedDialogueGenerator) {
		if tpl != "" {
			g.template = tpl
		}
	}
}

func NewToolBasedDialogueGenerator(chatModel model.BaseChatModel, opts ...GeneratorOption) *ToolBasedDialogueGenerator {
	g := &ToolBasedDialogueGenerator{
		chatModel: chatModel,
		lang:      defaultLang,
		template:  DefaultDialogueSystemPromptTemplate,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	if g.systemPrompt == "" {
		g.systemPrompt = g.template
		if strings.Contains(g.template, "%s") {
			g.systemPrompt = fmt.Sprintf(g.template, g.lang)
		}
	}
	return g
}

// Lang is the language questions are phrased in.
func (g *ToolBasedDialogueGenerator) Lang() string {
	return g.lang
}

func (g *ToolBasedDialogueGenerator) GenerateDialogue(ctx context.Context, req *types.ToolRequest) (string, error) {
	messages, err := g.prompt(req)
	if err != nil {
		return "", err
	}
	response, err := g.chatModel.Generate(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("failed to phrase question: %w", err)
	}
	if response == nil {
		return "", fmt.Errorf("empty model response")
	}
	return strings.TrimSpace(response.Content), nil
}

func (g *ToolBasedDialogueGenerator) GenerateDialogueStream(ctx context.Context, req *types.ToolRequest) (*schema.StreamReader[string], error) {
	messages, err := g.prompt(req)
	if err != nil {
		return nil, err
	}
	stream, err := g.chatModel.Stream(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("failed to stream question: %w", err)
	}
	return schema.StreamReaderWithConvert(stream, func(message *schema.Message) (string, error) {
		return message.Content, nil
	}), nil
}

// prompt is the system prompt followed by the task description with the session's
// collected values, pending parameter and recent turns.
func (g *ToolBasedDialogueGenerator) prompt(req *types.ToolRequest) ([]*schema.Message, error) {
	task, err := types.FormatToolRequest(req)
	if err != nil {
		return nil, fmt.Errorf("failed to format dialogue request: %w", err)
	}
	return []*schema.Message{
		schema.SystemMessage(g.systemPrompt),
		schema.UserMessage(task),
	}, nil
}
