package dialogue

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/tbxark/draftagent/types"
)

// LocalDialogueGenerator phrases questions from descriptor metadata without a model.
type LocalDialogueGenerator struct{}

func NewLocalDialogueGenerator() *LocalDialogueGenerator {
	return &LocalDialogueGenerator{}
}

func (g *LocalDialogueGenerator) GenerateDialogue(ctx context.Context, req *types.ToolRequest) (string, error) {
	if req == nil {
		return "", fmt.Errorf("nil dialogue request")
	}
	switch req.Purpose {
	case types.PurposeAskRequest:
		return "What document would you like to draft? Describe it in a sentence, for example \"an NDA between Acme and Bob\".", nil
	case types.PurposeClarify:
		var sb strings.Builder
		sb.WriteString("I'm not sure which document you need.")
		if len(req.SupportedTypes) > 0 {
			sb.WriteString(" I can draft:")
			for _, info := range req.SupportedTypes {
				fmt.Fprintf(&sb, "\n- %s", info.Title)
			}
			sb.WriteString("\nWhich one would you like?")
		} else {
			sb.WriteString(" Could you describe it in more detail?")
		}
		return sb.String(), nil
	case types.PurposeAskParameter, types.PurposeReask:
		if req.Pending == nil {
			return "", fmt.Errorf("no pending parameter to ask for")
		}
		question := askParameter(req.Pending)
		if req.Purpose == types.PurposeReask && req.ValidationError != "" {
			question = fmt.Sprintf("That didn't work: %s. %s", strings.TrimSuffix(req.ValidationError, "."), question)
		}
		return question, nil
	default:
		return "", fmt.Errorf("unsupported dialogue purpose %q", req.Purpose)
	}
}

func (g *LocalDialogueGenerator) GenerateDialogueStream(ctx context.Context, req *types.ToolRequest) (*schema.StreamReader[string], error) {
	message, err := g.GenerateDialogue(ctx, req)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]string{message}), nil
}

func askParameter(d *types.ParameterDescriptor) string {
	label := d.Label
	if label == "" {
		label = d.Key
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Please provide %s.", label)
	if d.HelpText != "" {
		fmt.Fprintf(&sb, " %s", strings.TrimSpace(d.HelpText))
	}
	if len(d.Options) > 0 {
		fmt.Fprintf(&sb, " Options: %s.", strings.Join(d.Options, ", "))
	}
	if d.Example != "" {
		fmt.Fprintf(&sb, " For example: %s", d.Example)
	}
	return sb.String()
}

type FailbackDialogueGenerator struct {
	generators []Generator
}

func NewFailbackDialogueGenerator(generators ...Generator) *FailbackDialogueGenerator {
	return &FailbackDialogueGenerator{generators: generators}
}

func (g *FailbackDialogueGenerator) GenerateDialogue(ctx context.Context, req *types.ToolRequest) (string, error) {
	var lastErr error
	for _, generator := range g.generators {
		message, err := generator.GenerateDialogue(ctx, req)
		if err == nil && strings.TrimSpace(message) != "" {
			return message, nil
		}
		if err == nil {
			err = fmt.Errorf("empty dialogue message")
		}
		lastErr = err
	}
	return "", fmt.Errorf("all dialogue generators failed: %w", lastErr)
}

func (g *FailbackDialogueGenerator) GenerateDialogueStream(ctx context.Context, req *types.ToolRequest) (*schema.StreamReader[string], error) {
	var lastErr error
	for _, generator := range g.generators {
		sg, ok := generator.(StreamGenerator)
		if !ok {
			continue
		}
		stream, err := sg.GenerateDialogueStream(ctx, req)
		if err == nil {
			return stream, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no streaming generator configured")
	}
	return nil, fmt.Errorf("all dialogue generators failed: %w", lastErr)
}
