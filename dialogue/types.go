package dialogue

import (
	"context"

	"github.com/cloudwego/eino/schema"

	"github.com/tbxark/draftagent/types"
)

// Generator phrases the next assistant message for a session.
type Generator interface {
	GenerateDialogue(ctx context.Context, req *types.ToolRequest) (string, error)
}

// StreamGenerator is implemented by generators that can stream the message.
type StreamGenerator interface {
	Generator
	GenerateDialogueStream(ctx context.Context, req *types.ToolRequest) (*schema.StreamReader[string], error)
}
