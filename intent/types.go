package intent

import (
	"context"

	"github.com/tbxark/draftagent/types"
)

type Intent string

const (
	// Cancel abandons the drafting session.
	Cancel Intent = "cancel"
	// Continue is any other message; the session handles it normally.
	Continue Intent = "continue"
)

// Recognizer decides whether the latest user answer abandons the session.
// The answer is read from req.MessagePair.
type Recognizer interface {
	RecognizeIntent(ctx context.Context, req *types.ToolRequest) (Intent, error)
}
