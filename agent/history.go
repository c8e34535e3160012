package agent

import (
	"github.com/cloudwego/eino/schema"

	"github.com/tbxark/draftagent/types"
)

type Trimmer interface {
	Trim(history []types.Turn) []types.Turn
}

// KeepLastNTrimmer keeps the last N turns. When N <= 0, it keeps nothing.
type KeepLastNTrimmer struct {
	N int
}

func (t KeepLastNTrimmer) Trim(history []types.Turn) []types.Turn {
	if t.N <= 0 {
		return nil
	}
	if len(history) <= t.N {
		return history
	}
	return history[len(history)-t.N:]
}

// Messages converts turns into eino chat messages, dropping empty and
// consecutive duplicate turns.
func Messages(history []types.Turn) []*schema.Message {
	out := make([]*schema.Message, 0, len(history))
	for _, turn := range history {
		if turn.Content == "" {
			continue
		}
		var msg *schema.Message
		switch turn.Role {
		case types.RoleAssistant:
			msg = schema.AssistantMessage(turn.Content, nil)
		default:
			msg = schema.UserMessage(turn.Content)
		}
		if len(out) > 0 {
			last := out[len(out)-1]
			if last.Role == msg.Role && last.Content == msg.Content {
				continue
			}
		}
		out = append(out, msg)
	}
	return out
}
