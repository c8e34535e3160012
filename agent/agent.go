package agent

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/adk"
	"github.com/cloudwego/eino/schema"
)

var _ adk.Agent = (*DraftAgent)(nil)

// DraftAgent exposes a Controller as an eino adk agent. The session is routed by
// WithSessionID and created on first use.
type DraftAgent struct {
	name        string
	description string
	controller  *Controller
}

func NewDraftAgent(name, description string, controller *Controller) *DraftAgent {
	return &DraftAgent{
		name:        name,
		description: description,
		controller:  controller,
	}
}

func (a *DraftAgent) Name(ctx context.Context) string {
	return a.name
}

func (a *DraftAgent) Description(ctx context.Context) string {
	return a.description
}

func (a *DraftAgent) Run(ctx context.Context, input *adk.AgentInput, options ...adk.AgentRunOption) *adk.AsyncIterator[*adk.AgentEvent] {
	iter, gen := adk.NewAsyncIteratorPair[*adk.AgentEvent]()
	go func() {
		defer func() {
			e := recover()
			if e != nil {
				gen.Send(&adk.AgentEvent{
					Err: fmt.Errorf("recover from panic: %v", e),
				})
			}
			gen.Close()
		}()
		if input == nil || len(input.Messages) == 0 {
			gen.Send(&adk.AgentEvent{
				Err: fmt.Errorf("no messages in input"),
			})
			return
		}
		id := sessionIDOrDefault(ctx)
		if _, err := a.controller.Open(ctx, id); err != nil {
			gen.Send(&adk.AgentEvent{
				Err: fmt.Errorf("open session failed: %w", err),
			})
			return
		}
		reply, err := a.controller.SubmitMessage(ctx, id, input.Messages[len(input.Messages)-1].Content)
		if err != nil {
			gen.Send(&adk.AgentEvent{
				Err: fmt.Errorf("submit message failed: %w", err),
			})
			return
		}
		content := reply.Message
		if reply.Document != nil {
			content = *reply.Document
		}
		gen.Send(&adk.AgentEvent{
			AgentName: a.name,
			Output: &adk.AgentOutput{
				MessageOutput: &adk.MessageVariant{
					IsStreaming: false,
					Message:     schema.AssistantMessage(content, nil),
					Role:        schema.Assistant,
				},
			},
		})
	}()
	return iter
}
