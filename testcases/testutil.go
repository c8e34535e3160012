package testcases

import (
	"context"
	"testing"

	"github.com/tbxark/draftagent/agent"
	"github.com/tbxark/draftagent/internal/testutil"
	"github.com/tbxark/draftagent/registry"
	"github.com/tbxark/draftagent/types"
)

// NewTestController builds a controller backed by a live chat model. The test is
// skipped unless live tests are enabled.
func NewTestController(t *testing.T) *agent.Controller {
	t.Helper()
	chatModel := testutil.InitChatModel(t)
	if chatModel == nil {
		return nil
	}
	reg, err := registry.Default()
	if err != nil {
		t.Fatalf("failed to load registry: %v", err)
	}
	machine, err := agent.NewToolBasedMachine(reg, chatModel, "English")
	if err != nil {
		t.Fatalf("failed to create machine: %v", err)
	}
	recognizer, err := agent.NewToolBasedIntentRecognizer(chatModel)
	if err != nil {
		t.Fatalf("failed to create intent recognizer: %v", err)
	}
	controller, err := agent.NewController(machine, agent.WithIntentRecognizer(recognizer))
	if err != nil {
		t.Fatalf("failed to create controller: %v", err)
	}
	return controller
}

// submit sends msg and fails the test on error.
func submit(ctx context.Context, t *testing.T, c *agent.Controller, id, msg string) *agent.Reply {
	t.Helper()
	reply, err := c.SubmitMessage(ctx, id, msg)
	if err != nil {
		t.Fatalf("submit %q failed: %v", msg, err)
	}
	t.Logf("[%s] user: %s", reply.Status, msg)
	t.Logf("[%s] assistant: %s", reply.Status, reply.Message)
	return reply
}

// answerUntilDone replies to parameter questions from answers until the session completes.
func answerUntilDone(ctx context.Context, t *testing.T, c *agent.Controller, id string, reply *agent.Reply, answers map[string]string) *agent.Reply {
	t.Helper()
	for i := 0; i < 10 && reply.Status != types.StatusComplete; i++ {
		s, err := c.Session(ctx, id)
		if err != nil {
			t.Fatalf("read session: %v", err)
		}
		answer, ok := answers[s.PendingKey]
		if !ok {
			t.Fatalf("no answer for pending parameter %q (status %s)", s.PendingKey, s.Status)
		}
		reply = submit(ctx, t, c, id, answer)
	}
	return reply
}
