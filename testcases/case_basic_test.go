package testcases

import (
	"context"
	"strings"
	"testing"

	"github.com/tbxark/draftagent/types"
)

// TestDraftNDA drafts an NDA whose parties are named in the first message.
func TestDraftNDA(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c := NewTestController(t)

	s, err := c.NewSession(ctx)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	reply := submit(ctx, t, c, s.ID, "Please draft a non-disclosure agreement between Acme Corp and Bob Smith.")
	reply = answerUntilDone(ctx, t, c, s.ID, reply, map[string]string{
		"party1_name": "Acme Corp",
		"party2_name": "Bob Smith",
	})

	if reply.Status != types.StatusComplete {
		t.Fatalf("expected complete, got %s", reply.Status)
	}
	if reply.Document == nil || !strings.Contains(*reply.Document, "Acme Corp") {
		t.Errorf("document should name the disclosing party")
	}
	if strings.Contains(*reply.Document, "{{") {
		t.Errorf("document still contains field markers")
	}
	if len(reply.FieldMarkers) == 0 {
		t.Errorf("expected field markers")
	}
	t.Logf("document:\n%s", *reply.Document)
}
