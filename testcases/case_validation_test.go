package testcases

import (
	"context"
	"testing"

	"github.com/tbxark/draftagent/types"
)

// TestInvalidAnswerIsReasked checks that an out-of-range value keeps the same question open.
func TestInvalidAnswerIsReasked(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c := NewTestController(t)

	s, err := c.NewSession(ctx)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	reply := submit(ctx, t, c, s.ID, "Draft a residential lease agreement. The landlord is Jane Doe and the tenant is John Roe.")
	for i := 0; i < 5; i++ {
		stored, err := c.Session(ctx, s.ID)
		if err != nil {
			t.Fatalf("read session: %v", err)
		}
		if stored.PendingKey == "monthly_rent" {
			break
		}
		if stored.Status == types.StatusComplete {
			t.Fatalf("completed before monthly_rent was asked")
		}
		reply = submit(ctx, t, c, s.ID, map[string]string{
			"landlord_name":    "Jane Doe",
			"tenant_name":      "John Roe",
			"property_address": "12 Elm Street, Springfield",
		}[stored.PendingKey])
	}

	reply = submit(ctx, t, c, s.ID, "minus forty dollars")
	if reply.Status != types.StatusAwaitParameterInput {
		t.Errorf("expected to await input again, got %s", reply.Status)
	}
	stored, err := c.Session(ctx, s.ID)
	if err != nil {
		t.Fatalf("read session: %v", err)
	}
	if stored.PendingKey != "monthly_rent" || stored.LastError == "" {
		t.Errorf("expected monthly_rent to be reasked with an error, got %q / %q", stored.PendingKey, stored.LastError)
	}
	if _, ok := stored.CollectedParameters["monthly_rent"]; ok {
		t.Errorf("invalid rent must not be collected")
	}
}
