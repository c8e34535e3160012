package intent

import (
	"context"
	"strings"

	"github.com/tbxark/draftagent/types"
)

type LocalIntentRecognizer struct {
	CancelKeywords []string
}

func NewLocalIntentRecognizer() *LocalIntentRecognizer {
	return &LocalIntentRecognizer{
		CancelKeywords: []string{"cancel", "stop", "quit", "exit", "abort", "never mind", "nevermind", "forget it"},
	}
}

// RecognizeIntent only matches whole-message keywords, so an answer such as
// "Stop & Shop LLC" is never mistaken for a cancellation.
func (p *LocalIntentRecognizer) RecognizeIntent(ctx context.Context, req *types.ToolRequest) (Intent, error) {
	if req == nil {
		return Continue, nil
	}
	normalized := strings.ToLower(strings.TrimSpace(req.MessagePair.Answer))
	normalized = strings.TrimRight(normalized, ".!")
	for _, keyword := range p.CancelKeywords {
		if normalized == keyword {
			return Cancel, nil
		}
	}
	return Continue, nil
}

type FailbackIntentRecognizer struct {
	recognizers []Recognizer
}

func NewFailbackIntentRecognizer(recognizers ...Recognizer) *FailbackIntentRecognizer {
	return &FailbackIntentRecognizer{recognizers: recognizers}
}

func (p *FailbackIntentRecognizer) RecognizeIntent(ctx context.Context, req *types.ToolRequest) (Intent, error) {
	var lastErr error
	for _, recognizer := range p.recognizers {
		result, err := recognizer.RecognizeIntent(ctx, req)
		if err == nil {
			return result, nil
		}
		lastErr = err
	}
	return Continue, lastErr
}
