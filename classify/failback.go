package classify

import (
	"context"
	"fmt"
	"log/slog"
)

// FailbackClassifier tries each classifier in turn and returns the first success.
type FailbackClassifier struct {
	classifiers []Classifier
}

func NewFailbackClassifier(classifiers ...Classifier) *FailbackClassifier {
	return &FailbackClassifier{classifiers: classifiers}
}

func (c *FailbackClassifier) Classify(ctx context.Context, req *Request) (*Result, error) {
	var lastErr error
	for _, classifier := range c.classifiers {
		result, err := classifier.Classify(ctx, req)
		if err == nil {
			return result, nil
		}
		slog.Debug("Classifier failed, trying next", "error", err)
		lastErr = err
	}
	return nil, fmt.Errorf("all classifiers failed: %w", lastErr)
}
