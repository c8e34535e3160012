package generate

import (
	"context"
	"fmt"
	"log/slog"
)

type FailbackGenerator struct {
	generators []Generator
}

func NewFailbackGenerator(generators ...Generator) *FailbackGenerator {
	return &FailbackGenerator{generators: generators}
}

func (g *FailbackGenerator) Generate(ctx context.Context, req *Request) (*Draft, error) {
	var lastErr error
	for _, generator := range g.generators {
		draft, err := generator.Generate(ctx, req)
		if err == nil {
			return draft, nil
		}
		slog.Debug("Generator failed, trying next", "error", err)
		lastErr = err
	}
	return nil, fmt.Errorf("all generators failed: %w", lastErr)
}
