package validate

import (
	"context"
	"fmt"
)

type FailbackValidator struct {
	validators []Validator
}

func NewFailbackValidator(validators ...Validator) *FailbackValidator {
	return &FailbackValidator{validators: validators}
}

func (v *FailbackValidator) Validate(ctx context.Context, req *Request) (*Result, error) {
	var lastErr error
	for _, validator := range v.validators {
		res, err := validator.Validate(ctx, req)
		if err == nil {
			return res, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("all validators failed: %w", lastErr)
}
