// Package oracle defines the contract of the external nutrition-estimation model and the
// provider-independent pieces shared by its implementations: prompts, the response schema and
// strict parsing of model output.
package oracle

import (
	"context"
	"errors"
	"fmt"

	"vidasync"
)

// Estimator classifies food phrases and estimates their macros.
type Estimator interface {
	// Classify returns one Classification per phrase, in the same order.
	Classify(ctx context.Context, phrases []string) ([]Classification, error)
	// EstimateTotals is the legacy single-phrase path: aggregate macros only, no validity.
	EstimateTotals(ctx context.Context, phrase string) (vidasync.Macros, error)
}

// Classification is the model's verdict for one phrase.
type Classification struct {
	Ingredient     string
	CorrectedInput *string
	IsValidFood    bool
	vidasync.Macros
}

// ErrMalformedResponse matches every *ParseError.
var ErrMalformedResponse = errors.New("malformed oracle response")

// ParseError reports model output that does not match the expected schema.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", ErrMalformedResponse, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", ErrMalformedResponse, e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Err }

func (e *ParseError) Is(target error) bool { return target == ErrMalformedResponse }

func parseErrorf(err error, format string, args ...any) *ParseError {
	return &ParseError{Reason: fmt.Sprintf(format, args...), Err: err}
}
