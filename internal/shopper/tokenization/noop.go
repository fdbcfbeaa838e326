package tokenization

import (
	"context"

	"ucp-ap2-commerce/internal/shopper/ports"
)

// NoopAdapter is used when tokenization is disabled by configuration; it
// never tokenizes and always reports step-up as not required.
type NoopAdapter struct{}

var _ ports.TokenizationAdapter = NoopAdapter{}

func (NoopAdapter) Tokenize(ctx context.Context, pan string, expiryMonth, expiryYear int) (ports.TokenizeResult, error) {
	return ports.TokenizeResult{}, errDisabled
}

func (NoopAdapter) Authenticate(ctx context.Context, req ports.AuthenticateRequest) (ports.AuthenticateResult, error) {
	return ports.AuthenticateResult{Outcome: "not_required"}, nil
}

func (NoopAdapter) Verify(ctx context.Context, challengeID, code string) (bool, error) {
	return true, nil
}

type disabledError struct{}

func (disabledError) Error() string { return "tokenization disabled" }

var errDisabled = disabledError{}
