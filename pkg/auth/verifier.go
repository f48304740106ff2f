package auth

import "context"

// Verifier is the credential-check surface the HTTP layer depends on.
// Implemented by Service; middleware tests substitute a stub.
type Verifier interface {
	VerifyAPIKey(ctx context.Context, token string) (*Principal, error)
	VerifySessionToken(ctx context.Context, token string) (*Principal, error)
}
