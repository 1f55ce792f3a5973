package auth

//go:generate go run go.uber.org/mock/mockgen -source=tokens.go -destination=../../mocks/mock_tokens.go -package=mocks

// TokenIssuer signs a credential for an identity.
type TokenIssuer interface {
	Issue(identity Identity) (string, error)
}

// TokenVerifier resolves a credential back into the identity it was issued for.
type TokenVerifier interface {
	Verify(token string) (Identity, error)
}
