package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	domainauth "dmchat/internal/domain/auth"
)

// Service is the identity gate: it turns a bearer credential into the caller's
// identity. It performs no resource authorization.
type Service struct {
	Verifier domainauth.TokenVerifier
	Logger   *slog.Logger
}

// Authenticate fails with domainauth.ErrUnauthenticated for a missing, malformed,
// expired or foreign credential.
func (s *Service) Authenticate(ctx context.Context, credential string) (domainauth.Identity, error) {
	if s.Verifier == nil {
		return domainauth.Identity{}, errors.New("auth: token verifier required")
	}
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return domainauth.Identity{}, fmt.Errorf("%w: %w", domainauth.ErrUnauthenticated, domainauth.ErrTokenRequired)
	}
	identity, err := s.Verifier.Verify(credential)
	if err != nil {
		if s.Logger != nil {
			s.Logger.DebugContext(ctx, "credential rejected", "err", err)
		}
		return domainauth.Identity{}, fmt.Errorf("%w: %w", domainauth.ErrUnauthenticated, err)
	}
	if !identity.Valid() {
		return domainauth.Identity{}, domainauth.ErrUnauthenticated
	}
	return identity, nil
}
