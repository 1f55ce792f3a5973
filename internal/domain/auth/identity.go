package auth

import (
	"context"
	"errors"
	"strings"

	"dmchat/internal/domain/user"
)

var (
	ErrTokenRequired   = errors.New("auth: token is required")
	ErrUnauthenticated = errors.New("auth: unauthenticated")
	ErrTokenExpired    = errors.New("auth: token expired")
	ErrTokenMalformed  = errors.New("auth: token malformed")
)

// Identity is the caller resolved from a bearer credential.
type Identity struct {
	UserID user.ID
	Name   string
	Email  string
}

func (i Identity) Valid() bool {
	return i.UserID.Valid()
}

// IdentityFromUser builds the identity embedded into issued tokens.
func IdentityFromUser(u *user.User) Identity {
	if u == nil {
		return Identity{}
	}
	return Identity{UserID: u.ID, Name: u.Name, Email: u.Email}
}

type identityKey struct{}

func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(identityKey{}).(Identity)
	if !ok || !identity.Valid() {
		return Identity{}, false
	}
	return identity, true
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	const prefix = "bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}
