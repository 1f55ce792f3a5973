package security_test

import (
	"regexp"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"dmchat/internal/domain/auth"
	"dmchat/internal/infra/security"
)

func TestConversationIDGenerator(t *testing.T) {
	req := require.New(t)
	pattern := regexp.MustCompile(`^[A-Za-z0-9]{32}$`)
	gen := security.ConversationIDGenerator{}

	seen := make(map[string]struct{})
	for i := 0; i < 200; i++ {
		id, err := gen.NewConversationID()
		req.NoError(err)
		req.Regexp(pattern, string(id))
		seen[string(id)] = struct{}{}
	}
	req.Len(seen, 200)

	short, err := security.ConversationIDGenerator{Length: 8}.NewConversationID()
	req.NoError(err)
	req.Len(string(short), 8)
}

func TestJWTRoundTrip(t *testing.T) {
	req := require.New(t)
	now := time.Now()
	m := security.JWTManager{Secret: []byte("s3cret"), TTL: time.Hour, Now: func() time.Time { return now }}

	token, err := m.Issue(auth.Identity{UserID: 10, Name: "Ann", Email: "ann@x.io"})
	req.NoError(err)

	identity, err := m.Verify(token)
	req.NoError(err)
	req.Equal(auth.Identity{UserID: 10, Name: "Ann", Email: "ann@x.io"}, identity)
}

func TestJWTRejectsExpiredAndForeignTokens(t *testing.T) {
	req := require.New(t)
	issued := time.Now().Add(-2 * time.Hour)
	m := security.JWTManager{Secret: []byte("s3cret"), TTL: time.Hour, Now: func() time.Time { return issued }}
	token, err := m.Issue(auth.Identity{UserID: 10})
	req.NoError(err)

	current := security.JWTManager{Secret: []byte("s3cret")}
	_, err = current.Verify(token)
	req.ErrorIs(err, auth.ErrTokenExpired)

	other := security.JWTManager{Secret: []byte("other")}
	fresh, err := other.Issue(auth.Identity{UserID: 10})
	req.NoError(err)
	_, err = current.Verify(fresh)
	req.ErrorIs(err, auth.ErrTokenMalformed)

	_, err = current.Verify("not-a-token")
	req.ErrorIs(err, auth.ErrTokenMalformed)

	_, err = current.Verify("")
	req.ErrorIs(err, auth.ErrTokenRequired)
}

func TestJWTRejectsNoneAlgorithm(t *testing.T) {
	req := require.New(t)
	claims := security.CustomClaims{
		UserID: 1,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	req.NoError(err)

	_, err = security.JWTManager{Secret: []byte("s3cret")}.Verify(unsigned)
	req.ErrorIs(err, auth.ErrTokenMalformed)
}

func TestBcryptHasher(t *testing.T) {
	req := require.New(t)
	h := security.BcryptHasher{Cost: 4}

	hash, err := h.Hash("password123")
	req.NoError(err)
	req.NoError(h.Compare(hash, "password123"))
	req.ErrorIs(h.Compare(hash, "nope"), security.ErrPasswordMismatch)
}
