package security

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"dmchat/internal/domain/auth"
	"dmchat/internal/domain/user"
)

var ErrSecretRequired = errors.New("security: jwt secret is required")

type CustomClaims struct {
	UserID int64  `json:"userId"`
	Name   string `json:"name,omitempty"`
	Email  string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// JWTManager signs and verifies HS256 tokens.
type JWTManager struct {
	Secret []byte
	TTL    time.Duration
	Issuer string
	Now    func() time.Time
}

func (m JWTManager) Issue(identity auth.Identity) (string, error) {
	if len(m.Secret) == 0 {
		return "", ErrSecretRequired
	}
	if !identity.Valid() {
		return "", user.ErrIDRequired
	}
	now := m.now()
	claims := CustomClaims{
		UserID: int64(identity.UserID),
		Name:   identity.Name,
		Email:  identity.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(int64(identity.UserID), 10),
			Issuer:    m.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl())),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.Secret)
	if err != nil {
		return "", fmt.Errorf("security: sign token: %w", err)
	}
	return signed, nil
}

func (m JWTManager) Verify(raw string) (auth.Identity, error) {
	if raw == "" {
		return auth.Identity{}, auth.ErrTokenRequired
	}
	if len(m.Secret) == 0 {
		return auth.Identity{}, ErrSecretRequired
	}
	claims := &CustomClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return m.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return auth.Identity{}, auth.ErrTokenExpired
		}
		return auth.Identity{}, fmt.Errorf("%w: %v", auth.ErrTokenMalformed, err)
	}
	identity := auth.Identity{UserID: user.ID(claims.UserID), Name: claims.Name, Email: claims.Email}
	if !identity.Valid() {
		return auth.Identity{}, auth.ErrTokenMalformed
	}
	return identity, nil
}

func (m JWTManager) ttl() time.Duration {
	if m.TTL > 0 {
		return m.TTL
	}
	return time.Hour
}

func (m JWTManager) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

var (
	_ auth.TokenIssuer   = JWTManager{}
	_ auth.TokenVerifier = JWTManager{}
)
