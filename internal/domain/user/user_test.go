package user_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"dmchat/internal/domain/user"
)

func TestParseID(t *testing.T) {
	req := require.New(t)

	id, err := user.ParseID(" 42 ")
	req.NoError(err)
	req.Equal(user.ID(42), id)
	req.Equal("42", id.String())

	_, err = user.ParseID("")
	req.ErrorIs(err, user.ErrIDRequired)

	for _, raw := range []string{"abc", "0", "-3", "1.5"} {
		_, err = user.ParseID(raw)
		req.ErrorIs(err, user.ErrInvalidID, raw)
	}
}

func TestNewUserNormalizesFields(t *testing.T) {
	req := require.New(t)
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.FixedZone("X", 3600))

	u, err := user.NewUser(user.CreateParams{
		Email:        "  Ann@Example.COM ",
		Name:         " Ann ",
		Avatar:       " https://cdn/a.png ",
		PasswordHash: "hash",
		CreatedAt:    created,
	})
	req.NoError(err)
	req.Equal(user.ID(0), u.ID)
	req.Equal("ann@example.com", u.Email)
	req.Equal("Ann", u.Name)
	req.Equal("https://cdn/a.png", u.Avatar)
	req.Equal(time.UTC, u.CreatedAt.Location())
	req.Equal(u.CreatedAt, u.UpdatedAt)
}

func TestNewUserRejectsMissingFields(t *testing.T) {
	req := require.New(t)

	_, err := user.NewUser(user.CreateParams{Name: "a", PasswordHash: "h"})
	req.ErrorIs(err, user.ErrEmailRequired)

	_, err = user.NewUser(user.CreateParams{Email: "a@b.c", PasswordHash: "h"})
	req.ErrorIs(err, user.ErrNameRequired)

	_, err = user.NewUser(user.CreateParams{Email: "a@b.c", Name: "a"})
	req.ErrorIs(err, user.ErrPasswordHashMissing)
}

func TestUpdateProfile(t *testing.T) {
	req := require.New(t)
	u := &user.User{ID: 1, Name: "old", Avatar: "x"}
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	req.ErrorIs(u.UpdateProfile("   ", "", now), user.ErrNameRequired)
	req.Equal("old", u.Name)

	req.NoError(u.UpdateProfile("new", "", now))
	req.Equal("new", u.Name)
	req.Empty(u.Avatar)
	req.Equal(now, u.UpdatedAt)
}
