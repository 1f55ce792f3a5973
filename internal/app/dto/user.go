package dto

import (
	"time"

	"github.com/samber/lo"

	domainuser "dmchat/internal/domain/user"
)

type UserProfile struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Avatar    string    `json:"avatar,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type AuthResponse struct {
	User  UserProfile `json:"user"`
	Token string      `json:"token"`
}

func MapUserProfile(u *domainuser.User) UserProfile {
	if u == nil {
		return UserProfile{}
	}
	return UserProfile{
		ID:        int64(u.ID),
		Email:     u.Email,
		Name:      u.Name,
		Avatar:    u.Avatar,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

func MapUserProfiles(users []*domainuser.User) []UserProfile {
	return lo.Map(users, func(u *domainuser.User, _ int) UserProfile {
		return MapUserProfile(u)
	})
}

func NewAuthResponse(u *domainuser.User, token string) AuthResponse {
	return AuthResponse{
		User:  MapUserProfile(u),
		Token: token,
	}
}
