package users

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	domainauth "dmchat/internal/domain/auth"
	domainuser "dmchat/internal/domain/user"
)

var (
	ErrWrongPassword    = errors.New("users: password is incorrect")
	ErrPasswordTooShort = errors.New("users: password must be at least 6 characters")
	ErrNotAccountOwner  = errors.New("users: caller does not own this account")
)

const minPasswordLength = 6

type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}

// AccountEvents is told about account lifecycle changes other stores react to.
type AccountEvents interface {
	AccountDeleted(ctx context.Context, event domainuser.Deleted) error
}

type Service struct {
	Users     domainuser.Repository
	Passwords PasswordHasher
	Tokens    domainauth.TokenIssuer
	Events    AccountEvents
	Logger    *slog.Logger
	Now       func() time.Time
}

type RegisterParams struct {
	Email    string
	Name     string
	Avatar   string
	Password string
}

type LoginParams struct {
	Email    string
	Password string
}

type ProfileParams struct {
	Name   string
	Avatar string
}

type AuthResult struct {
	User  *domainuser.User
	Token string
}

func (s *Service) Register(ctx context.Context, params RegisterParams) (*AuthResult, error) {
	if err := s.ensureDependencies(); err != nil {
		return nil, err
	}
	if err := validatePassword(params.Password); err != nil {
		return nil, err
	}
	hash, err := s.Passwords.Hash(params.Password)
	if err != nil {
		return nil, err
	}
	u, err := domainuser.NewUser(domainuser.CreateParams{
		Email:        params.Email,
		Name:         params.Name,
		Avatar:       params.Avatar,
		PasswordHash: hash,
		CreatedAt:    s.now(),
	})
	if err != nil {
		return nil, err
	}
	if err := s.Users.Create(ctx, u); err != nil {
		return nil, err
	}
	token, err := s.Tokens.Issue(domainauth.IdentityFromUser(u))
	if err != nil {
		return nil, err
	}
	s.log().Info("user registered", "user_id", u.ID, "email", u.Email)
	return &AuthResult{User: u, Token: token}, nil
}

// Login fails with domainuser.ErrNotFound for an unknown email and
// ErrWrongPassword for a bad password.
func (s *Service) Login(ctx context.Context, params LoginParams) (*AuthResult, error) {
	if err := s.ensureDependencies(); err != nil {
		return nil, err
	}
	email := domainuser.NormalizeEmail(params.Email)
	if email == "" {
		return nil, domainuser.ErrEmailRequired
	}
	u, err := s.Users.ByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if err := s.Passwords.Compare(u.PasswordHash, params.Password); err != nil {
		return nil, ErrWrongPassword
	}
	token, err := s.Tokens.Issue(domainauth.IdentityFromUser(u))
	if err != nil {
		return nil, err
	}
	s.log().Info("user authenticated", "user_id", u.ID)
	return &AuthResult{User: u, Token: token}, nil
}

func (s *Service) Profile(ctx context.Context, id domainuser.ID) (*domainuser.User, error) {
	if s.Users == nil {
		return nil, errors.New("users: repository required")
	}
	return s.Users.ByID(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]*domainuser.User, error) {
	if s.Users == nil {
		return nil, errors.New("users: repository required")
	}
	return s.Users.List(ctx)
}

func (s *Service) UpdateProfile(ctx context.Context, callerID, targetID domainuser.ID, params ProfileParams) (*domainuser.User, error) {
	u, err := s.owned(ctx, callerID, targetID)
	if err != nil {
		return nil, err
	}
	if err := u.UpdateProfile(params.Name, params.Avatar, s.now()); err != nil {
		return nil, err
	}
	if err := s.Users.Update(ctx, u); err != nil {
		return nil, err
	}
	s.log().Info("user profile updated", "user_id", u.ID)
	return u, nil
}

func (s *Service) ChangePassword(ctx context.Context, callerID, targetID domainuser.ID, password string) (*domainuser.User, error) {
	if err := s.ensureDependencies(); err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}
	u, err := s.owned(ctx, callerID, targetID)
	if err != nil {
		return nil, err
	}
	hash, err := s.Passwords.Hash(password)
	if err != nil {
		return nil, err
	}
	if err := u.SetPasswordHash(hash, s.now()); err != nil {
		return nil, err
	}
	if err := s.Users.Update(ctx, u); err != nil {
		return nil, err
	}
	s.log().Info("user password changed", "user_id", u.ID)
	return u, nil
}

// Delete removes the caller's account and announces it so attachments can be purged.
// Conversations and messages stay in place; removing them is up to the datastore.
func (s *Service) Delete(ctx context.Context, callerID domainuser.ID) error {
	if s.Users == nil {
		return errors.New("users: repository required")
	}
	if err := s.Users.Delete(ctx, callerID); err != nil {
		return err
	}
	s.log().Info("user deleted", "user_id", callerID)
	if s.Events == nil {
		return nil
	}
	if err := s.Events.AccountDeleted(ctx, domainuser.Deleted{UserID: callerID, At: s.now().UTC()}); err != nil {
		s.log().Error("account deletion event failed", "user_id", callerID, "err", err)
	}
	return nil
}

func (s *Service) owned(ctx context.Context, callerID, targetID domainuser.ID) (*domainuser.User, error) {
	if s.Users == nil {
		return nil, errors.New("users: repository required")
	}
	u, err := s.Users.ByID(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if u.ID != callerID {
		return nil, ErrNotAccountOwner
	}
	return u, nil
}

func validatePassword(password string) error {
	if utf8.RuneCountInString(strings.TrimSpace(password)) < minPasswordLength {
		return ErrPasswordTooShort
	}
	return nil
}

func (s *Service) ensureDependencies() error {
	switch {
	case s.Users == nil:
		return errors.New("users: repository required")
	case s.Passwords == nil:
		return errors.New("users: password hasher required")
	case s.Tokens == nil:
		return errors.New("users: token issuer required")
	default:
		return nil
	}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) log() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// IsValidation reports whether err was caused by bad registration or profile input.
func IsValidation(err error) bool {
	return errors.Is(err, ErrPasswordTooShort) ||
		errors.Is(err, domainuser.ErrEmailRequired) ||
		errors.Is(err, domainuser.ErrNameRequired) ||
		errors.Is(err, ErrWrongPassword)
}
