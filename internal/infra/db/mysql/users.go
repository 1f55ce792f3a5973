package mysql

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	domainuser "dmchat/internal/domain/user"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) ByID(ctx context.Context, id domainuser.ID) (*domainuser.User, error) {
	var model userModel
	if err := r.db.WithContext(ctx).First(&model, int64(id)).Error; err != nil {
		return nil, userErr(err, "find user")
	}
	return model.toDomain(), nil
}

func (r *UserRepository) ByIDs(ctx context.Context, ids []domainuser.ID) ([]*domainuser.User, error) {
	if len(ids) == 0 {
		return []*domainuser.User{}, nil
	}
	raw := make([]int64, 0, len(ids))
	for _, id := range ids {
		raw = append(raw, int64(id))
	}
	var models []userModel
	if err := r.db.WithContext(ctx).Where("id IN ?", raw).Order("id").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("mysql: find users: %w", err)
	}
	return mapUsers(models), nil
}

func (r *UserRepository) ByEmail(ctx context.Context, email string) (*domainuser.User, error) {
	var model userModel
	err := r.db.WithContext(ctx).Where("email = ?", domainuser.NormalizeEmail(email)).First(&model).Error
	if err != nil {
		return nil, userErr(err, "find user by email")
	}
	return model.toDomain(), nil
}

func (r *UserRepository) List(ctx context.Context) ([]*domainuser.User, error) {
	var models []userModel
	if err := r.db.WithContext(ctx).Order("id").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("mysql: list users: %w", err)
	}
	return mapUsers(models), nil
}

func (r *UserRepository) Create(ctx context.Context, u *domainuser.User) error {
	if u == nil {
		return domainuser.ErrIDRequired
	}
	model := newUserModel(u)
	model.ID = 0
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return userErr(err, "insert user")
	}
	u.ID = domainuser.ID(model.ID)
	return nil
}

func (r *UserRepository) Update(ctx context.Context, u *domainuser.User) error {
	if u == nil || !u.ID.Valid() {
		return domainuser.ErrIDRequired
	}
	model := newUserModel(u)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current userModel
		if err := tx.Select("id").First(&current, model.ID).Error; err != nil {
			return userErr(err, "find user")
		}
		err := tx.Model(&current).Updates(map[string]any{
			"email":         model.Email,
			"name":          model.Name,
			"avatar":        model.Avatar,
			"password_hash": model.PasswordHash,
			"updated_at":    model.UpdatedAt,
		}).Error
		if err != nil {
			return userErr(err, "update user")
		}
		return nil
	})
}

func (r *UserRepository) Delete(ctx context.Context, id domainuser.ID) error {
	res := r.db.WithContext(ctx).Delete(&userModel{}, int64(id))
	if res.Error != nil {
		return fmt.Errorf("mysql: delete user: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domainuser.ErrNotFound
	}
	return nil
}

func mapUsers(models []userModel) []*domainuser.User {
	out := make([]*domainuser.User, 0, len(models))
	for _, m := range models {
		out = append(out, m.toDomain())
	}
	return out
}

func userErr(err error, action string) error {
	switch {
	case isNotFound(err):
		return domainuser.ErrNotFound
	case isDuplicate(err):
		return domainuser.ErrEmailAlreadyUsed
	default:
		return fmt.Errorf("mysql: %s: %w", action, err)
	}
}

var _ domainuser.Repository = (*UserRepository)(nil)
