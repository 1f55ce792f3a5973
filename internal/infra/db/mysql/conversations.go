package mysql

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	domainchat "dmchat/internal/domain/chat"
	domainuser "dmchat/internal/domain/user"
)

type ConversationRepository struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

func (r *ConversationRepository) FindPair(ctx context.Context, a, b domainuser.ID) (*domainchat.Conversation, error) {
	var model conversationModel
	err := r.db.WithContext(ctx).
		Where("(user_one_id = ? AND user_two_id = ?) OR (user_one_id = ? AND user_two_id = ?)", int64(a), int64(b), int64(b), int64(a)).
		First(&model).Error
	if err != nil {
		return nil, conversationErr(err, "find conversation")
	}
	return model.toDomain(), nil
}

func (r *ConversationRepository) ByID(ctx context.Context, id domainchat.ConversationID) (*domainchat.Conversation, error) {
	var model conversationModel
	if err := r.db.WithContext(ctx).Where("id = ?", string(id)).First(&model).Error; err != nil {
		return nil, conversationErr(err, "find conversation")
	}
	return model.toDomain(), nil
}

func (r *ConversationRepository) Create(ctx context.Context, c *domainchat.Conversation) error {
	if c == nil {
		return domainchat.ErrParticipantRequired
	}
	model := newConversationModel(c)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return conversationErr(err, "insert conversation")
	}
	return nil
}

func (r *ConversationRepository) ListForUser(ctx context.Context, userID domainuser.ID) ([]*domainchat.Conversation, error) {
	var models []conversationModel
	err := r.db.WithContext(ctx).
		Where("user_one_id = ? OR user_two_id = ?", int64(userID), int64(userID)).
		Order("created_at, id").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("mysql: list conversations: %w", err)
	}
	out := make([]*domainchat.Conversation, 0, len(models))
	for _, m := range models {
		out = append(out, m.toDomain())
	}
	return out, nil
}

func conversationErr(err error, action string) error {
	switch {
	case isNotFound(err):
		return domainchat.ErrConversationNotFound
	case isDuplicate(err):
		return domainchat.ErrDuplicateConversation
	default:
		return fmt.Errorf("mysql: %s: %w", action, err)
	}
}

var _ domainchat.ConversationRepository = (*ConversationRepository)(nil)
