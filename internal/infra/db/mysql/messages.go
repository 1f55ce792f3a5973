package mysql

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	domainchat "dmchat/internal/domain/chat"
	domainuser "dmchat/internal/domain/user"
)

type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) Append(ctx context.Context, m *domainchat.Message) error {
	if m == nil {
		return domainchat.ErrEmptyMessage
	}
	model := newMessageModel(m)
	model.ID = 0
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return fmt.Errorf("mysql: insert message: %w", err)
	}
	m.ID = domainchat.MessageID(model.ID)
	return nil
}

func (r *MessageRepository) ByID(ctx context.Context, conversationID domainchat.ConversationID, id domainchat.MessageID) (*domainchat.Message, error) {
	model, err := r.first(r.db.WithContext(ctx), conversationID, id)
	if err != nil {
		return nil, err
	}
	return model.toDomain(), nil
}

func (r *MessageRepository) Edit(ctx context.Context, conversationID domainchat.ConversationID, id domainchat.MessageID, body string, at time.Time) (*domainchat.Message, error) {
	var out *domainchat.Message
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		model, err := r.first(tx, conversationID, id)
		if err != nil {
			return err
		}
		err = tx.Model(model).Updates(map[string]any{
			"body":       body,
			"edited":     true,
			"updated_at": at.UTC(),
		}).Error
		if err != nil {
			return fmt.Errorf("mysql: edit message: %w", err)
		}
		model.Body = body
		model.Edited = true
		model.UpdatedAt = at.UTC()
		out = model.toDomain()
		return nil
	})
	return out, err
}

func (r *MessageRepository) Remove(ctx context.Context, conversationID domainchat.ConversationID, id domainchat.MessageID) (*domainchat.Message, error) {
	var out *domainchat.Message
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		model, err := r.first(tx, conversationID, id)
		if err != nil {
			return err
		}
		res := tx.Delete(&messageModel{}, model.ID)
		if res.Error != nil {
			return fmt.Errorf("mysql: remove message: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return domainchat.ErrMessageNotFound
		}
		out = model.toDomain()
		return nil
	})
	return out, err
}

func (r *MessageRepository) MarkRead(ctx context.Context, conversationID domainchat.ConversationID, readerID domainuser.ID) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&messageModel{}).
		Where("conversation_id = ? AND sender_id <> ? AND unread = ?", string(conversationID), int64(readerID), true).
		Update("unread", false)
	if res.Error != nil {
		return 0, fmt.Errorf("mysql: mark read: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *MessageRepository) ListByConversation(ctx context.Context, conversationID domainchat.ConversationID) ([]*domainchat.Message, error) {
	var models []messageModel
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", string(conversationID)).
		Order("id").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("mysql: list messages: %w", err)
	}
	out := make([]*domainchat.Message, 0, len(models))
	for _, m := range models {
		out = append(out, m.toDomain())
	}
	return out, nil
}

func (r *MessageRepository) AttachmentsForUser(ctx context.Context, userID domainuser.ID) ([]domainchat.Attachment, error) {
	var models []messageModel
	err := r.db.WithContext(ctx).
		Where("(sender_id = ? OR receiver_id = ?) AND file_public_id <> ''", int64(userID), int64(userID)).
		Order("id").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("mysql: list attachments: %w", err)
	}
	out := make([]domainchat.Attachment, 0, len(models))
	for _, m := range models {
		if msg := m.toDomain(); msg.HasAttachment() {
			out = append(out, *msg.Attachment)
		}
	}
	return out, nil
}

func (r *MessageRepository) first(db *gorm.DB, conversationID domainchat.ConversationID, id domainchat.MessageID) (*messageModel, error) {
	var model messageModel
	err := db.Where("id = ? AND conversation_id = ?", int64(id), string(conversationID)).First(&model).Error
	if err != nil {
		if isNotFound(err) {
			return nil, domainchat.ErrMessageNotFound
		}
		return nil, fmt.Errorf("mysql: find message: %w", err)
	}
	return &model, nil
}

var _ domainchat.MessageRepository = (*MessageRepository)(nil)
