package mysql

import (
	"time"

	domainchat "dmchat/internal/domain/chat"
	domainuser "dmchat/internal/domain/user"
)

type userModel struct {
	ID           int64  `gorm:"primaryKey;autoIncrement"`
	Email        string `gorm:"size:255;not null;uniqueIndex"`
	Name         string `gorm:"size:255;not null"`
	Avatar       string `gorm:"size:1024"`
	PasswordHash string `gorm:"size:255;not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (userModel) TableName() string { return "users" }

func newUserModel(u *domainuser.User) userModel {
	return userModel{
		ID:           int64(u.ID),
		Email:        domainuser.NormalizeEmail(u.Email),
		Name:         u.Name,
		Avatar:       u.Avatar,
		PasswordHash: u.PasswordHash,
		CreatedAt:    u.CreatedAt.UTC(),
		UpdatedAt:    u.UpdatedAt.UTC(),
	}
}

func (m userModel) toDomain() *domainuser.User {
	return &domainuser.User{
		ID:           domainuser.ID(m.ID),
		Email:        m.Email,
		Name:         m.Name,
		Avatar:       m.Avatar,
		PasswordHash: m.PasswordHash,
		CreatedAt:    m.CreatedAt.UTC(),
		UpdatedAt:    m.UpdatedAt.UTC(),
	}
}

// conversationModel rows keep the orientation they were created with;
// pair_key is the unordered pair and carries the unique index.
type conversationModel struct {
	ID        string `gorm:"primaryKey;size:64"`
	UserOneID int64  `gorm:"not null;index"`
	UserTwoID int64  `gorm:"not null;index"`
	PairKey   string `gorm:"size:64;not null;uniqueIndex"`
	CreatedAt time.Time
}

func (conversationModel) TableName() string { return "conversations" }

func newConversationModel(c *domainchat.Conversation) conversationModel {
	return conversationModel{
		ID:        string(c.ID),
		UserOneID: int64(c.UserOneID),
		UserTwoID: int64(c.UserTwoID),
		PairKey:   c.PairKey(),
		CreatedAt: c.CreatedAt.UTC(),
	}
}

func (m conversationModel) toDomain() *domainchat.Conversation {
	return &domainchat.Conversation{
		ID:        domainchat.ConversationID(m.ID),
		UserOneID: domainuser.ID(m.UserOneID),
		UserTwoID: domainuser.ID(m.UserTwoID),
		CreatedAt: m.CreatedAt.UTC(),
	}
}

type messageModel struct {
	ID             int64              `gorm:"primaryKey;autoIncrement"`
	ConversationID string             `gorm:"size:64;not null;index:idx_messages_conversation"`
	Conversation   *conversationModel `gorm:"foreignKey:ConversationID;references:ID;constraint:OnDelete:CASCADE"`
	SenderID       int64              `gorm:"not null;index"`
	ReceiverID     int64              `gorm:"not null;index"`
	Body           string             `gorm:"type:text"`
	FileURL        string             `gorm:"size:2048"`
	FileType       string             `gorm:"size:128"`
	FileName       string             `gorm:"size:512"`
	FilePublicID   string             `gorm:"size:1024"`
	Edited         bool               `gorm:"not null;default:false"`
	Unread         bool               `gorm:"not null;default:true"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (messageModel) TableName() string { return "messages" }

func newMessageModel(m *domainchat.Message) messageModel {
	model := messageModel{
		ID:             int64(m.ID),
		ConversationID: string(m.ConversationID),
		SenderID:       int64(m.SenderID),
		ReceiverID:     int64(m.ReceiverID),
		Body:           m.Body,
		Edited:         m.Edited,
		Unread:         m.Unread,
		CreatedAt:      m.CreatedAt.UTC(),
		UpdatedAt:      m.UpdatedAt.UTC(),
	}
	if a := m.Attachment; !a.IsZero() {
		model.FileURL = a.URL
		model.FileType = a.Type
		model.FileName = a.Name
		model.FilePublicID = a.PublicID
	}
	return model
}

func (m messageModel) toDomain() *domainchat.Message {
	out := &domainchat.Message{
		ID:             domainchat.MessageID(m.ID),
		ConversationID: domainchat.ConversationID(m.ConversationID),
		SenderID:       domainuser.ID(m.SenderID),
		ReceiverID:     domainuser.ID(m.ReceiverID),
		Body:           m.Body,
		Edited:         m.Edited,
		Unread:         m.Unread,
		CreatedAt:      m.CreatedAt.UTC(),
		UpdatedAt:      m.UpdatedAt.UTC(),
	}
	if m.FileURL != "" || m.FilePublicID != "" {
		out.Attachment = &domainchat.Attachment{
			URL:      m.FileURL,
			Type:     m.FileType,
			Name:     m.FileName,
			PublicID: m.FilePublicID,
		}
	}
	return out
}
