package chat

import (
	"log/slog"

	"dmchat/internal/app/commands"
	"dmchat/internal/app/dto"
	"dmchat/internal/app/queries"
)

// Module groups the collaborators shared by the chat handlers.
type Module struct {
	Directory   *Directory
	Store       *MessageStore
	Attachments Attachments
	Notifier    *Notifier
	Logger      *slog.Logger
}

func (m Module) Register(cmdBus *commands.InMemoryBus, queryBus *queries.InMemoryBus) {
	commands.RegisterHandler[SendMessageCommand, dto.ChatMessage](cmdBus, &SendMessageHandler{
		Directory:   m.Directory,
		Store:       m.Store,
		Attachments: m.Attachments,
		Notifier:    m.Notifier,
		Logger:      m.Logger,
	})
	commands.RegisterHandler[EditMessageCommand, dto.ChatMessage](cmdBus, &EditMessageHandler{
		Store:    m.Store,
		Notifier: m.Notifier,
		Logger:   m.Logger,
	})
	commands.RegisterHandler[DeleteMessageCommand, DeleteMessageResult](cmdBus, &DeleteMessageHandler{
		Store:       m.Store,
		Attachments: m.Attachments,
		Notifier:    m.Notifier,
		Logger:      m.Logger,
	})
	commands.RegisterHandler[MarkReadCommand, MarkReadResult](cmdBus, &MarkReadHandler{
		Store:  m.Store,
		Logger: m.Logger,
	})
	queries.RegisterHandler[ListConversationsQuery, []dto.Conversation](queryBus, &ListConversationsHandler{
		Directory: m.Directory,
	})
	queries.RegisterHandler[GetThreadQuery, dto.Thread](queryBus, &GetThreadHandler{
		Store: m.Store,
	})
}
