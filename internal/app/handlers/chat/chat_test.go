package chat_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"dmchat/internal/app/commands"
	"dmchat/internal/app/dto"
	"dmchat/internal/app/handlers/chat"
	"dmchat/internal/app/middleware"
	"dmchat/internal/app/queries"
	"dmchat/internal/app/services/attachments"
	domainchat "dmchat/internal/domain/chat"
	domainuser "dmchat/internal/domain/user"
	"dmchat/internal/infra/fanout"
	"dmchat/internal/infra/security"
	"dmchat/internal/infra/storage/memory"
	"dmchat/internal/mocks"
)

type fixture struct {
	users    *memory.UserRepository
	convs    *memory.ConversationRepository
	msgs     *memory.MessageRepository
	hub      *fanout.Hub
	module   chat.Module
	commands commands.Bus
	queries  queries.Bus
	ids      map[string]domainuser.ID
}

func newFixture(t *testing.T, files chat.Attachments) *fixture {
	t.Helper()
	f := &fixture{
		users: memory.NewUserRepository(),
		convs: memory.NewConversationRepository(),
		msgs:  memory.NewMessageRepository(),
		hub:   fanout.NewHub(16, nil),
		ids:   make(map[string]domainuser.ID),
	}
	t.Cleanup(f.hub.Close)
	for _, name := range []string{"ann", "bob", "cid"} {
		u := &domainuser.User{Email: name + "@x.io", Name: name, Avatar: "https://cdn/" + name + ".png"}
		require.NoError(t, f.users.Create(context.Background(), u))
		f.ids[name] = u.ID
	}
	store := &chat.MessageStore{Conversations: f.convs, Messages: f.msgs, Profiles: f.users}
	f.module = chat.Module{
		Directory:   &chat.Directory{Conversations: f.convs, Profiles: f.users, IDs: security.ConversationIDGenerator{}},
		Store:       store,
		Attachments: files,
		Notifier:    &chat.Notifier{Publisher: f.hub},
	}
	cmdBus := commands.NewInMemoryBus()
	queryBus := queries.NewInMemoryBus()
	f.module.Register(cmdBus, queryBus)
	validator := middleware.NewStructValidator()
	f.commands = middleware.ChainCommands(cmdBus, middleware.Validation(validator))
	f.queries = middleware.ChainQueries(queryBus, middleware.QueryValidation(validator))
	return f
}

func (f *fixture) subscribe(t *testing.T, id domainuser.ID) *fanout.Subscriber {
	t.Helper()
	s, err := f.hub.NewSubscriber()
	require.NoError(t, err)
	require.NoError(t, f.hub.Subscribe(s, id.String()))
	return s
}

func (f *fixture) send(t *testing.T, from, to domainuser.ID, body string) dto.ChatMessage {
	t.Helper()
	msg, err := commands.Dispatch[chat.SendMessageCommand, dto.ChatMessage](context.Background(), f.commands,
		chat.SendMessageCommand{SenderID: from, ReceiverID: to, Body: body})
	require.NoError(t, err)
	return msg
}

func nextEvent(t *testing.T, s *fanout.Subscriber) domainchat.Event {
	t.Helper()
	select {
	case raw := <-s.Messages():
		var ev domainchat.Event
		require.NoError(t, json.Unmarshal(raw, &ev))
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
		return domainchat.Event{}
	}
}

func TestGetOrCreateIsOrientationFree(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, nil)
	ctx := context.Background()

	first, err := f.module.Directory.GetOrCreate(ctx, 10, 20)
	req.NoError(err)
	second, err := f.module.Directory.GetOrCreate(ctx, 20, 10)
	req.NoError(err)
	req.Equal(first, second)
	req.Len(string(first), domainchat.ConversationIDLength)

	_, err = f.module.Directory.GetOrCreate(ctx, 10, 10)
	req.ErrorIs(err, domainchat.ErrSelfConversation)
}

// racingConversations lets a competitor create the pair between the lookup
// and the insert of the caller.
type racingConversations struct {
	*memory.ConversationRepository
	raced bool
}

func (r *racingConversations) Create(ctx context.Context, c *domainchat.Conversation) error {
	if !r.raced {
		r.raced = true
		competitor, err := domainchat.NewConversation("competitor", c.UserTwoID, c.UserOneID, time.Now())
		if err != nil {
			return err
		}
		if err := r.ConversationRepository.Create(ctx, competitor); err != nil {
			return err
		}
	}
	return r.ConversationRepository.Create(ctx, c)
}

func TestGetOrCreateRetriesAsLookupAfterDuplicate(t *testing.T) {
	req := require.New(t)
	repo := &racingConversations{ConversationRepository: memory.NewConversationRepository()}
	dir := &chat.Directory{Conversations: repo, IDs: security.ConversationIDGenerator{}}

	id, err := dir.GetOrCreate(context.Background(), 1, 2)
	req.NoError(err)
	req.Equal(domainchat.ConversationID("competitor"), id)

	list, err := repo.ListForUser(context.Background(), 1)
	req.NoError(err)
	req.Len(list, 1)
}

func TestSendMessageEndToEnd(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, nil)
	ann, bob := f.ids["ann"], f.ids["bob"]
	bobInbox := f.subscribe(t, bob)
	annInbox := f.subscribe(t, ann)

	msg := f.send(t, ann, bob, "hi")
	req.True(msg.Unread)
	req.False(msg.Edited)
	req.Equal("hi", msg.Message)

	ev := nextEvent(t, bobInbox)
	req.Equal(domainchat.ActionAdded, ev.Action)
	req.Equal(ann, ev.SenderID)
	req.Equal("hi", ev.Message)
	req.Equal(domainchat.ConversationID(msg.ConversationID), ev.ConversationID)
	req.Empty(annInbox.Messages())

	conv, err := f.convs.FindPair(context.Background(), bob, ann)
	req.NoError(err)
	req.Equal(msg.ConversationID, string(conv.ID))

	again := f.send(t, bob, ann, "hey")
	req.Equal(msg.ConversationID, again.ConversationID)
	req.Greater(again.ID, msg.ID)
}

func TestSendMessageValidation(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, nil)
	ctx := context.Background()
	ann := f.ids["ann"]

	_, err := commands.Dispatch[chat.SendMessageCommand, dto.ChatMessage](ctx, f.commands,
		chat.SendMessageCommand{SenderID: ann, ReceiverID: f.ids["bob"], Body: "   "})
	req.ErrorIs(err, domainchat.ErrEmptyMessage)

	_, err = commands.Dispatch[chat.SendMessageCommand, dto.ChatMessage](ctx, f.commands,
		chat.SendMessageCommand{SenderID: ann, ReceiverID: ann, Body: "me"})
	req.ErrorIs(err, middleware.ErrInvalidInput)

	_, err = commands.Dispatch[chat.SendMessageCommand, dto.ChatMessage](ctx, f.commands,
		chat.SendMessageCommand{SenderID: ann, ReceiverID: 999, Body: "ghost"})
	req.ErrorIs(err, domainuser.ErrNotFound)

	list, err := f.convs.ListForUser(ctx, ann)
	req.NoError(err)
	req.Empty(list)
}

func TestSendMessageWithAttachment(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	files := mocks.NewMockAttachments(ctrl)
	f := newFixture(t, files)
	ann, bob := f.ids["ann"], f.ids["bob"]
	inbox := f.subscribe(t, bob)

	files.EXPECT().Upload(gomock.Any(), attachments.UploadParams{
		OwnerID: ann, Filename: "a.png", ContentType: "image/png", Data: []byte("png"),
	}).Return(domainchat.Attachment{URL: "https://cdn/a.png", Type: "image/png", Name: "1-a.png", PublicID: "uploads/1/a.png"}, nil)

	msg, err := commands.Dispatch[chat.SendMessageCommand, dto.ChatMessage](context.Background(), f.commands,
		chat.SendMessageCommand{SenderID: ann, ReceiverID: bob, File: &chat.FileUpload{Filename: "a.png", ContentType: "image/png", Data: []byte("png")}})
	req.NoError(err)
	req.Equal("https://cdn/a.png", msg.FileURL)
	req.Equal("uploads/1/a.png", msg.FilePublicID)
	req.Empty(msg.Message)

	ev := nextEvent(t, inbox)
	req.Equal("https://cdn/a.png", ev.FileURL)
	req.Equal("image/png", ev.FileType)
}

func TestSendMessageUploadFailureStoresNothing(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	files := mocks.NewMockAttachments(ctrl)
	f := newFixture(t, files)
	ann, bob := f.ids["ann"], f.ids["bob"]

	files.EXPECT().Upload(gomock.Any(), gomock.Any()).Return(domainchat.Attachment{}, attachments.ErrUpload)

	_, err := commands.Dispatch[chat.SendMessageCommand, dto.ChatMessage](context.Background(), f.commands,
		chat.SendMessageCommand{SenderID: ann, ReceiverID: bob, Body: "see file", File: &chat.FileUpload{Filename: "a.pdf", Data: []byte("%PDF")}})
	req.ErrorIs(err, attachments.ErrUpload)

	_, err = f.convs.FindPair(context.Background(), ann, bob)
	req.ErrorIs(err, domainchat.ErrConversationNotFound)
}

func TestSendMessageRejectedFileCreatesNoConversation(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	storage := mocks.NewMockObjectStorage(ctrl)
	f := newFixture(t, &attachments.Service{Storage: storage, Messages: memory.NewMessageRepository()})
	ann, bob := f.ids["ann"], f.ids["bob"]
	ctx := context.Background()

	_, err := commands.Dispatch[chat.SendMessageCommand, dto.ChatMessage](ctx, f.commands, chat.SendMessageCommand{
		SenderID: ann, ReceiverID: bob,
		File: &chat.FileUpload{Filename: "run.png", ContentType: "image/png", Data: []byte("#!/bin/sh\necho hi\n")},
	})
	req.ErrorIs(err, attachments.ErrUnsupportedType)

	list, err := f.convs.ListForUser(ctx, ann)
	req.NoError(err)
	req.Empty(list)
}

func TestSendMessageDestroysUploadWhenConversationFails(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	files := mocks.NewMockAttachments(ctrl)
	f := newFixture(t, files)
	ann := f.ids["ann"]

	files.EXPECT().Upload(gomock.Any(), gomock.Any()).Return(domainchat.Attachment{URL: "u", Type: "image/png", PublicID: "uploads/1/a.png"}, nil)
	files.EXPECT().Destroy(gomock.Any(), "uploads/1/a.png")
	f.module.Directory.Conversations = failingConversations{f.convs}

	_, err := commands.Dispatch[chat.SendMessageCommand, dto.ChatMessage](context.Background(), f.commands, chat.SendMessageCommand{
		SenderID: ann, ReceiverID: f.ids["bob"],
		File: &chat.FileUpload{Filename: "a.png", ContentType: "image/png", Data: []byte("png")},
	})
	req.Error(err)
}

// failingConversations cannot create conversations.
type failingConversations struct {
	*memory.ConversationRepository
}

func (failingConversations) Create(context.Context, *domainchat.Conversation) error {
	return errors.New("disk full")
}

func TestPublishFailureDoesNotFailWrite(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	publisher := mocks.NewMockPublisher(ctrl)
	f := newFixture(t, nil)
	f.module.Notifier.Publisher = publisher

	publisher.EXPECT().Publish(gomock.Any(), f.ids["bob"].String(), gomock.Any()).Return(errors.New("broker down"))

	msg := f.send(t, f.ids["ann"], f.ids["bob"], "still stored")
	req.NotZero(msg.ID)
}

func TestEditMessageRestrictedToSender(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, nil)
	ctx := context.Background()
	ann, bob := f.ids["ann"], f.ids["bob"]
	msg := f.send(t, ann, bob, "original")
	convID := domainchat.ConversationID(msg.ConversationID)

	_, err := commands.Dispatch[chat.EditMessageCommand, dto.ChatMessage](ctx, f.commands, chat.EditMessageCommand{
		CallerID: bob, ConversationID: convID, MessageID: domainchat.MessageID(msg.ID), Body: "hijacked",
	})
	req.ErrorIs(err, domainchat.ErrNotMessageOwner)

	stored, err := f.msgs.ByID(ctx, convID, domainchat.MessageID(msg.ID))
	req.NoError(err)
	req.Equal("original", stored.Body)
	req.False(stored.Edited)
}

func TestEditMessageSetsEditedAndNotifies(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, nil)
	ctx := context.Background()
	ann, bob := f.ids["ann"], f.ids["bob"]
	msg := f.send(t, ann, bob, "v1")
	inbox := f.subscribe(t, bob)
	convID := domainchat.ConversationID(msg.ConversationID)

	for _, body := range []string{"v2", "v3"} {
		edited, err := commands.Dispatch[chat.EditMessageCommand, dto.ChatMessage](ctx, f.commands, chat.EditMessageCommand{
			CallerID: ann, ConversationID: convID, MessageID: domainchat.MessageID(msg.ID), Body: body,
		})
		req.NoError(err)
		req.True(edited.Edited)
		req.Equal(body, edited.Message)

		ev := nextEvent(t, inbox)
		req.Equal(domainchat.ActionEdited, ev.Action)
		req.Equal(domainchat.MessageID(msg.ID), ev.MessageID)
		req.Equal(body, ev.Message)
	}

	_, err := commands.Dispatch[chat.EditMessageCommand, dto.ChatMessage](ctx, f.commands, chat.EditMessageCommand{
		CallerID: ann, ConversationID: convID, MessageID: domainchat.MessageID(msg.ID), Body: " ",
	})
	req.ErrorIs(err, domainchat.ErrEmptyMessage)

	_, err = commands.Dispatch[chat.EditMessageCommand, dto.ChatMessage](ctx, f.commands, chat.EditMessageCommand{
		CallerID: ann, ConversationID: convID, MessageID: 9999, Body: "x",
	})
	req.ErrorIs(err, domainchat.ErrMessageNotFound)
}

func TestMarkReadIsIdempotent(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, nil)
	ctx := context.Background()
	ann, bob := f.ids["ann"], f.ids["bob"]
	msg := f.send(t, ann, bob, "one")
	f.send(t, ann, bob, "two")
	f.send(t, bob, ann, "reply")
	convID := domainchat.ConversationID(msg.ConversationID)

	res, err := commands.Dispatch[chat.MarkReadCommand, chat.MarkReadResult](ctx, f.commands,
		chat.MarkReadCommand{ReaderID: bob, ConversationID: convID, SenderID: ann})
	req.NoError(err)
	req.EqualValues(2, res.Updated)

	res, err = commands.Dispatch[chat.MarkReadCommand, chat.MarkReadResult](ctx, f.commands,
		chat.MarkReadCommand{ReaderID: bob, ConversationID: convID, SenderID: ann})
	req.NoError(err)
	req.EqualValues(0, res.Updated)

	_, err = commands.Dispatch[chat.MarkReadCommand, chat.MarkReadResult](ctx, f.commands,
		chat.MarkReadCommand{ReaderID: f.ids["cid"], ConversationID: convID, SenderID: ann})
	req.ErrorIs(err, domainchat.ErrNotParticipant)

	stored, err := f.msgs.ListByConversation(ctx, convID)
	req.NoError(err)
	req.True(stored[2].Unread)
}

func TestDeleteMessage(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	storage := mocks.NewMockObjectStorage(ctrl)
	files := &attachments.Service{Storage: storage, DestroyTimeout: time.Second}
	f := newFixture(t, files)
	ctx := context.Background()
	ann, bob := f.ids["ann"], f.ids["bob"]

	convID, err := f.module.Directory.GetOrCreate(ctx, ann, bob)
	req.NoError(err)
	withFile, err := f.module.Store.Append(ctx, chat.AppendParams{
		ConversationID: convID, SenderID: ann, ReceiverID: bob,
		Attachment: &domainchat.Attachment{URL: "https://cdn/x.pdf", PublicID: "uploads/1/x.pdf", Type: "application/pdf"},
	})
	req.NoError(err)
	plain := f.send(t, ann, bob, "keep me")
	inbox := f.subscribe(t, bob)

	_, err = commands.Dispatch[chat.DeleteMessageCommand, chat.DeleteMessageResult](ctx, f.commands,
		chat.DeleteMessageCommand{CallerID: bob, ConversationID: convID, MessageID: withFile.ID})
	req.ErrorIs(err, domainchat.ErrNotMessageOwner)

	storage.EXPECT().Remove(gomock.Any(), "uploads/1/x.pdf").Return(errors.New("storage offline"))
	res, err := commands.Dispatch[chat.DeleteMessageCommand, chat.DeleteMessageResult](ctx, f.commands,
		chat.DeleteMessageCommand{CallerID: ann, ConversationID: convID, MessageID: withFile.ID})
	req.NoError(err)
	req.Equal(withFile.ID, res.MessageID)

	ev := nextEvent(t, inbox)
	req.Equal(domainchat.ActionDeleted, ev.Action)
	req.Equal(withFile.ID, ev.MessageID)

	_, err = commands.Dispatch[chat.DeleteMessageCommand, chat.DeleteMessageResult](ctx, f.commands,
		chat.DeleteMessageCommand{CallerID: ann, ConversationID: convID, MessageID: withFile.ID})
	req.ErrorIs(err, domainchat.ErrMessageNotFound)

	remaining, err := f.msgs.ListByConversation(ctx, convID)
	req.NoError(err)
	req.Len(remaining, 1)
	req.Equal(domainchat.MessageID(plain.ID), remaining[0].ID)
}

func TestConversationQueries(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, nil)
	ctx := context.Background()
	ann, bob, cid := f.ids["ann"], f.ids["bob"], f.ids["cid"]
	first := f.send(t, ann, bob, "hi bob")
	f.send(t, cid, ann, "hi ann")

	list, err := queries.Ask[chat.ListConversationsQuery, []dto.Conversation](ctx, f.queries, chat.ListConversationsQuery{UserID: ann})
	req.NoError(err)
	req.Len(list, 2)
	withBob, ok := lo.Find(list, func(c dto.Conversation) bool { return c.ID == first.ConversationID })
	req.True(ok)
	req.Equal("ann", withBob.UserOne.Name)
	req.Equal("bob", withBob.UserTwo.Name)
	req.Equal("https://cdn/bob.png", withBob.UserTwo.Avatar)

	bobList, err := queries.Ask[chat.ListConversationsQuery, []dto.Conversation](ctx, f.queries, chat.ListConversationsQuery{UserID: bob})
	req.NoError(err)
	req.Len(bobList, 1)

	thread, err := queries.Ask[chat.GetThreadQuery, dto.Thread](ctx, f.queries,
		chat.GetThreadQuery{CallerID: bob, ConversationID: domainchat.ConversationID(first.ConversationID)})
	req.NoError(err)
	req.Len(thread.Messages, 1)
	req.Equal("hi bob", thread.Messages[0].Message)
	req.Equal(int64(ann), thread.UserOne.ID)

	_, err = queries.Ask[chat.GetThreadQuery, dto.Thread](ctx, f.queries,
		chat.GetThreadQuery{CallerID: cid, ConversationID: domainchat.ConversationID(first.ConversationID)})
	req.ErrorIs(err, domainchat.ErrNotParticipant)

	_, err = queries.Ask[chat.GetThreadQuery, dto.Thread](ctx, f.queries,
		chat.GetThreadQuery{CallerID: ann, ConversationID: "missing"})
	req.ErrorIs(err, domainchat.ErrConversationNotFound)
}
