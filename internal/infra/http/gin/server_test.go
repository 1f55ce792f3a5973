package ginserver_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"dmchat/internal/app/commands"
	chatapp "dmchat/internal/app/handlers/chat"
	"dmchat/internal/app/middleware"
	"dmchat/internal/app/queries"
	"dmchat/internal/app/services/attachments"
	"dmchat/internal/app/services/auth"
	"dmchat/internal/app/services/users"
	"dmchat/internal/infra/fanout"
	ginserver "dmchat/internal/infra/http/gin"
	"dmchat/internal/infra/obs"
	"dmchat/internal/infra/security"
	"dmchat/internal/infra/storage/memory"
	"dmchat/internal/mocks"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00\x1f\x15\xc4\x89")

type api struct {
	t       *testing.T
	router  *gin.Engine
	storage *mocks.MockObjectStorage
	hub     *fanout.Hub
}

func newAPI(t *testing.T, maxUpload int64) *api {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctrl := gomock.NewController(t)
	storage := mocks.NewMockObjectStorage(ctrl)

	userRepo := memory.NewUserRepository()
	convs := memory.NewConversationRepository()
	msgs := memory.NewMessageRepository()
	hub := fanout.NewHub(16, nil)
	t.Cleanup(hub.Close)

	tokens := security.JWTManager{Secret: []byte("http-secret"), TTL: time.Hour}
	files := &attachments.Service{Storage: storage, Messages: msgs}
	module := chatapp.Module{
		Directory:   &chatapp.Directory{Conversations: convs, Profiles: userRepo, IDs: security.ConversationIDGenerator{}},
		Store:       &chatapp.MessageStore{Conversations: convs, Messages: msgs, Profiles: userRepo},
		Attachments: files,
		Notifier:    &chatapp.Notifier{Publisher: hub},
	}
	cmdBus := commands.NewInMemoryBus()
	queryBus := queries.NewInMemoryBus()
	module.Register(cmdBus, queryBus)
	v := middleware.NewStructValidator()

	userSvc := &users.Service{
		Users:     userRepo,
		Passwords: security.BcryptHasher{Cost: 4},
		Tokens:    tokens,
		Events:    &users.BackgroundPurge{Purger: files},
	}
	router := ginserver.NewRouter("test", obs.Middleware{}, obs.HealthHandlers{}, ginserver.Handlers{
		Chat: ginserver.ChatHandler{
			Commands:       middleware.ChainCommands(cmdBus, middleware.Validation(v)),
			Queries:        middleware.ChainQueries(queryBus, middleware.QueryValidation(v)),
			MaxUploadBytes: maxUpload,
		},
		Users:          ginserver.UserHandler{Service: userSvc},
		AuthMiddleware: ginserver.AuthMiddleware{Gate: &auth.Service{Verifier: tokens}}.Required,
	})
	return &api{t: t, router: router, storage: storage, hub: hub}
}

func (a *api) do(method, target, token string, body any) (*httptest.ResponseRecorder, map[string]any) {
	a.t.Helper()
	var reader *bytes.Reader
	contentType := ""
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case *multipartBody:
		reader = bytes.NewReader(b.buf.Bytes())
		contentType = b.contentType
	default:
		raw, err := json.Marshal(b)
		require.NoError(a.t, err)
		reader = bytes.NewReader(raw)
		contentType = "application/json"
	}
	r := httptest.NewRequest(method, target, reader)
	if contentType != "" {
		r.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, r)
	out := map[string]any{}
	if w.Body.Len() > 0 {
		require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	}
	return w, out
}

type account struct {
	id    int64
	token string
}

func (a *api) register(name string) account {
	a.t.Helper()
	w, body := a.do(http.MethodPost, "/api/users/register", "", map[string]string{
		"email": name + "@x.io", "name": name, "password": "secret1",
	})
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())
	u := body["user"].(map[string]any)
	return account{id: int64(u["id"].(float64)), token: body["token"].(string)}
}

type multipartBody struct {
	buf         bytes.Buffer
	contentType string
}

func form(fields map[string]string, fileName, fileType string, data []byte) *multipartBody {
	mb := &multipartBody{}
	w := multipart.NewWriter(&mb.buf)
	for k, v := range fields {
		_ = w.WriteField(k, v)
	}
	if data != nil {
		h := textproto.MIMEHeader{}
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, fileName))
		h.Set("Content-Type", fileType)
		part, _ := w.CreatePart(h)
		_, _ = part.Write(data)
	}
	_ = w.Close()
	mb.contentType = w.FormDataContentType()
	return mb
}

func TestUserRoutes(t *testing.T) {
	req := require.New(t)
	a := newAPI(t, 0)
	ann := a.register("ann")

	w, body := a.do(http.MethodPost, "/api/users/login", "", map[string]string{"email": "ann@x.io", "password": "wrong!!"})
	req.Equal(http.StatusBadRequest, w.Code)
	req.Equal("Password is incorrect", body["msg"])

	w, body = a.do(http.MethodPost, "/api/users/login", "", map[string]string{"email": "nobody@x.io", "password": "secret1"})
	req.Equal(http.StatusNotFound, w.Code)
	req.Equal("user is not found", body["msg"])

	w, body = a.do(http.MethodPost, "/api/users/login", "", map[string]string{"email": "ann@x.io", "password": "secret1"})
	req.Equal(http.StatusOK, w.Code)
	req.NotEmpty(body["token"])

	w, body = a.do(http.MethodGet, "/api/users", "", nil)
	req.Equal(http.StatusOK, w.Code)
	req.Len(body["users"], 1)

	bob := a.register("bob")
	w, _ = a.do(http.MethodPut, fmt.Sprintf("/api/users/%d", ann.id), bob.token, map[string]string{"name": "hijack"})
	req.Equal(http.StatusForbidden, w.Code)

	w, body = a.do(http.MethodPut, fmt.Sprintf("/api/users/%d", ann.id), ann.token, map[string]string{"name": "Annie"})
	req.Equal(http.StatusOK, w.Code)
	req.Equal("Annie", body["user"].(map[string]any)["name"])

	w, _ = a.do(http.MethodPut, fmt.Sprintf("/api/users/change-password/%d", ann.id), ann.token, map[string]string{"password": "newpass"})
	req.Equal(http.StatusOK, w.Code)
	w, _ = a.do(http.MethodPost, "/api/users/login", "", map[string]string{"email": "ann@x.io", "password": "newpass"})
	req.Equal(http.StatusOK, w.Code)

	w, body = a.do(http.MethodDelete, "/api/users", bob.token, nil)
	req.Equal(http.StatusOK, w.Code)
	req.Equal("deleting account success", body["msg"])
	w, _ = a.do(http.MethodGet, fmt.Sprintf("/api/users/%d", bob.id), "", nil)
	req.Equal(http.StatusNotFound, w.Code)
}

func TestChatRoutesRequireCredential(t *testing.T) {
	req := require.New(t)
	a := newAPI(t, 0)

	w, body := a.do(http.MethodGet, "/api/conversations", "", nil)
	req.Equal(http.StatusUnauthorized, w.Code)
	req.Equal("Please provide token", body["msg"])

	w, body = a.do(http.MethodGet, "/api/conversations", "not-a-token", nil)
	req.Equal(http.StatusForbidden, w.Code)
	req.Equal("session expired! Please sign In", body["msg"])
}

func TestMessageLifecycle(t *testing.T) {
	req := require.New(t)
	a := newAPI(t, 0)
	ann, bob, cid := a.register("ann"), a.register("bob"), a.register("cid")

	sub, err := a.hub.NewSubscriber()
	req.NoError(err)
	req.NoError(a.hub.Subscribe(sub, fmt.Sprint(bob.id)))

	w, body := a.do(http.MethodPost, "/api/messages", ann.token, form(map[string]string{
		"receiverId": fmt.Sprint(bob.id), "message": "hi",
	}, "", "", nil))
	req.Equal(http.StatusCreated, w.Code, w.Body.String())
	sent := body["msg"].(map[string]any)
	req.Equal("hi", sent["message"])
	req.Equal(true, sent["unread"])
	conversationID := sent["conversationId"].(string)
	messageID := int64(sent["id"].(float64))

	select {
	case raw := <-sub.Messages():
		req.Contains(string(raw), `"action":"added"`)
	case <-time.After(time.Second):
		t.Fatal("receiver was not notified")
	}

	w, body = a.do(http.MethodGet, "/api/conversations", bob.token, nil)
	req.Equal(http.StatusOK, w.Code)
	req.Len(body["conversations"], 1)

	w, body = a.do(http.MethodGet, "/api/conversations/"+conversationID, bob.token, nil)
	req.Equal(http.StatusOK, w.Code)
	req.Len(body["messages"].(map[string]any)["messages"], 1)

	w, _ = a.do(http.MethodGet, "/api/conversations/"+conversationID, cid.token, nil)
	req.Equal(http.StatusForbidden, w.Code)
	w, _ = a.do(http.MethodGet, "/api/conversations/missing", bob.token, nil)
	req.Equal(http.StatusNotFound, w.Code)

	markRead := fmt.Sprintf("/api/messages/mark-read/%s/%d", conversationID, ann.id)
	w, body = a.do(http.MethodPut, markRead, bob.token, nil)
	req.Equal(http.StatusOK, w.Code)
	req.EqualValues(1, body["updated"])
	w, body = a.do(http.MethodPut, markRead, bob.token, nil)
	req.Equal(http.StatusOK, w.Code)
	req.EqualValues(0, body["updated"])

	edit := fmt.Sprintf("/api/messages?conversationId=%s&messageId=%d", conversationID, messageID)
	w, _ = a.do(http.MethodPut, edit, bob.token, map[string]string{"message": "mine now"})
	req.Equal(http.StatusForbidden, w.Code)
	w, _ = a.do(http.MethodPut, edit, ann.token, map[string]string{})
	req.Equal(http.StatusBadRequest, w.Code)
	w, body = a.do(http.MethodPut, edit, ann.token, map[string]string{"message": "hello"})
	req.Equal(http.StatusOK, w.Code)
	req.Equal(true, body["msg"].(map[string]any)["edited"])

	remove := fmt.Sprintf("/api/messages/%s/%d", conversationID, messageID)
	w, _ = a.do(http.MethodDelete, remove, bob.token, nil)
	req.Equal(http.StatusForbidden, w.Code)
	w, body = a.do(http.MethodDelete, remove, ann.token, nil)
	req.Equal(http.StatusOK, w.Code)
	req.Equal("success removing message", body["msg"])
	w, _ = a.do(http.MethodDelete, remove, ann.token, nil)
	req.Equal(http.StatusNotFound, w.Code)
}

func TestSendMessageValidation(t *testing.T) {
	req := require.New(t)
	a := newAPI(t, 64)
	ann, bob := a.register("ann"), a.register("bob")
	target := map[string]string{"receiverId": fmt.Sprint(bob.id)}

	w, body := a.do(http.MethodPost, "/api/messages", ann.token, form(target, "", "", nil))
	req.Equal(http.StatusBadRequest, w.Code)
	req.Equal("Message or file is required", body["msg"])

	w, _ = a.do(http.MethodPost, "/api/messages", ann.token, form(map[string]string{
		"receiverId": fmt.Sprint(ann.id), "message": "me",
	}, "", "", nil))
	req.Equal(http.StatusBadRequest, w.Code)

	w, body = a.do(http.MethodPost, "/api/messages", ann.token, form(target, "notes.txt", "text/plain", []byte("plain")))
	req.Equal(http.StatusBadRequest, w.Code)
	req.Equal("File type is invalid", body["msg"])

	w, _ = a.do(http.MethodPost, "/api/messages", ann.token, form(target, "big.png", "image/png", bytes.Repeat([]byte{1}, 100)))
	req.Equal(http.StatusRequestEntityTooLarge, w.Code)
}

func TestSendMessageWithAttachment(t *testing.T) {
	req := require.New(t)
	a := newAPI(t, 0)
	ann, bob := a.register("ann"), a.register("bob")

	a.storage.EXPECT().
		Put(gomock.Any(), gomock.Any(), gomock.Any(), int64(len(pngBytes)), "image/png").
		Return("https://cdn/uploads/pic.png", nil)

	w, body := a.do(http.MethodPost, "/api/messages", ann.token, form(map[string]string{
		"receiverId": fmt.Sprint(bob.id),
	}, "pic.png", "image/png", pngBytes))
	req.Equal(http.StatusCreated, w.Code, w.Body.String())
	sent := body["msg"].(map[string]any)
	req.Equal("https://cdn/uploads/pic.png", sent["fileUrl"])
	req.Equal("image/png", sent["fileType"])

	a.storage.EXPECT().Put(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return("", context.DeadlineExceeded)
	w, body = a.do(http.MethodPost, "/api/messages", ann.token, form(map[string]string{
		"receiverId": fmt.Sprint(bob.id),
	}, "pic.png", "image/png", pngBytes))
	req.Equal(http.StatusBadGateway, w.Code)
	req.Equal("Oops. There is an error, please try again", body["msg"])
}
