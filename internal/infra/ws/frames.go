package ws

import (
	"encoding/json"
	"errors"

	"github.com/go-playground/validator/v10"
)

const (
	ActionSendChat  = "send__chat"
	ActionSubscribe = "subscribe"
)

const (
	AckSent         = "success sending your message"
	AckSubscribed   = "you subscribing topic %s"
	ReplyBadFrame   = "Message is not correct"
	ReplyBadSession = "session expired! Please sign In"
)

// TopicNotification is shared by every connection.
const TopicNotification = "notification"

var ErrInvalidFrame = errors.New("ws: invalid frame")

// Frame is a client message on the socket.
type Frame struct {
	Action     string `json:"action" validate:"required,oneof=send__chat subscribe"`
	SenderID   int64  `json:"senderId" validate:"required,gt=0"`
	ReceiverID int64  `json:"receiverId" validate:"required_if=Action send__chat,gte=0"`
	Message    string `json:"message"`
	FileURL    string `json:"fileUrl" validate:"omitempty,url"`
	FileType   string `json:"fileType"`
	// Token optionally refreshes the connection credential on subscribe.
	Token string `json:"token"`
}

// Relayed is what a send__chat frame puts on the receiver's topic.
type Relayed struct {
	SenderID int64  `json:"senderId"`
	Message  string `json:"message,omitempty"`
	FileURL  string `json:"fileUrl,omitempty"`
	FileType string `json:"fileType,omitempty"`
}

type frameParser struct {
	validate *validator.Validate
}

func newFrameParser() frameParser {
	return frameParser{validate: validator.New(validator.WithRequiredStructEnabled())}
}

func (p frameParser) parse(raw []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return Frame{}, errors.Join(ErrInvalidFrame, err)
	}
	if err := p.validate.Struct(f); err != nil {
		return Frame{}, errors.Join(ErrInvalidFrame, err)
	}
	return f, nil
}
