package security

import (
	"crypto/rand"
	"fmt"

	"dmchat/internal/domain/chat"
)

const alphanumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// ConversationIDGenerator produces uniformly distributed alphanumeric ids.
type ConversationIDGenerator struct {
	Length int
}

func (g ConversationIDGenerator) NewConversationID() (chat.ConversationID, error) {
	token, err := randomString(g.length())
	if err != nil {
		return "", err
	}
	return chat.ConversationID(token), nil
}

func (g ConversationIDGenerator) length() int {
	if g.Length > 0 && g.Length <= 64 {
		return g.Length
	}
	return chat.ConversationIDLength
}

func randomString(n int) (string, error) {
	// 248 is the largest multiple of 62 below 256; bytes above it are rejected
	// so every symbol stays equally likely.
	const limit = 256 - 256%len(alphanumeric)
	out := make([]byte, 0, n)
	buf := make([]byte, n+n/4+8)
	for len(out) < n {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("token: entropy read failed: %w", err)
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			out = append(out, alphanumeric[int(b)%len(alphanumeric)])
			if len(out) == n {
				break
			}
		}
	}
	return string(out), nil
}
