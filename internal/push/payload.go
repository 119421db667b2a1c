// Package push builds notification payloads for new messages, delivers them
// to registered device tokens and turns received payloads into displayable
// notifications.
package push

import (
	"strings"
	"unicode/utf8"
)

const (
	// Icon is used for both the notification icon and its badge.
	Icon = "/logo192.png"

	bodyLimit     = 50
	defaultSender = "Someone"
)

type Notification struct {
	Title              string `json:"title"`
	Body               string `json:"body"`
	Icon               string `json:"icon,omitempty"`
	Badge              string `json:"badge,omitempty"`
	Tag                string `json:"tag,omitempty"`
	RequireInteraction bool   `json:"requireInteraction"`
}

type Data struct {
	ChatID      string `json:"chatId,omitempty"`
	SenderID    string `json:"senderId,omitempty"`
	SenderName  string `json:"senderName,omitempty"`
	ClickAction string `json:"click_action,omitempty"`
}

// Payload is what the delivery service hands to a device.
type Payload struct {
	Notification Notification `json:"notification"`
	Data         Data         `json:"data"`
	Token        string       `json:"token,omitempty"`
}

// NewMessage describes the message a payload is built for.
type NewMessage struct {
	ChatID     string
	SenderID   string
	SenderName string
	Text       string
}

// BuildPayload assembles the payload sent to the receiver of m.
func BuildPayload(m NewMessage, token, appURL string) Payload {
	name := strings.TrimSpace(m.SenderName)
	if name == "" {
		name = defaultSender
	}
	return Payload{
		Notification: Notification{
			Title: name,
			Body:  Truncate(m.Text, bodyLimit),
			Icon:  Icon,
			Badge: Icon,
			Tag:   "chat-" + m.SenderID,
		},
		Data: Data{
			ChatID:      m.ChatID,
			SenderID:    m.SenderID,
			SenderName:  name,
			ClickAction: ChatLink(appURL, m.SenderID),
		},
		Token: token,
	}
}

// Truncate cuts s to n characters and marks the cut with "...".
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}

// ChatLink is the deep link into the conversation with uid.
func ChatLink(appURL, uid string) string {
	return strings.TrimRight(appURL, "/") + "/chat/" + uid
}
