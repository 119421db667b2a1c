package chat

import "github.com/Tushar13233u/my-new-chat-app/internal/docstore"

// ReplyRef points at the message being replied to.
type ReplyRef struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	SenderID string `json:"senderId"`
}

type Message struct {
	ID         string    `json:"id"`
	Text       string    `json:"text"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	Timestamp  int64     `json:"timestamp"`
	Read       bool      `json:"read"`
	ReplyTo    *ReplyRef `json:"replyTo,omitempty"`
}

// Profile is the public part of a users document.
type Profile struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoURL"`
	Bio         string `json:"bio"`
}

func messageFromDoc(d *docstore.Document) Message {
	m := Message{
		ID:         d.ID,
		Text:       str(d.Data["text"]),
		SenderID:   str(d.Data["senderId"]),
		ReceiverID: str(d.Data["receiverId"]),
		Timestamp:  millis(d.Data["timestamp"]),
	}
	m.Read, _ = d.Data["read"].(bool)
	if r, ok := d.Data["replyTo"].(map[string]any); ok {
		m.ReplyTo = &ReplyRef{ID: str(r["id"]), Text: str(r["text"]), SenderID: str(r["senderId"])}
	}
	return m
}

func messagesFromDocs(docs []*docstore.Document) []Message {
	out := make([]Message, len(docs))
	for i, d := range docs {
		out[i] = messageFromDoc(d)
	}
	return out
}

func profileFromDoc(d *docstore.Document) Profile {
	uid := str(d.Data["uid"])
	if uid == "" {
		uid = d.ID
	}
	return Profile{
		UID:         uid,
		Email:       str(d.Data["email"]),
		DisplayName: str(d.Data["displayName"]),
		PhotoURL:    str(d.Data["photoURL"]),
		Bio:         str(d.Data["bio"]),
	}
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

// millis reads a stored timestamp; numbers arrive as int64 from the
// in-memory engine and as float64 after a JSON or Mongo round trip.
func millis(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case float64:
		return int64(n)
	}
	return 0
}

func millisList(v any) []int64 {
	var out []int64
	switch l := v.(type) {
	case []any:
		for _, e := range l {
			out = append(out, millis(e))
		}
	case []int64:
		out = append(out, l...)
	}
	return out
}
