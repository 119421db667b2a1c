package chat

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/Tushar13233u/my-new-chat-app/internal/apperr"
	"github.com/Tushar13233u/my-new-chat-app/internal/docstore"
	"github.com/Tushar13233u/my-new-chat-app/internal/servervalue"
	"github.com/Tushar13233u/my-new-chat-app/internal/stream"
)

// DeliveryStatus is how an own message is rendered.
type DeliveryStatus string

const (
	StatusNone DeliveryStatus = ""
	StatusSent DeliveryStatus = "sent" // single check
	StatusRead DeliveryStatus = "read" // double check
)

var ErrEmptyMessage = apperr.InvalidArg("message text is required")

// Draft is the unsent input of a conversation.
type Draft struct {
	mu      sync.Mutex
	text    string
	replyTo *ReplyRef
}

func (d *Draft) SetText(s string) {
	d.mu.Lock()
	d.text = s
	d.mu.Unlock()
}

func (d *Draft) Text() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.text
}

// ReplyTo marks m as the message being answered; nil clears it.
func (d *Draft) ReplyTo(m *Message) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if m == nil {
		d.replyTo = nil
		return
	}
	d.replyTo = &ReplyRef{ID: m.ID, Text: m.Text, SenderID: m.SenderID}
}

func (d *Draft) Reply() *ReplyRef {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.replyTo == nil {
		return nil
	}
	r := *d.replyTo
	return &r
}

// take clears the draft and returns what it held.
func (d *Draft) take() (string, *ReplyRef) {
	d.mu.Lock()
	defer d.mu.Unlock()
	text, reply := d.text, d.replyTo
	d.text, d.replyTo = "", nil
	return text, reply
}

// restore puts a taken draft back unless the user typed something new.
func (d *Draft) restore(text string, reply *ReplyRef) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.text == "" {
		d.text = text
	}
	if d.replyTo == nil {
		d.replyTo = reply
	}
}

// Feed is the message list of one conversation.
type Feed struct {
	docs   docstore.Store
	me     User
	peer   string
	coll   string
	logger *slog.Logger
}

func NewFeed(docs docstore.Store, me User, peer string, logger *slog.Logger) *Feed {
	if logger == nil {
		logger = slog.Default()
	}
	return &Feed{docs: docs, me: me, peer: peer, coll: MessagesCollection(me.UID, peer), logger: logger}
}

// Subscribe yields the whole conversation ordered by server timestamp.
func (f *Feed) Subscribe(ctx context.Context) (*stream.Subscription[[]Message], error) {
	sub, err := f.docs.Subscribe(ctx, docstore.Query{Collection: f.coll, OrderBy: "timestamp"})
	if err != nil {
		return nil, err
	}
	return stream.Map(sub, messagesFromDocs), nil
}

// Send writes the draft as a new message. The draft is cleared before the
// write and restored if it fails. After a confirmed write a notification
// record is stored; failing to store it does not fail the send.
func (f *Feed) Send(ctx context.Context, d *Draft) (*Message, error) {
	if strings.TrimSpace(d.Text()) == "" {
		return nil, ErrEmptyMessage
	}
	raw, reply := d.take()
	text := strings.TrimSpace(raw)

	data := map[string]any{
		"text":       text,
		"senderId":   f.me.UID,
		"receiverId": f.peer,
		"timestamp":  servervalue.Timestamp(),
		"read":       false,
	}
	if reply != nil {
		data["replyTo"] = map[string]any{"id": reply.ID, "text": reply.Text, "senderId": reply.SenderID}
	}

	doc, err := f.docs.Add(ctx, f.coll, data)
	if err != nil {
		d.restore(raw, reply)
		f.logger.Error("sending message failed", "peer", f.peer, "err", err)
		return nil, err
	}
	m := messageFromDoc(doc)

	_, err = f.docs.Add(ctx, NotificationsCollection, map[string]any{
		"receiverId": f.peer,
		"senderId":   f.me.UID,
		"senderName": f.me.DisplayName,
		"message":    text,
		"timestamp":  servervalue.Timestamp(),
		"read":       false,
		"type":       "message",
	})
	if err != nil {
		f.logger.Warn("storing notification record failed", "peer", f.peer, "err", err)
	}
	return &m, nil
}

// Delete removes m. Only its sender may delete it.
func (f *Feed) Delete(ctx context.Context, m Message) error {
	if m.SenderID != f.me.UID {
		return apperr.ErrNotSender
	}
	if err := f.docs.Delete(ctx, f.coll, m.ID); err != nil {
		f.logger.Error("deleting message failed", "id", m.ID, "err", err)
		return err
	}
	return nil
}

// Status is the delivery indicator of an own message, StatusNone for
// messages received.
func (f *Feed) Status(m Message) DeliveryStatus {
	if m.SenderID != f.me.UID {
		return StatusNone
	}
	if m.Read {
		return StatusRead
	}
	return StatusSent
}
