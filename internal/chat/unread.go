package chat

import (
	"context"
	"log/slog"

	"github.com/Tushar13233u/my-new-chat-app/internal/docstore"
	"github.com/Tushar13233u/my-new-chat-app/internal/stream"
)

// Unread counts and clears the signed-in user's unread inbound messages.
type Unread struct {
	docs   docstore.Store
	uid    string
	logger *slog.Logger
}

func NewUnread(docs docstore.Store, uid string, logger *slog.Logger) *Unread {
	if logger == nil {
		logger = slog.Default()
	}
	return &Unread{docs: docs, uid: uid, logger: logger}
}

func (u *Unread) query(partner string) docstore.Query {
	return docstore.Query{
		Collection: MessagesCollection(u.uid, partner),
		Filters: []docstore.Filter{
			docstore.Where("receiverId", docstore.OpEqual, u.uid),
			docstore.Where("read", docstore.OpEqual, false),
		},
	}
}

// Watch yields the number of unread messages partner sent to the user.
func (u *Unread) Watch(ctx context.Context, partner string) (*stream.Subscription[int], error) {
	sub, err := u.docs.Subscribe(ctx, u.query(partner))
	if err != nil {
		return nil, err
	}
	return stream.Map(sub, func(docs []*docstore.Document) int { return len(docs) }), nil
}

// MarkRead sets read=true on every unread message among msgs addressed to
// the user, in one batch. Messages already read are skipped, so repeating
// the call is a no-op. It returns how many messages were marked.
func (u *Unread) MarkRead(ctx context.Context, partner string, msgs []Message) (int, error) {
	coll := MessagesCollection(u.uid, partner)
	var ops []docstore.Op
	for _, m := range msgs {
		if m.ReceiverID != u.uid || m.Read {
			continue
		}
		ops = append(ops, docstore.Op{
			Kind:       docstore.OpUpdate,
			Collection: coll,
			ID:         m.ID,
			Data:       map[string]any{"read": true},
		})
	}
	if len(ops) == 0 {
		return 0, nil
	}
	if err := u.docs.Batch(ctx, ops); err != nil {
		return 0, err
	}
	u.logger.Debug("marked messages read", "partner", partner, "count", len(ops))
	return len(ops), nil
}
