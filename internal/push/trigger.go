package push

import (
	"context"
	"log/slog"

	"github.com/Tushar13233u/my-new-chat-app/internal/docstore"
)

// MessagesPattern is the collection path the trigger listens on.
const MessagesPattern = "privateMessages/{chatId}/messages"

// Sender dispatches a payload to a device.
type Sender interface {
	Send(Payload) error
}

// Trigger notifies the receiver of every newly created message.
type Trigger struct {
	docs   docstore.Store
	sender Sender
	appURL string
	logger *slog.Logger
}

func NewTrigger(docs docstore.Store, sender Sender, appURL string, logger *slog.Logger) *Trigger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Trigger{docs: docs, sender: sender, appURL: appURL, logger: logger}
}

// OnDocumentCreated runs OnMessageCreated when doc is a chat message.
func (t *Trigger) OnDocumentCreated(ctx context.Context, doc *docstore.Document) {
	params, ok := docstore.MatchPath(MessagesPattern, doc.Collection)
	if !ok {
		return
	}
	if _, err := t.OnMessageCreated(ctx, params["chatId"], doc.Data); err != nil {
		t.logger.Error("sending notification failed", "chat", params["chatId"], "err", err)
	}
}

// OnMessageCreated resolves the sender name and the receiver's device token
// and sends the payload. It reports whether anything was sent.
func (t *Trigger) OnMessageCreated(ctx context.Context, chatID string, msg map[string]any) (bool, error) {
	senderID, _ := msg["senderId"].(string)
	receiverID, _ := msg["receiverId"].(string)
	text, _ := msg["text"].(string)

	var senderName string
	if sender, err := t.docs.Get(ctx, "users", senderID); err == nil {
		senderName, _ = sender.Data["displayName"].(string)
	}

	receiver, err := t.docs.Get(ctx, "users", receiverID)
	if err != nil {
		t.logger.Info("no token found for receiver", "receiver", receiverID)
		return false, nil
	}
	token, _ := receiver.Data["fcmToken"].(string)
	if token == "" {
		t.logger.Info("no token found for receiver", "receiver", receiverID)
		return false, nil
	}

	p := BuildPayload(NewMessage{ChatID: chatID, SenderID: senderID, SenderName: senderName, Text: text}, token, t.appURL)
	if err := t.sender.Send(p); err != nil {
		return false, err
	}
	t.logger.Debug("notification sent", "chat", chatID, "receiver", receiverID)
	return true, nil
}
