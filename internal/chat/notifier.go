package chat

import (
	"context"
	"log/slog"

	"github.com/Tushar13233u/my-new-chat-app/internal/apperr"
	"github.com/Tushar13233u/my-new-chat-app/internal/docstore"
	"github.com/Tushar13233u/my-new-chat-app/internal/push"
)

// Notifier registers the device for push delivery and hands foreground
// payloads to the app.
type Notifier struct {
	push     Push
	docs     docstore.Store
	vapidKey string
	logger   *slog.Logger
}

func NewNotifier(p Push, docs docstore.Store, vapidKey string, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{push: p, docs: docs, vapidKey: vapidKey, logger: logger}
}

// Enable obtains a device token and stores it on the user's document. Any
// failure, permission denial included, leaves the app without notifications
// and is only logged. It reports whether notifications are enabled.
func (n *Notifier) Enable(ctx context.Context, uid string) bool {
	token, err := n.push.GetToken(ctx, n.vapidKey)
	if err != nil {
		if apperr.ReasonOf(err) == apperr.ReasonPushPermission {
			n.logger.Info("notification permission denied", "uid", uid)
		} else {
			n.logger.Warn("getting push token failed", "uid", uid, "err", err)
		}
		return false
	}
	if token == "" {
		n.logger.Info("no registration token available", "uid", uid)
		return false
	}
	if err := n.docs.Set(ctx, UsersCollection, uid, map[string]any{"fcmToken": token}, true); err != nil {
		n.logger.Warn("storing push token failed", "uid", uid, "err", err)
		return false
	}
	return true
}

// Foreground calls handle for every payload received while the app is open
// until the returned func is called or ctx ends.
func (n *Notifier) Foreground(ctx context.Context, handle func(push.Payload)) (func(), error) {
	sub, err := n.push.OnForegroundMessage(ctx)
	if err != nil {
		return nil, err
	}
	go func() {
		for {
			select {
			case <-sub.Done():
				return
			case <-ctx.Done():
				sub.Close()
				return
			case p := <-sub.Updates():
				handle(p)
			}
		}
	}()
	return sub.Close, nil
}
