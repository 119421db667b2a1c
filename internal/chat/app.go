package chat

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/Tushar13233u/my-new-chat-app/internal/apperr"
	"github.com/Tushar13233u/my-new-chat-app/internal/docstore"
	"github.com/Tushar13233u/my-new-chat-app/internal/stream"
)

// Deps are the collaborators an App is built from. Collaborators that have
// a Close method are closed by App.Close.
type Deps struct {
	Auth     Auth
	Docs     docstore.Store
	Realtime Realtime
	Push     Push

	VAPIDKey   string
	TypingIdle time.Duration
	Now        func() time.Time
	Logger     *slog.Logger
}

// App is the root that owns the collaborators and every open view.
type App struct {
	deps   Deps
	logger *slog.Logger

	Accounts *Accounts
	Profiles *Profiles
	Presence *Presence
	Notifier *Notifier

	views stream.Group
}

func NewApp(d Deps) *App {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	a := &App{deps: d, logger: d.Logger}
	a.Accounts = NewAccounts(d.Auth, d.Docs, d.Logger)
	a.Profiles = NewProfiles(d.Auth, d.Docs, d.Now, d.Logger)
	a.Presence = NewPresence(d.Realtime, d.Logger)
	if d.Push != nil {
		a.Notifier = NewNotifier(d.Push, d.Docs, d.VAPIDKey, d.Logger)
	}
	return a
}

func (a *App) me() (User, error) {
	u := a.deps.Auth.CurrentUser()
	if u == nil {
		return User{}, apperr.Unauthorized("not signed in")
	}
	return *u, nil
}

// Start begins presence tracking for the signed-in user and enables
// notifications when a push service is configured.
func (a *App) Start(ctx context.Context) error {
	u, err := a.me()
	if err != nil {
		return err
	}
	stop, err := a.Presence.Connect(ctx, u.UID)
	if err != nil {
		return err
	}
	a.views.AddFunc(stop)
	if a.Notifier != nil {
		a.Notifier.Enable(ctx, u.UID)
	}
	return nil
}

// OpenInbox opens the conversation list of the signed-in user.
func (a *App) OpenInbox(ctx context.Context) (*Inbox, error) {
	u, err := a.me()
	if err != nil {
		return nil, err
	}
	in, err := OpenInbox(ctx, u.UID, a.deps.Docs, a.Presence, NewUnread(a.deps.Docs, u.UID, a.logger), a.logger)
	if err != nil {
		return nil, err
	}
	a.views.Add(in)
	return in, nil
}

// OpenConversation opens the private chat with peer.
func (a *App) OpenConversation(ctx context.Context, peer string) (*Conversation, error) {
	u, err := a.me()
	if err != nil {
		return nil, err
	}
	if peer == "" || peer == u.UID {
		return nil, apperr.InvalidArg("invalid conversation partner")
	}
	c, err := OpenConversation(ctx,
		NewFeed(a.deps.Docs, u, peer, a.logger),
		NewUnread(a.deps.Docs, u.UID, a.logger),
		NewTyping(a.deps.Realtime, u.UID, a.deps.TypingIdle, a.logger),
		a.logger,
	)
	if err != nil {
		return nil, err
	}
	a.views.Add(c)
	return c, nil
}

// Close releases every open view, then the collaborators.
func (a *App) Close() error {
	a.views.Close()
	var firstErr error
	for _, c := range []any{a.deps.Push, a.deps.Realtime, a.deps.Docs, a.deps.Auth} {
		switch v := c.(type) {
		case io.Closer:
			if err := v.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		case interface{ Close() }:
			v.Close()
		}
	}
	return firstErr
}
