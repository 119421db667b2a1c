// Package chat is the client core: presence, typing, unread counting and
// read marking, the sorted conversation list, the message feed and the
// account, profile and notification flows around them.
//
// Every component is built from explicitly injected collaborators; the App
// owns them and releases them on Close.
package chat

import (
	"context"

	"github.com/Tushar13233u/my-new-chat-app/internal/push"
	"github.com/Tushar13233u/my-new-chat-app/internal/stream"
)

// Realtime is the path addressed key-value store with disconnect hooks.
// Subscribing to realtime.ConnectedPath reports the client's own connection.
type Realtime interface {
	Set(ctx context.Context, path string, v any) error
	OnDisconnectSet(ctx context.Context, path string, v any) error
	CancelOnDisconnect(ctx context.Context, path string) error
	Subscribe(ctx context.Context, path string) (*stream.Subscription[any], error)
}

// User is the signed-in account as the auth service reports it.
type User struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoURL"`
}

// ProfileUpdate changes the auth profile. Nil fields are left alone.
type ProfileUpdate struct {
	DisplayName *string `json:"displayName,omitempty"`
	PhotoURL    *string `json:"photoURL,omitempty"`
}

type Auth interface {
	SignUp(ctx context.Context, email, password string) (*User, error)
	SignIn(ctx context.Context, email, password string) (*User, error)
	SignOut(ctx context.Context) error
	// CurrentUser is nil while signed out.
	CurrentUser() *User
	// OnAuthStateChanged yields the current user (nil when signed out) now
	// and on every transition.
	OnAuthStateChanged(ctx context.Context) (*stream.Subscription[*User], error)
	UpdateProfile(ctx context.Context, u ProfileUpdate) error
}

type Push interface {
	GetToken(ctx context.Context, vapidKey string) (string, error)
	// OnForegroundMessage yields payloads received while the app is open.
	OnForegroundMessage(ctx context.Context) (*stream.Subscription[push.Payload], error)
}
