package remote

import (
	"context"
	"log/slog"
	"sync"

	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/Tushar13233u/my-new-chat-app/internal/apperr"
	"github.com/Tushar13233u/my-new-chat-app/internal/chat"
	"github.com/Tushar13233u/my-new-chat-app/internal/rpc"
	"github.com/Tushar13233u/my-new-chat-app/internal/stream"
)

// Auth is chat.Auth over the Auth service. The token it obtains
// authenticates every other remote collaborator of the same Client.
type Auth struct {
	client   rpc.AuthClient
	creds    *tokenStore
	logger   *slog.Logger
	onChange func()

	mu       sync.Mutex
	user     *chat.User
	watchers map[int64]*stream.Subscription[*chat.User]
	nextID   int64
}

var _ chat.Auth = (*Auth)(nil)

func newAuth(client rpc.AuthClient, creds *tokenStore, opts Options, onChange func()) *Auth {
	return &Auth{
		client:   client,
		creds:    creds,
		logger:   opts.Logger,
		onChange: onChange,
		watchers: map[int64]*stream.Subscription[*chat.User]{},
	}
}

func (a *Auth) SignUp(ctx context.Context, email, password string) (*chat.User, error) {
	resp, err := a.client.SignUp(ctx, &rpc.SignUpRequest{Email: email, Password: password})
	if err != nil {
		return nil, authError(err)
	}
	return a.signedIn(resp), nil
}

func (a *Auth) SignIn(ctx context.Context, email, password string) (*chat.User, error) {
	resp, err := a.client.SignIn(ctx, &rpc.SignInRequest{Email: email, Password: password})
	if err != nil {
		return nil, authError(err)
	}
	return a.signedIn(resp), nil
}

// Restore resumes a session from a previously issued token.
func (a *Auth) Restore(ctx context.Context, token string) (*chat.User, error) {
	a.creds.set(token)
	info, err := a.client.Me(ctx, &emptypb.Empty{}, a.creds.callOpts()...)
	if err != nil {
		a.creds.set("")
		return nil, authError(err)
	}
	return a.setUser(toUser(info)), nil
}

// Token is the current session token ("" while signed out).
func (a *Auth) Token() string { return a.creds.get() }

func (a *Auth) SignOut(ctx context.Context) error {
	a.creds.set("")
	a.setUser(nil)
	return nil
}

func (a *Auth) CurrentUser() *chat.User {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.user == nil {
		return nil
	}
	u := *a.user
	return &u
}

func (a *Auth) OnAuthStateChanged(ctx context.Context) (*stream.Subscription[*chat.User], error) {
	a.mu.Lock()
	a.nextID++
	id := a.nextID
	sub := stream.New[*chat.User](func() {
		a.mu.Lock()
		delete(a.watchers, id)
		a.mu.Unlock()
	})
	a.watchers[id] = sub
	sub.Push(copyUser(a.user))
	a.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			sub.Close()
		case <-sub.Done():
		}
	}()
	return sub, nil
}

func (a *Auth) UpdateProfile(ctx context.Context, u chat.ProfileUpdate) error {
	info, err := a.client.UpdateProfile(ctx, &rpc.UpdateProfileRequest{DisplayName: u.DisplayName, PhotoURL: u.PhotoURL}, a.creds.callOpts()...)
	if err != nil {
		return authError(err)
	}
	// a profile change is not an auth state transition
	a.mu.Lock()
	if a.user != nil && a.user.UID == info.UID {
		a.user = toUser(info)
	}
	a.mu.Unlock()
	return nil
}

func (a *Auth) signedIn(resp *rpc.AuthResponse) *chat.User {
	a.creds.set(resp.Token)
	return a.setUser(toUser(&resp.User))
}

// setUser records the new state and tells watchers and the streams.
func (a *Auth) setUser(u *chat.User) *chat.User {
	a.mu.Lock()
	a.user = u
	watchers := make([]*stream.Subscription[*chat.User], 0, len(a.watchers))
	for _, w := range a.watchers {
		watchers = append(watchers, w)
	}
	a.mu.Unlock()

	for _, w := range watchers {
		w.Push(copyUser(u))
	}
	if a.onChange != nil {
		a.onChange()
	}
	return copyUser(u)
}

func toUser(info *rpc.UserInfo) *chat.User {
	return &chat.User{UID: info.UID, Email: info.Email, DisplayName: info.DisplayName, PhotoURL: info.PhotoURL}
}

func copyUser(u *chat.User) *chat.User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

// authError keeps auth reasons and reports transport failures as
// ErrNetworkFailed.
func authError(err error) error {
	err = rpcError(err)
	if apperr.CodeOf(err) == apperr.CodeUnavailable && apperr.ReasonOf(err) == "" {
		return apperr.ErrNetworkFailed
	}
	return err
}
