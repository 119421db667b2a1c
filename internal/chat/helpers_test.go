package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Tushar13233u/my-new-chat-app/internal/apperr"
	"github.com/Tushar13233u/my-new-chat-app/internal/docstore"
	"github.com/Tushar13233u/my-new-chat-app/internal/push"
	"github.com/Tushar13233u/my-new-chat-app/internal/stream"
)

// fakeAuth is a single-device auth service.
type fakeAuth struct {
	mu       sync.Mutex
	user     *User
	accounts map[string]string
	next     int
	updates  []ProfileUpdate
	subs     []*stream.Subscription[*User]
}

func newFakeAuth(u *User) *fakeAuth {
	return &fakeAuth{user: u, accounts: map[string]string{}}
}

func (f *fakeAuth) SignUp(ctx context.Context, email, password string) (*User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(password) < 6 {
		return nil, apperr.ErrWeakPassword
	}
	if _, ok := f.accounts[email]; ok {
		return nil, apperr.ErrEmailInUse
	}
	f.accounts[email] = password
	f.next++
	f.user = &User{UID: "uid-" + string(rune('0'+f.next)), Email: email}
	f.notify()
	u := *f.user
	return &u, nil
}

func (f *fakeAuth) SignIn(ctx context.Context, email, password string) (*User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if pw, ok := f.accounts[email]; !ok || pw != password {
		return nil, apperr.ErrInvalidCredential
	}
	f.user = &User{UID: "uid-signed-in", Email: email}
	f.notify()
	u := *f.user
	return &u, nil
}

func (f *fakeAuth) SignOut(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.user = nil
	f.notify()
	return nil
}

func (f *fakeAuth) CurrentUser() *User {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.user == nil {
		return nil
	}
	u := *f.user
	return &u
}

func (f *fakeAuth) OnAuthStateChanged(ctx context.Context) (*stream.Subscription[*User], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sub := stream.New[*User](nil)
	sub.Push(f.user)
	f.subs = append(f.subs, sub)
	return sub, nil
}

func (f *fakeAuth) UpdateProfile(ctx context.Context, u ProfileUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.user == nil {
		return apperr.Unauthorized("not signed in")
	}
	f.updates = append(f.updates, u)
	if u.DisplayName != nil {
		f.user.DisplayName = *u.DisplayName
	}
	if u.PhotoURL != nil {
		f.user.PhotoURL = *u.PhotoURL
	}
	return nil
}

// notify must be called with f.mu held.
func (f *fakeAuth) notify() {
	for _, s := range f.subs {
		s.Push(f.user)
	}
}

type fakePush struct {
	token string
	err   error
	fg    *stream.Subscription[push.Payload]
}

func (f *fakePush) GetToken(ctx context.Context, vapidKey string) (string, error) {
	return f.token, f.err
}

func (f *fakePush) OnForegroundMessage(ctx context.Context) (*stream.Subscription[push.Payload], error) {
	if f.fg == nil {
		f.fg = stream.New[push.Payload](nil)
	}
	return f.fg, nil
}

// flakyStore fails selected writes of an otherwise working store.
type flakyStore struct {
	*docstore.Memory
	failAdd   bool
	failBatch bool
	writes    int
}

var errWrite = errors.New("write failed")

func (s *flakyStore) Add(ctx context.Context, coll string, data map[string]any) (*docstore.Document, error) {
	if s.failAdd {
		return nil, errWrite
	}
	s.writes++
	return s.Memory.Add(ctx, coll, data)
}

func (s *flakyStore) Batch(ctx context.Context, ops []docstore.Op) error {
	if s.failBatch {
		return errWrite
	}
	s.writes++
	return s.Memory.Batch(ctx, ops)
}

func (s *flakyStore) Set(ctx context.Context, coll, id string, data map[string]any, merge bool) error {
	return s.Batch(ctx, []docstore.Op{{Kind: docstore.OpSet, Collection: coll, ID: id, Data: data, Merge: merge}})
}

func (s *flakyStore) Update(ctx context.Context, coll, id string, data map[string]any) error {
	return s.Batch(ctx, []docstore.Op{{Kind: docstore.OpUpdate, Collection: coll, ID: id, Data: data}})
}

func (s *flakyStore) Delete(ctx context.Context, coll, id string) error {
	return s.Batch(ctx, []docstore.Op{{Kind: docstore.OpDelete, Collection: coll, ID: id}})
}

// waitFor reads ch until ok accepts a value or the deadline passes.
func waitFor[T any](t *testing.T, ch <-chan T, ok func(T) bool) T {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case v := <-ch:
			if ok(v) {
				return v
			}
		case <-deadline:
			t.Fatalf("timed out waiting for value")
			var zero T
			return zero
		}
	}
}

func errPermission() error { return apperr.ErrPushPermission }
