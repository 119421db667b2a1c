package remote

import (
	"context"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/Tushar13233u/my-new-chat-app/internal/apperr"
	"github.com/Tushar13233u/my-new-chat-app/internal/chat"
	"github.com/Tushar13233u/my-new-chat-app/internal/push"
	"github.com/Tushar13233u/my-new-chat-app/internal/realtime"
	"github.com/Tushar13233u/my-new-chat-app/internal/rpc"
	"github.com/Tushar13233u/my-new-chat-app/internal/stream"
)

const bufSize = 1024 * 1024

// fakeBackend serves the auth, realtime and push services without storage.
type fakeBackend struct {
	tree *realtime.Tree

	mu       sync.Mutex
	tokens   []string // bearer tokens seen by Session, in order
	sessions int
	payloads chan push.Payload
	// dropOn ends the session, unacknowledged, when a set on this path arrives
	dropOn string
}

func (f *fakeBackend) SignUp(ctx context.Context, req *rpc.SignUpRequest) (*rpc.AuthResponse, error) {
	return nil, apperr.ErrEmailInUse
}

func (f *fakeBackend) SignIn(ctx context.Context, req *rpc.SignInRequest) (*rpc.AuthResponse, error) {
	if req.Password != "secret1" {
		return nil, apperr.ErrInvalidCredential
	}
	return &rpc.AuthResponse{
		Token: "tok-" + req.Email,
		User:  rpc.UserInfo{UID: "u-" + req.Email, Email: req.Email},
	}, nil
}

func (f *fakeBackend) UpdateProfile(ctx context.Context, req *rpc.UpdateProfileRequest) (*rpc.UserInfo, error) {
	email := strings.TrimPrefix(bearerOf(ctx), "tok-")
	info := &rpc.UserInfo{UID: "u-" + email, Email: email}
	if req.DisplayName != nil {
		info.DisplayName = *req.DisplayName
	}
	return info, nil
}

func (f *fakeBackend) Me(ctx context.Context, _ *emptypb.Empty) (*rpc.UserInfo, error) {
	token := bearerOf(ctx)
	if token == "" {
		return nil, apperr.Unauthorized("missing token")
	}
	email := strings.TrimPrefix(token, "tok-")
	return &rpc.UserInfo{UID: "u-" + email, Email: email}, nil
}

func (f *fakeBackend) Session(srv grpc.BidiStreamingServer[rpc.SessionRequest, rpc.SessionResponse]) error {
	f.mu.Lock()
	f.tokens = append(f.tokens, bearerOf(srv.Context()))
	f.sessions++
	f.mu.Unlock()

	sess := f.tree.NewSession()
	defer sess.Close()

	var sendMu sync.Mutex
	send := func(r *rpc.SessionResponse) error {
		sendMu.Lock()
		defer sendMu.Unlock()
		return srv.Send(r)
	}
	var wg sync.WaitGroup
	subs := map[uint64]*stream.Subscription[any]{}
	defer func() {
		for _, s := range subs {
			s.Close()
		}
		wg.Wait()
	}()

	for {
		req, err := srv.Recv()
		if err != nil {
			return nil
		}
		f.mu.Lock()
		drop := f.dropOn != "" && req.Kind == rpc.KindSet && req.Path == f.dropOn
		f.mu.Unlock()
		if drop {
			return nil
		}

		var opErr error
		switch req.Kind {
		case rpc.KindSet:
			opErr = sess.Set(srv.Context(), req.Path, req.Value)
		case rpc.KindOnDisconnectSet:
			opErr = sess.OnDisconnectSet(srv.Context(), req.Path, req.Value)
		case rpc.KindCancelOnDisconnect:
			opErr = sess.CancelOnDisconnect(srv.Context(), req.Path)
		case rpc.KindSubscribe:
			if strings.HasPrefix(req.Path, "secret") {
				opErr = apperr.Forbidden("no")
				break
			}
			var sub *stream.Subscription[any]
			if sub, opErr = sess.Subscribe(srv.Context(), req.Path); opErr == nil {
				subs[req.SubID] = sub
				wg.Add(1)
				go func(id uint64) {
					defer wg.Done()
					for {
						select {
						case v := <-sub.Updates():
							if send(&rpc.SessionResponse{Kind: rpc.KindValue, SubID: id, Value: v}) != nil {
								return
							}
						case <-sub.Done():
							return
						}
					}
				}(req.SubID)
			}
		case rpc.KindUnsubscribe:
			if s, ok := subs[req.SubID]; ok {
				delete(subs, req.SubID)
				s.Close()
			}
		}
		resp := &rpc.SessionResponse{Kind: rpc.KindAck, Seq: req.Seq}
		if ae, ok := opErr.(*apperr.AppError); ok {
			resp.Error = ae
		} else if opErr != nil {
			resp.Error = &apperr.AppError{Code: apperr.CodeInternal, Message: opErr.Error()}
		}
		if send(resp) != nil {
			return nil
		}
	}
}

func (f *fakeBackend) GetToken(ctx context.Context, req *rpc.TokenRequest) (*rpc.TokenResponse, error) {
	if bearerOf(ctx) == "" {
		return nil, apperr.Unauthorized("missing token")
	}
	return &rpc.TokenResponse{Token: "device-1"}, nil
}

func (f *fakeBackend) ClearToken(ctx context.Context, _ *emptypb.Empty) (*rpc.ClearTokenResponse, error) {
	return &rpc.ClearTokenResponse{Success: true}, nil
}

func (f *fakeBackend) Deliveries(req *rpc.DeliveriesRequest, srv grpc.ServerStreamingServer[push.Payload]) error {
	if req.Token != "device-1" {
		return apperr.Forbidden("unknown token")
	}
	for {
		select {
		case p := <-f.payloads:
			if err := srv.Send(&p); err != nil {
				return nil
			}
		case <-srv.Context().Done():
			return nil
		}
	}
}

func (f *fakeBackend) sessionCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sessions
}

func (f *fakeBackend) lastToken() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.tokens) == 0 {
		return ""
	}
	return f.tokens[len(f.tokens)-1]
}

func bearerOf(ctx context.Context) string {
	md, _ := metadata.FromIncomingContext(ctx)
	vals := md.Get("authorization")
	if len(vals) == 0 {
		return ""
	}
	return strings.TrimPrefix(vals[0], "Bearer ")
}

func startBackend(t *testing.T) (*fakeBackend, *Client) {
	t.Helper()
	backend := &fakeBackend{tree: realtime.NewTree(), payloads: make(chan push.Payload, 4)}

	lis := bufconn.Listen(bufSize)
	s := grpc.NewServer()
	rpc.RegisterAuthServer(s, backend)
	rpc.RegisterRealtimeServer(s, backend)
	rpc.RegisterPushServer(s, backend)
	go func() { _ = s.Serve(lis) }()

	cc, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	client := New(cc, Options{RetryDelay: 20 * time.Millisecond})
	t.Cleanup(func() {
		_ = client.Close()
		_ = cc.Close()
		s.Stop()
	})
	return backend, client
}

func next[T any](t *testing.T, sub *stream.Subscription[T]) T {
	t.Helper()
	select {
	case v := <-sub.Updates():
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a value")
	}
	var zero T
	return zero
}

// nextMatching reads values until ok accepts one.
func nextMatching[T any](t *testing.T, sub *stream.Subscription[T], ok func(T) bool) T {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case v := <-sub.Updates():
			if ok(v) {
				return v
			}
		case <-deadline:
			t.Fatal("timed out waiting for a matching value")
			var zero T
			return zero
		}
	}
}

func TestAuthSignInAndRestore(t *testing.T) {
	_, client := startBackend(t)
	ctx := context.Background()

	states, err := client.Auth.OnAuthStateChanged(ctx)
	require.NoError(t, err)
	defer states.Close()
	assert.Nil(t, next(t, states))

	u, err := client.Auth.SignIn(ctx, "a@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "u-a@example.com", u.UID)
	assert.Equal(t, "tok-a@example.com", client.Auth.Token())
	assert.Equal(t, "u-a@example.com", next(t, states).UID)

	name := "Alice"
	require.NoError(t, client.Auth.UpdateProfile(ctx, chat.ProfileUpdate{DisplayName: &name}))
	assert.Equal(t, "Alice", client.Auth.CurrentUser().DisplayName)

	require.NoError(t, client.Auth.SignOut(ctx))
	assert.Nil(t, client.Auth.CurrentUser())
	assert.Nil(t, next(t, states))

	u, err = client.Auth.Restore(ctx, "tok-b@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u-b@example.com", u.UID)
}

func TestAuthErrorsKeepReasons(t *testing.T) {
	_, client := startBackend(t)
	ctx := context.Background()

	_, err := client.Auth.SignIn(ctx, "a@example.com", "wrong")
	assert.ErrorIs(t, err, apperr.ErrInvalidCredential)
	assert.Nil(t, client.Auth.CurrentUser())

	_, err = client.Auth.SignUp(ctx, "a@example.com", "secret1")
	assert.ErrorIs(t, err, apperr.ErrEmailInUse)

	_, err = client.Auth.Restore(ctx, "")
	assert.Equal(t, apperr.CodeUnauthenticated, apperr.CodeOf(err))
	assert.Empty(t, client.Auth.Token())
}

func TestAuthErrorMapsTransportFailures(t *testing.T) {
	err := authError(status.Error(codes.Unavailable, "connection refused"))
	assert.ErrorIs(t, err, apperr.ErrNetworkFailed)

	err = authError(apperr.ErrWeakPassword)
	assert.ErrorIs(t, err, apperr.ErrWeakPassword)
}

func TestTokenStoreCallOpts(t *testing.T) {
	var ts tokenStore
	assert.Empty(t, ts.callOpts())
	ts.set("abc")
	assert.Len(t, ts.callOpts(), 1)

	md, err := bearer{token: "abc"}.GetRequestMetadata(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer abc", md["authorization"])
	assert.True(t, bearer{secure: true}.RequireTransportSecurity())
}

func TestRealtimeSetAndSubscribe(t *testing.T) {
	_, client := startBackend(t)
	ctx := context.Background()

	sub, err := client.Realtime.Subscribe(ctx, "status/u1")
	require.NoError(t, err)
	defer sub.Close()
	assert.Nil(t, next(t, sub))

	require.NoError(t, client.Realtime.Set(ctx, "status/u1", map[string]any{"isOnline": true}))
	v := nextMatching(t, sub, func(v any) bool { return v != nil })
	assert.Equal(t, map[string]any{"isOnline": true}, v)
}

func TestRealtimeRejectedSubscription(t *testing.T) {
	_, client := startBackend(t)
	ctx := context.Background()

	// the first call opens the stream, so wait for the connection first
	conn, err := client.Realtime.Subscribe(ctx, realtime.ConnectedPath)
	require.NoError(t, err)
	defer conn.Close()
	nextMatching(t, conn, func(v any) bool { return v == true })

	_, err = client.Realtime.Subscribe(ctx, "secret/x")
	assert.Equal(t, apperr.CodePermissionDenied, apperr.CodeOf(err))

	_, err = client.Realtime.Subscribe(ctx, "bad//path")
	assert.Error(t, err)
}

func TestRealtimeReconnectRunsHooksAndResubscribes(t *testing.T) {
	backend, client := startBackend(t)
	ctx := context.Background()

	conn, err := client.Realtime.Subscribe(ctx, realtime.ConnectedPath)
	require.NoError(t, err)
	defer conn.Close()
	nextMatching(t, conn, func(v any) bool { return v == true })

	sub, err := client.Realtime.Subscribe(ctx, "status/u1")
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, client.Realtime.Set(ctx, "status/u1", "online"))
	nextMatching(t, sub, func(v any) bool { return v == "online" })
	require.NoError(t, client.Realtime.OnDisconnectSet(ctx, "status/u1", "offline"))

	client.Realtime.Reconnect()

	// the old session's hook fires and the resubscribed feed sees it
	nextMatching(t, sub, func(v any) bool { return v == "offline" })
	nextMatching(t, conn, func(v any) bool { return v == true })
	assert.Eventually(t, func() bool { return backend.sessionCount() >= 2 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, client.Realtime.Set(ctx, "status/u1", "back"))
	nextMatching(t, sub, func(v any) bool { return v == "back" })
}

func TestRealtimeCancelOnDisconnect(t *testing.T) {
	backend, client := startBackend(t)
	ctx := context.Background()

	require.NoError(t, client.Realtime.Set(ctx, "status/u2", "online"))
	require.NoError(t, client.Realtime.OnDisconnectSet(ctx, "status/u2", "offline"))
	require.NoError(t, client.Realtime.CancelOnDisconnect(ctx, "status/u2"))

	client.Realtime.Reconnect()
	assert.Eventually(t, func() bool { return backend.sessionCount() >= 2 }, 2*time.Second, 10*time.Millisecond)

	sub, err := client.Realtime.Subscribe(ctx, "status/u2")
	require.NoError(t, err)
	defer sub.Close()
	assert.Equal(t, "online", nextMatching(t, sub, func(v any) bool { return v != nil }))
}

func TestSignInReopensRealtimeWithToken(t *testing.T) {
	backend, client := startBackend(t)
	ctx := context.Background()

	require.NoError(t, client.Realtime.Set(ctx, "status/anon", true))
	assert.Equal(t, "", backend.lastToken())

	_, err := client.Auth.SignIn(ctx, "a@example.com", "secret1")
	require.NoError(t, err)

	require.NoError(t, client.Realtime.Set(ctx, "status/a", true))
	assert.Eventually(t, func() bool { return backend.lastToken() == "tok-a@example.com" }, 2*time.Second, 10*time.Millisecond)
}

func TestRealtimeClosed(t *testing.T) {
	_, client := startBackend(t)
	client.Realtime.Close()

	err := client.Realtime.Set(context.Background(), "status/u1", true)
	assert.Error(t, err)
	_, err = client.Realtime.Subscribe(context.Background(), "status/u1")
	assert.Error(t, err)
}

func TestPushDeliveries(t *testing.T) {
	backend, client := startBackend(t)
	ctx := context.Background()

	_, err := client.Push.GetToken(ctx, "vapid")
	assert.Equal(t, apperr.CodeUnauthenticated, apperr.CodeOf(err))

	_, err = client.Auth.SignIn(ctx, "a@example.com", "secret1")
	require.NoError(t, err)

	msgs, err := client.Push.OnForegroundMessage(ctx)
	require.NoError(t, err)
	defer msgs.Close()

	token, err := client.Push.GetToken(ctx, "vapid")
	require.NoError(t, err)
	assert.Equal(t, "device-1", token)
	assert.Equal(t, "device-1", client.Push.Token())

	backend.payloads <- push.Payload{Notification: push.Notification{Title: "New message from Bob", Body: "hi"}}
	p := next(t, msgs)
	assert.Equal(t, "hi", p.Notification.Body)

	require.NoError(t, client.Auth.SignOut(ctx))
	assert.Empty(t, client.Push.Token())

	require.NoError(t, client.Push.ClearToken(ctx))
}

func TestRealtimeWriteCutOffIsNotResent(t *testing.T) {
	backend, client := startBackend(t)
	ctx := context.Background()
	backend.mu.Lock()
	backend.dropOn = "status/u3"
	backend.mu.Unlock()

	conn, err := client.Realtime.Subscribe(ctx, realtime.ConnectedPath)
	require.NoError(t, err)
	defer conn.Close()
	nextMatching(t, conn, func(v any) bool { return v == true })

	err = client.Realtime.Set(ctx, "status/u3", "online")
	assert.ErrorIs(t, err, errConnectionLost)

	// the next stream comes up without the write
	nextMatching(t, conn, func(v any) bool { return v == true })
	assert.Eventually(t, func() bool { return backend.sessionCount() >= 2 }, 2*time.Second, 10*time.Millisecond)

	sub, err := client.Realtime.Subscribe(ctx, "status/u3")
	require.NoError(t, err)
	defer sub.Close()
	assert.Nil(t, next(t, sub))
	assert.Never(t, func() bool {
		select {
		case v := <-sub.Updates():
			return v != nil
		default:
			return false
		}
	}, 200*time.Millisecond, 20*time.Millisecond)
}
