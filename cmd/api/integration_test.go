package main

import (
	"context"
	"net"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"github.com/Tushar13233u/my-new-chat-app/internal/apperr"
	"github.com/Tushar13233u/my-new-chat-app/internal/auth"
	"github.com/Tushar13233u/my-new-chat-app/internal/chat"
	"github.com/Tushar13233u/my-new-chat-app/internal/data"
	"github.com/Tushar13233u/my-new-chat-app/internal/db"
	"github.com/Tushar13233u/my-new-chat-app/internal/docstore"
	"github.com/Tushar13233u/my-new-chat-app/internal/middleware"
	"github.com/Tushar13233u/my-new-chat-app/internal/push"
	"github.com/Tushar13233u/my-new-chat-app/internal/realtime"
	"github.com/Tushar13233u/my-new-chat-app/internal/remote"
	"github.com/Tushar13233u/my-new-chat-app/internal/rpc"
)

const bufSize = 1024 * 1024

// testBackend is the full gRPC stack served over bufconn.
type testBackend struct {
	srv *Server
	lis *bufconn.Listener
}

func startTestBackend(t *testing.T, accounts accountStore, docs docstore.Store) *testBackend {
	t.Helper()
	jwtMgr := auth.NewJWTManager("test-secret", time.Hour)
	limiter := middleware.NewLimiterStore(600, 100, time.Minute)
	t.Cleanup(limiter.Stop)

	lis := bufconn.Listen(bufSize)
	s := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			errorUnaryInterceptor(quietLogger),
			middleware.RateLimitUnaryInterceptor(limiter, map[string]bool{
				rpc.Auth_SignUp_FullMethodName: true,
				rpc.Auth_SignIn_FullMethodName: true,
			}),
			authUnaryInterceptor(jwtMgr),
		),
		grpc.ChainStreamInterceptor(
			errorStreamInterceptor(quietLogger),
			authStreamInterceptor(jwtMgr),
		),
	)
	srv := newServer(accounts, docs, realtime.NewTree(), push.NewHub(), jwtMgr, "https://chat.example.com", quietLogger)
	registerServices(s, srv)
	go func() { _ = s.Serve(lis) }()

	t.Cleanup(func() {
		s.Stop()
		srv.wait()
	})
	return &testBackend{srv: srv, lis: lis}
}

// dial returns a remote client with its own connection.
func (b *testBackend) dial(t *testing.T) *remote.Client {
	t.Helper()
	dialer := func(ctx context.Context, _ string) (net.Conn, error) { return b.lis.DialContext(ctx) }
	client, err := remote.Dial("passthrough:///bufnet", remote.Options{Logger: quietLogger, RetryDelay: 20 * time.Millisecond},
		grpc.WithContextDialer(dialer),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	return client
}

func newClientApp(client *remote.Client) *chat.App {
	return chat.NewApp(chat.Deps{
		Auth:       client.Auth,
		Docs:       client.Docs,
		Realtime:   client.Realtime,
		Push:       client.Push,
		VAPIDKey:   "test-vapid-key",
		TypingIdle: 100 * time.Millisecond,
		Logger:     quietLogger,
	})
}

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
			t.Fatal("timed out waiting for update")
			var zero T
			return zero
		}
	}
}

// Alice messages Bob: Bob gets a push while his app is open, reading the
// chat marks the message read and Alice sees the receipt.
func TestMessageFlowEndToEnd(t *testing.T) {
	ctx := context.Background()
	backend := startTestBackend(t, newFakeAccounts(), docstore.NewMemory())

	aliceApp := newClientApp(backend.dial(t))
	bobClient := backend.dial(t)
	bobApp := newClientApp(bobClient)
	defer aliceApp.Close()
	defer bobApp.Close()

	alice, err := aliceApp.Accounts.SignUp(ctx, "alice@example.com", "secret1")
	require.NoError(t, err)
	bob, err := bobApp.Accounts.SignUp(ctx, "bob@example.com", "secret1")
	require.NoError(t, err)

	_, err = bobApp.Accounts.SignUp(ctx, "bob@example.com", "secret1")
	assert.ErrorIs(t, err, apperr.ErrEmailInUse)

	require.NoError(t, bobApp.Start(ctx))
	assert.Eventually(t, func() bool {
		token := bobClient.Push.Token()
		return token != "" && backend.srv.hub.Connected(token)
	}, 3*time.Second, 10*time.Millisecond)

	payloads := make(chan push.Payload, 4)
	stop, err := bobApp.Notifier.Foreground(ctx, func(p push.Payload) { payloads <- p })
	require.NoError(t, err)
	defer stop()

	ac, err := aliceApp.OpenConversation(ctx, bob.UID)
	require.NoError(t, err)
	defer ac.Close()

	ac.Edit("hello bob")
	sent, err := ac.Send(ctx)
	require.NoError(t, err)
	assert.Equal(t, "hello bob", sent.Text)

	p := waitFor(t, payloads, func(push.Payload) bool { return true })
	assert.Equal(t, alice.DisplayName, p.Notification.Title)
	assert.Equal(t, "hello bob", p.Notification.Body)
	assert.Equal(t, alice.UID, p.Data.SenderID)

	bc, err := bobApp.OpenConversation(ctx, alice.UID)
	require.NoError(t, err)
	defer bc.Close()
	waitFor(t, bc.Messages(), func(m []chat.Message) bool { return len(m) == 1 && m[0].Text == "hello bob" })

	msgs := waitFor(t, ac.Messages(), func(m []chat.Message) bool { return len(m) == 1 && m[0].Read })
	assert.Equal(t, chat.StatusRead, ac.Feed.Status(msgs[0]))

	// only the sender may delete
	assert.ErrorIs(t, bc.Delete(ctx, msgs[0]), apperr.ErrNotSender)
	require.NoError(t, ac.Delete(ctx, msgs[0]))
	waitFor(t, ac.Messages(), func(m []chat.Message) bool { return len(m) == 0 })
}

func TestPresenceEndToEnd(t *testing.T) {
	ctx := context.Background()
	backend := startTestBackend(t, newFakeAccounts(), docstore.NewMemory())

	aliceApp := newClientApp(backend.dial(t))
	bobApp := newClientApp(backend.dial(t))
	defer aliceApp.Close()

	_, err := aliceApp.Accounts.SignUp(ctx, "alice@example.com", "secret1")
	require.NoError(t, err)
	bob, err := bobApp.Accounts.SignUp(ctx, "bob@example.com", "secret1")
	require.NoError(t, err)

	watch, err := aliceApp.Presence.Watch(ctx, bob.UID)
	require.NoError(t, err)
	defer watch.Close()

	require.NoError(t, bobApp.Start(ctx))
	waitFor(t, watch.Updates(), func(r chat.PresenceRecord) bool { return r.Online() })

	// closing the app ends the realtime stream; the disconnect hook marks
	// bob offline
	require.NoError(t, bobApp.Close())
	waitFor(t, watch.Updates(), func(r chat.PresenceRecord) bool { return !r.Online() })
}

func TestRulesApplyOverTheWire(t *testing.T) {
	ctx := context.Background()
	backend := startTestBackend(t, newFakeAccounts(), docstore.NewMemory())

	carol := backend.dial(t)
	defer carol.Close()
	_, err := carol.Auth.SignUp(ctx, "carol@example.com", "secret1")
	require.NoError(t, err)

	_, err = carol.Docs.Query(ctx, docstore.Query{Collection: chat.MessagesCollection("alice", "bob")})
	assert.Equal(t, apperr.CodePermissionDenied, apperr.CodeOf(err))

	err = carol.Realtime.Set(ctx, "status/someone-else", true)
	assert.Equal(t, apperr.CodePermissionDenied, apperr.CodeOf(err))

	anon := backend.dial(t)
	defer anon.Close()
	_, err = anon.Docs.Get(ctx, chat.UsersCollection, "x")
	assert.Equal(t, apperr.CodeUnauthenticated, apperr.CodeOf(err))

	_, err = anon.Auth.SignIn(ctx, "carol@example.com", "wrong-pass")
	assert.ErrorIs(t, err, apperr.ErrInvalidCredential)
}

func TestRegisterAndLoginMongo(t *testing.T) {
	uri := os.Getenv("MONGODB_URI")
	if uri == "" {
		t.Skip("MONGODB_URI not set; skipping integration test")
	}

	ctx := context.Background()
	dbClient, err := db.New(ctx, uri, "chat_integration_test")
	require.NoError(t, err)
	require.NoError(t, dbClient.CreateIndexes(ctx))
	defer func() {
		_ = dbClient.AccountsCollection().Drop(context.Background())
		_ = dbClient.DocumentsCollection().Drop(context.Background())
		_ = dbClient.Close(context.Background())
	}()

	docs := data.NewDocumentsStore(dbClient.DocumentsCollection(), quietLogger)
	backend := startTestBackend(t, data.NewAccountsStore(dbClient.AccountsCollection()), docs)

	client := backend.dial(t)
	defer client.Close()
	app := newClientApp(client)

	email := time.Now().UTC().Format("20060102-150405") + "-it@example.com"
	u, err := app.Accounts.SignUp(ctx, email, "testPass123")
	require.NoError(t, err)
	require.NotEmpty(t, u.UID)

	require.NoError(t, app.Accounts.SignOut(ctx))
	u2, err := app.Accounts.SignIn(ctx, email, "testPass123")
	require.NoError(t, err)
	assert.Equal(t, u.UID, u2.UID)

	doc, err := docs.Get(ctx, chat.UsersCollection, u.UID)
	require.NoError(t, err)
	assert.Equal(t, u.DisplayName, doc.Data["displayName"])
}
