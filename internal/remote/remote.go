// Package remote implements the client-core collaborators (auth, documents,
// realtime, push) over the chat.v1 gRPC services.
package remote

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"google.golang.org/grpc"

	"github.com/Tushar13233u/my-new-chat-app/internal/apperr"
	"github.com/Tushar13233u/my-new-chat-app/internal/rpc"
)

const defaultRetryDelay = time.Second

type Options struct {
	Logger *slog.Logger
	// RequireTLS refuses to attach the bearer token to plaintext connections.
	RequireTLS bool
	// RetryDelay is the pause between reconnect attempts of long-lived streams.
	RetryDelay time.Duration
}

// Client bundles the collaborators sharing one connection and one signed in
// session.
type Client struct {
	Auth     *Auth
	Docs     *Documents
	Realtime *Realtime
	Push     *Push

	owned *grpc.ClientConn
}

// New builds a Client over cc. The caller keeps ownership of cc.
func New(cc grpc.ClientConnInterface, opts Options) *Client {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = defaultRetryDelay
	}
	creds := &tokenStore{secure: opts.RequireTLS}
	c := &Client{
		Docs:     newDocuments(rpc.NewDocumentsClient(cc), creds, opts),
		Realtime: newRealtime(rpc.NewRealtimeClient(cc), creds, opts),
		Push:     newPush(rpc.NewPushClient(cc), creds, opts),
	}
	c.Auth = newAuth(rpc.NewAuthClient(cc), creds, opts, func() {
		// streams authenticate once, when they open
		c.Realtime.Reconnect()
		c.Push.stopDeliveries()
	})
	return c
}

// Dial connects to target and returns a Client owning the connection.
func Dial(target string, opts Options, dialOpts ...grpc.DialOption) (*Client, error) {
	cc, err := grpc.NewClient(target, dialOpts...)
	if err != nil {
		return nil, err
	}
	c := New(cc, opts)
	c.owned = cc
	return c, nil
}

// Close stops the long-lived streams and closes an owned connection.
func (c *Client) Close() error {
	c.Realtime.Close()
	c.Push.Close()
	if c.owned != nil {
		return c.owned.Close()
	}
	return nil
}

// tokenStore holds the session token and turns it into per-RPC credentials.
type tokenStore struct {
	mu     sync.RWMutex
	token  string
	secure bool
}

func (t *tokenStore) set(token string) {
	t.mu.Lock()
	t.token = token
	t.mu.Unlock()
}

func (t *tokenStore) get() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.token
}

// callOpts adds the bearer credentials when signed in.
func (t *tokenStore) callOpts() []grpc.CallOption {
	token := t.get()
	if token == "" {
		return nil
	}
	return []grpc.CallOption{grpc.PerRPCCredentials(bearer{token: token, secure: t.secure})}
}

type bearer struct {
	token  string
	secure bool
}

func (b bearer) GetRequestMetadata(ctx context.Context, uri ...string) (map[string]string, error) {
	return map[string]string{"authorization": "Bearer " + b.token}, nil
}

func (b bearer) RequireTransportSecurity() bool { return b.secure }

// sleep waits d or until ctx is done, reporting whether d elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// rpcError maps a failed call onto the domain taxonomy.
func rpcError(err error) error {
	return apperr.FromError(err)
}
