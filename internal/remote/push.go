package remote

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/Tushar13233u/my-new-chat-app/internal/apperr"
	"github.com/Tushar13233u/my-new-chat-app/internal/chat"
	"github.com/Tushar13233u/my-new-chat-app/internal/push"
	"github.com/Tushar13233u/my-new-chat-app/internal/rpc"
	"github.com/Tushar13233u/my-new-chat-app/internal/stream"
)

// Push is chat.Push over the Push service. Once a device token is issued a
// Deliveries stream feeds the foreground subscribers until the session
// changes.
type Push struct {
	client     rpc.PushClient
	creds      *tokenStore
	logger     *slog.Logger
	retryDelay time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	token   string
	stop    context.CancelFunc
	nextSub int64
	subs    map[int64]*stream.Subscription[push.Payload]
}

var _ chat.Push = (*Push)(nil)

func newPush(client rpc.PushClient, creds *tokenStore, opts Options) *Push {
	ctx, cancel := context.WithCancel(context.Background())
	return &Push{
		client:     client,
		creds:      creds,
		logger:     opts.Logger,
		retryDelay: opts.RetryDelay,
		ctx:        ctx,
		cancel:     cancel,
		subs:       map[int64]*stream.Subscription[push.Payload]{},
	}
}

// GetToken issues a device token for the signed in user and starts
// listening for deliveries to it.
func (p *Push) GetToken(ctx context.Context, vapidKey string) (string, error) {
	resp, err := p.client.GetToken(ctx, &rpc.TokenRequest{VAPIDKey: vapidKey}, p.creds.callOpts()...)
	if err != nil {
		return "", rpcError(err)
	}
	p.listen(resp.Token)
	return resp.Token, nil
}

// ClearToken removes the caller's device token on the server.
func (p *Push) ClearToken(ctx context.Context) error {
	if _, err := p.client.ClearToken(ctx, &emptypb.Empty{}, p.creds.callOpts()...); err != nil {
		return rpcError(err)
	}
	p.stopDeliveries()
	return nil
}

func (p *Push) OnForegroundMessage(ctx context.Context) (*stream.Subscription[push.Payload], error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ctx.Err() != nil {
		return nil, apperr.New(apperr.CodeUnavailable, "push client closed")
	}
	p.nextSub++
	id := p.nextSub
	sub := stream.New[push.Payload](func() {
		p.mu.Lock()
		delete(p.subs, id)
		p.mu.Unlock()
	})
	p.subs[id] = sub
	return sub, nil
}

// Token is the device token currently listened on ("" if none).
func (p *Push) Token() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.token
}

func (p *Push) Close() {
	p.cancel()
	p.wg.Wait()

	p.mu.Lock()
	subs := p.subs
	p.subs = map[int64]*stream.Subscription[push.Payload]{}
	p.mu.Unlock()
	for _, s := range subs {
		s.Close()
	}
}

// listen replaces the delivery loop with one for token. The same token
// keeps the running loop.
func (p *Push) listen(token string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ctx.Err() != nil || (p.token == token && p.stop != nil) {
		return
	}
	if p.stop != nil {
		p.stop()
	}
	ctx, cancel := context.WithCancel(p.ctx)
	p.token, p.stop = token, cancel
	p.wg.Add(1)
	go p.deliveries(ctx, token)
}

// stopDeliveries ends the delivery loop; the next GetToken starts a new one.
func (p *Push) stopDeliveries() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stop != nil {
		p.stop()
	}
	p.token, p.stop = "", nil
}

func (p *Push) deliveries(ctx context.Context, token string) {
	defer p.wg.Done()
	for {
		err := p.receive(ctx, token)
		if ctx.Err() != nil {
			return
		}
		switch apperr.CodeOf(err) {
		case apperr.CodePermissionDenied, apperr.CodeUnauthenticated, apperr.CodeInvalidArgument:
			p.logger.Warn("push deliveries stopped", "err", err)
			return
		}
		p.logger.Debug("push deliveries interrupted", "err", err)
		if !sleep(ctx, p.retryDelay) {
			return
		}
	}
}

func (p *Push) receive(ctx context.Context, token string) error {
	st, err := p.client.Deliveries(ctx, &rpc.DeliveriesRequest{Token: token}, p.creds.callOpts()...)
	if err != nil {
		return rpcError(err)
	}
	for {
		payload, err := st.Recv()
		if err != nil {
			return rpcError(err)
		}
		p.mu.Lock()
		subs := make([]*stream.Subscription[push.Payload], 0, len(p.subs))
		for _, s := range p.subs {
			subs = append(subs, s)
		}
		p.mu.Unlock()
		for _, s := range subs {
			s.Push(*payload)
		}
	}
}
