package remote

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"google.golang.org/grpc"

	"github.com/Tushar13233u/my-new-chat-app/internal/apperr"
	"github.com/Tushar13233u/my-new-chat-app/internal/chat"
	"github.com/Tushar13233u/my-new-chat-app/internal/realtime"
	"github.com/Tushar13233u/my-new-chat-app/internal/rpc"
	"github.com/Tushar13233u/my-new-chat-app/internal/stream"
)

var (
	errRealtimeClosed = apperr.New(apperr.CodeUnavailable, "realtime client closed")
	errConnectionLost = apperr.New(apperr.CodeUnavailable, "realtime connection lost")
)

type sessionStream = grpc.BidiStreamingClient[rpc.SessionRequest, rpc.SessionResponse]

// Realtime is chat.Realtime over one Session stream at a time. The stream is
// opened on first use and reopened after it breaks; .info/connected reports
// whether one is up. Subscriptions survive reconnects. Disconnect hooks do
// not: the server runs them when the old stream ends, and callers register
// them again when .info/connected turns true.
type Realtime struct {
	client     rpc.RealtimeClient
	creds      *tokenStore
	logger     *slog.Logger
	retryDelay time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
	wg     sync.WaitGroup

	mu        sync.Mutex
	cur       *conn
	ready     chan struct{} // closed while cur != nil
	kick      chan struct{}
	nextSub   uint64
	subs      map[uint64]*remoteSub
	connected map[int64]*stream.Subscription[any]
	nextConn  int64
}

var _ chat.Realtime = (*Realtime)(nil)

type remoteSub struct {
	path string
	sub  *stream.Subscription[any]
}

// conn is one open Session stream.
type conn struct {
	stream sessionStream
	cancel context.CancelFunc
	done   chan struct{}
	kicked atomic.Bool

	sendMu sync.Mutex
	mu     sync.Mutex
	seq    uint64
	acks   map[uint64]func(error)
}

func newRealtime(client rpc.RealtimeClient, creds *tokenStore, opts Options) *Realtime {
	ctx, cancel := context.WithCancel(context.Background())
	return &Realtime{
		client:     client,
		creds:      creds,
		logger:     opts.Logger,
		retryDelay: opts.RetryDelay,
		ctx:        ctx,
		cancel:     cancel,
		ready:      make(chan struct{}),
		kick:       make(chan struct{}, 1),
		subs:       map[uint64]*remoteSub{},
		connected:  map[int64]*stream.Subscription[any]{},
	}
}

func (r *Realtime) Set(ctx context.Context, path string, v any) error {
	return r.do(ctx, &rpc.SessionRequest{Kind: rpc.KindSet, Path: path, Value: v})
}

func (r *Realtime) OnDisconnectSet(ctx context.Context, path string, v any) error {
	return r.do(ctx, &rpc.SessionRequest{Kind: rpc.KindOnDisconnectSet, Path: path, Value: v})
}

func (r *Realtime) CancelOnDisconnect(ctx context.Context, path string) error {
	return r.do(ctx, &rpc.SessionRequest{Kind: rpc.KindCancelOnDisconnect, Path: path})
}

// Subscribe returns immediately. While disconnected the subscription is
// registered on the next connection.
func (r *Realtime) Subscribe(ctx context.Context, path string) (*stream.Subscription[any], error) {
	p, err := realtime.NormalizePath(path)
	if err != nil {
		return nil, err
	}
	if err := r.ctx.Err(); err != nil {
		return nil, errRealtimeClosed
	}
	r.start()

	if p == realtime.ConnectedPath {
		return r.watchConnected(), nil
	}

	r.mu.Lock()
	r.nextSub++
	id := r.nextSub
	rs := &remoteSub{path: p}
	rs.sub = stream.New[any](func() { r.unsubscribe(id) })
	r.subs[id] = rs
	c := r.cur
	r.mu.Unlock()

	if c != nil {
		wait := make(chan error, 1)
		c.send(&rpc.SessionRequest{Kind: rpc.KindSubscribe, Path: p, SubID: id}, func(err error) { wait <- err })
		select {
		case err := <-wait:
			if err != nil && err != errConnectionLost {
				rs.sub.Close()
				return nil, err
			}
		case <-ctx.Done():
			rs.sub.Close()
			return nil, ctx.Err()
		}
	}
	return rs.sub, nil
}

// Reconnect drops the current stream; the next one is opened with the
// current credentials.
func (r *Realtime) Reconnect() {
	r.mu.Lock()
	c := r.cur
	if c != nil {
		// new requests wait for the next stream
		r.cur = nil
		r.ready = make(chan struct{})
	}
	r.mu.Unlock()
	if c != nil {
		c.kicked.Store(true)
		c.cancel()
		return
	}
	select {
	case r.kick <- struct{}{}:
	default:
	}
}

// Close ends the session for good.
func (r *Realtime) Close() {
	r.cancel()
	r.wg.Wait()

	r.mu.Lock()
	subs := r.subs
	connected := r.connected
	r.subs = map[uint64]*remoteSub{}
	r.connected = map[int64]*stream.Subscription[any]{}
	r.mu.Unlock()
	for _, rs := range subs {
		rs.sub.Close()
	}
	for _, s := range connected {
		s.Close()
	}
}

func (r *Realtime) start() {
	r.once.Do(func() {
		r.wg.Add(1)
		go r.run()
	})
}

func (r *Realtime) watchConnected() *stream.Subscription[any] {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextConn++
	id := r.nextConn
	sub := stream.New[any](func() {
		r.mu.Lock()
		delete(r.connected, id)
		r.mu.Unlock()
	})
	sub.Push(r.cur != nil)
	r.connected[id] = sub
	return sub
}

func (r *Realtime) unsubscribe(id uint64) {
	r.mu.Lock()
	_, ok := r.subs[id]
	delete(r.subs, id)
	c := r.cur
	r.mu.Unlock()
	if ok && c != nil {
		c.send(&rpc.SessionRequest{Kind: rpc.KindUnsubscribe, SubID: id}, nil)
	}
}

// do sends one request, waiting for a connection first, and returns the
// server's answer. A request cut off by a dropped stream fails with
// errConnectionLost; it is not sent again, callers redo their writes when
// .info/connected turns true.
func (r *Realtime) do(ctx context.Context, req *rpc.SessionRequest) error {
	if _, err := realtime.NormalizePath(req.Path); err != nil {
		return err
	}
	r.start()
	for {
		r.mu.Lock()
		c, ready := r.cur, r.ready
		r.mu.Unlock()
		if c == nil {
			select {
			case <-ready:
				continue
			case <-ctx.Done():
				return ctx.Err()
			case <-r.ctx.Done():
				return errRealtimeClosed
			}
		}

		wait := make(chan error, 1)
		c.send(req, func(err error) { wait <- err })
		select {
		case err := <-wait:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (r *Realtime) run() {
	defer r.wg.Done()
	for r.ctx.Err() == nil {
		c, err := r.open()
		if err != nil {
			r.logger.Debug("realtime connect failed", "err", err)
			r.pause()
			continue
		}
		r.up(c)
		select {
		case <-c.done:
		case <-r.ctx.Done():
			c.cancel()
			<-c.done
		}
		r.down(c)
		if r.ctx.Err() == nil && !c.kicked.Load() {
			r.pause()
		}
	}
}

// pause waits out the retry delay; Reconnect cuts it short.
func (r *Realtime) pause() {
	t := time.NewTimer(r.retryDelay)
	defer t.Stop()
	select {
	case <-t.C:
	case <-r.kick:
	case <-r.ctx.Done():
	}
}

func (r *Realtime) open() (*conn, error) {
	sctx, cancel := context.WithCancel(r.ctx)
	st, err := r.client.Session(sctx, r.creds.callOpts()...)
	if err != nil {
		cancel()
		return nil, rpcError(err)
	}
	c := &conn{stream: st, cancel: cancel, done: make(chan struct{}), acks: map[uint64]func(error){}}
	go c.read(r)
	return c, nil
}

// up publishes c, re-registers the live subscriptions on it and reports
// connected.
func (r *Realtime) up(c *conn) {
	r.mu.Lock()
	r.cur = c
	close(r.ready)
	subs := make(map[uint64]string, len(r.subs))
	for id, rs := range r.subs {
		subs[id] = rs.path
	}
	connected := r.connectedSubs()
	r.mu.Unlock()

	for id, path := range subs {
		path := path
		c.send(&rpc.SessionRequest{Kind: rpc.KindSubscribe, Path: path, SubID: id}, func(err error) {
			if err != nil && err != errConnectionLost {
				r.logger.Warn("realtime resubscribe failed", "path", path, "err", err)
			}
		})
	}
	for _, s := range connected {
		s.Push(true)
	}
}

func (r *Realtime) down(c *conn) {
	r.mu.Lock()
	if r.cur == c {
		r.cur = nil
		r.ready = make(chan struct{})
	}
	connected := r.connectedSubs()
	r.mu.Unlock()

	c.failPending()
	for _, s := range connected {
		s.Push(false)
	}
}

// connectedSubs must be called with r.mu held.
func (r *Realtime) connectedSubs() []*stream.Subscription[any] {
	out := make([]*stream.Subscription[any], 0, len(r.connected))
	for _, s := range r.connected {
		out = append(out, s)
	}
	return out
}

func (r *Realtime) deliver(id uint64, v any) {
	r.mu.Lock()
	rs, ok := r.subs[id]
	r.mu.Unlock()
	if ok {
		rs.sub.Push(v)
	}
}

// read dispatches server frames until the stream ends.
func (c *conn) read(r *Realtime) {
	defer close(c.done)
	for {
		resp, err := c.stream.Recv()
		if err != nil {
			return
		}
		switch resp.Kind {
		case rpc.KindAck:
			c.mu.Lock()
			fn := c.acks[resp.Seq]
			delete(c.acks, resp.Seq)
			c.mu.Unlock()
			if fn != nil {
				fn(resp.Err())
			}
		case rpc.KindValue:
			r.deliver(resp.SubID, resp.Value)
		}
	}
}

// send writes req; onAck, if set, runs once with the server's answer or
// errConnectionLost.
func (c *conn) send(req *rpc.SessionRequest, onAck func(error)) {
	c.mu.Lock()
	c.seq++
	frame := *req
	frame.Seq = c.seq
	if onAck != nil {
		c.acks[frame.Seq] = onAck
	}
	c.mu.Unlock()

	c.sendMu.Lock()
	err := c.stream.Send(&frame)
	c.sendMu.Unlock()
	if err != nil {
		c.cancel()
		c.mu.Lock()
		fn := c.acks[frame.Seq]
		delete(c.acks, frame.Seq)
		c.mu.Unlock()
		if fn != nil {
			fn(errConnectionLost)
		}
	}
}

func (c *conn) failPending() {
	c.mu.Lock()
	acks := c.acks
	c.acks = map[uint64]func(error){}
	c.mu.Unlock()
	for _, fn := range acks {
		fn(errConnectionLost)
	}
}
