package chat

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Tushar13233u/my-new-chat-app/internal/stream"
)

// DefaultTypingIdle is how long a typing flag stays up without a keystroke.
const DefaultTypingIdle = 2 * time.Second

const writeTimeout = 5 * time.Second

// Typing manages the signed-in user's typing flags, one per conversation.
type Typing struct {
	rt     Realtime
	uid    string
	idle   time.Duration
	logger *slog.Logger

	// writeMu orders flag writes; an expiring timer holds it from its
	// staleness check through its write
	writeMu sync.Mutex
	mu      sync.Mutex
	timers  map[string]*time.Timer
}

func NewTyping(rt Realtime, uid string, idle time.Duration, logger *slog.Logger) *Typing {
	if idle <= 0 {
		idle = DefaultTypingIdle
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Typing{rt: rt, uid: uid, idle: idle, logger: logger, timers: map[string]*time.Timer{}}
}

// SetTyping raises or clears the flag for chatKey. Raising it registers a
// disconnect hook that clears it and (re)starts the idle timer.
func (t *Typing) SetTyping(ctx context.Context, chatKey string, typing bool) {
	path := TypingPath(chatKey, t.uid)
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if !typing {
		t.cancelTimer(chatKey)
		t.write(ctx, path, false)
		return
	}

	t.write(ctx, path, true)
	if err := t.rt.OnDisconnectSet(ctx, path, false); err != nil {
		t.logger.Warn("registering typing hook failed", "path", path, "err", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if prev, ok := t.timers[chatKey]; ok {
		prev.Stop()
	}
	var timer *time.Timer
	timer = time.AfterFunc(t.idle, func() {
		t.writeMu.Lock()
		defer t.writeMu.Unlock()

		t.mu.Lock()
		if t.timers[chatKey] != timer {
			// superseded by a later keystroke
			t.mu.Unlock()
			return
		}
		delete(t.timers, chatKey)
		t.mu.Unlock()

		wctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		t.write(wctx, path, false)
	})
	t.timers[chatKey] = timer
}

// Stop cancels pending timers and clears every flag still raised.
func (t *Typing) Stop() {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	t.mu.Lock()
	keys := make([]string, 0, len(t.timers))
	for k, timer := range t.timers {
		timer.Stop()
		keys = append(keys, k)
	}
	t.timers = map[string]*time.Timer{}
	t.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	for _, k := range keys {
		t.write(ctx, TypingPath(k, t.uid), false)
	}
}

// Pending reports whether an idle timer is running for chatKey.
func (t *Typing) Pending(chatKey string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.timers[chatKey]
	return ok
}

// WatchPeer yields whether peer is typing in chatKey.
func (t *Typing) WatchPeer(ctx context.Context, chatKey, peer string) (*stream.Subscription[bool], error) {
	sub, err := t.rt.Subscribe(ctx, TypingPath(chatKey, peer))
	if err != nil {
		return nil, err
	}
	return stream.Map(sub, func(v any) bool {
		b, _ := v.(bool)
		return b
	}), nil
}

func (t *Typing) cancelTimer(chatKey string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if timer, ok := t.timers[chatKey]; ok {
		timer.Stop()
		delete(t.timers, chatKey)
	}
}

func (t *Typing) write(ctx context.Context, path string, v bool) {
	if err := t.rt.Set(ctx, path, v); err != nil {
		t.logger.Warn("writing typing flag failed", "path", path, "err", err)
	}
}
