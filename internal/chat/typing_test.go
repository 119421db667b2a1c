package chat

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Tushar13233u/my-new-chat-app/internal/realtime"
	"github.com/Tushar13233u/my-new-chat-app/internal/stream"
)

func typingValue(t *testing.T, tree *realtime.Tree, key, uid string) any {
	t.Helper()
	v, err := tree.Get(TypingPath(key, uid))
	require.NoError(t, err)
	return v
}

func TestTypingDefaultIdleWindow(t *testing.T) {
	tr := NewTyping(nil, "a", 0, nil)
	require.Equal(t, 2*time.Second, tr.idle)
}

func TestTypingAutoClears(t *testing.T) {
	tree := realtime.NewTree()
	s := tree.NewSession()
	defer s.Close()
	tr := NewTyping(s, "a", 40*time.Millisecond, nil)

	tr.SetTyping(context.Background(), "a_b", true)
	require.Equal(t, true, typingValue(t, tree, "a_b", "a"))
	require.True(t, tr.Pending("a_b"))

	require.Eventually(t, func() bool {
		return typingValue(t, tree, "a_b", "a") == false
	}, 2*time.Second, 5*time.Millisecond)
	require.False(t, tr.Pending("a_b"))
}

func TestTypingKeystrokeResetsTimer(t *testing.T) {
	tree := realtime.NewTree()
	s := tree.NewSession()
	defer s.Close()
	tr := NewTyping(s, "a", 150*time.Millisecond, nil)
	ctx := context.Background()

	tr.SetTyping(ctx, "a_b", true)
	time.Sleep(100 * time.Millisecond)
	tr.SetTyping(ctx, "a_b", true)
	time.Sleep(100 * time.Millisecond)
	// 200ms after the first keystroke, only 100ms after the last one
	require.Equal(t, true, typingValue(t, tree, "a_b", "a"))

	require.Eventually(t, func() bool {
		return typingValue(t, tree, "a_b", "a") == false
	}, 2*time.Second, 5*time.Millisecond)
}

func TestTypingFalseCancelsTimer(t *testing.T) {
	tree := realtime.NewTree()
	s := tree.NewSession()
	defer s.Close()
	tr := NewTyping(s, "a", time.Hour, nil)
	ctx := context.Background()

	tr.SetTyping(ctx, "a_b", true)
	tr.SetTyping(ctx, "a_b", false)
	require.Equal(t, false, typingValue(t, tree, "a_b", "a"))
	require.False(t, tr.Pending("a_b"))
}

func TestTypingClearedOnDisconnect(t *testing.T) {
	tree := realtime.NewTree()
	s := tree.NewSession()
	tr := NewTyping(s, "a", time.Hour, nil)

	tr.SetTyping(context.Background(), "a_b", true)
	s.Close()
	require.Equal(t, false, typingValue(t, tree, "a_b", "a"))
}

func TestTypingStopClearsFlags(t *testing.T) {
	tree := realtime.NewTree()
	s := tree.NewSession()
	defer s.Close()
	tr := NewTyping(s, "a", time.Hour, nil)

	tr.SetTyping(context.Background(), "a_b", true)
	tr.SetTyping(context.Background(), "a_c", true)
	tr.Stop()
	require.Equal(t, false, typingValue(t, tree, "a_b", "a"))
	require.Equal(t, false, typingValue(t, tree, "a_c", "a"))
	require.False(t, tr.Pending("a_b"))
}

func TestWatchPeer(t *testing.T) {
	tree := realtime.NewTree()
	mine, theirs := tree.NewSession(), tree.NewSession()
	defer mine.Close()
	defer theirs.Close()
	ctx := context.Background()

	watch, err := NewTyping(mine, "a", 0, nil).WatchPeer(ctx, "a_b", "b")
	require.NoError(t, err)
	defer watch.Close()
	require.False(t, <-watch.Updates())

	NewTyping(theirs, "b", time.Hour, nil).SetTyping(ctx, "a_b", true)
	waitFor(t, watch.Updates(), func(v bool) bool { return v })
}

// gatedRealtime records landed writes in order and holds the first false
// write until released.
type gatedRealtime struct {
	mu      sync.Mutex
	landed  []any
	gated   bool
	entered chan struct{}
	release chan struct{}
}

func (g *gatedRealtime) Set(ctx context.Context, path string, v any) error {
	g.mu.Lock()
	hold := v == false && !g.gated
	if hold {
		g.gated = true
	}
	g.mu.Unlock()
	if hold {
		close(g.entered)
		<-g.release
	}
	g.mu.Lock()
	g.landed = append(g.landed, v)
	g.mu.Unlock()
	return nil
}

func (g *gatedRealtime) OnDisconnectSet(ctx context.Context, path string, v any) error { return nil }
func (g *gatedRealtime) CancelOnDisconnect(ctx context.Context, path string) error     { return nil }
func (g *gatedRealtime) Subscribe(ctx context.Context, path string) (*stream.Subscription[any], error) {
	return stream.New[any](nil), nil
}

func (g *gatedRealtime) writes() []any {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]any(nil), g.landed...)
}

// A keystroke arriving while the idle timer's clear is in flight must win.
func TestTypingKeystrokeDuringIdleClear(t *testing.T) {
	rt := &gatedRealtime{entered: make(chan struct{}), release: make(chan struct{})}
	tr := NewTyping(rt, "a", 10*time.Millisecond, nil)
	defer tr.Stop()
	ctx := context.Background()

	tr.SetTyping(ctx, "a_b", true)
	select {
	case <-rt.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("idle timer never fired")
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		tr.SetTyping(ctx, "a_b", true)
	}()
	time.Sleep(20 * time.Millisecond)
	close(rt.release)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("keystroke never completed")
	}
	got := rt.writes()
	require.GreaterOrEqual(t, len(got), 3)
	require.Equal(t, []any{true, false, true}, got[:3])
}
