package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Tushar13233u/my-new-chat-app/internal/realtime"
	"github.com/Tushar13233u/my-new-chat-app/internal/stream"
)

// scriptedRealtime lets a test drive .info/connected and records writes.
type scriptedRealtime struct {
	mu        sync.Mutex
	calls     []string
	hookErr   error
	connected *stream.Subscription[any]
}

func (r *scriptedRealtime) record(s string) {
	r.mu.Lock()
	r.calls = append(r.calls, s)
	r.mu.Unlock()
}

func (r *scriptedRealtime) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *scriptedRealtime) Set(ctx context.Context, path string, v any) error {
	r.record("set " + path + " " + str(v.(map[string]any)["state"]))
	return nil
}

func (r *scriptedRealtime) OnDisconnectSet(ctx context.Context, path string, v any) error {
	if r.hookErr != nil {
		return r.hookErr
	}
	r.record("hook " + path + " " + str(v.(map[string]any)["state"]))
	return nil
}

func (r *scriptedRealtime) CancelOnDisconnect(ctx context.Context, path string) error { return nil }

func (r *scriptedRealtime) Subscribe(ctx context.Context, path string) (*stream.Subscription[any], error) {
	r.connected = stream.New[any](nil)
	return r.connected, nil
}

func TestPresenceHookBeforeOnlineWrite(t *testing.T) {
	rt := &scriptedRealtime{}
	p := NewPresence(rt, nil)
	stop, err := p.Connect(context.Background(), "u1")
	require.NoError(t, err)
	defer stop()

	rt.connected.Push(true)
	require.Eventually(t, func() bool { return len(rt.Calls()) == 2 }, 2*time.Second, 5*time.Millisecond)
	require.Equal(t, []string{"hook status/u1 offline", "set status/u1 online"}, rt.Calls())
}

func TestPresenceFlapWritesNothing(t *testing.T) {
	rt := &scriptedRealtime{}
	p := NewPresence(rt, nil)
	stop, err := p.Connect(context.Background(), "u1")
	require.NoError(t, err)
	defer stop()

	rt.connected.Push(false)
	time.Sleep(50 * time.Millisecond)
	require.Empty(t, rt.Calls())

	// reconnect re-registers the hook and writes online again
	rt.connected.Push(true)
	require.Eventually(t, func() bool { return len(rt.Calls()) == 2 }, 2*time.Second, 5*time.Millisecond)
}

func TestPresenceNoOnlineWriteWithoutHook(t *testing.T) {
	rt := &scriptedRealtime{hookErr: errors.New("permission denied")}
	p := NewPresence(rt, nil)
	stop, err := p.Connect(context.Background(), "u1")
	require.NoError(t, err)
	defer stop()

	rt.connected.Push(true)
	time.Sleep(50 * time.Millisecond)
	require.Empty(t, rt.Calls())
}

func TestPresenceOfflineAfterDisconnect(t *testing.T) {
	tree := realtime.NewTree()
	me := tree.NewSession()
	other := tree.NewSession()
	defer other.Close()

	ctx := context.Background()
	_, err := NewPresence(me, nil).Connect(ctx, "u1")
	require.NoError(t, err)

	watch, err := NewPresence(other, nil).Watch(ctx, "u1")
	require.NoError(t, err)
	defer watch.Close()

	waitFor(t, watch.Updates(), PresenceRecord.Online)
	me.Close()
	rec := waitFor(t, watch.Updates(), func(r PresenceRecord) bool { return !r.Online() })
	require.NotZero(t, rec.LastChanged)
}

func TestPresenceUnknownUserIsOffline(t *testing.T) {
	tree := realtime.NewTree()
	s := tree.NewSession()
	defer s.Close()

	watch, err := NewPresence(s, nil).Watch(context.Background(), "nobody")
	require.NoError(t, err)
	defer watch.Close()
	rec := <-watch.Updates()
	require.Equal(t, StateOffline, rec.State)
}
