package chat

import (
	"context"
	"log/slog"

	"github.com/Tushar13233u/my-new-chat-app/internal/realtime"
	"github.com/Tushar13233u/my-new-chat-app/internal/servervalue"
	"github.com/Tushar13233u/my-new-chat-app/internal/stream"
)

const (
	StateOnline  = "online"
	StateOffline = "offline"
)

// PresenceRecord is a user's last known connection state.
type PresenceRecord struct {
	State       string `json:"state"`
	LastChanged int64  `json:"last_changed"`
}

func (r PresenceRecord) Online() bool { return r.State == StateOnline }

func presenceValue(state string) map[string]any {
	return map[string]any{"state": state, "last_changed": servervalue.Timestamp()}
}

func presenceFromValue(v any) PresenceRecord {
	m, ok := v.(map[string]any)
	if !ok {
		return PresenceRecord{State: StateOffline}
	}
	r := PresenceRecord{State: str(m["state"]), LastChanged: millis(m["last_changed"])}
	if r.State != StateOnline {
		r.State = StateOffline
	}
	return r
}

// Presence publishes the signed-in user's state and watches everyone else's.
type Presence struct {
	rt     Realtime
	logger *slog.Logger
}

func NewPresence(rt Realtime, logger *slog.Logger) *Presence {
	if logger == nil {
		logger = slog.Default()
	}
	return &Presence{rt: rt, logger: logger}
}

// Connect marks uid online every time the client (re)connects. The offline
// disconnect hook is registered before the online write; a reported loss of
// connection writes nothing, the hook covers it. Connect returns once the
// connection subscription is open; the returned func stops tracking.
func (p *Presence) Connect(ctx context.Context, uid string) (func(), error) {
	sub, err := p.rt.Subscribe(ctx, realtime.ConnectedPath)
	if err != nil {
		return nil, err
	}
	path := StatusPath(uid)
	go func() {
		for {
			select {
			case <-sub.Done():
				return
			case <-ctx.Done():
				sub.Close()
				return
			case v := <-sub.Updates():
				if connected, _ := v.(bool); !connected {
					continue
				}
				if err := p.rt.OnDisconnectSet(ctx, path, presenceValue(StateOffline)); err != nil {
					p.logger.Warn("registering offline hook failed", "uid", uid, "err", err)
					continue
				}
				if err := p.rt.Set(ctx, path, presenceValue(StateOnline)); err != nil {
					p.logger.Warn("writing online state failed", "uid", uid, "err", err)
				}
			}
		}
	}()
	return sub.Close, nil
}

// Watch yields uid's presence; a user who never connected is offline.
func (p *Presence) Watch(ctx context.Context, uid string) (*stream.Subscription[PresenceRecord], error) {
	sub, err := p.rt.Subscribe(ctx, StatusPath(uid))
	if err != nil {
		return nil, err
	}
	return stream.Map(sub, presenceFromValue), nil
}
