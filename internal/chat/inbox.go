package chat

import (
	"context"
	"log/slog"
	"sync"

	"github.com/Tushar13233u/my-new-chat-app/internal/docstore"
	"github.com/Tushar13233u/my-new-chat-app/internal/stream"
)

// Inbox is the conversation list view. It subscribes to the users list and,
// per partner, to presence, unread count and last message, and publishes the
// sorted list after every update.
type Inbox struct {
	uid      string
	docs     docstore.Store
	presence *Presence
	unread   *Unread
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	events chan Event
	out    *stream.Subscription[[]Entry]
	group  stream.Group

	mu       sync.Mutex
	partners map[string]*stream.Group
}

// OpenInbox starts the view for uid. Close releases every subscription it
// opened.
func OpenInbox(ctx context.Context, uid string, docs docstore.Store, presence *Presence, unread *Unread, logger *slog.Logger) (*Inbox, error) {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(ctx)
	in := &Inbox{
		uid:      uid,
		docs:     docs,
		presence: presence,
		unread:   unread,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		events:   make(chan Event, 16),
		partners: map[string]*stream.Group{},
	}
	in.out = stream.New[[]Entry](in.close)

	users, err := docs.Subscribe(ctx, docstore.Query{Collection: UsersCollection})
	if err != nil {
		cancel()
		return nil, err
	}
	in.group.Add(users)

	go in.reduce()
	go in.followUsers(users)
	return in, nil
}

// Updates delivers the sorted list.
func (in *Inbox) Updates() <-chan []Entry { return in.out.Updates() }

func (in *Inbox) Close() { in.out.Close() }

// Partners is the number of partners with live subscriptions.
func (in *Inbox) Partners() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return len(in.partners)
}

func (in *Inbox) close() {
	in.cancel()
	in.group.Close()
	in.mu.Lock()
	for uid, g := range in.partners {
		g.Close()
		delete(in.partners, uid)
	}
	in.mu.Unlock()
}

func (in *Inbox) emit(ev Event) bool {
	select {
	case in.events <- ev:
		return true
	case <-in.ctx.Done():
		return false
	}
}

func (in *Inbox) reduce() {
	var state State
	for {
		select {
		case <-in.ctx.Done():
			return
		case ev := <-in.events:
			state = Reduce(state, ev)
			in.out.Push(Sorted(state))
		}
	}
}

func (in *Inbox) followUsers(users *stream.Subscription[[]*docstore.Document]) {
	for {
		select {
		case <-in.ctx.Done():
			return
		case <-users.Done():
			return
		case docs := <-users.Updates():
			var list []Partner
			for _, d := range docs {
				p := profileFromDoc(d)
				if p.UID == in.uid {
					continue
				}
				list = append(list, Partner{UID: p.UID, DisplayName: p.DisplayName, PhotoURL: p.PhotoURL, Email: p.Email})
			}
			if !in.emit(PartnersListed{Partners: list}) {
				return
			}
			in.syncPartners(list)
		}
	}
}

// syncPartners opens subscriptions for new partners and releases those of
// partners no longer listed.
func (in *Inbox) syncPartners(list []Partner) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.ctx.Err() != nil {
		return
	}

	keep := map[string]bool{}
	for _, p := range list {
		keep[p.UID] = true
		if _, ok := in.partners[p.UID]; ok {
			continue
		}
		g, err := in.follow(p.UID)
		if err != nil {
			in.logger.Warn("subscribing to partner failed", "partner", p.UID, "err", err)
			continue
		}
		in.partners[p.UID] = g
	}
	for uid, g := range in.partners {
		if !keep[uid] {
			g.Close()
			delete(in.partners, uid)
		}
	}
}

func (in *Inbox) follow(partner string) (*stream.Group, error) {
	g := &stream.Group{}

	pres, err := in.presence.Watch(in.ctx, partner)
	if err != nil {
		return nil, err
	}
	g.Add(pres)

	unread, err := in.unread.Watch(in.ctx, partner)
	if err != nil {
		g.Close()
		return nil, err
	}
	g.Add(unread)

	last, err := in.docs.Subscribe(in.ctx, docstore.Query{
		Collection: MessagesCollection(in.uid, partner),
		OrderBy:    "timestamp",
		Desc:       true,
		Limit:      1,
	})
	if err != nil {
		g.Close()
		return nil, err
	}
	g.Add(last)

	go forward(in, pres, func(r PresenceRecord) Event { return PresenceUpdated{UID: partner, Record: r} })
	go forward(in, unread, func(n int) Event { return UnreadChanged{UID: partner, Count: n} })
	go forward(in, last, func(docs []*docstore.Document) Event {
		if len(docs) == 0 {
			return LastMessageChanged{UID: partner}
		}
		m := messageFromDoc(docs[0])
		return LastMessageChanged{UID: partner, Last: &LastMessage{Text: m.Text, SenderID: m.SenderID, Timestamp: m.Timestamp}}
	})
	return g, nil
}

func forward[T any](in *Inbox, sub *stream.Subscription[T], toEvent func(T) Event) {
	for {
		select {
		case <-sub.Done():
			return
		case <-in.ctx.Done():
			return
		case v := <-sub.Updates():
			if !in.emit(toEvent(v)) {
				return
			}
		}
	}
}
