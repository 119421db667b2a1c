package chat

import (
	"context"
	"log/slog"

	"github.com/Tushar13233u/my-new-chat-app/internal/stream"
)

// Conversation is the open private chat with one peer. While open it keeps
// the feed current, marks inbound messages read as they arrive, tracks the
// peer's typing flag and drives the user's own flag from draft edits.
type Conversation struct {
	Feed  *Feed
	Draft *Draft

	key    string
	peer   string
	unread *Unread
	typing *Typing
	logger *slog.Logger

	ctx      context.Context
	cancel   context.CancelFunc
	messages *stream.Subscription[[]Message]
	peerTyp  *stream.Subscription[bool]
	group    stream.Group
}

func OpenConversation(ctx context.Context, feed *Feed, unread *Unread, typing *Typing, logger *slog.Logger) (*Conversation, error) {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(ctx)
	c := &Conversation{
		Feed:   feed,
		Draft:  &Draft{},
		key:    ChatKey(feed.me.UID, feed.peer),
		peer:   feed.peer,
		unread: unread,
		typing: typing,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
	c.group.AddFunc(cancel)
	c.group.AddFunc(typing.Stop)

	src, err := feed.Subscribe(ctx)
	if err != nil {
		c.group.Close()
		return nil, err
	}
	c.group.Add(src)

	peerTyping, err := typing.WatchPeer(ctx, c.key, c.peer)
	if err != nil {
		c.group.Close()
		return nil, err
	}
	c.group.Add(peerTyping)
	c.peerTyp = peerTyping

	c.messages = stream.New[[]Message](nil)
	c.group.Add(c.messages)
	go c.follow(src)
	return c, nil
}

// Messages delivers the ordered feed.
func (c *Conversation) Messages() <-chan []Message { return c.messages.Updates() }

// PeerTyping delivers the peer's typing flag.
func (c *Conversation) PeerTyping() <-chan bool { return c.peerTyp.Updates() }

// Key is the conversation id.
func (c *Conversation) Key() string { return c.key }

// Edit replaces the draft text and raises or clears the typing flag.
func (c *Conversation) Edit(text string) {
	c.Draft.SetText(text)
	c.typing.SetTyping(c.ctx, c.key, text != "")
}

// Send sends the draft and clears the typing flag.
func (c *Conversation) Send(ctx context.Context) (*Message, error) {
	m, err := c.Feed.Send(ctx, c.Draft)
	if err != nil {
		return nil, err
	}
	c.typing.SetTyping(ctx, c.key, false)
	return m, nil
}

func (c *Conversation) Delete(ctx context.Context, m Message) error {
	return c.Feed.Delete(ctx, m)
}

// Close tears the view down: subscriptions are released, the typing timer
// is cancelled and the flag cleared.
func (c *Conversation) Close() { c.group.Close() }

func (c *Conversation) follow(src *stream.Subscription[[]Message]) {
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-src.Done():
			return
		case msgs := <-src.Updates():
			c.messages.Push(msgs)
			if _, err := c.unread.MarkRead(c.ctx, c.peer, msgs); err != nil {
				c.logger.Warn("marking messages read failed", "peer", c.peer, "err", err)
			}
		}
	}
}
