package push

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Tushar13233u/my-new-chat-app/internal/docstore"
)

type fakeDeliverer struct {
	last *Payload
	fail bool
}

func (f *fakeDeliverer) Deliver(p Payload) error {
	if f.fail {
		return errors.New("deliver fail")
	}
	f.last = &p
	return nil
}

func TestHub_RegisterAndSend(t *testing.T) {
	hub := NewHub()

	a := &fakeDeliverer{}
	b := &fakeDeliverer{}
	idA := hub.Register("tok", a)
	_ = hub.Register("tok", b) // second connection of the same device

	if err := hub.Send(Payload{Token: "tok", Data: Data{ChatID: "c1"}}); err != nil {
		t.Fatalf("expected send success, got error: %v", err)
	}
	if a.last == nil || b.last == nil {
		t.Fatalf("both connections should have received the payload")
	}

	hub.Unregister("tok", idA)
	if err := hub.Send(Payload{Token: "tok", Data: Data{ChatID: "c2"}}); err != nil {
		t.Fatalf("expected send success after unregister: %v", err)
	}
	if a.last.Data.ChatID == "c2" {
		t.Fatalf("unregistered connection should not receive payloads")
	}
}

func TestHub_SendToUnknownToken(t *testing.T) {
	hub := NewHub()
	if err := hub.Send(Payload{Token: "nobody"}); err == nil {
		t.Fatalf("expected error when sending to an unregistered token")
	}
}

func TestHub_SendPartialFailure(t *testing.T) {
	hub := NewHub()
	ok := &fakeDeliverer{}
	bad := &fakeDeliverer{fail: true}
	_ = hub.Register("tok", ok)
	_ = hub.Register("tok", bad)

	if err := hub.Send(Payload{Token: "tok"}); err == nil {
		t.Fatalf("expected error due to partial failure")
	}
	// the failing connection is dropped; the healthy one keeps receiving
	if err := hub.Send(Payload{Token: "tok", Data: Data{ChatID: "y"}}); err != nil {
		t.Fatalf("expected send to succeed after cleanup: %v", err)
	}
	if ok.last == nil || ok.last.Data.ChatID != "y" {
		t.Fatalf("healthy connection did not receive payload after cleanup")
	}
}

func TestBuildPayload(t *testing.T) {
	long := strings.Repeat("a", 60)
	p := BuildPayload(NewMessage{ChatID: "a_b", SenderID: "a", Text: long}, "tok", "https://chat.example.com/")

	if p.Notification.Title != "Someone" {
		t.Fatalf("expected fallback title, got %q", p.Notification.Title)
	}
	if p.Notification.Body != strings.Repeat("a", 50)+"..." {
		t.Fatalf("unexpected body %q", p.Notification.Body)
	}
	if p.Notification.Tag != "chat-a" || p.Notification.Icon != Icon || p.Notification.Badge != Icon {
		t.Fatalf("unexpected notification fields: %+v", p.Notification)
	}
	if p.Data.ClickAction != "https://chat.example.com/chat/a" {
		t.Fatalf("unexpected click action %q", p.Data.ClickAction)
	}

	short := BuildPayload(NewMessage{SenderID: "a", SenderName: "neo", Text: "hi"}, "tok", "")
	if short.Notification.Body != "hi" || short.Notification.Title != "neo" {
		t.Fatalf("unexpected payload: %+v", short.Notification)
	}
}

func TestBackgroundAndClick(t *testing.T) {
	title, opts := Background(Payload{})
	if title != "New Message" || opts.Body != "You have a new message" || opts.Tag != "chat-notification" {
		t.Fatalf("unexpected defaults: %q %+v", title, opts)
	}
	if len(opts.Actions) != 2 || opts.Actions[0].Action != ActionOpenChat || opts.Actions[1].Action != ActionDismiss {
		t.Fatalf("unexpected actions: %+v", opts.Actions)
	}

	if _, ok := ClickTarget(ActionDismiss, ClickData{URL: "/x"}); ok {
		t.Fatalf("dismiss should open nothing")
	}
	if url, _ := ClickTarget(ActionOpenChat, ClickData{SenderID: "a"}); url != "/chat/a" {
		t.Fatalf("expected deep link, got %q", url)
	}
	if url, _ := ClickTarget("", ClickData{URL: "https://x/chat/a", SenderID: "a"}); url != "https://x/chat/a" {
		t.Fatalf("expected payload url, got %q", url)
	}
}

type recordingSender struct{ sent []Payload }

func (r *recordingSender) Send(p Payload) error {
	r.sent = append(r.sent, p)
	return nil
}

func TestTriggerOnMessageCreated(t *testing.T) {
	ctx := context.Background()
	docs := docstore.NewMemory()
	_ = docs.Set(ctx, "users", "a", map[string]any{"displayName": "alice"}, false)
	_ = docs.Set(ctx, "users", "b", map[string]any{"displayName": "bob"}, false)

	rec := &recordingSender{}
	tr := NewTrigger(docs, rec, "https://chat.example.com", nil)
	msg := map[string]any{"senderId": "a", "receiverId": "b", "text": "hi"}

	sent, err := tr.OnMessageCreated(ctx, "a_b", msg)
	if err != nil || sent {
		t.Fatalf("expected nothing sent without a token, got sent=%v err=%v", sent, err)
	}

	_ = docs.Update(ctx, "users", "b", map[string]any{"fcmToken": "tok-b"})
	tr.OnDocumentCreated(ctx, &docstore.Document{Collection: "privateMessages/a_b/messages", ID: "m1", Data: msg})
	if len(rec.sent) != 1 {
		t.Fatalf("expected one payload, got %d", len(rec.sent))
	}
	p := rec.sent[0]
	if p.Token != "tok-b" || p.Notification.Title != "alice" || p.Data.ChatID != "a_b" {
		t.Fatalf("unexpected payload: %+v", p)
	}

	tr.OnDocumentCreated(ctx, &docstore.Document{Collection: "notifications", ID: "n1", Data: msg})
	if len(rec.sent) != 1 {
		t.Fatalf("non-message documents must not trigger")
	}
}

func TestTokensClear(t *testing.T) {
	ctx := context.Background()
	docs := docstore.NewMemory()
	tokens := NewTokens(docs)

	if _, err := tokens.Issue("u1", ""); err == nil {
		t.Fatalf("expected error without vapid key")
	}
	tok, err := tokens.Issue("u1", "vapid")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	_ = docs.Set(ctx, "users", "u1", map[string]any{"fcmToken": tok}, false)
	if !tokens.Verify(ctx, "u1", tok) || tokens.Verify(ctx, "u2", tok) {
		t.Fatalf("unexpected verify result")
	}

	if err := tokens.ClearToken(ctx, "u1"); err != nil {
		t.Fatalf("ClearToken failed: %v", err)
	}
	d, _ := docs.Get(ctx, "users", "u1")
	if _, ok := d.Data["fcmToken"]; ok {
		t.Fatalf("fcmToken should be removed")
	}
	if tokens.Verify(ctx, "u1", tok) {
		t.Fatalf("cleared token should no longer verify")
	}
	// users without a document are fine
	if err := tokens.ClearToken(ctx, "ghost"); err != nil {
		t.Fatalf("ClearToken on missing user failed: %v", err)
	}
}
