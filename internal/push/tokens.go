package push

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/Tushar13233u/my-new-chat-app/internal/apperr"
	"github.com/Tushar13233u/my-new-chat-app/internal/docstore"
)

// Tokens issues device tokens and remembers which user owns each one.
type Tokens struct {
	docs docstore.Store

	mu    sync.RWMutex
	owner map[string]string
}

func NewTokens(docs docstore.Store) *Tokens {
	return &Tokens{docs: docs, owner: map[string]string{}}
}

// Issue returns a new device token for uid. The vapid key identifies the
// application server the device subscribes to and must be present.
func (t *Tokens) Issue(uid, vapidKey string) (string, error) {
	if strings.TrimSpace(vapidKey) == "" {
		return "", apperr.InvalidArg("vapid key is required")
	}
	token := uuid.NewString()
	t.mu.Lock()
	t.owner[token] = uid
	t.mu.Unlock()
	return token, nil
}

// Owner returns the user a token was issued to.
func (t *Tokens) Owner(token string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	uid, ok := t.owner[token]
	return uid, ok
}

// ClearToken removes the stored token of uid and forgets every token issued
// to it.
func (t *Tokens) ClearToken(ctx context.Context, uid string) error {
	t.mu.Lock()
	for tok, owner := range t.owner {
		if owner == uid {
			delete(t.owner, tok)
		}
	}
	t.mu.Unlock()

	err := t.docs.Update(ctx, "users", uid, map[string]any{"fcmToken": nil})
	if err != nil && apperr.CodeOf(err) != apperr.CodeNotFound {
		return apperr.Wrap(apperr.CodeInternal, "Error cleaning up token", err)
	}
	return nil
}

// Verify reports whether token belongs to uid, either issued by this
// process or stored on the user's document.
func (t *Tokens) Verify(ctx context.Context, uid, token string) bool {
	if owner, ok := t.Owner(token); ok {
		return owner == uid
	}
	doc, err := t.docs.Get(ctx, "users", uid)
	if err != nil {
		return false
	}
	stored, _ := doc.Data["fcmToken"].(string)
	return stored != "" && stored == token
}
