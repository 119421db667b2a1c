package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"unicode"

	"github.com/Tushar13233u/my-new-chat-app/internal/apperr"
	"github.com/Tushar13233u/my-new-chat-app/internal/docstore"
	"github.com/Tushar13233u/my-new-chat-app/internal/stream"
)

// Accounts handles signup, login and logout.
type Accounts struct {
	auth   Auth
	docs   docstore.Store
	suffix func() int
	logger *slog.Logger
}

func NewAccounts(auth Auth, docs docstore.Store, logger *slog.Logger) *Accounts {
	if logger == nil {
		logger = slog.Default()
	}
	return &Accounts{
		auth:   auth,
		docs:   docs,
		suffix: func() int { return 1000 + rand.Intn(9000) },
		logger: logger,
	}
}

// DefaultUsername derives the initial display name from an email: the local
// part without non-alphanumerics followed by a four digit suffix.
func DefaultUsername(email string, suffix int) string {
	local, _, _ := strings.Cut(email, "@")
	var b strings.Builder
	for _, r := range local {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
		}
	}
	return fmt.Sprintf("%s%d", b.String(), suffix)
}

// SignUp creates the account, gives it a default username and creates its
// users document.
func (a *Accounts) SignUp(ctx context.Context, email, password string) (*User, error) {
	u, err := a.auth.SignUp(ctx, email, password)
	if err != nil {
		return nil, err
	}
	name := DefaultUsername(email, a.suffix())
	if err := a.auth.UpdateProfile(ctx, ProfileUpdate{DisplayName: &name}); err != nil {
		return nil, err
	}
	u.DisplayName = name
	err = a.docs.Set(ctx, UsersCollection, u.UID, map[string]any{
		"uid":         u.UID,
		"email":       u.Email,
		"displayName": name,
	}, true)
	if err != nil {
		return nil, err
	}
	a.logger.Info("account created", "uid", u.UID)
	return u, nil
}

func (a *Accounts) SignIn(ctx context.Context, email, password string) (*User, error) {
	return a.auth.SignIn(ctx, email, password)
}

func (a *Accounts) SignOut(ctx context.Context) error {
	return a.auth.SignOut(ctx)
}

func (a *Accounts) OnAuthStateChanged(ctx context.Context) (*stream.Subscription[*User], error) {
	return a.auth.OnAuthStateChanged(ctx)
}

// AuthMessage is the text shown to the user for an auth failure.
func AuthMessage(err error) string {
	if err == nil {
		return ""
	}
	switch apperr.ReasonOf(err) {
	case apperr.ReasonInvalidCredential:
		return "Incorrect email or password. Please try again."
	case apperr.ReasonEmailInUse:
		return "This email is already registered. Please log in."
	case apperr.ReasonWeakPassword:
		return "Password must be at least 6 characters long."
	case apperr.ReasonInvalidEmail:
		return "Please enter a valid email address."
	case apperr.ReasonNetworkFailed:
		return "Network error. Please check your internet connection."
	}
	var ae *apperr.AppError
	if errors.As(err, &ae) {
		return ae.Message
	}
	return err.Error()
}
