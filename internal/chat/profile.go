package chat

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/Tushar13233u/my-new-chat-app/internal/apperr"
	"github.com/Tushar13233u/my-new-chat-app/internal/docstore"
)

const (
	// RenameWindow is the rolling window display name changes are counted in.
	RenameWindow = 14 * 24 * time.Hour
	// MaxRenames is how many changes the window allows.
	MaxRenames = 2
)

var ErrSameUsername = apperr.InvalidArg("Please enter a new username.")

// Profiles edits the signed-in user's profile and looks up others.
//
// The uniqueness and rate checks read before they write; two devices of the
// same account renaming at the same moment can both pass them.
type Profiles struct {
	auth   Auth
	docs   docstore.Store
	now    func() time.Time
	logger *slog.Logger
}

func NewProfiles(auth Auth, docs docstore.Store, now func() time.Time, logger *slog.Logger) *Profiles {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Profiles{auth: auth, docs: docs, now: now, logger: logger}
}

func (p *Profiles) current() (*User, error) {
	u := p.auth.CurrentUser()
	if u == nil {
		return nil, apperr.Unauthorized("not signed in")
	}
	return u, nil
}

// UpdateDisplayName renames the user. The name must differ from the current
// one, be free, and the user must have made fewer than MaxRenames changes
// within RenameWindow.
func (p *Profiles) UpdateDisplayName(ctx context.Context, name string) error {
	u, err := p.current()
	if err != nil {
		return err
	}
	name = strings.TrimSpace(name)

	var changes []int64
	current := u.DisplayName
	doc, err := p.docs.Get(ctx, UsersCollection, u.UID)
	switch {
	case err == nil:
		changes = millisList(doc.Data["displayNameChanges"])
		if dn := str(doc.Data["displayName"]); dn != "" {
			current = dn
		}
	case apperr.CodeOf(err) != apperr.CodeNotFound:
		return err
	}
	if name == "" || name == current {
		return ErrSameUsername
	}

	now := p.now()
	cutoff := now.Add(-RenameWindow).UnixMilli()
	var recent []any
	for _, ms := range changes {
		if ms > cutoff {
			recent = append(recent, ms)
		}
	}
	if len(recent) >= MaxRenames {
		return apperr.ErrRenameLimit
	}

	taken, err := p.docs.Query(ctx, docstore.Query{
		Collection: UsersCollection,
		Filters:    []docstore.Filter{docstore.Where("displayName", docstore.OpEqual, name)},
	})
	if err != nil {
		return err
	}
	for _, d := range taken {
		if d.ID != u.UID {
			return apperr.ErrUsernameTaken
		}
	}

	if err := p.auth.UpdateProfile(ctx, ProfileUpdate{DisplayName: &name}); err != nil {
		return err
	}
	err = p.docs.Set(ctx, UsersCollection, u.UID, map[string]any{
		"uid":                u.UID,
		"displayName":        name,
		"displayNameChanges": append(recent, now.UnixMilli()),
	}, true)
	if err != nil {
		p.logger.Error("updating users document failed", "uid", u.UID, "err", err)
		return err
	}
	return nil
}

// UpdateProfile sets the bio and avatar.
func (p *Profiles) UpdateProfile(ctx context.Context, bio, photoURL string) error {
	u, err := p.current()
	if err != nil {
		return err
	}
	photoURL = strings.TrimSpace(photoURL)
	if photoURL != u.PhotoURL {
		if err := p.auth.UpdateProfile(ctx, ProfileUpdate{PhotoURL: &photoURL}); err != nil {
			return err
		}
	}
	return p.docs.Set(ctx, UsersCollection, u.UID, map[string]any{
		"uid":      u.UID,
		"bio":      strings.TrimSpace(bio),
		"photoURL": photoURL,
	}, true)
}

// Lookup returns the profile of uid. A missing user is reported through
// found, not as an error.
func (p *Profiles) Lookup(ctx context.Context, uid string) (prof Profile, found bool, err error) {
	doc, err := p.docs.Get(ctx, UsersCollection, uid)
	if err != nil {
		if apperr.CodeOf(err) == apperr.CodeNotFound {
			return Profile{}, false, nil
		}
		return Profile{}, false, err
	}
	return profileFromDoc(doc), true, nil
}
