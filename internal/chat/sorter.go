package chat

import "slices"

// Partner is another user shown in the conversation list.
type Partner struct {
	UID         string `json:"uid"`
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoURL"`
	Email       string `json:"email"`
}

// LastMessage is the newest message of a conversation.
type LastMessage struct {
	Text      string `json:"text"`
	SenderID  string `json:"senderId"`
	Timestamp int64  `json:"timestamp"`
}

// Entry is one row of the sorted conversation list.
type Entry struct {
	Partner  Partner        `json:"partner"`
	Presence PresenceRecord `json:"presence"`
	Unread   int            `json:"unread"`
	Last     *LastMessage   `json:"last,omitempty"`
}

// Event is an update from one of the subscriptions feeding the list.
type Event interface{ event() }

// PartnersListed replaces the set of partners. Its order is the input order
// used for partners without messages.
type PartnersListed struct{ Partners []Partner }

type PresenceUpdated struct {
	UID    string
	Record PresenceRecord
}

type UnreadChanged struct {
	UID   string
	Count int
}

// LastMessageChanged carries a nil Last when the conversation is empty.
type LastMessageChanged struct {
	UID  string
	Last *LastMessage
}

func (PartnersListed) event()     {}
func (PresenceUpdated) event()    {}
func (UnreadChanged) event()      {}
func (LastMessageChanged) event() {}

// State is the aggregate the list is projected from. Treat it as a value:
// Reduce never modifies its input.
type State struct {
	partners []Partner
	presence map[string]PresenceRecord
	unread   map[string]int
	last     map[string]LastMessage
}

func (s State) known(uid string) bool {
	return slices.ContainsFunc(s.partners, func(p Partner) bool { return p.UID == uid })
}

func (s State) clone() State {
	out := State{
		partners: slices.Clone(s.partners),
		presence: make(map[string]PresenceRecord, len(s.presence)),
		unread:   make(map[string]int, len(s.unread)),
		last:     make(map[string]LastMessage, len(s.last)),
	}
	for k, v := range s.presence {
		out.presence[k] = v
	}
	for k, v := range s.unread {
		out.unread[k] = v
	}
	for k, v := range s.last {
		out.last[k] = v
	}
	return out
}

// Reduce applies ev to s. Events for users that are not listed partners are
// ignored, and aggregates of partners dropped from the list are forgotten.
func Reduce(s State, ev Event) State {
	out := s.clone()
	switch e := ev.(type) {
	case PartnersListed:
		out.partners = slices.Clone(e.Partners)
		keep := map[string]bool{}
		for _, p := range e.Partners {
			keep[p.UID] = true
		}
		for uid := range out.presence {
			if !keep[uid] {
				delete(out.presence, uid)
			}
		}
		for uid := range out.unread {
			if !keep[uid] {
				delete(out.unread, uid)
			}
		}
		for uid := range out.last {
			if !keep[uid] {
				delete(out.last, uid)
			}
		}
	case PresenceUpdated:
		if out.known(e.UID) {
			out.presence[e.UID] = e.Record
		}
	case UnreadChanged:
		if out.known(e.UID) {
			out.unread[e.UID] = e.Count
		}
	case LastMessageChanged:
		if !out.known(e.UID) {
			break
		}
		if e.Last == nil {
			delete(out.last, e.UID)
		} else {
			out.last[e.UID] = *e.Last
		}
	}
	return out
}

// Sorted projects s into the conversation list: partners with unread
// messages first, then by newest message, partners without messages last in
// input order.
func Sorted(s State) []Entry {
	entries := make([]Entry, len(s.partners))
	for i, p := range s.partners {
		e := Entry{Partner: p, Presence: PresenceRecord{State: StateOffline}, Unread: s.unread[p.UID]}
		if r, ok := s.presence[p.UID]; ok {
			e.Presence = r
		}
		if l, ok := s.last[p.UID]; ok {
			e.Last = &l
		}
		entries[i] = e
	}
	slices.SortStableFunc(entries, compareEntries)
	return entries
}

func compareEntries(a, b Entry) int {
	if ua, ub := a.Unread > 0, b.Unread > 0; ua != ub {
		if ua {
			return -1
		}
		return 1
	}
	switch {
	case a.Last != nil && b.Last != nil:
		if a.Last.Timestamp != b.Last.Timestamp {
			if a.Last.Timestamp > b.Last.Timestamp {
				return -1
			}
			return 1
		}
		return 0
	case a.Last != nil:
		return -1
	case b.Last != nil:
		return 1
	}
	return 0
}
