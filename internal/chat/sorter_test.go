package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uids(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Partner.UID
	}
	return out
}

func reduceAll(events ...Event) State {
	var s State
	for _, ev := range events {
		s = Reduce(s, ev)
	}
	return s
}

func TestSortedUnreadDominatesRecency(t *testing.T) {
	s := reduceAll(
		PartnersListed{Partners: []Partner{{UID: "A"}, {UID: "B"}}},
		UnreadChanged{UID: "A", Count: 2},
		UnreadChanged{UID: "B", Count: 0},
		LastMessageChanged{UID: "A", Last: &LastMessage{Timestamp: 100}},
		LastMessageChanged{UID: "B", Last: &LastMessage{Timestamp: 200}},
	)
	require.Equal(t, []string{"A", "B"}, uids(Sorted(s)))
}

func TestSortedOrder(t *testing.T) {
	s := reduceAll(
		PartnersListed{Partners: []Partner{{UID: "n1"}, {UID: "old"}, {UID: "n2"}, {UID: "new"}, {UID: "u1"}, {UID: "u2"}}},
		LastMessageChanged{UID: "old", Last: &LastMessage{Timestamp: 10}},
		LastMessageChanged{UID: "new", Last: &LastMessage{Timestamp: 30}},
		LastMessageChanged{UID: "u1", Last: &LastMessage{Timestamp: 5}},
		LastMessageChanged{UID: "u2", Last: &LastMessage{Timestamp: 20}},
		UnreadChanged{UID: "u1", Count: 1},
		UnreadChanged{UID: "u2", Count: 3},
	)
	// unread by recency, then read by recency, then never messaged in input order
	require.Equal(t, []string{"u2", "u1", "new", "old", "n1", "n2"}, uids(Sorted(s)))
}

func TestReduceIsPure(t *testing.T) {
	base := reduceAll(PartnersListed{Partners: []Partner{{UID: "A"}, {UID: "B"}}})
	before := Sorted(base)

	next := Reduce(base, UnreadChanged{UID: "B", Count: 1})
	assert.Equal(t, before, Sorted(base), "input state must not change")
	assert.Equal(t, []string{"B", "A"}, uids(Sorted(next)))
	assert.Equal(t, Sorted(next), Sorted(next), "projection must be deterministic")
}

func TestReduceIgnoresUnknownAndDroppedPartners(t *testing.T) {
	s := reduceAll(
		PartnersListed{Partners: []Partner{{UID: "A"}}},
		UnreadChanged{UID: "ghost", Count: 4},
	)
	require.Equal(t, []string{"A"}, uids(Sorted(s)))

	s = Reduce(s, UnreadChanged{UID: "A", Count: 1})
	s = Reduce(s, PartnersListed{Partners: []Partner{{UID: "B"}}})
	s = Reduce(s, PartnersListed{Partners: []Partner{{UID: "A"}, {UID: "B"}}})
	entries := Sorted(s)
	require.Equal(t, []string{"A", "B"}, uids(entries))
	require.Zero(t, entries[0].Unread, "aggregates of a dropped partner must be forgotten")
	require.False(t, entries[0].Presence.Online())
}

func TestLastMessageClearedWhenConversationEmpties(t *testing.T) {
	s := reduceAll(
		PartnersListed{Partners: []Partner{{UID: "A"}, {UID: "B"}}},
		LastMessageChanged{UID: "B", Last: &LastMessage{Timestamp: 1}},
	)
	require.Equal(t, []string{"B", "A"}, uids(Sorted(s)))
	s = Reduce(s, LastMessageChanged{UID: "B"})
	require.Equal(t, []string{"A", "B"}, uids(Sorted(s)))
}
