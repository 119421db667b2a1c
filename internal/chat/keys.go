package chat

import (
	"sort"
	"strings"
)

const (
	UsersCollection         = "users"
	NotificationsCollection = "notifications"
)

// ChatKey is the conversation id of a and b, independent of argument order.
func ChatKey(a, b string) string {
	ids := []string{a, b}
	sort.Strings(ids)
	return strings.Join(ids, "_")
}

// MessagesCollection is where the messages between a and b are stored.
func MessagesCollection(a, b string) string {
	return "privateMessages/" + ChatKey(a, b) + "/messages"
}

func StatusPath(uid string) string { return "status/" + uid }

func TypingPath(chatKey, uid string) string { return "privateTyping/" + chatKey + "/" + uid }
