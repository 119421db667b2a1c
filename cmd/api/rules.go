package main

import (
	"context"
	"strings"

	"github.com/Tushar13233u/my-new-chat-app/internal/apperr"
	"github.com/Tushar13233u/my-new-chat-app/internal/chat"
	"github.com/Tushar13233u/my-new-chat-app/internal/docstore"
	"github.com/Tushar13233u/my-new-chat-app/internal/push"
	"github.com/Tushar13233u/my-new-chat-app/internal/realtime"
	"github.com/Tushar13233u/my-new-chat-app/internal/servervalue"
)

var errForbidden = apperr.Forbidden("permission denied")

// participants splits a chat key into its two uids.
func participants(key string) (string, string, bool) {
	a, b, ok := strings.Cut(key, "_")
	if !ok || a == "" || b == "" || strings.Contains(b, "_") {
		return "", "", false
	}
	return a, b, true
}

// peerOf returns the other participant of key, if uid is one.
func peerOf(key, uid string) (string, bool) {
	a, b, ok := participants(key)
	switch {
	case !ok:
		return "", false
	case a == uid:
		return b, true
	case b == uid:
		return a, true
	}
	return "", false
}

// messagesChat returns the chat key of a messages collection path.
func messagesChat(collection string) (string, bool) {
	params, ok := docstore.MatchPath(push.MessagesPattern, collection)
	if !ok {
		return "", false
	}
	return params["chatId"], true
}

// checkCollectionRead covers Get, Query and Subscribe.
func checkCollectionRead(uid string, q docstore.Query) error {
	if q.Collection == chat.UsersCollection {
		return nil
	}
	if key, ok := messagesChat(q.Collection); ok {
		if _, ok := peerOf(key, uid); ok {
			return nil
		}
		return errForbidden
	}
	if q.Collection == chat.NotificationsCollection {
		for _, f := range q.Filters {
			if (f.Field == "receiverId" || f.Field == "senderId") && f.Op == docstore.OpEqual && f.Value == uid {
				return nil
			}
		}
	}
	return errForbidden
}

// checkDocumentRead is the per-document read rule applied after a Get.
func checkDocumentRead(uid string, doc *docstore.Document) error {
	if doc.Collection == chat.NotificationsCollection {
		if doc.Data["receiverId"] == uid || doc.Data["senderId"] == uid {
			return nil
		}
		return errForbidden
	}
	return checkCollectionRead(uid, docstore.Query{Collection: doc.Collection})
}

// checkAdd validates a new document created by uid.
func checkAdd(uid, collection string, data map[string]any) error {
	if key, ok := messagesChat(collection); ok {
		peer, ok := peerOf(key, uid)
		if !ok || data["senderId"] != uid || data["receiverId"] != peer {
			return errForbidden
		}
		if text, _ := data["text"].(string); strings.TrimSpace(text) == "" {
			return apperr.InvalidArg("message text is required")
		}
		// new messages start unread and take the server clock
		if data["read"] != false || !servervalue.IsTimestamp(data["timestamp"]) {
			return errForbidden
		}
		return nil
	}
	if collection == chat.NotificationsCollection && data["senderId"] == uid {
		return nil
	}
	return errForbidden
}

// checkWrite validates one op of a commit. Rules that depend on the stored
// document read it through docs.
func checkWrite(ctx context.Context, docs docstore.Store, uid string, op docstore.Op) error {
	if op.Collection == chat.UsersCollection {
		if op.ID != uid || op.Kind == docstore.OpDelete {
			return errForbidden
		}
		return nil
	}

	key, isMessage := messagesChat(op.Collection)
	if isMessage {
		if _, ok := peerOf(key, uid); !ok {
			return errForbidden
		}
	}
	if !isMessage && op.Collection != chat.NotificationsCollection {
		return errForbidden
	}

	switch op.Kind {
	case docstore.OpUpdate:
		// read only ever goes false -> true
		if !onlyField(op.Data, "read") || op.Data["read"] != true {
			return errForbidden
		}
		return requireField(ctx, docs, op, "receiverId", uid, errForbidden)
	case docstore.OpDelete:
		if !isMessage {
			return errForbidden
		}
		return requireField(ctx, docs, op, "senderId", uid, apperr.ErrNotSender)
	}
	// documents in these collections are created through Add only
	return errForbidden
}

// requireField loads the target of op and checks field == uid. A missing
// document passes; the write itself reports it.
func requireField(ctx context.Context, docs docstore.Store, op docstore.Op, field, uid string, deny error) error {
	doc, err := docs.Get(ctx, op.Collection, op.ID)
	if err != nil {
		if apperr.CodeOf(err) == apperr.CodeNotFound {
			return nil
		}
		return err
	}
	if doc.Data[field] != uid {
		return deny
	}
	return nil
}

func onlyField(data map[string]any, field string) bool {
	if len(data) == 0 {
		return false
	}
	for k := range data {
		if k != field {
			return false
		}
	}
	return true
}

// checkRealtimeWrite: status/<uid> by uid, privateTyping/<key>/<uid>
// by uid when uid takes part in key.
func checkRealtimeWrite(uid, path string) error {
	p, err := realtime.NormalizePath(path)
	if err != nil {
		return err
	}
	segs := strings.Split(p, "/")
	switch {
	case len(segs) == 2 && segs[0] == "status" && segs[1] == uid:
		return nil
	case len(segs) == 3 && segs[0] == "privateTyping" && segs[2] == uid:
		if _, ok := peerOf(segs[1], uid); ok {
			return nil
		}
	}
	return errForbidden
}

// checkRealtimeRead: anyone signed in reads presence; typing flags are
// visible to the chat's participants.
func checkRealtimeRead(uid, path string) error {
	p, err := realtime.NormalizePath(path)
	if err != nil {
		return err
	}
	if p == realtime.ConnectedPath {
		return nil
	}
	segs := strings.Split(p, "/")
	switch {
	case len(segs) == 2 && segs[0] == "status":
		return nil
	case len(segs) >= 2 && segs[0] == "privateTyping":
		if _, ok := peerOf(segs[1], uid); ok {
			return nil
		}
	}
	return errForbidden
}
