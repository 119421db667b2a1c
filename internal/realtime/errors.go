package realtime

import "github.com/Tushar13233u/my-new-chat-app/internal/apperr"

var errSessionClosed = apperr.New(apperr.CodeUnavailable, "realtime session closed")
