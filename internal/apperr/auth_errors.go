package apperr

// Reasons reported by the auth service.
const (
	ReasonInvalidCredential = "auth/invalid-credential"
	ReasonEmailInUse        = "auth/email-already-in-use"
	ReasonWeakPassword      = "auth/weak-password"
	ReasonInvalidEmail      = "auth/invalid-email"
	ReasonNetworkFailed     = "auth/network-request-failed"
	ReasonRenameLimit       = "profile/rename-limit-exceeded"
	ReasonUsernameTaken     = "profile/username-taken"
	ReasonPushPermission    = "messaging/permission-blocked"
	ReasonDeleteNotSender   = "messages/not-sender"
)

var (
	ErrInvalidCredential = WithReason(CodeUnauthenticated, ReasonInvalidCredential, "invalid credentials")
	ErrEmailInUse        = WithReason(CodeAlreadyExists, ReasonEmailInUse, "email already in use")
	ErrWeakPassword      = WithReason(CodeInvalidArgument, ReasonWeakPassword, "password must be at least 6 characters")
	ErrInvalidEmail      = WithReason(CodeInvalidArgument, ReasonInvalidEmail, "invalid email address")
	ErrNetworkFailed     = WithReason(CodeUnavailable, ReasonNetworkFailed, "network request failed")

	ErrUsernameTaken  = WithReason(CodeAlreadyExists, ReasonUsernameTaken, "Username already taken. Please choose another one.")
	ErrRenameLimit    = WithReason(CodeResourceExhausted, ReasonRenameLimit, "username change limit exceeded")
	ErrPushPermission = WithReason(CodePermissionDenied, ReasonPushPermission, "notification permission denied")
	ErrNotSender      = WithReason(CodePermissionDenied, ReasonDeleteNotSender, "only the sender can delete a message")
)
