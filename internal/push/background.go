package push

// Notification actions offered on background notifications.
const (
	ActionOpenChat = "open_chat"
	ActionDismiss  = "dismiss"
)

type Action struct {
	Action string `json:"action"`
	Title  string `json:"title"`
	Icon   string `json:"icon,omitempty"`
}

// ClickData travels with a displayed notification and is read back on click.
type ClickData struct {
	ChatID     string `json:"chatId,omitempty"`
	SenderID   string `json:"senderId,omitempty"`
	SenderName string `json:"senderName,omitempty"`
	URL        string `json:"url,omitempty"`
}

// Options is how a background notification is displayed.
type Options struct {
	Body               string    `json:"body"`
	Icon               string    `json:"icon"`
	Badge              string    `json:"badge"`
	Tag                string    `json:"tag"`
	RequireInteraction bool      `json:"requireInteraction"`
	Actions            []Action  `json:"actions"`
	Data               ClickData `json:"data"`
}

// Background turns a payload received while the app is not in the
// foreground into the title and options of a displayed notification.
func Background(p Payload) (string, Options) {
	title := p.Notification.Title
	if title == "" {
		title = "New Message"
	}
	body := p.Notification.Body
	if body == "" {
		body = "You have a new message"
	}
	tag := p.Data.ChatID
	if tag == "" {
		tag = "chat-notification"
	}
	return title, Options{
		Body:  body,
		Icon:  Icon,
		Badge: Icon,
		Tag:   tag,
		Actions: []Action{
			{Action: ActionOpenChat, Title: "Open Chat", Icon: Icon},
			{Action: ActionDismiss, Title: "Dismiss"},
		},
		Data: ClickData{
			ChatID:     p.Data.ChatID,
			SenderID:   p.Data.SenderID,
			SenderName: p.Data.SenderName,
			URL:        p.Data.ClickAction,
		},
	}
}

// ClickTarget is the location a notification click opens. Dismiss opens
// nothing.
func ClickTarget(action string, data ClickData) (string, bool) {
	if action == ActionDismiss {
		return "", false
	}
	switch {
	case data.URL != "":
		return data.URL, true
	case data.SenderID != "":
		return "/chat/" + data.SenderID, true
	default:
		return "/", true
	}
}
