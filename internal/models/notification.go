package models

// Notification action identifiers.
const (
	ActionView    = "view"
	ActionDismiss = "dismiss"
)

// PushPayload is the body of a server push.
type PushPayload struct {
	Type  string         `json:"type"`
	Title string         `json:"title"`
	Body  string         `json:"body"`
	Data  map[string]any `json:"data,omitempty"`
	Tag   string         `json:"tag,omitempty"`
}

// NotificationAction is a button shown on a notification.
type NotificationAction struct {
	Action string `json:"action"`
	Title  string `json:"title"`
	Icon   string `json:"icon"`
}

// Notification is what pages render as a system notification.
type Notification struct {
	Title              string               `json:"title"`
	Body               string               `json:"body"`
	Icon               string               `json:"icon"`
	Badge              string               `json:"badge"`
	Data               map[string]any       `json:"data,omitempty"`
	Actions            []NotificationAction `json:"actions"`
	RequireInteraction bool                 `json:"require_interaction"`
	Tag                string               `json:"tag"`
}

// NotificationClick reports a user action on a notification.
type NotificationClick struct {
	Action string         `json:"action"`
	Data   map[string]any `json:"data,omitempty"`
}

// TargetURL returns the URL a view action should navigate to.
func (c NotificationClick) TargetURL() string {
	if u, ok := c.Data["url"].(string); ok && u != "" {
		return u
	}
	return "/"
}

// SyncRequest asks the worker to run a background sync.
type SyncRequest struct {
	Tag string `json:"tag"`
}
