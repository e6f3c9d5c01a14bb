package models

import "encoding/json"

// ControlType names a page-to-worker control message.
type ControlType string

// Control message types.
const (
	ControlSkipWaiting ControlType = "SKIP_WAITING"
	ControlGetVersion  ControlType = "GET_VERSION"
	ControlClearCache  ControlType = "CLEAR_CACHE"
)

// ControlMessage is sent by a page to the worker.
type ControlMessage struct {
	Type ControlType     `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// ClientMessageType names a worker-to-page message.
type ClientMessageType string

// Client message types.
const (
	ClientDataUpdate   ClientMessageType = "DATA_UPDATE"
	ClientNotification ClientMessageType = "NOTIFICATION"
	ClientFocus        ClientMessageType = "FOCUS"
	ClientLiveUpdate   ClientMessageType = "LIVE_UPDATE"
	ClientLiveStatus   ClientMessageType = "LIVE_STATUS"
)

// ClientMessage is fanned out to connected pages.
type ClientMessage struct {
	Type         ClientMessageType `json:"type"`
	URL          string            `json:"url,omitempty"`
	Timestamp    int64             `json:"timestamp"`
	Notification *Notification     `json:"notification,omitempty"`
	Update       *UpdateMessage    `json:"update,omitempty"`
	Status       string            `json:"status,omitempty"`
}

// UpdateKind is the type tag of a live update pushed by the server.
type UpdateKind string

// Recognized live update kinds.
const (
	UpdateScrapingProgress UpdateKind = "scraping_progress"
	UpdateNewCars          UpdateKind = "new_cars"
	UpdateAnalytics        UpdateKind = "analytics_update"
	UpdatePriceAlert       UpdateKind = "price_alert"
)

// UpdateMessage is the live update wire format.
type UpdateMessage struct {
	Type    UpdateKind      `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Known reports whether the kind has a dedicated handler.
func (k UpdateKind) Known() bool {
	switch k {
	case UpdateScrapingProgress, UpdateNewCars, UpdateAnalytics, UpdatePriceAlert:
		return true
	}
	return false
}
