package cache

import (
	"net/http"
	"time"
)

// Entry is a stored response snapshot.
type Entry struct {
	Status     int         `json:"status"`
	StatusText string      `json:"status_text,omitempty"`
	Header     http.Header `json:"header,omitempty"`
	Body       []byte      `json:"body"`
	StoredAt   time.Time   `json:"stored_at"`
}

// RequestKey returns the identity a response is stored under.
func RequestKey(method, url string) string {
	return method + " " + url
}
