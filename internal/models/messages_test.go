package models

import "testing"

func TestUpdateKindKnown(t *testing.T) {
	tests := []struct {
		kind UpdateKind
		want bool
	}{
		{UpdateScrapingProgress, true},
		{UpdateNewCars, true},
		{UpdateAnalytics, true},
		{UpdatePriceAlert, true},
		{"heartbeat", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			if got := tt.kind.Known(); got != tt.want {
				t.Errorf("Known(%q) = %v, want %v", tt.kind, got, tt.want)
			}
		})
	}
}

func TestNotificationClickTargetURL(t *testing.T) {
	tests := []struct {
		name string
		data map[string]any
		want string
	}{
		{"no data", nil, "/"},
		{"empty url", map[string]any{"url": ""}, "/"},
		{"non-string url", map[string]any{"url": 42}, "/"},
		{"explicit url", map[string]any{"url": "/cars/123"}, "/cars/123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NotificationClick{Action: ActionView, Data: tt.data}
			if got := c.TargetURL(); got != tt.want {
				t.Errorf("TargetURL() = %q, want %q", got, tt.want)
			}
		})
	}
}
