package handlers

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carsync/internal/clients"
	"carsync/internal/models"
)

func TestWriteEvent(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)

	err := writeEvent(w, models.ClientMessage{
		Type:      models.ClientDataUpdate,
		URL:       "http://localhost:3000/api/analytics/",
		Timestamp: 1700000000000,
	})
	require.NoError(t, err)
	assert.Equal(t,
		"data: {\"type\":\"DATA_UPDATE\",\"url\":\"http://localhost:3000/api/analytics/\",\"timestamp\":1700000000000}\n\n",
		buf.String())
}

func TestStreamClosesWithServer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	hub := clients.NewHub(4)
	h := NewEventsHandler(ctx, hub, time.Minute)

	app := fiber.New()
	app.Get("/_carsync/events", h.Stream)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/_carsync/events?url=/cars", nil))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	assert.Contains(t, string(body), "event: hello\n")
	assert.Eventually(t, func() bool { return hub.Len() == 0 }, time.Second, 10*time.Millisecond)
}

func TestStreamRejectsOffSiteURL(t *testing.T) {
	hub := clients.NewHub(4)
	h := NewEventsHandler(context.Background(), hub, time.Minute)

	app := fiber.New()
	app.Get("/_carsync/events", h.Stream)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/_carsync/events?url=https://evil.example/", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Zero(t, hub.Len())
}
