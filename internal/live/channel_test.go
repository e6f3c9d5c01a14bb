package live_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"

	"carsync/internal/live"
)

type recorder struct {
	mu       sync.Mutex
	updates  []string
	statuses []live.Status
}

func (r *recorder) handlers() live.Handlers {
	add := func(kind string) func(json.RawMessage) {
		return func(p json.RawMessage) {
			r.mu.Lock()
			r.updates = append(r.updates, kind+":"+string(p))
			r.mu.Unlock()
		}
	}
	return live.Handlers{
		ScrapingProgress: add("scraping_progress"),
		NewCars:          add("new_cars"),
		AnalyticsUpdate:  add("analytics_update"),
		PriceAlert:       add("price_alert"),
		Status: func(s live.Status) {
			r.mu.Lock()
			r.statuses = append(r.statuses, s)
			r.mu.Unlock()
		},
	}
}

func (r *recorder) Updates() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.updates...)
}

func (r *recorder) Statuses() []live.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]live.Status(nil), r.statuses...)
}

func runChannel(t *testing.T, ch *live.Channel) (cancel func()) {
	t.Helper()
	ctx, stop := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		ch.Run(ctx)
		close(done)
	}()
	cancel = func() {
		stop()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("channel did not stop")
		}
	}
	t.Cleanup(cancel)
	return cancel
}

func TestSocketURL(t *testing.T) {
	tests := []struct {
		name    string
		base    string
		want    string
		wantErr bool
	}{
		{"https maps to wss", "https://dash.example.com/analytics?x=1", "wss://dash.example.com/ws/live-updates", false},
		{"http maps to ws", "http://localhost:8000", "ws://localhost:8000/ws/live-updates", false},
		{"other scheme", "ftp://example.com", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := live.SocketURL(tt.base)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestChannel_DispatchesSocketMessages(t *testing.T) {
	var connections atomic.Int32
	srv := httptest.NewServer(websocket.Handler(func(ws *websocket.Conn) {
		if connections.Add(1) > 1 {
			// Hold later connections open until the client goes away.
			var discard string
			_ = websocket.Message.Receive(ws, &discard)
			return
		}
		for _, msg := range []string{
			`{"type":"scraping_progress","payload":{"done":3}}`,
			`not json`,
			`{"type":"weather","payload":{}}`,
			`{"type":"new_cars","payload":{"count":2}}`,
			`{"type":"new_cars","payload":{"count":2}}`,
			`{"type":"price_alert","payload":{"id":7}}`,
			`{"type":"analytics_update","payload":null}`,
		} {
			if err := websocket.Message.Send(ws, msg); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	url, err := live.SocketURL(srv.URL)
	require.NoError(t, err)

	rec := &recorder{}
	ch := live.New(live.Config{URL: url, ReconnectDelay: 20 * time.Millisecond, PollInterval: time.Hour},
		live.WebSocketDialer{Origin: srv.URL}, rec.handlers(), nil)
	runChannel(t, ch)

	assert.Eventually(t, func() bool { return len(rec.Updates()) == 5 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{
		`scraping_progress:{"done":3}`,
		`new_cars:{"count":2}`,
		`new_cars:{"count":2}`,
		`price_alert:{"id":7}`,
		`analytics_update:null`,
	}, rec.Updates())

	// The server ends the first connection; exactly one reconnect follows.
	assert.Eventually(t, func() bool { return connections.Load() == 2 }, 2*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool {
		return ch.Session().Snapshot().State == live.Connected
	}, 2*time.Second, 10*time.Millisecond)

	assert.Eventually(t, func() bool { return len(rec.Statuses()) == 3 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []live.Status{live.StatusActive, live.StatusInactive, live.StatusActive}, rec.Statuses())

	snap := ch.Session().Snapshot()
	assert.Equal(t, live.ModeSocket, snap.Mode)
	assert.True(t, snap.RealTimeEnabled)
	assert.False(t, snap.LastUpdate.IsZero())
}

type fakeConn struct {
	msgs   chan []byte
	closed chan struct{}
	once   sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{msgs: make(chan []byte, 8), closed: make(chan struct{})}
}

func (c *fakeConn) Receive() ([]byte, error) {
	select {
	case m, ok := <-c.msgs:
		if !ok {
			return nil, io.EOF
		}
		return m, nil
	case <-c.closed:
		return nil, errors.New("use of closed connection")
	}
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

type fakeDialer struct {
	mu    sync.Mutex
	dials int
	errs  []error
	conns []*fakeConn
}

func (d *fakeDialer) Dial(ctx context.Context, rawURL string) (live.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	i := d.dials
	d.dials++
	if i < len(d.errs) && d.errs[i] != nil {
		return nil, d.errs[i]
	}
	c := newFakeConn()
	d.conns = append(d.conns, c)
	return c, nil
}

func (d *fakeDialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func (d *fakeDialer) Conn(i int) *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i >= len(d.conns) {
		return nil
	}
	return d.conns[i]
}

func TestChannel_DialErrorReportsAndRetries(t *testing.T) {
	rec := &recorder{}
	dialer := &fakeDialer{errs: []error{errors.New("connection refused")}}
	ch := live.New(live.Config{URL: "ws://upstream/ws/live-updates", ReconnectDelay: 10 * time.Millisecond},
		dialer, rec.handlers(), nil)
	runChannel(t, ch)

	assert.Eventually(t, func() bool { return len(rec.Statuses()) == 3 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, dialer.Dials())
	assert.Equal(t, []live.Status{live.StatusError, live.StatusInactive, live.StatusActive}, rec.Statuses())
}

func TestChannel_UnsupportedFallsBackToPolling(t *testing.T) {
	dialer := &fakeDialer{errs: []error{live.ErrUnsupported}}
	refresher := &countingRefresher{}
	ch := live.New(live.Config{URL: "ws://upstream/ws/live-updates", PollInterval: 10 * time.Millisecond},
		dialer, live.Handlers{}, refresher)
	runChannel(t, ch)

	assert.Eventually(t, func() bool { return refresher.Calls() >= 2 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, dialer.Dials())
	assert.Equal(t, live.ModePolling, ch.Session().Snapshot().Mode)
}

type countingRefresher struct {
	calls atomic.Int32
	err   error
}

func (r *countingRefresher) Refresh(ctx context.Context) error {
	r.calls.Add(1)
	return r.err
}

func (r *countingRefresher) Calls() int {
	return int(r.calls.Load())
}

func TestChannel_PollingWithoutTransport(t *testing.T) {
	t.Run("successful refresh updates last update", func(t *testing.T) {
		refresher := &countingRefresher{}
		ch := live.New(live.Config{PollInterval: 10 * time.Millisecond}, nil, live.Handlers{}, refresher)
		runChannel(t, ch)

		assert.Eventually(t, func() bool { return refresher.Calls() >= 3 }, 2*time.Second, 5*time.Millisecond)
		snap := ch.Session().Snapshot()
		assert.Equal(t, live.ModePolling, snap.Mode)
		assert.Equal(t, live.Disconnected, snap.State)
		assert.False(t, snap.RealTimeEnabled)
		assert.False(t, snap.LastUpdate.IsZero())
	})

	t.Run("failing refresh keeps polling", func(t *testing.T) {
		refresher := &countingRefresher{err: errors.New("upstream down")}
		ch := live.New(live.Config{PollInterval: 10 * time.Millisecond}, nil, live.Handlers{}, refresher)
		runChannel(t, ch)

		assert.Eventually(t, func() bool { return refresher.Calls() >= 3 }, 2*time.Second, 5*time.Millisecond)
		assert.True(t, ch.Session().Snapshot().LastUpdate.IsZero())
	})
}

func TestChannel_MalformedMessageLeavesSessionUntouched(t *testing.T) {
	rec := &recorder{}
	dialer := &fakeDialer{}
	ch := live.New(live.Config{URL: "ws://upstream/ws/live-updates", ReconnectDelay: time.Hour},
		dialer, rec.handlers(), nil)
	runChannel(t, ch)

	assert.Eventually(t, func() bool {
		return ch.Session().Snapshot().State == live.Connected
	}, 2*time.Second, 5*time.Millisecond)

	conn := dialer.Conn(0)
	require.NotNil(t, conn)
	conn.msgs <- []byte(`{"type":`)
	conn.msgs <- []byte(`{"type":"new_cars","payload":[1]}`)

	assert.Eventually(t, func() bool { return len(rec.Updates()) == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{`new_cars:[1]`}, rec.Updates())
	assert.Equal(t, live.Connected, ch.Session().Snapshot().State)
}

func TestChannel_ShutdownClosesSocket(t *testing.T) {
	dialer := &fakeDialer{}
	ch := live.New(live.Config{URL: "ws://upstream/ws/live-updates"}, dialer, live.Handlers{}, nil)
	cancel := runChannel(t, ch)

	assert.Eventually(t, func() bool {
		return ch.Session().Snapshot().State == live.Connected
	}, 2*time.Second, 5*time.Millisecond)

	cancel()

	conn := dialer.Conn(0)
	require.NotNil(t, conn)
	assert.True(t, conn.isClosed())
	snap := ch.Session().Snapshot()
	assert.Equal(t, live.Disconnected, snap.State)
	assert.False(t, snap.RealTimeEnabled)
	assert.Equal(t, 1, dialer.Dials())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "connected", live.Connected.String())
	assert.Equal(t, "reconnecting", live.Reconnecting.String())
	assert.True(t, strings.HasPrefix(live.Disconnected.String(), "dis"))
}

func TestWebSocketDialerBadURLIsUnsupported(t *testing.T) {
	_, err := live.WebSocketDialer{Origin: "http://localhost"}.Dial(context.Background(), "://not a url")
	assert.ErrorIs(t, err, live.ErrUnsupported)
}

func TestNew_DefaultTiming(t *testing.T) {
	cfg := live.New(live.Config{URL: "ws://upstream/ws/live-updates"}, nil, live.Handlers{}, nil).Config()
	assert.Equal(t, 5*time.Second, cfg.ReconnectDelay)
	assert.Equal(t, 30*time.Second, cfg.PollInterval)
	assert.Equal(t, "ws://upstream/ws/live-updates", cfg.URL)

	custom := live.New(live.Config{ReconnectDelay: time.Second, PollInterval: time.Minute}, nil, live.Handlers{}, nil).Config()
	assert.Equal(t, time.Second, custom.ReconnectDelay)
	assert.Equal(t, time.Minute, custom.PollInterval)
}

func TestChannel_ReconnectWaitsForDelay(t *testing.T) {
	const delay = 200 * time.Millisecond
	rec := &recorder{}
	dialer := &fakeDialer{}
	ch := live.New(live.Config{URL: "ws://upstream/ws/live-updates", ReconnectDelay: delay},
		dialer, rec.handlers(), nil)
	runChannel(t, ch)

	assert.Eventually(t, func() bool {
		return ch.Session().Snapshot().State == live.Connected
	}, 2*time.Second, 5*time.Millisecond)

	conn := dialer.Conn(0)
	require.NotNil(t, conn)
	closedAt := time.Now()
	close(conn.msgs)

	assert.Eventually(t, func() bool {
		return ch.Session().Snapshot().State == live.Disconnected
	}, time.Second, 2*time.Millisecond)
	time.Sleep(delay / 4)
	if time.Since(closedAt) < delay {
		assert.Equal(t, 1, dialer.Dials(), "redialed before the reconnect delay")
	}

	assert.Eventually(t, func() bool { return dialer.Dials() == 2 }, 2*time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, time.Since(closedAt), delay)
}
