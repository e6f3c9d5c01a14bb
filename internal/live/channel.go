// Package live keeps dashboard data fresh from server push: a duplex socket
// when one can be opened, periodic polling otherwise.
package live

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"log/slog"
	"sync"
	"time"

	"carsync/internal/metrics"
	"carsync/internal/models"
)

// Status is reported to the UI collaborator on connection changes.
type Status string

// Connection statuses.
const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusError    Status = "error"
)

// Handlers receive dispatched updates. Nil handlers are skipped. All
// handlers run on the channel's loop goroutine, in message arrival order.
type Handlers struct {
	ScrapingProgress func(payload json.RawMessage)
	NewCars          func(payload json.RawMessage)
	AnalyticsUpdate  func(payload json.RawMessage)
	PriceAlert       func(payload json.RawMessage)
	Status           func(status Status)
}

// Refresher reloads data when the channel is polling.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Timing used when Config leaves a field zero.
const (
	DefaultReconnectDelay = 5 * time.Second
	DefaultPollInterval   = 30 * time.Second
)

// Config controls connection and polling timing.
type Config struct {
	URL            string
	ReconnectDelay time.Duration
	PollInterval   time.Duration
}

// Channel is the live update channel.
type Channel struct {
	cfg       Config
	dialer    Dialer
	handlers  Handlers
	refresher Refresher
	session   *Session
	now       func() time.Time
}

// New creates a channel. A nil dialer means no duplex transport is
// available and the channel polls from the start.
func New(cfg Config, dialer Dialer, handlers Handlers, refresher Refresher) *Channel {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	return &Channel{
		cfg:       cfg,
		dialer:    dialer,
		handlers:  handlers,
		refresher: refresher,
		session:   &Session{mode: ModeSocket},
		now:       time.Now,
	}
}

// Config returns the effective configuration.
func (c *Channel) Config() Config {
	return c.cfg
}

// Session returns the channel's owned state.
func (c *Channel) Session() *Session {
	return c.session
}

type eventKind int

const (
	evOpen eventKind = iota
	evMessage
	evError
	evClose
	evUnsupported
)

type event struct {
	kind eventKind
	conn Conn
	data []byte
	err  error
}

type action int

const (
	actNone action = iota
	actReconnect
	actPoll
)

// Run drives the channel until ctx is cancelled. Cancellation closes the
// socket, stops any pending reconnect or polling, and leaves the session
// disconnected.
func (c *Channel) Run(ctx context.Context) {
	events := make(chan event)
	var wg sync.WaitGroup
	defer wg.Wait()

	if !c.start(ctx, events, &wg, Connecting) {
		c.poll(ctx)
		return
	}

	var retry <-chan time.Time
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			c.shutdown()
			log.Println("live: channel stopped")
			return

		case ev := <-events:
			switch c.transition(ev) {
			case actReconnect:
				timer = time.NewTimer(c.cfg.ReconnectDelay)
				retry = timer.C
			case actPoll:
				c.shutdown()
				c.poll(ctx)
				return
			}

		case <-retry:
			retry = nil
			log.Println("live: attempting to reconnect")
			metrics.RecordReconnect()
			if !c.start(ctx, events, &wg, Reconnecting) {
				c.poll(ctx)
				return
			}
		}
	}
}

// start begins one connection attempt. It returns false when no duplex
// transport exists.
func (c *Channel) start(ctx context.Context, events chan<- event, wg *sync.WaitGroup, state State) bool {
	if c.dialer == nil {
		slog.Warn("live: duplex transport not supported, falling back to polling")
		return false
	}
	c.session.setState(state)
	c.publishState()

	wg.Add(1)
	go func() {
		defer wg.Done()
		c.connect(ctx, events)
	}()
	return true
}

// connect dials and then pumps received messages into events until the
// connection ends.
func (c *Channel) connect(ctx context.Context, events chan<- event) {
	conn, err := c.dialer.Dial(ctx, c.cfg.URL)
	if err != nil {
		if errors.Is(err, ErrUnsupported) {
			emit(ctx, events, event{kind: evUnsupported, err: err})
			return
		}
		if emit(ctx, events, event{kind: evError, err: err}) {
			emit(ctx, events, event{kind: evClose})
		}
		return
	}

	if !emit(ctx, events, event{kind: evOpen, conn: conn}) {
		conn.Close()
		return
	}

	for {
		data, err := conn.Receive()
		if err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				if !emit(ctx, events, event{kind: evError, err: err}) {
					return
				}
			}
			emit(ctx, events, event{kind: evClose})
			return
		}
		if !emit(ctx, events, event{kind: evMessage, data: data}) {
			return
		}
	}
}

func emit(ctx context.Context, events chan<- event, ev event) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// transition applies one socket event to the session.
func (c *Channel) transition(ev event) action {
	defer c.publishState()

	switch ev.kind {
	case evOpen:
		log.Printf("live: connected to %s", c.cfg.URL)
		c.session.opened(ev.conn)
		c.status(StatusActive)

	case evMessage:
		c.dispatch(ev.data)

	case evError:
		slog.Error("live: connection error", "url", c.cfg.URL, "error", ev.err)
		c.status(StatusError)

	case evClose:
		log.Println("live: disconnected")
		if conn := c.session.closed(); conn != nil {
			conn.Close()
		}
		c.status(StatusInactive)
		return actReconnect

	case evUnsupported:
		slog.Warn("live: failed to set up socket, falling back to polling", "error", ev.err)
		return actPoll
	}
	return actNone
}

// dispatch routes one raw message to its handler. Malformed messages are
// logged and dropped without touching the session.
func (c *Channel) dispatch(raw []byte) {
	var msg models.UpdateMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		slog.Warn("live: error parsing message", "error", err)
		return
	}

	slog.Debug("live: received update", "type", msg.Type)
	if msg.Type.Known() {
		metrics.RecordLiveMessage(string(msg.Type))
	} else {
		metrics.RecordLiveMessage("unknown")
	}

	switch msg.Type {
	case models.UpdateScrapingProgress:
		call(c.handlers.ScrapingProgress, msg.Payload)
	case models.UpdateNewCars:
		call(c.handlers.NewCars, msg.Payload)
	case models.UpdateAnalytics:
		call(c.handlers.AnalyticsUpdate, msg.Payload)
	case models.UpdatePriceAlert:
		call(c.handlers.PriceAlert, msg.Payload)
	default:
		slog.Info("live: unknown update type", "type", msg.Type)
	}

	c.session.touch(c.now())
}

func call(fn func(json.RawMessage), payload json.RawMessage) {
	if fn != nil {
		fn(payload)
	}
}

func (c *Channel) status(s Status) {
	if c.handlers.Status != nil {
		c.handlers.Status(s)
	}
}

func (c *Channel) publishState() {
	metrics.SetLiveState(int(c.session.Snapshot().State))
}

func (c *Channel) shutdown() {
	if conn := c.session.closed(); conn != nil {
		conn.Close()
	}
	c.publishState()
}

// poll refreshes on every tick until ctx is cancelled. A slow refresh does
// not delay the next tick, so refreshes may overlap.
func (c *Channel) poll(ctx context.Context) {
	c.session.setMode(ModePolling)
	c.session.setState(Disconnected)
	c.publishState()
	log.Printf("live: polling for updates every %v", c.cfg.PollInterval)

	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			log.Println("live: polling stopped")
			return
		case <-ticker.C:
			wg.Add(1)
			go func() {
				defer wg.Done()
				c.refresh(ctx)
			}()
		}
	}
}

func (c *Channel) refresh(ctx context.Context) {
	if c.refresher == nil {
		return
	}
	if err := c.refresher.Refresh(ctx); err != nil {
		slog.Error("live: error in polling update", "error", err)
		return
	}
	c.session.touch(c.now())
}
