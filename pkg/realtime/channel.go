// Package realtime keeps one authenticated WebSocket to the clinic server,
// decodes its push notifications and fans them out to subscribers.
package realtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"math/rand"
	"net/url"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/NicolasHaas/cliniclink/pkg/api"
	"github.com/NicolasHaas/cliniclink/pkg/metrics"
	"github.com/NicolasHaas/cliniclink/pkg/session"
)

const (
	closeTimeout = time.Second
	writeTimeout = 10 * time.Second

	// CloseReason is sent with the normal-closure frame on Disconnect.
	CloseReason = "user logged out"
)

// State represents the channel's connection state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosing:
		return "closing"
	default:
		return "unknown"
	}
}

// Subscriber receives notifications on the channel's dispatch goroutine.
// Nil callbacks are skipped. Callbacks may call back into the Channel.
type Subscriber struct {
	OnEvent       func(Event)
	OnStateChange func(State)
	OnError       func(error)
}

// Options configures a Channel. URL and Sessions are required.
type Options struct {
	URL      string // ws:// or wss:// endpoint, without the token
	Sessions session.Reader
	Dialer   Dialer
	Backoff  BackoffConfig
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
}

// Channel is the realtime notification socket.
type Channel struct {
	url      string
	sessions session.Reader
	dialer   Dialer
	backoff  BackoffConfig
	metrics  *metrics.Metrics
	log      *slog.Logger

	mu         sync.Mutex
	state      State
	gen        uint64 // bumped per connection attempt and on Disconnect
	conn       Conn
	cancelDial context.CancelFunc
	timer      *time.Timer
	attempt    int
	rng        *rand.Rand
	closed     bool

	writeMu sync.Mutex

	subMu   sync.Mutex
	subs    map[int]Subscriber
	nextSub int

	queue *dispatcher
}

// New creates a disconnected Channel and starts its dispatch goroutine.
func New(opts Options) (*Channel, error) {
	u, err := url.Parse(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("realtime: parse URL: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("realtime: URL %q must be ws or wss", opts.URL)
	}
	if opts.Sessions == nil {
		return nil, errors.New("realtime: no session store")
	}
	if opts.Dialer == nil {
		opts.Dialer = WebsocketDialer{HandshakeTimeout: DefaultHandshakeTimeout}
	}
	if opts.Backoff.InitialDelay <= 0 {
		opts.Backoff = DefaultBackoff()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default().With("component", "realtime")
	}

	return &Channel{
		url:      opts.URL,
		sessions: opts.Sessions,
		dialer:   opts.Dialer,
		backoff:  opts.Backoff,
		metrics:  opts.Metrics,
		log:      opts.Logger,
		state:    StateDisconnected,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		subs:     make(map[int]Subscriber),
		queue:    newDispatcher(),
	}, nil
}

// Subscribe registers s and returns a func that removes it.
func (c *Channel) Subscribe(s Subscriber) (unsubscribe func()) {
	c.subMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = s
	c.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.subMu.Lock()
			delete(c.subs, id)
			c.subMu.Unlock()
		})
	}
}

// State returns the current connection state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsConnected is true only in StateConnected.
func (c *Channel) IsConnected() bool {
	return c.State() == StateConnected
}

// Connect opens the socket in the background. It does nothing unless the
// channel is Disconnected, and nothing when the session has no token.
func (c *Channel) Connect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.state != StateDisconnected {
		return
	}
	c.connectLocked()
}

func (c *Channel) connectLocked() {
	token := c.sessions.Get().Token
	if token == "" {
		c.log.Debug("connect skipped: no token")
		return
	}
	target, err := withToken(c.url, token)
	if err != nil {
		c.log.Warn("connect skipped", "err", err)
		return
	}

	c.stopTimerLocked()
	c.gen++
	gen := c.gen
	ctx, cancel := context.WithCancel(context.Background())
	c.cancelDial = cancel
	c.setStateLocked(StateConnecting)

	c.log.Debug("dialing", "url", redactURL(target), "gen", gen)
	go c.run(ctx, cancel, gen, target)
}

func (c *Channel) run(ctx context.Context, cancel context.CancelFunc, gen uint64, target string) {
	conn, err := c.dialer.Dial(ctx, target)
	cancel()

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return
	}
	c.cancelDial = nil
	if err != nil {
		c.failLocked(gen, err)
		c.mu.Unlock()
		return
	}
	c.conn = conn
	c.attempt = 0
	c.setStateLocked(StateConnected)
	if c.metrics != nil {
		c.metrics.ChannelConnects.Add(1)
	}
	c.mu.Unlock()

	c.log.Info("realtime connected", "gen", gen)
	c.readLoop(gen, conn)
}

func (c *Channel) readLoop(gen uint64, conn Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.handleReadError(gen, conn, err)
			return
		}

		ev, err := Decode(data)
		if err != nil {
			if c.metrics != nil {
				c.metrics.EventsDropped.Add(1)
			}
			c.log.Warn("dropping message", "err", err, "size", len(data))
			continue
		}

		c.mu.Lock()
		if gen != c.gen || c.state != StateConnected {
			c.mu.Unlock()
			return
		}
		c.enqueueEventLocked(ev)
		c.mu.Unlock()
	}
}

func (c *Channel) handleReadError(gen uint64, conn Conn, err error) {
	_ = conn.Close()

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return
	}
	c.conn = nil

	if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		c.log.Info("realtime closed by server")
		c.setStateLocked(StateDisconnected)
		return
	}
	c.failLocked(gen, err)
}

// failLocked moves to Disconnected, reports err and schedules one reconnect.
func (c *Channel) failLocked(gen uint64, err error) {
	c.conn = nil
	c.setStateLocked(StateDisconnected)
	if c.metrics != nil {
		c.metrics.ChannelFailures.Add(1)
	}
	c.log.Warn("realtime failure", "err", err, "gen", gen)

	chErr := api.NewChannelError(err)
	c.queue.push(func() {
		for _, s := range c.subscribers() {
			if s.OnError != nil {
				s.OnError(chErr)
			}
		}
	})

	if c.closed {
		return
	}
	c.attempt++
	delay := c.backoff.Delay(c.attempt, c.rng)
	c.stopTimerLocked()
	c.timer = time.AfterFunc(delay, func() { c.reconnect(gen) })
	c.log.Debug("reconnect scheduled", "delay", delay, "attempt", c.attempt)
}

func (c *Channel) reconnect(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen || c.closed || c.state != StateDisconnected {
		return
	}
	c.timer = nil
	if !c.sessions.Get().LoggedIn {
		c.log.Debug("reconnect skipped: logged out")
		return
	}
	if c.metrics != nil {
		c.metrics.ChannelReconnects.Add(1)
	}
	c.connectLocked()
}

// Disconnect cancels any pending reconnect or dial and closes the socket
// with a normal-closure frame. Safe to call in any state, any number of times.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	c.stopTimerLocked()
	c.gen++
	c.attempt = 0
	if c.cancelDial != nil {
		c.cancelDial()
		c.cancelDial = nil
	}
	conn := c.conn
	c.conn = nil
	if conn == nil {
		if c.state == StateConnecting {
			c.setStateLocked(StateDisconnected)
		}
		c.mu.Unlock()
		return
	}
	c.setStateLocked(StateClosing)
	c.mu.Unlock()

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, CloseReason)
	if err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeTimeout)); err != nil {
		c.log.Debug("close frame not sent", "err", err)
	}
	_ = conn.Close()

	c.mu.Lock()
	if c.state == StateClosing {
		c.setStateLocked(StateDisconnected)
	}
	c.mu.Unlock()
	c.log.Info("realtime disconnected")
}

// Send writes {"event","data"} while Connected and is a silent no-op otherwise.
func (c *Channel) Send(event string, payload any) error {
	c.mu.Lock()
	conn := c.conn
	ok := c.state == StateConnected && conn != nil
	c.mu.Unlock()
	if !ok {
		return nil
	}

	data, err := Encode(event, payload)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("realtime: send %s: %w", event, err)
	}
	if c.metrics != nil {
		c.metrics.ChannelMessagesOut.Add(1)
	}
	return nil
}

// Close disconnects for good and stops the dispatch goroutine once the
// notifications already queued have been delivered.
func (c *Channel) Close() {
	c.Disconnect()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.queue.stop()
}

func (c *Channel) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Channel) setStateLocked(s State) {
	if c.state == s {
		return
	}
	c.state = s
	c.queue.push(func() {
		for _, sub := range c.subscribers() {
			if sub.OnStateChange != nil {
				sub.OnStateChange(s)
			}
		}
	})
}

func (c *Channel) enqueueEventLocked(ev Event) {
	c.queue.push(func() {
		for _, s := range c.subscribers() {
			if s.OnEvent != nil {
				s.OnEvent(ev)
			}
		}
		if c.metrics != nil {
			c.metrics.EventsDispatched.Add(1)
		}
	})
}

// subscribers snapshots the current subscribers in registration order.
func (c *Channel) subscribers() []Subscriber {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	out := make([]Subscriber, 0, len(c.subs))
	for _, id := range slices.Sorted(maps.Keys(c.subs)) {
		out = append(out, c.subs[id])
	}
	return out
}
