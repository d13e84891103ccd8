package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/hcbridge/internal/infrastructure/logging"
	"github.com/nerrad567/hcbridge/internal/syncer"
)

// Stream channels.
const (
	ChannelPassCompleted    = "sync.pass_completed"
	ChannelAccessoryChanged = "accessory.changed"
)

// Frame types sent to stream clients.
const (
	FrameSnapshot         = "snapshot"
	FramePassCompleted    = "pass_completed"
	FrameAccessoryChanged = "accessory_changed"
	FrameSubscriptions    = "subscriptions"
	FrameError            = "error"
)

// Actions a stream client may request.
const (
	ActionSubscribe   = "subscribe"
	ActionUnsubscribe = "unsubscribe"
)

// streamBuffer is the number of frames queued per client. A client that
// falls further behind is disconnected and resyncs from the snapshot
// frame on reconnect.
const streamBuffer = 64

var streamChannels = map[string]bool{
	ChannelPassCompleted:    true,
	ChannelAccessoryChanged: true,
}

// Frame is one message on the pass stream.
type Frame struct {
	Type     string                 `json:"type"`
	Time     time.Time              `json:"time"`
	Channels []string               `json:"channels,omitempty"`
	Pass     *syncer.Report         `json:"pass,omitempty"`
	Event    *syncer.AccessoryEvent `json:"event,omitempty"`
	Error    string                 `json:"error,omitempty"`
}

// StreamRequest changes a client's subscriptions.
type StreamRequest struct {
	Action   string   `json:"action"`
	Channels []string `json:"channels"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		// Served on the local network without authentication.
		return true
	},
}

// Hub fans completed passes out to stream clients. It implements
// syncer.Reporter.
type Hub struct {
	logger *logging.Logger

	mu      sync.RWMutex
	clients map[*streamClient]struct{}
}

// NewHub creates an empty hub.
func NewHub(logger *logging.Logger) *Hub {
	return &Hub{
		logger:  logger,
		clients: make(map[*streamClient]struct{}),
	}
}

// Run blocks until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*streamClient]struct{})
	h.mu.Unlock()

	for c := range clients {
		c.close()
		if c.conn != nil {
			c.conn.Close()
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ReportPass sends the pass summary to sync.pass_completed subscribers and
// one frame per accessory event to accessory.changed subscribers.
func (h *Hub) ReportPass(_ context.Context, r syncer.Report) error {
	now := time.Now().UTC()
	h.publish(ChannelPassCompleted, Frame{Type: FramePassCompleted, Time: now, Pass: &r})
	for i := range r.Events {
		h.publish(ChannelAccessoryChanged, Frame{Type: FrameAccessoryChanged, Time: now, Event: &r.Events[i]})
	}
	return nil
}

func (h *Hub) publish(channel string, f Frame) {
	data, err := json.Marshal(f)
	if err != nil {
		h.logger.Error("encoding stream frame", "channel", channel, "error", err)
		return
	}

	h.mu.RLock()
	clients := make([]*streamClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		if !c.subscribed(channel) {
			continue
		}
		if !c.enqueue(data) {
			h.logger.Warn("stream client too slow, disconnecting", "channel", channel)
			h.remove(c)
		}
	}
}

func (h *Hub) add(c *streamClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("stream client connected", "clients", n)
}

func (h *Hub) remove(c *streamClient) {
	h.mu.Lock()
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()
	c.close()
	h.logger.Debug("stream client disconnected", "clients", n)
}

// streamClient is one connected stream consumer. send is closed exactly
// once, by close.
type streamClient struct {
	conn *websocket.Conn
	send chan []byte

	mu       sync.Mutex
	channels map[string]bool
	closed   bool
}

func newStreamClient(conn *websocket.Conn, channels ...string) *streamClient {
	c := &streamClient{
		conn:     conn,
		send:     make(chan []byte, streamBuffer),
		channels: make(map[string]bool, len(channels)),
	}
	for _, ch := range channels {
		c.channels[ch] = true
	}
	return c
}

// enqueue reports false when the client's buffer is full.
func (c *streamClient) enqueue(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return true
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *streamClient) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *streamClient) subscribed(channel string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channels[channel]
}

// subscriptions returns the client's channels in a stable order.
func (c *streamClient) subscriptions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.channels))
	for _, ch := range []string{ChannelPassCompleted, ChannelAccessoryChanged} {
		if c.channels[ch] {
			out = append(out, ch)
		}
	}
	return out
}

// apply validates and applies a subscription request. Nothing changes
// unless every channel is known.
func (c *streamClient) apply(req StreamRequest) error {
	if req.Action != ActionSubscribe && req.Action != ActionUnsubscribe {
		return fmt.Errorf("unknown action %q", req.Action)
	}
	if len(req.Channels) == 0 {
		return fmt.Errorf("%s needs at least one channel", req.Action)
	}
	for _, ch := range req.Channels {
		if !streamChannels[ch] {
			return fmt.Errorf("unknown channel %q", ch)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range req.Channels {
		if req.Action == ActionSubscribe {
			c.channels[ch] = true
		} else {
			delete(c.channels, ch)
		}
	}
	return nil
}

func (c *streamClient) reply(f Frame) {
	f.Time = time.Now().UTC()
	data, err := json.Marshal(f)
	if err != nil {
		return
	}
	c.enqueue(data)
}

// handleStream upgrades the connection. The first frame is a snapshot
// carrying the client's channels and the last completed pass, if any. A
// new client is subscribed to pass completions only.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	c := newStreamClient(conn, ChannelPassCompleted)
	snapshot := Frame{Type: FrameSnapshot, Channels: c.subscriptions()}
	if last, ok := s.passes.LastReport(); ok {
		snapshot.Pass = &last
	}
	c.reply(snapshot)
	s.hub.add(c)

	go s.writeStream(c)
	go s.readStream(c)
}

func (s *Server) readStream(c *streamClient) {
	defer func() {
		s.hub.remove(c)
		c.conn.Close()
	}()

	keepalive := time.Duration(s.wsCfg.PingInterval+s.wsCfg.PongTimeout) * time.Second
	c.conn.SetReadLimit(int64(s.wsCfg.MaxMessageSize))
	c.conn.SetReadDeadline(time.Now().Add(keepalive)) //nolint:errcheck // read error surfaces below
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(keepalive))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("stream read error", "error", err)
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(keepalive)) //nolint:errcheck // read error surfaces above

		var req StreamRequest
		if err := json.Unmarshal(data, &req); err != nil {
			c.reply(Frame{Type: FrameError, Error: "invalid JSON request"})
			continue
		}
		if err := c.apply(req); err != nil {
			c.reply(Frame{Type: FrameError, Error: err.Error()})
			continue
		}
		c.reply(Frame{Type: FrameSubscriptions, Channels: c.subscriptions()})
	}
}

func (s *Server) writeStream(c *streamClient) {
	ping := time.NewTicker(time.Duration(s.wsCfg.PingInterval) * time.Second)
	defer func() {
		ping.Stop()
		c.conn.Close()
	}()
	writeWait := time.Duration(s.wsCfg.PongTimeout) * time.Second

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck // write error surfaces below
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, nil) //nolint:errcheck // connection is closing
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ping.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck // write error surfaces below
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
