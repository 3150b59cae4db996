package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/okian/crease/internal/domain/model"
	"github.com/okian/crease/pkg/logger"
	"github.com/okian/crease/pkg/metrics"
)

const (
	writeWait      = 5 * time.Second
	maxMessageSize = 4096
)

// Message types exchanged over the websocket.
const (
	MsgSubscribe    = "subscribe"
	MsgUnsubscribe  = "unsubscribe"
	MsgPing         = "ping"
	MsgPong         = "pong"
	MsgSubscribed   = "subscribed"
	MsgUnsubscribed = "unsubscribed"
	MsgUpdate       = "update"
	MsgError        = "error"
)

// ClientMsg is what a viewer sends.
type ClientMsg struct {
	Type    string `json:"type"`
	MatchID string `json:"matchId,omitempty"`
}

// ServerMsg is what the hub sends.
type ServerMsg struct {
	Type    string             `json:"type"`
	MatchID string             `json:"matchId,omitempty"`
	Update  *model.ScoreUpdate `json:"update,omitempty"`
	Error   string             `json:"error,omitempty"`
}

// client serialises writes; gorilla allows one concurrent writer.
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(ctx context.Context, fn func(*websocket.Conn) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	_ = c.conn.SetWriteDeadline(writeDeadline(ctx))
	return fn(c.conn)
}

func (c *client) writeJSON(ctx context.Context, v any) error {
	return c.write(ctx, func(conn *websocket.Conn) error { return conn.WriteJSON(v) })
}

// writeDeadline is writeWait from now, or ctx's deadline when sooner.
func writeDeadline(ctx context.Context) time.Time {
	d := time.Now().Add(writeWait)
	if dl, ok := ctx.Deadline(); ok && dl.Before(d) {
		return dl
	}
	return d
}

// Hub tracks websocket viewers and the matches they follow.
type Hub struct {
	upgrader websocket.Upgrader
	logger   logger.Logger

	mu      sync.RWMutex
	subs    map[string]map[*client]struct{}
	clients map[*client]struct{}
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithCheckOrigin sets the origin policy for upgrades.
func WithCheckOrigin(allow func(r *http.Request) bool) HubOption {
	return func(h *Hub) {
		if allow != nil {
			h.upgrader.CheckOrigin = allow
		}
	}
}

// WithHubLogger sets the hub logger.
func WithHubLogger(l logger.Logger) HubOption {
	return func(h *Hub) {
		if l != nil {
			h.logger = l
		}
	}
}

// NewHub creates a hub accepting any origin unless told otherwise.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		logger:   logger.Get().Named("ws-hub"),
		subs:     make(map[string]map[*client]struct{}),
		clients:  make(map[*client]struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HandleWS upgrades the request and serves one viewer until it disconnects.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug(r.Context(), "websocket upgrade failed", logger.Error(err))
		return
	}
	c := &client{conn: conn}
	h.register(c)
	defer func() {
		h.unregister(c)
		_ = conn.Close()
	}()

	conn.SetReadLimit(maxMessageSize)
	for {
		var msg ClientMsg
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		var reply ServerMsg
		switch msg.Type {
		case MsgSubscribe:
			if msg.MatchID == "" {
				reply = ServerMsg{Type: MsgError, Error: "matchId is required"}
				break
			}
			h.subscribe(c, msg.MatchID)
			reply = ServerMsg{Type: MsgSubscribed, MatchID: msg.MatchID}
		case MsgUnsubscribe:
			h.unsubscribe(c, msg.MatchID)
			reply = ServerMsg{Type: MsgUnsubscribed, MatchID: msg.MatchID}
		case MsgPing:
			reply = ServerMsg{Type: MsgPong}
		default:
			reply = ServerMsg{Type: MsgError, Error: "unknown message type " + msg.Type}
		}
		if err := c.writeJSON(context.Background(), reply); err != nil {
			return
		}
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	metrics.UpdateWebsocketConnections(n)
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	for id, set := range h.subs {
		delete(set, c)
		if len(set) == 0 {
			delete(h.subs, id)
		}
	}
	n, subs := len(h.clients), h.subscriptionsLocked()
	h.mu.Unlock()
	metrics.UpdateWebsocketConnections(n)
	metrics.UpdateWebsocketSubscriptions(subs)
}

func (h *Hub) subscribe(c *client, matchID string) {
	h.mu.Lock()
	set, ok := h.subs[matchID]
	if !ok {
		set = make(map[*client]struct{})
		h.subs[matchID] = set
	}
	set[c] = struct{}{}
	subs := h.subscriptionsLocked()
	h.mu.Unlock()
	metrics.UpdateWebsocketSubscriptions(subs)
}

func (h *Hub) unsubscribe(c *client, matchID string) {
	h.mu.Lock()
	if set, ok := h.subs[matchID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.subs, matchID)
		}
	}
	subs := h.subscriptionsLocked()
	h.mu.Unlock()
	metrics.UpdateWebsocketSubscriptions(subs)
}

func (h *Hub) subscriptionsLocked() int {
	n := 0
	for _, set := range h.subs {
		n += len(set)
	}
	return n
}

// Publish implements Publisher by pushing the update to every viewer of
// the match. A viewer whose write fails is disconnected. Writes share ctx's
// deadline; viewers not reached when it expires are skipped and reported in
// the returned error.
func (h *Hub) Publish(ctx context.Context, update model.ScoreUpdate) error { //nolint:gocritic // hugeParam: updates travel by value
	h.mu.RLock()
	targets := make([]*client, 0, len(h.subs[update.MatchID]))
	for c := range h.subs[update.MatchID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()
	if len(targets) == 0 {
		return nil
	}

	b, err := json.Marshal(ServerMsg{Type: MsgUpdate, MatchID: update.MatchID, Update: &update})
	if err != nil {
		return err
	}
	pm, err := websocket.NewPreparedMessage(websocket.TextMessage, b)
	if err != nil {
		return err
	}
	skipped := 0
	for _, c := range targets {
		err := c.write(ctx, func(conn *websocket.Conn) error { return conn.WritePreparedMessage(pm) })
		switch {
		case err == nil:
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			skipped++
		default:
			h.logger.Debug(ctx, "dropping websocket viewer",
				logger.String("match_id", update.MatchID),
				logger.Error(err),
			)
			_ = c.conn.Close()
		}
	}
	if skipped > 0 {
		return fmt.Errorf("websocket publish %s: %d of %d viewers skipped: %w",
			update.MatchID, skipped, len(targets), ctx.Err())
	}
	return nil
}

// Subscribers returns the number of (viewer, match) subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.subscriptionsLocked()
}

// Connections returns the number of connected viewers.
func (h *Hub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every viewer.
func (h *Hub) Close() error {
	h.mu.RLock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()
	for _, c := range clients {
		_ = c.write(context.Background(), func(conn *websocket.Conn) error {
			return conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		})
		_ = c.conn.Close()
	}
	return nil
}
