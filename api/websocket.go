package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	wsWriteTimeout    = 10 * time.Second
	wsPongTimeout     = 60 * time.Second
	wsPingInterval    = 45 * time.Second
	wsMaxRequestBytes = 4096
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The CORS middleware already restricts the HTTP side to localhost
	// origins; the upgrade itself accepts whatever got that far.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsRequest is the only message a stream client sends: pick (or drop) a
// subscription. An empty sessionId follows every session; an empty events
// list follows every event type.
type wsRequest struct {
	Action    string   `json:"action"` // "subscribe" or "unsubscribe"
	SessionID string   `json:"sessionId"`
	Events    []string `json:"events"`
}

// wsClient ties one WebSocket connection to at most one broadcaster
// subscription. Writes are serialized through writeMu because gorilla
// allows a single concurrent writer; the forwarder and the ping loop both
// go through it.
type wsClient struct {
	conn        *websocket.Conn
	broadcaster *Broadcaster

	writeMu sync.Mutex

	mu  sync.Mutex
	sub *Subscription

	done      chan struct{}
	closeOnce sync.Once
}

// handleWebSocket handles GET /api/v1/ws: upgrade, then serve the
// subscription protocol until the peer goes away.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		debugLog("WebSocket upgrade failed: %v", err)
		return
	}

	client := &wsClient{
		conn:        conn,
		broadcaster: s.broadcaster,
		done:        make(chan struct{}),
	}

	go client.pingLoop()
	client.readLoop()
}

// readLoop consumes subscribe/unsubscribe requests until the connection
// drops, then tears the client down.
func (c *wsClient) readLoop() {
	defer c.close()

	c.conn.SetReadLimit(wsMaxRequestBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				debugLog("WebSocket read: %v", err)
			}
			return
		}

		var req wsRequest
		if err := json.Unmarshal(message, &req); err != nil {
			debugLog("WebSocket bad request: %v", err)
			continue
		}

		switch req.Action {
		case "subscribe":
			c.resubscribe(req.SessionID, req.Events)
		case "unsubscribe":
			c.dropSubscription()
		}
	}
}

// resubscribe replaces the client's subscription and acknowledges it, so
// the peer knows from which point events are flowing.
func (c *wsClient) resubscribe(sessionID string, events []string) {
	eventTypes := make([]EventType, 0, len(events))
	for _, e := range events {
		eventTypes = append(eventTypes, EventType(e))
	}

	c.mu.Lock()
	if c.sub != nil {
		c.broadcaster.Unsubscribe(c.sub)
	}
	sub := c.broadcaster.Subscribe(sessionID, eventTypes)
	c.sub = sub
	c.mu.Unlock()

	go c.forward(sub)

	c.writeJSON(map[string]string{"type": "ack", "sessionId": sessionID})
}

func (c *wsClient) dropSubscription() {
	c.mu.Lock()
	if c.sub != nil {
		c.broadcaster.Unsubscribe(c.sub)
		c.sub = nil
	}
	c.mu.Unlock()
}

// forward drains one subscription onto the wire. It ends when the
// subscription's channel closes, either through resubscribe/unsubscribe or
// broadcaster shutdown.
func (c *wsClient) forward(sub *Subscription) {
	for event := range sub.Channel {
		if !c.writeJSON(event) {
			return
		}
	}
}

// pingLoop keeps the connection's read deadline alive.
func (c *wsClient) pingLoop() {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.writeMu.Lock()
			err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout))
			c.writeMu.Unlock()
			if err != nil {
				c.close()
				return
			}
		case <-c.done:
			return
		}
	}
}

// writeJSON sends one frame; false means the connection is dead.
func (c *wsClient) writeJSON(v interface{}) bool {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := c.conn.WriteJSON(v); err != nil {
		debugLog("WebSocket write: %v", err)
		return false
	}
	return true
}

func (c *wsClient) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.dropSubscription()
		_ = c.conn.Close()
	})
}
