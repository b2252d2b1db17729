// Copyright 2025 James Ross
package realtime

import (
	"sync"
	"time"

	"github.com/asyncforge/contentcore/internal/obs"
	"github.com/gorilla/websocket"
)

const sendBuffer = 64

// connection wraps one WebSocket socket with its own reader/writer
// ownership (spec.md §5 "Realtime Gateway connections are each owned by
// one reader task and one writer task").
type connection struct {
	ws *websocket.Conn

	mu            sync.RWMutex
	user          string
	authenticated bool
	subscriptions map[string]bool
	lastActivity  time.Time

	outbox chan ServerMessage
	done   chan struct{}
	once   sync.Once
}

func newConnection(ws *websocket.Conn) *connection {
	return &connection{
		ws:            ws,
		subscriptions: make(map[string]bool),
		lastActivity:  time.Now(),
		outbox:        make(chan ServerMessage, sendBuffer),
		done:          make(chan struct{}),
	}
}

// writeLoop is the connection's sole writer task; every outbound frame
// flows through the outbox channel so only this goroutine touches the
// socket for writes.
func (c *connection) writeLoop() {
	for {
		select {
		case msg, ok := <-c.outbox:
			if !ok {
				return
			}
			if err := c.ws.WriteJSON(msg); err != nil {
				return
			}
			obs.RealtimeMessagesSent.Inc()
		case <-c.done:
			return
		}
	}
}

func (c *connection) send(msg ServerMessage) {
	select {
	case c.outbox <- msg:
	default:
		// Slow reader: drop rather than block the fan-out loop.
	}
}

func (c *connection) ping() error {
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
}

func (c *connection) close() {
	c.once.Do(func() {
		close(c.done)
		close(c.outbox)
		c.ws.Close()
	})
}

func (c *connection) setUser(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.user = userID
	c.authenticated = true
}

func (c *connection) userID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.user
}

func (c *connection) isAuthenticated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.authenticated
}

func (c *connection) touch() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastActivity = time.Now()
}

func (c *connection) lastActivityBefore(cutoff time.Time) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastActivity.Before(cutoff)
}

func (c *connection) subscribe(channel string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscriptions[channel] = true
}

func (c *connection) unsubscribe(channel string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.subscriptions, channel)
}

func (c *connection) isSubscribed(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.subscriptions[channel]
}
