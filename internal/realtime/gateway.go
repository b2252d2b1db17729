// Copyright 2025 James Ross

// Package realtime implements spec.md §4.8: a WebSocket gateway accepting
// long-lived bidirectional connections, authenticating bearer tokens,
// answering a small command set, and fanning out Event Bus traffic to
// subscribed/targeted connections.
package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/asyncforge/contentcore/internal/eventbus"
	"github.com/asyncforge/contentcore/internal/obs"
	"github.com/asyncforge/contentcore/internal/queuemanager"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Client→Server message types (spec.md §6).
const (
	cmdAuthenticate  = "authenticate"
	cmdSystemStatus  = "system_status"
	cmdHealthCheck   = "health_check"
	cmdActivityFeed  = "activity_feed"
	cmdSubscribe     = "subscribe"
	cmdUnsubscribe   = "unsubscribe"
	cmdAnalyticsPing = "analytics_ping"
)

// Server→Client message types (spec.md §6).
const (
	evtConnect                = "connect"
	evtAuthenticate           = "authenticate"
	evtSystemStatus           = "system_status"
	evtHealthCheck            = "health_check"
	evtActivityFeed           = "activity_feed"
	evtNotification           = "notification"
	evtAlert                  = "alert"
	evtSubscriptionConfirmed  = "subscription_confirmed"
	evtSubscriptionCancelled  = "subscription_cancelled"
	evtAnalyticsPong          = "analytics_pong"
	evtAnalyticsUpdate        = "analytics_update"
)

const analyticsChannel = "analytics"

// ClientMessage is a Client→Server frame.
type ClientMessage struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// ServerMessage is a Server→Client frame.
type ServerMessage struct {
	Type      string      `json:"type"`
	UserID    string      `json:"userId,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	ID        string      `json:"id,omitempty"`
}

func newServerMessage(typ string, data interface{}) ServerMessage {
	return ServerMessage{Type: typ, Data: data, Timestamp: time.Now().UTC()}
}

// SystemStatusProvider supplies the statistics snapshot sent on connect,
// on-demand system_status requests, and the periodic health broadcast.
type SystemStatusProvider interface {
	Stats(ctx context.Context) (queuemanager.Statistics, error)
}

// MetricsSnapshot is published every 30 seconds (spec.md §4.8 step 5).
type MetricsSnapshot struct {
	ActiveConnections int       `json:"activeConnections"`
	SnapshotAt        time.Time `json:"snapshotAt"`
}

const (
	heartbeatInterval   = 60 * time.Second
	staleActivityWindow = 5 * time.Minute
	metricsInterval     = 30 * time.Second
)

// Gateway is the Realtime Gateway server (spec.md §4.8).
type Gateway struct {
	upgrader       websocket.Upgrader
	authSecret     string
	allowedOrigins map[string]bool

	bus       *eventbus.Bus
	status    SystemStatusProvider
	auditLog  AuditLog
	log       *zap.Logger

	mu          sync.RWMutex
	connections map[*connection]struct{}

	metricsMu sync.RWMutex
	metrics   MetricsSnapshot
}

// Option wires non-core fields without crowding the constructor signature.
type Option func(*Gateway)

func WithAuditLog(l AuditLog) Option { return func(g *Gateway) { g.auditLog = l } }

func New(authSecret string, allowedOrigins []string, status SystemStatusProvider, bus *eventbus.Bus, log *zap.Logger, opts ...Option) *Gateway {
	originSet := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		originSet[o] = true
	}
	g := &Gateway{
		authSecret:     authSecret,
		allowedOrigins: originSet,
		bus:            bus,
		status:         status,
		auditLog:       NewMemoryAuditLog(),
		log:            log,
		connections:    make(map[*connection]struct{}),
	}
	g.upgrader = websocket.Upgrader{
		CheckOrigin: g.checkOrigin,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// checkOrigin implements spec.md §4.8's "origin check against a
// configurable allow-list; reject otherwise."
func (g *Gateway) checkOrigin(r *http.Request) bool {
	if len(g.allowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	return g.allowedOrigins[origin]
}

// ServeHTTP upgrades the request to a WebSocket connection and runs its
// lifecycle until the socket closes.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Warn("realtime: upgrade failed", zap.Error(err))
		return
	}
	conn := newConnection(ws)
	g.addConnection(conn)
	defer g.removeConnection(conn)

	go conn.writeLoop()

	conn.send(newServerMessage(evtConnect, nil))

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			return
		}
		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			conn.send(newServerMessage(evtAlert, "malformed message"))
			continue
		}
		conn.touch()
		g.handle(r.Context(), conn, msg)
	}
}

func (g *Gateway) addConnection(c *connection) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.connections[c] = struct{}{}
	obs.RealtimeConnections.Set(float64(len(g.connections)))
}

func (g *Gateway) removeConnection(c *connection) {
	g.mu.Lock()
	delete(g.connections, c)
	obs.RealtimeConnections.Set(float64(len(g.connections)))
	g.mu.Unlock()
	c.close()
}

func (g *Gateway) handle(ctx context.Context, c *connection, msg ClientMessage) {
	switch msg.Type {
	case cmdAuthenticate:
		g.handleAuthenticate(ctx, c, msg)
	case cmdSystemStatus:
		g.handleSystemStatus(ctx, c)
	case cmdHealthCheck:
		g.handleHealthCheck(ctx, c)
	case cmdActivityFeed:
		g.handleActivityFeed(c, msg)
	case cmdSubscribe:
		g.handleSubscribe(c, msg)
	case cmdUnsubscribe:
		g.handleUnsubscribe(c, msg)
	case cmdAnalyticsPing:
		g.handleAnalyticsPing(c, msg)
	default:
		c.send(newServerMessage(evtAlert, "unknown command: "+msg.Type))
	}
}

type authenticatePayload struct {
	Token string `json:"token"`
}

func (g *Gateway) handleAuthenticate(ctx context.Context, c *connection, msg ClientMessage) {
	var payload authenticatePayload
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		c.send(newServerMessage(evtAlert, "malformed authenticate payload"))
		return
	}
	claims, err := VerifyToken(payload.Token, g.authSecret)
	if err != nil {
		c.send(newServerMessage(evtAlert, "authentication failed: "+err.Error()))
		return
	}
	c.setUser(claims.Subject)
	c.send(ServerMessage{Type: evtAuthenticate, Data: map[string]bool{"success": true}, Timestamp: time.Now().UTC()})
	g.handleSystemStatus(ctx, c)
}

// handleSystemStatus answers system_status, an Authenticated command
// (spec.md §4.8 step 3): it exposes the full statistics snapshot, so it
// is gated behind isAuthenticated() the same way handleActivityFeed and
// handleSubscribe are.
func (g *Gateway) handleSystemStatus(ctx context.Context, c *connection) {
	if !c.isAuthenticated() {
		c.send(newServerMessage(evtAlert, "not authenticated"))
		return
	}
	g.sendSystemStatus(ctx, c, evtSystemStatus)
}

// handleHealthCheck answers health_check, reachable pre-auth (spec.md
// §4.8 step 3), with the same statistics payload as system_status.
func (g *Gateway) handleHealthCheck(ctx context.Context, c *connection) {
	g.sendSystemStatus(ctx, c, evtHealthCheck)
}

func (g *Gateway) sendSystemStatus(ctx context.Context, c *connection, evtType string) {
	if g.status == nil {
		c.send(newServerMessage(evtType, nil))
		return
	}
	stats, err := g.status.Stats(ctx)
	if err != nil {
		c.send(newServerMessage(evtAlert, "failed to load system status"))
		return
	}
	c.send(newServerMessage(evtType, stats))
}

type activityFeedPayload struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

func (g *Gateway) handleActivityFeed(c *connection, msg ClientMessage) {
	if !c.isAuthenticated() {
		c.send(newServerMessage(evtAlert, "not authenticated"))
		return
	}
	var payload activityFeedPayload
	_ = json.Unmarshal(msg.Data, &payload)
	if payload.Limit <= 0 {
		payload.Limit = 20
	}
	entries := g.auditLog.ListByUser(c.userID(), payload.Limit, payload.Offset)
	c.send(newServerMessage(evtActivityFeed, entries))
}

type channelPayload struct {
	Channel string `json:"channel"`
}

func (g *Gateway) handleSubscribe(c *connection, msg ClientMessage) {
	if !c.isAuthenticated() {
		c.send(newServerMessage(evtAlert, "not authenticated"))
		return
	}
	var payload channelPayload
	if err := json.Unmarshal(msg.Data, &payload); err != nil || payload.Channel == "" {
		c.send(newServerMessage(evtAlert, "malformed subscribe payload"))
		return
	}
	c.subscribe(payload.Channel)
	c.send(newServerMessage(evtSubscriptionConfirmed, payload.Channel))
}

func (g *Gateway) handleUnsubscribe(c *connection, msg ClientMessage) {
	var payload channelPayload
	if err := json.Unmarshal(msg.Data, &payload); err != nil || payload.Channel == "" {
		c.send(newServerMessage(evtAlert, "malformed unsubscribe payload"))
		return
	}
	c.unsubscribe(payload.Channel)
	c.send(newServerMessage(evtSubscriptionCancelled, payload.Channel))
}

type analyticsPingPayload struct {
	Activity string `json:"activity"`
}

func (g *Gateway) handleAnalyticsPing(c *connection, msg ClientMessage) {
	if !c.isAuthenticated() {
		c.send(newServerMessage(evtAlert, "not authenticated"))
		return
	}
	var payload analyticsPingPayload
	_ = json.Unmarshal(msg.Data, &payload)
	g.auditLog.Record(c.userID(), "analytics:"+payload.Activity, nil)
	c.send(newServerMessage(evtAnalyticsPong, payload.Activity))
}

// RunHeartbeat pings stale connections and drops unwritable ones every 60
// seconds (spec.md §4.8 step 4), blocking until ctx is cancelled.
func (g *Gateway) RunHeartbeat(ctx context.Context) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.heartbeatOnce()
		}
	}
}

func (g *Gateway) heartbeatOnce() {
	cutoff := time.Now().Add(-staleActivityWindow)
	g.mu.RLock()
	conns := make([]*connection, 0, len(g.connections))
	for c := range g.connections {
		conns = append(conns, c)
	}
	g.mu.RUnlock()

	for _, c := range conns {
		if c.lastActivityBefore(cutoff) {
			if err := c.ping(); err != nil {
				g.removeConnection(c)
			}
		}
	}
}

// RunMetricsSnapshot publishes an active-connection snapshot every 30
// seconds (spec.md §4.8 step 5), blocking until ctx is cancelled.
func (g *Gateway) RunMetricsSnapshot(ctx context.Context) {
	ticker := time.NewTicker(metricsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.metricsMu.Lock()
			g.mu.RLock()
			g.metrics = MetricsSnapshot{ActiveConnections: len(g.connections), SnapshotAt: time.Now().UTC()}
			g.mu.RUnlock()
			g.metricsMu.Unlock()
		}
	}
}

// Metrics returns the most recent metrics snapshot.
func (g *Gateway) Metrics() MetricsSnapshot {
	g.metricsMu.RLock()
	defer g.metricsMu.RUnlock()
	return g.metrics
}

// RunFanOut consumes Event Bus events and delivers them to the appropriate
// connections (spec.md §4.8 step 6), blocking until ctx is cancelled.
func (g *Gateway) RunFanOut(ctx context.Context) {
	sub := g.bus.Subscribe()
	defer sub.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			g.deliver(ev)
		}
	}
}

func (g *Gateway) deliver(ev eventbus.Event) {
	msg := ServerMessage{Type: string(ev.Kind), UserID: ev.TargetUser, Data: ev.Data, Timestamp: ev.Timestamp}

	g.mu.RLock()
	defer g.mu.RUnlock()
	for c := range g.connections {
		if !c.isAuthenticated() {
			continue
		}
		if ev.TargetUser != "" {
			if c.userID() == ev.TargetUser {
				c.send(msg)
			}
			continue
		}
		if ev.Kind == eventbus.KindAnalyticsEvent {
			if c.isSubscribed(analyticsChannel) {
				c.send(msg)
			}
			continue
		}
		c.send(msg)
	}
}
