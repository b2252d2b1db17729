// Copyright 2025 James Ross
package realtime

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/asyncforge/contentcore/internal/eventbus"
	"github.com/asyncforge/contentcore/internal/queuemanager"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeStatusProvider struct{}

func (fakeStatusProvider) Stats(_ context.Context) (queuemanager.Statistics, error) {
	return queuemanager.Statistics{}, nil
}

func startTestGateway(t *testing.T) (*Gateway, string) {
	t.Helper()
	bus := eventbus.New(zap.NewNop())
	gw := New("test-secret", nil, fakeStatusProvider{}, bus, zap.NewNop())
	srv := httptest.NewServer(gw)
	t.Cleanup(srv.Close)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	return gw, wsURL
}

func TestGatewaySendsConnectOnOpen(t *testing.T) {
	_, url := startTestGateway(t)
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer ws.Close()

	var msg ServerMessage
	require.NoError(t, ws.ReadJSON(&msg))
	require.Equal(t, evtConnect, msg.Type)
}

func TestGatewayAuthenticateThenSubscribe(t *testing.T) {
	_, url := startTestGateway(t)
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer ws.Close()

	var connectMsg ServerMessage
	require.NoError(t, ws.ReadJSON(&connectMsg))

	token := signToken(t, Claims{Subject: "user-1", ExpiresAt: time.Now().Add(time.Hour).Unix()}, "test-secret")
	require.NoError(t, ws.WriteJSON(ClientMessage{Type: cmdAuthenticate, Data: []byte(`{"token":"` + token + `"}`)}))

	var authMsg ServerMessage
	require.NoError(t, ws.ReadJSON(&authMsg))
	require.Equal(t, evtAuthenticate, authMsg.Type)

	var statusMsg ServerMessage
	require.NoError(t, ws.ReadJSON(&statusMsg))
	require.Equal(t, evtSystemStatus, statusMsg.Type)

	require.NoError(t, ws.WriteJSON(ClientMessage{Type: cmdSubscribe, Data: []byte(`{"channel":"analytics"}`)}))
	var subMsg ServerMessage
	require.NoError(t, ws.ReadJSON(&subMsg))
	require.Equal(t, evtSubscriptionConfirmed, subMsg.Type)
}

func TestGatewayRejectsUnauthenticatedSubscribe(t *testing.T) {
	_, url := startTestGateway(t)
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer ws.Close()

	var connectMsg ServerMessage
	require.NoError(t, ws.ReadJSON(&connectMsg))

	require.NoError(t, ws.WriteJSON(ClientMessage{Type: cmdSubscribe, Data: []byte(`{"channel":"analytics"}`)}))
	var alertMsg ServerMessage
	require.NoError(t, ws.ReadJSON(&alertMsg))
	require.Equal(t, evtAlert, alertMsg.Type)
}

func TestGatewayRejectsUnauthenticatedSystemStatus(t *testing.T) {
	_, url := startTestGateway(t)
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer ws.Close()

	var connectMsg ServerMessage
	require.NoError(t, ws.ReadJSON(&connectMsg))

	require.NoError(t, ws.WriteJSON(ClientMessage{Type: cmdSystemStatus}))
	var alertMsg ServerMessage
	require.NoError(t, ws.ReadJSON(&alertMsg))
	require.Equal(t, evtAlert, alertMsg.Type)
}

func TestGatewayAllowsUnauthenticatedHealthCheck(t *testing.T) {
	_, url := startTestGateway(t)
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer ws.Close()

	var connectMsg ServerMessage
	require.NoError(t, ws.ReadJSON(&connectMsg))

	require.NoError(t, ws.WriteJSON(ClientMessage{Type: cmdHealthCheck}))
	var healthMsg ServerMessage
	require.NoError(t, ws.ReadJSON(&healthMsg))
	require.Equal(t, evtHealthCheck, healthMsg.Type)
}
