package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dial(t *testing.T, srv *httptest.Server, fleetID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	header := http.Header{}
	if fleetID != "" {
		header.Set("X-Fleet-ID", fleetID)
	}
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHubFiltersByFleet(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(hub)
	defer srv.Close()

	all := dial(t, srv, "")
	north := dial(t, srv, "north")
	require.Eventually(t, func() bool { return hub.count() == 2 }, time.Second, 5*time.Millisecond)

	msgs := make(chan *redis.Message, 2)
	msgs <- &redis.Message{Channel: "fleet:south:telemetry", Payload: `{"vehicle_id":"v1"}`}
	msgs <- &redis.Message{Channel: "fleet:north:telemetry", Payload: `{"vehicle_id":"v2"}`}
	close(msgs)
	hub.Consume(context.Background(), msgs)

	all.SetReadDeadline(time.Now().Add(time.Second))
	_, first, err := all.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"vehicle_id":"v1"}`, string(first))
	_, second, err := all.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"vehicle_id":"v2"}`, string(second))

	north.SetReadDeadline(time.Now().Add(time.Second))
	_, got, err := north.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"vehicle_id":"v2"}`, string(got))
}

func TestHubUnregistersOnDisconnect(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dial(t, srv, "")
	require.Eventually(t, func() bool { return hub.count() == 1 }, time.Second, 5*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return hub.count() == 0 }, time.Second, 5*time.Millisecond)
}

func TestFleetFromChannel(t *testing.T) {
	assert.Equal(t, "north", fleetFromChannel("fleet:north:telemetry"))
	assert.Equal(t, "", fleetFromChannel("fleet:events"))
}
