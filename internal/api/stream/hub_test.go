package stream

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aodgrid/internal/pipeline"
	"github.com/wonny/aodgrid/pkg/logger"
)

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.Clients() == n }, 2*time.Second, 5*time.Millisecond)
}

func TestHub_BroadcastsEvents(t *testing.T) {
	hub := NewHub(logger.Nop())
	srv := httptest.NewServer(hub)
	defer srv.Close()

	a := dial(t, srv)
	b := dial(t, srv)
	waitClients(t, hub, 2)

	hub.Publish(pipeline.Event{
		Type:    pipeline.EventFileDone,
		Date:    "20240101",
		Product: "DB",
		Source:  "AERDB_L2_VIIRS_SNPP.A2024001.0000.002.nc",
		Done:    1,
		Total:   3,
	})

	for _, conn := range []*websocket.Conn{a, b} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, msg, err := conn.ReadMessage()
		require.NoError(t, err)

		var got pipeline.Event
		require.NoError(t, json.Unmarshal(msg, &got))
		assert.Equal(t, pipeline.EventFileDone, got.Type)
		assert.Equal(t, "DB", got.Product)
		assert.Equal(t, 3, got.Total)
	}
}

func TestHub_ClientDisconnect(t *testing.T) {
	hub := NewHub(logger.Nop())
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dial(t, srv)
	waitClients(t, hub, 1)

	conn.Close()
	waitClients(t, hub, 0)

	// publishing with no clients is a no-op
	hub.Publish(pipeline.Event{Type: pipeline.EventDayDone})
}

func TestHub_Close(t *testing.T) {
	hub := NewHub(logger.Nop())
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dial(t, srv)
	waitClients(t, hub, 1)

	hub.Close()
	assert.Equal(t, 0, hub.Clients())

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
}

func TestHub_RejectsPlainHTTP(t *testing.T) {
	hub := NewHub(logger.Nop())
	rec := httptest.NewRecorder()
	hub.ServeHTTP(rec, httptest.NewRequest("GET", "/api/stream", nil))

	assert.Equal(t, 400, rec.Code)
	assert.Equal(t, 0, hub.Clients())
}
