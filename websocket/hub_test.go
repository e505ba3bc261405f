package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"houtveilig/models"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T, onMessage func(Inbound)) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub()
	hub.OnMessage = onMessage
	go hub.Run()

	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		NewClient(hub, conn)
	}))
	t.Cleanup(func() {
		srv.Close()
		hub.Stop()
	})
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		clients, _ := hub.GetStats()
		return clients == n
	}, 2*time.Second, 10*time.Millisecond)
}

func TestBroadcastReachesClients(t *testing.T) {
	hub, srv := startHub(t, nil)
	a := dial(t, srv)
	b := dial(t, srv)
	waitForClients(t, hub, 2)

	hub.Toast(models.NoticeWarning, "Photo removed")

	for _, conn := range []*websocket.Conn{a, b} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)

		var event struct {
			Type string        `json:"type"`
			Data models.Notice `json:"data"`
		}
		require.NoError(t, json.Unmarshal(data, &event))
		assert.Equal(t, models.EventToast, event.Type)
		assert.Equal(t, "Photo removed", event.Data.Message)
	}

	require.Eventually(t, func() bool {
		_, sent := hub.GetStats()
		return sent == 1
	}, time.Second, 10*time.Millisecond)
}

func TestInboundMessages(t *testing.T) {
	got := make(chan Inbound, 1)
	hub, srv := startHub(t, func(msg Inbound) { got <- msg })

	conn := dial(t, srv)
	waitForClients(t, hub, 1)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"location","data":{"latitude":52.1}}`)))

	select {
	case msg := <-got:
		assert.Equal(t, "location", msg.Type)
		assert.JSONEq(t, `{"latitude":52.1}`, string(msg.Data))
	case <-time.After(2 * time.Second):
		t.Fatal("inbound message not delivered")
	}
}

func TestClientDisconnectUnregisters(t *testing.T) {
	hub, srv := startHub(t, nil)
	conn := dial(t, srv)
	waitForClients(t, hub, 1)

	conn.Close()
	waitForClients(t, hub, 0)
}
