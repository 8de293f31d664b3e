package telemetry

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type frameStats struct {
	Frame     uint64 `json:"frame"`
	Particles int    `json:"particles"`
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitClients(t *testing.T, h *Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return h.Clients() == n }, 2*time.Second, 5*time.Millisecond)
}

func TestHub_BroadcastReachesClients(t *testing.T) {
	h := NewHub(nil)
	srv := httptest.NewServer(h)
	defer srv.Close()

	a := dial(t, srv)
	b := dial(t, srv)
	waitClients(t, h, 2)

	h.Broadcast(frameStats{Frame: 3, Particles: 128})

	for _, c := range []*websocket.Conn{a, b} {
		var got frameStats
		require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
		require.NoError(t, c.ReadJSON(&got))
		assert.Equal(t, frameStats{Frame: 3, Particles: 128}, got)
	}
}

func TestHub_LateClientGetsLastValue(t *testing.T) {
	h := NewHub(nil)
	srv := httptest.NewServer(h)
	defer srv.Close()

	h.Broadcast(frameStats{Frame: 9})

	c := dial(t, srv)
	var got frameStats
	require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, c.ReadJSON(&got))
	assert.Equal(t, uint64(9), got.Frame)
}

func TestHub_ForwardsClientMessages(t *testing.T) {
	h := NewHub(nil)
	got := make(chan map[string]any, 1)
	h.OnMessage = func(msg map[string]any) { got <- msg }
	srv := httptest.NewServer(h)
	defer srv.Close()

	c := dial(t, srv)
	require.NoError(t, c.WriteJSON(map[string]any{"resolution_scale": 0.5}))

	select {
	case msg := <-got:
		assert.Equal(t, 0.5, msg["resolution_scale"])
	case <-time.After(2 * time.Second):
		t.Fatal("message not forwarded")
	}
}

func TestHub_DisconnectRemovesClient(t *testing.T) {
	h := NewHub(nil)
	srv := httptest.NewServer(h)
	defer srv.Close()

	c := dial(t, srv)
	waitClients(t, h, 1)
	c.Close()
	waitClients(t, h, 0)
}

func TestHub_StalledClientDoesNotBlockBroadcast(t *testing.T) {
	h := NewHub(nil)
	srv := httptest.NewServer(h)
	defer srv.Close()

	dial(t, srv) // never reads
	waitClients(t, h, 1)

	payload := make([]byte, 1<<20)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 64; i++ {
			h.Broadcast(payload)
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast waited on a client that does not read")
	}
	waitClients(t, h, 0)
}
