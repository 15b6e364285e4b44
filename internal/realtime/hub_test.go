package realtime

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wsPair upgrades a loopback connection and hands back both ends so the
// hub can hold the server side while the test reads the client side.
func wsPair(t *testing.T) (server *Conn, client *websocket.Conn) {
	t.Helper()

	up := websocket.Upgrader{}
	serverCh := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := up.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		serverCh <- ws
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	select {
	case ws := <-serverCh:
		server = NewConn(ws)
	case <-time.After(2 * time.Second):
		t.Fatal("server side of websocket never arrived")
	}
	t.Cleanup(func() { server.Close() })
	return server, client
}

func readEnvelope(t *testing.T, ws *websocket.Conn) Envelope {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, payload, err := ws.ReadMessage()
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(payload, &env))
	return env
}

func TestEmitReachesRoomMembers(t *testing.T) {
	hub := NewHub()
	server, client := wsPair(t)

	hub.Join(UserRoom("u1"), server, "u1", "Ana")

	sent := hub.Emit(UserRoom("u1"), EventNewNotification, map[string]string{"message": "hola"})
	assert.Equal(t, 1, sent)

	env := readEnvelope(t, client)
	assert.Equal(t, EventNewNotification, env.Event)
	data, ok := env.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "hola", data["message"])
}

func TestEmitToEmptyRoom(t *testing.T) {
	hub := NewHub()
	assert.Zero(t, hub.Emit(UserRoom("nobody"), EventNewNotification, nil))
}

func TestLeaveStopsDelivery(t *testing.T) {
	hub := NewHub()
	server, _ := wsPair(t)

	hub.Join(ChatRoom("general"), server, "u1", "Ana")
	hub.Leave(ChatRoom("general"), server)

	assert.Zero(t, hub.Emit(ChatRoom("general"), EventNewMessage, nil))
	// empty rooms are garbage collected
	assert.Zero(t, hub.Stats().Rooms)
}

func TestLeaveAllClearsEveryRoom(t *testing.T) {
	hub := NewHub()
	server, _ := wsPair(t)

	hub.Join(UserRoom("u1"), server, "u1", "Ana")
	hub.Join(AdminRoom, server, "u1", "Ana")
	hub.Join(ChatRoom("general"), server, "u1", "Ana")
	require.Equal(t, Stats{Rooms: 3, Connections: 1}, hub.Stats())

	hub.LeaveAll(server)
	assert.Equal(t, Stats{}, hub.Stats())
}

func TestMemberIdentity(t *testing.T) {
	hub := NewHub()
	server, _ := wsPair(t)

	hub.Join(ChatRoom("general"), server, "u1", "Ana")
	userID, name := hub.Member(ChatRoom("general"), server)
	assert.Equal(t, "u1", userID)
	assert.Equal(t, "Ana", name)

	userID, name = hub.Member(ChatRoom("other"), server)
	assert.Empty(t, userID)
	assert.Empty(t, name)
}

func TestEmitDropsDeadConnections(t *testing.T) {
	hub := NewHub()
	serverA, clientA := wsPair(t)
	serverB, _ := wsPair(t)

	hub.Join(ChatRoom("general"), serverA, "u1", "Ana")
	hub.Join(ChatRoom("general"), serverB, "u2", "Luis")

	// kill one underlying connection; the next emit should shed it
	require.NoError(t, serverB.Close())

	sent := hub.Emit(ChatRoom("general"), EventNewMessage, map[string]string{"text": "hola"})
	assert.Equal(t, 1, sent)

	env := readEnvelope(t, clientA)
	assert.Equal(t, EventNewMessage, env.Event)
	assert.Equal(t, Stats{Rooms: 1, Connections: 2}, hub.Stats())

	// the dead peer is gone from the room itself
	userID, _ := hub.Member(ChatRoom("general"), serverB)
	assert.Empty(t, userID)
}

// Broadcasts and direct replies hit the same connection from different
// goroutines; the per-connection write lock must serialize them. Run
// with -race to catch any regression in that serialization.
func TestConcurrentEmitAndDirectWrites(t *testing.T) {
	hub := NewHub()
	server, client := wsPair(t)
	hub.Join(UserRoom("u1"), server, "u1", "Ana")

	const writesPerSide = 50
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for i := 0; i < writesPerSide*2; i++ {
			_ = client.SetReadDeadline(time.Now().Add(2 * time.Second))
			if _, _, err := client.ReadMessage(); err != nil {
				return
			}
		}
	}()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < writesPerSide; i++ {
			hub.Emit(UserRoom("u1"), EventNewNotification, map[string]string{"message": "hola"})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < writesPerSide; i++ {
			require.NoError(t, server.WriteJSON(Envelope{Event: EventNewMessage, Data: map[string]string{"text": "hola"}}))
		}
	}()
	wg.Wait()

	select {
	case <-drained:
	case <-time.After(5 * time.Second):
		t.Fatal("client never received all frames")
	}
	assert.Equal(t, Stats{Rooms: 1, Connections: 1}, hub.Stats())
}
