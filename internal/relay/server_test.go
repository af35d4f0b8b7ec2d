package relay

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lordi898/NeuroLinkProtocolGODONLINE/internal/session"
)

func TestNewRoomCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		code := newRoomCode()
		require.Len(t, code, 6)
		for _, ch := range code {
			assert.Contains(t, codeAlphabet, string(ch))
		}
		seen[code] = true
	}
	// collisions across 50 draws from a 32^6 space would be astonishing
	assert.Greater(t, len(seen), 45)
}

type memoryPersistence struct {
	mu    sync.Mutex
	snaps map[string]RoomSnapshot
}

func newMemoryPersistence() *memoryPersistence {
	return &memoryPersistence{snaps: make(map[string]RoomSnapshot)}
}

func (m *memoryPersistence) Save(_ context.Context, code string, snap RoomSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snaps[code] = snap
	return nil
}

func (m *memoryPersistence) Load(_ context.Context, code string) (RoomSnapshot, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.snaps[code]
	return snap, ok, nil
}

func (m *memoryPersistence) Delete(_ context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.snaps, code)
	return nil
}

type testPeer struct {
	client   *Client
	playerID string

	mu   sync.Mutex
	envs []session.Envelope
}

func (p *testPeer) received() []session.Envelope {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]session.Envelope, len(p.envs))
	copy(out, p.envs)
	return out
}

func (p *testPeer) firstOfType(t session.MessageType) (session.Envelope, bool) {
	for _, env := range p.received() {
		if env.Type == t {
			return env, true
		}
	}
	return session.Envelope{}, false
}

func newRelayTestServer(t *testing.T, persist RoomPersistence) *httptest.Server {
	t.Helper()
	srv := NewServer(Config{PublicURL: "http://example.test"}, persist, nil)
	mux := http.NewServeMux()
	srv.RegisterRoutes(mux)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func dialPeer(t *testing.T, ts *httptest.Server, roomCode, playerID, name string) *testPeer {
	t.Helper()
	peer := &testPeer{client: NewClient(ts.URL), playerID: playerID}
	peer.client.OnEnvelope = func(env session.Envelope) {
		peer.mu.Lock()
		peer.envs = append(peer.envs, env)
		peer.mu.Unlock()
	}
	require.NoError(t, peer.client.Dial(context.Background(), roomCode, playerID, name))
	t.Cleanup(func() { _ = peer.client.Close() })
	return peer
}

func TestRelayRoomLifecycle(t *testing.T) {
	ts := newRelayTestServer(t, nil)

	host := NewClient(ts.URL)
	created, err := host.CreateRoom(context.Background())
	require.NoError(t, err)
	require.Len(t, created.RoomCode, 6)
	require.NotEmpty(t, created.PlayerID)

	joined, err := NewClient(ts.URL).JoinRoom(context.Background(), created.RoomCode)
	require.NoError(t, err)
	assert.Equal(t, created.PlayerID, joined.HostID)
	assert.NotEqual(t, created.PlayerID, joined.PlayerID)

	_, err = NewClient(ts.URL).JoinRoom(context.Background(), "ZZZZZZ")
	assert.Error(t, err)
}

func TestRelayBroadcastAndTargeted(t *testing.T) {
	ts := newRelayTestServer(t, nil)

	bootstrap := NewClient(ts.URL)
	created, err := bootstrap.CreateRoom(context.Background())
	require.NoError(t, err)

	hostPeer := dialPeer(t, ts, created.RoomCode, created.PlayerID, "HOST")

	joined, err := NewClient(ts.URL).JoinRoom(context.Background(), created.RoomCode)
	require.NoError(t, err)
	guest := dialPeer(t, ts, created.RoomCode, joined.PlayerID, "GUEST")

	// the relay announces the guest to everyone already attached
	require.Eventually(t, func() bool {
		_, ok := hostPeer.firstOfType(session.MsgPlayerJoin)
		return ok
	}, 2*time.Second, 20*time.Millisecond)

	// broadcast from the guest reaches the host, not the guest itself
	env := session.NewEnvelope(session.MsgChatMessage, joined.PlayerID, session.ChatMessagePayload{
		Message: session.ChatMessage{ID: "m1", SenderID: joined.PlayerID, SenderName: "GUEST", Text: "HELLO"},
	})
	require.NoError(t, guest.client.Broadcast(env))

	require.Eventually(t, func() bool {
		got, ok := hostPeer.firstOfType(session.MsgChatMessage)
		return ok && got.SenderID == joined.PlayerID
	}, 2*time.Second, 20*time.Millisecond)

	for _, got := range guest.received() {
		assert.NotEqual(t, session.MsgChatMessage, got.Type, "sender must not receive its own broadcast")
	}

	// targeted send reaches only the addressee
	env = session.NewEnvelope(session.MsgSyncState, created.PlayerID, session.SyncStatePayload{})
	require.NoError(t, hostPeer.client.SendTo(joined.PlayerID, env))

	require.Eventually(t, func() bool {
		_, ok := guest.firstOfType(session.MsgSyncState)
		return ok
	}, 2*time.Second, 20*time.Millisecond)
}

func TestRelayStampsSenderID(t *testing.T) {
	ts := newRelayTestServer(t, nil)

	bootstrap := NewClient(ts.URL)
	created, err := bootstrap.CreateRoom(context.Background())
	require.NoError(t, err)
	hostPeer := dialPeer(t, ts, created.RoomCode, created.PlayerID, "HOST")

	joined, err := NewClient(ts.URL).JoinRoom(context.Background(), created.RoomCode)
	require.NoError(t, err)
	guest := dialPeer(t, ts, created.RoomCode, joined.PlayerID, "GUEST")

	// guest claims to be the host; the relay overwrites the sender
	env := session.NewEnvelope(session.MsgChatMessage, created.PlayerID, session.ChatMessagePayload{
		Message: session.ChatMessage{ID: "m1", SenderID: created.PlayerID, SenderName: "HOST", Text: "SPOOF"},
	})
	require.NoError(t, guest.client.Broadcast(env))

	require.Eventually(t, func() bool {
		got, ok := hostPeer.firstOfType(session.MsgChatMessage)
		return ok && got.SenderID == joined.PlayerID
	}, 2*time.Second, 20*time.Millisecond)
}

func TestRelayRestoresRoomFromPersistence(t *testing.T) {
	persist := newMemoryPersistence()

	srv := NewServer(Config{PublicURL: "http://example.test"}, persist, nil)
	mux := http.NewServeMux()
	srv.RegisterRoutes(mux)
	ts := httptest.NewServer(mux)

	created, err := NewClient(ts.URL).CreateRoom(context.Background())
	require.NoError(t, err)
	joined, err := NewClient(ts.URL).JoinRoom(context.Background(), created.RoomCode)
	require.NoError(t, err)

	// minting alone persists a snapshot with both ids
	snap, ok, err := persist.Load(context.Background(), created.RoomCode)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, snap.Minted, created.PlayerID)
	assert.Contains(t, snap.Minted, joined.PlayerID)
	ts.Close()

	// a fresh relay with the same persistence still knows the room
	fresh := NewServer(Config{PublicURL: "http://example.test"}, persist, nil)
	mux2 := http.NewServeMux()
	fresh.RegisterRoutes(mux2)
	ts2 := httptest.NewServer(mux2)
	defer ts2.Close()

	again, err := NewClient(ts2.URL).JoinRoom(context.Background(), created.RoomCode)
	require.NoError(t, err)
	assert.Equal(t, created.PlayerID, again.HostID)
}

func TestRoomQREndpoint(t *testing.T) {
	ts := newRelayTestServer(t, nil)

	created, err := NewClient(ts.URL).CreateRoom(context.Background())
	require.NoError(t, err)

	resp, err := http.Get(ts.URL + "/api/rooms/" + created.RoomCode + "/qr")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))

	resp, err = http.Get(ts.URL + "/api/rooms/ZZZZZZ/qr")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
