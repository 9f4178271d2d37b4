package hub

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EliasMarine/bourbon-buddy-sub002/domain"
)

type mockConn struct {
	id       string
	received [][]byte
	closed   bool
	mu       sync.Mutex
	sendErr  error
}

func (m *mockConn) ID() string { return m.id }

func (m *mockConn) Send(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	m.received = append(m.received, data)
	return nil
}

func (m *mockConn) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockConn) getReceived() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.received
}

func join(t *testing.T, h *Hub, conn *mockConn, sessionID string) int {
	t.Helper()
	h.Register(conn)
	count, _, err := h.Join(conn, sessionID, conn.id, false)
	require.NoError(t, err)
	return count
}

func TestHub_JoinCountsViewers(t *testing.T) {
	h := New()

	assert.Equal(t, 1, join(t, h, &mockConn{id: "c1"}, "tasting-1"))
	assert.Equal(t, 2, join(t, h, &mockConn{id: "c2"}, "tasting-1"))
	assert.Equal(t, 1, join(t, h, &mockConn{id: "c3"}, "tasting-2"))
	assert.Equal(t, 2, h.ViewerCount("tasting-1"))
	assert.Equal(t, 1, h.ViewerCount("tasting-2"))
}

func TestHub_JoinValidation(t *testing.T) {
	tests := []struct {
		name      string
		sessionID string
		wantCode  domain.ErrorCode
	}{
		{name: "empty id", sessionID: "", wantCode: domain.CodeMalformed},
		{name: "oversized id", sessionID: strings.Repeat("x", 129), wantCode: domain.CodeMalformed},
		{name: "control characters", sessionID: "tasting\x001", wantCode: domain.CodeMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New()
			conn := &mockConn{id: "c1"}
			h.Register(conn)

			_, _, err := h.Join(conn, tt.sessionID, "alice", false)

			require.Error(t, err)
			assert.Equal(t, tt.wantCode, domain.CodeOf(err))
		})
	}
}

func TestHub_SecondJoinDeclined(t *testing.T) {
	h := New()
	conn := &mockConn{id: "c1"}
	join(t, h, conn, "tasting-1")

	_, _, err := h.Join(conn, "tasting-2", "alice", false)

	require.Error(t, err)
	assert.Equal(t, domain.CodeDeclined, domain.CodeOf(err))
	assert.Equal(t, 1, h.ViewerCount("tasting-1"))
	assert.Equal(t, 0, h.ViewerCount("tasting-2"))
}

func TestHub_LeaveDestroysEmptySession(t *testing.T) {
	h := New()
	c1 := &mockConn{id: "c1"}
	c2 := &mockConn{id: "c2"}
	join(t, h, c1, "tasting-1")
	join(t, h, c2, "tasting-1")
	_, err := h.PostChat("tasting-1", "c1", "alice", "cheers")
	require.NoError(t, err)

	info, ok := h.Leave("c1")
	require.True(t, ok)
	assert.Equal(t, 1, info.Viewers)
	assert.False(t, info.Emptied)

	info, ok = h.Leave("c2")
	require.True(t, ok)
	assert.True(t, info.Emptied)
	assert.Equal(t, "tasting-1", info.SessionID)

	// a fresh join to the same id starts with no history
	c3 := &mockConn{id: "c3"}
	h.Register(c3)
	count, history, err := h.Join(c3, "tasting-1", "carol", false)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Empty(t, history)
}

func TestHub_LeaveUnknownConnection(t *testing.T) {
	h := New()

	_, ok := h.Leave("ghost")

	assert.False(t, ok)
}

func TestHub_LeaveBeforeJoin(t *testing.T) {
	h := New()
	conn := &mockConn{id: "c1"}
	h.Register(conn)

	_, ok := h.Leave("c1")

	assert.False(t, ok)
	_, found := h.Member("c1")
	assert.False(t, found)
}

func TestHub_ChatReplayOnJoin(t *testing.T) {
	h := New()
	c1 := &mockConn{id: "c1"}
	join(t, h, c1, "tasting-1")
	_, err := h.PostChat("tasting-1", "c1", "alice", "first")
	require.NoError(t, err)
	_, err = h.PostChat("tasting-1", "c1", "alice", "second")
	require.NoError(t, err)

	c2 := &mockConn{id: "c2"}
	h.Register(c2)
	_, history, err := h.Join(c2, "tasting-1", "bob", false)

	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "first", history[0].Text)
	assert.Equal(t, "second", history[1].Text)
}

func TestHub_BroadcastIncludesSender(t *testing.T) {
	h := New()
	c1 := &mockConn{id: "c1"}
	c2 := &mockConn{id: "c2"}
	c3 := &mockConn{id: "c3"}
	join(t, h, c1, "tasting-1")
	join(t, h, c2, "tasting-1")
	join(t, h, c3, "tasting-2")

	h.Broadcast("tasting-1", []byte("hello"))

	assert.Len(t, c1.getReceived(), 1)
	assert.Len(t, c2.getReceived(), 1)
	assert.Empty(t, c3.getReceived(), "no cross-session broadcast")
}

func TestHub_BroadcastClosesFailedConnections(t *testing.T) {
	h := New()
	c1 := &mockConn{id: "c1"}
	c2 := &mockConn{id: "c2", sendErr: assert.AnError}
	join(t, h, c1, "tasting-1")
	join(t, h, c2, "tasting-1")

	h.Broadcast("tasting-1", []byte("hello"))

	assert.Len(t, c1.getReceived(), 1)
	assert.True(t, c2.closed)
}

func TestHub_SendTo(t *testing.T) {
	h := New()
	c1 := &mockConn{id: "c1"}
	h.Register(c1)

	require.NoError(t, h.SendTo("c1", []byte("direct")))
	assert.Len(t, c1.getReceived(), 1)

	err := h.SendTo("ghost", []byte("direct"))
	require.Error(t, err)
	assert.Equal(t, domain.CodeNotFound, domain.CodeOf(err))
}

func TestHub_Credential(t *testing.T) {
	h := New()
	conn := &mockConn{id: "c1"}
	h.Register(conn)
	_, _, err := h.Join(conn, "tasting-1", "alice", true)
	require.NoError(t, err)

	h.SetCredential("c1", "token-1")

	m, ok := h.Member("c1")
	require.True(t, ok)
	assert.Equal(t, "tasting-1", m.SessionID)
	assert.True(t, m.HostClaim)
	assert.Equal(t, "token-1", m.Credential)
}

func TestHub_Stats(t *testing.T) {
	h := New()
	assert.Equal(t, 0, h.ViewerCount("tasting-1"))

	join(t, h, &mockConn{id: "c1"}, "tasting-1")
	join(t, h, &mockConn{id: "c2"}, "tasting-1")
	join(t, h, &mockConn{id: "c3"}, "tasting-2")
	h.Register(&mockConn{id: "lobby"}) // connected, not joined

	sessions, connections := h.Stats()
	assert.Equal(t, 2, sessions)
	assert.Equal(t, 4, connections)
}
