package hub

import (
	"log/slog"
	"sync"

	"github.com/EliasMarine/bourbon-buddy-sub002/chat"
	"github.com/EliasMarine/bourbon-buddy-sub002/domain"
)

// maxSessionIDLen bounds session identifiers; anything longer, empty, or
// containing control characters is rejected as malformed.
const maxSessionIDLen = 128

type session struct {
	id      string
	members map[string]domain.Connection
	chat    *chat.Log
}

type member struct {
	conn        domain.Connection
	sessionID   string
	displayName string
	hostClaim   bool
	credential  string
}

// Hub is the room registry: it owns sessions, their member sets, and each
// session's chat buffer, so a session's state is discarded as one unit
// when its last member leaves.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]*session
	members  map[string]*member
}

func New() *Hub {
	return &Hub{
		sessions: make(map[string]*session),
		members:  make(map[string]*member),
	}
}

// Register records a live connection that has not joined a session yet.
func (h *Hub) Register(conn domain.Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.members[conn.ID()] = &member{conn: conn}
}

// Join adds the connection to the session's member set, creating the
// session on first join. Returns the new viewer count and the chat
// history to replay. A connection may belong to at most one session.
func (h *Hub) Join(conn domain.Connection, sessionID, displayName string, hostClaim bool) (int, []domain.ChatMessage, error) {
	if !validSessionID(sessionID) {
		return 0, nil, domain.Malformed("invalid session id")
	}

	h.mu.Lock()
	m, ok := h.members[conn.ID()]
	if !ok {
		m = &member{conn: conn}
		h.members[conn.ID()] = m
	}
	if m.sessionID != "" {
		joined := m.sessionID
		h.mu.Unlock()
		return 0, nil, domain.Declined("connection already joined session %s", joined)
	}
	s, ok := h.sessions[sessionID]
	if !ok {
		s = &session{
			id:      sessionID,
			members: make(map[string]domain.Connection),
			chat:    chat.NewLog(),
		}
		h.sessions[sessionID] = s
		slog.Info("session created", "sessionId", sessionID)
	}
	s.members[conn.ID()] = conn
	m.sessionID = sessionID
	m.displayName = displayName
	m.hostClaim = hostClaim
	count := len(s.members)
	history := s.chat.History()
	h.mu.Unlock()

	slog.Info("member joined", "sessionId", sessionID, "connectionId", conn.ID(), "viewers", count)
	return count, history, nil
}

// Leave removes the connection from the registry and from its session's
// member set. The session is destroyed when its last member leaves; the
// caller fans teardown out to the poll engine and host authority. Safe to
// call for unknown or never-joined connections.
func (h *Hub) Leave(connID string) (domain.LeaveInfo, bool) {
	h.mu.Lock()
	m, ok := h.members[connID]
	if !ok {
		h.mu.Unlock()
		return domain.LeaveInfo{}, false
	}
	delete(h.members, connID)
	if m.sessionID == "" {
		h.mu.Unlock()
		return domain.LeaveInfo{}, false
	}
	s, ok := h.sessions[m.sessionID]
	if !ok {
		h.mu.Unlock()
		return domain.LeaveInfo{}, false
	}
	delete(s.members, connID)
	count := len(s.members)
	emptied := count == 0
	if emptied {
		delete(h.sessions, m.sessionID)
	}
	h.mu.Unlock()

	slog.Info("member left", "sessionId", m.sessionID, "connectionId", connID, "viewers", count)
	if emptied {
		slog.Info("session destroyed", "sessionId", m.sessionID)
	}
	return domain.LeaveInfo{SessionID: m.sessionID, Viewers: count, Emptied: emptied}, true
}

// Member returns the registry's record of a connection.
func (h *Hub) Member(connID string) (domain.MemberInfo, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	m, ok := h.members[connID]
	if !ok {
		return domain.MemberInfo{}, false
	}
	return domain.MemberInfo{
		SessionID:   m.sessionID,
		DisplayName: m.displayName,
		HostClaim:   m.hostClaim,
		Credential:  m.credential,
	}, true
}

// SetCredential stores a host credential on a connection for later
// authorization checks.
func (h *Hub) SetCredential(connID, token string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if m, ok := h.members[connID]; ok {
		m.credential = token
	}
}

// PostChat appends a message to the session's bounded buffer.
func (h *Hub) PostChat(sessionID, senderID, displayName, text string) (domain.ChatMessage, error) {
	h.mu.RLock()
	s, ok := h.sessions[sessionID]
	h.mu.RUnlock()
	if !ok {
		return domain.ChatMessage{}, domain.NotFound("session %s not found", sessionID)
	}
	return s.chat.Append(senderID, displayName, text), nil
}

// Broadcast sends data to every member of the session, the sender
// included. A failed send closes the connection; its read pump then runs
// the normal disconnect teardown.
func (h *Hub) Broadcast(sessionID string, data []byte) {
	h.mu.RLock()
	s, ok := h.sessions[sessionID]
	if !ok {
		h.mu.RUnlock()
		return
	}
	conns := make([]domain.Connection, 0, len(s.members))
	for _, conn := range s.members {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	for _, conn := range conns {
		if err := conn.Send(data); err != nil {
			slog.Warn("send failed, closing connection", "connectionId", conn.ID(), "error", err)
			conn.Close()
		}
	}
}

// SendTo delivers data to a single connection anywhere in the registry,
// joined to a session or not.
func (h *Hub) SendTo(connID string, data []byte) error {
	h.mu.RLock()
	m, ok := h.members[connID]
	h.mu.RUnlock()
	if !ok {
		return domain.NotFound("connection %s not found", connID)
	}
	return m.conn.Send(data)
}

// ViewerCount returns the session's live member count, zero if absent.
func (h *Hub) ViewerCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s, ok := h.sessions[sessionID]
	if !ok {
		return 0
	}
	return len(s.members)
}

func (h *Hub) Stats() (sessions, connections int) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions), len(h.members)
}

func validSessionID(id string) bool {
	if id == "" || len(id) > maxSessionIDLen {
		return false
	}
	for _, r := range id {
		if r < 0x20 || r == 0x7f {
			return false
		}
	}
	return true
}
