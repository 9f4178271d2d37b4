package protocol

import (
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/EliasMarine/bourbon-buddy-sub002/domain"
	"github.com/EliasMarine/bourbon-buddy-sub002/host"
	"github.com/EliasMarine/bourbon-buddy-sub002/hub"
	"github.com/EliasMarine/bourbon-buddy-sub002/poll"
	"github.com/EliasMarine/bourbon-buddy-sub002/relay"
)

// Handler decodes inbound event envelopes and routes them to the room
// registry, chat, relay, host authority, and poll engine. Errors are
// reported only to the originating connection; one connection's bad input
// never reaches the rest of the room.
type Handler struct {
	rooms     *hub.Hub
	relay     *relay.Relay
	authority *host.Authority
	polls     *poll.Engine
}

func NewHandler(rooms *hub.Hub, rl *relay.Relay, authority *host.Authority, polls *poll.Engine) *Handler {
	return &Handler{rooms: rooms, relay: rl, authority: authority, polls: polls}
}

// Connected registers the connection and acknowledges it immediately with
// its assigned id; clients need the id before their first signal.
func (h *Handler) Connected(conn domain.Connection) {
	h.rooms.Register(conn)
	h.send(conn, domain.EvtConnectionAck, domain.ConnectionAck{ConnectionID: conn.ID()})
	slog.Info("connection established", "connectionId", conn.ID())
}

// Disconnected removes the connection from its session. Invoked exactly
// once by the gateway; a leave for an unknown connection is a no-op, so
// repeated delivery would also be safe. When the last member leaves, the
// session's polls and credentials are discarded with it.
func (h *Handler) Disconnected(conn domain.Connection) {
	info, ok := h.rooms.Leave(conn.ID())
	slog.Info("connection closed", "connectionId", conn.ID())
	if !ok {
		return
	}
	if info.Emptied {
		h.polls.EndSession(info.SessionID)
		h.authority.DropSession(info.SessionID)
		return
	}
	h.broadcast(info.SessionID, domain.EvtViewerCount, domain.ViewerCountUpdate{
		SessionID:   info.SessionID,
		ViewerCount: info.Viewers,
	})
}

func (h *Handler) Handle(conn domain.Connection, data []byte) {
	var env domain.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		slog.Warn("invalid envelope", "connectionId", conn.ID(), "error", err)
		h.sendError(conn, "", domain.Malformed("invalid event envelope"))
		return
	}

	switch env.Type {
	case domain.EvtJoinSession:
		h.handleJoin(conn, env.Payload)
	case domain.EvtRelaySignal:
		h.handleRelay(conn, env.Payload)
	case domain.EvtPostChat:
		h.handleChat(conn, env.Payload)
	case domain.EvtCreatePoll:
		h.handleCreatePoll(conn, env.Payload)
	case domain.EvtCastVote:
		h.handleVote(conn, env.Payload)
	case domain.EvtEndPoll:
		h.handleEndPoll(conn, env.Payload)
	case domain.EvtLivenessProbe:
		h.handleLiveness(conn, env.Payload)
	default:
		h.sendError(conn, env.Type, domain.Malformed("unknown event type %q", env.Type))
	}
}

func (h *Handler) handleJoin(conn domain.Connection, payload json.RawMessage) {
	var req domain.JoinSessionRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		h.sendError(conn, domain.EvtJoinSession, domain.Malformed("invalid join-session payload"))
		return
	}

	count, history, err := h.rooms.Join(conn, req.SessionID, req.DisplayName, req.IsHost)
	if err != nil {
		h.sendError(conn, domain.EvtJoinSession, err)
		return
	}

	var token string
	if req.IsHost {
		token = h.authority.Issue(req.SessionID)
		h.rooms.SetCredential(conn.ID(), token)
	}

	h.send(conn, domain.EvtSessionJoined, domain.SessionJoined{
		SessionID:    req.SessionID,
		ConnectionID: conn.ID(),
		ViewerCount:  count,
		ChatHistory:  history,
		Polls:        h.polls.ForSession(req.SessionID),
		HostToken:    token,
	})
	h.broadcast(req.SessionID, domain.EvtViewerCount, domain.ViewerCountUpdate{
		SessionID:   req.SessionID,
		ViewerCount: count,
	})
}

func (h *Handler) handleRelay(conn domain.Connection, payload json.RawMessage) {
	var req domain.RelaySignalRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		h.sendError(conn, domain.EvtRelaySignal, domain.Malformed("invalid relay-signal payload"))
		return
	}
	if err := h.relay.Forward(conn.ID(), req); err != nil {
		h.sendError(conn, domain.EvtRelaySignal, err)
	}
}

// handleChat drops invalid posts without an error event: logged, not
// broadcast, nothing back to the sender.
func (h *Handler) handleChat(conn domain.Connection, payload json.RawMessage) {
	var req domain.PostChatRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		slog.Warn("invalid post-chat-message payload", "connectionId", conn.ID(), "error", err)
		return
	}
	m, ok := h.rooms.Member(conn.ID())
	if !ok || m.SessionID == "" {
		slog.Warn("chat message from connection outside any session", "connectionId", conn.ID())
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		slog.Warn("empty chat message dropped", "connectionId", conn.ID(), "sessionId", m.SessionID)
		return
	}

	msg, err := h.rooms.PostChat(m.SessionID, conn.ID(), m.DisplayName, req.Text)
	if err != nil {
		slog.Warn("chat append failed", "connectionId", conn.ID(), "error", err)
		return
	}
	h.broadcast(m.SessionID, domain.EvtChatMessage, msg)
}

func (h *Handler) handleCreatePoll(conn domain.Connection, payload json.RawMessage) {
	var req domain.CreatePollRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		h.sendError(conn, domain.EvtCreatePoll, domain.Malformed("invalid create-poll payload"))
		return
	}

	m, _ := h.rooms.Member(conn.ID())
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = m.SessionID
	}
	if sessionID == "" {
		h.sendError(conn, domain.EvtCreatePoll, domain.Malformed("create-poll missing session id"))
		return
	}

	if !h.authority.Authorize(sessionID, h.evidence(m, req.HostAssertion)) {
		h.sendError(conn, domain.EvtCreatePoll, domain.Unauthorized("host privileges required to create a poll"))
		return
	}

	duration := time.Duration(req.DurationSeconds) * time.Second
	if _, err := h.polls.Create(sessionID, conn.ID(), req.PollID, req.Question, req.Options, duration); err != nil {
		h.sendError(conn, domain.EvtCreatePoll, err)
	}
	// announcement is broadcast by the engine's publisher
}

func (h *Handler) handleVote(conn domain.Connection, payload json.RawMessage) {
	var req domain.CastVoteRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		h.sendError(conn, domain.EvtCastVote, domain.Malformed("invalid cast-vote payload"))
		return
	}
	if _, err := h.polls.Vote(req.PollID, conn.ID(), req.OptionID); err != nil {
		h.sendError(conn, domain.EvtCastVote, err)
	}
}

func (h *Handler) handleEndPoll(conn domain.Connection, payload json.RawMessage) {
	var req domain.EndPollRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		h.sendError(conn, domain.EvtEndPoll, domain.Malformed("invalid end-poll payload"))
		return
	}

	p, ok := h.polls.Get(req.PollID)
	if !ok {
		h.sendError(conn, domain.EvtEndPoll, domain.NotFound("poll %s not found", req.PollID))
		return
	}
	m, _ := h.rooms.Member(conn.ID())
	if !h.authority.Authorize(p.SessionID, h.evidence(m, req.HostAssertion)) {
		h.sendError(conn, domain.EvtEndPoll, domain.Unauthorized("host privileges required to end a poll"))
		return
	}
	if _, err := h.polls.End(req.PollID, poll.ReasonHostRequested); err != nil {
		h.sendError(conn, domain.EvtEndPoll, err)
	}
}

func (h *Handler) handleLiveness(conn domain.Connection, payload json.RawMessage) {
	var probe domain.LivenessProbe
	if len(payload) > 0 {
		json.Unmarshal(payload, &probe)
	}
	h.send(conn, domain.EvtLivenessAck, domain.LivenessAck{Timestamp: probe.Timestamp})
}

// evidence assembles the host signals from the connection's join-time
// record and the request payload.
func (h *Handler) evidence(m domain.MemberInfo, a domain.HostAssertion) host.Evidence {
	return host.Evidence{
		RoleClaim:          m.HostClaim,
		AssertsHost:        a.IsHost,
		ExplicitValidation: a.HostValidation,
		PayloadToken:       a.HostToken,
		StoredToken:        m.Credential,
	}
}

func (h *Handler) send(conn domain.Connection, eventType string, payload any) {
	data, err := domain.Encode(eventType, payload)
	if err != nil {
		slog.Warn("marshal error", "event", eventType, "error", err)
		return
	}
	if err := conn.Send(data); err != nil {
		slog.Warn("send error", "connectionId", conn.ID(), "error", err)
	}
}

func (h *Handler) broadcast(sessionID, eventType string, payload any) {
	data, err := domain.Encode(eventType, payload)
	if err != nil {
		slog.Warn("marshal error", "event", eventType, "error", err)
		return
	}
	h.rooms.Broadcast(sessionID, data)
}

func (h *Handler) sendError(conn domain.Connection, ref string, err error) {
	h.send(conn, domain.EvtError, domain.ErrorEvent{
		Code:    string(domain.CodeOf(err)),
		Message: err.Error(),
		Ref:     ref,
	})
}
