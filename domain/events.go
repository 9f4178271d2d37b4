package domain

import "encoding/json"

// Inbound event types (client → server).
const (
	EvtJoinSession   = "join-session"
	EvtRelaySignal   = "relay-signal"
	EvtPostChat      = "post-chat-message"
	EvtCreatePoll    = "create-poll"
	EvtCastVote      = "cast-vote"
	EvtEndPoll       = "end-poll"
	EvtLivenessProbe = "liveness-probe"
)

// Outbound event types (server → client).
const (
	EvtConnectionAck = "connection-acknowledged"
	EvtSessionJoined = "session-joined"
	EvtViewerCount   = "viewer-count-update"
	EvtChatMessage   = "chat-message"
	EvtRelayedSignal = "relayed-signal"
	EvtPollAnnounced = "poll-announced"
	EvtPollResults   = "poll-results-update"
	EvtPollEnded     = "poll-ended"
	EvtLivenessAck   = "liveness-ack"
	EvtError         = "error"
)

// Envelope frames every event in both directions.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Encode frames an outbound event for the wire.
func Encode(eventType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: eventType, Payload: raw})
}

// HostAssertion carries the host signals a request presents in its own
// payload. All fields are optional.
type HostAssertion struct {
	IsHost         bool   `json:"isHost,omitempty"`
	HostValidation bool   `json:"hostValidation,omitempty"`
	HostToken      string `json:"hostToken,omitempty"`
}

type JoinSessionRequest struct {
	SessionID   string `json:"sessionId"`
	DisplayName string `json:"displayName"`
	IsHost      bool   `json:"isHost"`
}

type RelaySignalRequest struct {
	To         string          `json:"to"`
	Signal     json.RawMessage `json:"signal"`
	SignalType string          `json:"signalType"`
}

type PostChatRequest struct {
	Text string `json:"text"`
}

type CreatePollRequest struct {
	SessionID       string       `json:"sessionId"`
	PollID          string       `json:"pollId,omitempty"`
	Question        string       `json:"question"`
	Options         []PollOption `json:"options"`
	DurationSeconds int          `json:"durationSeconds"`
	HostAssertion
}

type CastVoteRequest struct {
	PollID   string `json:"pollId"`
	OptionID string `json:"optionId"`
}

type EndPollRequest struct {
	PollID string `json:"pollId"`
	HostAssertion
}

type LivenessProbe struct {
	Timestamp int64 `json:"timestamp"`
}

type ConnectionAck struct {
	ConnectionID string `json:"connectionId"`
}

// SessionJoined acknowledges a join with everything a late arrival needs:
// the live viewer count, buffered chat, and replayable polls (active plus
// recently ended ones still inside the retention window).
type SessionJoined struct {
	SessionID    string        `json:"sessionId"`
	ConnectionID string        `json:"connectionId"`
	ViewerCount  int           `json:"viewerCount"`
	ChatHistory  []ChatMessage `json:"chatHistory"`
	Polls        []Poll        `json:"polls"`
	HostToken    string        `json:"hostToken,omitempty"`
}

type ViewerCountUpdate struct {
	SessionID   string `json:"sessionId"`
	ViewerCount int    `json:"viewerCount"`
}

type RelayedSignal struct {
	From       string          `json:"from"`
	Signal     json.RawMessage `json:"signal"`
	SignalType string          `json:"signalType"`
}

type PollEnded struct {
	Poll   Poll   `json:"poll"`
	Reason string `json:"reason"`
}

type LivenessAck struct {
	Timestamp int64 `json:"timestamp"`
}

// ErrorEvent is sent only to the connection whose request failed. Ref
// names the inbound event type that triggered it, when known.
type ErrorEvent struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Ref     string `json:"ref,omitempty"`
}
