package domain

// Connection is one participant's live transport-level link to the server.
type Connection interface {
	ID() string
	Send(data []byte) error
	Close() error
}

// EventHandler receives gateway lifecycle callbacks and inbound events.
// Disconnected is invoked exactly once per connection by the gateway.
type EventHandler interface {
	Connected(conn Connection)
	Handle(conn Connection, data []byte)
	Disconnected(conn Connection)
}

// ChatMessage is one entry in a session's bounded chat buffer. Immutable
// once appended.
type ChatMessage struct {
	ID          string `json:"id"`
	SenderID    string `json:"senderId"`
	DisplayName string `json:"displayName"`
	Text        string `json:"text"`
	CreatedAt   int64  `json:"createdAt"`
}

// PollOption is one choice within a poll.
type PollOption struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Poll is the wire-visible state of a poll. Results holds every option id
// from creation; counts always sum to TotalVotes.
type Poll struct {
	ID              string         `json:"id"`
	SessionID       string         `json:"sessionId"`
	Question        string         `json:"question"`
	Options         []PollOption   `json:"options"`
	DurationSeconds int            `json:"durationSeconds"`
	CreatedAt       int64          `json:"createdAt"`
	CreatorID       string         `json:"creatorId"`
	Results         map[string]int `json:"results"`
	TotalVotes      int            `json:"totalVotes"`
	Ended           bool           `json:"ended"`
}

// MemberInfo is the registry's record of a joined connection.
type MemberInfo struct {
	SessionID   string
	DisplayName string
	HostClaim   bool
	Credential  string
}

// LeaveInfo describes the outcome of removing a connection from its
// session. Emptied means the session was destroyed with this leave.
type LeaveInfo struct {
	SessionID string
	Viewers   int
	Emptied   bool
}
