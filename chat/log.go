package chat

import (
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/EliasMarine/bourbon-buddy-sub002/domain"
)

// HistoryLimit bounds a session's chat buffer; the oldest entry is
// evicted first.
const HistoryLimit = 100

// Log is one session's ordered buffer of recent messages. It lives and
// dies with the session record that owns it.
type Log struct {
	mu      sync.Mutex
	entries []domain.ChatMessage
}

func NewLog() *Log {
	return &Log{}
}

// Append stamps and stores a message, evicting the oldest entry once the
// buffer is full. Returns the stored message for broadcast.
func (l *Log) Append(senderID, displayName, text string) domain.ChatMessage {
	msg := domain.ChatMessage{
		ID:          ulid.Make().String(),
		SenderID:    senderID,
		DisplayName: displayName,
		Text:        text,
		CreatedAt:   time.Now().UnixMilli(),
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, msg)
	if len(l.entries) > HistoryLimit {
		l.entries = append([]domain.ChatMessage(nil), l.entries[len(l.entries)-HistoryLimit:]...)
	}
	return msg
}

// History returns a copy of the buffered messages, oldest first.
func (l *Log) History() []domain.ChatMessage {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]domain.ChatMessage(nil), l.entries...)
}

func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
