package protocol

import (
	"log/slog"

	"github.com/EliasMarine/bourbon-buddy-sub002/domain"
	"github.com/EliasMarine/bourbon-buddy-sub002/hub"
	"github.com/EliasMarine/bourbon-buddy-sub002/poll"
)

// Publisher broadcasts poll transitions through the room registry so
// timer-driven endings take the same outbound path as handler-driven
// ones.
type Publisher struct {
	rooms *hub.Hub
}

func NewPublisher(rooms *hub.Hub) *Publisher {
	return &Publisher{rooms: rooms}
}

func (p *Publisher) PollAnnounced(sessionID string, pl domain.Poll) {
	p.broadcast(sessionID, domain.EvtPollAnnounced, pl)
}

func (p *Publisher) PollResults(sessionID string, pl domain.Poll) {
	p.broadcast(sessionID, domain.EvtPollResults, pl)
}

func (p *Publisher) PollEnded(sessionID string, pl domain.Poll, reason poll.EndReason) {
	p.broadcast(sessionID, domain.EvtPollEnded, domain.PollEnded{Poll: pl, Reason: string(reason)})
}

func (p *Publisher) broadcast(sessionID, eventType string, payload any) {
	data, err := domain.Encode(eventType, payload)
	if err != nil {
		slog.Warn("marshal error", "event", eventType, "error", err)
		return
	}
	p.rooms.Broadcast(sessionID, data)
}
