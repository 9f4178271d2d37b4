package relay

import (
	"github.com/EliasMarine/bourbon-buddy-sub002/domain"
)

// Directory resolves a connection id to a delivery path.
type Directory interface {
	SendTo(connID string, data []byte) error
}

// Relay forwards opaque peer-negotiation payloads between two named
// connections. It never inspects the payload, never broadcasts, and never
// checks that the endpoints share a session; peer topology is established
// client-side.
type Relay struct {
	dir Directory
}

func New(dir Directory) *Relay {
	return &Relay{dir: dir}
}

// Forward delivers the signal to exactly the named recipient, annotated
// with the sender's connection id.
func (r *Relay) Forward(fromID string, req domain.RelaySignalRequest) error {
	if req.To == "" {
		return domain.Malformed("relay-signal missing recipient")
	}
	if req.SignalType == "" {
		return domain.Malformed("relay-signal missing signal type")
	}
	if len(req.Signal) == 0 {
		return domain.Malformed("relay-signal missing payload")
	}

	data, err := domain.Encode(domain.EvtRelayedSignal, domain.RelayedSignal{
		From:       fromID,
		Signal:     req.Signal,
		SignalType: req.SignalType,
	})
	if err != nil {
		return domain.Malformed("unencodable signal payload")
	}
	if err := r.dir.SendTo(req.To, data); err != nil {
		return domain.NotFound("recipient %s not connected", req.To)
	}
	return nil
}
