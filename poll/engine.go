package poll

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/EliasMarine/bourbon-buddy-sub002/domain"
)

// EndReason labels what triggered a poll's termination.
type EndReason string

const (
	ReasonTimerExpired    EndReason = "timer-expired"
	ReasonHostRequested   EndReason = "host-requested"
	ReasonSessionTornDown EndReason = "session-torn-down"
)

// Retention is how long a concluded poll stays in session bookkeeping so
// late joiners still see its final results.
const Retention = 15 * time.Minute

// Publisher fans poll transitions out to the session's members. The
// engine calls it for handler-driven and timer-driven transitions alike.
type Publisher interface {
	PollAnnounced(sessionID string, p domain.Poll)
	PollResults(sessionID string, p domain.Poll)
	PollEnded(sessionID string, p domain.Poll, reason EndReason)
}

type poll struct {
	domain.Poll
	voters map[string]string // voter id → chosen option id
	expiry *time.Timer
}

// snapshot returns a copy safe to hand outside the engine's lock.
func (p *poll) snapshot() domain.Poll {
	snap := p.Poll
	snap.Options = append([]domain.PollOption(nil), p.Options...)
	results := make(map[string]int, len(p.Results))
	for id, n := range p.Results {
		results[id] = n
	}
	snap.Results = results
	return snap
}

// Engine owns the lifecycle of every poll: creation, at-most-once voting,
// the guarded active → ended transition, and post-end retention. Expiry
// and retention timers take the same lock as event-driven calls, so the
// ended flag is a sufficient guard against racing terminations.
type Engine struct {
	mu        sync.Mutex
	polls     map[string]*poll
	bySession map[string]map[string]*poll
	pub       Publisher
	retention time.Duration
}

func NewEngine(pub Publisher, retention time.Duration) *Engine {
	if retention <= 0 {
		retention = Retention
	}
	return &Engine{
		polls:     make(map[string]*poll),
		bySession: make(map[string]map[string]*poll),
		pub:       pub,
		retention: retention,
	}
}

// Create registers a new active poll with all counts at zero and starts
// its single expiry timer. Host authorization happens upstream; the
// engine validates shape only. The client may supply the poll id; one is
// minted when absent.
func (e *Engine) Create(sessionID, creatorID, pollID, question string, options []domain.PollOption, duration time.Duration) (domain.Poll, error) {
	if len(options) == 0 {
		return domain.Poll{}, domain.Malformed("poll needs at least one option")
	}
	seen := make(map[string]struct{}, len(options))
	for _, o := range options {
		if o.ID == "" {
			return domain.Poll{}, domain.Malformed("poll option missing id")
		}
		if _, dup := seen[o.ID]; dup {
			return domain.Poll{}, domain.Malformed("duplicate poll option id %s", o.ID)
		}
		seen[o.ID] = struct{}{}
	}
	if duration <= 0 {
		return domain.Poll{}, domain.Malformed("poll duration must be positive")
	}
	if pollID == "" {
		pollID = uuid.NewString()
	}

	results := make(map[string]int, len(options))
	for _, o := range options {
		results[o.ID] = 0
	}
	p := &poll{
		Poll: domain.Poll{
			ID:              pollID,
			SessionID:       sessionID,
			Question:        question,
			Options:         append([]domain.PollOption(nil), options...),
			DurationSeconds: int(duration / time.Second),
			CreatedAt:       time.Now().UnixMilli(),
			CreatorID:       creatorID,
			Results:         results,
		},
		voters: make(map[string]string),
	}

	e.mu.Lock()
	if _, exists := e.polls[pollID]; exists {
		e.mu.Unlock()
		return domain.Poll{}, domain.Malformed("poll %s already exists", pollID)
	}
	e.polls[pollID] = p
	ss, ok := e.bySession[sessionID]
	if !ok {
		ss = make(map[string]*poll)
		e.bySession[sessionID] = ss
	}
	ss[pollID] = p
	p.expiry = time.AfterFunc(duration, func() {
		e.End(pollID, ReasonTimerExpired)
	})
	snap := p.snapshot()
	e.mu.Unlock()

	slog.Info("poll created", "pollId", pollID, "sessionId", sessionID, "options", len(options), "duration", duration)
	e.pub.PollAnnounced(sessionID, snap)
	return snap, nil
}

// Vote records at most one ballot per voter per poll and broadcasts the
// updated aggregate results, never raw ballots.
func (e *Engine) Vote(pollID, voterID, optionID string) (domain.Poll, error) {
	e.mu.Lock()
	p, ok := e.polls[pollID]
	if !ok {
		e.mu.Unlock()
		return domain.Poll{}, domain.NotFound("poll %s not found", pollID)
	}
	if p.Ended {
		e.mu.Unlock()
		return domain.Poll{}, domain.Declined("poll %s has ended", pollID)
	}
	if _, ok := p.Results[optionID]; !ok {
		e.mu.Unlock()
		return domain.Poll{}, domain.Malformed("option %s is not part of poll %s", optionID, pollID)
	}
	if _, voted := p.voters[voterID]; voted {
		e.mu.Unlock()
		return domain.Poll{}, domain.Declined("already voted in poll %s", pollID)
	}
	p.voters[voterID] = optionID
	p.Results[optionID]++
	p.TotalVotes++
	sessionID := p.SessionID
	snap := p.snapshot()
	e.mu.Unlock()

	e.pub.PollResults(sessionID, snap)
	return snap, nil
}

// End performs the active → ended transition. The ended flag is the
// guard: the first caller wins; later callers observe already-ended and
// cause no further side effects. That makes timer expiry, host requests,
// and session teardown safe to race. On success the pending expiry timer
// is cancelled, final results are broadcast, and a retention timer
// schedules the poll's removal from session bookkeeping.
func (e *Engine) End(pollID string, reason EndReason) (domain.Poll, error) {
	e.mu.Lock()
	p, ok := e.polls[pollID]
	if !ok {
		e.mu.Unlock()
		return domain.Poll{}, domain.NotFound("poll %s not found", pollID)
	}
	if p.Ended {
		e.mu.Unlock()
		return domain.Poll{}, domain.Declined("poll %s already ended", pollID)
	}
	p.Ended = true
	if p.expiry != nil {
		p.expiry.Stop()
	}
	sessionID := p.SessionID
	snap := p.snapshot()
	e.mu.Unlock()

	slog.Info("poll ended", "pollId", pollID, "sessionId", sessionID, "reason", reason, "totalVotes", snap.TotalVotes)
	time.AfterFunc(e.retention, func() {
		e.purge(pollID)
	})
	e.pub.PollEnded(sessionID, snap, reason)
	return snap, nil
}

// Get returns a snapshot of the poll if it is still in bookkeeping,
// active or retained.
func (e *Engine) Get(pollID string) (domain.Poll, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.polls[pollID]
	if !ok {
		return domain.Poll{}, false
	}
	return p.snapshot(), true
}

// ForSession returns the session's replayable polls, creation-ordered:
// active polls plus ended ones still inside the retention window.
func (e *Engine) ForSession(sessionID string) []domain.Poll {
	e.mu.Lock()
	defer e.mu.Unlock()
	ss := e.bySession[sessionID]
	out := make([]domain.Poll, 0, len(ss))
	for _, p := range ss {
		out = append(out, p.snapshot())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt < out[j].CreatedAt
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// EndSession force-ends the session's active polls with reason
// session-torn-down and discards the session's poll bookkeeping entirely,
// retained polls included. Called when the session's last member leaves.
func (e *Engine) EndSession(sessionID string) {
	e.mu.Lock()
	active := make([]string, 0)
	for id, p := range e.bySession[sessionID] {
		if !p.Ended {
			active = append(active, id)
		}
	}
	e.mu.Unlock()

	for _, id := range active {
		e.End(id, ReasonSessionTornDown)
	}

	e.mu.Lock()
	for id := range e.bySession[sessionID] {
		delete(e.polls, id)
	}
	delete(e.bySession, sessionID)
	e.mu.Unlock()
}

// purge drops a retained poll once its retention window closes. A poll
// already discarded by session teardown is a no-op.
func (e *Engine) purge(pollID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.polls[pollID]
	if !ok {
		return
	}
	delete(e.polls, pollID)
	if ss, ok := e.bySession[p.SessionID]; ok {
		delete(ss, pollID)
		if len(ss) == 0 {
			delete(e.bySession, p.SessionID)
		}
	}
}
