package confirmation

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const DefaultWindow = 30 * time.Second

type State int

const (
	NewlyIssued State = iota
	AlreadyPending
)

func (s State) String() string {
	switch s {
	case AlreadyPending:
		return "already_pending"
	default:
		return "newly_issued"
	}
}

type Result struct {
	State State
	// Elapsed is the age of the pending token; zero when newly issued.
	Elapsed time.Duration
}

type Options struct {
	Window   time.Duration
	Registry prometheus.Registerer
}

type token struct {
	issuedAt time.Time
	seq      uint64
	timer    *time.Timer
}

// Tracker holds the process-local "repeat to confirm" tokens for paid
// revival. A token lives at most one window; it is removed by Consume, by
// its own expiry timer or by Sweep, whichever comes first.
type Tracker struct {
	window time.Duration
	now    func() time.Time

	mu     sync.Mutex
	seq    uint64
	tokens map[uuid.UUID]*token
	closed bool

	requests *prometheus.CounterVec
}

func NewTracker(opts Options) *Tracker {
	if opts.Window <= 0 {
		opts.Window = DefaultWindow
	}
	t := &Tracker{
		window: opts.Window,
		now:    time.Now,
		tokens: make(map[uuid.UUID]*token),
	}
	if opts.Registry != nil {
		factory := promauto.With(opts.Registry)
		t.requests = factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hardcore_confirmation_requests_total",
			Help: "Paid revival confirmation requests by outcome.",
		}, []string{"result"})
		factory.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "hardcore_confirmation_pending",
			Help: "Confirmation tokens currently pending.",
		}, func() float64 { return float64(t.Pending()) })
	}
	return t
}

func (t *Tracker) Window() time.Duration {
	return t.window
}

func (t *Tracker) Request(participantID uuid.UUID) Result {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if tok, ok := t.tokens[participantID]; ok {
		if elapsed := now.Sub(tok.issuedAt); elapsed < t.window {
			t.count(AlreadyPending)
			return Result{State: AlreadyPending, Elapsed: elapsed}
		}
		t.removeLocked(participantID, tok)
	}

	t.seq++
	tok := &token{issuedAt: now, seq: t.seq}
	if !t.closed {
		seq := tok.seq
		tok.timer = time.AfterFunc(t.window, func() { t.expire(participantID, seq) })
	}
	t.tokens[participantID] = tok
	t.count(NewlyIssued)
	return Result{State: NewlyIssued}
}

// Consume removes the participant's token whether or not it was pending.
func (t *Tracker) Consume(participantID uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if tok, ok := t.tokens[participantID]; ok {
		t.removeLocked(participantID, tok)
	}
}

// Sweep removes every token older than the window and reports how many.
func (t *Tracker) Sweep() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	removed := 0
	for id, tok := range t.tokens {
		if now.Sub(tok.issuedAt) >= t.window {
			t.removeLocked(id, tok)
			removed++
		}
	}
	return removed
}

func (t *Tracker) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.tokens)
}

// Close stops every expiry timer and forgets all tokens.
func (t *Tracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	for id, tok := range t.tokens {
		t.removeLocked(id, tok)
	}
}

// expire only removes the issuance that armed it; a newer token for the
// same participant survives.
func (t *Tracker) expire(participantID uuid.UUID, seq uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if tok, ok := t.tokens[participantID]; ok && tok.seq == seq {
		delete(t.tokens, participantID)
	}
}

func (t *Tracker) removeLocked(participantID uuid.UUID, tok *token) {
	if tok.timer != nil {
		tok.timer.Stop()
	}
	delete(t.tokens, participantID)
}

func (t *Tracker) count(state State) {
	if t.requests == nil {
		return
	}
	result := "issued"
	if state == AlreadyPending {
		result = "pending"
	}
	t.requests.WithLabelValues(result).Inc()
}
