package confirmation

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/goleak"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestTracker(window time.Duration) (*Tracker, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	tracker := NewTracker(Options{Window: window})
	tracker.now = clock.Now
	return tracker, clock
}

func TestRequestWithinWindowIsPending(t *testing.T) {
	defer goleak.VerifyNone(t)

	tracker, clock := newTestTracker(30 * time.Second)
	defer tracker.Close()
	id := uuid.New()

	if got := tracker.Request(id); got.State != NewlyIssued || got.Elapsed != 0 {
		t.Fatalf("first Request() = %+v", got)
	}

	clock.Advance(10 * time.Second)
	if got := tracker.Request(id); got.State != AlreadyPending || got.Elapsed != 10*time.Second {
		t.Fatalf("second Request() = %+v", got)
	}

	clock.Advance(5 * time.Second)
	if got := tracker.Request(id); got.State != AlreadyPending || got.Elapsed != 15*time.Second {
		t.Fatalf("third Request() = %+v, elapsed should count from issuance", got)
	}
}

func TestRequestAfterWindowReissues(t *testing.T) {
	defer goleak.VerifyNone(t)

	tracker, clock := newTestTracker(30 * time.Second)
	defer tracker.Close()
	id := uuid.New()

	tracker.Request(id)
	clock.Advance(30 * time.Second)
	if got := tracker.Request(id); got.State != NewlyIssued {
		t.Fatalf("Request() after window = %+v", got)
	}
}

func TestConsumeRequiresFreshConfirmation(t *testing.T) {
	defer goleak.VerifyNone(t)

	tracker, _ := newTestTracker(30 * time.Second)
	defer tracker.Close()
	id := uuid.New()

	tracker.Request(id)
	tracker.Consume(id)
	tracker.Consume(id)
	if got := tracker.Request(id); got.State != NewlyIssued {
		t.Fatalf("Request() after Consume = %+v", got)
	}
}

func TestSweepRemovesExpiredOnly(t *testing.T) {
	defer goleak.VerifyNone(t)

	tracker, clock := newTestTracker(30 * time.Second)
	defer tracker.Close()
	stale := uuid.New()
	fresh := uuid.New()

	tracker.Request(stale)
	clock.Advance(20 * time.Second)
	tracker.Request(fresh)
	clock.Advance(15 * time.Second)

	if removed := tracker.Sweep(); removed != 1 {
		t.Fatalf("Sweep() = %d, want 1", removed)
	}
	if tracker.Pending() != 1 {
		t.Fatalf("Pending() = %d, want 1", tracker.Pending())
	}
}

func TestExpiryTimerRemovesToken(t *testing.T) {
	defer goleak.VerifyNone(t)

	tracker := NewTracker(Options{Window: 20 * time.Millisecond})
	defer tracker.Close()

	tracker.Request(uuid.New())
	deadline := time.Now().Add(2 * time.Second)
	for tracker.Pending() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("token survived its window")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestStaleTimerKeepsNewerToken(t *testing.T) {
	defer goleak.VerifyNone(t)

	tracker, _ := newTestTracker(time.Hour)
	defer tracker.Close()
	id := uuid.New()

	tracker.Request(id)
	tracker.mu.Lock()
	oldSeq := tracker.tokens[id].seq
	tracker.mu.Unlock()

	tracker.Consume(id)
	tracker.Request(id)
	tracker.expire(id, oldSeq)

	if tracker.Pending() != 1 {
		t.Fatalf("stale expiry removed the newer token")
	}
}

func TestRequestMetrics(t *testing.T) {
	tracker := NewTracker(Options{Window: time.Hour, Registry: prometheus.NewRegistry()})
	defer tracker.Close()
	id := uuid.New()

	tracker.Request(id)
	tracker.Request(id)

	if got := testutil.ToFloat64(tracker.requests.WithLabelValues("issued")); got != 1 {
		t.Fatalf("issued = %v", got)
	}
	if got := testutil.ToFloat64(tracker.requests.WithLabelValues("pending")); got != 1 {
		t.Fatalf("pending = %v", got)
	}
}
