package writequeue

import (
	"context"
	"errors"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"hardcore/internal/bootstrap/logging"
	"hardcore/internal/errs"
	"hardcore/internal/ports"
)

const (
	DefaultWorkers     = 4
	DefaultBuffer      = 1024
	DefaultTaskTimeout = 10 * time.Second
)

type Options struct {
	Workers     int
	Buffer      int
	TaskTimeout time.Duration
	// Registry receives the queue metrics; nil disables them.
	Registry prometheus.Registerer
}

type task struct {
	name string
	run  ports.WriteTask
}

// Queue runs store writes on a fixed worker pool. Each worker owns one
// shard and a key always maps to the same shard, so writes for one key run
// in submission order. Submit never blocks the caller: when the shard is
// full the task is dropped and logged. Tasks are executed at most once and
// never retried.
type Queue struct {
	baseCtx context.Context
	cancel  context.CancelFunc
	timeout time.Duration

	shards []chan task
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool

	metrics *metrics
}

type metrics struct {
	tasks *prometheus.CounterVec
}

var _ ports.WriteQueue = (*Queue)(nil)

func New(ctx context.Context, opts Options) *Queue {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.Buffer <= 0 {
		opts.Buffer = DefaultBuffer
	}
	if opts.TaskTimeout <= 0 {
		opts.TaskTimeout = DefaultTaskTimeout
	}

	baseCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	baseCtx = logging.WithAttrs(baseCtx, slog.String("component", "infrastructure.writequeue"))

	perShard := (opts.Buffer + opts.Workers - 1) / opts.Workers
	q := &Queue{
		baseCtx: baseCtx,
		cancel:  cancel,
		timeout: opts.TaskTimeout,
		shards:  make([]chan task, opts.Workers),
	}
	for i := range q.shards {
		q.shards[i] = make(chan task, perShard)
	}
	if opts.Registry != nil {
		q.initMetrics(opts.Registry)
	}

	for _, shard := range q.shards {
		q.wg.Add(1)
		go q.worker(shard)
	}
	return q
}

func (q *Queue) initMetrics(registry prometheus.Registerer) {
	factory := promauto.With(registry)
	q.metrics = &metrics{
		tasks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hardcore_write_queue_tasks_total",
			Help: "Write tasks by outcome (ok, failed, dropped).",
		}, []string{"result"}),
	}
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "hardcore_write_queue_depth",
		Help: "Write tasks waiting for a worker.",
	}, func() float64 { return float64(q.depth()) })
}

func (q *Queue) depth() int {
	total := 0
	for _, shard := range q.shards {
		total += len(shard)
	}
	return total
}

func (q *Queue) shard(key string) chan task {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return q.shards[h.Sum32()%uint32(len(q.shards))]
}

// Submit queues run on the shard owning key.
func (q *Queue) Submit(key, name string, run ports.WriteTask) bool {
	if run == nil {
		return false
	}

	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		q.drop(name, "queue closed")
		return false
	}

	select {
	case q.shard(key) <- task{name: name, run: run}:
		return true
	default:
		q.drop(name, "queue full")
		return false
	}
}

// Close stops intake and waits for queued tasks to finish. When ctx expires
// first, running tasks are cancelled and ctx's error is returned.
func (q *Queue) Close(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}

	q.mu.Lock()
	if !q.closed {
		q.closed = true
		for _, shard := range q.shards {
			close(shard)
		}
	}
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.cancel()
		return nil
	case <-ctx.Done():
		q.cancel()
		<-done
		return errs.Wrap(ctx.Err(), "drain write queue")
	}
}

func (q *Queue) worker(tasks <-chan task) {
	defer q.wg.Done()
	for t := range tasks {
		q.run(t)
	}
}

func (q *Queue) run(t task) {
	ctx, cancel := context.WithTimeout(q.baseCtx, q.timeout)
	defer cancel()

	logCtx := logging.WithAttrs(ctx, slog.String("task", t.name))
	started := time.Now()

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = errs.WithStack(errors.New("write task panicked"))
				logging.Error(logCtx, "write task panic", slog.Any("panic", r))
			}
		}()
		return t.run(logCtx)
	}()

	if err != nil {
		q.count("failed")
		logging.Error(logCtx, "write task failed", slog.Duration("elapsed", time.Since(started)), slog.Any("err", errs.Loggable(err)))
		return
	}
	q.count("ok")
	logging.Debug(logCtx, "write task done", slog.Duration("elapsed", time.Since(started)))
}

func (q *Queue) drop(name string, reason string) {
	q.count("dropped")
	logging.Warn(q.baseCtx, "write task dropped", slog.String("task", name), slog.String("reason", reason))
}

func (q *Queue) count(result string) {
	if q.metrics == nil {
		return
	}
	q.metrics.tasks.WithLabelValues(result).Inc()
}
