package diskqueue

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/torrentstore/diskcore/internal/logger"
	"github.com/torrentstore/diskcore/internal/telemetry"
	"github.com/torrentstore/diskcore/pkg/alert"
	"github.com/torrentstore/diskcore/pkg/diskerr"
)

// ErrStopped is returned by Submit after Stop has been called.
var ErrStopped = errors.New("diskqueue: stopped")

// ErrBackpressure is returned by Submit for a KindWrite job that would push
// the queue's outstanding write bytes over Config.MaxQueuedBytes (spec §6
// "max_queued_disk_bytes"). Mirrors the cache's allocate_pending
// block/exceeded contract: the caller is expected to hold the write and
// retry once outstanding writes drain, not to treat this as a fatal error.
var ErrBackpressure = errors.New("diskqueue: write back-pressure, queued bytes exceed budget")

// Metrics receives job-queue observability events; nil means "don't
// record".
type Metrics interface {
	ObserveQueueDepth(n int)
	ObserveJobLatency(kind string, d time.Duration)
	ObserveJobError(kind string)
}

// Config configures a Queue.
type Config struct {
	// Workers is the number of general-purpose worker goroutines.
	Workers int
	// HasherWorkers is the number of goroutines dedicated to hash jobs,
	// kept separate so a backlog of hashing never starves read/write I/O.
	HasherWorkers int

	// PerfWarnInterval is the minimum gap between disk-performance-warning
	// alerts for the same storage (spec §5, supplemented in SPEC_FULL §6.3).
	PerfWarnInterval time.Duration
	// PerfWarnThreshold is the job duration above which a slow disk alert
	// may be emitted.
	PerfWarnThreshold time.Duration

	// MaxQueuedBytes caps the sum of Job.Bytes across outstanding KindWrite
	// jobs (spec §6 "max_queued_disk_bytes"). Zero means unlimited.
	MaxQueuedBytes int64

	Alerts  alert.Dispatcher
	Metrics Metrics
}

// Queue is the disk job queue and worker pool.
type Queue struct {
	cfg Config

	mu        sync.Mutex
	cond      *sync.Cond
	ready     []*Job
	hashReady []*Job
	fences    map[string]*fenceState
	stopped   bool

	completionMu sync.Mutex
	completion   []Result
	wake         chan struct{}

	queuedWriteBytes int64

	perfWarn *perfLimiter

	group  *errgroup.Group
	cancel context.CancelFunc
}

// New constructs a Queue. Call Start to spin up workers.
func New(cfg Config) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.PerfWarnInterval <= 0 {
		cfg.PerfWarnInterval = 30 * time.Second
	}
	if cfg.PerfWarnThreshold <= 0 {
		cfg.PerfWarnThreshold = 2 * time.Second
	}
	if cfg.Alerts == nil {
		cfg.Alerts = alert.DiscardDispatcher{}
	}
	q := &Queue{
		cfg:      cfg,
		fences:   make(map[string]*fenceState),
		wake:     make(chan struct{}, 1),
		perfWarn: newPerfLimiter(cfg.PerfWarnInterval),
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Start spins up the configured worker goroutines under an errgroup, so
// Stop can wait for them to drain cleanly (spec §6.2 domain stack:
// errgroup worker-pool shutdown coordination).
func (q *Queue) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	q.cancel = cancel
	g, ctx := errgroup.WithContext(ctx)
	q.group = g

	for i := 0; i < q.cfg.Workers; i++ {
		id := i
		g.Go(func() error {
			q.workerLoop(ctx, id, false)
			return nil
		})
	}
	for i := 0; i < q.cfg.HasherWorkers; i++ {
		id := i
		g.Go(func() error {
			q.workerLoop(ctx, id, true)
			return nil
		})
	}
}

// Stop marks the queue stopped, wakes every worker with a broadcast (the
// one place this queue broadcasts rather than signals, per spec §5),
// cancels the workers' context, and waits for them to return. A worker
// returns once its current job finishes; jobs still waiting in the ready
// queues or behind a fence are not executed and their handlers are not
// invoked.
func (q *Queue) Stop() error {
	q.mu.Lock()
	q.stopped = true
	q.mu.Unlock()
	q.cond.Broadcast()
	if q.cancel != nil {
		q.cancel()
	}
	if q.group != nil {
		return q.group.Wait()
	}
	return nil
}

// Submit enqueues a job. Ownership of j transfers to the queue.
func (q *Queue) Submit(j *Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.stopped {
		return ErrStopped
	}
	if j.Kind == KindWrite && q.cfg.MaxQueuedBytes > 0 && q.queuedWriteBytes+j.Bytes > q.cfg.MaxQueuedBytes {
		return ErrBackpressure
	}
	j.submittedAt = time.Now()

	if j.Kind == KindStopTorrent {
		q.abortStorageLocked(j.StorageID)
	}
	if j.Kind == KindWrite {
		q.queuedWriteBytes += j.Bytes
	}

	q.submitLocked(j)
	if q.cfg.Metrics != nil {
		q.cfg.Metrics.ObserveQueueDepth(len(q.ready) + len(q.hashReady))
	}
	q.cond.Signal()
	return nil
}

func (q *Queue) enqueueReadyLocked(j *Job) {
	if j.Kind == KindHash {
		q.hashReady = append(q.hashReady, j)
		return
	}
	q.ready = append(q.ready, j)
}

// popLocked returns the next job for a worker of the given kind. A
// hasherOnly worker only ever takes KindHash jobs. A general worker takes
// from the ready queue first and only falls back to hashReady when there
// are no dedicated hasher workers to drain it — otherwise a backlog of
// hashing would starve read/write I/O on general workers (spec §4.F).
func (q *Queue) popLocked(hasherOnly bool) *Job {
	if hasherOnly {
		if len(q.hashReady) == 0 {
			return nil
		}
		j := q.hashReady[0]
		q.hashReady = q.hashReady[1:]
		return j
	}
	if len(q.ready) > 0 {
		j := q.ready[0]
		q.ready = q.ready[1:]
		return j
	}
	if q.cfg.HasherWorkers == 0 && len(q.hashReady) > 0 {
		j := q.hashReady[0]
		q.hashReady = q.hashReady[1:]
		return j
	}
	return nil
}

func (q *Queue) workerLoop(ctx context.Context, id int, hasherOnly bool) {
	for {
		q.mu.Lock()
		for {
			if q.stopped {
				q.mu.Unlock()
				return
			}
			if j := q.popLocked(hasherOnly); j != nil {
				q.mu.Unlock()
				q.execute(ctx, j)
				break
			}
			q.cond.Wait()
		}
		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

func (q *Queue) execute(ctx context.Context, j *Job) {
	jobCtx := logger.WithContext(ctx, logger.NewLogContext(j.StorageID).WithJobKind(j.Kind.String()).WithPiece(int32(j.Piece)))
	jobCtx, span := telemetry.StartJobSpan(jobCtx, "diskqueue.execute", j.Kind.String(), j.StorageID,
		telemetry.Piece(int32(j.Piece)))
	defer span.End()

	start := time.Now()
	n, err := j.Exec()
	dur := time.Since(start)

	if err != nil {
		telemetry.RecordError(jobCtx, err)
		if q.cfg.Metrics != nil {
			q.cfg.Metrics.ObserveJobError(j.Kind.String())
		}
		logger.ErrorCtx(jobCtx, "disk job failed", logger.Err(err), logger.DurationMs(float64(dur.Milliseconds())))
	}
	if q.cfg.Metrics != nil {
		q.cfg.Metrics.ObserveJobLatency(j.Kind.String(), dur)
	}
	if dur >= q.cfg.PerfWarnThreshold && q.perfWarn.allow(j.StorageID) {
		q.cfg.Alerts.Post(alert.PerformanceWarningAlert(j.StorageID))
	}

	q.mu.Lock()
	if j.Kind == KindWrite {
		q.queuedWriteBytes -= j.Bytes
	}
	q.completeFenceLocked(j)
	// Releasing a fence may have unblocked several jobs; wake enough
	// workers to pick them all up (still one signal per job, never a
	// broadcast — spec reserves broadcast for shutdown).
	for i := 0; i < len(q.ready)+len(q.hashReady); i++ {
		q.cond.Signal()
	}
	q.mu.Unlock()

	q.postCompletion(Result{Job: j, N: n, Err: err, Duration: dur})
}

// postAbortedLocked fails an aborted job. The caller holds q.mu on entry;
// postCompletion synchronously invokes the job's Handler, which must not
// be called with q.mu held (a handler is free to turn around and call
// Submit), so the lock is dropped for the call and reacquired before
// returning. The caller's already-removed-from-queues state (ready,
// hashReady, fences) needs no protection across that window since this
// function only touches its own local j.
func (q *Queue) postAbortedLocked(j *Job) {
	err := diskerr.New(diskerr.OperationAborted, j.Kind.String(), nil)
	q.mu.Unlock()
	q.postCompletion(Result{Job: j, Err: err})
	q.mu.Lock()
}

// postCompletion implements spec §4.F batched completion: append under one
// lock acquisition, and post a single wakeup the first time the queue
// transitions from empty to non-empty.
func (q *Queue) postCompletion(r Result) {
	q.completionMu.Lock()
	wasEmpty := len(q.completion) == 0
	q.completion = append(q.completion, r)
	q.completionMu.Unlock()

	if r.Job.Handler != nil {
		r.Job.Handler(r)
	}

	if wasEmpty {
		select {
		case q.wake <- struct{}{}:
		default:
		}
	}
}

// DrainCompletions returns and clears every completion queued since the
// last call, for the external dispatcher thread.
func (q *Queue) DrainCompletions() []Result {
	q.completionMu.Lock()
	defer q.completionMu.Unlock()
	if len(q.completion) == 0 {
		return nil
	}
	out := q.completion
	q.completion = nil
	return out
}

// Wake returns the channel the dispatcher should select on for a
// completion-queue wakeup.
func (q *Queue) Wake() <-chan struct{} {
	return q.wake
}
