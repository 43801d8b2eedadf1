// Package runs queues task runs, executes them one at a time in the
// background and tracks their progress in memory.
package runs

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fortuna/pickem/internal/report"
	"github.com/fortuna/pickem/internal/task"
)

// Status represents the lifecycle state of a run
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// OpRun marks run-level events sent to observers
const OpRun = "run"

// ErrQueueFull is returned when too many runs are waiting
var ErrQueueFull = errors.New("run queue is full")

// Run is a snapshot of one task execution
type Run struct {
	ID         string       `json:"id"`
	Request    task.Request `json:"request"`
	Status     Status       `json:"status"`
	Op         string       `json:"op,omitempty"`
	Message    string       `json:"message,omitempty"`
	Current    int          `json:"current"`
	Total      int          `json:"total"`
	Error      string       `json:"error,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
	StartedAt  *time.Time   `json:"started_at,omitempty"`
	FinishedAt *time.Time   `json:"finished_at,omitempty"`
}

func (r *Run) copy() *Run {
	cpy := *r
	return &cpy
}

// Executor runs a task request
type Executor interface {
	Run(ctx context.Context, req task.Request, rep report.Reporter) error
}

// ReporterFactory builds an extra observer for a run
type ReporterFactory func(runID string) report.Reporter

// Manager owns the run queue and history
type Manager struct {
	exec      Executor
	observers []ReporterFactory

	mu    sync.RWMutex
	runs  map[string]*Run
	order []string
	limit int
	queue chan string
	now   func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager creates a Manager keeping at most limit finished runs.
// Call Start to launch the worker.
func NewManager(exec Executor, limit int, observers ...ReporterFactory) *Manager {
	if limit <= 0 {
		limit = 100
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		exec:      exec,
		observers: observers,
		runs:      make(map[string]*Run),
		limit:     limit,
		queue:     make(chan string, 32),
		now:       time.Now,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start launches the background worker
func (m *Manager) Start() {
	m.wg.Add(1)
	go m.worker()
}

// Shutdown cancels the active run and waits for the worker to exit
func (m *Manager) Shutdown(ctx context.Context) error {
	m.cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		m.wg.Wait()
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

// Submit validates and queues a request
func (m *Manager) Submit(req task.Request) (*Run, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	run := &Run{
		ID:        uuid.NewString(),
		Request:   req,
		Status:    StatusQueued,
		Message:   "Queued",
		CreatedAt: m.now().UTC(),
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	select {
	case m.queue <- run.ID:
	default:
		return nil, ErrQueueFull
	}
	m.runs[run.ID] = run
	m.order = append(m.order, run.ID)
	m.trimLocked()

	return run.copy(), nil
}

// Get returns a snapshot of the run
func (m *Manager) Get(id string) (*Run, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	run, ok := m.runs[id]
	if !ok {
		return nil, false
	}
	return run.copy(), true
}

// List returns snapshots of every tracked run, newest first
func (m *Manager) List() []*Run {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Run, 0, len(m.order))
	for i := len(m.order) - 1; i >= 0; i-- {
		out = append(out, m.runs[m.order[i]].copy())
	}
	return out
}

func (m *Manager) worker() {
	defer m.wg.Done()

	for {
		select {
		case <-m.ctx.Done():
			return
		case id := <-m.queue:
			m.execute(id)
		}
	}
}

func (m *Manager) execute(id string) {
	req, ok := m.start(id)
	if !ok {
		return
	}

	observers := make([]report.Reporter, 0, len(m.observers))
	for _, f := range m.observers {
		observers = append(observers, f(id))
	}
	outer := report.NewMulti(observers...)
	attrs := map[string]any{"task": req.Task, "year": req.Year, "week": req.Week}

	outer.OnStart(OpRun, attrs)
	err := m.exec.Run(m.ctx, req, report.NewMulti(&tracker{m: m, id: id}, outer))
	m.finish(id, err)

	if err != nil {
		slog.Error("run failed", "run_id", id, "task", req.Task, "error", err)
		outer.OnError(OpRun, err)
		return
	}
	slog.Info("run completed", "run_id", id, "task", req.Task)
	outer.OnComplete(OpRun, attrs)
}

func (m *Manager) start(id string) (task.Request, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	run, ok := m.runs[id]
	if !ok {
		return task.Request{}, false
	}
	now := m.now().UTC()
	run.Status = StatusRunning
	run.Message = "Starting"
	run.StartedAt = &now
	return run.Request, true
}

func (m *Manager) finish(id string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	run, ok := m.runs[id]
	if !ok {
		return
	}
	now := m.now().UTC()
	run.FinishedAt = &now
	if err != nil {
		run.Status = StatusFailed
		run.Message = "Run failed"
		run.Error = err.Error()
		return
	}
	run.Status = StatusCompleted
	run.Message = "Run completed"
}

// trimLocked drops the oldest finished runs beyond the history limit
func (m *Manager) trimLocked() {
	excess := len(m.order) - m.limit
	if excess <= 0 {
		return
	}

	kept := m.order[:0]
	for _, id := range m.order {
		run := m.runs[id]
		if excess > 0 && (run.Status == StatusCompleted || run.Status == StatusFailed) {
			delete(m.runs, id)
			excess--
			continue
		}
		kept = append(kept, id)
	}
	m.order = kept
}

// tracker copies reporter callbacks onto the run record
type tracker struct {
	m  *Manager
	id string
}

func (t *tracker) update(fn func(*Run)) {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	if run, ok := t.m.runs[t.id]; ok {
		fn(run)
	}
}

func (t *tracker) OnStart(op string, _ map[string]any) {
	t.update(func(r *Run) {
		r.Op = op
		r.Message = op + " started"
		r.Current, r.Total = 0, 0
	})
}

func (t *tracker) OnProgress(op string, message string, current int, total int) {
	t.update(func(r *Run) {
		r.Op = op
		r.Message = message
		r.Current, r.Total = current, total
	})
}

func (t *tracker) OnComplete(op string, _ map[string]any) {
	t.update(func(r *Run) {
		r.Op = op
		r.Message = op + " completed"
		r.Current = r.Total
	})
}

func (t *tracker) OnError(op string, err error) {
	t.update(func(r *Run) {
		r.Op = op
		if err != nil {
			r.Error = err.Error()
		}
	})
}
