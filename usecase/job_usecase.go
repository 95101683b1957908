package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/larry311012/ai-news-hub-sub002/domain/model"
	"github.com/larry311012/ai-news-hub-sub002/infrastructure/logger"
)

// ProgressFunc lets a runner report how far it got. Percent is clamped to [0, 99]; reaching 100
// is reserved for completion.
type ProgressFunc func(percent int, step string)

// JobRunner does the work of one job kind.
type JobRunner interface {
	// Validate rejects malformed input at submit time.
	Validate(input json.RawMessage) error
	Run(ctx context.Context, input json.RawMessage, report ProgressFunc) (interface{}, error)
}

// IJobUsecase runs background jobs and answers polls.
type IJobUsecase interface {
	Submit(userID string, kind model.JobKind, input json.RawMessage) (*model.Job, error)
	Poll(userID, jobID string) (*model.Job, error)
}

type JobOptions struct {
	Timeout       time.Duration
	Retention     time.Duration
	MaxConcurrent int
}

// job holds the latest snapshot. The supervisor goroutine is the only writer.
type job struct {
	snap atomic.Pointer[model.Job]
}

func (j *job) load() *model.Job { return j.snap.Load() }

// publish stores a modified copy of the current snapshot.
func (j *job) publish(mutate func(next *model.Job)) *model.Job {
	next := *j.snap.Load()
	mutate(&next)
	j.snap.Store(&next)
	return &next
}

type progressUpdate struct {
	percent int
	step    string
}

type runOutcome struct {
	result interface{}
	err    error
}

type JobEngine struct {
	runners   map[model.JobKind]JobRunner
	timeout   time.Duration
	retention time.Duration
	slots     chan struct{}

	mu   sync.RWMutex
	jobs map[string]*job

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	now    func() time.Time
}

func NewJobEngine(runners map[model.JobKind]JobRunner, opts JobOptions) *JobEngine {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Minute
	}
	if opts.Retention <= 0 {
		opts.Retention = time.Hour
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 4
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &JobEngine{
		runners:   runners,
		timeout:   opts.Timeout,
		retention: opts.Retention,
		slots:     make(chan struct{}, opts.MaxConcurrent),
		jobs:      make(map[string]*job),
		ctx:       ctx,
		cancel:    cancel,
		now:       time.Now,
	}
}

// Submit registers the job as queued and returns immediately.
func (e *JobEngine) Submit(userID string, kind model.JobKind, input json.RawMessage) (*model.Job, error) {
	runner, ok := e.runners[kind]
	if !ok || !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown job kind %q", model.ErrInvalidInput, kind)
	}
	if err := runner.Validate(input); err != nil {
		return nil, err
	}
	if e.ctx.Err() != nil {
		return nil, errors.New("job engine is shut down")
	}

	j := &job{}
	first := &model.Job{
		ID:          uuid.NewString(),
		Kind:        kind,
		UserID:      userID,
		Status:      model.JobQueued,
		CurrentStep: "Waiting for a worker",
		CreatedAt:   e.now().UTC(),
	}
	j.snap.Store(first)

	e.mu.Lock()
	e.jobs[first.ID] = j
	e.mu.Unlock()

	e.wg.Add(1)
	go e.supervise(j, runner, input)

	logger.GetLogger().WithFields(map[string]interface{}{"job_id": first.ID, "kind": kind, "user_id": userID}).Info("Job submitted")
	return first, nil
}

// Poll returns the latest snapshot. Jobs of other users are reported as not found.
// Polling has no side effects; finished jobs stay readable until Purge drops them.
func (e *JobEngine) Poll(userID, jobID string) (*model.Job, error) {
	e.mu.RLock()
	j, ok := e.jobs[jobID]
	e.mu.RUnlock()
	if !ok {
		return nil, model.ErrNotFound
	}
	snap := j.load()
	if snap.UserID != userID {
		return nil, model.ErrNotFound
	}
	return snap, nil
}

// supervise owns the job from submission to a terminal state. The watchdog runs from
// submission, so a job stuck in the queue times out too.
func (e *JobEngine) supervise(j *job, runner JobRunner, input json.RawMessage) {
	defer e.wg.Done()
	lg := logger.GetLogger().WithField("job_id", j.load().ID)

	watchdog := time.NewTimer(e.timeout)
	defer watchdog.Stop()

	select {
	case e.slots <- struct{}{}:
	case <-watchdog.C:
		e.timedOut(j)
		lg.Warn("Job timed out while queued")
		return
	case <-e.ctx.Done():
		e.finish(j, model.JobFailed, nil, "server shutting down")
		return
	}
	defer func() { <-e.slots }()

	ctx, cancel := context.WithCancel(e.ctx)
	defer cancel()

	started := e.now().UTC()
	j.publish(func(n *model.Job) {
		n.Status = model.JobProcessing
		n.StartedAt = &started
		n.CurrentStep = "Starting"
	})

	progress := make(chan progressUpdate, 8)
	done := make(chan runOutcome, 1)
	report := func(percent int, step string) {
		select {
		case progress <- progressUpdate{percent: percent, step: step}:
		case <-ctx.Done():
		}
	}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- runOutcome{err: fmt.Errorf("job panicked: %v", r)}
			}
		}()
		res, err := runner.Run(ctx, input, report)
		done <- runOutcome{result: res, err: err}
	}()

	for {
		select {
		case p := <-progress:
			j.publish(func(n *model.Job) {
				pct := clampProgress(p.percent)
				if pct > n.Progress {
					n.Progress = pct
				}
				if p.step != "" {
					n.CurrentStep = p.step
				}
			})
		case out := <-done:
			if out.err != nil {
				lg.WithField("error", out.err.Error()).Warn("Job failed")
				e.finish(j, model.JobFailed, nil, out.err.Error())
				return
			}
			raw, err := json.Marshal(out.result)
			if err != nil {
				e.finish(j, model.JobFailed, nil, "could not encode result")
				return
			}
			e.finish(j, model.JobCompleted, raw, "")
			lg.Info("Job completed")
			return
		case <-watchdog.C:
			// Whatever the worker produces after this is dropped; cancel tells it to stop.
			cancel()
			e.timedOut(j)
			lg.Warn("Job timed out")
			return
		case <-e.ctx.Done():
			e.finish(j, model.JobFailed, nil, "server shutting down")
			return
		}
	}
}

func (e *JobEngine) timedOut(j *job) {
	e.finish(j, model.JobTimedOut, nil, fmt.Sprintf("job did not finish within %s", e.timeout))
}

func (e *JobEngine) finish(j *job, status model.JobStatus, result json.RawMessage, errMsg string) {
	finished := e.now().UTC()
	j.publish(func(n *model.Job) {
		n.Status = status
		n.Result = result
		n.Error = errMsg
		n.FinishedAt = &finished
		switch status {
		case model.JobCompleted:
			n.Progress = 100
			n.CurrentStep = "Done"
		case model.JobTimedOut:
			n.CurrentStep = "Timed out"
		default:
			n.CurrentStep = "Failed"
		}
	})
}

// Purge drops terminal jobs finished longer than the retention window ago.
func (e *JobEngine) Purge(now time.Time) int {
	cutoff := now.Add(-e.retention)
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for id, j := range e.jobs {
		snap := j.load()
		if snap.Status.Terminal() && snap.FinishedAt != nil && snap.FinishedAt.Before(cutoff) {
			delete(e.jobs, id)
			n++
		}
	}
	return n
}

// RunJanitor purges on every tick until ctx is done.
func (e *JobEngine) RunJanitor(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := e.Purge(e.now()); n > 0 {
				logger.GetLogger().WithField("purged", n).Debug("Purged finished jobs")
			}
		}
	}
}

// Stop fails unfinished jobs and waits for their supervisors.
func (e *JobEngine) Stop() {
	e.cancel()
	e.wg.Wait()
}

func clampProgress(p int) int {
	switch {
	case p < 0:
		return 0
	case p > 99:
		return 99
	}
	return p
}
