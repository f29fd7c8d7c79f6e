package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"crmcore/internal/blob"
	"crmcore/internal/core"
	"crmcore/internal/reporting"
	"crmcore/pkg/domain"
)

const (
	defaultQueueSize = 16
	defaultPrefix    = "exports"
)

type discardLogger struct{}

func (discardLogger) Debug(string, ...any) {}
func (discardLogger) Info(string, ...any)  {}
func (discardLogger) Warn(string, ...any)  {}
func (discardLogger) Error(string, ...any) {}

// Option configures a Worker.
type Option func(*Worker)

// WithQueueSize bounds the number of jobs waiting to run.
func WithQueueSize(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.queueSize = n
		}
	}
}

// WithPrefix sets the blob key prefix artifacts are stored under.
func WithPrefix(prefix string) Option {
	return func(w *Worker) { w.prefix = prefix }
}

// WithDefaultFormats sets the formats used when a request names none.
func WithDefaultFormats(formats ...Format) Option {
	return func(w *Worker) {
		if len(formats) > 0 {
			w.defaults = append([]Format(nil), formats...)
		}
	}
}

// WithURLExpiry sets the lifetime of presigned artifact URLs.
func WithURLExpiry(d time.Duration) Option {
	return func(w *Worker) { w.expiry = d }
}

// WithSink mirrors every exported table into sink.
func WithSink(sink reporting.Sink) Option {
	return func(w *Worker) { w.sink = sink }
}

// WithNotifier reports finished jobs to n.
func WithNotifier(n Notifier) Option {
	return func(w *Worker) { w.notifier = n }
}

// WithLogger sets the worker logger.
func WithLogger(logger core.Logger) Option {
	return func(w *Worker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithClock overrides the time source for job timestamps.
func WithClock(now func() time.Time) Option {
	return func(w *Worker) {
		if now != nil {
			w.now = now
		}
	}
}

// WithIDFunc overrides job ID generation.
func WithIDFunc(fn func() string) Option {
	return func(w *Worker) {
		if fn != nil {
			w.newID = fn
		}
	}
}

// Worker executes exports asynchronously, one job at a time.
type Worker struct {
	source   Source
	store    blob.Store
	sink     reporting.Sink
	notifier Notifier
	logger   core.Logger
	now      func() time.Time
	newID    func() string

	prefix    string
	defaults  []Format
	expiry    time.Duration
	queueSize int

	queue   chan string
	mu      sync.RWMutex
	jobs    map[string]*Job
	done    map[string]chan struct{}
	order   []string
	stopped bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWorker constructs an export worker. Call Start before enqueueing.
func NewWorker(source Source, store blob.Store, opts ...Option) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{
		source:    source,
		store:     store,
		logger:    discardLogger{},
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
		prefix:    defaultPrefix,
		defaults:  []Format{FormatJSON},
		expiry:    blob.DefaultURLExpiry,
		queueSize: defaultQueueSize,
		jobs:      make(map[string]*Job),
		done:      make(map[string]chan struct{}),
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(w)
	}
	w.queue = make(chan string, w.queueSize)
	return w
}

// Start begins processing queued jobs.
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.loop()
}

// Stop halts the worker and waits for the running job to finish. Jobs still
// queued are marked failed.
func (w *Worker) Stop(ctx context.Context) error {
	w.mu.Lock()
	w.stopped = true
	w.mu.Unlock()
	w.cancel()
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	for {
		select {
		case id := <-w.queue:
			w.fail(id, "export cancelled")
		default:
			return nil
		}
	}
}

func (w *Worker) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case id := <-w.queue:
			w.process(id)
		}
	}
}

// Enqueue validates req and schedules it, returning the queued job.
func (w *Worker) Enqueue(ctx context.Context, req Request) (Job, error) {
	if err := ctx.Err(); err != nil {
		return Job{}, err
	}
	if _, err := domain.ParseEntityType(string(req.Kind)); err != nil {
		return Job{}, err
	}
	requested := req.Formats
	if len(requested) == 0 {
		requested = w.defaults
	}
	formats := make([]Format, 0, len(requested))
	seen := make(map[Format]struct{}, len(requested))
	for _, f := range requested {
		parsed, err := ParseFormat(string(f))
		if err != nil {
			return Job{}, err
		}
		if _, dup := seen[parsed]; dup {
			continue
		}
		seen[parsed] = struct{}{}
		formats = append(formats, parsed)
	}

	now := w.now()
	job := &Job{
		ID:          w.newID(),
		Kind:        req.Kind,
		Criteria:    req.Criteria,
		Formats:     formats,
		RequestedBy: req.RequestedBy,
		Status:      StatusQueued,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	job.Criteria = job.copy().Criteria

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return Job{}, ErrStopped
	}
	select {
	case w.queue <- job.ID:
	default:
		return Job{}, ErrQueueFull
	}
	w.jobs[job.ID] = job
	w.done[job.ID] = make(chan struct{})
	w.order = append(w.order, job.ID)
	w.logger.Info("export queued", "export", job.ID, "kind", string(job.Kind), "formats", len(formats))
	return job.copy(), nil
}

// Get returns a snapshot of the job with id.
func (w *Worker) Get(id string) (Job, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	job, ok := w.jobs[id]
	if !ok {
		return Job{}, false
	}
	return job.copy(), true
}

// Jobs returns snapshots of every job in enqueue order.
func (w *Worker) Jobs() []Job {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]Job, 0, len(w.order))
	for _, id := range w.order {
		out = append(out, w.jobs[id].copy())
	}
	return out
}

// Wait blocks until the job with id reaches a terminal status.
func (w *Worker) Wait(ctx context.Context, id string) (Job, error) {
	w.mu.RLock()
	done, ok := w.done[id]
	w.mu.RUnlock()
	if !ok {
		return Job{}, fmt.Errorf("%w: %s", ErrUnknownJob, id)
	}
	select {
	case <-done:
		job, _ := w.Get(id)
		return job, nil
	case <-ctx.Done():
		return Job{}, ctx.Err()
	}
}

func (w *Worker) process(id string) {
	job, ok := w.Get(id)
	if !ok {
		return
	}
	w.update(id, func(j *Job) { j.Status = StatusRunning })

	records, err := w.source.Query(w.ctx, job.Kind, job.Criteria)
	if err != nil {
		w.fail(id, fmt.Sprintf("query %s: %v", job.Kind, err))
		return
	}
	r := &renderer{kind: job.Kind, criteria: job.Criteria, records: records, now: w.now()}

	artifacts := make([]Artifact, 0, len(job.Formats))
	for _, format := range job.Formats {
		out, err := r.render(w.ctx, format)
		if err != nil {
			w.fail(id, err.Error())
			return
		}
		artifact, err := w.storeArtifact(id, job.Kind, out, len(records))
		if err != nil {
			w.fail(id, err.Error())
			return
		}
		artifacts = append(artifacts, artifact)
	}

	if w.sink != nil {
		table, err := r.tabulate()
		if err == nil {
			err = w.sink.WriteTable(w.ctx, table)
		}
		if err != nil {
			w.fail(id, fmt.Sprintf("publish report: %v", err))
			return
		}
	}

	w.finish(id, StatusSucceeded, "", func(j *Job) {
		j.Rows = len(records)
		j.Artifacts = artifacts
	})
}

func (w *Worker) storeArtifact(id string, kind domain.EntityType, out rendered, rows int) (Artifact, error) {
	key := path.Join(w.prefix, id, string(kind)+"."+string(out.format))
	info, err := w.store.Put(w.ctx, key, bytes.NewReader(out.payload), blob.PutOptions{
		ContentType: out.contentType,
		Metadata: map[string]string{
			"export": id,
			"kind":   string(kind),
			"rows":   strconv.Itoa(rows),
		},
	})
	if err != nil {
		return Artifact{}, fmt.Errorf("store artifact %s: %w", key, err)
	}
	artifact := Artifact{
		Format:      out.format,
		Key:         info.Key,
		ContentType: out.contentType,
		Size:        info.Size,
		Rows:        rows,
		ETag:        info.ETag,
		URL:         info.URL,
	}
	url, err := w.store.PresignURL(w.ctx, info.Key, blob.SignedURLOptions{Method: "GET", Expiry: w.expiry})
	switch {
	case err == nil:
		artifact.URL = url
	case errors.Is(err, blob.ErrUnsupported):
	default:
		w.logger.Warn("presign artifact failed", "export", id, "key", info.Key, "error", err)
	}
	return artifact, nil
}

func (w *Worker) update(id string, mutate func(*Job)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if job, ok := w.jobs[id]; ok {
		mutate(job)
		job.UpdatedAt = w.now()
	}
}

func (w *Worker) fail(id, reason string) {
	w.finish(id, StatusFailed, reason, nil)
}

func (w *Worker) finish(id string, status Status, reason string, mutate func(*Job)) {
	now := w.now()
	w.mu.Lock()
	job, ok := w.jobs[id]
	if !ok || job.Status.Terminal() {
		w.mu.Unlock()
		return
	}
	if mutate != nil {
		mutate(job)
	}
	job.Status = status
	job.Error = reason
	job.UpdatedAt = now
	job.CompletedAt = &now
	snapshot := job.copy()
	done := w.done[id]
	w.mu.Unlock()

	if status == StatusFailed {
		w.logger.Error("export failed", "export", id, "kind", string(snapshot.Kind), "error", reason)
	} else {
		w.logger.Info("export finished", "export", id, "kind", string(snapshot.Kind), "rows", snapshot.Rows, "artifacts", len(snapshot.Artifacts))
	}
	if w.notifier != nil {
		if err := w.notifier.ExportFinished(context.WithoutCancel(w.ctx), snapshot); err != nil {
			w.logger.Warn("export notification failed", "export", id, "error", err)
		}
	}
	close(done)
}
