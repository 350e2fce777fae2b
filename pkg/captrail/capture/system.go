// Package capture wires the input pipeline together: events offered by a
// source pass the filters into a bounded queue, the dispatcher tick drains
// them through the aggregation buffer into the log writer, and the
// foreground window is polled for transitions.
//
// Concurrency model: the queue carries events from the producer side (hook
// callbacks) to the single dispatcher under its own lock, so producers
// never wait on file I/O. Everything downstream of the queue - tracker,
// buffer, writer, handler - is guarded by the system lock. Filters are
// swapped atomically and read lock-free on the producer path.
package capture

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/captrail/captrail/pkg/captrail/buffer"
	"github.com/captrail/captrail/pkg/captrail/config"
	"github.com/captrail/captrail/pkg/captrail/errs"
	"github.com/captrail/captrail/pkg/captrail/event"
	"github.com/captrail/captrail/pkg/captrail/history"
	"github.com/captrail/captrail/pkg/captrail/logwriter"
	"github.com/captrail/captrail/pkg/captrail/observability"
	"github.com/captrail/captrail/pkg/captrail/queue"
	"github.com/captrail/captrail/pkg/captrail/source"
	"github.com/captrail/captrail/pkg/captrail/window"
)

// Handler consumes events drained from the queue. The default handler
// formats and persists them.
type Handler func(event.Event)

// Option customizes a System.
type Option func(*System)

// WithLogger sets the operational logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *System) { s.logger = logger }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(s *System) { s.metrics = m }
}

// WithSpans sets the span manager.
func WithSpans(sm observability.SpanManager) Option {
	return func(s *System) { s.spans = sm }
}

// WithClock overrides the time source. For tests.
func WithClock(clock func() time.Time) Option {
	return func(s *System) { s.clock = clock }
}

// WithHistory records sessions and rotations into store.
func WithHistory(store history.Store) Option {
	return func(s *System) { s.hist = store }
}

// WithSource sets the input source the dispatcher polls and pumps.
func WithSource(src source.Source) Option {
	return func(s *System) { s.src = src }
}

// WithWindowValidator filters foreground window observations.
func WithWindowValidator(v window.Validator) Option {
	return func(s *System) { s.validator = v }
}

// System is the capture pipeline. Create with New, run with Start, and
// shut down with Stop then Close.
type System struct {
	cfg       config.Config
	logger    *slog.Logger
	metrics   observability.MetricsRecorder
	spans     observability.SpanManager
	stats     *observability.Registry
	clock     func() time.Time
	validator window.Validator

	sessionID string
	queue     *queue.Queue[event.Event]
	filters   atomic.Pointer[event.Filters]
	active    atomic.Bool
	started   atomic.Bool

	mu      sync.Mutex // guards everything below
	tracker *window.Tracker
	buf     *buffer.Buffer // nil when buffering is off
	writer  *logwriter.Writer
	handler Handler
	src     source.Source
	hist    history.Store

	sessionSpan trace.Span
	lastFlush   time.Time
	lastErr     error

	done chan struct{}
	wg   sync.WaitGroup
}

// New builds a pipeline from cfg. The log file is opened immediately; a
// failure there is fatal and nothing else is initialized.
func New(cfg config.Config, opts ...Option) (*System, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errs.Initialization(err, "validate config")
	}

	s := &System{
		cfg:       cfg,
		metrics:   observability.NoopMetrics{},
		spans:     observability.NoopSpanManager{},
		stats:     &observability.Registry{},
		clock:     time.Now,
		sessionID: uuid.NewString(),
	}
	for _, opt := range opts {
		opt(s)
	}

	filters := event.Filters{
		CaptureKeyboard:      cfg.Filters.CaptureKeyboard,
		CaptureMouse:         cfg.Filters.CaptureMouse,
		CaptureWindowChanges: cfg.Filters.CaptureWindowChanges,
		IgnoreInjected:       cfg.Filters.IgnoreInjected,
	}
	s.filters.Store(&filters)

	q, err := queue.New[event.Event](cfg.QueueCapacity)
	if err != nil {
		return nil, errs.Initialization(err, "create event queue")
	}
	s.queue = q

	s.writer, err = logwriter.Open(logwriter.Options{
		Path:    cfg.LogPath,
		MaxSize: cfg.MaxFileSize,
		Rotate:  cfg.RotateLogs,
		Retry: errs.RetryConfig{
			MaxAttempts: cfg.RetryAttempts,
			Backoff:     cfg.RetryBackoff.Std(),
		},
		Logger:   s.logger,
		Metrics:  s.metrics,
		Stats:    s.stats,
		OnRotate: s.recordRotation,
	})
	if err != nil {
		return nil, err
	}

	if cfg.BufferEvents {
		s.buf, err = buffer.New(cfg.BufferCapacity, s.writer)
		if err != nil {
			s.writer.Close()
			return nil, errs.Initialization(err, "create aggregation buffer")
		}
	}

	s.tracker = window.NewTracker(s.validator)
	s.handler = s.persist
	return s, nil
}

// recordRotation mirrors writer rotations into session history. Called
// from the writer with its lock held, so it stays off the system lock.
func (s *System) recordRotation(archivePath string, sizeBytes int64) {
	if s.hist == nil {
		return
	}
	err := s.hist.RecordRotation(history.Rotation{
		SessionID:   s.sessionID,
		ArchivePath: archivePath,
		SizeBytes:   sizeBytes,
		RotatedAt:   s.clock(),
	})
	if err != nil && s.logger != nil {
		s.logger.Warn("recording rotation failed", slog.String("error", err.Error()))
	}
}

// OnRawEvent implements source.Sink. It is the producer path: a lock-free
// filter check followed by a non-blocking enqueue. A filtered-out event
// reports true (nothing went wrong); false means the pipeline is inactive
// or the queue was full and the event is gone.
func (s *System) OnRawEvent(evt event.Event) bool {
	if !s.active.Load() {
		return false
	}

	if !s.filters.Load().ShouldProcess(evt) {
		return true
	}

	if !s.queue.Enqueue(evt) {
		s.stats.QueueOverflows.Add(1)
		s.stats.DroppedEvents.Add(1)
		s.metrics.RecordDrop(context.Background(), evt.Kind.String(), "queue_full")
		observability.LogQueueOverflow(s.logger, evt.Kind.String())
		return false
	}

	s.stats.TotalEvents.Add(1)
	s.metrics.RecordEvent(context.Background(), evt.Kind.String())
	return true
}

// IsActive implements source.Sink.
func (s *System) IsActive() bool {
	return s.active.Load()
}

// Start begins capture: the session is registered, the source attached,
// and the dispatcher goroutine launched. Returns an error if the system
// is already running.
func (s *System) Start(ctx context.Context) error {
	if !s.active.CompareAndSwap(false, true) {
		return errors.New("capture already running")
	}
	s.started.Store(true)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.hist != nil {
		err := s.hist.StartSession(history.Session{
			ID:        s.sessionID,
			LogPath:   s.cfg.LogPath,
			StartedAt: s.clock(),
		})
		if err != nil && s.logger != nil {
			s.logger.Warn("recording session start failed", slog.String("error", err.Error()))
		}
	}

	_, s.sessionSpan = s.spans.StartSessionSpan(ctx, s.sessionID, s.cfg.LogPath)

	if s.src != nil {
		if err := s.src.Start(s); err != nil {
			s.active.Store(false)
			s.spans.EndSpanWithError(s.sessionSpan, err)
			return errs.Initialization(err, "start input source")
		}
	}

	s.lastFlush = s.clock()
	s.done = make(chan struct{})

	s.wg.Add(1)
	go s.run(ctx)

	observability.LogCaptureStart(s.logger, s.sessionID, s.cfg.LogPath)
	return nil
}

// run is the dispatcher loop: one Tick per poll interval until Stop or
// context cancellation.
func (s *System) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.PollInterval.Std())
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs one dispatcher cycle in its fixed order: poll the foreground
// window, pump the source, drain the queue, then apply the flush policy.
func (s *System) Tick(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tickCtx, span := s.spans.StartTickSpan(ctx)

	s.pollWindowLocked()

	if s.src != nil {
		s.src.Pump()
	}

	s.drainLocked()

	switch {
	case s.cfg.Mode == config.ModeDebug:
		s.flushLocked(tickCtx)
	case s.clock().Sub(s.lastFlush) >= s.cfg.FlushInterval.Std():
		s.flushLocked(tickCtx)
	default:
		s.maybeFlushLocked(tickCtx)
	}

	s.spans.EndSpanWithError(span, nil)
}

// pollWindowLocked checks the foreground window and routes a transition
// through the same admission path raw events take.
func (s *System) pollWindowLocked() {
	if s.src == nil {
		return
	}
	obs, ok := s.src.Foreground()
	if !ok {
		return
	}
	evt, changed := s.tracker.Observe(s.clock(), obs)
	if !changed {
		return
	}
	s.stats.WindowChanges.Add(1)
	s.OnRawEvent(evt)
}

// drainLocked empties the queue through the handler in FIFO order.
func (s *System) drainLocked() {
	for {
		evt, ok := s.queue.Dequeue()
		if !ok {
			return
		}
		s.handler(evt)
	}
}

// persist is the default handler: format the event and hand the line to
// the buffer, or straight to the writer when buffering is off.
func (s *System) persist(evt event.Event) {
	line := evt.Format()
	if line == "" {
		return
	}

	if s.buf == nil {
		if err := s.writer.Write([]byte(line)); err != nil {
			s.lastErr = err
		}
		return
	}

	if !s.buf.Append([]byte(line)) {
		s.stats.BufferOverflows.Add(1)
		s.stats.DroppedEvents.Add(1)
		s.metrics.RecordDrop(context.Background(), evt.Kind.String(), "buffer_full")
		observability.LogBufferOverflow(s.logger, len(line))
		return
	}
	s.stats.EventsBuffered.Add(1)
}

// flushLocked drains the buffer unconditionally and resets the flush clock.
func (s *System) flushLocked(ctx context.Context) error {
	if s.buf == nil {
		s.lastFlush = s.clock()
		return nil
	}

	flushCtx, span := s.spans.StartFlushSpan(ctx, s.buf.Len())
	n, err := s.buf.Flush()

	s.stats.TotalFlushes.Add(1)
	if err != nil {
		s.stats.FailedFlushes.Add(1)
		s.lastErr = err
	}
	s.metrics.RecordFlush(flushCtx, n, err)
	s.spans.EndSpanWithError(span, err)
	s.lastFlush = s.clock()
	return err
}

// maybeFlushLocked flushes only when the buffer crossed its threshold.
func (s *System) maybeFlushLocked(ctx context.Context) {
	if s.buf == nil {
		return
	}
	n, err := s.buf.MaybeFlush()
	if n == 0 && err == nil {
		return
	}

	s.stats.TotalFlushes.Add(1)
	if err != nil {
		s.stats.FailedFlushes.Add(1)
		s.lastErr = err
	}
	s.metrics.RecordFlush(ctx, n, err)
	s.lastFlush = s.clock()
}

// Subscribe replaces the event handler. Passing nil restores the default
// persisting handler. The new handler takes effect on the next tick.
func (s *System) Subscribe(h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h == nil {
		s.handler = s.persist
		return
	}
	s.handler = h
}

// Flush forces the buffer to the writer immediately.
func (s *System) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked(context.Background())
}

// Rotate forces a log rotation regardless of file size.
func (s *System) Rotate() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writer.Rotate(); err != nil {
		s.lastErr = err
		return err
	}
	return nil
}

// Stop halts capture: the producer gate closes first so nothing new is
// admitted, then the dispatcher drains what remains and flushes. The
// writer stays open; call Close to release it. Idempotent.
func (s *System) Stop() error {
	if !s.active.CompareAndSwap(true, false) {
		return nil
	}

	close(s.done)
	s.wg.Wait()

	s.mu.Lock()
	if s.src != nil {
		s.src.Pump()
	}
	s.drainLocked()
	s.flushLocked(context.Background())
	span := s.sessionSpan
	s.mu.Unlock()

	if s.src != nil {
		if err := s.src.Stop(); err != nil && s.logger != nil {
			s.logger.Warn("stopping input source failed", slog.String("error", err.Error()))
		}
	}

	s.spans.EndSpanWithError(span, nil)
	observability.LogCaptureStop(s.logger, s.sessionID, s.stats.Snapshot())
	return nil
}

// Close stops capture if needed, records the session's end, and releases
// the writer and history store.
func (s *System) Close() error {
	s.Stop()

	var closeErrs []error

	if s.hist != nil {
		if s.started.Load() {
			err := s.hist.EndSession(s.sessionID, s.clock(), s.stats.Snapshot())
			if err != nil && !errors.Is(err, history.ErrNotFound) {
				closeErrs = append(closeErrs, err)
			}
		}
		if err := s.hist.Close(); err != nil {
			closeErrs = append(closeErrs, err)
		}
	}

	if err := s.writer.Close(); err != nil {
		closeErrs = append(closeErrs, err)
	}

	return errors.Join(closeErrs...)
}

// Stats returns a snapshot of the pipeline counters.
func (s *System) Stats() observability.Snapshot {
	return s.stats.Snapshot()
}

// LastError returns the most recent recoverable error, or nil.
func (s *System) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// SessionID returns the session's UUID.
func (s *System) SessionID() string {
	return s.sessionID
}

// SetFilters atomically replaces the capture filters. Producers observe
// the new filters on their next event.
func (s *System) SetFilters(f event.Filters) {
	s.filters.Store(&f)
}

// Filters returns the current capture filters.
func (s *System) Filters() event.Filters {
	return *s.filters.Load()
}
