// Package scheduler owns the run loop: periodic ticks, a bounded worker
// pool for concurrent per-target checks, per-target single-flight locking,
// and manual-trigger admission.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/yairfalse/shelfwatch/confirm"
	"github.com/yairfalse/shelfwatch/diff"
	"github.com/yairfalse/shelfwatch/notify"
	"github.com/yairfalse/shelfwatch/telemetry"
	"github.com/yairfalse/shelfwatch/types"
)

// ErrCheckInFlight is returned when a trigger targets a target whose check
// is already running. The caller gets the rejection synchronously; nothing
// is queued.
var ErrCheckInFlight = errors.New("scheduler: check already in flight for target")

// ErrUnknownTarget is returned when a trigger names a target that is not
// registered.
var ErrUnknownTarget = errors.New("scheduler: unknown target")

// Prober probes one target. Implemented by the extractor registry.
type Prober interface {
	Probe(ctx context.Context, target types.MonitoredTarget) (types.Snapshot, error)
}

// Store is the baseline and target persistence the scheduler needs.
type Store interface {
	LoadBaseline(targetID string) (*types.Baseline, error)
	CompareAndSwap(b *types.Baseline) (int64, error)
	ListTargets() ([]types.MonitoredTarget, error)
}

// Dispatcher fans a rendered message out to the configured channels.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg notify.Message) types.NotificationEvent
}

// RunLog records run and notification audit entries.
type RunLog interface {
	AppendRun(rec types.RunRecord) error
	AppendNotification(ev types.NotificationEvent) error
}

// Options tune the scheduler's loop and retry behavior.
type Options struct {
	Interval     time.Duration
	Parallelism  int
	ProbeTimeout time.Duration
	Retries      int
	RetryDelay   time.Duration

	NotifyOnAdded   bool
	NotifyOnRemoved bool
	NotifyOnError   bool
}

func (o Options) withDefaults() Options {
	if o.Interval <= 0 {
		o.Interval = 5 * time.Minute
	}
	if o.Parallelism <= 0 {
		o.Parallelism = 4
	}
	if o.ProbeTimeout <= 0 {
		o.ProbeTimeout = 30 * time.Second
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = 5 * time.Second
	}
	return o
}

// Scheduler drives checks. One instance owns all scheduling state; there
// is no ambient global.
type Scheduler struct {
	store      Store
	prober     Prober
	engine     *diff.Engine
	policy     *confirm.Policy
	dispatcher Dispatcher
	runlog     RunLog
	logger     *telemetry.Logger
	metrics    *telemetry.MonitorMetrics
	opts       Options

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	loopWG  sync.WaitGroup

	flightMu sync.Mutex
	inFlight map[string]struct{}
}

// New wires a scheduler. metrics may be nil (checks still run, unmetered).
func New(
	store Store,
	prober Prober,
	policy *confirm.Policy,
	dispatcher Dispatcher,
	runlog RunLog,
	logger *telemetry.Logger,
	metrics *telemetry.MonitorMetrics,
	opts Options,
) *Scheduler {
	return &Scheduler{
		store:      store,
		prober:     prober,
		engine:     diff.NewEngine(),
		policy:     policy,
		dispatcher: dispatcher,
		runlog:     runlog,
		logger:     logger,
		metrics:    metrics,
		opts:       opts.withDefaults(),
		inFlight:   make(map[string]struct{}),
	}
}

// Start begins periodic ticks. Idempotent: starting a running scheduler
// does nothing.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})

	s.loopWG.Add(1)
	go s.loop(s.stopCh)

	s.logger.Info().
		Dur("interval", s.opts.Interval).
		Int("parallelism", s.opts.Parallelism).
		Msg("scheduler started")
}

// Stop prevents future ticks. Idempotent. In-flight checks are not
// cancelled; they finish and commit their results.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.running = false
	close(s.stopCh)
	s.loopWG.Wait()

	s.logger.Info().Msg("scheduler stopped")
}

// Running reports whether the periodic loop is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Status is a point-in-time view for the admin surface.
type Status struct {
	Running  bool          `json:"running"`
	Interval time.Duration `json:"interval"`
	InFlight []string      `json:"in_flight,omitempty"`
}

// Status returns the scheduler's current state.
func (s *Scheduler) Status() Status {
	st := Status{
		Running:  s.Running(),
		Interval: s.opts.Interval,
	}
	s.flightMu.Lock()
	for id := range s.inFlight {
		st.InFlight = append(st.InFlight, id)
	}
	s.flightMu.Unlock()
	return st
}

func (s *Scheduler) loop(stopCh chan struct{}) {
	defer s.loopWG.Done()

	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	// First cycle right away; waiting a full interval before the first
	// check makes manual testing miserable.
	s.runCycle(context.Background())

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			s.runCycle(context.Background())
		}
	}
}

// runCycle checks all registered targets concurrently up to the
// parallelism cap. One target's failure or slowness never delays the
// others beyond pool capacity.
func (s *Scheduler) runCycle(ctx context.Context) {
	targets, err := s.store.ListTargets()
	if err != nil {
		s.logger.Error().Err(err).Msg("list targets failed, skipping cycle")
		return
	}
	if s.metrics != nil {
		s.metrics.RecordTargetsWatched(ctx, int64(len(targets)))
	}
	if len(targets) == 0 {
		return
	}

	sem := make(chan struct{}, s.opts.Parallelism)
	var wg sync.WaitGroup

	for _, target := range targets {
		wg.Add(1)
		sem <- struct{}{}

		go func(t types.MonitoredTarget) {
			defer wg.Done()
			defer func() { <-sem }()

			if !s.tryAcquire(t.ID) {
				// scheduled tick overlapping a slow check: skip, audit
				rec := skippedRecord(t.ID)
				s.appendRun(rec)
				return
			}
			defer s.release(t.ID)

			rec := s.checkTarget(ctx, t, false)
			s.appendRun(rec)
		}(target)
	}

	wg.Wait()
}

// TriggerNow runs an out-of-band check for one target, synchronously. If
// that target is already checking, it returns ErrCheckInFlight immediately
// rather than queueing a second probe.
func (s *Scheduler) TriggerNow(ctx context.Context, targetID string) (types.RunRecord, error) {
	target, err := s.findTarget(targetID)
	if err != nil {
		return types.RunRecord{}, err
	}

	if !s.tryAcquire(target.ID) {
		if s.metrics != nil {
			s.metrics.RecordTriggerConflict(ctx)
		}
		return types.RunRecord{}, ErrCheckInFlight
	}
	defer s.release(target.ID)

	rec := s.checkTarget(ctx, target, true)
	s.appendRun(rec)
	return rec, nil
}

// TriggerAll runs an out-of-band cycle over every target. Admission is
// per-target: targets already checking yield skipped-locked records
// instead of failing the whole trigger.
func (s *Scheduler) TriggerAll(ctx context.Context) ([]types.RunRecord, error) {
	targets, err := s.store.ListTargets()
	if err != nil {
		return nil, err
	}

	records := make([]types.RunRecord, len(targets))
	sem := make(chan struct{}, s.opts.Parallelism)
	var wg sync.WaitGroup

	for i, target := range targets {
		wg.Add(1)
		sem <- struct{}{}

		go func(i int, t types.MonitoredTarget) {
			defer wg.Done()
			defer func() { <-sem }()

			if !s.tryAcquire(t.ID) {
				records[i] = skippedRecord(t.ID)
			} else {
				records[i] = s.checkTarget(ctx, t, true)
				s.release(t.ID)
			}
			s.appendRun(records[i])
		}(i, target)
	}

	wg.Wait()
	return records, nil
}

// Resend re-dispatches a previously rendered message on all channels.
// Delivery failures are recorded, not retried automatically; this is the
// manual retry path for them.
func (s *Scheduler) Resend(ctx context.Context, msg notify.Message) types.NotificationEvent {
	ev := s.dispatcher.Dispatch(ctx, msg)
	s.appendNotification(ev)
	return ev
}

func (s *Scheduler) findTarget(targetID string) (types.MonitoredTarget, error) {
	targets, err := s.store.ListTargets()
	if err != nil {
		return types.MonitoredTarget{}, err
	}
	for _, t := range targets {
		if t.ID == targetID {
			return t, nil
		}
	}
	return types.MonitoredTarget{}, fmt.Errorf("%w: %s", ErrUnknownTarget, targetID)
}

func (s *Scheduler) tryAcquire(targetID string) bool {
	s.flightMu.Lock()
	defer s.flightMu.Unlock()
	if _, busy := s.inFlight[targetID]; busy {
		return false
	}
	s.inFlight[targetID] = struct{}{}
	return true
}

func (s *Scheduler) release(targetID string) {
	s.flightMu.Lock()
	defer s.flightMu.Unlock()
	delete(s.inFlight, targetID)
}

func (s *Scheduler) appendRun(rec types.RunRecord) {
	if err := s.runlog.AppendRun(rec); err != nil {
		s.logger.Error().Err(err).Str("target_id", rec.TargetID).Msg("failed to append run record")
	}
}

func skippedRecord(targetID string) types.RunRecord {
	now := time.Now().UTC()
	return types.RunRecord{
		TargetID:   targetID,
		StartedAt:  now,
		FinishedAt: now,
		Outcome:    types.RunSkippedLocked,
	}
}
