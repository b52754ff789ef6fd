package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/yairfalse/shelfwatch/extractor"
	"github.com/yairfalse/shelfwatch/notify"
	"github.com/yairfalse/shelfwatch/storage"
	"github.com/yairfalse/shelfwatch/types"
)

// checkTarget runs the full pipeline for one target: probe (with retries),
// diff against the confirmed baseline, debounce, commit, and — only after
// the commit — dispatch. The caller holds the target's single-flight lock.
func (s *Scheduler) checkTarget(ctx context.Context, target types.MonitoredTarget, manual bool) types.RunRecord {
	started := time.Now().UTC()
	s.logger.LogCheckStart(ctx, target.ID, manual)

	rec := types.RunRecord{
		TargetID:  target.ID,
		StartedAt: started,
	}

	snap, attempts, err := s.probeWithRetry(ctx, target)
	rec.Attempts = attempts
	if err != nil {
		rec.Outcome = types.RunFailed
		rec.Error = err.Error()
		rec.FinishedAt = time.Now().UTC()

		kind := string(extractor.KindOf(err))
		s.logger.LogProbeError(ctx, target.ID, kind, err)
		s.recordOutcome(ctx, target, rec)

		// a failed probe never touches the baseline; alerting is policy
		if s.opts.NotifyOnError {
			ev := s.dispatcher.Dispatch(ctx, notify.RenderError(target, err))
			s.appendNotification(ev)
		}
		return rec
	}
	rec.Method = snap.Method

	baseline, err := s.store.LoadBaseline(target.ID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		rec.Outcome = types.RunFailed
		rec.Error = err.Error()
		rec.FinishedAt = time.Now().UTC()
		s.recordOutcome(ctx, target, rec)
		return rec
	}

	cs := s.engine.Diff(snap, baseline.ConfirmedSnapshot())
	confirmed, updated := s.policy.Confirm(snap, baseline)
	updated.TargetID = target.ID

	notifiable := s.filterChangeSet(target, cs)
	shouldNotify := confirmed && !notifiable.Empty() && !updated.AlreadyNotified(snap)
	if shouldNotify {
		updated.MarkNotified(snap)
	}

	// commit before dispatch: a crash in between under-notifies, never
	// over-notifies against stale state
	if _, err := s.store.CompareAndSwap(updated); err != nil {
		rec.Outcome = types.RunFailed
		rec.Error = "baseline commit: " + err.Error()
		rec.FinishedAt = time.Now().UTC()
		s.logger.Warn().Err(err).Str("target_id", target.ID).
			Msg("baseline commit lost, next cycle will recover")
		s.recordOutcome(ctx, target, rec)
		return rec
	}

	if confirmed {
		s.logger.LogChangeConfirmed(ctx, target.ID, len(cs.AddedItemIDs), len(cs.RemovedItemIDs))
		if s.metrics != nil {
			s.metrics.RecordChangeConfirmed(ctx, string(target.Kind))
		}
	}

	if shouldNotify {
		ev := s.dispatcher.Dispatch(ctx, notify.Render(target, notifiable, snap))
		s.appendNotification(ev)
		rec.Notified = true
	}

	rec.Outcome = types.RunSuccess
	rec.FinishedAt = time.Now().UTC()
	s.recordOutcome(ctx, target, rec)
	return rec
}

// probeWithRetry calls the prober up to Retries+1 times with a fixed delay
// between attempts. Each attempt gets its own timeout.
func (s *Scheduler) probeWithRetry(ctx context.Context, target types.MonitoredTarget) (types.Snapshot, int, error) {
	var lastErr error

	attempts := s.opts.Retries + 1
	for attempt := 1; attempt <= attempts; attempt++ {
		probeCtx, cancel := context.WithTimeout(ctx, s.opts.ProbeTimeout)
		snap, err := s.prober.Probe(probeCtx, target)
		cancel()

		if err == nil {
			return snap, attempt, nil
		}
		lastErr = err

		if attempt < attempts {
			select {
			case <-time.After(s.opts.RetryDelay):
			case <-ctx.Done():
				return types.Snapshot{}, attempt, ctx.Err()
			}
		}
	}
	return types.Snapshot{}, attempts, lastErr
}

// filterChangeSet reduces a change set to what this target's configuration
// wants alerts for: size/color criteria on variant transitions, and the
// added/removed notification toggles.
func (s *Scheduler) filterChangeSet(target types.MonitoredTarget, cs types.ChangeSet) types.ChangeSet {
	out := cs

	if !s.opts.NotifyOnAdded {
		out.AddedItemIDs = nil
	}
	if !s.opts.NotifyOnRemoved {
		out.RemovedItemIDs = nil
	}

	if len(target.TargetSizes) > 0 || len(target.TargetColors) > 0 {
		var kept []types.VariantTransition
		for _, tr := range cs.VariantTransitions {
			if target.WantsVariant(tr.Size, tr.Color) {
				kept = append(kept, tr)
			}
		}
		out.VariantTransitions = kept
	}

	return out
}

func (s *Scheduler) recordOutcome(ctx context.Context, target types.MonitoredTarget, rec types.RunRecord) {
	s.logger.LogCheckComplete(ctx, target.ID, string(rec.Outcome), float64(rec.Duration().Milliseconds()))
	if s.metrics != nil {
		s.metrics.RecordCheck(ctx, string(rec.Outcome), string(target.Kind))
		s.metrics.RecordCheckDuration(ctx, rec.Duration().Seconds(), string(rec.Outcome))
	}
}

func (s *Scheduler) appendNotification(ev types.NotificationEvent) {
	if err := s.runlog.AppendNotification(ev); err != nil {
		s.logger.Error().Err(err).Str("target_id", ev.TargetID).Msg("failed to append notification event")
	}
	if s.metrics != nil {
		for _, d := range ev.Deliveries {
			s.metrics.RecordDelivery(context.Background(), d.Channel, string(d.Status))
		}
	}
}
