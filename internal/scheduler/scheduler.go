package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/finchworks/hearth-core/internal/routine"
)

// Logger defines the logging interface used by the scheduler.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Executor is the interface the scheduler needs from the execution
// engine. Execute blocks until the run reaches a terminal state, so
// the scheduler always calls it in a goroutine (fire-and-continue).
type Executor interface {
	Execute(ctx context.Context, routineID, triggerType string) (*routine.Execution, error)
}

// FiredSink receives a notification each time a trigger fires, for
// publication to the presentation layer. Optional and fire-and-forget.
type FiredSink interface {
	PublishFired(routineID string, triggerKind string)
}

// TriggerRecorder receives one telemetry point per trigger firing.
// Implemented by the InfluxDB client; may be nil.
type TriggerRecorder interface {
	RecordTriggerFired(routineID, triggerType string)
}

// Config holds the scheduler's timing parameters.
type Config struct {
	// TickInterval is the evaluation cadence. Must be at most one
	// minute or a time-of-day trigger's window can be skipped.
	TickInterval time.Duration

	// FireWindow is how long after a sunrise/sunset instant the
	// trigger is still considered due. Covers the gap between the
	// event and the tick that observes it.
	FireWindow time.Duration

	// Location is the site's time zone; all calendar-day comparisons
	// use it.
	Location *time.Location
}

// Scheduler periodically evaluates every enabled routine's trigger
// against current time, astronomical events, and presence signals, and
// requests execution when due.
//
// Firing is guarded to at most once per window: time-of-day, sunrise,
// and sunset triggers fire at most once per local calendar day, with
// the last-fired timestamp persisted before the execution launches.
// Comparisons are anchored to calendar dates rather than durations
// since epoch, so daylight-saving shifts and manual clock adjustments
// cannot double-fire a routine for the same logical day.
type Scheduler struct {
	store    *routine.Store
	executor Executor
	clock    Clock
	sun      SunProvider
	presence PresenceSource
	fired    FiredSink
	recorder TriggerRecorder
	cfg      Config
	logger   Logger

	// lastTick detects non-monotonic time jumps between evaluations.
	lastTick time.Time
}

// New creates a trigger scheduler.
//
// sun, presence, fired, and recorder may be nil: without a sun provider
// the sunrise/sunset triggers never arm, and without a presence source
// the arrival/departure triggers never arm (fail-safe, no firing).
func New(store *routine.Store, executor Executor, clock Clock, sun SunProvider, presence PresenceSource, cfg Config, logger Logger) *Scheduler {
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = noopLogger{}
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &Scheduler{
		store:    store,
		executor: executor,
		clock:    clock,
		sun:      sun,
		presence: presence,
		cfg:      cfg,
		logger:   logger,
	}
}

// SetFiredSink wires an optional firing-event publisher.
func (s *Scheduler) SetFiredSink(sink FiredSink) {
	s.fired = sink
}

// SetTriggerRecorder wires an optional telemetry recorder.
func (s *Scheduler) SetTriggerRecorder(recorder TriggerRecorder) {
	s.recorder = recorder
}

// Run drives the evaluation loop until the context is cancelled.
// One tick's work never blocks the next: executions launch in their
// own goroutines, and one routine's failure does not prevent
// evaluation of the rest of the same tick.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("scheduler started",
		"tick_interval", s.cfg.TickInterval,
		"fire_window", s.cfg.FireWindow,
		"timezone", s.cfg.Location.String(),
	)

	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.tickOnce(ctx)
		}
	}
}

// tickOnce performs one evaluation pass over every routine.
func (s *Scheduler) tickOnce(ctx context.Context) {
	now := s.clock.Now().In(s.cfg.Location)

	if !s.lastTick.IsZero() && now.Before(s.lastTick) {
		// Calendar-date anchoring below keeps the firing guard correct
		// across the jump; nothing to repair, but worth noticing.
		s.logger.Warn("clock moved backwards between ticks",
			"previous", s.lastTick.Format(time.RFC3339),
			"now", now.Format(time.RFC3339),
		)
	}
	s.lastTick = now

	events := s.drainPresence()

	routines, err := s.store.List(ctx)
	if err != nil {
		s.logger.Error("listing routines for tick", "error", err)
		return
	}

	for i := range routines {
		r := &routines[i]
		if !r.Enabled || r.Trigger.Kind == routine.TriggerManual {
			continue
		}
		if !s.isDue(r, now, events) {
			continue
		}
		s.fire(ctx, r, now)
	}
}

// isDue reports whether the routine's trigger condition holds for "now"
// and has not already fired in the current window.
func (s *Scheduler) isDue(r *routine.Routine, now time.Time, events []PresenceEvent) bool {
	switch r.Trigger.Kind {
	case routine.TriggerTimeOfDay:
		tod := r.Trigger.TimeOfDay
		if tod == nil {
			return false
		}
		if now.Hour() != tod.Hour || now.Minute() != tod.Minute {
			return false
		}
		return !s.firedToday(r, now)

	case routine.TriggerSunrise, routine.TriggerSunset:
		if s.sun == nil {
			return false
		}
		sunriseAt, sunsetAt, ok := s.sun.SunTimes(now.Year(), now.Month(), now.Day())
		if !ok {
			return false
		}
		eventAt := sunriseAt
		if r.Trigger.Kind == routine.TriggerSunset {
			eventAt = sunsetAt
		}
		eventAt = eventAt.In(s.cfg.Location)
		if now.Before(eventAt) || now.Sub(eventAt) >= s.cfg.FireWindow {
			return false
		}
		return !s.firedToday(r, now)

	case routine.TriggerArriveHome:
		return containsPresence(events, PresenceArrived)

	case routine.TriggerLeaveHome:
		return containsPresence(events, PresenceLeft)

	default:
		return false
	}
}

// firedToday reports whether the routine already fired during the
// current local calendar day.
func (s *Scheduler) firedToday(r *routine.Routine, now time.Time) bool {
	if r.LastFired == nil {
		return false
	}
	fired := r.LastFired.In(s.cfg.Location)
	return fired.Year() == now.Year() && fired.YearDay() == now.YearDay()
}

// fire persists the firing guard, then launches the execution.
//
// MarkFired comes first: a crash between firing and completion must not
// re-fire the same window on restart. If the guard cannot be persisted
// the execution is skipped for this tick and retried on the next.
func (s *Scheduler) fire(ctx context.Context, r *routine.Routine, now time.Time) {
	if err := s.store.MarkFired(ctx, r.ID, now); err != nil {
		s.logger.Error("persisting firing guard", "routine_id", r.ID, "error", err)
		return
	}

	s.logger.Info("trigger fired",
		"routine_id", r.ID,
		"routine_name", r.Name,
		"trigger_kind", r.Trigger.Kind,
	)

	if s.fired != nil {
		s.fired.PublishFired(r.ID, string(r.Trigger.Kind))
	}
	if s.recorder != nil {
		s.recorder.RecordTriggerFired(r.ID, routine.TriggerTypeSchedule)
	}

	go func(id, name string) {
		if _, err := s.executor.Execute(ctx, id, routine.TriggerTypeSchedule); err != nil {
			if errors.Is(err, routine.ErrAlreadyRunning) {
				s.logger.Debug("scheduled run skipped, routine already executing", "routine_id", id)
				return
			}
			s.logger.Error("scheduled execution failed to start", "routine_id", id, "routine_name", name, "error", err)
		}
	}(r.ID, r.Name)
}

// drainPresence collects all presence events queued since the last tick
// without blocking.
func (s *Scheduler) drainPresence() []PresenceEvent {
	if s.presence == nil {
		return nil
	}

	var events []PresenceEvent
	for {
		select {
		case ev := <-s.presence.Events():
			events = append(events, ev)
		default:
			return events
		}
	}
}

func containsPresence(events []PresenceEvent, kind PresenceKind) bool {
	for _, ev := range events {
		if ev.Kind == kind {
			return true
		}
	}
	return false
}
