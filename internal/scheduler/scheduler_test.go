package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/finchworks/hearth-core/internal/routine"
)

// ─── Test Doubles ───────────────────────────────────────────────────────────

// fakeClock returns a fixed instant, advanced explicitly by tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// stubSun returns fixed sunrise/sunset instants for any date.
type stubSun struct {
	sunrise time.Time
	sunset  time.Time
	ok      bool
}

func (s stubSun) SunTimes(int, time.Month, int) (time.Time, time.Time, bool) {
	return s.sunrise, s.sunset, s.ok
}

// stubPresence exposes a test-fed event channel.
type stubPresence struct {
	ch chan PresenceEvent
}

func newStubPresence() *stubPresence {
	return &stubPresence{ch: make(chan PresenceEvent, 16)}
}

func (s *stubPresence) Events() <-chan PresenceEvent { return s.ch }

type execCall struct {
	routineID   string
	triggerType string
}

// mockExecutor records execution requests on a channel, since the
// scheduler launches them in goroutines.
type mockExecutor struct {
	calls chan execCall
	err   error
}

func newMockExecutor() *mockExecutor {
	return &mockExecutor{calls: make(chan execCall, 16)}
}

func (m *mockExecutor) Execute(_ context.Context, routineID, triggerType string) (*routine.Execution, error) {
	m.calls <- execCall{routineID: routineID, triggerType: triggerType}
	if m.err != nil {
		return nil, m.err
	}
	return &routine.Execution{RoutineID: routineID, Status: routine.StatusSucceeded}, nil
}

func (m *mockExecutor) awaitCall(t *testing.T) execCall {
	t.Helper()
	select {
	case call := <-m.calls:
		return call
	case <-time.After(2 * time.Second):
		t.Fatal("expected an execution request, got none")
		return execCall{}
	}
}

func (m *mockExecutor) expectNoCall(t *testing.T) {
	t.Helper()
	select {
	case call := <-m.calls:
		t.Fatalf("unexpected execution request: %+v", call)
	case <-time.After(50 * time.Millisecond):
	}
}

// memoryRepo is a minimal in-memory routine.Repository for scheduler tests.
type memoryRepo struct {
	mu            sync.Mutex
	routines      map[string]*routine.Routine
	failMarkFired bool
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{routines: make(map[string]*routine.Routine)}
}

func (m *memoryRepo) GetByID(_ context.Context, id string) (*routine.Routine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.routines[id]
	if !ok {
		return nil, routine.ErrNotFound
	}
	return r.DeepCopy(), nil
}

func (m *memoryRepo) List(_ context.Context) ([]routine.Routine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]routine.Routine, 0, len(m.routines))
	for _, r := range m.routines {
		out = append(out, *r.DeepCopy())
	}
	return out, nil
}

func (m *memoryRepo) Create(_ context.Context, r *routine.Routine) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	m.routines[r.ID] = r.DeepCopy()
	return nil
}

func (m *memoryRepo) Update(_ context.Context, r *routine.Routine) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.routines[r.ID]; !ok {
		return routine.ErrNotFound
	}
	m.routines[r.ID] = r.DeepCopy()
	return nil
}

func (m *memoryRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.routines, id)
	return nil
}

func (m *memoryRepo) MarkFired(_ context.Context, id string, firedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failMarkFired {
		return errors.New("disk full")
	}
	r, ok := m.routines[id]
	if !ok {
		return routine.ErrNotFound
	}
	fired := firedAt.UTC()
	r.LastFired = &fired
	return nil
}

func (m *memoryRepo) RecordOutcome(_ context.Context, id string, executedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.routines[id]
	if !ok {
		return routine.ErrNotFound
	}
	executed := executedAt.UTC()
	r.LastExecuted = &executed
	r.ExecutionCount++
	return nil
}

func (m *memoryRepo) CreateExecution(_ context.Context, _ *routine.Execution) error { return nil }
func (m *memoryRepo) UpdateExecution(_ context.Context, _ *routine.Execution) error { return nil }
func (m *memoryRepo) GetExecution(_ context.Context, _ string) (*routine.Execution, error) {
	return nil, routine.ErrExecutionNotFound
}
func (m *memoryRepo) ListExecutions(_ context.Context, _ string, _ int) ([]routine.Execution, error) {
	return nil, nil
}

// ─── Test Setup ─────────────────────────────────────────────────────────────

type schedulerFixture struct {
	sched    *Scheduler
	store    *routine.Store
	repo     *memoryRepo
	clock    *fakeClock
	executor *mockExecutor
	presence *stubPresence
}

func setupScheduler(t *testing.T, sun SunProvider) *schedulerFixture {
	t.Helper()

	repo := newMemoryRepo()
	store := routine.NewStore(repo)
	clock := &fakeClock{now: time.Date(2026, time.April, 10, 6, 0, 0, 0, time.UTC)}
	executor := newMockExecutor()
	presence := newStubPresence()

	sched := New(store, executor, clock, sun, presence, Config{
		TickInterval: 15 * time.Second,
		FireWindow:   time.Minute,
		Location:     time.UTC,
	}, nil)

	return &schedulerFixture{
		sched:    sched,
		store:    store,
		repo:     repo,
		clock:    clock,
		executor: executor,
		presence: presence,
	}
}

func (f *schedulerFixture) addRoutine(t *testing.T, trigger routine.Trigger) *routine.Routine {
	t.Helper()
	r := routine.NewRoutine("Scheduled Routine", nil, nil, nil, trigger)
	if err := f.store.Create(context.Background(), r); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return r
}

func timeOfDayTrigger(hour, minute int) routine.Trigger {
	return routine.Trigger{
		Kind:      routine.TriggerTimeOfDay,
		TimeOfDay: &routine.TimeOfDay{Hour: hour, Minute: minute},
	}
}

// ─── Time-of-Day Trigger Tests ──────────────────────────────────────────────

func TestTimeOfDayFiresInMatchingMinute(t *testing.T) {
	f := setupScheduler(t, nil)
	r := f.addRoutine(t, timeOfDayTrigger(7, 30))

	f.clock.set(time.Date(2026, time.April, 10, 7, 30, 5, 0, time.UTC))
	f.sched.tickOnce(context.Background())

	call := f.executor.awaitCall(t)
	if call.routineID != r.ID {
		t.Errorf("executed %s, want %s", call.routineID, r.ID)
	}
	if call.triggerType != routine.TriggerTypeSchedule {
		t.Errorf("triggerType = %q, want %q", call.triggerType, routine.TriggerTypeSchedule)
	}
}

func TestTimeOfDayFiresAtMostOncePerDay(t *testing.T) {
	f := setupScheduler(t, nil)
	f.addRoutine(t, timeOfDayTrigger(7, 30))
	ctx := context.Background()

	f.clock.set(time.Date(2026, time.April, 10, 7, 30, 5, 0, time.UTC))
	f.sched.tickOnce(ctx)
	f.executor.awaitCall(t)

	// Later ticks inside the same minute must not re-fire.
	f.clock.set(time.Date(2026, time.April, 10, 7, 30, 35, 0, time.UTC))
	f.sched.tickOnce(ctx)
	f.executor.expectNoCall(t)

	// The same wall-clock minute the next day fires again.
	f.clock.set(time.Date(2026, time.April, 11, 7, 30, 5, 0, time.UTC))
	f.sched.tickOnce(ctx)
	f.executor.awaitCall(t)
}

func TestTimeOfDayOutsideMinuteNotDue(t *testing.T) {
	f := setupScheduler(t, nil)
	f.addRoutine(t, timeOfDayTrigger(7, 30))

	f.clock.set(time.Date(2026, time.April, 10, 7, 29, 59, 0, time.UTC))
	f.sched.tickOnce(context.Background())
	f.executor.expectNoCall(t)

	f.clock.set(time.Date(2026, time.April, 10, 7, 31, 0, 0, time.UTC))
	f.sched.tickOnce(context.Background())
	f.executor.expectNoCall(t)
}

func TestBackwardClockJumpDoesNotRefire(t *testing.T) {
	f := setupScheduler(t, nil)
	f.addRoutine(t, timeOfDayTrigger(7, 30))
	ctx := context.Background()

	f.clock.set(time.Date(2026, time.April, 10, 7, 30, 5, 0, time.UTC))
	f.sched.tickOnce(ctx)
	f.executor.awaitCall(t)

	// Clock steps backwards into the same trigger minute: still the
	// same calendar day, so the firing guard holds.
	f.clock.set(time.Date(2026, time.April, 10, 7, 30, 1, 0, time.UTC))
	f.sched.tickOnce(ctx)
	f.executor.expectNoCall(t)
}

// ─── Eligibility Tests ──────────────────────────────────────────────────────

func TestDisabledRoutineNeverFires(t *testing.T) {
	f := setupScheduler(t, nil)
	r := f.addRoutine(t, timeOfDayTrigger(7, 30))

	r.Enabled = false
	if err := f.store.Update(context.Background(), r); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	f.clock.set(time.Date(2026, time.April, 10, 7, 30, 5, 0, time.UTC))
	f.sched.tickOnce(context.Background())
	f.executor.expectNoCall(t)
}

func TestManualRoutineNeverScheduled(t *testing.T) {
	f := setupScheduler(t, nil)
	f.addRoutine(t, routine.Trigger{Kind: routine.TriggerManual})

	f.clock.set(time.Date(2026, time.April, 10, 7, 30, 5, 0, time.UTC))
	f.sched.tickOnce(context.Background())
	f.executor.expectNoCall(t)
}

// ─── Sunrise / Sunset Trigger Tests ─────────────────────────────────────────

func TestSunriseFiresWithinWindow(t *testing.T) {
	sunriseAt := time.Date(2026, time.April, 10, 6, 12, 0, 0, time.UTC)
	sunsetAt := time.Date(2026, time.April, 10, 19, 47, 0, 0, time.UTC)
	f := setupScheduler(t, stubSun{sunrise: sunriseAt, sunset: sunsetAt, ok: true})
	f.addRoutine(t, routine.Trigger{Kind: routine.TriggerSunrise})
	ctx := context.Background()

	// Before the event: not due.
	f.clock.set(sunriseAt.Add(-time.Second))
	f.sched.tickOnce(ctx)
	f.executor.expectNoCall(t)

	// Within the fire window: due.
	f.clock.set(sunriseAt.Add(30 * time.Second))
	f.sched.tickOnce(ctx)
	f.executor.awaitCall(t)

	// Still within the window on a later tick: guard holds.
	f.clock.set(sunriseAt.Add(45 * time.Second))
	f.sched.tickOnce(ctx)
	f.executor.expectNoCall(t)
}

func TestSunriseMissedWindowNotDue(t *testing.T) {
	sunriseAt := time.Date(2026, time.April, 10, 6, 12, 0, 0, time.UTC)
	sunsetAt := time.Date(2026, time.April, 10, 19, 47, 0, 0, time.UTC)
	f := setupScheduler(t, stubSun{sunrise: sunriseAt, sunset: sunsetAt, ok: true})
	f.addRoutine(t, routine.Trigger{Kind: routine.TriggerSunrise})

	// FireWindow is one minute; two minutes after the event is too late.
	f.clock.set(sunriseAt.Add(2 * time.Minute))
	f.sched.tickOnce(context.Background())
	f.executor.expectNoCall(t)
}

func TestSunsetFiresWithinWindow(t *testing.T) {
	sunriseAt := time.Date(2026, time.April, 10, 6, 12, 0, 0, time.UTC)
	sunsetAt := time.Date(2026, time.April, 10, 19, 47, 0, 0, time.UTC)
	f := setupScheduler(t, stubSun{sunrise: sunriseAt, sunset: sunsetAt, ok: true})
	r := f.addRoutine(t, routine.Trigger{Kind: routine.TriggerSunset})

	f.clock.set(sunsetAt.Add(10 * time.Second))
	f.sched.tickOnce(context.Background())

	call := f.executor.awaitCall(t)
	if call.routineID != r.ID {
		t.Errorf("executed %s, want %s", call.routineID, r.ID)
	}
}

func TestSunTriggersWithoutProviderNeverArm(t *testing.T) {
	f := setupScheduler(t, nil)
	f.addRoutine(t, routine.Trigger{Kind: routine.TriggerSunrise})
	f.addRoutine(t, routine.Trigger{Kind: routine.TriggerSunset})

	f.clock.set(time.Date(2026, time.April, 10, 6, 12, 10, 0, time.UTC))
	f.sched.tickOnce(context.Background())
	f.executor.expectNoCall(t)
}

func TestSunTriggersPolarNightNotDue(t *testing.T) {
	f := setupScheduler(t, stubSun{ok: false})
	f.addRoutine(t, routine.Trigger{Kind: routine.TriggerSunrise})

	f.clock.set(time.Date(2026, time.December, 21, 12, 0, 0, 0, time.UTC))
	f.sched.tickOnce(context.Background())
	f.executor.expectNoCall(t)
}

// ─── Presence Trigger Tests ─────────────────────────────────────────────────

func TestArriveHomeFiresOnPresenceEvent(t *testing.T) {
	f := setupScheduler(t, nil)
	r := f.addRoutine(t, routine.Trigger{Kind: routine.TriggerArriveHome})
	ctx := context.Background()

	f.presence.ch <- PresenceEvent{Kind: PresenceArrived, PersonID: "p1", At: f.clock.Now()}
	f.sched.tickOnce(ctx)

	call := f.executor.awaitCall(t)
	if call.routineID != r.ID {
		t.Errorf("executed %s, want %s", call.routineID, r.ID)
	}

	// No queued event, no firing.
	f.sched.tickOnce(ctx)
	f.executor.expectNoCall(t)
}

func TestLeaveHomeIgnoresArrivals(t *testing.T) {
	f := setupScheduler(t, nil)
	f.addRoutine(t, routine.Trigger{Kind: routine.TriggerLeaveHome})

	f.presence.ch <- PresenceEvent{Kind: PresenceArrived, PersonID: "p1", At: f.clock.Now()}
	f.sched.tickOnce(context.Background())
	f.executor.expectNoCall(t)

	f.presence.ch <- PresenceEvent{Kind: PresenceLeft, PersonID: "p1", At: f.clock.Now()}
	f.sched.tickOnce(context.Background())
	f.executor.awaitCall(t)
}

func TestPresenceFiresPerEventNotPerDay(t *testing.T) {
	f := setupScheduler(t, nil)
	f.addRoutine(t, routine.Trigger{Kind: routine.TriggerArriveHome})
	ctx := context.Background()

	// Two separate arrivals on the same day both fire: presence
	// triggers have no daily guard.
	f.presence.ch <- PresenceEvent{Kind: PresenceArrived, PersonID: "p1", At: f.clock.Now()}
	f.sched.tickOnce(ctx)
	f.executor.awaitCall(t)

	f.clock.set(f.clock.Now().Add(time.Hour))
	f.presence.ch <- PresenceEvent{Kind: PresenceArrived, PersonID: "p2", At: f.clock.Now()}
	f.sched.tickOnce(ctx)
	f.executor.awaitCall(t)
}

// ─── Firing Guard Persistence Tests ─────────────────────────────────────────

func TestMarkFiredFailureSkipsExecution(t *testing.T) {
	f := setupScheduler(t, nil)
	f.addRoutine(t, timeOfDayTrigger(7, 30))
	ctx := context.Background()

	f.repo.mu.Lock()
	f.repo.failMarkFired = true
	f.repo.mu.Unlock()

	f.clock.set(time.Date(2026, time.April, 10, 7, 30, 5, 0, time.UTC))
	f.sched.tickOnce(ctx)
	f.executor.expectNoCall(t)

	// Persistence recovers: the next tick in the window fires.
	f.repo.mu.Lock()
	f.repo.failMarkFired = false
	f.repo.mu.Unlock()

	f.clock.set(time.Date(2026, time.April, 10, 7, 30, 20, 0, time.UTC))
	f.sched.tickOnce(ctx)
	f.executor.awaitCall(t)
}

// ─── Notification Tests ─────────────────────────────────────────────────────

type firedRecord struct {
	routineID   string
	triggerKind string
}

type mockFiredSink struct {
	mu    sync.Mutex
	fired []firedRecord
}

func (m *mockFiredSink) PublishFired(routineID, triggerKind string) {
	m.mu.Lock()
	m.fired = append(m.fired, firedRecord{routineID, triggerKind})
	m.mu.Unlock()
}

type mockTriggerRecorder struct {
	mu      sync.Mutex
	records []firedRecord
}

func (m *mockTriggerRecorder) RecordTriggerFired(routineID, triggerType string) {
	m.mu.Lock()
	m.records = append(m.records, firedRecord{routineID, triggerType})
	m.mu.Unlock()
}

func TestFiringNotifiesSinkAndRecorder(t *testing.T) {
	f := setupScheduler(t, nil)
	r := f.addRoutine(t, timeOfDayTrigger(7, 30))

	sink := &mockFiredSink{}
	recorder := &mockTriggerRecorder{}
	f.sched.SetFiredSink(sink)
	f.sched.SetTriggerRecorder(recorder)

	f.clock.set(time.Date(2026, time.April, 10, 7, 30, 5, 0, time.UTC))
	f.sched.tickOnce(context.Background())
	f.executor.awaitCall(t)

	sink.mu.Lock()
	if len(sink.fired) != 1 || sink.fired[0].routineID != r.ID || sink.fired[0].triggerKind != string(routine.TriggerTimeOfDay) {
		t.Errorf("fired sink = %+v", sink.fired)
	}
	sink.mu.Unlock()

	recorder.mu.Lock()
	if len(recorder.records) != 1 || recorder.records[0].triggerKind != routine.TriggerTypeSchedule {
		t.Errorf("trigger records = %+v", recorder.records)
	}
	recorder.mu.Unlock()
}

// ─── Loop Tests ─────────────────────────────────────────────────────────────

func TestRunStopsOnContextCancel(t *testing.T) {
	f := setupScheduler(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		f.sched.Run(ctx)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after context cancellation")
	}
}
