package routine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// SceneInvoker is the interface the engine needs to apply a scene's
// stored accessory states. Invoke blocks until the invocation is
// accepted or fails; the engine itself never retries.
type SceneInvoker interface {
	Invoke(ctx context.Context, sceneID string) error
}

// StatusSink receives human-readable status strings and progress
// updates for display by the presentation layer. Both methods are
// fire-and-forget: implementations must never block the caller, and a
// missed update is not a correctness failure.
type StatusSink interface {
	Publish(message string)
	PublishProgress(routineID string, progress float64)
}

// ExecutionRecorder receives one telemetry point per terminal run.
// Implemented by the InfluxDB client; may be nil when telemetry is
// disabled.
type ExecutionRecorder interface {
	RecordExecution(routineID, status, triggerType string, duration time.Duration, stepsTotal, stepsCompleted int)
}

// Engine runs one routine's action sequence to completion or failure,
// serialized per routine ID, reporting progress and a terminal outcome.
//
// Concurrency model: different routines execute freely in parallel;
// repeated executions of the same routine are serialized by a per-ID
// guard. A Wait step suspends only its own run, never the scheduler or
// other routines.
//
// Thread Safety: all methods are safe for concurrent use.
type Engine struct {
	store    *Store
	repo     Repository
	scenes   SceneInvoker
	sink     StatusSink
	recorder ExecutionRecorder
	logger   Logger

	// runs tracks active executions by routine ID.
	runs  map[string]*run
	runMu sync.Mutex
}

// run holds the cancellation handle for one active execution.
type run struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// NewEngine creates a new execution engine.
//
// The sink and recorder may be nil; status and telemetry are then
// dropped. The store is also registered for execution records via repo,
// which is the same repository backing the store.
func NewEngine(store *Store, repo Repository, scenes SceneInvoker, sink StatusSink, recorder ExecutionRecorder, logger Logger) *Engine {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Engine{
		store:    store,
		repo:     repo,
		scenes:   scenes,
		sink:     sink,
		recorder: recorder,
		logger:   logger,
		runs:     make(map[string]*run),
	}
}

// statsWriteTimeout bounds the statistics writeback after a terminal
// outcome. The run's own context may already be cancelled by then.
const statsWriteTimeout = 5 * time.Second

// Execute runs a routine's action list strictly in order and blocks
// until a terminal outcome. Callers that must not wait (the scheduler)
// run it in a goroutine.
//
// The routine is snapshotted at the start of the run: concurrent edits
// to the stored record apply to the next execution only. Disabled
// routines are still executable here; enablement gates only automatic
// scheduling.
//
// Returns the completed execution record, or:
//   - ErrNotFound if the routine ID is unknown
//   - ErrAlreadyRunning if an execution for this ID is already active
//
// A step failure or cancellation is reported inside the returned
// record's Status, not as an error: the run itself completed.
func (e *Engine) Execute(ctx context.Context, routineID, triggerType string) (*Execution, error) {
	snapshot, err := e.store.Get(ctx, routineID)
	if err != nil {
		return nil, err
	}

	runCtx, r, err := e.acquire(ctx, routineID)
	if err != nil {
		return nil, err
	}
	defer e.release(routineID, r)

	return e.execute(runCtx, snapshot, triggerType), nil
}

// acquire claims the per-routine concurrency guard and returns a
// cancellable context for the run.
func (e *Engine) acquire(ctx context.Context, routineID string) (context.Context, *run, error) {
	e.runMu.Lock()
	defer e.runMu.Unlock()

	if _, active := e.runs[routineID]; active {
		return nil, nil, ErrAlreadyRunning
	}

	runCtx, cancel := context.WithCancel(ctx)
	r := &run{cancel: cancel, done: make(chan struct{})}
	e.runs[routineID] = r
	return runCtx, r, nil
}

// release frees the guard immediately on any terminal outcome so the
// routine can be re-run or deleted without delay.
func (e *Engine) release(routineID string, r *run) {
	e.runMu.Lock()
	delete(e.runs, routineID)
	e.runMu.Unlock()

	r.cancel()
	close(r.done)
}

// Cancel requests cancellation of the active run for a routine.
// Returns false if nothing was running.
func (e *Engine) Cancel(routineID string) bool {
	e.runMu.Lock()
	r, active := e.runs[routineID]
	e.runMu.Unlock()

	if !active {
		return false
	}
	r.cancel()
	return true
}

// CancelAndWait cancels any active run for the routine and blocks until
// it reaches a terminal state. A no-op if nothing is running. Called by
// the store before deleting a routine.
func (e *Engine) CancelAndWait(routineID string) {
	e.runMu.Lock()
	r, active := e.runs[routineID]
	e.runMu.Unlock()

	if !active {
		return
	}
	r.cancel()
	<-r.done
}

// Shutdown cancels every active run and blocks until all reach a
// terminal state. Called during graceful shutdown before the database
// closes, so cancelled runs can still record their statistics.
func (e *Engine) Shutdown() {
	e.runMu.Lock()
	active := make([]*run, 0, len(e.runs))
	for _, r := range e.runs {
		active = append(active, r)
	}
	e.runMu.Unlock()

	for _, r := range active {
		r.cancel()
	}
	for _, r := range active {
		<-r.done
	}
}

// IsRunning reports whether an execution is active for the routine.
func (e *Engine) IsRunning(routineID string) bool {
	e.runMu.Lock()
	defer e.runMu.Unlock()
	_, active := e.runs[routineID]
	return active
}

// execute drives one run through its state machine:
// pending -> running -> {succeeded | failed | cancelled}.
func (e *Engine) execute(ctx context.Context, snapshot *Routine, triggerType string) *Execution {
	now := time.Now().UTC()
	exec := &Execution{
		ID:          GenerateID(),
		RoutineID:   snapshot.ID,
		TriggeredAt: now,
		TriggerType: triggerType,
		Status:      StatusPending,
		StepsTotal:  len(snapshot.Actions),
	}

	if createErr := e.repo.CreateExecution(ctx, exec); createErr != nil {
		e.logger.Error("failed to create execution record", "error", createErr)
		// Keep going. Running the routine matters more than the log row.
	}

	started := time.Now().UTC()
	exec.StartedAt = &started
	exec.Status = StatusRunning

	e.logger.Info("routine execution started",
		"routine_id", snapshot.ID,
		"routine_name", snapshot.Name,
		"execution_id", exec.ID,
		"trigger_type", triggerType,
		"steps", exec.StepsTotal,
	)

	e.runSteps(ctx, snapshot, exec)

	completedAt := time.Now().UTC()
	exec.CompletedAt = &completedAt
	duration := completedAt.Sub(started)
	durationMS := int(duration.Milliseconds())
	exec.DurationMS = &durationMS

	e.finalize(snapshot, exec, duration)
	return exec
}

// runSteps executes the action list in ascending order, updating the
// execution record in place with the terminal status and step counts.
func (e *Engine) runSteps(ctx context.Context, snapshot *Routine, exec *Execution) {
	steps := orderedActions(snapshot.Actions)

	// An empty routine trivially succeeds with a single 1.0 emission.
	if len(steps) == 0 {
		e.publishProgress(snapshot.ID, 1.0)
		exec.Status = StatusSucceeded
		return
	}

	for i, action := range steps {
		select {
		case <-ctx.Done():
			exec.Status = StatusCancelled
			return
		default:
		}

		if err := e.runStep(ctx, action); err != nil {
			if ctx.Err() != nil {
				exec.Status = StatusCancelled
				return
			}
			step := i
			msg := err.Error()
			exec.Status = StatusFailed
			exec.FailedStep = &step
			exec.ErrorMsg = &msg
			return
		}

		exec.StepsCompleted = i + 1
		e.publishProgress(snapshot.ID, float64(i+1)/float64(len(steps)))
	}

	exec.Status = StatusSucceeded
}

// runStep executes a single action. Wait steps use an interruptible
// timer so cancellation takes effect mid-sleep.
func (e *Engine) runStep(ctx context.Context, action Action) error {
	switch action.Kind {
	case ActionInvokeScene:
		if err := e.scenes.Invoke(ctx, action.SceneID); err != nil {
			return fmt.Errorf("invoking scene %q: %w", action.SceneID, err)
		}
		return nil

	case ActionWait:
		if action.WaitSeconds <= 0 {
			return nil
		}
		timer := time.NewTimer(time.Duration(action.WaitSeconds) * time.Second)
		defer timer.Stop()
		select {
		case <-timer.C:
			return nil
		case <-ctx.Done():
			return fmt.Errorf("wait interrupted: %w", ctx.Err())
		}

	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidAction, action.Kind)
	}
}

// finalize persists statistics and the execution record, publishes the
// user-facing status line, and emits telemetry. Runs after every
// terminal outcome, including cancellation, so it uses its own context.
func (e *Engine) finalize(snapshot *Routine, exec *Execution, duration time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), statsWriteTimeout)
	defer cancel()

	// Failed and cancelled runs still count as an execution attempt.
	if err := e.store.RecordOutcome(ctx, snapshot.ID, *exec.CompletedAt); err != nil {
		e.logger.Error("failed to record routine outcome", "routine_id", snapshot.ID, "error", err)
	}

	if err := e.repo.UpdateExecution(ctx, exec); err != nil {
		e.logger.Error("failed to update execution record", "execution_id", exec.ID, "error", err)
	}

	e.logger.Info("routine execution complete",
		"routine_id", snapshot.ID,
		"execution_id", exec.ID,
		"status", exec.Status,
		"steps_completed", exec.StepsCompleted,
		"steps_total", exec.StepsTotal,
		"duration_ms", duration.Milliseconds(),
	)

	e.publishStatus(snapshot, exec)

	if e.recorder != nil {
		e.recorder.RecordExecution(snapshot.ID, string(exec.Status), exec.TriggerType,
			duration, exec.StepsTotal, exec.StepsCompleted)
	}
}

// publishStatus emits the one-line human-readable outcome.
func (e *Engine) publishStatus(snapshot *Routine, exec *Execution) {
	if e.sink == nil {
		return
	}

	switch exec.Status {
	case StatusSucceeded:
		e.sink.Publish(fmt.Sprintf("Routine %q executed successfully", snapshot.Name))
	case StatusFailed:
		reason := "unknown error"
		if exec.ErrorMsg != nil {
			reason = *exec.ErrorMsg
		}
		e.sink.Publish(fmt.Sprintf("Routine %q failed: %s", snapshot.Name, reason))
	case StatusCancelled:
		e.sink.Publish(fmt.Sprintf("Routine %q cancelled", snapshot.Name))
	}
}

func (e *Engine) publishProgress(routineID string, progress float64) {
	if e.sink == nil {
		return
	}
	e.sink.PublishProgress(routineID, progress)
}

// orderedActions returns the actions sorted by ascending Order, ties
// broken by list position.
func orderedActions(actions []Action) []Action {
	steps := make([]Action, len(actions))
	copy(steps, actions)
	sort.SliceStable(steps, func(i, j int) bool {
		return steps[i].Order < steps[j].Order
	})
	return steps
}
