package routine

import "time"

// Routine represents a user-defined, named sequence of actions executed
// when its trigger condition is satisfied, or on demand.
type Routine struct {
	// Identity
	ID   string `json:"id"`
	Name string `json:"name"`

	// Description (optional)
	Description *string `json:"description,omitempty"`

	// UI metadata
	Icon   *string `json:"icon,omitempty"`
	Colour *string `json:"colour,omitempty"` // Hex colour (#RRGGBB)

	// Actions to execute (ordered by Action.Order, ties by position)
	Actions []Action `json:"actions"`

	// Trigger determines when the routine runs automatically.
	Trigger Trigger `json:"trigger"`

	// Enabled controls automatic firing. Disabled routines are skipped
	// by the scheduler but remain manually executable.
	Enabled bool `json:"enabled"`

	// Execution statistics, written back by the engine after each run.
	LastExecuted   *time.Time `json:"last_executed,omitempty"`
	ExecutionCount int        `json:"execution_count"`

	// LastFired records when the trigger last fired automatically,
	// used by the scheduler's at-most-once-per-window guard.
	LastFired *time.Time `json:"last_fired,omitempty"`

	// Timestamps
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewRoutine creates a routine with defaults applied: a generated ID,
// enabled, and an empty action list.
func NewRoutine(name string, description, icon, colour *string, trigger Trigger) *Routine {
	return &Routine{
		ID:          GenerateID(),
		Name:        name,
		Description: cloneStringPtr(description),
		Icon:        cloneStringPtr(icon),
		Colour:      cloneStringPtr(colour),
		Actions:     []Action{},
		Trigger:     trigger,
		Enabled:     true,
	}
}

// Action defines a single step within a routine: invoke a scene, or
// wait a fixed duration.
type Action struct {
	// ID is assigned at creation and immutable.
	ID string `json:"id"`

	// Kind selects which payload field is meaningful.
	Kind ActionKind `json:"kind"`

	// SceneID identifies the scene to invoke. Present iff Kind is
	// ActionInvokeScene.
	SceneID string `json:"scene_id,omitempty"`

	// WaitSeconds is the pause duration. Present iff Kind is ActionWait.
	// Zero is valid (no-op) but discouraged.
	WaitSeconds int `json:"wait_seconds,omitempty"`

	// Order defines execution position. Steps run in ascending Order,
	// ties broken by position in the list.
	Order int `json:"order"`
}

// ActionKind identifies the type of a routine step.
type ActionKind string

const (
	ActionInvokeScene ActionKind = "invoke_scene"
	ActionWait        ActionKind = "wait"
)

// Trigger describes the condition that causes a routine to run
// automatically. Manual-kind routines are never scheduled; they exist
// solely for explicit invocation.
type Trigger struct {
	Kind TriggerKind `json:"kind"`

	// TimeOfDay is present iff Kind is TriggerTimeOfDay. It is
	// re-evaluated every calendar day in the site's local time zone.
	TimeOfDay *TimeOfDay `json:"time_of_day,omitempty"`
}

// TriggerKind identifies the condition type for automatic execution.
type TriggerKind string

const (
	TriggerManual     TriggerKind = "manual"
	TriggerTimeOfDay  TriggerKind = "time_of_day"
	TriggerSunrise    TriggerKind = "sunrise"
	TriggerSunset     TriggerKind = "sunset"
	TriggerArriveHome TriggerKind = "arrive_home"
	TriggerLeaveHome  TriggerKind = "leave_home"
)

// AllTriggerKinds returns all valid trigger kinds.
func AllTriggerKinds() []TriggerKind {
	return []TriggerKind{
		TriggerManual,
		TriggerTimeOfDay,
		TriggerSunrise,
		TriggerSunset,
		TriggerArriveHome,
		TriggerLeaveHome,
	}
}

// TimeOfDay is a wall-clock time in the site's local time zone.
type TimeOfDay struct {
	Hour   int `json:"hour"`   // 0-23
	Minute int `json:"minute"` // 0-59
}

// Execution tracks a single run of a routine from trigger to terminal
// outcome. A fresh Execute call always starts a new record; no record
// re-enters running after reaching a terminal state.
type Execution struct {
	ID          string          `json:"id"`
	RoutineID   string          `json:"routine_id"`
	TriggeredAt time.Time       `json:"triggered_at"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	TriggerType string          `json:"trigger_type"` // manual, schedule
	Status      ExecutionStatus `json:"status"`

	// Step counts
	StepsTotal     int `json:"steps_total"`
	StepsCompleted int `json:"steps_completed"`

	// Failure details (populated when a step fails)
	FailedStep *int    `json:"failed_step,omitempty"`
	ErrorMsg   *string `json:"error_message,omitempty"`

	// Total execution duration in milliseconds
	DurationMS *int `json:"duration_ms,omitempty"`
}

// Trigger type labels recorded on execution records.
const (
	TriggerTypeManual   = "manual"
	TriggerTypeSchedule = "schedule"
)

// ExecutionStatus represents the state of a routine execution.
type ExecutionStatus string

const (
	StatusPending   ExecutionStatus = "pending"
	StatusRunning   ExecutionStatus = "running"
	StatusSucceeded ExecutionStatus = "succeeded"
	StatusFailed    ExecutionStatus = "failed"    // A step failed, remaining steps skipped
	StatusCancelled ExecutionStatus = "cancelled" // Cancelled mid-execution
)

// DeepCopy creates a complete independent copy of the Routine.
// All pointer and slice fields are cloned so modifications to the copy
// do not affect the original. This is essential for cache isolation:
// an in-flight execution works on a snapshot unaffected by concurrent
// edits.
func (r *Routine) DeepCopy() *Routine {
	if r == nil {
		return nil
	}

	cpy := *r // Shallow copy of value fields

	cpy.Description = cloneStringPtr(r.Description)
	cpy.Icon = cloneStringPtr(r.Icon)
	cpy.Colour = cloneStringPtr(r.Colour)
	cpy.LastExecuted = cloneTimePtr(r.LastExecuted)
	cpy.LastFired = cloneTimePtr(r.LastFired)

	if r.Trigger.TimeOfDay != nil {
		tod := *r.Trigger.TimeOfDay
		cpy.Trigger.TimeOfDay = &tod
	}

	if r.Actions != nil {
		cpy.Actions = make([]Action, len(r.Actions))
		copy(cpy.Actions, r.Actions)
	}

	return &cpy
}

// cloneStringPtr creates an independent copy of a *string.
func cloneStringPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// cloneTimePtr creates an independent copy of a *time.Time.
func cloneTimePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
