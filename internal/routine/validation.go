package routine

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// Validation constants.
const (
	maxNameLength     = 100
	maxDescriptionLen = 500
	maxActions        = 100
	maxWaitSeconds    = 3600 // 1 hour
	maxHour           = 23
	maxMinute         = 59
	colourPattern     = `^#[0-9a-fA-F]{6}$`
)

var colourRegex = regexp.MustCompile(colourPattern)

// Pre-computed validation set for O(1) trigger kind lookups.
var validTriggerKinds map[TriggerKind]struct{}

func init() {
	validTriggerKinds = make(map[TriggerKind]struct{}, len(AllTriggerKinds()))
	for _, k := range AllTriggerKinds() {
		validTriggerKinds[k] = struct{}{}
	}
}

// ValidateRoutine performs comprehensive validation on a routine.
// Returns an error describing the first validation failure found.
func ValidateRoutine(r *Routine) error {
	if r == nil {
		return ErrInvalidRoutine
	}

	if err := ValidateName(r.Name); err != nil {
		return err
	}

	if r.Description != nil && len(*r.Description) > maxDescriptionLen {
		return fmt.Errorf("%w: description exceeds %d characters", ErrInvalidRoutine, maxDescriptionLen)
	}

	if r.Colour != nil && !colourRegex.MatchString(*r.Colour) {
		return fmt.Errorf("%w: colour must be a hex value like #RRGGBB", ErrInvalidRoutine)
	}

	if err := ValidateTrigger(r.Trigger); err != nil {
		return err
	}

	// An empty action list is valid: executing it trivially succeeds.
	if len(r.Actions) > maxActions {
		return fmt.Errorf("%w: exceeds maximum of %d actions", ErrInvalidAction, maxActions)
	}
	for i, action := range r.Actions {
		if err := ValidateAction(action); err != nil {
			return fmt.Errorf("action[%d]: %w", i, err)
		}
	}

	return nil
}

// ValidateName checks if a routine name is valid.
func ValidateName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidName)
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidName, maxNameLength)
	}
	return nil
}

// ValidateAction checks that exactly one payload field is populated,
// consistent with the action's kind.
func ValidateAction(action Action) error {
	switch action.Kind {
	case ActionInvokeScene:
		if action.SceneID == "" {
			return fmt.Errorf("%w: scene_id is required for invoke_scene", ErrInvalidAction)
		}
		if action.WaitSeconds != 0 {
			return fmt.Errorf("%w: wait_seconds must not be set for invoke_scene", ErrInvalidAction)
		}
	case ActionWait:
		if action.SceneID != "" {
			return fmt.Errorf("%w: scene_id must not be set for wait", ErrInvalidAction)
		}
		if action.WaitSeconds < 0 || action.WaitSeconds > maxWaitSeconds {
			return fmt.Errorf("%w: wait_seconds must be 0-%d", ErrInvalidAction, maxWaitSeconds)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidAction, action.Kind)
	}
	return nil
}

// ValidateTrigger checks the trigger kind and that the time-of-day
// payload is present exactly when the kind requires it.
func ValidateTrigger(t Trigger) error {
	if _, ok := validTriggerKinds[t.Kind]; !ok {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidTrigger, t.Kind)
	}

	if t.Kind == TriggerTimeOfDay {
		if t.TimeOfDay == nil {
			return fmt.Errorf("%w: time_of_day is required for time_of_day triggers", ErrInvalidTrigger)
		}
		if t.TimeOfDay.Hour < 0 || t.TimeOfDay.Hour > maxHour {
			return fmt.Errorf("%w: hour must be 0-%d", ErrInvalidTrigger, maxHour)
		}
		if t.TimeOfDay.Minute < 0 || t.TimeOfDay.Minute > maxMinute {
			return fmt.Errorf("%w: minute must be 0-%d", ErrInvalidTrigger, maxMinute)
		}
	} else if t.TimeOfDay != nil {
		return fmt.Errorf("%w: time_of_day is only valid for time_of_day triggers", ErrInvalidTrigger)
	}

	return nil
}

// GenerateID creates a new UUID for a routine, action, or execution.
func GenerateID() string {
	return uuid.New().String()
}
