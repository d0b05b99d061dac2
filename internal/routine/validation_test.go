package routine

import (
	"errors"
	"strings"
	"testing"
)

func strPtr(s string) *string { return &s }

// ─── Routine Validation ─────────────────────────────────────────────────────

func TestValidateRoutine(t *testing.T) {
	tests := []struct {
		name    string
		routine *Routine
		wantErr error
	}{
		{
			name:    "valid manual routine",
			routine: NewRoutine("Evening", nil, nil, nil, Trigger{Kind: TriggerManual}),
			wantErr: nil,
		},
		{
			name:    "nil routine",
			routine: nil,
			wantErr: ErrInvalidRoutine,
		},
		{
			name:    "empty name",
			routine: NewRoutine("   ", nil, nil, nil, Trigger{Kind: TriggerManual}),
			wantErr: ErrInvalidName,
		},
		{
			name:    "name too long",
			routine: NewRoutine(strings.Repeat("x", 101), nil, nil, nil, Trigger{Kind: TriggerManual}),
			wantErr: ErrInvalidName,
		},
		{
			name:    "description too long",
			routine: NewRoutine("R", strPtr(strings.Repeat("d", 501)), nil, nil, Trigger{Kind: TriggerManual}),
			wantErr: ErrInvalidRoutine,
		},
		{
			name:    "valid colour",
			routine: NewRoutine("R", nil, nil, strPtr("#A1B2C3"), Trigger{Kind: TriggerManual}),
			wantErr: nil,
		},
		{
			name:    "malformed colour",
			routine: NewRoutine("R", nil, nil, strPtr("blue"), Trigger{Kind: TriggerManual}),
			wantErr: ErrInvalidRoutine,
		},
		{
			name:    "colour missing hash",
			routine: NewRoutine("R", nil, nil, strPtr("A1B2C3"), Trigger{Kind: TriggerManual}),
			wantErr: ErrInvalidRoutine,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRoutine(tt.routine)
			if tt.wantErr == nil && err != nil {
				t.Errorf("ValidateRoutine() error = %v, want nil", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateRoutine() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateRoutineEmptyActionsValid(t *testing.T) {
	r := NewRoutine("Empty", nil, nil, nil, Trigger{Kind: TriggerManual})
	r.Actions = []Action{}
	if err := ValidateRoutine(r); err != nil {
		t.Errorf("ValidateRoutine() error = %v, empty action list must be valid", err)
	}
}

func TestValidateRoutineTooManyActions(t *testing.T) {
	r := NewRoutine("Overfull", nil, nil, nil, Trigger{Kind: TriggerManual})
	for i := 0; i <= maxActions; i++ {
		r.Actions = append(r.Actions, Action{Kind: ActionWait, WaitSeconds: 1, Order: i})
	}
	if err := ValidateRoutine(r); !errors.Is(err, ErrInvalidAction) {
		t.Errorf("ValidateRoutine() error = %v, want ErrInvalidAction", err)
	}
}

// ─── Action Validation ──────────────────────────────────────────────────────

func TestValidateAction(t *testing.T) {
	tests := []struct {
		name    string
		action  Action
		wantErr bool
	}{
		{"invoke with scene", Action{Kind: ActionInvokeScene, SceneID: "s1"}, false},
		{"invoke without scene", Action{Kind: ActionInvokeScene}, true},
		{"invoke with stray wait", Action{Kind: ActionInvokeScene, SceneID: "s1", WaitSeconds: 5}, true},
		{"wait zero seconds", Action{Kind: ActionWait, WaitSeconds: 0}, false},
		{"wait max seconds", Action{Kind: ActionWait, WaitSeconds: maxWaitSeconds}, false},
		{"wait over max", Action{Kind: ActionWait, WaitSeconds: maxWaitSeconds + 1}, true},
		{"wait negative", Action{Kind: ActionWait, WaitSeconds: -1}, true},
		{"wait with stray scene", Action{Kind: ActionWait, SceneID: "s1", WaitSeconds: 5}, true},
		{"unknown kind", Action{Kind: "teleport"}, true},
		{"empty kind", Action{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAction(tt.action)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateAction() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidAction) {
				t.Errorf("ValidateAction() error = %v, want wrapped ErrInvalidAction", err)
			}
		})
	}
}

// ─── Trigger Validation ─────────────────────────────────────────────────────

func TestValidateTrigger(t *testing.T) {
	tests := []struct {
		name    string
		trigger Trigger
		wantErr bool
	}{
		{"manual", Trigger{Kind: TriggerManual}, false},
		{"sunrise", Trigger{Kind: TriggerSunrise}, false},
		{"sunset", Trigger{Kind: TriggerSunset}, false},
		{"arrive home", Trigger{Kind: TriggerArriveHome}, false},
		{"leave home", Trigger{Kind: TriggerLeaveHome}, false},
		{"time of day", Trigger{Kind: TriggerTimeOfDay, TimeOfDay: &TimeOfDay{Hour: 7, Minute: 30}}, false},
		{"time of day midnight", Trigger{Kind: TriggerTimeOfDay, TimeOfDay: &TimeOfDay{}}, false},
		{"time of day missing payload", Trigger{Kind: TriggerTimeOfDay}, true},
		{"time of day hour too high", Trigger{Kind: TriggerTimeOfDay, TimeOfDay: &TimeOfDay{Hour: 24}}, true},
		{"time of day negative hour", Trigger{Kind: TriggerTimeOfDay, TimeOfDay: &TimeOfDay{Hour: -1}}, true},
		{"time of day minute too high", Trigger{Kind: TriggerTimeOfDay, TimeOfDay: &TimeOfDay{Minute: 60}}, true},
		{"payload on manual", Trigger{Kind: TriggerManual, TimeOfDay: &TimeOfDay{Hour: 7}}, true},
		{"payload on sunrise", Trigger{Kind: TriggerSunrise, TimeOfDay: &TimeOfDay{Hour: 7}}, true},
		{"unknown kind", Trigger{Kind: "full_moon"}, true},
		{"empty kind", Trigger{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTrigger(tt.trigger)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateTrigger() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidTrigger) {
				t.Errorf("ValidateTrigger() error = %v, want wrapped ErrInvalidTrigger", err)
			}
		})
	}
}

func TestGenerateIDUnique(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		id := GenerateID()
		if id == "" {
			t.Fatal("GenerateID() returned empty string")
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("GenerateID() produced duplicate %s", id)
		}
		seen[id] = struct{}{}
	}
}
