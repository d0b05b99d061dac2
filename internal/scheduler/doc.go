// Package scheduler decides when routines run automatically.
//
// A recurring tick evaluates every enabled, non-manual routine's
// trigger against the current local time, the day's sunrise and sunset
// instants, and presence events received since the previous tick. Due
// routines have their firing guard persisted first, then execute
// asynchronously so one routine's Wait step can never stall detection
// of another routine's trigger.
//
// The tick cadence must be one minute or finer; a coarser cadence can
// skip a time-of-day trigger's minute-wide window entirely. Firing is
// idempotent per window: at most once per local calendar day for
// time-based triggers, at most once per event for presence triggers.
package scheduler
