// Package routine implements the routine automation engine: user-defined
// named sequences of actions (invoke a scene, wait a fixed duration)
// executed when a trigger condition is satisfied, or on demand.
//
// # Components
//
//   - Store: durable CRUD over routine records, backed by SQLite with
//     an in-memory cache. The single source of truth the scheduler and
//     engine read from.
//   - Engine: runs one routine's action list strictly in order with
//     progress reporting, cooperative cancellation, and failure
//     isolation. At most one execution is active per routine ID.
//   - Repository: the persistence seam, so the Store and Engine can be
//     tested against mocks.
//
// # Execution semantics
//
// Steps run in ascending order. A failed scene invocation aborts the
// remaining steps; completed steps are not rolled back (home-automation
// side effects are not transactional). Wait steps are interruptible and
// count as their own progress increment. Every terminal outcome, whether
// succeeded, failed, or cancelled, bumps the routine's execution counter
// and last-executed timestamp.
//
// The scheduler that decides when routines fire automatically lives in
// internal/scheduler; scene invocation and status publication are
// provided by internal/scene and internal/status.
package routine
