// Package database provides SQLite connectivity for Hearth Core.
//
// This package manages:
//   - Opening the database with WAL mode and busy-timeout pragmas
//   - Embedded, versioned SQL migrations applied at startup
//   - Connection health checks
//
// SQLite is used in single-writer mode (pool of one connection), which
// matches the controller's write pattern: occasional routine edits and
// one statistics write per execution.
package database
