// Package database provides connection pool management for PostgreSQL.
//
// One pool serves both stores that need a database:
//   - analysis_sessions: analysis ids kept across client restarts
//   - signal_log: every recorded inbound signal (append-only)
package database
