// Package recorder appends inbound signals to PostgreSQL.
//
// A Recorder taps a Connection, queues every user signal with a uuid row
// id, and writes batches to the signal_log table (append-only, ON
// CONFLICT DO NOTHING). Rows are flushed when a batch fills up, on a
// timer, and once more on shutdown.
package recorder
