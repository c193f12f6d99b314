package recorder

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rickgao/databench-client/internal/connection"
)

// Config holds recorder batching settings.
type Config struct {
	BatchSize     int           // Rows per INSERT batch
	FlushInterval time.Duration // Max time a row waits before being written
	BufferSize    int           // Initial queue capacity
	MaxBuffered   int           // Queue ceiling; the oldest rows are evicted beyond it
	Signals       []string      // Signals to record; empty records every user signal
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:     500,
		FlushInterval: time.Second,
		BufferSize:    10000,
		MaxBuffered:   1000000,
	}
}

// BatchSender is the subset of *pgxpool.Pool the recorder writes through.
type BatchSender interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Entry is one recorded signal.
type Entry struct {
	ID         uuid.UUID
	ClientID   uuid.UUID
	AnalysisID string
	Signal     string
	Load       json.RawMessage
	ReceivedAt time.Time
}

// Stats holds recorder counters.
type Stats struct {
	Recorded  int64
	Skipped   int64
	Inserts   int64
	Conflicts int64
	Flushes   int64
	Errors    int64
	Queue     QueueStats
}

// Recorder appends inbound signals to the signal_log table in batches.
type Recorder struct {
	cfg    Config
	logger *slog.Logger
	db     BatchSender

	signals map[string]bool
	pending *queue[Entry]
	wake    chan struct{}

	mu      sync.Mutex
	metrics Stats
}

// New creates a Recorder writing to db.
func New(cfg Config, db BatchSender, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	d := DefaultConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = d.BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = d.FlushInterval
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = d.BufferSize
	}
	if cfg.MaxBuffered <= 0 {
		cfg.MaxBuffered = max(d.MaxBuffered, cfg.BufferSize)
	}

	r := &Recorder{
		cfg:     cfg,
		logger:  logger,
		db:      db,
		pending: newQueue[Entry](cfg.BufferSize, cfg.MaxBuffered),
		wake:    make(chan struct{}, 1),
	}
	if len(cfg.Signals) > 0 {
		r.signals = make(map[string]bool, len(cfg.Signals))
		for _, s := range cfg.Signals {
			r.signals[s] = true
		}
	}
	return r
}

// Attach records every user signal conn receives until the returned
// function is called.
func (r *Recorder) Attach(conn *connection.Connection) (detach func()) {
	return conn.Tap(func(m connection.Message) {
		r.Record(Entry{
			ClientID:   conn.ID(),
			AnalysisID: conn.AnalysisID(),
			Signal:     m.Signal,
			Load:       m.Load,
		})
	})
}

// Record queues e. Missing ids and timestamps are filled in.
func (r *Recorder) Record(e Entry) {
	if r.signals != nil && !r.signals[e.Signal] {
		r.mu.Lock()
		r.metrics.Skipped++
		r.mu.Unlock()
		return
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.ReceivedAt.IsZero() {
		e.ReceivedAt = time.Now()
	}

	n, ok := r.pending.push(e)
	if !ok {
		r.logger.Debug("recorder closed, dropping signal", "signal", e.Signal)
		return
	}

	r.mu.Lock()
	r.metrics.Recorded++
	r.mu.Unlock()

	if n >= r.cfg.BatchSize {
		select {
		case r.wake <- struct{}{}:
		default:
		}
	}
}

// Run writes queued entries until ctx is done, then flushes what is left
// and stops accepting entries.
func (r *Recorder) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.FlushInterval)
	defer ticker.Stop()

	r.logger.Info("recorder started",
		"batch_size", r.cfg.BatchSize,
		"flush_interval", r.cfg.FlushInterval,
	)

	for {
		select {
		case <-ctx.Done():
			r.pending.close()
			finalCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			r.flush(finalCtx)
			cancel()
			r.logger.Info("recorder stopped", "recorded", r.Stats().Recorded)
			return nil
		case <-ticker.C:
			r.flush(ctx)
		case <-r.wake:
			r.flush(ctx)
		}
	}
}

// Stats returns current metrics.
func (r *Recorder) Stats() Stats {
	r.mu.Lock()
	s := r.metrics
	r.mu.Unlock()
	s.Queue = r.pending.stats()
	return s
}

// flush writes everything queued, one batch at a time.
func (r *Recorder) flush(ctx context.Context) {
	for {
		rows := r.pending.drain(r.cfg.BatchSize)
		if len(rows) == 0 {
			return
		}

		start := time.Now()
		conflicts, err := r.batchInsert(ctx, rows)
		if err != nil {
			r.logger.Error("batch insert failed", "error", err, "count", len(rows))
			r.mu.Lock()
			r.metrics.Errors++
			r.mu.Unlock()
			return
		}

		r.mu.Lock()
		r.metrics.Inserts += int64(len(rows) - conflicts)
		r.metrics.Conflicts += int64(conflicts)
		r.metrics.Flushes++
		r.mu.Unlock()

		r.logger.Debug("flushed signals",
			"count", len(rows),
			"conflicts", conflicts,
			"duration", time.Since(start),
		)
	}
}

// batchInsert inserts rows using pgx.Batch with ON CONFLICT DO NOTHING.
func (r *Recorder) batchInsert(ctx context.Context, rows []Entry) (conflicts int, err error) {
	batch := &pgx.Batch{}
	for _, e := range rows {
		batch.Queue(insertSQL,
			e.ID.String(),
			e.ClientID.String(),
			e.AnalysisID,
			e.Signal,
			loadJSON(e.Load),
			e.ReceivedAt.UnixMicro(),
		)
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		ct, err := results.Exec()
		if err != nil {
			return 0, err
		}
		if ct.RowsAffected() == 0 {
			conflicts++
		}
	}

	return conflicts, nil
}

const insertSQL = `
	INSERT INTO signal_log (id, client_id, analysis_id, signal, load, received_at)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (id) DO NOTHING
`

// loadJSON returns the load as JSONB text; an empty load is stored as null.
func loadJSON(load json.RawMessage) string {
	if len(load) == 0 {
		return "null"
	}
	return string(load)
}
