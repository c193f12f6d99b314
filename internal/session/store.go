package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rickgao/databench-client/internal/connection"
)

// ErrNotFound is returned by Store.Load for an endpoint with no record.
var ErrNotFound = errors.New("session not found")

// Record is what a Store keeps per endpoint.
type Record struct {
	AnalysisID      string    `yaml:"analysis_id"`
	AnalysesVersion string    `yaml:"analyses_version,omitempty"`
	UpdatedAt       time.Time `yaml:"updated_at"`
}

// Store persists one Record per endpoint.
type Store interface {
	Load(ctx context.Context, endpoint string) (Record, error)
	Save(ctx context.Context, endpoint string, rec Record) error
}

// Endpoint returns the key a Connection built from cfg is stored under.
func Endpoint(cfg connection.Config) (string, error) {
	if cfg.URL != "" {
		return cfg.URL, nil
	}
	if cfg.PageURL == "" {
		return "", connection.ErrNoEndpoint
	}
	url, _, err := connection.GuessURL(cfg.PageURL)
	if err != nil {
		return "", err
	}
	return url, nil
}

// Resume sets cfg.AnalysisID from store unless it is already set. It
// reports whether an id was restored.
func Resume(ctx context.Context, store Store, cfg *connection.Config) (bool, error) {
	if cfg.AnalysisID != "" {
		return false, nil
	}

	endpoint, err := Endpoint(*cfg)
	if err != nil {
		return false, err
	}

	rec, err := store.Load(ctx, endpoint)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load session for %s: %w", endpoint, err)
	}

	cfg.AnalysisID = rec.AnalysisID
	return rec.AnalysisID != "", nil
}

// Saver returns a ready handler that stores the acknowledged analysis id.
// Failures are logged; the connection keeps working without persistence.
func Saver(ctx context.Context, store Store, logger *slog.Logger) connection.ReadyFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(c *connection.Connection) {
		id := c.AnalysisID()
		if id == "" {
			return
		}
		rec := Record{
			AnalysisID:      id,
			AnalysesVersion: c.AnalysesVersion(),
			UpdatedAt:       time.Now().UTC(),
		}
		if err := store.Save(ctx, c.URL(), rec); err != nil {
			logger.Warn("failed to save session", "endpoint", c.URL(), "error", err)
			return
		}
		logger.Debug("session saved", "endpoint", c.URL(), "analysis_id", id)
	}
}

// Memory is a Store kept in process memory.
type Memory struct {
	mu      sync.Mutex
	records map[string]Record
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{records: make(map[string]Record)}
}

func (m *Memory) Load(_ context.Context, endpoint string) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[endpoint]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (m *Memory) Save(_ context.Context, endpoint string, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[endpoint] = rec
	return nil
}
