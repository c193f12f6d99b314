package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rickgao/databench-client/internal/connection"
	"github.com/rickgao/databench-client/internal/recorder"
)

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

type fakeSession struct{ state connection.State }

func (s fakeSession) State() connection.State { return s.state }
func (s fakeSession) AnalysisID() string      { return "abc123" }

type fakeStats struct{ stats recorder.Stats }

func (s fakeStats) Stats() recorder.Stats { return s.stats }

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name       string
		dbErr      error
		state      connection.State
		wantStatus string
		wantCode   int
	}{
		{"healthy", nil, connection.StateOpen, "healthy", http.StatusOK},
		{"reconnecting", nil, connection.StateClosed, "degraded", http.StatusOK},
		{"connection failed", nil, connection.StateFailed, "unhealthy", http.StatusServiceUnavailable},
		{"database down", errors.New("connection refused"), connection.StateOpen, "unhealthy", http.StatusServiceUnavailable},
		{"database down while dialing", errors.New("connection refused"), connection.StateConnecting, "unhealthy", http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := createHealthHandler(
				fakePinger{err: tt.dbErr},
				fakeSession{state: tt.state},
				fakeStats{stats: recorder.Stats{Recorded: 3, Inserts: 2, Conflicts: 1}},
			)

			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

			if rr.Code != tt.wantCode {
				t.Errorf("code = %d, want %d", rr.Code, tt.wantCode)
			}

			var body struct {
				Status     string                     `json:"status"`
				Components map[string]json.RawMessage `json:"components"`
			}
			if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", body.Status, tt.wantStatus)
			}

			var backend map[string]string
			if err := json.Unmarshal(body.Components["backend"], &backend); err != nil {
				t.Fatalf("decode backend: %v", err)
			}
			if backend["state"] != tt.state.String() || backend["analysis_id"] != "abc123" {
				t.Errorf("backend = %v", backend)
			}

			var rec map[string]int64
			if err := json.Unmarshal(body.Components["recorder"], &rec); err != nil {
				t.Fatalf("decode recorder: %v", err)
			}
			if rec["recorded"] != 3 || rec["conflicts"] != 1 {
				t.Errorf("recorder = %v", rec)
			}
		})
	}
}
