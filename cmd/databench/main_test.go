package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/rickgao/databench-client/internal/binding"
	"github.com/rickgao/databench-client/internal/config"
	"github.com/rickgao/databench-client/internal/connection"
)

func TestParseFlags(t *testing.T) {
	opts, err := parseFlags([]string{
		"--url", "ws://localhost:5000/dummypi/ws",
		"-b", "run", "--button", "stop",
		"--watch", "data:x",
	})
	if err != nil {
		t.Fatalf("parseFlags failed: %v", err)
	}
	if opts.url != "ws://localhost:5000/dummypi/ws" {
		t.Errorf("url = %q", opts.url)
	}
	if !reflect.DeepEqual(opts.buttons, []string{"run", "stop"}) {
		t.Errorf("buttons = %v", opts.buttons)
	}
	if !reflect.DeepEqual(opts.watches, []string{"data:x"}) {
		t.Errorf("watches = %v", opts.watches)
	}

	if _, err := parseFlags([]string{"stray"}); err == nil {
		t.Error("expected error for positional argument")
	}
}

func TestBuildConfig_FlagsOnly(t *testing.T) {
	cfg, err := buildConfig(&options{url: "ws://localhost:5000/dummypi/ws", logLevel: "debug"})
	if err != nil {
		t.Fatalf("buildConfig failed: %v", err)
	}
	if cfg.Reconnect.MaxAttempts != config.DefaultMaxAttempts {
		t.Errorf("MaxAttempts = %d, want default", cfg.Reconnect.MaxAttempts)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q", cfg.Log.Level)
	}
	if cfg.Session.Store != config.SessionStoreNone {
		t.Errorf("Session.Store = %q", cfg.Session.Store)
	}
}

func TestBuildConfig_FileWithOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "databench.yaml")
	data := `
client:
  page_url: http://localhost:5000/dummypi/
  analysis_id: from-file
reconnect:
  max_attempts: 3
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := buildConfig(&options{configPath: path, analysisID: "from-flag"})
	if err != nil {
		t.Fatalf("buildConfig failed: %v", err)
	}
	if cfg.Client.AnalysisID != "from-flag" {
		t.Errorf("AnalysisID = %q, want from-flag", cfg.Client.AnalysisID)
	}
	if cfg.Client.PageURL != "http://localhost:5000/dummypi/" {
		t.Errorf("PageURL = %q", cfg.Client.PageURL)
	}
	if cfg.Reconnect.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", cfg.Reconnect.MaxAttempts)
	}
}

func TestBuildConfig_NoEndpoint(t *testing.T) {
	if _, err := buildConfig(&options{}); err == nil {
		t.Error("expected validation error without an endpoint")
	}
}

func TestRepl(t *testing.T) {
	conn := connection.New(
		connection.Config{URL: "ws://localhost:5000/dummypi/ws"},
		connection.WithLogSink(nil),
	)
	b := binding.NewButton(conn, "run", nil)
	b.NewProcessID = func() int64 { return 9 }
	buttons := map[string]*binding.Button{"run": b}

	logs := binding.NewLog(0, 0, nil)
	logs.Add("hello", connection.SourceBackend)
	alerts := binding.NewStatusLog(nil)
	alerts.Add("connection could not be opened; retrying")

	var buf bytes.Buffer
	out := &printer{w: &buf}

	lines := make(chan string, 10)
	for _, l := range []string{
		`data {"x": 1}`,
		":click run",
		":click nope",
		":log",
		":status",
		"bad {",
	} {
		lines <- l
	}
	close(lines)

	err := repl(context.Background(), conn, buttons, logs, alerts, lines, out)
	if !errors.Is(err, errQuit) {
		t.Fatalf("repl returned %v, want errQuit", err)
	}

	got := buf.String()
	for _, want := range []string{
		"[run] process 9",
		`no button "nope"; known: [run]`,
		"backend: hello",
		`state idle, analysis ""`,
		"! connection could not be opened; retrying",
		"load for bad is not JSON",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestRepl_Quit(t *testing.T) {
	conn := connection.New(connection.Config{URL: "ws://x/ws"}, connection.WithLogSink(nil))
	lines := make(chan string, 2)
	lines <- ":quit"
	lines <- "never reached"

	err := repl(context.Background(), conn, nil, binding.NewLog(0, 0, nil), binding.NewStatusLog(nil), lines, &printer{w: &bytes.Buffer{}})
	if !errors.Is(err, errQuit) {
		t.Errorf("repl returned %v, want errQuit", err)
	}
	if len(lines) != 1 {
		t.Errorf("repl read past :quit")
	}
}
