package binding

import (
	"reflect"
	"strings"
	"testing"

	"github.com/rickgao/databench-client/internal/connection"
)

type sinkFunc func(connection.LogEntry)

func (f sinkFunc) Record(e connection.LogEntry) { f(e) }

func TestLog_Format(t *testing.T) {
	l := NewLog(0, 0, nil)
	l.Add("hello", connection.SourceBackend)
	l.Add("x", "warn")
	l.Add("from client", connection.SourceFrontend)
	l.Add("?", "")

	want := []string{
		"backend: hello",
		"   warn: x",
		"frontend: from client",
		"unknown: ?",
	}
	if got := l.Lines(); !reflect.DeepEqual(got, want) {
		t.Errorf("Lines() = %q, want %q", got, want)
	}
}

func TestLog_Limits(t *testing.T) {
	l := NewLog(3, 12, nil)
	for _, m := range []string{"one", "two", "three", "four"} {
		l.Add(m, "backend")
	}

	want := []string{"backend: two", "backend: thr ...", "backend: fou ..."}
	if got := l.Lines(); !reflect.DeepEqual(got, want) {
		t.Errorf("Lines() = %q, want %q", got, want)
	}
	if got := l.String(); got != strings.Join(want, "\n") {
		t.Errorf("String() = %q", got)
	}
}

func TestLog_ForwardsToNext(t *testing.T) {
	var forwarded []connection.LogEntry
	l := NewLog(0, 0, sinkFunc(func(e connection.LogEntry) { forwarded = append(forwarded, e) }))

	e := connection.LogEntry{Level: connection.LevelWarn, Source: connection.SourceBackend, Message: "careful"}
	l.Record(e)

	if len(forwarded) != 1 || forwarded[0] != e {
		t.Errorf("forwarded = %+v", forwarded)
	}
	if got := l.Lines(); len(got) != 1 || got[0] != "backend: careful" {
		t.Errorf("Lines() = %q", got)
	}
}

func TestLog_AsConnectionSink(t *testing.T) {
	l := NewLog(0, 0, nil)
	conn := newConnection(connection.WithLogSink(l))

	if err := conn.Trigger("log", "analysis started"); err != nil {
		t.Fatal(err)
	}
	if err := conn.Trigger("error", map[string]int{"code": 3}); err != nil {
		t.Fatal(err)
	}
	if err := conn.Emit("warn", "slow frame"); err != nil {
		t.Fatal(err)
	}

	want := []string{
		"backend: analysis started",
		`backend: {"code":3}`,
		"frontend: slow frame",
	}
	if got := l.Lines(); !reflect.DeepEqual(got, want) {
		t.Errorf("Lines() = %q, want %q", got, want)
	}
}

func TestStatusLog(t *testing.T) {
	s := NewStatusLog(nil)

	var renders [][]string
	s.OnChange(func(lines []string) { renders = append(renders, lines) })

	s.Add("connection lost")
	s.Add("connection lost")
	s.Add("timeout")

	want := []string{"(2) connection lost", "timeout"}
	if got := s.Lines(); !reflect.DeepEqual(got, want) {
		t.Errorf("Lines() = %q, want %q", got, want)
	}
	if s.Count("connection lost") != 2 {
		t.Errorf("Count = %d, want 2", s.Count("connection lost"))
	}

	s.Add("")
	if got := s.Lines(); len(got) != 0 {
		t.Errorf("Lines() after clear = %q", got)
	}
	if s.Count("connection lost") != 0 {
		t.Error("clear kept counts")
	}
	if len(renders) != 4 {
		t.Errorf("OnChange ran %d times, want 4", len(renders))
	}
}

func TestStatusLog_Formatter(t *testing.T) {
	s := NewStatusLog(func(msg string, count int) string {
		return strings.ToUpper(msg) + strings.Repeat("!", count)
	})
	var handler connection.ErrorFunc = s.Add

	handler("retrying")
	handler("retrying")

	if got := s.String(); got != "RETRYING!!" {
		t.Errorf("String() = %q", got)
	}
}
