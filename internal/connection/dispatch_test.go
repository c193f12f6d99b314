package connection

import (
	"encoding/json"
	"log/slog"
	"regexp"
	"strings"
	"testing"
)

func newTestDispatcher() *dispatcher {
	return newDispatcher(slog.Default())
}

func TestParseSelector(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		kind    selectorKind
		wantErr bool
	}{
		{in: "data", want: "data", kind: kindPlain},
		{in: "data:x", want: "data:x", kind: kindFiltered},
		{in: ":data", want: ":data", kind: kindPlain},
		{in: "a:b:c", want: "a:b:c", kind: kindFiltered},
		{in: "data:", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			sel, err := ParseSelector(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", sel)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseSelector failed: %v", err)
			}
			if sel.String() != tt.want {
				t.Errorf("String() = %q, want %q", sel.String(), tt.want)
			}
			if sel.kind != tt.kind {
				t.Errorf("kind = %d, want %d", sel.kind, tt.kind)
			}
		})
	}

	sel, _ := ParseSelector("a:b:c")
	if sel.Signal() != "a" || sel.field != "b:c" {
		t.Errorf("a:b:c parsed as signal %q field %q", sel.Signal(), sel.field)
	}
}

func TestDispatcher_Order(t *testing.T) {
	d := newTestDispatcher()

	var got []string
	record := func(name string) Handler {
		return func(m Message) { got = append(got, name+":"+m.Key+"="+string(m.Load)) }
	}

	d.add(Plain("data"), record("plain"))
	d.add(Matching("data", regexp.MustCompile(`^v`)), record("match"))
	d.add(Filtered("data", "x"), record("filtered"))
	d.addTap(record("tap"))

	d.dispatch("data", json.RawMessage(`{"v2":2,"x":1,"v1":1}`))

	want := []string{
		`plain:={"v2":2,"x":1,"v1":1}`,
		"match:v2=2",
		"match:v1=1",
		"filtered:x=1",
		`tap:={"v2":2,"x":1,"v1":1}`,
	}
	if strings.Join(got, " ") != strings.Join(want, " ") {
		t.Errorf("got %q\nwant %q", got, want)
	}
}

func TestDispatcher_NonObjectLoad(t *testing.T) {
	d := newTestDispatcher()

	var plain, filtered int
	d.add(Plain("data"), func(Message) { plain++ })
	d.add(Filtered("data", "x"), func(Message) { filtered++ })
	d.add(Matching("data", regexp.MustCompile(`.`)), func(Message) { filtered++ })

	for _, load := range []string{`1`, `"x"`, `[{"x":1}]`, `null`} {
		d.dispatch("data", json.RawMessage(load))
	}

	if plain != 4 {
		t.Errorf("plain handler ran %d times, want 4", plain)
	}
	if filtered != 0 {
		t.Errorf("filtered handlers ran %d times, want 0", filtered)
	}
}

func TestDispatcher_DuplicateKeyLastWins(t *testing.T) {
	d := newTestDispatcher()

	var got string
	d.add(Filtered("data", "x"), func(m Message) { got = string(m.Load) })
	d.dispatch("data", json.RawMessage(`{"x":1,"x":2}`))

	if got != "2" {
		t.Errorf("x = %s, want 2", got)
	}
}

func TestDispatcher_PanicIsolated(t *testing.T) {
	d := newTestDispatcher()

	var after bool
	d.add(Plain("boom"), func(Message) { panic("handler failure") })
	d.add(Plain("boom"), func(Message) { after = true })

	d.dispatch("boom", json.RawMessage(`{}`))

	if !after {
		t.Error("second handler did not run after a panic")
	}
}

func TestDispatcher_Remove(t *testing.T) {
	d := newTestDispatcher()

	var a, b int
	idA := d.add(Plain("s"), func(Message) { a++ })
	d.add(Plain("s"), func(Message) { b++ })

	d.dispatch("s", json.RawMessage(`0`))
	d.remove("s", idA)
	d.remove("s", idA)
	d.dispatch("s", json.RawMessage(`0`))

	if a != 1 || b != 2 {
		t.Errorf("counts = (%d, %d), want (1, 2)", a, b)
	}

	tap := d.addTap(func(Message) { a++ })
	d.removeTap(tap)
	d.dispatch("s", json.RawMessage(`0`))
	if a != 1 {
		t.Errorf("removed tap still ran")
	}
}

func TestDispatcher_HandlerMayRegister(t *testing.T) {
	d := newTestDispatcher()

	var late int
	d.add(Plain("s"), func(Message) {
		d.add(Plain("s"), func(Message) { late++ })
	})

	d.dispatch("s", json.RawMessage(`0`))
	if late != 0 {
		t.Errorf("handler added during dispatch ran in the same dispatch")
	}
	d.dispatch("s", json.RawMessage(`0`))
	if late != 1 {
		t.Errorf("late handler ran %d times, want 1", late)
	}
}

func TestDispatcher_UnknownSignal(t *testing.T) {
	d := newTestDispatcher()
	d.dispatch("nobody-listens", json.RawMessage(`{"a":1}`))
}

func TestObjectFields(t *testing.T) {
	fields, ok := objectFields(json.RawMessage(`{"b":[1,2],"a":{"c":null}}`))
	if !ok {
		t.Fatal("expected object")
	}
	if len(fields) != 2 || fields[0].key != "b" || fields[1].key != "a" {
		t.Fatalf("fields = %+v", fields)
	}
	if string(fields[1].value) != `{"c":null}` {
		t.Errorf("a = %s", fields[1].value)
	}

	if _, ok := objectFields(json.RawMessage(`{"a":`)); ok {
		t.Error("truncated object reported as valid")
	}
}
