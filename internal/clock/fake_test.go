package clock

import (
	"testing"
	"time"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFake_AdvanceFiresInDeadlineOrder(t *testing.T) {
	c := Fake(epoch)

	var order []int
	c.AfterFunc(300*time.Millisecond, func() { order = append(order, 3) })
	c.AfterFunc(100*time.Millisecond, func() { order = append(order, 1) })
	c.AfterFunc(200*time.Millisecond, func() { order = append(order, 2) })

	c.Advance(250 * time.Millisecond)
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("order = %v, want [1 2]", order)
	}
	if got := c.Pending(); got != 1 {
		t.Errorf("Pending() = %d, want 1", got)
	}

	c.Advance(50 * time.Millisecond)
	if len(order) != 3 || order[2] != 3 {
		t.Fatalf("order = %v, want [1 2 3]", order)
	}
	if !c.Now().Equal(epoch.Add(300 * time.Millisecond)) {
		t.Errorf("Now() = %v", c.Now())
	}
}

func TestFake_Stop(t *testing.T) {
	c := Fake(epoch)

	fired := false
	timer := c.AfterFunc(time.Second, func() { fired = true })

	if !timer.Stop() {
		t.Error("first Stop should report true")
	}
	if timer.Stop() {
		t.Error("second Stop should report false")
	}

	c.Advance(2 * time.Second)
	if fired {
		t.Error("stopped timer fired")
	}
	if got := c.Pending(); got != 0 {
		t.Errorf("Pending() = %d, want 0", got)
	}
}

func TestFake_CallbackSchedulesWithinWindow(t *testing.T) {
	c := Fake(epoch)

	count := 0
	var again func()
	again = func() {
		count++
		if count < 3 {
			c.AfterFunc(100*time.Millisecond, again)
		}
	}
	c.AfterFunc(100*time.Millisecond, again)

	c.Advance(time.Second)
	if count != 3 {
		t.Errorf("count = %d, want 3", count)
	}
}

func TestFake_WaitForTimers(t *testing.T) {
	c := Fake(epoch)

	go c.AfterFunc(time.Minute, func() {})

	done := make(chan struct{})
	go func() {
		c.WaitForTimers(1)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("WaitForTimers did not return")
	}
}

func TestReal_AfterFunc(t *testing.T) {
	fired := make(chan struct{})
	Real().AfterFunc(time.Millisecond, func() { close(fired) })

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("real timer did not fire")
	}

	var nilTimer *Timer
	if nilTimer.Stop() {
		t.Error("nil timer Stop should report false")
	}
}
