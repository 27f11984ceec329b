package blocking

import (
	"testing"
	"time"
)

func TestSignalDeliversToOldestWaiter(t *testing.T) {
	c := NewCoordinator()
	w1 := c.Register(0, []string{"q"}, time.Minute)
	w2 := c.Register(0, []string{"q"}, time.Minute)

	if !c.Signal(0, "q", "x") {
		t.Fatal("Signal should find a waiter")
	}
	select {
	case r := <-w1.Chan():
		if r.Value != "x" {
			t.Errorf("w1 got %q, want x", r.Value)
		}
	default:
		t.Fatal("w1 (oldest) should have been satisfied first")
	}

	if !c.Signal(0, "q", "y") {
		t.Fatal("Signal should find second waiter")
	}
	select {
	case r := <-w2.Chan():
		if r.Value != "y" {
			t.Errorf("w2 got %q, want y", r.Value)
		}
	default:
		t.Fatal("w2 should have been satisfied second")
	}
}

func TestSignalWithNoWaitersReturnsFalse(t *testing.T) {
	c := NewCoordinator()
	if c.Signal(0, "missing", "x") {
		t.Error("Signal on empty queue should return false")
	}
}

func TestTimeoutFiresWhenUnsatisfied(t *testing.T) {
	c := NewCoordinator()
	w := c.Register(0, []string{"q"}, 20*time.Millisecond)
	select {
	case r := <-w.Chan():
		if !r.TimedOut {
			t.Error("expected TimedOut result")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout did not fire")
	}
}

func TestCancelRemovesWaiterFromQueue(t *testing.T) {
	c := NewCoordinator()
	w := c.Register(0, []string{"q"}, time.Minute)
	c.Cancel(w)
	if c.HasWaiters(0, "q") {
		t.Error("HasWaiters should be false after Cancel")
	}
}

func TestMultiKeyWaiterRemovedFromAllQueues(t *testing.T) {
	c := NewCoordinator()
	w := c.Register(0, []string{"a", "b"}, time.Minute)
	c.Signal(0, "a", "v")
	if c.HasWaiters(0, "b") {
		t.Error("satisfying a waiter on key a should remove it from key b's queue too")
	}
	select {
	case <-w.Chan():
	default:
		t.Fatal("waiter should have received a result")
	}
}
