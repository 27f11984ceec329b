package txn

import (
	"testing"

	"github.com/spineldb/spineldb/pkg/session"
)

func TestNotifyWriteMarksWatchingSessionDirty(t *testing.T) {
	r := NewRegistry()
	s1 := session.New(nil)
	s2 := session.New(nil)
	r.Watch(s1, 0, "k")

	r.NotifyWrite(0, "k")
	if !s1.IsDirty() {
		t.Error("s1 watches k and should be dirty after a write to k")
	}
	if s2.IsDirty() {
		t.Error("s2 does not watch k and should not be dirty")
	}
}

func TestNotifyWriteIgnoresUnwatchedKey(t *testing.T) {
	r := NewRegistry()
	s1 := session.New(nil)
	r.Watch(s1, 0, "k")

	r.NotifyWrite(0, "other")
	if s1.IsDirty() {
		t.Error("write to an unwatched key should not mark session dirty")
	}
}

func TestUnwatchStopsFutureNotifications(t *testing.T) {
	r := NewRegistry()
	s1 := session.New(nil)
	r.Watch(s1, 0, "k")
	r.Unwatch(s1)

	r.NotifyWrite(0, "k")
	if s1.IsDirty() {
		t.Error("after Unwatch, write to k should not mark session dirty")
	}
}
