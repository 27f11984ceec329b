package command

import (
	"testing"

	"github.com/spineldb/spineldb/pkg/resp"
)

func TestSetGetRoundTrip(t *testing.T) {
	reg := NewRegistry()
	RegisterStringCommands(reg)
	e := NewExecutor(reg)
	ctx, _ := newTestContext()

	e.Execute(ctx, "SET", []string{"foo", "bar"})
	reply, _ := e.Execute(ctx, "GET", []string{"foo"})
	if reply.Str != "bar" {
		t.Errorf("GET foo = %q, want bar", reply.Str)
	}
}

func TestSetNXSkipsExistingKey(t *testing.T) {
	reg := NewRegistry()
	RegisterStringCommands(reg)
	e := NewExecutor(reg)
	ctx, _ := newTestContext()

	e.Execute(ctx, "SET", []string{"foo", "bar"})
	reply, _ := e.Execute(ctx, "SET", []string{"foo", "baz", "NX"})
	if reply.Kind != resp.KindNullBulk {
		t.Fatalf("expected null-bulk for NX on existing key, got %+v", reply)
	}
	getReply, _ := e.Execute(ctx, "GET", []string{"foo"})
	if getReply.Str != "bar" {
		t.Errorf("value changed despite NX: %q", getReply.Str)
	}
}

func TestIncrDecrByOnMissingKey(t *testing.T) {
	reg := NewRegistry()
	RegisterStringCommands(reg)
	e := NewExecutor(reg)
	ctx, _ := newTestContext()

	reply, _ := e.Execute(ctx, "INCRBY", []string{"ctr", "5"})
	if reply.Int != 5 {
		t.Fatalf("INCRBY from missing key = %d, want 5", reply.Int)
	}
	reply, _ = e.Execute(ctx, "DECRBY", []string{"ctr", "2"})
	if reply.Int != 3 {
		t.Errorf("DECRBY = %d, want 3", reply.Int)
	}
}

func TestIncrOnNonIntegerValueErrors(t *testing.T) {
	reg := NewRegistry()
	RegisterStringCommands(reg)
	e := NewExecutor(reg)
	ctx, _ := newTestContext()

	e.Execute(ctx, "SET", []string{"foo", "notanumber"})
	reply, _ := e.Execute(ctx, "INCR", []string{"foo"})
	if reply.Kind != resp.KindError {
		t.Fatalf("expected error incrementing a non-integer value, got %+v", reply)
	}
}

func TestAppendExtendsExistingValue(t *testing.T) {
	reg := NewRegistry()
	RegisterStringCommands(reg)
	e := NewExecutor(reg)
	ctx, _ := newTestContext()

	e.Execute(ctx, "SET", []string{"foo", "Hello"})
	reply, _ := e.Execute(ctx, "APPEND", []string{"foo", " World"})
	if reply.Int != 11 {
		t.Fatalf("APPEND returned length %d, want 11", reply.Int)
	}
	getReply, _ := e.Execute(ctx, "GET", []string{"foo"})
	if getReply.Str != "Hello World" {
		t.Errorf("APPEND result = %q, want %q", getReply.Str, "Hello World")
	}
}

func TestMSetMGet(t *testing.T) {
	reg := NewRegistry()
	RegisterStringCommands(reg)
	e := NewExecutor(reg)
	ctx, _ := newTestContext()

	e.Execute(ctx, "MSET", []string{"a", "1", "b", "2"})
	reply, _ := e.Execute(ctx, "MGET", []string{"a", "b", "missing"})
	if len(reply.Elems) != 3 || reply.Elems[0].Str != "1" || reply.Elems[1].Str != "2" || reply.Elems[2].Kind != resp.KindNullBulk {
		t.Errorf("MGET = %+v", reply.Elems)
	}
}

func TestGetDelRemovesKey(t *testing.T) {
	reg := NewRegistry()
	RegisterStringCommands(reg)
	e := NewExecutor(reg)
	ctx, _ := newTestContext()

	e.Execute(ctx, "SET", []string{"foo", "bar"})
	reply, _ := e.Execute(ctx, "GETDEL", []string{"foo"})
	if reply.Str != "bar" {
		t.Fatalf("GETDEL = %q, want bar", reply.Str)
	}
	getReply, _ := e.Execute(ctx, "GET", []string{"foo"})
	if getReply.Kind != resp.KindNullBulk {
		t.Errorf("key should be gone after GETDEL, got %+v", getReply)
	}
}
