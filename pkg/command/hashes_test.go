package command

import "testing"

func TestHSetHGetAndHGetAll(t *testing.T) {
	reg := NewRegistry()
	RegisterHashCommands(reg)
	e := NewExecutor(reg)
	ctx, _ := newTestContext()

	reply, _ := e.Execute(ctx, "HSET", []string{"h", "f1", "v1", "f2", "v2"})
	if reply.Int != 2 {
		t.Fatalf("HSET added = %d, want 2", reply.Int)
	}
	getReply, _ := e.Execute(ctx, "HGET", []string{"h", "f1"})
	if getReply.Str != "v1" {
		t.Errorf("HGET f1 = %q, want v1", getReply.Str)
	}
	allReply, _ := e.Execute(ctx, "HGETALL", []string{"h"})
	if len(allReply.Elems) != 4 {
		t.Errorf("HGETALL returned %d elements, want 4", len(allReply.Elems))
	}
}

func TestHSetNXSkipsExistingField(t *testing.T) {
	reg := NewRegistry()
	RegisterHashCommands(reg)
	e := NewExecutor(reg)
	ctx, _ := newTestContext()

	e.Execute(ctx, "HSET", []string{"h", "f", "v"})
	reply, _ := e.Execute(ctx, "HSETNX", []string{"h", "f", "other"})
	if reply.Int != 0 {
		t.Fatalf("HSETNX over existing field = %d, want 0", reply.Int)
	}
	getReply, _ := e.Execute(ctx, "HGET", []string{"h", "f"})
	if getReply.Str != "v" {
		t.Errorf("field value changed despite HSETNX no-op: %q", getReply.Str)
	}
}

func TestHDelRemovesFieldAndKeyWhenEmpty(t *testing.T) {
	reg := NewRegistry()
	RegisterHashCommands(reg)
	e := NewExecutor(reg)
	ctx, db := newTestContext()

	e.Execute(ctx, "HSET", []string{"h", "f", "v"})
	reply, _ := e.Execute(ctx, "HDEL", []string{"h", "f"})
	if reply.Int != 1 {
		t.Fatalf("HDEL = %d, want 1", reply.Int)
	}
	if _, ok := db.Get("h"); ok {
		t.Error("hash key should be removed once its last field is deleted")
	}
}

func TestHIncrBy(t *testing.T) {
	reg := NewRegistry()
	RegisterHashCommands(reg)
	e := NewExecutor(reg)
	ctx, _ := newTestContext()

	reply, _ := e.Execute(ctx, "HINCRBY", []string{"h", "ctr", "5"})
	if reply.Int != 5 {
		t.Fatalf("HINCRBY = %d, want 5", reply.Int)
	}
	reply, _ = e.Execute(ctx, "HINCRBY", []string{"h", "ctr", "-2"})
	if reply.Int != 3 {
		t.Errorf("HINCRBY = %d, want 3", reply.Int)
	}
}
