package command

import (
	"testing"

	"github.com/spineldb/spineldb/pkg/resp"
)

func TestXAddAutoIDAndXLen(t *testing.T) {
	reg := NewRegistry()
	RegisterStreamCommands(reg)
	e := NewExecutor(reg)
	ctx, _ := newTestContext()

	reply, err := e.Execute(ctx, "XADD", []string{"s", "*", "field", "value"})
	if err != nil {
		t.Fatalf("XADD: %v", err)
	}
	if reply.Str == "" {
		t.Fatalf("expected a generated stream ID, got empty")
	}
	lenReply, _ := e.Execute(ctx, "XLEN", []string{"s"})
	if lenReply.Int != 1 {
		t.Errorf("XLEN = %d, want 1", lenReply.Int)
	}
}

func TestXRangeReturnsInInsertionOrder(t *testing.T) {
	reg := NewRegistry()
	RegisterStreamCommands(reg)
	e := NewExecutor(reg)
	ctx, _ := newTestContext()

	e.Execute(ctx, "XADD", []string{"s", "1-1", "a", "1"})
	e.Execute(ctx, "XADD", []string{"s", "2-1", "b", "2"})

	reply, _ := e.Execute(ctx, "XRANGE", []string{"s", "-", "+"})
	if len(reply.Elems) != 2 {
		t.Fatalf("XRANGE returned %d entries, want 2", len(reply.Elems))
	}
	if reply.Elems[0].Elems[0].Str != "1-1" || reply.Elems[1].Elems[0].Str != "2-1" {
		t.Errorf("unexpected XRANGE ordering: %+v", reply.Elems)
	}
}

func TestXGroupCreateRequiresMkstreamOnMissingKey(t *testing.T) {
	reg := NewRegistry()
	RegisterStreamCommands(reg)
	e := NewExecutor(reg)
	ctx, _ := newTestContext()

	reply, _ := e.Execute(ctx, "XGROUP", []string{"CREATE", "s", "grp", "$"})
	if reply.Kind != resp.KindError {
		t.Fatalf("expected error without MKSTREAM, got %+v", reply)
	}
	reply, err := e.Execute(ctx, "XGROUP", []string{"CREATE", "s", "grp", "$", "MKSTREAM"})
	if err != nil || reply.Str != "OK" {
		t.Fatalf("XGROUP CREATE with MKSTREAM failed: reply=%+v err=%v", reply, err)
	}
}

func TestXDelRemovesEntry(t *testing.T) {
	reg := NewRegistry()
	RegisterStreamCommands(reg)
	e := NewExecutor(reg)
	ctx, _ := newTestContext()

	e.Execute(ctx, "XADD", []string{"s", "1-1", "a", "1"})
	reply, _ := e.Execute(ctx, "XDEL", []string{"s", "1-1"})
	if reply.Int != 1 {
		t.Fatalf("XDEL = %d, want 1", reply.Int)
	}
	lenReply, _ := e.Execute(ctx, "XLEN", []string{"s"})
	if lenReply.Int != 0 {
		t.Errorf("XLEN after XDEL = %d, want 0", lenReply.Int)
	}
}
