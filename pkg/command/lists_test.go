package command

import "testing"

func TestLPushRPushLRange(t *testing.T) {
	reg := NewRegistry()
	RegisterListCommands(reg)
	e := NewExecutor(reg)
	ctx, _ := newTestContext()

	e.Execute(ctx, "RPUSH", []string{"l", "a", "b", "c"})
	reply, _ := e.Execute(ctx, "LRANGE", []string{"l", "0", "-1"})
	if len(reply.Elems) != 3 || reply.Elems[0].Str != "a" || reply.Elems[2].Str != "c" {
		t.Errorf("LRANGE = %+v, want [a b c]", reply.Elems)
	}
}

func TestLPopWithCount(t *testing.T) {
	reg := NewRegistry()
	RegisterListCommands(reg)
	e := NewExecutor(reg)
	ctx, _ := newTestContext()

	e.Execute(ctx, "RPUSH", []string{"l", "a", "b", "c"})
	reply, _ := e.Execute(ctx, "LPOP", []string{"l", "2"})
	if len(reply.Elems) != 2 || reply.Elems[0].Str != "a" || reply.Elems[1].Str != "b" {
		t.Errorf("LPOP 2 = %+v, want [a b]", reply.Elems)
	}
}

func TestListKeyDeletedWhenEmptiedByPop(t *testing.T) {
	reg := NewRegistry()
	RegisterListCommands(reg)
	e := NewExecutor(reg)
	ctx, db := newTestContext()

	e.Execute(ctx, "RPUSH", []string{"l", "only"})
	e.Execute(ctx, "LPOP", []string{"l"})
	if _, ok := db.Get("l"); ok {
		t.Error("key should be removed once the list is emptied")
	}
}

func TestBLPopReturnsWouldBlockOnEmptyKeys(t *testing.T) {
	reg := NewRegistry()
	RegisterListCommands(reg)
	e := NewExecutor(reg)
	ctx, _ := newTestContext()

	_, err := e.Execute(ctx, "BLPOP", []string{"missing", "0"})
	if !IsWouldBlock(err) {
		t.Fatalf("expected a would-block sentinel, got %v", err)
	}
}

func TestBLPopPopsImmediatelyWhenDataPresent(t *testing.T) {
	reg := NewRegistry()
	RegisterListCommands(reg)
	e := NewExecutor(reg)
	ctx, _ := newTestContext()

	e.Execute(ctx, "RPUSH", []string{"l", "x"})
	reply, err := e.Execute(ctx, "BLPOP", []string{"l", "0"})
	if err != nil {
		t.Fatalf("BLPOP: %v", err)
	}
	if len(reply.Elems) != 2 || reply.Elems[0].Str != "l" || reply.Elems[1].Str != "x" {
		t.Errorf("BLPOP = %+v, want [l x]", reply.Elems)
	}
}

func TestRPopLPushMovesElement(t *testing.T) {
	reg := NewRegistry()
	RegisterListCommands(reg)
	e := NewExecutor(reg)
	ctx, _ := newTestContext()

	e.Execute(ctx, "RPUSH", []string{"src", "a", "b"})
	reply, _ := e.Execute(ctx, "RPOPLPUSH", []string{"src", "dst"})
	if reply.Str != "b" {
		t.Fatalf("RPOPLPUSH = %q, want b", reply.Str)
	}
	dstReply, _ := e.Execute(ctx, "LRANGE", []string{"dst", "0", "-1"})
	if len(dstReply.Elems) != 1 || dstReply.Elems[0].Str != "b" {
		t.Errorf("dst list = %+v, want [b]", dstReply.Elems)
	}
}
