package command

import (
	"testing"

	"github.com/spineldb/spineldb/pkg/resp"
)

func strValues(elems []resp.Value) []string {
	out := make([]string, len(elems))
	for i, e := range elems {
		out[i] = e.Str
	}
	return out
}

func TestSAddSIsMemberSCard(t *testing.T) {
	reg := NewRegistry()
	RegisterSetCommands(reg)
	e := NewExecutor(reg)
	ctx, _ := newTestContext()

	reply, _ := e.Execute(ctx, "SADD", []string{"s", "a", "b", "a"})
	if reply.Int != 2 {
		t.Fatalf("SADD = %d, want 2 (dup ignored)", reply.Int)
	}
	cardReply, _ := e.Execute(ctx, "SCARD", []string{"s"})
	if cardReply.Int != 2 {
		t.Errorf("SCARD = %d, want 2", cardReply.Int)
	}
	isReply, _ := e.Execute(ctx, "SISMEMBER", []string{"s", "a"})
	if isReply.Int != 1 {
		t.Errorf("SISMEMBER a = %d, want 1", isReply.Int)
	}
}

func TestSRemDeletesKeyWhenEmptied(t *testing.T) {
	reg := NewRegistry()
	RegisterSetCommands(reg)
	e := NewExecutor(reg)
	ctx, db := newTestContext()

	e.Execute(ctx, "SADD", []string{"s", "only"})
	e.Execute(ctx, "SREM", []string{"s", "only"})
	if _, ok := db.Get("s"); ok {
		t.Error("set key should be removed once emptied")
	}
}

func setOf(vals []string) map[string]bool {
	m := make(map[string]bool, len(vals))
	for _, v := range vals {
		m[v] = true
	}
	return m
}

func TestSUnionInterDiff(t *testing.T) {
	reg := NewRegistry()
	RegisterSetCommands(reg)
	e := NewExecutor(reg)
	ctx, _ := newTestContext()

	e.Execute(ctx, "SADD", []string{"a", "1", "2", "3"})
	e.Execute(ctx, "SADD", []string{"b", "2", "3", "4"})

	union, _ := e.Execute(ctx, "SUNION", []string{"a", "b"})
	got := setOf(strValues(union.Elems))
	want := setOf([]string{"1", "2", "3", "4"})
	if len(got) != len(want) {
		t.Errorf("SUNION = %v, want %v", got, want)
	}

	inter, _ := e.Execute(ctx, "SINTER", []string{"a", "b"})
	gotInter := setOf(strValues(inter.Elems))
	wantInter := setOf([]string{"2", "3"})
	if len(gotInter) != len(wantInter) {
		t.Errorf("SINTER = %v, want %v", gotInter, wantInter)
	}

	diff, _ := e.Execute(ctx, "SDIFF", []string{"a", "b"})
	gotDiff := setOf(strValues(diff.Elems))
	wantDiff := setOf([]string{"1"})
	if len(gotDiff) != len(wantDiff) {
		t.Errorf("SDIFF = %v, want %v", gotDiff, wantDiff)
	}
}

func TestSMoveTransfersMember(t *testing.T) {
	reg := NewRegistry()
	RegisterSetCommands(reg)
	e := NewExecutor(reg)
	ctx, _ := newTestContext()

	e.Execute(ctx, "SADD", []string{"src", "x"})
	reply, _ := e.Execute(ctx, "SMOVE", []string{"src", "dst", "x"})
	if reply.Int != 1 {
		t.Fatalf("SMOVE = %d, want 1", reply.Int)
	}
	dstIs, _ := e.Execute(ctx, "SISMEMBER", []string{"dst", "x"})
	if dstIs.Int != 1 {
		t.Errorf("member not present in dst after SMOVE")
	}
}
