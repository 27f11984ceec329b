package command

import "testing"

func TestZAddZScoreZRange(t *testing.T) {
	reg := NewRegistry()
	RegisterZSetCommands(reg)
	e := NewExecutor(reg)
	ctx, _ := newTestContext()

	reply, _ := e.Execute(ctx, "ZADD", []string{"z", "1", "a", "2", "b", "3", "c"})
	if reply.Int != 3 {
		t.Fatalf("ZADD added = %d, want 3", reply.Int)
	}
	scoreReply, _ := e.Execute(ctx, "ZSCORE", []string{"z", "b"})
	if scoreReply.Str != "2" {
		t.Errorf("ZSCORE b = %q, want 2", scoreReply.Str)
	}
	rangeReply, _ := e.Execute(ctx, "ZRANGE", []string{"z", "0", "-1"})
	if len(rangeReply.Elems) != 3 || rangeReply.Elems[0].Str != "a" || rangeReply.Elems[2].Str != "c" {
		t.Errorf("ZRANGE = %+v, want [a b c]", rangeReply.Elems)
	}
}

func TestZAddNXSkipsExistingMember(t *testing.T) {
	reg := NewRegistry()
	RegisterZSetCommands(reg)
	e := NewExecutor(reg)
	ctx, _ := newTestContext()

	e.Execute(ctx, "ZADD", []string{"z", "1", "a"})
	e.Execute(ctx, "ZADD", []string{"z", "NX", "5", "a"})
	scoreReply, _ := e.Execute(ctx, "ZSCORE", []string{"z", "a"})
	if scoreReply.Str != "1" {
		t.Errorf("ZADD NX should not have updated existing member's score, got %q", scoreReply.Str)
	}
}

func TestZIncrBy(t *testing.T) {
	reg := NewRegistry()
	RegisterZSetCommands(reg)
	e := NewExecutor(reg)
	ctx, _ := newTestContext()

	reply, _ := e.Execute(ctx, "ZINCRBY", []string{"z", "5", "a"})
	if reply.Str != "5" {
		t.Fatalf("ZINCRBY = %q, want 5", reply.Str)
	}
	reply, _ = e.Execute(ctx, "ZINCRBY", []string{"z", "-2", "a"})
	if reply.Str != "3" {
		t.Errorf("ZINCRBY = %q, want 3", reply.Str)
	}
}

func TestZRangeByScoreWithLimit(t *testing.T) {
	reg := NewRegistry()
	RegisterZSetCommands(reg)
	e := NewExecutor(reg)
	ctx, _ := newTestContext()

	e.Execute(ctx, "ZADD", []string{"z", "1", "a", "2", "b", "3", "c", "4", "d"})
	reply, _ := e.Execute(ctx, "ZRANGEBYSCORE", []string{"z", "1", "4", "LIMIT", "1", "2"})
	if len(reply.Elems) != 2 || reply.Elems[0].Str != "b" || reply.Elems[1].Str != "c" {
		t.Errorf("ZRANGEBYSCORE LIMIT = %+v, want [b c]", reply.Elems)
	}
}

func TestZRankAndZRevRank(t *testing.T) {
	reg := NewRegistry()
	RegisterZSetCommands(reg)
	e := NewExecutor(reg)
	ctx, _ := newTestContext()

	e.Execute(ctx, "ZADD", []string{"z", "1", "a", "2", "b", "3", "c"})
	reply, _ := e.Execute(ctx, "ZRANK", []string{"z", "b"})
	if reply.Int != 1 {
		t.Errorf("ZRANK b = %d, want 1", reply.Int)
	}
	revReply, _ := e.Execute(ctx, "ZREVRANK", []string{"z", "b"})
	if revReply.Int != 1 {
		t.Errorf("ZREVRANK b = %d, want 1", revReply.Int)
	}
}
