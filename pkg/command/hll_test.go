package command

import "testing"

func TestPFAddPFCount(t *testing.T) {
	reg := NewRegistry()
	RegisterHLLCommands(reg)
	e := NewExecutor(reg)
	ctx, _ := newTestContext()

	if _, err := e.Execute(ctx, "PFADD", []string{"hll", "a", "b", "c"}); err != nil {
		t.Fatalf("PFADD: %v", err)
	}
	reply, _ := e.Execute(ctx, "PFCOUNT", []string{"hll"})
	if reply.Int < 2 || reply.Int > 4 {
		t.Errorf("PFCOUNT = %d, want ~3", reply.Int)
	}
}

func TestPFMergeUnionsEstimates(t *testing.T) {
	reg := NewRegistry()
	RegisterHLLCommands(reg)
	e := NewExecutor(reg)
	ctx, _ := newTestContext()

	e.Execute(ctx, "PFADD", []string{"h1", "a", "b"})
	e.Execute(ctx, "PFADD", []string{"h2", "b", "c"})
	if _, err := e.Execute(ctx, "PFMERGE", []string{"dest", "h1", "h2"}); err != nil {
		t.Fatalf("PFMERGE: %v", err)
	}
	reply, _ := e.Execute(ctx, "PFCOUNT", []string{"dest"})
	if reply.Int < 2 || reply.Int > 4 {
		t.Errorf("PFCOUNT dest = %d, want ~3", reply.Int)
	}
}

func TestPFCountMultipleKeysWithoutMutation(t *testing.T) {
	reg := NewRegistry()
	RegisterHLLCommands(reg)
	e := NewExecutor(reg)
	ctx, _ := newTestContext()

	e.Execute(ctx, "PFADD", []string{"h1", "a", "b"})
	e.Execute(ctx, "PFADD", []string{"h2", "c"})
	reply, _ := e.Execute(ctx, "PFCOUNT", []string{"h1", "h2"})
	if reply.Int < 2 || reply.Int > 4 {
		t.Errorf("PFCOUNT h1 h2 = %d, want ~3", reply.Int)
	}
}
