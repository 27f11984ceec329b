package command

import (
	"testing"

	"github.com/spineldb/spineldb/pkg/resp"
)

func TestBFAddAndExists(t *testing.T) {
	reg := NewRegistry()
	RegisterBloomCommands(reg)
	e := NewExecutor(reg)
	ctx, _ := newTestContext()

	if _, err := e.Execute(ctx, "BF.ADD", []string{"f", "hello"}); err != nil {
		t.Fatalf("BF.ADD: %v", err)
	}
	reply, _ := e.Execute(ctx, "BF.EXISTS", []string{"f", "hello"})
	if reply.Int != 1 {
		t.Errorf("BF.EXISTS hello = %d, want 1", reply.Int)
	}
	reply, _ = e.Execute(ctx, "BF.EXISTS", []string{"f", "nope"})
	if reply.Int != 0 {
		t.Errorf("BF.EXISTS nope = %d, want 0", reply.Int)
	}
}

func TestBFReserveRejectsExistingKey(t *testing.T) {
	reg := NewRegistry()
	RegisterBloomCommands(reg)
	e := NewExecutor(reg)
	ctx, _ := newTestContext()

	if _, err := e.Execute(ctx, "BF.RESERVE", []string{"f", "0.01", "1000"}); err != nil {
		t.Fatalf("BF.RESERVE: %v", err)
	}
	reply, _ := e.Execute(ctx, "BF.RESERVE", []string{"f", "0.01", "1000"})
	if reply.Kind != resp.KindError {
		t.Errorf("expected error reusing an existing key, got %+v", reply)
	}
}

func TestBFMAddMExists(t *testing.T) {
	reg := NewRegistry()
	RegisterBloomCommands(reg)
	e := NewExecutor(reg)
	ctx, _ := newTestContext()

	e.Execute(ctx, "BF.MADD", []string{"f", "a", "b", "c"})
	reply, _ := e.Execute(ctx, "BF.MEXISTS", []string{"f", "a", "z", "c"})
	if len(reply.Elems) != 3 || reply.Elems[0].Int != 1 || reply.Elems[1].Int != 0 || reply.Elems[2].Int != 1 {
		t.Errorf("BF.MEXISTS = %+v, want [1 0 1]", reply.Elems)
	}
}
