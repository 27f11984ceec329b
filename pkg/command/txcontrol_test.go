package command

import (
	"testing"

	"github.com/spineldb/spineldb/pkg/resp"
)

func setupTx() (*Registry, *Executor) {
	reg := NewRegistry()
	RegisterStringCommands(reg)
	RegisterListCommands(reg)
	exec := NewExecutor(reg)
	RegisterTxControlCommands(reg, exec)
	return reg, exec
}

func TestMultiExecReplaysQueuedCommands(t *testing.T) {
	_, e := setupTx()
	ctx, _ := newTestContext()
	s := testSession()
	ctx.Session = s

	e.Execute(ctx, "MULTI", nil)
	s.Enqueue(QueuedCommand{Name: "SET", Args: []string{"foo", "bar"}})
	s.Enqueue(QueuedCommand{Name: "GET", Args: []string{"foo"}})

	reply, err := e.Execute(ctx, "EXEC", nil)
	if err != nil {
		t.Fatalf("EXEC: %v", err)
	}
	if len(reply.Elems) != 2 {
		t.Fatalf("EXEC returned %d replies, want 2", len(reply.Elems))
	}
	if reply.Elems[1].Str != "bar" {
		t.Errorf("queued GET result = %q, want bar", reply.Elems[1].Str)
	}
}

func TestDiscardAbortsQueue(t *testing.T) {
	_, e := setupTx()
	ctx, _ := newTestContext()
	s := testSession()
	ctx.Session = s

	e.Execute(ctx, "MULTI", nil)
	s.Enqueue(QueuedCommand{Name: "SET", Args: []string{"foo", "bar"}})
	e.Execute(ctx, "DISCARD", nil)

	getReply, _ := e.Execute(ctx, "GET", []string{"foo"})
	if getReply.Kind != resp.KindNullBulk {
		t.Errorf("DISCARD should have dropped the queued SET, got %+v", getReply)
	}
}

func TestExecOnDirtySessionAborts(t *testing.T) {
	_, e := setupTx()
	ctx, _ := newTestContext()
	s := testSession()
	ctx.Session = s

	e.Execute(ctx, "MULTI", nil)
	s.Enqueue(QueuedCommand{Name: "SET", Args: []string{"foo", "bar"}})
	s.MarkWatchDirty()

	reply, _ := e.Execute(ctx, "EXEC", nil)
	if reply.Kind != resp.KindNullArray {
		t.Errorf("EXEC on a dirty session should return a null array, got %+v", reply)
	}
}

func TestExecNeverBlocksOnBlockingCommand(t *testing.T) {
	_, e := setupTx()
	ctx, _ := newTestContext()
	s := testSession()
	ctx.Session = s

	e.Execute(ctx, "MULTI", nil)
	s.Enqueue(QueuedCommand{Name: "BLPOP", Args: []string{"missing", "0"}})

	reply, err := e.Execute(ctx, "EXEC", nil)
	if err != nil {
		t.Fatalf("EXEC: %v", err)
	}
	if len(reply.Elems) != 1 || reply.Elems[0].Kind != resp.KindNullBulk {
		t.Errorf("blocking command inside MULTI should resolve to a null-bulk immediately, got %+v", reply.Elems)
	}
}
