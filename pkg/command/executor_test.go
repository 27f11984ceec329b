package command

import (
	"testing"

	"github.com/spineldb/spineldb/pkg/keyspace"
	"github.com/spineldb/spineldb/pkg/notify"
	"github.com/spineldb/spineldb/pkg/pubsub"
	"github.com/spineldb/spineldb/pkg/resp"
	"github.com/spineldb/spineldb/pkg/session"
	"github.com/spineldb/spineldb/pkg/txn"
)

func testSession() *session.Session { return session.New(nil) }

func newTestContext() (*Context, *keyspace.Database) {
	db := keyspace.NewDatabase(0, 4)
	bus := pubsub.NewBus()
	return &Context{
		DB:      db,
		DBIndex: 0,
		Bus:     bus,
		Watch:   txn.NewRegistry(),
		Notify:  notify.NewPublisher(bus),
	}, db
}

func TestExecuteUnknownCommand(t *testing.T) {
	reg := NewRegistry()
	e := NewExecutor(reg)
	ctx, _ := newTestContext()

	reply, _ := e.Execute(ctx, "NOPE", nil)
	if reply.Kind != resp.KindError {
		t.Fatalf("expected error reply, got %v", reply.Kind)
	}
}

func TestExecuteWrongArity(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&Spec{
		Name:     "ECHO",
		Arity:    2,
		LockKeys: NoKeys,
		Handler: func(ctx *Context, args []string) (resp.Value, WriteResult, error) {
			return resp.Bulk(args[0]), WriteResult{}, nil
		},
	})
	e := NewExecutor(reg)
	ctx, _ := newTestContext()

	reply, _ := e.Execute(ctx, "ECHO", nil)
	if reply.Kind != resp.KindError {
		t.Fatalf("expected arity error, got %v", reply.Kind)
	}
}

func TestExecuteWriteFunnelsNotifyAndWatch(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&Spec{
		Name:     "SET",
		Arity:    3,
		LockKeys: FixedKeyAt(0),
		Handler: func(ctx *Context, args []string) (resp.Value, WriteResult, error) {
			return resp.OK(), WriteResult{
				Wrote: true,
				Keys:  []string{args[0]},
				Event: "set",
				Class: notify.ClassString,
			}, nil
		},
	})
	e := NewExecutor(reg)
	ctx, _ := newTestContext()

	var committed []string
	e.OnCommit = func(ctx *Context, aofArgs []string) { committed = aofArgs }

	sub := ctx.Watch
	s := testSession()
	sub.Watch(s, ctx.DBIndex, "foo")

	reply, _ := e.Execute(ctx, "SET", []string{"foo", "bar"})
	if reply.Kind != resp.KindSimpleString || reply.Str != "OK" {
		t.Fatalf("unexpected reply: %+v", reply)
	}
	if !s.IsDirty() {
		t.Error("watching session should be marked dirty after the write")
	}
	if len(committed) != 3 || committed[0] != "SET" {
		t.Errorf("expected default AOF args [SET foo bar], got %v", committed)
	}
}

func TestExecuteRejectsNonSubCommandsWhileSubscribed(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&Spec{
		Name:     "GET",
		Arity:    2,
		LockKeys: FixedKeyAt(0),
		Handler: func(ctx *Context, args []string) (resp.Value, WriteResult, error) {
			return resp.NullBulk(), WriteResult{}, nil
		},
	})
	e := NewExecutor(reg)
	ctx, _ := newTestContext()
	s := testSession()
	bus := pubsub.NewBus()
	s.Sub = bus.NewSubscriber()
	ctx.Session = s

	reply, _ := e.Execute(ctx, "GET", []string{"foo"})
	if reply.Kind != resp.KindError {
		t.Fatalf("expected subscribed-context error, got %v", reply)
	}
}
