package command

import (
	"testing"

	"github.com/spineldb/spineldb/pkg/resp"
)

func setupGeneric() (*Registry, *Executor) {
	reg := NewRegistry()
	RegisterGenericCommands(reg)
	RegisterStringCommands(reg)
	return reg, NewExecutor(reg)
}

func TestDelExists(t *testing.T) {
	_, e := setupGeneric()
	ctx, _ := newTestContext()

	e.Execute(ctx, "SET", []string{"a", "1"})
	e.Execute(ctx, "SET", []string{"b", "2"})
	reply, _ := e.Execute(ctx, "EXISTS", []string{"a", "b", "missing"})
	if reply.Int != 2 {
		t.Fatalf("EXISTS = %d, want 2", reply.Int)
	}
	delReply, _ := e.Execute(ctx, "DEL", []string{"a", "missing"})
	if delReply.Int != 1 {
		t.Errorf("DEL = %d, want 1", delReply.Int)
	}
}

func TestTypeOf(t *testing.T) {
	_, e := setupGeneric()
	ctx, _ := newTestContext()

	e.Execute(ctx, "SET", []string{"a", "1"})
	reply, _ := e.Execute(ctx, "TYPE", []string{"a"})
	if reply.Str != "string" {
		t.Errorf("TYPE a = %q, want string", reply.Str)
	}
	reply, _ = e.Execute(ctx, "TYPE", []string{"missing"})
	if reply.Str != "none" {
		t.Errorf("TYPE missing = %q, want none", reply.Str)
	}
}

func TestExpireTTLPersist(t *testing.T) {
	_, e := setupGeneric()
	ctx, _ := newTestContext()

	e.Execute(ctx, "SET", []string{"a", "1"})
	reply, _ := e.Execute(ctx, "EXPIRE", []string{"a", "100"})
	if reply.Int != 1 {
		t.Fatalf("EXPIRE = %d, want 1", reply.Int)
	}
	ttlReply, _ := e.Execute(ctx, "TTL", []string{"a"})
	if ttlReply.Int <= 0 || ttlReply.Int > 100 {
		t.Errorf("TTL = %d, want in (0,100]", ttlReply.Int)
	}
	persistReply, _ := e.Execute(ctx, "PERSIST", []string{"a"})
	if persistReply.Int != 1 {
		t.Fatalf("PERSIST = %d, want 1", persistReply.Int)
	}
	ttlReply, _ = e.Execute(ctx, "TTL", []string{"a"})
	if ttlReply.Int != -1 {
		t.Errorf("TTL after PERSIST = %d, want -1", ttlReply.Int)
	}
}

func TestTTLOnMissingKey(t *testing.T) {
	_, e := setupGeneric()
	ctx, _ := newTestContext()

	reply, _ := e.Execute(ctx, "TTL", []string{"missing"})
	if reply.Int != -2 {
		t.Errorf("TTL missing = %d, want -2", reply.Int)
	}
}

func TestKeysMatchesGlob(t *testing.T) {
	_, e := setupGeneric()
	ctx, _ := newTestContext()

	e.Execute(ctx, "SET", []string{"foo:1", "a"})
	e.Execute(ctx, "SET", []string{"foo:2", "b"})
	e.Execute(ctx, "SET", []string{"bar", "c"})
	reply, _ := e.Execute(ctx, "KEYS", []string{"foo:*"})
	if len(reply.Elems) != 2 {
		t.Errorf("KEYS foo:* = %+v, want 2 matches", reply.Elems)
	}
}

func TestRenameMovesValue(t *testing.T) {
	_, e := setupGeneric()
	ctx, _ := newTestContext()

	e.Execute(ctx, "SET", []string{"src", "val"})
	reply, _ := e.Execute(ctx, "RENAME", []string{"src", "dst"})
	if reply.Kind != resp.KindSimpleString || reply.Str != "OK" {
		t.Fatalf("RENAME reply = %+v", reply)
	}
	getReply, _ := e.Execute(ctx, "GET", []string{"dst"})
	if getReply.Str != "val" {
		t.Errorf("GET dst = %q, want val", getReply.Str)
	}
	getSrc, _ := e.Execute(ctx, "GET", []string{"src"})
	if getSrc.Kind != resp.KindNullBulk {
		t.Errorf("src key should be gone after RENAME")
	}
}

func TestPingEcho(t *testing.T) {
	_, e := setupGeneric()
	ctx, _ := newTestContext()

	reply, _ := e.Execute(ctx, "PING", nil)
	if reply.Str != "PONG" {
		t.Errorf("PING = %q, want PONG", reply.Str)
	}
	echoReply, _ := e.Execute(ctx, "ECHO", []string{"hi"})
	if echoReply.Str != "hi" {
		t.Errorf("ECHO = %q, want hi", echoReply.Str)
	}
}
