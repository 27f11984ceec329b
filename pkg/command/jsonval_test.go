package command

import (
	"strings"
	"testing"

	"github.com/spineldb/spineldb/pkg/resp"
)

func TestJSONSetGetRoundTrip(t *testing.T) {
	reg := NewRegistry()
	RegisterJSONCommands(reg)
	e := NewExecutor(reg)
	ctx, _ := newTestContext()

	if _, err := e.Execute(ctx, "JSON.SET", []string{"doc", "$", `{"a":1,"b":{"c":2}}`}); err != nil {
		t.Fatalf("JSON.SET: %v", err)
	}
	reply, _ := e.Execute(ctx, "JSON.GET", []string{"doc", "$.b.c"})
	if reply.Str != "2" {
		t.Errorf("JSON.GET $.b.c = %q, want 2", reply.Str)
	}
}

func TestJSONSetNXRejectsExistingPath(t *testing.T) {
	reg := NewRegistry()
	RegisterJSONCommands(reg)
	e := NewExecutor(reg)
	ctx, _ := newTestContext()

	e.Execute(ctx, "JSON.SET", []string{"doc", "$", `{"a":1}`})
	reply, _ := e.Execute(ctx, "JSON.SET", []string{"doc", "$.a", "2", "NX"})
	if reply.Kind != resp.KindNullBulk {
		t.Errorf("expected null-bulk for NX on existing path, got %+v", reply)
	}
}

func TestJSONDelRemovesField(t *testing.T) {
	reg := NewRegistry()
	RegisterJSONCommands(reg)
	e := NewExecutor(reg)
	ctx, _ := newTestContext()

	e.Execute(ctx, "JSON.SET", []string{"doc", "$", `{"a":1,"b":2}`})
	reply, _ := e.Execute(ctx, "JSON.DEL", []string{"doc", "$.a"})
	if reply.Int != 1 {
		t.Fatalf("JSON.DEL = %d, want 1", reply.Int)
	}
	getReply, _ := e.Execute(ctx, "JSON.GET", []string{"doc", "$"})
	if strings.Contains(getReply.Str, "\"a\"") {
		t.Errorf("deleted field still present: %s", getReply.Str)
	}
}

func TestJSONMergeDeletesNullKeys(t *testing.T) {
	reg := NewRegistry()
	RegisterJSONCommands(reg)
	e := NewExecutor(reg)
	ctx, _ := newTestContext()

	e.Execute(ctx, "JSON.SET", []string{"doc", "$", `{"a":1,"b":2}`})
	e.Execute(ctx, "JSON.MERGE", []string{"doc", "$", `{"a":null,"c":3}`})
	getReply, _ := e.Execute(ctx, "JSON.GET", []string{"doc", "$"})
	if strings.Contains(getReply.Str, "\"a\"") || !strings.Contains(getReply.Str, "\"c\"") {
		t.Errorf("JSON.MERGE result = %s, want a removed and c present", getReply.Str)
	}
}

func TestJSONType(t *testing.T) {
	reg := NewRegistry()
	RegisterJSONCommands(reg)
	e := NewExecutor(reg)
	ctx, _ := newTestContext()

	e.Execute(ctx, "JSON.SET", []string{"doc", "$", `{"a":[1,2,3]}`})
	reply, _ := e.Execute(ctx, "JSON.TYPE", []string{"doc", "$.a"})
	if reply.Str != "array" {
		t.Errorf("JSON.TYPE $.a = %q, want array", reply.Str)
	}
}
