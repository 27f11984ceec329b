// Package scripting implements EVAL/EVALSHA/SCRIPT, embedding gopher-lua
// the way spec.md §4.11 requires: a script body runs against KEYS/ARGV
// globals and a redis.call/redis.pcall bridge back into the command
// executor, with a SHA-1 script cache so EVALSHA can run a body the
// client already uploaded once via EVAL or SCRIPT LOAD.
package scripting

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"sync"

	lua "github.com/yuin/gopher-lua"

	"github.com/spineldb/spineldb/pkg/resp"
)

// Caller is how a running script invokes a Redis command. pkg/command
// supplies this as a closure over its own Executor so pkg/scripting never
// has to import pkg/command (which would import pkg/scripting back for
// EVAL, an import cycle); Runtime only depends on the narrow function
// shape it actually needs.
type Caller func(name string, args []string) (resp.Value, error)

// Cache is the SHA-1 script cache SCRIPT LOAD/EXISTS/FLUSH and EVALSHA
// operate on, keyed the way Redis keys it: lowercase hex SHA-1 of the
// script body.
type Cache struct {
	mu      sync.RWMutex
	scripts map[string]string // sha -> body
}

func NewCache() *Cache { return &Cache{scripts: make(map[string]string)} }

// SHA1Hex returns the lowercase hex SHA-1 digest Redis uses as a script's
// cache key.
func SHA1Hex(body string) string {
	sum := sha1.Sum([]byte(body))
	return hex.EncodeToString(sum[:])
}

// Load stores body under its SHA-1 digest and returns the digest.
func (c *Cache) Load(body string) string {
	sha := SHA1Hex(body)
	c.mu.Lock()
	c.scripts[sha] = body
	c.mu.Unlock()
	return sha
}

// Get returns the body cached under sha, if any.
func (c *Cache) Get(sha string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	body, ok := c.scripts[sha]
	return body, ok
}

// Exists reports, per sha in shas, whether it is cached.
func (c *Cache) Exists(shas []string) []bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]bool, len(shas))
	for i, sha := range shas {
		_, out[i] = c.scripts[sha]
	}
	return out
}

// Flush empties the cache (SCRIPT FLUSH).
func (c *Cache) Flush() {
	c.mu.Lock()
	c.scripts = make(map[string]string)
	c.mu.Unlock()
}

// Runtime evaluates Lua script bodies against a fresh *lua.LState per
// call, matching gopher-lua's own recommendation that LState is not
// meant to be shared across concurrent goroutines; pkg/command already
// serializes a script's execution behind the keys EVAL locks, so a new
// interpreter per call costs less than synchronizing one shared state.
type Runtime struct {
	Cache *Cache
}

func NewRuntime(cache *Cache) *Runtime {
	return &Runtime{Cache: cache}
}

// Eval compiles and runs body with KEYS/ARGV bound and a redis.call/
// redis.pcall bridge wired to call, returning the script's single return
// value converted to a RESP reply per the EVAL reply-conversion rules
// spec.md §4.11 names (Lua number -> integer, string -> bulk string,
// table -> array, false/nil -> null, true -> integer 1).
func (rt *Runtime) Eval(body string, keys, argv []string, call Caller) (resp.Value, error) {
	L := lua.NewState(lua.Options{SkipOpenLibs: false})
	defer L.Close()

	L.SetGlobal("KEYS", stringsToLuaTable(L, keys))
	L.SetGlobal("ARGV", stringsToLuaTable(L, argv))
	L.SetGlobal("redis", rt.redisModule(L, call))

	if err := L.DoString(body); err != nil {
		return resp.Value{}, fmt.Errorf("ERR Error running script: %w", err)
	}

	if L.GetTop() == 0 {
		return resp.NullBulk(), nil
	}
	ret := L.Get(-1)
	L.Pop(1)
	return luaToResp(ret), nil
}

func (rt *Runtime) redisModule(L *lua.LState, call Caller) *lua.LTable {
	mod := L.NewTable()
	bridge := func(pcall bool) lua.LGFunction {
		return func(L *lua.LState) int {
			n := L.GetTop()
			args := make([]string, 0, n)
			for i := 1; i <= n; i++ {
				args = append(args, L.ToStringMeta(L.Get(i)).String())
			}
			if len(args) == 0 {
				L.RaiseError("redis.call requires at least one argument")
				return 0
			}
			reply, err := call(args[0], args[1:])
			if err != nil {
				if pcall {
					errTbl := L.NewTable()
					errTbl.RawSetString("err", lua.LString(err.Error()))
					L.Push(errTbl)
					return 1
				}
				L.RaiseError("%s", err.Error())
				return 0
			}
			L.Push(respToLua(L, reply))
			return 1
		}
	}
	mod.RawSetString("call", L.NewFunction(bridge(false)))
	mod.RawSetString("pcall", L.NewFunction(bridge(true)))
	mod.RawSetString("error_reply", L.NewFunction(func(L *lua.LState) int {
		tbl := L.NewTable()
		tbl.RawSetString("err", lua.LString(L.CheckString(1)))
		L.Push(tbl)
		return 1
	}))
	mod.RawSetString("status_reply", L.NewFunction(func(L *lua.LState) int {
		tbl := L.NewTable()
		tbl.RawSetString("ok", lua.LString(L.CheckString(1)))
		L.Push(tbl)
		return 1
	}))
	return mod
}

func stringsToLuaTable(L *lua.LState, ss []string) *lua.LTable {
	tbl := L.NewTable()
	for i, s := range ss {
		tbl.RawSetInt(i+1, lua.LString(s))
	}
	return tbl
}

// respToLua converts an executor reply into the Lua value redis.call
// returns to a script, the inverse of luaToResp.
func respToLua(L *lua.LState, v resp.Value) lua.LValue {
	switch v.Kind {
	case resp.KindError:
		tbl := L.NewTable()
		tbl.RawSetString("err", lua.LString(v.Str))
		return tbl
	case resp.KindSimpleString:
		tbl := L.NewTable()
		tbl.RawSetString("ok", lua.LString(v.Str))
		return tbl
	case resp.KindInteger, resp.KindBoolean:
		return lua.LNumber(v.Int)
	case resp.KindBulkString:
		return lua.LString(v.Str)
	case resp.KindNullBulk, resp.KindNullArray:
		return lua.LFalse
	case resp.KindDouble:
		return lua.LNumber(v.Double)
	case resp.KindArray, resp.KindSet, resp.KindPush, resp.KindMap:
		tbl := L.NewTable()
		for i, e := range v.Elems {
			tbl.RawSetInt(i+1, respToLua(L, e))
		}
		return tbl
	default:
		return lua.LFalse
	}
}

// luaToResp converts a script's Lua return value to a RESP reply, per the
// Redis EVAL conversion table spec.md §4.11 references.
func luaToResp(v lua.LValue) resp.Value {
	switch lv := v.(type) {
	case lua.LBool:
		if bool(lv) {
			return resp.Int(1)
		}
		return resp.NullBulk()
	case lua.LNumber:
		return resp.Int(int64(lv))
	case lua.LString:
		return resp.Bulk(string(lv))
	case *lua.LTable:
		if errVal := lv.RawGetString("err"); errVal != lua.LNil {
			return resp.ErrorReply(errVal.String())
		}
		if okVal := lv.RawGetString("ok"); okVal != lua.LNil {
			return resp.Simple(okVal.String())
		}
		var elems []resp.Value
		for i := 1; ; i++ {
			item := lv.RawGetInt(i)
			if item == lua.LNil {
				break
			}
			elems = append(elems, luaToResp(item))
		}
		return resp.Array(elems...)
	default:
		return resp.NullBulk()
	}
}
