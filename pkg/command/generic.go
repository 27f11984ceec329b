package command

import (
	"strconv"
	"time"

	"github.com/spineldb/spineldb/pkg/notify"
	"github.com/spineldb/spineldb/pkg/pubsub"
	"github.com/spineldb/spineldb/pkg/rerror"
	"github.com/spineldb/spineldb/pkg/resp"
)

// RegisterGenericCommands installs the type-agnostic keyspace commands:
// DEL/EXISTS/EXPIRE/TTL/TYPE/KEYS/PERSIST/RENAME (spec.md §4.4 "generic"
// operations that apply across value types).
func RegisterGenericCommands(reg *Registry) {
	reg.Register(&Spec{Name: "DEL", Arity: -2, LockKeys: AllArgsAsKeys, Handler: cmdDel, Flags: Flags{Class: ClassWrite}})
	reg.Register(&Spec{Name: "EXISTS", Arity: -2, LockKeys: AllArgsAsKeys, Handler: cmdExists, Flags: Flags{Class: ClassReadOnly}})
	reg.Register(&Spec{Name: "TYPE", Arity: 2, LockKeys: FixedKeyAt(0), Handler: cmdTypeOf, Flags: Flags{Class: ClassReadOnly}})
	reg.Register(&Spec{Name: "EXPIRE", Arity: -3, LockKeys: FixedKeyAt(0), Handler: cmdExpire, Flags: Flags{Class: ClassWrite}})
	reg.Register(&Spec{Name: "PEXPIRE", Arity: -3, LockKeys: FixedKeyAt(0), Handler: cmdPExpire, Flags: Flags{Class: ClassWrite}})
	reg.Register(&Spec{Name: "EXPIREAT", Arity: -3, LockKeys: FixedKeyAt(0), Handler: cmdExpireAt, Flags: Flags{Class: ClassWrite}})
	reg.Register(&Spec{Name: "TTL", Arity: 2, LockKeys: FixedKeyAt(0), Handler: cmdTTL, Flags: Flags{Class: ClassReadOnly}})
	reg.Register(&Spec{Name: "PTTL", Arity: 2, LockKeys: FixedKeyAt(0), Handler: cmdPTTL, Flags: Flags{Class: ClassReadOnly}})
	reg.Register(&Spec{Name: "PERSIST", Arity: 2, LockKeys: FixedKeyAt(0), Handler: cmdPersist, Flags: Flags{Class: ClassWrite}})
	reg.Register(&Spec{Name: "KEYS", Arity: 2, LockKeys: NoKeys, Handler: cmdKeys, Flags: Flags{Class: ClassReadOnly}})
	reg.Register(&Spec{Name: "DBSIZE", Arity: 1, LockKeys: NoKeys, Handler: cmdDBSize, Flags: Flags{Class: ClassReadOnly}})
	reg.Register(&Spec{Name: "FLUSHDB", Arity: -1, LockKeys: NoKeys, Handler: cmdFlushDB, Flags: Flags{Class: ClassAdmin}})
	reg.Register(&Spec{Name: "RENAME", Arity: 3, LockKeys: AllArgsAsKeys, Handler: cmdRename, Flags: Flags{Class: ClassWrite}})
	reg.Register(&Spec{Name: "PING", Arity: -1, LockKeys: NoKeys, Handler: cmdPing, Flags: Flags{Class: ClassReadOnly, AllowInSub: true}})
	reg.Register(&Spec{Name: "ECHO", Arity: 2, LockKeys: NoKeys, Handler: cmdEcho, Flags: Flags{Class: ClassReadOnly}})
}

func cmdDel(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	n := 0
	var deleted []string
	for _, key := range args {
		if ctx.DB.ShardFor(key).Delete(key) {
			n++
			deleted = append(deleted, key)
		}
	}
	if n == 0 {
		return resp.Int(0), WriteResult{}, nil
	}
	return resp.Int(int64(n)), WriteResult{Wrote: true, Keys: deleted, Event: "del", Class: notify.ClassGeneric}, nil
}

func cmdExists(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	n := 0
	for _, key := range args {
		if _, ok := ctx.DB.Get(key); ok {
			n++
		}
	}
	return resp.Int(int64(n)), WriteResult{}, nil
}

func cmdTypeOf(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	e, ok := ctx.DB.Get(args[0])
	if !ok {
		return resp.Simple("none"), WriteResult{}, nil
	}
	return resp.Simple(e.Value.Type().String()), WriteResult{}, nil
}

func expireAtHelper(ctx *Context, args []string, at time.Time) (resp.Value, WriteResult, error) {
	key := args[0]
	e, ok := ctx.DB.Get(key)
	if !ok {
		return resp.Int(0), WriteResult{}, nil
	}
	e.ExpireAt = at
	ctx.DB.ShardFor(key).Set(key, e)
	return resp.Int(1), WriteResult{Wrote: true, Keys: []string{key}, Event: "expire", Class: notify.ClassGeneric}, nil
}

func cmdExpire(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	seconds, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return resp.Value{}, WriteResult{}, rerror.NotInteger()
	}
	return expireAtHelper(ctx, args, time.Now().Add(time.Duration(seconds)*time.Second))
}

func cmdPExpire(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	ms, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return resp.Value{}, WriteResult{}, rerror.NotInteger()
	}
	return expireAtHelper(ctx, args, time.Now().Add(time.Duration(ms)*time.Millisecond))
}

func cmdExpireAt(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	sec, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return resp.Value{}, WriteResult{}, rerror.NotInteger()
	}
	return expireAtHelper(ctx, args, time.Unix(sec, 0))
}

func cmdTTL(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	e, ok := ctx.DB.Get(args[0])
	if !ok {
		return resp.Int(-2), WriteResult{}, nil
	}
	if !e.HasTTL() {
		return resp.Int(-1), WriteResult{}, nil
	}
	return resp.Int(int64(time.Until(e.ExpireAt).Seconds())), WriteResult{}, nil
}

func cmdPTTL(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	e, ok := ctx.DB.Get(args[0])
	if !ok {
		return resp.Int(-2), WriteResult{}, nil
	}
	if !e.HasTTL() {
		return resp.Int(-1), WriteResult{}, nil
	}
	return resp.Int(time.Until(e.ExpireAt).Milliseconds()), WriteResult{}, nil
}

func cmdPersist(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	key := args[0]
	e, ok := ctx.DB.Get(key)
	if !ok || !e.HasTTL() {
		return resp.Int(0), WriteResult{}, nil
	}
	e.ExpireAt = time.Time{}
	ctx.DB.ShardFor(key).Set(key, e)
	return resp.Int(1), WriteResult{Wrote: true, Keys: []string{key}, Event: "persist", Class: notify.ClassGeneric}, nil
}

func cmdKeys(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	pattern := args[0]
	var out []string
	for _, sh := range ctx.DB.AllShards() {
		for _, k := range sh.Keys() {
			if pubsub.Match(pattern, k) {
				out = append(out, k)
			}
		}
	}
	return resp.BulkStrings(out), WriteResult{}, nil
}

func cmdDBSize(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	return resp.Int(ctx.DB.DBSize()), WriteResult{}, nil
}

func cmdFlushDB(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	ctx.DB.Flush()
	return resp.OK(), WriteResult{}, nil
}

func cmdRename(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	src, dst := args[0], args[1]
	e, ok := ctx.DB.Get(src)
	if !ok {
		return resp.Value{}, WriteResult{}, rerror.InvalidState("no such key")
	}
	ctx.DB.ShardFor(src).Delete(src)
	ctx.DB.ShardFor(dst).Set(dst, e)
	return resp.OK(), WriteResult{Wrote: true, Keys: []string{src, dst}, Event: "rename_to", Class: notify.ClassGeneric}, nil
}

func cmdPing(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	if len(args) > 0 {
		return resp.Bulk(args[0]), WriteResult{}, nil
	}
	return resp.Simple("PONG"), WriteResult{}, nil
}

func cmdEcho(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	return resp.Bulk(args[0]), WriteResult{}, nil
}
