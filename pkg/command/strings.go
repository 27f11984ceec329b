package command

import (
	"strconv"
	"strings"
	"time"

	"github.com/spineldb/spineldb/pkg/encoding"
	"github.com/spineldb/spineldb/pkg/notify"
	"github.com/spineldb/spineldb/pkg/rerror"
	"github.com/spineldb/spineldb/pkg/resp"
	"github.com/spineldb/spineldb/pkg/types"
)

// RegisterStringCommands installs GET/SET/INCR and friends into reg
// (spec.md §4.4 string type, §6 command surface).
func RegisterStringCommands(reg *Registry) {
	reg.Register(&Spec{Name: "GET", Arity: 2, LockKeys: FixedKeyAt(0), Handler: cmdGet, Flags: Flags{Class: ClassReadOnly}})
	reg.Register(&Spec{Name: "SET", Arity: -3, LockKeys: FixedKeyAt(0), Handler: cmdSet, Flags: Flags{Class: ClassWrite}})
	reg.Register(&Spec{Name: "GETSET", Arity: 3, LockKeys: FixedKeyAt(0), Handler: cmdGetSet, Flags: Flags{Class: ClassWrite}})
	reg.Register(&Spec{Name: "APPEND", Arity: 3, LockKeys: FixedKeyAt(0), Handler: cmdAppend, Flags: Flags{Class: ClassWrite}})
	reg.Register(&Spec{Name: "STRLEN", Arity: 2, LockKeys: FixedKeyAt(0), Handler: cmdStrlen, Flags: Flags{Class: ClassReadOnly}})
	reg.Register(&Spec{Name: "INCR", Arity: 2, LockKeys: FixedKeyAt(0), Handler: cmdIncr, Flags: Flags{Class: ClassWrite}})
	reg.Register(&Spec{Name: "DECR", Arity: 2, LockKeys: FixedKeyAt(0), Handler: cmdDecr, Flags: Flags{Class: ClassWrite}})
	reg.Register(&Spec{Name: "INCRBY", Arity: 3, LockKeys: FixedKeyAt(0), Handler: cmdIncrBy, Flags: Flags{Class: ClassWrite}})
	reg.Register(&Spec{Name: "DECRBY", Arity: 3, LockKeys: FixedKeyAt(0), Handler: cmdDecrBy, Flags: Flags{Class: ClassWrite}})
	reg.Register(&Spec{Name: "INCRBYFLOAT", Arity: 3, LockKeys: FixedKeyAt(0), Handler: cmdIncrByFloat, Flags: Flags{Class: ClassWrite}})
	reg.Register(&Spec{Name: "MGET", Arity: -2, LockKeys: AllArgsAsKeys, Handler: cmdMGet, Flags: Flags{Class: ClassReadOnly}})
	reg.Register(&Spec{Name: "MSET", Arity: -3, LockKeys: EveryOtherStartingAt0, Handler: cmdMSet, Flags: Flags{Class: ClassWrite}})
	reg.Register(&Spec{Name: "SETNX", Arity: 3, LockKeys: FixedKeyAt(0), Handler: cmdSetNX, Flags: Flags{Class: ClassWrite}})
	reg.Register(&Spec{Name: "GETDEL", Arity: 2, LockKeys: FixedKeyAt(0), Handler: cmdGetDel, Flags: Flags{Class: ClassWrite}})
}

func getString(ctx *Context, key string) (*encoding.StringValue, bool, error) {
	e, ok := ctx.DB.Get(key)
	if !ok {
		return nil, false, nil
	}
	sv, ok := e.Value.(*encoding.StringValue)
	if !ok {
		return nil, false, rerror.WrongType()
	}
	return sv, true, nil
}

func cmdGet(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	sv, ok, err := getString(ctx, args[0])
	if err != nil {
		return resp.Value{}, WriteResult{}, err
	}
	if !ok {
		return resp.NullBulk(), WriteResult{}, nil
	}
	return resp.Bulk(string(sv.Data)), WriteResult{}, nil
}

func cmdSet(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	key, value := args[0], args[1]
	var nx, xx, keepTTL bool
	var expireAt time.Time
	hasExpire := false

	for i := 2; i < len(args); i++ {
		switch strings.ToUpper(args[i]) {
		case "NX":
			nx = true
		case "XX":
			xx = true
		case "KEEPTTL":
			keepTTL = true
		case "EX", "PX", "EXAT", "PXAT":
			if i+1 >= len(args) {
				return resp.Value{}, WriteResult{}, rerror.Syntax()
			}
			n, err := strconv.ParseInt(args[i+1], 10, 64)
			if err != nil {
				return resp.Value{}, WriteResult{}, rerror.NotInteger()
			}
			switch strings.ToUpper(args[i]) {
			case "EX":
				expireAt = time.Now().Add(time.Duration(n) * time.Second)
			case "PX":
				expireAt = time.Now().Add(time.Duration(n) * time.Millisecond)
			case "EXAT":
				expireAt = time.Unix(n, 0)
			case "PXAT":
				expireAt = time.UnixMilli(n)
			}
			hasExpire = true
			i++
		default:
			return resp.Value{}, WriteResult{}, rerror.Syntax()
		}
	}
	if nx && xx {
		return resp.Value{}, WriteResult{}, rerror.Syntax()
	}

	_, exists := ctx.DB.Get(key)
	if nx && exists {
		return resp.NullBulk(), WriteResult{}, nil
	}
	if xx && !exists {
		return resp.NullBulk(), WriteResult{}, nil
	}

	entry := &types.Entry{Value: encoding.NewString([]byte(value)), LastAccess: time.Now()}
	if hasExpire {
		entry.ExpireAt = expireAt
	} else if keepTTL && exists {
		if old, ok := ctx.DB.Get(key); ok {
			entry.ExpireAt = old.ExpireAt
		}
	}
	ctx.DB.ShardFor(key).Set(key, entry)

	return resp.OK(), WriteResult{Wrote: true, Keys: []string{key}, Event: "set", Class: notify.ClassString}, nil
}

func cmdGetSet(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	key, value := args[0], args[1]
	old, _, err := getString(ctx, key)
	if err != nil {
		return resp.Value{}, WriteResult{}, err
	}
	ctx.DB.ShardFor(key).Set(key, &types.Entry{Value: encoding.NewString([]byte(value)), LastAccess: time.Now()})
	reply := resp.NullBulk()
	if old != nil {
		reply = resp.Bulk(string(old.Data))
	}
	return reply, WriteResult{Wrote: true, Keys: []string{key}, Event: "set", Class: notify.ClassString}, nil
}

func cmdAppend(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	key, suffix := args[0], args[1]
	sv, ok, err := getString(ctx, key)
	if err != nil {
		return resp.Value{}, WriteResult{}, err
	}
	if !ok {
		sv = encoding.NewString(nil)
	}
	newData := append(append([]byte(nil), sv.Data...), suffix...)
	ctx.DB.ShardFor(key).Set(key, &types.Entry{Value: encoding.NewString(newData), LastAccess: time.Now()})
	return resp.Int(int64(len(newData))), WriteResult{Wrote: true, Keys: []string{key}, Event: "append", Class: notify.ClassString}, nil
}

func cmdStrlen(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	sv, ok, err := getString(ctx, args[0])
	if err != nil {
		return resp.Value{}, WriteResult{}, err
	}
	if !ok {
		return resp.Int(0), WriteResult{}, nil
	}
	return resp.Int(int64(len(sv.Data))), WriteResult{}, nil
}

func incrByHelper(ctx *Context, key string, delta int64) (int64, error) {
	sv, ok, err := getString(ctx, key)
	if err != nil {
		return 0, err
	}
	var n int64
	if ok {
		n, err = strconv.ParseInt(string(sv.Data), 10, 64)
		if err != nil {
			return 0, rerror.NotInteger()
		}
	}
	n += delta
	ctx.DB.ShardFor(key).Set(key, &types.Entry{Value: encoding.NewString([]byte(strconv.FormatInt(n, 10))), LastAccess: time.Now()})
	return n, nil
}

func cmdIncr(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	n, err := incrByHelper(ctx, args[0], 1)
	if err != nil {
		return resp.Value{}, WriteResult{}, err
	}
	return resp.Int(n), WriteResult{Wrote: true, Keys: []string{args[0]}, Event: "incrby", Class: notify.ClassString}, nil
}

func cmdDecr(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	n, err := incrByHelper(ctx, args[0], -1)
	if err != nil {
		return resp.Value{}, WriteResult{}, err
	}
	return resp.Int(n), WriteResult{Wrote: true, Keys: []string{args[0]}, Event: "decrby", Class: notify.ClassString}, nil
}

func cmdIncrBy(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	delta, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return resp.Value{}, WriteResult{}, rerror.NotInteger()
	}
	n, err := incrByHelper(ctx, args[0], delta)
	if err != nil {
		return resp.Value{}, WriteResult{}, err
	}
	return resp.Int(n), WriteResult{Wrote: true, Keys: []string{args[0]}, Event: "incrby", Class: notify.ClassString}, nil
}

func cmdDecrBy(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	delta, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return resp.Value{}, WriteResult{}, rerror.NotInteger()
	}
	n, err := incrByHelper(ctx, args[0], -delta)
	if err != nil {
		return resp.Value{}, WriteResult{}, err
	}
	return resp.Int(n), WriteResult{Wrote: true, Keys: []string{args[0]}, Event: "decrby", Class: notify.ClassString}, nil
}

func cmdIncrByFloat(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	key := args[0]
	delta, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return resp.Value{}, WriteResult{}, rerror.NotFloat()
	}
	sv, ok, err := getString(ctx, key)
	if err != nil {
		return resp.Value{}, WriteResult{}, err
	}
	var f float64
	if ok {
		f, err = strconv.ParseFloat(string(sv.Data), 64)
		if err != nil {
			return resp.Value{}, WriteResult{}, rerror.NotFloat()
		}
	}
	f += delta
	out := strconv.FormatFloat(f, 'f', -1, 64)
	ctx.DB.ShardFor(key).Set(key, &types.Entry{Value: encoding.NewString([]byte(out)), LastAccess: time.Now()})
	return resp.Bulk(out), WriteResult{Wrote: true, Keys: []string{key}, Event: "incrbyfloat", Class: notify.ClassString}, nil
}

func cmdMGet(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	elems := make([]resp.Value, len(args))
	for i, key := range args {
		sv, ok, err := getString(ctx, key)
		if err != nil || !ok {
			elems[i] = resp.NullBulk()
			continue
		}
		elems[i] = resp.Bulk(string(sv.Data))
	}
	return resp.Array(elems...), WriteResult{}, nil
}

func cmdMSet(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	if len(args)%2 != 0 {
		return resp.Value{}, WriteResult{}, rerror.WrongArity("MSET")
	}
	keys := make([]string, 0, len(args)/2)
	for i := 0; i < len(args); i += 2 {
		key, value := args[i], args[i+1]
		ctx.DB.ShardFor(key).Set(key, &types.Entry{Value: encoding.NewString([]byte(value)), LastAccess: time.Now()})
		keys = append(keys, key)
	}
	return resp.OK(), WriteResult{Wrote: true, Keys: keys, Event: "set", Class: notify.ClassString}, nil
}

func cmdSetNX(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	key, value := args[0], args[1]
	if _, exists := ctx.DB.Get(key); exists {
		return resp.Int(0), WriteResult{}, nil
	}
	ctx.DB.ShardFor(key).Set(key, &types.Entry{Value: encoding.NewString([]byte(value)), LastAccess: time.Now()})
	return resp.Int(1), WriteResult{Wrote: true, Keys: []string{key}, Event: "set", Class: notify.ClassString}, nil
}

func cmdGetDel(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	key := args[0]
	sv, ok, err := getString(ctx, key)
	if err != nil {
		return resp.Value{}, WriteResult{}, err
	}
	if !ok {
		return resp.NullBulk(), WriteResult{}, nil
	}
	ctx.DB.ShardFor(key).Delete(key)
	return resp.Bulk(string(sv.Data)), WriteResult{Wrote: true, Keys: []string{key}, Event: "del", Class: notify.ClassGeneric}, nil
}
