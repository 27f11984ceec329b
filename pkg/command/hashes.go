package command

import (
	"strconv"
	"time"

	"github.com/spineldb/spineldb/pkg/encoding"
	"github.com/spineldb/spineldb/pkg/notify"
	"github.com/spineldb/spineldb/pkg/rerror"
	"github.com/spineldb/spineldb/pkg/resp"
	"github.com/spineldb/spineldb/pkg/types"
)

// RegisterHashCommands installs HSET/HGET/HDEL and friends (spec.md
// §4.4 hash type).
func RegisterHashCommands(reg *Registry) {
	reg.Register(&Spec{Name: "HSET", Arity: -4, LockKeys: FixedKeyAt(0), Handler: cmdHSet, Flags: Flags{Class: ClassWrite}})
	reg.Register(&Spec{Name: "HSETNX", Arity: 4, LockKeys: FixedKeyAt(0), Handler: cmdHSetNX, Flags: Flags{Class: ClassWrite}})
	reg.Register(&Spec{Name: "HGET", Arity: 3, LockKeys: FixedKeyAt(0), Handler: cmdHGet, Flags: Flags{Class: ClassReadOnly}})
	reg.Register(&Spec{Name: "HDEL", Arity: -3, LockKeys: FixedKeyAt(0), Handler: cmdHDel, Flags: Flags{Class: ClassWrite}})
	reg.Register(&Spec{Name: "HEXISTS", Arity: 3, LockKeys: FixedKeyAt(0), Handler: cmdHExists, Flags: Flags{Class: ClassReadOnly}})
	reg.Register(&Spec{Name: "HLEN", Arity: 2, LockKeys: FixedKeyAt(0), Handler: cmdHLen, Flags: Flags{Class: ClassReadOnly}})
	reg.Register(&Spec{Name: "HGETALL", Arity: 2, LockKeys: FixedKeyAt(0), Handler: cmdHGetAll, Flags: Flags{Class: ClassReadOnly}})
	reg.Register(&Spec{Name: "HKEYS", Arity: 2, LockKeys: FixedKeyAt(0), Handler: cmdHKeys, Flags: Flags{Class: ClassReadOnly}})
	reg.Register(&Spec{Name: "HVALS", Arity: 2, LockKeys: FixedKeyAt(0), Handler: cmdHVals, Flags: Flags{Class: ClassReadOnly}})
	reg.Register(&Spec{Name: "HMGET", Arity: -3, LockKeys: FixedKeyAt(0), Handler: cmdHMGet, Flags: Flags{Class: ClassReadOnly}})
	reg.Register(&Spec{Name: "HINCRBY", Arity: 4, LockKeys: FixedKeyAt(0), Handler: cmdHIncrBy, Flags: Flags{Class: ClassWrite}})
	reg.Register(&Spec{Name: "HINCRBYFLOAT", Arity: 4, LockKeys: FixedKeyAt(0), Handler: cmdHIncrByFloat, Flags: Flags{Class: ClassWrite}})
}

func getHash(ctx *Context, key string) (*encoding.HashValue, bool, error) {
	e, ok := ctx.DB.Get(key)
	if !ok {
		return nil, false, nil
	}
	hv, ok := e.Value.(*encoding.HashValue)
	if !ok {
		return nil, false, rerror.WrongType()
	}
	return hv, true, nil
}

func ensureHash(ctx *Context, key string) (*encoding.HashValue, error) {
	hv, ok, err := getHash(ctx, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		hv = encoding.NewHash()
		ctx.DB.ShardFor(key).Set(key, &types.Entry{Value: hv, LastAccess: time.Now()})
	}
	return hv, nil
}

func cmdHSet(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	if len(args)%2 != 1 {
		return resp.Value{}, WriteResult{}, rerror.WrongArity("HSET")
	}
	key := args[0]
	hv, err := ensureHash(ctx, key)
	if err != nil {
		return resp.Value{}, WriteResult{}, err
	}
	added := 0
	for i := 1; i < len(args); i += 2 {
		if hv.Set(args[i], args[i+1]) {
			added++
		}
	}
	return resp.Int(int64(added)), WriteResult{Wrote: true, Keys: []string{key}, Event: "hset", Class: notify.ClassHash}, nil
}

func cmdHSetNX(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	key, field, value := args[0], args[1], args[2]
	hv, err := ensureHash(ctx, key)
	if err != nil {
		return resp.Value{}, WriteResult{}, err
	}
	if hv.Exists(field) {
		return resp.Int(0), WriteResult{}, nil
	}
	hv.Set(field, value)
	return resp.Int(1), WriteResult{Wrote: true, Keys: []string{key}, Event: "hset", Class: notify.ClassHash}, nil
}

func cmdHGet(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	hv, ok, err := getHash(ctx, args[0])
	if err != nil {
		return resp.Value{}, WriteResult{}, err
	}
	if !ok {
		return resp.NullBulk(), WriteResult{}, nil
	}
	v, ok := hv.Get(args[1])
	if !ok {
		return resp.NullBulk(), WriteResult{}, nil
	}
	return resp.Bulk(v), WriteResult{}, nil
}

func cmdHDel(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	key := args[0]
	hv, ok, err := getHash(ctx, key)
	if err != nil {
		return resp.Value{}, WriteResult{}, err
	}
	if !ok {
		return resp.Int(0), WriteResult{}, nil
	}
	n := hv.Del(args[1:]...)
	if hv.Len() == 0 {
		ctx.DB.ShardFor(key).Delete(key)
	}
	if n == 0 {
		return resp.Int(0), WriteResult{}, nil
	}
	return resp.Int(int64(n)), WriteResult{Wrote: true, Keys: []string{key}, Event: "hdel", Class: notify.ClassHash}, nil
}

func cmdHExists(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	hv, ok, err := getHash(ctx, args[0])
	if err != nil {
		return resp.Value{}, WriteResult{}, err
	}
	if !ok || !hv.Exists(args[1]) {
		return resp.Int(0), WriteResult{}, nil
	}
	return resp.Int(1), WriteResult{}, nil
}

func cmdHLen(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	hv, ok, err := getHash(ctx, args[0])
	if err != nil {
		return resp.Value{}, WriteResult{}, err
	}
	if !ok {
		return resp.Int(0), WriteResult{}, nil
	}
	return resp.Int(int64(hv.Len())), WriteResult{}, nil
}

func cmdHGetAll(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	hv, ok, err := getHash(ctx, args[0])
	if err != nil {
		return resp.Value{}, WriteResult{}, err
	}
	if !ok {
		return resp.Array(), WriteResult{}, nil
	}
	all := hv.All()
	elems := make([]resp.Value, 0, len(all)*2)
	for f, v := range all {
		elems = append(elems, resp.Bulk(f), resp.Bulk(v))
	}
	return resp.Array(elems...), WriteResult{}, nil
}

func cmdHKeys(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	hv, ok, err := getHash(ctx, args[0])
	if err != nil {
		return resp.Value{}, WriteResult{}, err
	}
	if !ok {
		return resp.Array(), WriteResult{}, nil
	}
	all := hv.All()
	keys := make([]string, 0, len(all))
	for f := range all {
		keys = append(keys, f)
	}
	return resp.BulkStrings(keys), WriteResult{}, nil
}

func cmdHVals(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	hv, ok, err := getHash(ctx, args[0])
	if err != nil {
		return resp.Value{}, WriteResult{}, err
	}
	if !ok {
		return resp.Array(), WriteResult{}, nil
	}
	all := hv.All()
	vals := make([]string, 0, len(all))
	for _, v := range all {
		vals = append(vals, v)
	}
	return resp.BulkStrings(vals), WriteResult{}, nil
}

func cmdHMGet(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	hv, ok, err := getHash(ctx, args[0])
	if err != nil {
		return resp.Value{}, WriteResult{}, err
	}
	elems := make([]resp.Value, len(args)-1)
	for i, f := range args[1:] {
		if !ok {
			elems[i] = resp.NullBulk()
			continue
		}
		if v, found := hv.Get(f); found {
			elems[i] = resp.Bulk(v)
		} else {
			elems[i] = resp.NullBulk()
		}
	}
	return resp.Array(elems...), WriteResult{}, nil
}

func cmdHIncrBy(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	key, field := args[0], args[1]
	delta, err := strconv.ParseInt(args[2], 10, 64)
	if err != nil {
		return resp.Value{}, WriteResult{}, rerror.NotInteger()
	}
	hv, err := ensureHash(ctx, key)
	if err != nil {
		return resp.Value{}, WriteResult{}, err
	}
	var n int64
	if v, ok := hv.Get(field); ok {
		n, err = strconv.ParseInt(v, 10, 64)
		if err != nil {
			return resp.Value{}, WriteResult{}, rerror.NotInteger()
		}
	}
	n += delta
	hv.Set(field, strconv.FormatInt(n, 10))
	return resp.Int(n), WriteResult{Wrote: true, Keys: []string{key}, Event: "hincrby", Class: notify.ClassHash}, nil
}

func cmdHIncrByFloat(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	key, field := args[0], args[1]
	delta, err := strconv.ParseFloat(args[2], 64)
	if err != nil {
		return resp.Value{}, WriteResult{}, rerror.NotFloat()
	}
	hv, err := ensureHash(ctx, key)
	if err != nil {
		return resp.Value{}, WriteResult{}, err
	}
	var f float64
	if v, ok := hv.Get(field); ok {
		f, err = strconv.ParseFloat(v, 64)
		if err != nil {
			return resp.Value{}, WriteResult{}, rerror.NotFloat()
		}
	}
	f += delta
	out := strconv.FormatFloat(f, 'f', -1, 64)
	hv.Set(field, out)
	return resp.Bulk(out), WriteResult{Wrote: true, Keys: []string{key}, Event: "hincrbyfloat", Class: notify.ClassHash}, nil
}
