package command

import (
	"time"

	"github.com/spineldb/spineldb/pkg/encoding"
	"github.com/spineldb/spineldb/pkg/notify"
	"github.com/spineldb/spineldb/pkg/rerror"
	"github.com/spineldb/spineldb/pkg/resp"
	"github.com/spineldb/spineldb/pkg/types"
)

// RegisterSetCommands installs SADD/SREM/SMEMBERS and the set-algebra
// commands (spec.md §4.4 set type).
func RegisterSetCommands(reg *Registry) {
	reg.Register(&Spec{Name: "SADD", Arity: -3, LockKeys: FixedKeyAt(0), Handler: cmdSAdd, Flags: Flags{Class: ClassWrite}})
	reg.Register(&Spec{Name: "SREM", Arity: -3, LockKeys: FixedKeyAt(0), Handler: cmdSRem, Flags: Flags{Class: ClassWrite}})
	reg.Register(&Spec{Name: "SISMEMBER", Arity: 3, LockKeys: FixedKeyAt(0), Handler: cmdSIsMember, Flags: Flags{Class: ClassReadOnly}})
	reg.Register(&Spec{Name: "SCARD", Arity: 2, LockKeys: FixedKeyAt(0), Handler: cmdSCard, Flags: Flags{Class: ClassReadOnly}})
	reg.Register(&Spec{Name: "SMEMBERS", Arity: 2, LockKeys: FixedKeyAt(0), Handler: cmdSMembers, Flags: Flags{Class: ClassReadOnly}})
	reg.Register(&Spec{Name: "SUNION", Arity: -2, LockKeys: AllArgsAsKeys, Handler: cmdSUnion, Flags: Flags{Class: ClassReadOnly}})
	reg.Register(&Spec{Name: "SINTER", Arity: -2, LockKeys: AllArgsAsKeys, Handler: cmdSInter, Flags: Flags{Class: ClassReadOnly}})
	reg.Register(&Spec{Name: "SDIFF", Arity: -2, LockKeys: AllArgsAsKeys, Handler: cmdSDiff, Flags: Flags{Class: ClassReadOnly}})
	reg.Register(&Spec{Name: "SUNIONSTORE", Arity: -3, LockKeys: AllArgsAsKeys, Handler: cmdSUnionStore, Flags: Flags{Class: ClassWrite}})
	reg.Register(&Spec{Name: "SINTERSTORE", Arity: -3, LockKeys: AllArgsAsKeys, Handler: cmdSInterStore, Flags: Flags{Class: ClassWrite}})
	reg.Register(&Spec{Name: "SDIFFSTORE", Arity: -3, LockKeys: AllArgsAsKeys, Handler: cmdSDiffStore, Flags: Flags{Class: ClassWrite}})
	reg.Register(&Spec{Name: "SMOVE", Arity: 4, LockKeys: func(args []string) []string { return args[:2] }, Handler: cmdSMove, Flags: Flags{Class: ClassWrite}})
}

func getSet(ctx *Context, key string) (*encoding.SetValue, bool, error) {
	e, ok := ctx.DB.Get(key)
	if !ok {
		return nil, false, nil
	}
	sv, ok := e.Value.(*encoding.SetValue)
	if !ok {
		return nil, false, rerror.WrongType()
	}
	return sv, true, nil
}

func ensureSet(ctx *Context, key string) (*encoding.SetValue, error) {
	sv, ok, err := getSet(ctx, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		sv = encoding.NewSet()
		ctx.DB.ShardFor(key).Set(key, &types.Entry{Value: sv, LastAccess: time.Now()})
	}
	return sv, nil
}

func cmdSAdd(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	key := args[0]
	sv, err := ensureSet(ctx, key)
	if err != nil {
		return resp.Value{}, WriteResult{}, err
	}
	n := sv.Add(args[1:]...)
	if n == 0 {
		return resp.Int(0), WriteResult{}, nil
	}
	return resp.Int(int64(n)), WriteResult{Wrote: true, Keys: []string{key}, Event: "sadd", Class: notify.ClassSet}, nil
}

func cmdSRem(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	key := args[0]
	sv, ok, err := getSet(ctx, key)
	if err != nil {
		return resp.Value{}, WriteResult{}, err
	}
	if !ok {
		return resp.Int(0), WriteResult{}, nil
	}
	n := sv.Rem(args[1:]...)
	if sv.Len() == 0 {
		ctx.DB.ShardFor(key).Delete(key)
	}
	if n == 0 {
		return resp.Int(0), WriteResult{}, nil
	}
	return resp.Int(int64(n)), WriteResult{Wrote: true, Keys: []string{key}, Event: "srem", Class: notify.ClassSet}, nil
}

func cmdSIsMember(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	sv, ok, err := getSet(ctx, args[0])
	if err != nil {
		return resp.Value{}, WriteResult{}, err
	}
	if !ok || !sv.Contains(args[1]) {
		return resp.Int(0), WriteResult{}, nil
	}
	return resp.Int(1), WriteResult{}, nil
}

func cmdSCard(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	sv, ok, err := getSet(ctx, args[0])
	if err != nil {
		return resp.Value{}, WriteResult{}, err
	}
	if !ok {
		return resp.Int(0), WriteResult{}, nil
	}
	return resp.Int(int64(sv.Len())), WriteResult{}, nil
}

func cmdSMembers(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	sv, ok, err := getSet(ctx, args[0])
	if err != nil {
		return resp.Value{}, WriteResult{}, err
	}
	if !ok {
		return resp.Array(), WriteResult{}, nil
	}
	return resp.BulkStrings(sv.Members()), WriteResult{}, nil
}

func loadSets(ctx *Context, keys []string) ([]*encoding.SetValue, error) {
	sets := make([]*encoding.SetValue, 0, len(keys))
	for _, k := range keys {
		sv, ok, err := getSet(ctx, k)
		if err != nil {
			return nil, err
		}
		if !ok {
			sv = encoding.NewSet()
		}
		sets = append(sets, sv)
	}
	return sets, nil
}

func cmdSUnion(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	sets, err := loadSets(ctx, args)
	if err != nil {
		return resp.Value{}, WriteResult{}, err
	}
	return resp.BulkStrings(encoding.Union(sets...).Members()), WriteResult{}, nil
}

func cmdSInter(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	sets, err := loadSets(ctx, args)
	if err != nil {
		return resp.Value{}, WriteResult{}, err
	}
	return resp.BulkStrings(encoding.Inter(sets...).Members()), WriteResult{}, nil
}

func cmdSDiff(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	sets, err := loadSets(ctx, args)
	if err != nil {
		return resp.Value{}, WriteResult{}, err
	}
	return resp.BulkStrings(encoding.Diff(sets...).Members()), WriteResult{}, nil
}

func storeSetResult(ctx *Context, dst string, result *encoding.SetValue) (resp.Value, WriteResult, error) {
	if result.Len() == 0 {
		ctx.DB.ShardFor(dst).Delete(dst)
		return resp.Int(0), WriteResult{Wrote: true, Keys: []string{dst}, Event: "del", Class: notify.ClassGeneric}, nil
	}
	ctx.DB.ShardFor(dst).Set(dst, &types.Entry{Value: result, LastAccess: time.Now()})
	return resp.Int(int64(result.Len())), WriteResult{Wrote: true, Keys: []string{dst}, Event: "sinterstore", Class: notify.ClassSet}, nil
}

func cmdSUnionStore(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	dst := args[0]
	sets, err := loadSets(ctx, args[1:])
	if err != nil {
		return resp.Value{}, WriteResult{}, err
	}
	return storeSetResult(ctx, dst, encoding.Union(sets...))
}

func cmdSInterStore(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	dst := args[0]
	sets, err := loadSets(ctx, args[1:])
	if err != nil {
		return resp.Value{}, WriteResult{}, err
	}
	return storeSetResult(ctx, dst, encoding.Inter(sets...))
}

func cmdSDiffStore(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	dst := args[0]
	sets, err := loadSets(ctx, args[1:])
	if err != nil {
		return resp.Value{}, WriteResult{}, err
	}
	return storeSetResult(ctx, dst, encoding.Diff(sets...))
}

func cmdSMove(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	src, dst, member := args[0], args[1], args[2]
	ssrc, ok, err := getSet(ctx, src)
	if err != nil {
		return resp.Value{}, WriteResult{}, err
	}
	if !ok || !ssrc.Contains(member) {
		return resp.Int(0), WriteResult{}, nil
	}
	ssrc.Rem(member)
	if ssrc.Len() == 0 {
		ctx.DB.ShardFor(src).Delete(src)
	}
	sdst, err := ensureSet(ctx, dst)
	if err != nil {
		return resp.Value{}, WriteResult{}, err
	}
	sdst.Add(member)
	return resp.Int(1), WriteResult{Wrote: true, Keys: []string{src, dst}, Event: "smove", Class: notify.ClassSet}, nil
}
