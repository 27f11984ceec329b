package command

import (
	"time"

	"github.com/spineldb/spineldb/pkg/encoding"
	"github.com/spineldb/spineldb/pkg/notify"
	"github.com/spineldb/spineldb/pkg/rerror"
	"github.com/spineldb/spineldb/pkg/resp"
	"github.com/spineldb/spineldb/pkg/types"
)

// RegisterHLLCommands installs PFADD/PFCOUNT/PFMERGE (spec.md §4.4
// HyperLogLog type).
func RegisterHLLCommands(reg *Registry) {
	reg.Register(&Spec{Name: "PFADD", Arity: -2, LockKeys: FixedKeyAt(0), Handler: cmdPFAdd, Flags: Flags{Class: ClassWrite}})
	reg.Register(&Spec{Name: "PFCOUNT", Arity: -2, LockKeys: AllArgsAsKeys, Handler: cmdPFCount, Flags: Flags{Class: ClassReadOnly}})
	reg.Register(&Spec{Name: "PFMERGE", Arity: -2, LockKeys: AllArgsAsKeys, Handler: cmdPFMerge, Flags: Flags{Class: ClassWrite}})
}

func getHLL(ctx *Context, key string) (*encoding.HLLValue, bool, error) {
	e, ok := ctx.DB.Get(key)
	if !ok {
		return nil, false, nil
	}
	hv, ok := e.Value.(*encoding.HLLValue)
	if !ok {
		return nil, false, rerror.WrongType()
	}
	return hv, true, nil
}

func cmdPFAdd(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	key := args[0]
	hv, ok, err := getHLL(ctx, key)
	if err != nil {
		return resp.Value{}, WriteResult{}, err
	}
	if !ok {
		hv = encoding.NewHLL()
	}
	changed := false
	for _, el := range args[1:] {
		if hv.Add([]byte(el)) {
			changed = true
		}
	}
	if !ok || changed {
		ctx.DB.ShardFor(key).Set(key, &types.Entry{Value: hv, LastAccess: time.Now()})
	}
	n := int64(0)
	if changed || !ok {
		n = 1
	}
	wr := WriteResult{}
	if changed || !ok {
		wr = WriteResult{Wrote: true, Keys: []string{key}, Event: "pfadd", Class: notify.ClassString}
	}
	return resp.Int(n), wr, nil
}

func cmdPFCount(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	if len(args) == 1 {
		hv, ok, err := getHLL(ctx, args[0])
		if err != nil {
			return resp.Value{}, WriteResult{}, err
		}
		if !ok {
			return resp.Int(0), WriteResult{}, nil
		}
		return resp.Int(int64(hv.Count())), WriteResult{}, nil
	}
	hlls := make([]*encoding.HLLValue, 0, len(args))
	for _, key := range args {
		hv, ok, err := getHLL(ctx, key)
		if err != nil {
			return resp.Value{}, WriteResult{}, err
		}
		if ok {
			hlls = append(hlls, hv)
		}
	}
	merged := encoding.MergeAll(hlls...)
	return resp.Int(int64(merged.Count())), WriteResult{}, nil
}

func cmdPFMerge(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	dst := args[0]
	hlls := make([]*encoding.HLLValue, 0, len(args))
	if dhv, ok, err := getHLL(ctx, dst); err != nil {
		return resp.Value{}, WriteResult{}, err
	} else if ok {
		hlls = append(hlls, dhv)
	}
	for _, key := range args[1:] {
		hv, ok, err := getHLL(ctx, key)
		if err != nil {
			return resp.Value{}, WriteResult{}, err
		}
		if ok {
			hlls = append(hlls, hv)
		}
	}
	merged := encoding.MergeAll(hlls...)
	ctx.DB.ShardFor(dst).Set(dst, &types.Entry{Value: merged, LastAccess: time.Now()})
	return resp.OK(), WriteResult{Wrote: true, Keys: []string{dst}, Event: "pfadd", Class: notify.ClassString}, nil
}
