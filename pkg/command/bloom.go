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

// RegisterBloomCommands installs BF.RESERVE/BF.ADD/BF.EXISTS/BF.MADD/
// BF.MEXISTS/BF.INFO (spec.md §4.4 Bloom-filter type).
func RegisterBloomCommands(reg *Registry) {
	reg.Register(&Spec{Name: "BF.RESERVE", Arity: 4, LockKeys: FixedKeyAt(0), Handler: cmdBFReserve, Flags: Flags{Class: ClassWrite}})
	reg.Register(&Spec{Name: "BF.ADD", Arity: 3, LockKeys: FixedKeyAt(0), Handler: cmdBFAdd, Flags: Flags{Class: ClassWrite}})
	reg.Register(&Spec{Name: "BF.MADD", Arity: -3, LockKeys: FixedKeyAt(0), Handler: cmdBFMAdd, Flags: Flags{Class: ClassWrite}})
	reg.Register(&Spec{Name: "BF.EXISTS", Arity: 3, LockKeys: FixedKeyAt(0), Handler: cmdBFExists, Flags: Flags{Class: ClassReadOnly}})
	reg.Register(&Spec{Name: "BF.MEXISTS", Arity: -3, LockKeys: FixedKeyAt(0), Handler: cmdBFMExists, Flags: Flags{Class: ClassReadOnly}})
	reg.Register(&Spec{Name: "BF.INFO", Arity: 2, LockKeys: FixedKeyAt(0), Handler: cmdBFInfo, Flags: Flags{Class: ClassReadOnly}})
}

const (
	defaultBloomCapacity  = 100
	defaultBloomErrorRate = 0.01
)

func getBloom(ctx *Context, key string) (*encoding.BloomValue, bool, error) {
	e, ok := ctx.DB.Get(key)
	if !ok {
		return nil, false, nil
	}
	bv, ok := e.Value.(*encoding.BloomValue)
	if !ok {
		return nil, false, rerror.WrongType()
	}
	return bv, true, nil
}

func cmdBFReserve(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	key := args[0]
	if _, exists := ctx.DB.Get(key); exists {
		return resp.Value{}, WriteResult{}, rerror.KeyExists()
	}
	errorRate, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return resp.Value{}, WriteResult{}, rerror.NotFloat()
	}
	capacity, err := strconv.ParseUint(args[2], 10, 64)
	if err != nil {
		return resp.Value{}, WriteResult{}, rerror.NotInteger()
	}
	bv := encoding.NewBloom(capacity, errorRate)
	ctx.DB.ShardFor(key).Set(key, &types.Entry{Value: bv, LastAccess: time.Now()})
	return resp.OK(), WriteResult{Wrote: true, Keys: []string{key}, Event: "bf.reserve", Class: notify.ClassString}, nil
}

func ensureBloom(ctx *Context, key string) (*encoding.BloomValue, bool, error) {
	bv, ok, err := getBloom(ctx, key)
	if err != nil {
		return nil, false, err
	}
	created := false
	if !ok {
		bv = encoding.NewBloom(defaultBloomCapacity, defaultBloomErrorRate)
		ctx.DB.ShardFor(key).Set(key, &types.Entry{Value: bv, LastAccess: time.Now()})
		created = true
	}
	return bv, created, nil
}

func cmdBFAdd(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	key := args[0]
	bv, _, err := ensureBloom(ctx, key)
	if err != nil {
		return resp.Value{}, WriteResult{}, err
	}
	added := bv.Add([]byte(args[1]))
	n := int64(0)
	if added {
		n = 1
	}
	return resp.Int(n), WriteResult{Wrote: true, Keys: []string{key}, Event: "bf.add", Class: notify.ClassString}, nil
}

func cmdBFMAdd(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	key := args[0]
	bv, _, err := ensureBloom(ctx, key)
	if err != nil {
		return resp.Value{}, WriteResult{}, err
	}
	elems := make([]resp.Value, len(args)-1)
	for i, el := range args[1:] {
		if bv.Add([]byte(el)) {
			elems[i] = resp.Int(1)
		} else {
			elems[i] = resp.Int(0)
		}
	}
	return resp.Array(elems...), WriteResult{Wrote: true, Keys: []string{key}, Event: "bf.madd", Class: notify.ClassString}, nil
}

func cmdBFExists(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	bv, ok, err := getBloom(ctx, args[0])
	if err != nil {
		return resp.Value{}, WriteResult{}, err
	}
	if !ok || !bv.Test([]byte(args[1])) {
		return resp.Int(0), WriteResult{}, nil
	}
	return resp.Int(1), WriteResult{}, nil
}

func cmdBFMExists(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	bv, ok, err := getBloom(ctx, args[0])
	if err != nil {
		return resp.Value{}, WriteResult{}, err
	}
	elems := make([]resp.Value, len(args)-1)
	for i, el := range args[1:] {
		if ok && bv.Test([]byte(el)) {
			elems[i] = resp.Int(1)
		} else {
			elems[i] = resp.Int(0)
		}
	}
	return resp.Array(elems...), WriteResult{}, nil
}

func cmdBFInfo(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	bv, ok, err := getBloom(ctx, args[0])
	if err != nil {
		return resp.Value{}, WriteResult{}, err
	}
	if !ok {
		return resp.Value{}, WriteResult{}, rerror.InvalidState("not found")
	}
	return resp.Array(
		resp.Bulk("Capacity"), resp.Int(int64(bv.Capacity())),
		resp.Bulk("Number of items inserted"), resp.Int(int64(bv.Inserted())),
		resp.Bulk("Number of hash functions"), resp.Int(int64(bv.NumHash())),
		resp.Bulk("Size in bits"), resp.Int(int64(bv.NumBits())),
	), WriteResult{}, nil
}
