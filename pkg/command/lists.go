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

// RegisterListCommands installs LPUSH/RPUSH/LPOP/LRANGE and the blocking
// list commands (spec.md §4.4 list type, §4.6 blocking operations).
func RegisterListCommands(reg *Registry) {
	reg.Register(&Spec{Name: "LPUSH", Arity: -3, LockKeys: FixedKeyAt(0), Handler: cmdLPush, Flags: Flags{Class: ClassWrite}})
	reg.Register(&Spec{Name: "RPUSH", Arity: -3, LockKeys: FixedKeyAt(0), Handler: cmdRPush, Flags: Flags{Class: ClassWrite}})
	reg.Register(&Spec{Name: "LPOP", Arity: -2, LockKeys: FixedKeyAt(0), Handler: cmdLPop, Flags: Flags{Class: ClassWrite}})
	reg.Register(&Spec{Name: "RPOP", Arity: -2, LockKeys: FixedKeyAt(0), Handler: cmdRPop, Flags: Flags{Class: ClassWrite}})
	reg.Register(&Spec{Name: "LLEN", Arity: 2, LockKeys: FixedKeyAt(0), Handler: cmdLLen, Flags: Flags{Class: ClassReadOnly}})
	reg.Register(&Spec{Name: "LRANGE", Arity: 4, LockKeys: FixedKeyAt(0), Handler: cmdLRange, Flags: Flags{Class: ClassReadOnly}})
	reg.Register(&Spec{Name: "LINDEX", Arity: 3, LockKeys: FixedKeyAt(0), Handler: cmdLIndex, Flags: Flags{Class: ClassReadOnly}})
	reg.Register(&Spec{Name: "LSET", Arity: 4, LockKeys: FixedKeyAt(0), Handler: cmdLSet, Flags: Flags{Class: ClassWrite}})
	reg.Register(&Spec{Name: "LINSERT", Arity: 5, LockKeys: FixedKeyAt(0), Handler: cmdLInsert, Flags: Flags{Class: ClassWrite}})
	reg.Register(&Spec{Name: "LREM", Arity: 4, LockKeys: FixedKeyAt(0), Handler: cmdLRem, Flags: Flags{Class: ClassWrite}})
	reg.Register(&Spec{Name: "LTRIM", Arity: 4, LockKeys: FixedKeyAt(0), Handler: cmdLTrim, Flags: Flags{Class: ClassWrite}})
	reg.Register(&Spec{Name: "RPOPLPUSH", Arity: 3, LockKeys: AllArgsAsKeys, Handler: cmdRPopLPush, Flags: Flags{Class: ClassWrite}})
	reg.Register(&Spec{Name: "BLPOP", Arity: -3, LockKeys: blockingListKeys, Handler: cmdBLPop, Flags: Flags{Class: ClassBlocking}})
	reg.Register(&Spec{Name: "BRPOP", Arity: -3, LockKeys: blockingListKeys, Handler: cmdBRPop, Flags: Flags{Class: ClassBlocking}})
}

func blockingListKeys(args []string) []string {
	if len(args) == 0 {
		return nil
	}
	return args[:len(args)-1]
}

func getList(ctx *Context, key string) (*encoding.ListValue, bool, error) {
	e, ok := ctx.DB.Get(key)
	if !ok {
		return nil, false, nil
	}
	lv, ok := e.Value.(*encoding.ListValue)
	if !ok {
		return nil, false, rerror.WrongType()
	}
	return lv, true, nil
}

func ensureList(ctx *Context, key string) (*encoding.ListValue, error) {
	lv, ok, err := getList(ctx, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		lv = encoding.NewList()
		ctx.DB.ShardFor(key).Set(key, &types.Entry{Value: lv, LastAccess: time.Now()})
	}
	return lv, nil
}

func cmdLPush(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	key := args[0]
	lv, err := ensureList(ctx, key)
	if err != nil {
		return resp.Value{}, WriteResult{}, err
	}
	lv.PushLeft(args[1:]...)
	signalListWaiters(ctx, key, lv)
	return resp.Int(int64(lv.Len())), WriteResult{Wrote: true, Keys: []string{key}, Event: "lpush", Class: notify.ClassList}, nil
}

func cmdRPush(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	key := args[0]
	lv, err := ensureList(ctx, key)
	if err != nil {
		return resp.Value{}, WriteResult{}, err
	}
	lv.PushRight(args[1:]...)
	signalListWaiters(ctx, key, lv)
	return resp.Int(int64(lv.Len())), WriteResult{Wrote: true, Keys: []string{key}, Event: "rpush", Class: notify.ClassList}, nil
}

// signalListWaiters hands freshly pushed elements directly to any parked
// BLPOP/BRPOP waiter, under the same shard lock the push happened in
// (spec.md §4.6's same-lock handoff requirement).
func signalListWaiters(ctx *Context, key string, lv *encoding.ListValue) {
	if ctx.Block == nil {
		return
	}
	for lv.Len() > 0 && ctx.Block.HasWaiters(ctx.DBIndex, key) {
		v, ok := lv.PopLeft()
		if !ok {
			break
		}
		if !ctx.Block.Signal(ctx.DBIndex, key, v) {
			lv.PushLeft(v)
			break
		}
	}
}

func cmdLPop(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	return listPop(ctx, args, true)
}

func cmdRPop(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	return listPop(ctx, args, false)
}

func listPop(ctx *Context, args []string, left bool) (resp.Value, WriteResult, error) {
	key := args[0]
	count := 1
	hasCount := false
	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil || n < 0 {
			return resp.Value{}, WriteResult{}, rerror.NotInteger()
		}
		count, hasCount = n, true
	}
	lv, ok, err := getList(ctx, key)
	if err != nil {
		return resp.Value{}, WriteResult{}, err
	}
	if !ok || lv.Len() == 0 {
		if hasCount {
			return resp.NullArray(), WriteResult{}, nil
		}
		return resp.NullBulk(), WriteResult{}, nil
	}
	var popped []string
	for i := 0; i < count; i++ {
		var v string
		var got bool
		if left {
			v, got = lv.PopLeft()
		} else {
			v, got = lv.PopRight()
		}
		if !got {
			break
		}
		popped = append(popped, v)
	}
	if lv.Len() == 0 {
		ctx.DB.ShardFor(key).Delete(key)
	}
	event := "rpop"
	if left {
		event = "lpop"
	}
	wr := WriteResult{Wrote: true, Keys: []string{key}, Event: event, Class: notify.ClassList}
	if !hasCount {
		if len(popped) == 0 {
			return resp.NullBulk(), WriteResult{}, nil
		}
		return resp.Bulk(popped[0]), wr, nil
	}
	elems := make([]resp.Value, len(popped))
	for i, v := range popped {
		elems[i] = resp.Bulk(v)
	}
	return resp.Array(elems...), wr, nil
}

func cmdLLen(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	lv, ok, err := getList(ctx, args[0])
	if err != nil {
		return resp.Value{}, WriteResult{}, err
	}
	if !ok {
		return resp.Int(0), WriteResult{}, nil
	}
	return resp.Int(int64(lv.Len())), WriteResult{}, nil
}

func cmdLRange(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	lv, ok, err := getList(ctx, args[0])
	if err != nil {
		return resp.Value{}, WriteResult{}, err
	}
	if !ok {
		return resp.Array(), WriteResult{}, nil
	}
	start, err := strconv.Atoi(args[1])
	if err != nil {
		return resp.Value{}, WriteResult{}, rerror.NotInteger()
	}
	stop, err := strconv.Atoi(args[2])
	if err != nil {
		return resp.Value{}, WriteResult{}, rerror.NotInteger()
	}
	return resp.BulkStrings(lv.Range(start, stop)), WriteResult{}, nil
}

func cmdLIndex(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	lv, ok, err := getList(ctx, args[0])
	if err != nil {
		return resp.Value{}, WriteResult{}, err
	}
	if !ok {
		return resp.NullBulk(), WriteResult{}, nil
	}
	i, err := strconv.Atoi(args[1])
	if err != nil {
		return resp.Value{}, WriteResult{}, rerror.NotInteger()
	}
	v, ok := lv.Index(i)
	if !ok {
		return resp.NullBulk(), WriteResult{}, nil
	}
	return resp.Bulk(v), WriteResult{}, nil
}

func cmdLSet(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	key := args[0]
	lv, ok, err := getList(ctx, key)
	if err != nil {
		return resp.Value{}, WriteResult{}, err
	}
	if !ok {
		return resp.Value{}, WriteResult{}, rerror.InvalidState("no such key")
	}
	i, err := strconv.Atoi(args[1])
	if err != nil {
		return resp.Value{}, WriteResult{}, rerror.NotInteger()
	}
	if !lv.Set(i, args[2]) {
		return resp.Value{}, WriteResult{}, rerror.InvalidState("index out of range")
	}
	return resp.OK(), WriteResult{Wrote: true, Keys: []string{key}, Event: "lset", Class: notify.ClassList}, nil
}

func cmdLInsert(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	key := args[0]
	lv, ok, err := getList(ctx, key)
	if err != nil {
		return resp.Value{}, WriteResult{}, err
	}
	if !ok {
		return resp.Int(0), WriteResult{}, nil
	}
	var n int
	switch strings.ToUpper(args[1]) {
	case "BEFORE":
		n = lv.InsertBefore(args[2], args[3])
	case "AFTER":
		n = lv.InsertAfter(args[2], args[3])
	default:
		return resp.Value{}, WriteResult{}, rerror.Syntax()
	}
	if n < 0 {
		return resp.Int(-1), WriteResult{}, nil
	}
	return resp.Int(int64(n)), WriteResult{Wrote: true, Keys: []string{key}, Event: "linsert", Class: notify.ClassList}, nil
}

func cmdLRem(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	key := args[0]
	lv, ok, err := getList(ctx, key)
	if err != nil {
		return resp.Value{}, WriteResult{}, err
	}
	if !ok {
		return resp.Int(0), WriteResult{}, nil
	}
	count, err := strconv.Atoi(args[1])
	if err != nil {
		return resp.Value{}, WriteResult{}, rerror.NotInteger()
	}
	n := lv.RemoveCount(args[2], count)
	if lv.Len() == 0 {
		ctx.DB.ShardFor(key).Delete(key)
	}
	if n == 0 {
		return resp.Int(0), WriteResult{}, nil
	}
	return resp.Int(int64(n)), WriteResult{Wrote: true, Keys: []string{key}, Event: "lrem", Class: notify.ClassList}, nil
}

func cmdLTrim(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	key := args[0]
	lv, ok, err := getList(ctx, key)
	if err != nil {
		return resp.Value{}, WriteResult{}, err
	}
	if !ok {
		return resp.OK(), WriteResult{}, nil
	}
	start, err := strconv.Atoi(args[1])
	if err != nil {
		return resp.Value{}, WriteResult{}, rerror.NotInteger()
	}
	stop, err := strconv.Atoi(args[2])
	if err != nil {
		return resp.Value{}, WriteResult{}, rerror.NotInteger()
	}
	lv.Trim(start, stop)
	if lv.Len() == 0 {
		ctx.DB.ShardFor(key).Delete(key)
	}
	return resp.OK(), WriteResult{Wrote: true, Keys: []string{key}, Event: "ltrim", Class: notify.ClassList}, nil
}

func cmdRPopLPush(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	src, dst := args[0], args[1]
	slv, ok, err := getList(ctx, src)
	if err != nil {
		return resp.Value{}, WriteResult{}, err
	}
	if !ok || slv.Len() == 0 {
		return resp.NullBulk(), WriteResult{}, nil
	}
	v, _ := slv.PopRight()
	if slv.Len() == 0 {
		ctx.DB.ShardFor(src).Delete(src)
	}
	dlv, err := ensureList(ctx, dst)
	if err != nil {
		return resp.Value{}, WriteResult{}, err
	}
	dlv.PushLeft(v)
	signalListWaiters(ctx, dst, dlv)
	return resp.Bulk(v), WriteResult{Wrote: true, Keys: []string{src, dst}, Event: "rpoplpush", Class: notify.ClassList}, nil
}

// cmdBLPop and cmdBRPop pop immediately if an element is already
// available; otherwise they report WriteResult{} and the caller (the
// connection's command loop) is responsible for parking on
// ctx.Block.Register and retrying once signaled, per spec.md §4.6.
func cmdBLPop(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	return blockingPop(ctx, args, true)
}

func cmdBRPop(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	return blockingPop(ctx, args, false)
}

func blockingPop(ctx *Context, args []string, left bool) (resp.Value, WriteResult, error) {
	keys := args[:len(args)-1]
	for _, key := range keys {
		lv, ok, err := getList(ctx, key)
		if err != nil {
			return resp.Value{}, WriteResult{}, err
		}
		if !ok || lv.Len() == 0 {
			continue
		}
		var v string
		if left {
			v, _ = lv.PopLeft()
		} else {
			v, _ = lv.PopRight()
		}
		if lv.Len() == 0 {
			ctx.DB.ShardFor(key).Delete(key)
		}
		event := "rpop"
		if left {
			event = "lpop"
		}
		return resp.BulkStrings([]string{key, v}), WriteResult{Wrote: true, Keys: []string{key}, Event: event, Class: notify.ClassList}, nil
	}
	// Nothing available: signal the caller to park via a sentinel error
	// the connection loop recognizes (see pkg/server).
	return resp.Value{}, WriteResult{}, errWouldBlock
}
