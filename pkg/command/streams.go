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

// RegisterStreamCommands installs XADD/XLEN/XRANGE/XREVRANGE/XDEL/XTRIM/
// XGROUP/XACK/XCLAIM/XAUTOCLAIM (spec.md §4.4 stream type). XREAD is not
// registered, so there is no blocking stream read.
func RegisterStreamCommands(reg *Registry) {
	reg.Register(&Spec{Name: "XADD", Arity: -5, LockKeys: FixedKeyAt(0), Handler: cmdXAdd, Flags: Flags{Class: ClassWrite}})
	reg.Register(&Spec{Name: "XLEN", Arity: 2, LockKeys: FixedKeyAt(0), Handler: cmdXLen, Flags: Flags{Class: ClassReadOnly}})
	reg.Register(&Spec{Name: "XRANGE", Arity: -4, LockKeys: FixedKeyAt(0), Handler: cmdXRange, Flags: Flags{Class: ClassReadOnly}})
	reg.Register(&Spec{Name: "XREVRANGE", Arity: -4, LockKeys: FixedKeyAt(0), Handler: cmdXRevRange, Flags: Flags{Class: ClassReadOnly}})
	reg.Register(&Spec{Name: "XDEL", Arity: -3, LockKeys: FixedKeyAt(0), Handler: cmdXDel, Flags: Flags{Class: ClassWrite}})
	reg.Register(&Spec{Name: "XTRIM", Arity: -4, LockKeys: FixedKeyAt(0), Handler: cmdXTrim, Flags: Flags{Class: ClassWrite}})
	reg.Register(&Spec{Name: "XGROUP", Arity: -2, LockKeys: FixedKeyAt(1), Handler: cmdXGroup, Flags: Flags{Class: ClassWrite}})
	reg.Register(&Spec{Name: "XACK", Arity: -4, LockKeys: FixedKeyAt(0), Handler: cmdXAck, Flags: Flags{Class: ClassWrite}})
	reg.Register(&Spec{Name: "XCLAIM", Arity: -6, LockKeys: FixedKeyAt(0), Handler: cmdXClaim, Flags: Flags{Class: ClassWrite}})
	reg.Register(&Spec{Name: "XAUTOCLAIM", Arity: -7, LockKeys: FixedKeyAt(0), Handler: cmdXAutoClaim, Flags: Flags{Class: ClassWrite}})
}

func getStream(ctx *Context, key string) (*encoding.StreamValue, bool, error) {
	e, ok := ctx.DB.Get(key)
	if !ok {
		return nil, false, nil
	}
	sv, ok := e.Value.(*encoding.StreamValue)
	if !ok {
		return nil, false, rerror.WrongType()
	}
	return sv, true, nil
}

func ensureStream(ctx *Context, key string) (*encoding.StreamValue, error) {
	sv, ok, err := getStream(ctx, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		sv = encoding.NewStream()
		ctx.DB.ShardFor(key).Set(key, &types.Entry{Value: sv, LastAccess: time.Now()})
	}
	return sv, nil
}

func cmdXAdd(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	key, idArg := args[0], args[1]
	fields := args[2:]
	if len(fields)%2 != 0 || len(fields) == 0 {
		return resp.Value{}, WriteResult{}, rerror.Syntax()
	}
	sv, err := ensureStream(ctx, key)
	if err != nil {
		return resp.Value{}, WriteResult{}, err
	}
	var id encoding.StreamID
	if idArg == "*" {
		id = sv.NextID(uint64(time.Now().UnixMilli()))
	} else {
		id, err = encoding.ParseStreamID(idArg, 0)
		if err != nil {
			return resp.Value{}, WriteResult{}, rerror.InvalidState("%s", err.Error())
		}
		if strings.HasSuffix(idArg, "-*") {
			id = sv.NextID(id.MS)
		}
	}
	if err := sv.Append(id, fields); err != nil {
		return resp.Value{}, WriteResult{}, rerror.InvalidState("%s", err.Error())
	}
	if ctx.Block != nil {
		ctx.Block.Signal(ctx.DBIndex, key, id.String())
	}
	return resp.Bulk(id.String()), WriteResult{Wrote: true, Keys: []string{key}, Event: "xadd", Class: notify.ClassStream}, nil
}

func cmdXLen(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	sv, ok, err := getStream(ctx, args[0])
	if err != nil {
		return resp.Value{}, WriteResult{}, err
	}
	if !ok {
		return resp.Int(0), WriteResult{}, nil
	}
	return resp.Int(int64(sv.Len())), WriteResult{}, nil
}

func parseRangeBound(s string, defaultSeq uint64) (encoding.StreamID, error) {
	switch s {
	case "-":
		return encoding.StreamID{}, nil
	case "+":
		return encoding.StreamID{MS: ^uint64(0), Seq: ^uint64(0)}, nil
	}
	return encoding.ParseStreamID(s, defaultSeq)
}

func streamEntryReply(e encoding.StreamEntry) resp.Value {
	elems := make([]resp.Value, len(e.Fields))
	for i, f := range e.Fields {
		elems[i] = resp.Bulk(f)
	}
	return resp.Array(resp.Bulk(e.ID.String()), resp.Array(elems...))
}

func cmdXRange(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	return xRange(ctx, args, false)
}

func cmdXRevRange(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	return xRange(ctx, args, true)
}

func xRange(ctx *Context, args []string, reverse bool) (resp.Value, WriteResult, error) {
	sv, ok, err := getStream(ctx, args[0])
	if err != nil {
		return resp.Value{}, WriteResult{}, err
	}
	startArg, endArg := args[1], args[2]
	if reverse {
		startArg, endArg = args[2], args[1]
	}
	start, err := parseRangeBound(startArg, 0)
	if err != nil {
		return resp.Value{}, WriteResult{}, rerror.InvalidState("%s", err.Error())
	}
	end, err := parseRangeBound(endArg, ^uint64(0))
	if err != nil {
		return resp.Value{}, WriteResult{}, rerror.InvalidState("%s", err.Error())
	}
	count := 0
	if len(args) >= 5 && strings.ToUpper(args[3]) == "COUNT" {
		count, _ = strconv.Atoi(args[4])
	}
	if !ok {
		return resp.Array(), WriteResult{}, nil
	}
	var entries []encoding.StreamEntry
	if reverse {
		entries = sv.RevRange(end, start, count)
	} else {
		entries = sv.Range(start, end, count)
	}
	elems := make([]resp.Value, len(entries))
	for i, e := range entries {
		elems[i] = streamEntryReply(e)
	}
	return resp.Array(elems...), WriteResult{}, nil
}

func cmdXDel(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	key := args[0]
	sv, ok, err := getStream(ctx, key)
	if err != nil {
		return resp.Value{}, WriteResult{}, err
	}
	if !ok {
		return resp.Int(0), WriteResult{}, nil
	}
	ids := make([]encoding.StreamID, len(args)-1)
	for i, a := range args[1:] {
		ids[i], err = encoding.ParseStreamID(a, 0)
		if err != nil {
			return resp.Value{}, WriteResult{}, rerror.InvalidState("%s", err.Error())
		}
	}
	n := sv.Delete(ids...)
	if n == 0 {
		return resp.Int(0), WriteResult{}, nil
	}
	return resp.Int(int64(n)), WriteResult{Wrote: true, Keys: []string{key}, Event: "xdel", Class: notify.ClassStream}, nil
}

func cmdXTrim(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	key := args[0]
	sv, ok, err := getStream(ctx, key)
	if err != nil {
		return resp.Value{}, WriteResult{}, err
	}
	if !ok {
		return resp.Int(0), WriteResult{}, nil
	}
	strategy := strings.ToUpper(args[1])
	i := 2
	if i < len(args) && args[i] == "=" {
		i++
	}
	if i >= len(args) {
		return resp.Value{}, WriteResult{}, rerror.Syntax()
	}
	var removed int
	switch strategy {
	case "MAXLEN":
		n, err := strconv.Atoi(args[i])
		if err != nil {
			return resp.Value{}, WriteResult{}, rerror.NotInteger()
		}
		removed = sv.TrimMaxLen(n)
	case "MINID":
		id, err := encoding.ParseStreamID(args[i], 0)
		if err != nil {
			return resp.Value{}, WriteResult{}, rerror.InvalidState("%s", err.Error())
		}
		removed = sv.TrimMinID(id)
	default:
		return resp.Value{}, WriteResult{}, rerror.Syntax()
	}
	if removed == 0 {
		return resp.Int(0), WriteResult{}, nil
	}
	return resp.Int(int64(removed)), WriteResult{Wrote: true, Keys: []string{key}, Event: "xtrim", Class: notify.ClassStream}, nil
}

func cmdXGroup(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	sub := strings.ToUpper(args[0])
	switch sub {
	case "CREATE":
		if len(args) < 4 {
			return resp.Value{}, WriteResult{}, rerror.Syntax()
		}
		key, group, idArg := args[1], args[2], args[3]
		mkstream := false
		for _, a := range args[4:] {
			if strings.ToUpper(a) == "MKSTREAM" {
				mkstream = true
			}
		}
		sv, ok, err := getStream(ctx, key)
		if err != nil {
			return resp.Value{}, WriteResult{}, err
		}
		if !ok {
			if !mkstream {
				return resp.Value{}, WriteResult{}, rerror.InvalidState("The XGROUP subcommand requires the key to exist. Note that for CREATE you may want to use the MKSTREAM option to create an empty stream automatically.")
			}
			sv, err = ensureStream(ctx, key)
			if err != nil {
				return resp.Value{}, WriteResult{}, err
			}
		}
		var start encoding.StreamID
		if idArg == "$" {
			start = sv.LastID()
		} else {
			start, err = encoding.ParseStreamID(idArg, 0)
			if err != nil {
				return resp.Value{}, WriteResult{}, rerror.InvalidState("%s", err.Error())
			}
		}
		if err := sv.CreateGroup(group, start); err != nil {
			return resp.Value{}, WriteResult{}, rerror.InvalidState("%s", err.Error())
		}
		return resp.OK(), WriteResult{Wrote: true, Keys: []string{key}, Event: "xgroup-create", Class: notify.ClassStream}, nil
	case "DESTROY":
		if len(args) < 3 {
			return resp.Value{}, WriteResult{}, rerror.Syntax()
		}
		key, group := args[1], args[2]
		sv, ok, err := getStream(ctx, key)
		if err != nil {
			return resp.Value{}, WriteResult{}, err
		}
		if !ok || !sv.DeleteGroup(group) {
			return resp.Int(0), WriteResult{}, nil
		}
		return resp.Int(1), WriteResult{Wrote: true, Keys: []string{key}, Event: "xgroup-destroy", Class: notify.ClassStream}, nil
	default:
		return resp.Value{}, WriteResult{}, rerror.Syntax()
	}
}

func cmdXAck(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	key, group := args[0], args[1]
	sv, ok, err := getStream(ctx, key)
	if err != nil {
		return resp.Value{}, WriteResult{}, err
	}
	if !ok {
		return resp.Int(0), WriteResult{}, nil
	}
	g, ok := sv.Group(group)
	if !ok {
		return resp.Int(0), WriteResult{}, nil
	}
	ids := make([]encoding.StreamID, len(args)-2)
	for i, a := range args[2:] {
		ids[i], err = encoding.ParseStreamID(a, 0)
		if err != nil {
			return resp.Value{}, WriteResult{}, rerror.InvalidState("%s", err.Error())
		}
	}
	n := g.Ack(ids...)
	return resp.Int(int64(n)), WriteResult{}, nil
}

func cmdXClaim(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	key, group, consumer := args[0], args[1], args[2]
	minIdleMS, err := strconv.ParseInt(args[3], 10, 64)
	if err != nil {
		return resp.Value{}, WriteResult{}, rerror.NotInteger()
	}
	sv, ok, err := getStream(ctx, key)
	if err != nil {
		return resp.Value{}, WriteResult{}, err
	}
	if !ok {
		return resp.Array(), WriteResult{}, nil
	}
	g, ok := sv.Group(group)
	if !ok {
		return resp.Value{}, WriteResult{}, rerror.InvalidState("NOGROUP No such consumer group")
	}
	ids := make([]encoding.StreamID, len(args)-4)
	for i, a := range args[4:] {
		ids[i], err = encoding.ParseStreamID(a, 0)
		if err != nil {
			return resp.Value{}, WriteResult{}, rerror.InvalidState("%s", err.Error())
		}
	}
	claimed := g.Claim(consumer, time.Duration(minIdleMS)*time.Millisecond, time.Now(), ids...)
	elems := make([]resp.Value, len(claimed))
	for i, id := range claimed {
		elems[i] = resp.Bulk(id.String())
	}
	return resp.Array(elems...), WriteResult{Wrote: true, Keys: []string{key}, Event: "xclaim", Class: notify.ClassStream}, nil
}

func cmdXAutoClaim(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	key, group, consumer := args[0], args[1], args[2]
	minIdleMS, err := strconv.ParseInt(args[3], 10, 64)
	if err != nil {
		return resp.Value{}, WriteResult{}, rerror.NotInteger()
	}
	start, err := encoding.ParseStreamID(args[4], 0)
	if err != nil {
		return resp.Value{}, WriteResult{}, rerror.InvalidState("%s", err.Error())
	}
	count := 100
	for i := 5; i < len(args); i++ {
		if strings.ToUpper(args[i]) == "COUNT" && i+1 < len(args) {
			count, _ = strconv.Atoi(args[i+1])
		}
	}
	sv, ok, err := getStream(ctx, key)
	if err != nil {
		return resp.Value{}, WriteResult{}, err
	}
	if !ok {
		return resp.Array(resp.Bulk("0-0"), resp.Array()), WriteResult{}, nil
	}
	g, ok := sv.Group(group)
	if !ok {
		return resp.Value{}, WriteResult{}, rerror.InvalidState("NOGROUP No such consumer group")
	}
	claimed, next := g.AutoClaim(consumer, time.Duration(minIdleMS)*time.Millisecond, start, count, time.Now())
	elems := make([]resp.Value, len(claimed))
	for i, id := range claimed {
		elems[i] = resp.Bulk(id.String())
	}
	return resp.Array(resp.Bulk(next.String()), resp.Array(elems...)), WriteResult{Wrote: true, Keys: []string{key}, Event: "xautoclaim", Class: notify.ClassStream}, nil
}
