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

// RegisterZSetCommands installs ZADD/ZSCORE/ZRANGE and friends
// (spec.md §4.4 sorted-set type).
func RegisterZSetCommands(reg *Registry) {
	reg.Register(&Spec{Name: "ZADD", Arity: -4, LockKeys: FixedKeyAt(0), Handler: cmdZAdd, Flags: Flags{Class: ClassWrite}})
	reg.Register(&Spec{Name: "ZSCORE", Arity: 3, LockKeys: FixedKeyAt(0), Handler: cmdZScore, Flags: Flags{Class: ClassReadOnly}})
	reg.Register(&Spec{Name: "ZREM", Arity: -3, LockKeys: FixedKeyAt(0), Handler: cmdZRem, Flags: Flags{Class: ClassWrite}})
	reg.Register(&Spec{Name: "ZCARD", Arity: 2, LockKeys: FixedKeyAt(0), Handler: cmdZCard, Flags: Flags{Class: ClassReadOnly}})
	reg.Register(&Spec{Name: "ZINCRBY", Arity: 4, LockKeys: FixedKeyAt(0), Handler: cmdZIncrBy, Flags: Flags{Class: ClassWrite}})
	reg.Register(&Spec{Name: "ZRANK", Arity: 3, LockKeys: FixedKeyAt(0), Handler: cmdZRank, Flags: Flags{Class: ClassReadOnly}})
	reg.Register(&Spec{Name: "ZREVRANK", Arity: 3, LockKeys: FixedKeyAt(0), Handler: cmdZRevRank, Flags: Flags{Class: ClassReadOnly}})
	reg.Register(&Spec{Name: "ZRANGE", Arity: -4, LockKeys: FixedKeyAt(0), Handler: cmdZRange, Flags: Flags{Class: ClassReadOnly}})
	reg.Register(&Spec{Name: "ZREVRANGE", Arity: -4, LockKeys: FixedKeyAt(0), Handler: cmdZRevRange, Flags: Flags{Class: ClassReadOnly}})
	reg.Register(&Spec{Name: "ZRANGEBYSCORE", Arity: -4, LockKeys: FixedKeyAt(0), Handler: cmdZRangeByScore, Flags: Flags{Class: ClassReadOnly}})
	reg.Register(&Spec{Name: "ZRANGEBYLEX", Arity: -4, LockKeys: FixedKeyAt(0), Handler: cmdZRangeByLex, Flags: Flags{Class: ClassReadOnly}})
}

func getZSet(ctx *Context, key string) (*encoding.ZSetValue, bool, error) {
	e, ok := ctx.DB.Get(key)
	if !ok {
		return nil, false, nil
	}
	zv, ok := e.Value.(*encoding.ZSetValue)
	if !ok {
		return nil, false, rerror.WrongType()
	}
	return zv, true, nil
}

func ensureZSet(ctx *Context, key string) (*encoding.ZSetValue, error) {
	zv, ok, err := getZSet(ctx, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		zv = encoding.NewZSet()
		ctx.DB.ShardFor(key).Set(key, &types.Entry{Value: zv, LastAccess: time.Now()})
	}
	return zv, nil
}

func cmdZAdd(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	key := args[0]
	i := 1
	var nx, xx, ch bool
loop:
	for i < len(args) {
		switch strings.ToUpper(args[i]) {
		case "NX":
			nx = true
			i++
		case "XX":
			xx = true
			i++
		case "CH":
			ch = true
			i++
		case "GT", "LT":
			i++ // recognized but scored comparison not implemented; treat as plain ZADD
		default:
			break loop
		}
	}
	if nx && xx {
		return resp.Value{}, WriteResult{}, rerror.Syntax()
	}
	rest := args[i:]
	if len(rest) == 0 || len(rest)%2 != 0 {
		return resp.Value{}, WriteResult{}, rerror.Syntax()
	}
	zv, err := ensureZSet(ctx, key)
	if err != nil {
		return resp.Value{}, WriteResult{}, err
	}
	added, changed := 0, 0
	for j := 0; j < len(rest); j += 2 {
		score, err := strconv.ParseFloat(rest[j], 64)
		if err != nil {
			return resp.Value{}, WriteResult{}, rerror.NotFloat()
		}
		member := rest[j+1]
		_, existed := zv.Score(member)
		if nx && existed {
			continue
		}
		if xx && !existed {
			continue
		}
		if zv.Add(score, member) {
			added++
			changed++
		} else if existed {
			changed++
		}
	}
	n := added
	if ch {
		n = changed
	}
	wr := WriteResult{}
	if changed > 0 {
		wr = WriteResult{Wrote: true, Keys: []string{key}, Event: "zadd", Class: notify.ClassZSet}
	}
	return resp.Int(int64(n)), wr, nil
}

func cmdZScore(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	zv, ok, err := getZSet(ctx, args[0])
	if err != nil {
		return resp.Value{}, WriteResult{}, err
	}
	if !ok {
		return resp.NullBulk(), WriteResult{}, nil
	}
	s, ok := zv.Score(args[1])
	if !ok {
		return resp.NullBulk(), WriteResult{}, nil
	}
	return resp.Bulk(strconv.FormatFloat(s, 'f', -1, 64)), WriteResult{}, nil
}

func cmdZRem(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	key := args[0]
	zv, ok, err := getZSet(ctx, key)
	if err != nil {
		return resp.Value{}, WriteResult{}, err
	}
	if !ok {
		return resp.Int(0), WriteResult{}, nil
	}
	n := 0
	for _, m := range args[1:] {
		if zv.Rem(m) {
			n++
		}
	}
	if zv.Len() == 0 {
		ctx.DB.ShardFor(key).Delete(key)
	}
	if n == 0 {
		return resp.Int(0), WriteResult{}, nil
	}
	return resp.Int(int64(n)), WriteResult{Wrote: true, Keys: []string{key}, Event: "zrem", Class: notify.ClassZSet}, nil
}

func cmdZCard(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	zv, ok, err := getZSet(ctx, args[0])
	if err != nil {
		return resp.Value{}, WriteResult{}, err
	}
	if !ok {
		return resp.Int(0), WriteResult{}, nil
	}
	return resp.Int(int64(zv.Len())), WriteResult{}, nil
}

func cmdZIncrBy(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	key := args[0]
	delta, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return resp.Value{}, WriteResult{}, rerror.NotFloat()
	}
	member := args[2]
	zv, err := ensureZSet(ctx, key)
	if err != nil {
		return resp.Value{}, WriteResult{}, err
	}
	newScore := zv.IncrBy(member, delta)
	return resp.Bulk(strconv.FormatFloat(newScore, 'f', -1, 64)), WriteResult{Wrote: true, Keys: []string{key}, Event: "zincrby", Class: notify.ClassZSet}, nil
}

func cmdZRank(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	return zRank(ctx, args, false)
}

func cmdZRevRank(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	return zRank(ctx, args, true)
}

func zRank(ctx *Context, args []string, reverse bool) (resp.Value, WriteResult, error) {
	zv, ok, err := getZSet(ctx, args[0])
	if err != nil {
		return resp.Value{}, WriteResult{}, err
	}
	if !ok {
		return resp.NullBulk(), WriteResult{}, nil
	}
	r, ok := zv.Rank(args[1])
	if !ok {
		return resp.NullBulk(), WriteResult{}, nil
	}
	if reverse {
		r = zv.Len() - 1 - r
	}
	return resp.Int(int64(r)), WriteResult{}, nil
}

func scoredReply(members []encoding.ScoredMember, withScores bool) resp.Value {
	if !withScores {
		names := make([]string, len(members))
		for i, m := range members {
			names[i] = m.Member
		}
		return resp.BulkStrings(names)
	}
	elems := make([]resp.Value, 0, len(members)*2)
	for _, m := range members {
		elems = append(elems, resp.Bulk(m.Member), resp.Bulk(strconv.FormatFloat(m.Score, 'f', -1, 64)))
	}
	return resp.Array(elems...)
}

func cmdZRange(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	return zRangeByRank(ctx, args, false)
}

func cmdZRevRange(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	return zRangeByRank(ctx, args, true)
}

func zRangeByRank(ctx *Context, args []string, reverse bool) (resp.Value, WriteResult, error) {
	zv, ok, err := getZSet(ctx, args[0])
	if err != nil {
		return resp.Value{}, WriteResult{}, err
	}
	start, err := strconv.Atoi(args[1])
	if err != nil {
		return resp.Value{}, WriteResult{}, rerror.NotInteger()
	}
	stop, err := strconv.Atoi(args[2])
	if err != nil {
		return resp.Value{}, WriteResult{}, rerror.NotInteger()
	}
	withScores := len(args) > 3 && strings.ToUpper(args[3]) == "WITHSCORES"
	if !ok {
		return resp.Array(), WriteResult{}, nil
	}
	return scoredReply(zv.RangeByRank(start, stop, reverse), withScores), WriteResult{}, nil
}

func parseScoreBound(s string) (encoding.ScoreBound, error) {
	switch s {
	case "-inf":
		return encoding.ScoreBound{Inf: -1}, nil
	case "+inf":
		return encoding.ScoreBound{Inf: 1}, nil
	}
	exclusive := strings.HasPrefix(s, "(")
	if exclusive {
		s = s[1:]
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return encoding.ScoreBound{}, rerror.NotFloat()
	}
	return encoding.ScoreBound{Value: v, Exclusive: exclusive}, nil
}

func cmdZRangeByScore(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	zv, ok, err := getZSet(ctx, args[0])
	if err != nil {
		return resp.Value{}, WriteResult{}, err
	}
	min, err := parseScoreBound(args[1])
	if err != nil {
		return resp.Value{}, WriteResult{}, err
	}
	max, err := parseScoreBound(args[2])
	if err != nil {
		return resp.Value{}, WriteResult{}, err
	}
	withScores := false
	var limitOffset, limitCount int
	hasLimit := false
	for i := 3; i < len(args); i++ {
		switch strings.ToUpper(args[i]) {
		case "WITHSCORES":
			withScores = true
		case "LIMIT":
			if i+2 >= len(args) {
				return resp.Value{}, WriteResult{}, rerror.Syntax()
			}
			limitOffset, _ = strconv.Atoi(args[i+1])
			limitCount, _ = strconv.Atoi(args[i+2])
			hasLimit = true
			i += 2
		}
	}
	if !ok {
		return resp.Array(), WriteResult{}, nil
	}
	members := zv.RangeByScore(min, max, false)
	if hasLimit {
		members = applyLimit(members, limitOffset, limitCount)
	}
	return scoredReply(members, withScores), WriteResult{}, nil
}

func applyLimit(members []encoding.ScoredMember, offset, count int) []encoding.ScoredMember {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(members) {
		return nil
	}
	members = members[offset:]
	if count < 0 {
		return members
	}
	if count < len(members) {
		members = members[:count]
	}
	return members
}

func parseLexBound(s string) (encoding.LexBound, error) {
	switch s {
	case "-":
		return encoding.LexBound{Inf: -1}, nil
	case "+":
		return encoding.LexBound{Inf: 1}, nil
	}
	if strings.HasPrefix(s, "(") {
		return encoding.LexBound{Value: s[1:], Exclusive: true}, nil
	}
	if strings.HasPrefix(s, "[") {
		return encoding.LexBound{Value: s[1:]}, nil
	}
	return encoding.LexBound{}, rerror.Syntax()
}

func cmdZRangeByLex(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	zv, ok, err := getZSet(ctx, args[0])
	if err != nil {
		return resp.Value{}, WriteResult{}, err
	}
	min, err := parseLexBound(args[1])
	if err != nil {
		return resp.Value{}, WriteResult{}, err
	}
	max, err := parseLexBound(args[2])
	if err != nil {
		return resp.Value{}, WriteResult{}, err
	}
	if !ok {
		return resp.Array(), WriteResult{}, nil
	}
	return resp.BulkStrings(zv.RangeByLex(min, max)), WriteResult{}, nil
}
