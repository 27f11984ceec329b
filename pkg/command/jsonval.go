package command

import (
	"encoding/json"
	"time"

	"github.com/spineldb/spineldb/pkg/encoding"
	"github.com/spineldb/spineldb/pkg/notify"
	"github.com/spineldb/spineldb/pkg/rerror"
	"github.com/spineldb/spineldb/pkg/resp"
	"github.com/spineldb/spineldb/pkg/types"
)

// RegisterJSONCommands installs JSON.SET/JSON.GET/JSON.DEL/JSON.MERGE/
// JSON.TYPE/JSON.STRLEN/JSON.OBJLEN/JSON.ARRLEN (spec.md §4.4 JSON type,
// restricted JSONPath subset).
func RegisterJSONCommands(reg *Registry) {
	reg.Register(&Spec{Name: "JSON.SET", Arity: -4, LockKeys: FixedKeyAt(0), Handler: cmdJSONSet, Flags: Flags{Class: ClassWrite}})
	reg.Register(&Spec{Name: "JSON.GET", Arity: -2, LockKeys: FixedKeyAt(0), Handler: cmdJSONGet, Flags: Flags{Class: ClassReadOnly}})
	reg.Register(&Spec{Name: "JSON.DEL", Arity: -2, LockKeys: FixedKeyAt(0), Handler: cmdJSONDel, Flags: Flags{Class: ClassWrite}})
	reg.Register(&Spec{Name: "JSON.MERGE", Arity: 4, LockKeys: FixedKeyAt(0), Handler: cmdJSONMerge, Flags: Flags{Class: ClassWrite}})
	reg.Register(&Spec{Name: "JSON.TYPE", Arity: -2, LockKeys: FixedKeyAt(0), Handler: cmdJSONType, Flags: Flags{Class: ClassReadOnly}})
	reg.Register(&Spec{Name: "JSON.STRLEN", Arity: -2, LockKeys: FixedKeyAt(0), Handler: cmdJSONStrLen, Flags: Flags{Class: ClassReadOnly}})
	reg.Register(&Spec{Name: "JSON.OBJLEN", Arity: -2, LockKeys: FixedKeyAt(0), Handler: cmdJSONObjLen, Flags: Flags{Class: ClassReadOnly}})
	reg.Register(&Spec{Name: "JSON.ARRLEN", Arity: -2, LockKeys: FixedKeyAt(0), Handler: cmdJSONArrLen, Flags: Flags{Class: ClassReadOnly}})
}

func getJSON(ctx *Context, key string) (*encoding.JSONValue, bool, error) {
	e, ok := ctx.DB.Get(key)
	if !ok {
		return nil, false, nil
	}
	jv, ok := e.Value.(*encoding.JSONValue)
	if !ok {
		return nil, false, rerror.WrongType()
	}
	return jv, true, nil
}

func jsonPathArg(args []string, idx int) string {
	if len(args) > idx {
		return args[idx]
	}
	return "$"
}

func cmdJSONSet(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	key, path, raw := args[0], args[1], args[2]
	var nx, xx bool
	for _, flag := range args[3:] {
		switch flag {
		case "NX":
			nx = true
		case "XX":
			xx = true
		default:
			return resp.Value{}, WriteResult{}, rerror.Syntax()
		}
	}

	var value any
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		return resp.Value{}, WriteResult{}, rerror.InvalidState("invalid JSON value")
	}

	jv, ok, err := getJSON(ctx, key)
	if err != nil {
		return resp.Value{}, WriteResult{}, err
	}
	if !ok {
		if xx {
			return resp.NullBulk(), WriteResult{}, nil
		}
		if path != "$" && path != "." {
			jv = encoding.NewJSON(map[string]any{})
		} else {
			jv = encoding.NewJSON(nil)
		}
	}
	if err := jv.Set(path, value, nx, xx); err != nil {
		return resp.NullBulk(), WriteResult{}, nil
	}
	ctx.DB.ShardFor(key).Set(key, &types.Entry{Value: jv, LastAccess: time.Now()})
	return resp.OK(), WriteResult{Wrote: true, Keys: []string{key}, Event: "json.set", Class: notify.ClassJSON}, nil
}

func cmdJSONGet(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	jv, ok, err := getJSON(ctx, args[0])
	if err != nil {
		return resp.Value{}, WriteResult{}, err
	}
	if !ok {
		return resp.NullBulk(), WriteResult{}, nil
	}
	path := jsonPathArg(args, 1)
	v, found, err := jv.Get(path)
	if err != nil {
		return resp.Value{}, WriteResult{}, rerror.InvalidState("%s", err.Error())
	}
	if !found {
		return resp.NullBulk(), WriteResult{}, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return resp.Value{}, WriteResult{}, rerror.InvalidState("%s", err.Error())
	}
	return resp.Bulk(string(b)), WriteResult{}, nil
}

func cmdJSONDel(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	key := args[0]
	jv, ok, err := getJSON(ctx, key)
	if err != nil {
		return resp.Value{}, WriteResult{}, err
	}
	if !ok {
		return resp.Int(0), WriteResult{}, nil
	}
	path := jsonPathArg(args, 1)
	if !jv.Del(path) {
		return resp.Int(0), WriteResult{}, nil
	}
	return resp.Int(1), WriteResult{Wrote: true, Keys: []string{key}, Event: "json.del", Class: notify.ClassJSON}, nil
}

func cmdJSONMerge(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	key, path, raw := args[0], args[1], args[2]
	var patch any
	if err := json.Unmarshal([]byte(raw), &patch); err != nil {
		return resp.Value{}, WriteResult{}, rerror.InvalidState("invalid JSON value")
	}
	jv, ok, err := getJSON(ctx, key)
	if err != nil {
		return resp.Value{}, WriteResult{}, err
	}
	if !ok {
		jv = encoding.NewJSON(map[string]any{})
	}
	if err := jv.Merge(path, patch); err != nil {
		return resp.Value{}, WriteResult{}, rerror.InvalidState("%s", err.Error())
	}
	ctx.DB.ShardFor(key).Set(key, &types.Entry{Value: jv, LastAccess: time.Now()})
	return resp.OK(), WriteResult{Wrote: true, Keys: []string{key}, Event: "json.merge", Class: notify.ClassJSON}, nil
}

func cmdJSONType(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	jv, ok, err := getJSON(ctx, args[0])
	if err != nil {
		return resp.Value{}, WriteResult{}, err
	}
	if !ok {
		return resp.NullBulk(), WriteResult{}, nil
	}
	v, found, err := jv.Get(jsonPathArg(args, 1))
	if err != nil || !found {
		return resp.NullBulk(), WriteResult{}, nil
	}
	return resp.Bulk(jsonTypeName(v)), WriteResult{}, nil
}

func jsonTypeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case float64:
		return "number"
	case string:
		return "string"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return "unknown"
	}
}

func cmdJSONStrLen(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	jv, ok, err := getJSON(ctx, args[0])
	if err != nil {
		return resp.Value{}, WriteResult{}, err
	}
	if !ok {
		return resp.NullBulk(), WriteResult{}, nil
	}
	v, found, err := jv.Get(jsonPathArg(args, 1))
	if err != nil || !found {
		return resp.NullBulk(), WriteResult{}, nil
	}
	s, ok2 := v.(string)
	if !ok2 {
		return resp.Value{}, WriteResult{}, rerror.WrongType()
	}
	return resp.Int(int64(len(s))), WriteResult{}, nil
}

func cmdJSONObjLen(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	jv, ok, err := getJSON(ctx, args[0])
	if err != nil {
		return resp.Value{}, WriteResult{}, err
	}
	if !ok {
		return resp.NullBulk(), WriteResult{}, nil
	}
	v, found, err := jv.Get(jsonPathArg(args, 1))
	if err != nil || !found {
		return resp.NullBulk(), WriteResult{}, nil
	}
	obj, ok2 := v.(map[string]any)
	if !ok2 {
		return resp.Value{}, WriteResult{}, rerror.WrongType()
	}
	return resp.Int(int64(len(obj))), WriteResult{}, nil
}

func cmdJSONArrLen(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	jv, ok, err := getJSON(ctx, args[0])
	if err != nil {
		return resp.Value{}, WriteResult{}, err
	}
	if !ok {
		return resp.NullBulk(), WriteResult{}, nil
	}
	v, found, err := jv.Get(jsonPathArg(args, 1))
	if err != nil || !found {
		return resp.NullBulk(), WriteResult{}, nil
	}
	arr, ok2 := v.([]any)
	if !ok2 {
		return resp.Value{}, WriteResult{}, rerror.WrongType()
	}
	return resp.Int(int64(len(arr))), WriteResult{}, nil
}
