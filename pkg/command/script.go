package command

import (
	"strings"

	"github.com/spineldb/spineldb/pkg/resp"
	"github.com/spineldb/spineldb/pkg/scripting"
)

// RegisterScriptCommands registers EVAL/EVALSHA/SCRIPT, wired to
// ctx.Scripting. The Caller bridged into each script is a closure over
// ctx.Exec so redis.call inside Lua re-enters the same dispatch table
// every other command goes through, including its own key-locking.
func RegisterScriptCommands(reg *Registry) {
	reg.Register(&Spec{Name: "EVAL", Arity: -3, LockKeys: scriptLockKeys, Handler: cmdEval, Flags: Flags{Class: ClassWrite}})
	reg.Register(&Spec{Name: "EVALSHA", Arity: -3, LockKeys: scriptLockKeys, Handler: cmdEvalSha, Flags: Flags{Class: ClassWrite}})
	reg.Register(&Spec{Name: "SCRIPT", Arity: -2, LockKeys: NoKeys, Handler: cmdScript, Flags: Flags{Class: ClassAdmin}})
}

// scriptLockKeys reads the numkeys argument (EVAL body numkeys key...
// arg...) the way MSET's key-stride function reads pairs, so the
// executor locks every key a script declares before running it.
func scriptLockKeys(args []string) []string {
	if len(args) < 2 {
		return nil
	}
	keys, _, err := splitKeysArgv(args)
	if err != nil {
		return nil
	}
	return keys
}

func splitKeysArgv(args []string) (keys, argv []string, err error) {
	numkeys := 0
	for _, c := range args[1] {
		if c < '0' || c > '9' {
			return nil, nil, errBadNumKeys
		}
		numkeys = numkeys*10 + int(c-'0')
	}
	if 2+numkeys > len(args) {
		return nil, nil, errBadNumKeys
	}
	return args[2 : 2+numkeys], args[2+numkeys:], nil
}

var errBadNumKeys = scriptError("ERR Number of keys can't be greater than number of args")

type scriptError string

func (e scriptError) Error() string { return string(e) }

func cmdEval(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	if ctx.Scripting == nil {
		return resp.ErrorReply("ERR scripting is not available"), WriteResult{}, nil
	}
	keys, argv, err := splitKeysArgv(args)
	if err != nil {
		return resp.ErrorReply(err.Error()), WriteResult{}, nil
	}
	reply, err := ctx.Scripting.Eval(args[0], keys, argv, scriptCaller(ctx))
	if err != nil {
		return resp.ErrorReply("ERR " + err.Error()), WriteResult{}, nil
	}
	ctx.Scripting.Cache.Load(args[0])
	return reply, WriteResult{}, nil
}

func cmdEvalSha(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	if ctx.Scripting == nil {
		return resp.ErrorReply("ERR scripting is not available"), WriteResult{}, nil
	}
	body, ok := ctx.Scripting.Cache.Get(args[0])
	if !ok {
		return resp.ErrorReply("NOSCRIPT No matching script. Please use EVAL."), WriteResult{}, nil
	}
	keys, argv, err := splitKeysArgv(args)
	if err != nil {
		return resp.ErrorReply(err.Error()), WriteResult{}, nil
	}
	reply, err := ctx.Scripting.Eval(body, keys, argv, scriptCaller(ctx))
	if err != nil {
		return resp.ErrorReply("ERR " + err.Error()), WriteResult{}, nil
	}
	return reply, WriteResult{}, nil
}

func cmdScript(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	if ctx.Scripting == nil {
		return resp.ErrorReply("ERR scripting is not available"), WriteResult{}, nil
	}
	switch strings.ToUpper(args[0]) {
	case "LOAD":
		if len(args) != 2 {
			return resp.ErrorReply("ERR wrong number of arguments for 'script|load' command"), WriteResult{}, nil
		}
		return resp.Bulk(ctx.Scripting.Cache.Load(args[1])), WriteResult{}, nil
	case "EXISTS":
		results := ctx.Scripting.Cache.Exists(args[1:])
		elems := make([]resp.Value, len(results))
		for i, ok := range results {
			elems[i] = resp.Bool(ok)
		}
		return resp.Array(elems...), WriteResult{}, nil
	case "FLUSH":
		ctx.Scripting.Cache.Flush()
		return resp.OK(), WriteResult{}, nil
	default:
		return resp.ErrorReply("ERR unknown SCRIPT subcommand '" + args[0] + "'"), WriteResult{}, nil
	}
}

// scriptCaller bridges scripting.Caller to this package's own Executor,
// re-dispatching through the same command table (and its arity/AllowInSub
// checks) a script's redis.call invokes by name.
func scriptCaller(ctx *Context) scripting.Caller {
	return func(name string, args []string) (resp.Value, error) {
		return ctx.Exec.Execute(ctx, name, args)
	}
}
