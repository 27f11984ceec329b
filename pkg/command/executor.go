package command

import (
	"github.com/spineldb/spineldb/pkg/rerror"
	"github.com/spineldb/spineldb/pkg/resp"
)

// Executor resolves a parsed command to its handler, computes the lock
// set, acquires shard locks in the deadlock-avoiding order (ascending
// shard index, then ascending key bytes within a shard), runs the
// handler, and funnels a successful write into AOF/replication/
// notification/watch-invalidation (spec.md §4.2).
type Executor struct {
	Registry *Registry
	// OnCommit is invoked for every successful write, after locks are
	// released and after the watch registry and keyspace notifications
	// have been told, with the canonical AOF command; the caller wires
	// this to the AOF writer and replication backlog.
	OnCommit func(ctx *Context, aofArgs []string)
}

func NewExecutor(reg *Registry) *Executor {
	return &Executor{Registry: reg}
}

// Execute runs one command against ctx. name is case-insensitive; args
// excludes the command name itself.
//
// When a blocking-family handler (BLPOP, BRPOP) has
// nothing to satisfy the call immediately, Execute returns a zero Value
// and an error satisfying IsWouldBlock; the caller (pkg/server's
// connection loop) is responsible for parking on a blocking.Waiter for
// the command's keys and calling Execute again once signaled or timed
// out. Every other error is already rendered into a RESP error Value,
// and the returned error is nil.
func (e *Executor) Execute(ctx *Context, name string, args []string) (resp.Value, error) {
	spec, ok := e.Registry.Lookup(name)
	if !ok {
		return resp.ErrorReply("ERR unknown command '" + name + "'"), nil
	}
	if ctx.Session != nil && ctx.Session.Sub != nil && !spec.Flags.AllowInSub {
		return resp.ErrorReply("ERR Can't execute '" + name + "': only (P|S)SUBSCRIBE / (P|S)UNSUBSCRIBE / PING / QUIT / RESET are allowed in this context"), nil
	}
	if err := e.Registry.CheckArity(spec, args); err != nil {
		return errReply(err), nil
	}

	keys := spec.LockKeys(args)
	if ctx.Cluster != nil && len(keys) > 0 {
		if rerr := ctx.Cluster.Table().Redirect(ctx.Cluster.NodeID(), keys[0]); rerr != nil {
			return errReply(rerr), nil
		}
	}

	shards := ctx.DB.ShardsFor(keys)
	for _, sh := range shards {
		sh.Lock()
	}
	reply, result, err := func() (resp.Value, WriteResult, error) {
		defer func() {
			for i := len(shards) - 1; i >= 0; i-- {
				shards[i].Unlock()
			}
		}()
		return spec.Handler(ctx, args)
	}()
	if err != nil {
		if IsWouldBlock(err) {
			return resp.Value{}, err
		}
		return errReply(err), nil
	}

	if result.Wrote {
		e.commit(ctx, spec, args, result)
	}
	return reply, nil
}

func (e *Executor) commit(ctx *Context, spec *Spec, args []string, result WriteResult) {
	for _, k := range result.Keys {
		ctx.Watch.NotifyWrite(ctx.DBIndex, k)
		if result.Event != "" && ctx.Notify != nil {
			ctx.Notify.Publish(result.Class, ctx.DBIndex, k, result.Event)
		}
	}
	if e.OnCommit == nil {
		return
	}
	aofArgs := result.AOFArgs
	if aofArgs == nil {
		aofArgs = append([]string{spec.Name}, args...)
	}
	e.OnCommit(ctx, aofArgs)
}

func errReply(err error) resp.Value {
	if rerr, ok := err.(*rerror.Error); ok {
		return resp.ErrorReply(rerr.Error())
	}
	return resp.ErrorReply("ERR " + err.Error())
}
