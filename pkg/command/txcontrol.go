package command

import (
	"strings"

	"github.com/spineldb/spineldb/pkg/resp"
	"github.com/spineldb/spineldb/pkg/session"
)

// RegisterTxControlCommands installs MULTI/EXEC/DISCARD/WATCH/UNWATCH
// (spec.md §4.3). The heavy lifting — queuing, the dirty flag, and the
// watch set — lives in pkg/session and pkg/txn; these handlers are thin
// glue plus the EXEC replay loop.
func RegisterTxControlCommands(reg *Registry, exec *Executor) {
	reg.Register(&Spec{Name: "MULTI", Arity: 1, LockKeys: NoKeys, Handler: cmdMulti, Flags: Flags{Class: ClassTxControl}})
	reg.Register(&Spec{Name: "DISCARD", Arity: 1, LockKeys: NoKeys, Handler: cmdDiscard, Flags: Flags{Class: ClassTxControl}})
	reg.Register(&Spec{Name: "WATCH", Arity: -2, LockKeys: NoKeys, Handler: cmdWatch, Flags: Flags{Class: ClassTxControl}})
	reg.Register(&Spec{Name: "UNWATCH", Arity: 1, LockKeys: NoKeys, Handler: cmdUnwatch, Flags: Flags{Class: ClassTxControl}})
	reg.Register(&Spec{Name: "EXEC", Arity: 1, LockKeys: NoKeys, Handler: makeCmdExec(exec), Flags: Flags{Class: ClassTxControl}})
}

func cmdMulti(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	ctx.Session.BeginMulti()
	return resp.OK(), WriteResult{}, nil
}

func cmdDiscard(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	ctx.Session.ResetTx()
	ctx.Watch.Unwatch(ctx.Session)
	return resp.OK(), WriteResult{}, nil
}

func cmdWatch(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	for _, key := range args {
		ctx.Session.Watch(ctx.DBIndex, key)
		ctx.Watch.Watch(ctx.Session, ctx.DBIndex, key)
	}
	return resp.OK(), WriteResult{}, nil
}

func cmdUnwatch(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	ctx.Session.Unwatch()
	ctx.Watch.Unwatch(ctx.Session)
	return resp.OK(), WriteResult{}, nil
}

// makeCmdExec closes over the Executor so EXEC can replay the queued
// commands through the same dispatch/lock/commit path as any other
// command, per spec.md §4.3: "EXEC replays the queue through the normal
// executor, aborting the whole transaction if WATCH detected a
// conflicting write."
func makeCmdExec(exec *Executor) HandlerFunc {
	return func(ctx *Context, args []string) (resp.Value, WriteResult, error) {
		s := ctx.Session
		defer func() {
			s.ResetTx()
			ctx.Watch.Unwatch(s)
		}()

		if s.TxState == session.TxDirty {
			return resp.NullArray(), WriteResult{}, nil
		}
		if s.IsDirty() {
			return resp.NullArray(), WriteResult{}, nil
		}

		replies := make([]resp.Value, 0, len(s.Queue))
		for _, q := range s.Queue {
			reply, err := exec.Execute(ctx, q.Name, q.Args)
			if err != nil {
				// A blocking command inside MULTI never blocks (spec.md
				// §4.3): treat a would-block as an immediate nil reply.
				reply = resp.NullBulk()
			}
			replies = append(replies, reply)
		}
		return resp.Array(replies...), WriteResult{}, nil
	}
}

// IsTxControlName reports whether name is one of MULTI/EXEC/DISCARD/
// WATCH/UNWATCH — commands the connection loop must intercept before
// queuing, never enqueuing them into a pending transaction themselves.
func IsTxControlName(name string) bool {
	switch strings.ToUpper(name) {
	case "MULTI", "EXEC", "DISCARD", "WATCH", "UNWATCH":
		return true
	}
	return false
}
