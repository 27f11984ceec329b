package command

import (
	"github.com/spineldb/spineldb/pkg/resp"
)

// RegisterPubSubCommands installs SUBSCRIBE/UNSUBSCRIBE/PSUBSCRIBE/
// PUNSUBSCRIBE/PUBLISH (spec.md §4.8). SUBSCRIBE/UNSUBSCRIBE mutate
// ctx.Session.Sub directly rather than going through ctx.DB, so they
// carry no lock keys.
func RegisterPubSubCommands(reg *Registry) {
	reg.Register(&Spec{Name: "SUBSCRIBE", Arity: -2, LockKeys: NoKeys, Handler: cmdSubscribe, Flags: Flags{Class: ClassPubSub, AllowInSub: true}})
	reg.Register(&Spec{Name: "UNSUBSCRIBE", Arity: -1, LockKeys: NoKeys, Handler: cmdUnsubscribe, Flags: Flags{Class: ClassPubSub, AllowInSub: true}})
	reg.Register(&Spec{Name: "PSUBSCRIBE", Arity: -2, LockKeys: NoKeys, Handler: cmdPSubscribe, Flags: Flags{Class: ClassPubSub, AllowInSub: true}})
	reg.Register(&Spec{Name: "PUNSUBSCRIBE", Arity: -1, LockKeys: NoKeys, Handler: cmdPUnsubscribe, Flags: Flags{Class: ClassPubSub, AllowInSub: true}})
	reg.Register(&Spec{Name: "PUBLISH", Arity: 3, LockKeys: NoKeys, Handler: cmdPublish, Flags: Flags{Class: ClassPubSub}})
}

func ensureSubscriber(ctx *Context) {
	if ctx.Session.Sub == nil {
		ctx.Session.Sub = ctx.Bus.NewSubscriber()
	}
}

func cmdSubscribe(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	ensureSubscriber(ctx)
	var last resp.Value
	for _, ch := range args {
		n := ctx.Bus.Subscribe(ctx.Session.Sub, ch)
		last = resp.Array(resp.Bulk("subscribe"), resp.Bulk(ch), resp.Int(int64(n)))
	}
	return last, WriteResult{}, nil
}

func cmdUnsubscribe(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	ensureSubscriber(ctx)
	channels := args
	if len(channels) == 0 {
		ctx.Bus.UnsubscribeAll(ctx.Session.Sub)
		return resp.Array(resp.Bulk("unsubscribe"), resp.NullBulk(), resp.Int(0)), WriteResult{}, nil
	}
	var last resp.Value
	for _, ch := range channels {
		n := ctx.Bus.Unsubscribe(ctx.Session.Sub, ch)
		last = resp.Array(resp.Bulk("unsubscribe"), resp.Bulk(ch), resp.Int(int64(n)))
	}
	return last, WriteResult{}, nil
}

func cmdPSubscribe(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	ensureSubscriber(ctx)
	var last resp.Value
	for _, pat := range args {
		n := ctx.Bus.PSubscribe(ctx.Session.Sub, pat)
		last = resp.Array(resp.Bulk("psubscribe"), resp.Bulk(pat), resp.Int(int64(n)))
	}
	return last, WriteResult{}, nil
}

func cmdPUnsubscribe(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	ensureSubscriber(ctx)
	var last resp.Value
	for _, pat := range args {
		n := ctx.Bus.PUnsubscribe(ctx.Session.Sub, pat)
		last = resp.Array(resp.Bulk("punsubscribe"), resp.Bulk(pat), resp.Int(int64(n)))
	}
	return last, WriteResult{}, nil
}

func cmdPublish(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	n := ctx.Bus.Publish(args[0], args[1])
	return resp.Int(int64(n)), WriteResult{}, nil
}
