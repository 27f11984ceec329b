package command

import (
	"strings"

	"github.com/spineldb/spineldb/pkg/resp"
)

// RegisterACLCommands registers the ACL family, wired to ctx.ACL.
func RegisterACLCommands(reg *Registry) {
	reg.Register(&Spec{Name: "ACL", Arity: -2, LockKeys: NoKeys, Handler: cmdACL, Flags: Flags{Class: ClassAdmin}})
}

func cmdACL(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	if ctx.ACL == nil {
		return resp.ErrorReply("ERR ACL is not configured"), WriteResult{}, nil
	}
	switch strings.ToUpper(args[0]) {
	case "WHOAMI":
		user, ok := ctx.Session.AuthUser()
		if !ok || user == "" {
			user = "default"
		}
		return resp.Bulk(user), WriteResult{}, nil
	case "LIST":
		var elems []resp.Value
		for _, line := range ctx.ACL.List() {
			elems = append(elems, resp.Bulk(line))
		}
		return resp.Array(elems...), WriteResult{}, nil
	case "GETUSER":
		if len(args) != 2 {
			return resp.ErrorReply("ERR wrong number of arguments for 'acl|getuser' command"), WriteResult{}, nil
		}
		u, ok := ctx.ACL.GetUser(args[1])
		if !ok {
			return resp.NullArray(), WriteResult{}, nil
		}
		return resp.Bulk(u.Describe()), WriteResult{}, nil
	case "SETUSER":
		if len(args) < 2 {
			return resp.ErrorReply("ERR wrong number of arguments for 'acl|setuser' command"), WriteResult{}, nil
		}
		if err := ctx.ACL.SetUser(args[1], args[2:]); err != nil {
			return resp.ErrorReply("ERR " + err.Error()), WriteResult{}, nil
		}
		return resp.OK(), WriteResult{}, nil
	case "DELUSER":
		if len(args) < 2 {
			return resp.ErrorReply("ERR wrong number of arguments for 'acl|deluser' command"), WriteResult{}, nil
		}
		var n int64
		for _, name := range args[1:] {
			if ctx.ACL.DeleteUser(name) {
				n++
			}
		}
		return resp.Int(n), WriteResult{}, nil
	case "SAVE":
		if err := ctx.ACL.Save(); err != nil {
			return resp.ErrorReply("ERR " + err.Error()), WriteResult{}, nil
		}
		return resp.OK(), WriteResult{}, nil
	case "CAT":
		return resp.Array(), WriteResult{}, nil
	default:
		return resp.ErrorReply("ERR unknown ACL subcommand '" + args[0] + "'"), WriteResult{}, nil
	}
}
