package command

import (
	"errors"
	"strconv"
	"strings"

	"github.com/spineldb/spineldb/pkg/cluster"
	"github.com/spineldb/spineldb/pkg/resp"
)

// RegisterClusterCommands registers the CLUSTER family, wired to
// ctx.Cluster. Every subcommand replies with an error when the server
// isn't running in cluster mode (ctx.Cluster == nil), the same stance
// real Redis takes on a standalone instance.
func RegisterClusterCommands(reg *Registry) {
	reg.Register(&Spec{Name: "CLUSTER", Arity: -2, LockKeys: NoKeys, Handler: cmdCluster, Flags: Flags{Class: ClassAdmin}})
}

func cmdCluster(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	sub := strings.ToUpper(args[0])
	if sub == "INFO" || sub == "MYID" || sub == "NODES" || sub == "SLOTS" {
		// Answerable even with no Cluster manager (reports disabled state).
	} else if ctx.Cluster == nil {
		return resp.ErrorReply("ERR This instance has cluster support disabled"), WriteResult{}, nil
	}

	switch sub {
	case "INFO":
		enabled := 0
		if ctx.Cluster != nil {
			enabled = 1
		}
		return resp.Bulk("cluster_enabled:" + strconv.Itoa(enabled) + "\r\ncluster_state:ok\r\n"), WriteResult{}, nil
	case "MYID":
		if ctx.Cluster == nil {
			return resp.Bulk(""), WriteResult{}, nil
		}
		return resp.Bulk(ctx.Cluster.NodeID()), WriteResult{}, nil
	case "NODES":
		return resp.Bulk(clusterNodesLine(ctx.Cluster)), WriteResult{}, nil
	case "SLOTS":
		return clusterSlotsReply(ctx.Cluster), WriteResult{}, nil
	case "ADDSLOTS":
		slots, err := parseSlotArgs(args[1:])
		if err != nil {
			return resp.ErrorReply(err.Error()), WriteResult{}, nil
		}
		if err := ctx.Cluster.AddSlots(ctx.Cluster.NodeID(), slots); err != nil {
			return resp.ErrorReply("ERR " + err.Error()), WriteResult{}, nil
		}
		return resp.OK(), WriteResult{}, nil
	case "DELSLOTS":
		slots, err := parseSlotArgs(args[1:])
		if err != nil {
			return resp.ErrorReply(err.Error()), WriteResult{}, nil
		}
		if err := ctx.Cluster.DelSlots(slots); err != nil {
			return resp.ErrorReply("ERR " + err.Error()), WriteResult{}, nil
		}
		return resp.OK(), WriteResult{}, nil
	case "SETSLOT":
		return cmdClusterSetSlot(ctx, args[1:])
	case "GETKEYSINSLOT":
		if len(args) != 3 {
			return resp.ErrorReply("ERR wrong number of arguments for 'cluster|getkeysinslot' command"), WriteResult{}, nil
		}
		slot, err := strconv.Atoi(args[1])
		if err != nil {
			return resp.ErrorReply("ERR invalid slot"), WriteResult{}, nil
		}
		count, err := strconv.Atoi(args[2])
		if err != nil {
			return resp.ErrorReply("ERR invalid count"), WriteResult{}, nil
		}
		var keys []string
		for _, sh := range ctx.DB.AllShards() {
			keys = append(keys, sh.Keys()...)
		}
		return resp.BulkStrings(cluster.KeysInSlot(keys, slot, count)), WriteResult{}, nil
	case "MEET":
		if len(args) != 2 {
			return resp.ErrorReply("ERR wrong number of arguments for 'cluster|meet' command"), WriteResult{}, nil
		}
		if err := ctx.Cluster.Join(args[1]); err != nil {
			return resp.ErrorReply("ERR " + err.Error()), WriteResult{}, nil
		}
		return resp.OK(), WriteResult{}, nil
	case "FORGET":
		if len(args) != 2 {
			return resp.ErrorReply("ERR wrong number of arguments for 'cluster|forget' command"), WriteResult{}, nil
		}
		if err := ctx.Cluster.ForgetNode(args[1]); err != nil {
			return resp.ErrorReply("ERR " + err.Error()), WriteResult{}, nil
		}
		return resp.OK(), WriteResult{}, nil
	default:
		return resp.ErrorReply("ERR unknown CLUSTER subcommand '" + args[0] + "'"), WriteResult{}, nil
	}
}

func clusterNodesLine(m *cluster.Manager) string {
	if m == nil {
		return ""
	}
	var b strings.Builder
	snap := m.Table().Clone()
	for id, n := range snap.Nodes {
		role := "master"
		b.WriteString(id + " " + n.Addr + " " + role + " - 0 0 0 connected\n")
	}
	return b.String()
}

func clusterSlotsReply(m *cluster.Manager) resp.Value {
	if m == nil {
		return resp.Array()
	}
	snap := m.Table().Clone()
	ranges := map[string][2]int{}
	start := -1
	var owner string
	for slot := 0; slot <= cluster.SlotCount; slot++ {
		o := ""
		if slot < cluster.SlotCount {
			o = snap.SlotOwner[slot]
		}
		if o == owner && o != "" {
			continue
		}
		if owner != "" {
			ranges[owner] = [2]int{start, slot - 1}
		}
		start, owner = slot, o
	}
	var elems []resp.Value
	for ownerID, r := range ranges {
		addr := snap.Nodes[ownerID]
		host, port := "", 0
		if addr != nil {
			host, port = splitAddr(addr.Addr)
		}
		elems = append(elems, resp.Array(
			resp.Int(int64(r[0])), resp.Int(int64(r[1])),
			resp.Array(resp.Bulk(host), resp.Int(int64(port)), resp.Bulk(ownerID)),
		))
	}
	return resp.Array(elems...)
}

func splitAddr(addr string) (string, int) {
	i := strings.LastIndex(addr, ":")
	if i < 0 {
		return addr, 0
	}
	port, _ := strconv.Atoi(addr[i+1:])
	return addr[:i], port
}

func cmdClusterSetSlot(ctx *Context, args []string) (resp.Value, WriteResult, error) {
	if len(args) < 2 {
		return resp.ErrorReply("ERR wrong number of arguments for 'cluster|setslot' command"), WriteResult{}, nil
	}
	slot, err := strconv.Atoi(args[0])
	if err != nil {
		return resp.ErrorReply("ERR invalid slot"), WriteResult{}, nil
	}
	switch strings.ToUpper(args[1]) {
	case "MIGRATING":
		if len(args) != 3 {
			return resp.ErrorReply("ERR wrong number of arguments"), WriteResult{}, nil
		}
		if err := ctx.Cluster.SetSlot(slot, ctx.Cluster.Table().Owner(slot), args[2], ""); err != nil {
			return resp.ErrorReply("ERR " + err.Error()), WriteResult{}, nil
		}
	case "IMPORTING":
		if len(args) != 3 {
			return resp.ErrorReply("ERR wrong number of arguments"), WriteResult{}, nil
		}
		if err := ctx.Cluster.SetSlot(slot, ctx.Cluster.Table().Owner(slot), "", args[2]); err != nil {
			return resp.ErrorReply("ERR " + err.Error()), WriteResult{}, nil
		}
	case "NODE":
		if len(args) != 3 {
			return resp.ErrorReply("ERR wrong number of arguments"), WriteResult{}, nil
		}
		if err := ctx.Cluster.SetSlot(slot, args[2], "", ""); err != nil {
			return resp.ErrorReply("ERR " + err.Error()), WriteResult{}, nil
		}
	case "STABLE":
		if err := ctx.Cluster.SetSlot(slot, ctx.Cluster.Table().Owner(slot), "", ""); err != nil {
			return resp.ErrorReply("ERR " + err.Error()), WriteResult{}, nil
		}
	default:
		return resp.ErrorReply("ERR unknown CLUSTER SETSLOT mode '" + args[1] + "'"), WriteResult{}, nil
	}
	return resp.OK(), WriteResult{}, nil
}

func parseSlotArgs(args []string) ([]int, error) {
	if len(args) == 0 {
		return nil, errors.New("ERR wrong number of arguments")
	}
	slots := make([]int, 0, len(args))
	for _, a := range args {
		n, err := strconv.Atoi(a)
		if err != nil || n < 0 || n >= cluster.SlotCount {
			return nil, errors.New("ERR invalid slot " + a)
		}
		slots = append(slots, n)
	}
	return slots, nil
}
