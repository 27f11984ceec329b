// Package server implements the RESP-speaking TCP front end: Server
// accepts connections the way the teacher's pkg/api.Server accepts gRPC
// connections (Listen, then Serve in a loop, with a Stop for graceful
// shutdown), but speaks RESP2/RESP3 instead of gRPC and dispatches every
// command through pkg/command.Executor rather than a generated service
// stub.
package server

import (
	"fmt"
	"net"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spineldb/spineldb/pkg/acl"
	"github.com/spineldb/spineldb/pkg/blocking"
	"github.com/spineldb/spineldb/pkg/cluster"
	"github.com/spineldb/spineldb/pkg/clusterstore"
	"github.com/spineldb/spineldb/pkg/command"
	"github.com/spineldb/spineldb/pkg/config"
	"github.com/spineldb/spineldb/pkg/keyspace"
	"github.com/spineldb/spineldb/pkg/log"
	"github.com/spineldb/spineldb/pkg/metrics"
	"github.com/spineldb/spineldb/pkg/notify"
	"github.com/spineldb/spineldb/pkg/persistence/aof"
	"github.com/spineldb/spineldb/pkg/persistence/snapshot"
	"github.com/spineldb/spineldb/pkg/pubsub"
	"github.com/spineldb/spineldb/pkg/replication"
	"github.com/spineldb/spineldb/pkg/resp"
	"github.com/spineldb/spineldb/pkg/scripting"
	"github.com/spineldb/spineldb/pkg/session"
	"github.com/spineldb/spineldb/pkg/storage"
	"github.com/spineldb/spineldb/pkg/txn"
)

// defaultBlockDeadline bounds a blocking command's wait when the client
// requested timeout 0 ("block forever"); the connection is still polled
// periodically so a killed session or closed listener unparks promptly.
const defaultBlockDeadline = 100 * time.Millisecond

// Server owns the listener and the shared state every connection's
// executor Context points back into: the per-database keyspace, the
// pub/sub bus, the watch registry, the blocking-waiter coordinator, and
// the admin/cluster/ACL/scripting collaborators SPEC_FULL.md's command
// surface needs.
type Server struct {
	Databases []*keyspace.Database
	Bus       *pubsub.Bus
	Watch     *txn.Registry
	Block     *blocking.Coordinator
	Notify    *notify.Publisher
	Registry  *command.Registry
	Executor  *command.Executor
	Sessions  *session.Registry

	Store      storage.Store
	ACL        *acl.Table
	Cluster    *cluster.Manager
	Scripting  *scripting.Runtime
	Config     *command.RuntimeConfig
	AOF        *aof.Writer
	Repl       *replication.Master

	ln     net.Listener
	closed chan struct{}
}

// New wires a fresh Server from cfg: databases, the full command table
// via command.RegisterAll, durable storage (pkg/storage.BoltStore),
// ACL/scripting/cluster-store collaborators, and — when persistence is
// enabled — replays the AOF and restores the last snapshot before
// returning, so a restarted process comes back with its prior dataset.
func New(cfg config.Config, shardCount int) (*Server, error) {
	dbs := make([]*keyspace.Database, cfg.Databases)
	for i := range dbs {
		dbs[i] = keyspace.NewDatabase(i, shardCount)
	}
	bus := pubsub.NewBus()

	store, err := storage.NewBoltStore(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	cstore := clusterstore.New(store)

	s := &Server{
		Databases: dbs,
		Bus:       bus,
		Watch:     txn.NewRegistry(),
		Block:     blocking.NewCoordinator(),
		Notify:    notify.NewPublisher(bus),
		Sessions:  session.NewRegistry(),
		Store:     store,
		ACL:       acl.NewTable(cstore),
		Scripting: scripting.NewRuntime(scripting.NewCache()),
		Config:    command.NewRuntimeConfig(runtimeConfigFrom(cfg)),
		Repl:      replication.NewMaster(cfg.Replication.BacklogSize),
		closed:    make(chan struct{}),
	}

	reg, exec := command.RegisterAll()
	s.Registry = reg
	s.Executor = exec
	exec.OnCommit = s.onCommit

	if cfg.Persistence.SnapshotEnabled {
		if snaps, err := store.LoadSnapshot(); err == nil && len(snaps) > 0 {
			if err := snapshot.Restore(s.Databases, snaps); err != nil {
				log.Errorf("restore snapshot: %v", err)
			}
		}
	}
	if cfg.Persistence.AOFEnabled {
		aofPath := filepath.Join(cfg.DataDir, "appendonly.aof")
		w, err := aof.Open(aofPath, aof.ParseFsyncPolicy(cfg.Persistence.AOFFsync))
		if err != nil {
			return nil, fmt.Errorf("open aof: %w", err)
		}
		s.AOF = w
		if err := s.replayAOF(aofPath); err != nil {
			log.Errorf("replay aof: %v", err)
		}
	}

	return s, nil
}

func runtimeConfigFrom(cfg config.Config) map[string]string {
	return map[string]string{
		"maxmemory":        strconv.FormatInt(cfg.MaxMemory.Bytes, 10),
		"maxmemory-policy": cfg.MaxMemory.Policy,
		"appendonly":       strconv.FormatBool(cfg.Persistence.AOFEnabled),
		"appendfsync":      cfg.Persistence.AOFFsync,
		"databases":        strconv.Itoa(cfg.Databases),
	}
}

// replayAOF re-executes every logged command against a fresh Context,
// tracking SELECT the way a real AOF interleaves multi-database writes.
func (s *Server) replayAOF(path string) error {
	dbIndex := 0
	return aof.Replay(path, func(args []string) error {
		if len(args) == 0 {
			return nil
		}
		name := strings.ToUpper(args[0])
		rest := args[1:]
		if name == "SELECT" && len(rest) == 1 {
			idx, err := strconv.Atoi(rest[0])
			if err == nil && idx >= 0 && idx < len(s.Databases) {
				dbIndex = idx
			}
			return nil
		}
		ctx := &command.Context{
			DB:        s.Databases[dbIndex],
			DBIndex:   dbIndex,
			Databases: s.Databases,
			Watch:     s.Watch,
			Block:     s.Block,
			Notify:    s.Notify,
			Bus:       s.Bus,
			Exec:      s.Executor,
		}
		_, err := s.Executor.Execute(ctx, name, rest)
		return err
	})
}

// onCommit is command.Executor's OnCommit hook: it appends the
// canonical command to the AOF and fans it out to connected replicas,
// the two durability/propagation concerns spec.md §4.9/§4.10 name.
func (s *Server) onCommit(ctx *command.Context, aofArgs []string) {
	if s.AOF != nil {
		if err := s.AOF.Append(aofArgs); err != nil {
			log.Errorf("aof append: %v", err)
		}
	}
	if s.Repl != nil {
		s.Repl.Propagate(aofArgs)
	}
}

// SetCluster attaches a running cluster.Manager to the server, the hook
// cmd/spineldbd's "cluster init"/"cluster join" subcommands use after
// bootstrapping Raft, since cluster formation happens before the client
// listener starts accepting connections.
func (s *Server) SetCluster(m *cluster.Manager) { s.Cluster = m }

// ListenAndServe binds addr and accepts connections until Stop is called,
// mirroring the teacher's Start(addr)/Stop() lifecycle on pkg/api.Server.
func (s *Server) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	s.ln = ln
	log.Info("spineldb listening on " + addr)

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-s.closed:
				return nil
			default:
				return fmt.Errorf("accept: %w", err)
			}
		}
		metrics.ConnectionsTotal.Inc()
		metrics.ConnectedClients.Inc()
		go s.serveConn(conn)
	}
}

// Stop closes the listener and the durability writers, unblocking
// ListenAndServe's Accept loop. It is also the SHUTDOWN command's
// handler, wired via Context.Shutdown.
func (s *Server) Stop() error {
	if s.AOF != nil {
		_ = s.AOF.Close()
	}
	if s.Store != nil {
		_ = s.Store.Close()
	}
	if s.ln == nil {
		return nil
	}
	close(s.closed)
	return s.ln.Close()
}

func (s *Server) serveConn(conn net.Conn) {
	defer conn.Close()
	defer metrics.ConnectedClients.Dec()

	sess := session.New(conn)
	sess.Sub = s.Bus.NewSubscriber()
	s.Sessions.Add(sess)
	defer s.Sessions.Remove(sess)
	defer s.Bus.UnsubscribeAll(sess.Sub)
	defer s.Watch.Unwatch(sess)

	reader := resp.NewReader(conn)
	writer := resp.NewWriter(conn, resp.Proto2)

	for {
		args, err := reader.ReadCommand()
		if err != nil {
			return
		}
		if len(args) == 0 {
			continue
		}
		name := args[0]
		args = args[1:]

		writer.SetProtocol(sess.Protocol())
		ctx := &command.Context{
			DB:        s.Databases[sess.DB()],
			DBIndex:   sess.DB(),
			Session:   sess,
			Bus:       s.Bus,
			Watch:     s.Watch,
			Block:     s.Block,
			Notify:    s.Notify,
			Databases: s.Databases,
			Exec:      s.Executor,
			Sessions:  s.Sessions,
			ACL:       s.ACL,
			Cluster:   s.Cluster,
			Scripting: s.Scripting,
			Config:    s.Config,
			Store:     s.Store,
			Shutdown:  func() { _ = s.Stop() },
		}

		if (sess.TxState == session.TxQueuing || sess.TxState == session.TxDirty) && !command.IsTxControlName(name) {
			sess.Enqueue(session.QueuedCommand{Name: name, Args: args})
			if err := writer.WriteValue(resp.Simple("QUEUED")); err != nil {
				return
			}
			continue
		}

		sess.TouchCommand(name)
		timer := metrics.NewTimer()
		reply := s.executeWithBlocking(ctx, name, args)
		metrics.RecordCommand(name, timer, nil)
		if err := writer.WriteValue(reply); err != nil {
			return
		}
		if sess.Killed() {
			return
		}
	}
}

// executeWithBlocking runs name/args, and if the handler reports it would
// block, parks on s.Block for the command's keys and retries on signal or
// timeout, per spec.md §4.6. This is the one seam command.Executor.Execute
// documents as the connection loop's responsibility.
func (s *Server) executeWithBlocking(ctx *command.Context, name string, args []string) resp.Value {
	total, forever := blockDeadlineFor(name, args)
	start := time.Now()

	for {
		reply, err := s.Executor.Execute(ctx, name, args)
		if err == nil {
			return reply
		}
		if !command.IsWouldBlock(err) {
			return resp.ErrorReply("ERR " + err.Error())
		}
		if ctx.Session.Killed() {
			return resp.NullArray()
		}

		wait := defaultBlockDeadline
		if !forever {
			remaining := total - time.Since(start)
			if remaining <= 0 {
				return resp.NullArray()
			}
			if remaining < wait {
				wait = remaining
			}
		}

		keys := s.Registry.LockKeysFor(name, args)
		metrics.BlockedClients.Inc()
		waiter := s.Block.Register(ctx.DBIndex, keys, wait)
		<-waiter.Chan()
		metrics.BlockedClients.Dec()
		s.Block.Cancel(waiter)
	}
}

// blockDeadlineFor extracts a blocking command's client-requested timeout
// (its trailing argument, in seconds, Redis convention). A timeout of 0
// means block without a deadline; the server still polls in
// defaultBlockDeadline increments so a killed session unparks promptly.
func blockDeadlineFor(name string, args []string) (total time.Duration, forever bool) {
	if len(args) == 0 {
		return 0, true
	}
	secs, err := strconv.ParseFloat(args[len(args)-1], 64)
	if err != nil || secs <= 0 {
		return 0, true
	}
	return time.Duration(secs * float64(time.Second)), false
}
