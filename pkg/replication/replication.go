// Package replication implements a PSYNC-style master/replica link:
// a bounded backlog of propagated write commands, a FULLRESYNC/CONTINUE
// handshake, and a replica-side client that applies the resulting stream
// to its own keyspace (spec.md §4.10). It stops short of real Redis
// Cluster's partial-resync-across-restarts guarantees — the backlog is
// in-memory only, matching the "stub" scope spec.md's Non-goals leave
// for single-process replication.
package replication

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/spineldb/spineldb/pkg/resp"
)

// Backlog is a bounded ring buffer of propagated command bytes plus the
// cumulative replication offset, the structure PSYNC's CONTINUE path
// checks to decide whether a replica's last-known offset is still
// retained.
type Backlog struct {
	mu     sync.Mutex
	buf    []byte
	size   int
	offset int64
}

// NewBacklog returns a backlog retaining up to size bytes (defaulting to
// 1MiB, config.ReplicationConfig.BacklogSize's default).
func NewBacklog(size int) *Backlog {
	if size <= 0 {
		size = 1 << 20
	}
	return &Backlog{size: size}
}

// Feed encodes args as a RESP multi-bulk command (the same wire form
// pkg/persistence/aof logs), appends it to the ring buffer, and returns
// the encoded bytes for the caller to fan out to connected replicas.
func (b *Backlog) Feed(args []string) []byte {
	var buf bytes.Buffer
	w := resp.NewWriter(&buf, resp.Proto2)
	_ = w.WriteValue(resp.BulkStrings(args))
	data := buf.Bytes()

	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, data...)
	if len(b.buf) > b.size {
		b.buf = b.buf[len(b.buf)-b.size:]
	}
	b.offset += int64(len(data))
	return data
}

// Offset returns the cumulative number of bytes ever fed.
func (b *Backlog) Offset() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.offset
}

// CanContinue reports whether offset still falls inside the retained
// window, the condition PSYNC's partial-resync path requires before
// replying CONTINUE instead of FULLRESYNC.
func (b *Backlog) CanContinue(offset int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return offset >= 0 && offset >= b.offset-int64(len(b.buf)) && offset <= b.offset
}

// Master is the replication-source side of the link: it owns the
// replication ID, the backlog, and the set of connected replica writers
// every committed write is fanned out to.
type Master struct {
	ReplID  string
	Backlog *Backlog

	mu       sync.Mutex
	replicas map[uint64]io.Writer
	nextID   uint64
}

// NewMaster returns a Master with a fresh replication ID and a backlog of
// backlogSize bytes.
func NewMaster(backlogSize int) *Master {
	return &Master{ReplID: uuid.NewString(), Backlog: NewBacklog(backlogSize), replicas: make(map[uint64]io.Writer)}
}

// AddReplica registers w to receive every future Propagate call's bytes,
// returning a handle for RemoveReplica.
func (m *Master) AddReplica(w io.Writer) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.replicas[id] = w
	return id
}

// RemoveReplica unregisters a replica connection, e.g. on disconnect.
func (m *Master) RemoveReplica(id uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.replicas, id)
}

// ReplicaCount reports how many replicas are currently attached.
func (m *Master) ReplicaCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.replicas)
}

// Propagate feeds args to the backlog and writes the encoded command to
// every attached replica. Write errors are swallowed here; the
// connection loop that owns each replica's socket is responsible for
// detecting the broken pipe and calling RemoveReplica.
func (m *Master) Propagate(args []string) {
	data := m.Backlog.Feed(args)
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, w := range m.replicas {
		_, _ = w.Write(data)
	}
}

// HandlePSYNC answers a replica's "PSYNC replid offset" request, the
// handshake spec.md §4.10 names: FULLRESYNC plus this master's replid
// and current offset when the replica is new or too far behind, or
// CONTINUE when its offset is still inside the retained backlog window.
func (m *Master) HandlePSYNC(replID string, offset int64) string {
	if replID == m.ReplID && m.Backlog.CanContinue(offset) {
		return "+CONTINUE\r\n"
	}
	return fmt.Sprintf("+FULLRESYNC %s %d\r\n", m.ReplID, m.Backlog.Offset())
}

// Client is the replica side of the link: it dials a master, performs
// the PSYNC handshake, and streams the resulting commands to Apply.
type Client struct {
	MasterAddr string
	Apply      func(args []string) error

	conn net.Conn
}

// NewClient returns a replica client that will call apply for every
// command the master streams after a successful handshake.
func NewClient(masterAddr string, apply func(args []string) error) *Client {
	return &Client{MasterAddr: masterAddr, Apply: apply}
}

// Connect dials the master, performs the REPLCONF/PSYNC handshake, and
// blocks streaming and applying commands until the connection drops or
// ctx-less Close is called. Run it in its own goroutine.
func (c *Client) Connect() error {
	conn, err := net.Dial("tcp", c.MasterAddr)
	if err != nil {
		return fmt.Errorf("connect to master %s: %w", c.MasterAddr, err)
	}
	c.conn = conn

	w := resp.NewWriter(conn, resp.Proto2)
	r := bufio.NewReader(conn)

	if err := w.WriteValue(resp.BulkStrings([]string{"REPLCONF", "listening-port", "0"})); err != nil {
		return err
	}
	if _, err := r.ReadString('\n'); err != nil {
		return fmt.Errorf("replconf ack: %w", err)
	}

	if err := w.WriteValue(resp.BulkStrings([]string{"PSYNC", "?", "-1"})); err != nil {
		return err
	}
	line, err := r.ReadString('\n')
	if err != nil {
		return fmt.Errorf("psync handshake: %w", err)
	}
	line = strings.TrimSpace(strings.TrimPrefix(line, "+"))
	if !strings.HasPrefix(line, "FULLRESYNC") && line != "CONTINUE" {
		return fmt.Errorf("unexpected psync reply: %q", line)
	}

	reader := resp.NewReader(r)
	for {
		args, err := reader.ReadCommand()
		if err != nil {
			return fmt.Errorf("replication stream: %w", err)
		}
		if len(args) == 0 {
			continue
		}
		if err := c.Apply(args); err != nil {
			return fmt.Errorf("apply replicated command %v: %w", args, err)
		}
	}
}

// Close disconnects from the master.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// ParsePSYNCOffset parses the numeric offset argument of a PSYNC request
// ("-1" for a fresh replica).
func ParsePSYNCOffset(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}
