// Package aof implements append-only-file durability: every write command
// that committed is appended to a log in RESP multi-bulk wire form (the
// same framing pkg/resp already parses off the client socket), and the
// log can be replayed end-to-end to rebuild a database's state after a
// restart (spec.md §4.9). This is the write-ahead counterpart to
// pkg/persistence/snapshot's point-in-time dump.
package aof

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/spineldb/spineldb/pkg/resp"
)

// FsyncPolicy controls how aggressively Append forces the log to disk,
// matching the three policies spec.md §4.9 names.
type FsyncPolicy int

const (
	FsyncAlways   FsyncPolicy = iota // fsync after every append
	FsyncEverySec                    // fsync on a 1s background ticker
	FsyncNo                          // leave fsyncing to the OS
)

// ParseFsyncPolicy maps a config string (config.PersistenceConfig.AOFFsync)
// to a FsyncPolicy, defaulting to FsyncEverySec for anything unrecognized.
func ParseFsyncPolicy(s string) FsyncPolicy {
	switch s {
	case "always":
		return FsyncAlways
	case "no":
		return FsyncNo
	default:
		return FsyncEverySec
	}
}

// Writer appends committed write commands to a log file, one RESP
// multi-bulk array per command, with a policy-driven fsync cadence.
type Writer struct {
	mu     sync.Mutex
	file   *os.File
	w      *resp.Writer
	policy FsyncPolicy
	dirty  bool
	stopCh chan struct{}
}

// Open opens (creating if absent) the AOF file at path for appending.
func Open(path string, policy FsyncPolicy) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open aof %s: %w", path, err)
	}
	wr := &Writer{
		file:   f,
		w:      resp.NewWriter(f, resp.Proto2),
		policy: policy,
		stopCh: make(chan struct{}),
	}
	if policy == FsyncEverySec {
		go wr.fsyncLoop()
	}
	return wr, nil
}

// Append writes one command (name followed by its arguments) to the log.
func (wr *Writer) Append(args []string) error {
	wr.mu.Lock()
	defer wr.mu.Unlock()

	if err := wr.w.WriteValue(resp.BulkStrings(args)); err != nil {
		return fmt.Errorf("aof append: %w", err)
	}
	if wr.policy == FsyncAlways {
		return wr.file.Sync()
	}
	wr.dirty = true
	return nil
}

func (wr *Writer) fsyncLoop() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-wr.stopCh:
			return
		case <-ticker.C:
			wr.mu.Lock()
			if wr.dirty {
				_ = wr.file.Sync()
				wr.dirty = false
			}
			wr.mu.Unlock()
		}
	}
}

// Close stops the fsync goroutine (if any), flushes, and closes the file.
func (wr *Writer) Close() error {
	select {
	case <-wr.stopCh:
	default:
		close(wr.stopCh)
	}
	wr.mu.Lock()
	defer wr.mu.Unlock()
	if err := wr.file.Sync(); err != nil {
		wr.file.Close()
		return err
	}
	return wr.file.Close()
}

// Replay reads every command logged at path in order and invokes apply
// for each. It is the restart-time counterpart to Writer.Append, run
// once against a snapshot-restored database before the server starts
// accepting connections.
func Replay(path string, apply func(args []string) error) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open aof %s: %w", path, err)
	}
	defer f.Close()

	r := resp.NewReader(f)
	for {
		args, err := r.ReadCommand()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("replay aof %s: %w", path, err)
		}
		if len(args) == 0 {
			continue
		}
		if err := apply(args); err != nil {
			return fmt.Errorf("replay aof %s: apply %v: %w", path, args, err)
		}
	}
}
