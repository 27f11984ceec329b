package command

import "errors"

// errWouldBlock is the sentinel a blocking-family handler (BLPOP,
// BRPOP) returns when it found nothing to satisfy the
// call immediately. The connection loop (pkg/server) recognizes this
// error, registers a blocking.Waiter for the command's keys, and retries
// the same handler once signaled or on timeout, per spec.md §4.6.
var errWouldBlock = errors.New("command: would block")

// IsWouldBlock reports whether err is the would-block sentinel.
func IsWouldBlock(err error) bool { return errors.Is(err, errWouldBlock) }
