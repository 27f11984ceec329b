/*
Package events provides an in-memory, best-effort broker for SpinelDB's
internal server lifecycle events (replica connect/disconnect, failover,
cluster membership changes, AOF rewrite, snapshot completion). Subscribers
each get a buffered channel and a slow subscriber is skipped rather than
blocking publishers; this is for admin/observability consumers, not a
substitute for pkg/notify's client-facing keyspace notifications or
pkg/pubsub's channel/pattern PUBLISH.
*/
package events
