/*
Package metrics defines and registers SpinelDB's Prometheus metrics:
connection/command counters, keyspace hit/miss and size gauges, pub/sub
fan-out, replication lag per replica, persistence (AOF rewrite, snapshot)
durations, cluster slot ownership, and script cache size. Handler exposes
them over HTTP for scraping; Timer/RecordCommand are the per-command
instrumentation helpers the server's connection loop reports each command
through; Collector
runs the periodic sampling (key counts per database) that isn't naturally
updated at the point of a single command.
*/
package metrics
