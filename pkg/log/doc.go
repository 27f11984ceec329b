/*
Package log provides structured logging for SpinelDB using zerolog.

A single global Logger is configured once via Init and accessed from every
package. Component loggers (WithComponent, WithShard, WithSession,
WithNodeID) attach context fields — which shard an expiry sweep is
scanning, which session issued a command, which cluster node a raft
message came from — so log lines stay greppable without string
concatenation.

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})
	shardLog := log.WithShard(0, 3)
	shardLog.Debug().Msg("evicting key under allkeys-lru")
*/
package log
