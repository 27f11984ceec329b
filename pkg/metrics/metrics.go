package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Connection metrics
	ConnectedClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "spineldb_connected_clients",
			Help: "Number of client connections currently open",
		},
	)

	ConnectionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "spineldb_connections_total",
			Help: "Total number of client connections accepted",
		},
	)

	BlockedClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "spineldb_blocked_clients",
			Help: "Number of clients parked on a blocking command",
		},
	)

	// Command metrics
	CommandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spineldb_commands_total",
			Help: "Total number of commands processed by name and outcome",
		},
		[]string{"command", "outcome"},
	)

	CommandDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "spineldb_command_duration_seconds",
			Help:    "Command execution duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"command"},
	)

	// Keyspace metrics
	KeyspaceHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "spineldb_keyspace_hits_total",
			Help: "Total number of successful key lookups",
		},
	)

	KeyspaceMisses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "spineldb_keyspace_misses_total",
			Help: "Total number of failed key lookups",
		},
	)

	KeysTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "spineldb_keys_total",
			Help: "Number of keys currently stored, by database index",
		},
		[]string{"db"},
	)

	ExpiredKeysTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "spineldb_expired_keys_total",
			Help: "Total number of keys that have expired and been removed",
		},
	)

	EvictedKeysTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "spineldb_evicted_keys_total",
			Help: "Total number of keys evicted due to a maxmemory policy",
		},
	)

	// Pub/sub metrics
	PubSubChannels = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "spineldb_pubsub_channels",
			Help: "Number of active pub/sub channels",
		},
	)

	PubSubMessagesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "spineldb_pubsub_messages_total",
			Help: "Total number of pub/sub messages published",
		},
	)

	// Replication metrics
	ReplicationLagSeconds = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "spineldb_replication_lag_seconds",
			Help: "Replication lag observed for each connected replica",
		},
		[]string{"replica"},
	)

	ReplicaCount = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "spineldb_connected_replicas",
			Help: "Number of replicas currently connected",
		},
	)

	// Persistence metrics
	AOFRewriteDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "spineldb_aof_rewrite_duration_seconds",
			Help:    "Time taken to rewrite the append-only file",
			Buckets: prometheus.DefBuckets,
		},
	)

	SnapshotDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "spineldb_snapshot_duration_seconds",
			Help:    "Time taken to write a point-in-time snapshot",
			Buckets: prometheus.DefBuckets,
		},
	)

	LastSnapshotUnixSeconds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "spineldb_last_snapshot_timestamp_seconds",
			Help: "Unix timestamp of the last successful snapshot",
		},
	)

	// Cluster metrics
	ClusterSlotsAssigned = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "spineldb_cluster_slots_assigned",
			Help: "Number of hash slots owned by this node",
		},
	)

	ClusterKnownNodes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "spineldb_cluster_known_nodes",
			Help: "Number of nodes known to this node's cluster view",
		},
	)

	// Scripting metrics
	ScriptCacheSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "spineldb_script_cache_size",
			Help: "Number of scripts currently cached by SHA-1 digest",
		},
	)

	ScriptEvalDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "spineldb_script_eval_duration_seconds",
			Help:    "Time taken to evaluate a Lua script",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(ConnectedClients)
	prometheus.MustRegister(ConnectionsTotal)
	prometheus.MustRegister(BlockedClients)
	prometheus.MustRegister(CommandsTotal)
	prometheus.MustRegister(CommandDuration)
	prometheus.MustRegister(KeyspaceHits)
	prometheus.MustRegister(KeyspaceMisses)
	prometheus.MustRegister(KeysTotal)
	prometheus.MustRegister(ExpiredKeysTotal)
	prometheus.MustRegister(EvictedKeysTotal)
	prometheus.MustRegister(PubSubChannels)
	prometheus.MustRegister(PubSubMessagesTotal)
	prometheus.MustRegister(ReplicationLagSeconds)
	prometheus.MustRegister(ReplicaCount)
	prometheus.MustRegister(AOFRewriteDuration)
	prometheus.MustRegister(SnapshotDuration)
	prometheus.MustRegister(LastSnapshotUnixSeconds)
	prometheus.MustRegister(ClusterSlotsAssigned)
	prometheus.MustRegister(ClusterKnownNodes)
	prometheus.MustRegister(ScriptCacheSize)
	prometheus.MustRegister(ScriptEvalDuration)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// RecordCommand records a completed command's outcome and latency in one call,
// using the Timer + label pattern; the server's connection loop calls it once
// per command.
func RecordCommand(name string, t *Timer, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	CommandsTotal.WithLabelValues(name, outcome).Inc()
	t.ObserveDurationVec(CommandDuration, name)
}
