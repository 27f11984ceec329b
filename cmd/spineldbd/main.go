package main

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spineldb/spineldb/pkg/cluster"
	"github.com/spineldb/spineldb/pkg/clusterstore"
	"github.com/spineldb/spineldb/pkg/config"
	"github.com/spineldb/spineldb/pkg/log"
	"github.com/spineldb/spineldb/pkg/metrics"
	"github.com/spineldb/spineldb/pkg/resp"
	"github.com/spineldb/spineldb/pkg/server"
	"github.com/spineldb/spineldb/pkg/storage"
)

var (
	// Version information (set via ldflags during build).
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if v := os.Getenv("SPINELDB_VERSION"); v != "" {
		Version = v
	}
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "spineldbd",
	Short:   "SpinelDB - an in-memory data structure server speaking the Redis wire protocol",
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"spineldbd version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to a YAML configuration file")
	rootCmd.PersistentFlags().Bool("warden", false, "Enable the Warden failover-monitor hook (out of scope: accepted for CLI compatibility, logs a notice and otherwise runs as a normal node)")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(serverCmd)
	rootCmd.AddCommand(clusterCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")
	if envLevel := os.Getenv("SPINELDB_LOG"); envLevel != "" {
		logLevel = envLevel
	}

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

func warnIfWarden(cmd *cobra.Command) {
	if enabled, _ := cmd.Flags().GetBool("warden"); enabled {
		log.Info("warden failover monitoring requested but is out of scope for this build; running without it")
	}
}

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run the SpinelDB server",
	Long: `Run the SpinelDB server, listening for RESP2/RESP3 client
connections and optionally exposing a Prometheus metrics endpoint.`,
	RunE: runServer,
}

func init() {
	serverCmd.Flags().String("bind-addr", "", "Address to bind the client listener to (overrides config)")
	serverCmd.Flags().Int("port", 0, "Port to bind the client listener to (overrides config)")
	serverCmd.Flags().Int("shards", 16, "Number of shards per database")
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, err
	}
	if bindAddr, _ := cmd.Flags().GetString("bind-addr"); bindAddr != "" {
		cfg.BindAddr = bindAddr
	}
	if port, _ := cmd.Flags().GetInt("port"); port != 0 {
		cfg.Port = port
	}
	return cfg, nil
}

func runServer(cmd *cobra.Command, args []string) error {
	warnIfWarden(cmd)
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	shards, _ := cmd.Flags().GetInt("shards")

	if cfg.Metrics.Enabled {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			if err := http.ListenAndServe(cfg.Metrics.Addr, mux); err != nil {
				log.Errorf("metrics server stopped: %v", err)
			}
		}()
	}

	srv, err := server.New(cfg, shards)
	if err != nil {
		return fmt.Errorf("start server: %w", err)
	}

	if cfg.Cluster.Enabled {
		mgr, err := bootstrapCluster(cfg)
		if err != nil {
			return fmt.Errorf("cluster bootstrap: %w", err)
		}
		srv.SetCluster(mgr)
	}

	addr := fmt.Sprintf("%s:%d", cfg.BindAddr, cfg.Port)
	return srv.ListenAndServe(addr)
}

// bootstrapCluster constructs this node's cluster.Manager and starts a
// brand-new single-node cluster; "cluster join" is the path for adding a
// node to an existing one instead.
func bootstrapCluster(cfg config.Config) (*cluster.Manager, error) {
	store, err := storage.NewBoltStore(filepath.Join(cfg.DataDir, "cluster"))
	if err != nil {
		return nil, err
	}
	mgr := cluster.NewManager(cluster.Config{
		NodeID:     nodeIDFor(cfg),
		RaftAddr:   cfg.Cluster.AnnounceAddr,
		ClientAddr: fmt.Sprintf("%s:%d", cfg.BindAddr, cfg.Port),
		DataDir:    cfg.DataDir,
	}, clusterstore.New(store))
	if err := mgr.Bootstrap(); err != nil {
		return nil, err
	}
	return mgr, nil
}

func nodeIDFor(cfg config.Config) string {
	if cfg.Cluster.AnnounceAddr != "" {
		return cfg.Cluster.AnnounceAddr
	}
	return fmt.Sprintf("%s:%d", cfg.BindAddr, cfg.Port)
}

var clusterCmd = &cobra.Command{
	Use:   "cluster",
	Short: "Cluster-mode administration",
}

var clusterInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Bootstrap a brand-new single-node cluster and start serving",
	RunE:  runClusterInit,
}

var clusterJoinCmd = &cobra.Command{
	Use:   "join <leader-admin-addr>",
	Short: "Join an existing cluster via a running node's admin address, then start serving",
	Args:  cobra.ExactArgs(1),
	RunE:  runClusterJoin,
}

var clusterMeetCmd = &cobra.Command{
	Use:   "meet <node-addr>",
	Short: "Ask a locally running node to CLUSTER MEET another node",
	Args:  cobra.ExactArgs(1),
	RunE:  runClusterMeet,
}

func init() {
	clusterCmd.AddCommand(clusterInitCmd)
	clusterCmd.AddCommand(clusterJoinCmd)
	clusterCmd.AddCommand(clusterMeetCmd)

	for _, c := range []*cobra.Command{clusterInitCmd, clusterJoinCmd} {
		c.Flags().String("bind-addr", "", "Address to bind the client listener to (overrides config)")
		c.Flags().Int("port", 0, "Port to bind the client listener to (overrides config)")
		c.Flags().Int("shards", 16, "Number of shards per database")
	}
	clusterMeetCmd.Flags().String("addr", "127.0.0.1:6380", "This node's client address")
}

func runClusterInit(cmd *cobra.Command, args []string) error {
	warnIfWarden(cmd)
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	cfg.Cluster.Enabled = true
	shards, _ := cmd.Flags().GetInt("shards")

	srv, err := server.New(cfg, shards)
	if err != nil {
		return fmt.Errorf("start server: %w", err)
	}
	mgr, err := bootstrapCluster(cfg)
	if err != nil {
		return fmt.Errorf("cluster init: %w", err)
	}
	srv.SetCluster(mgr)
	log.Info("cluster bootstrapped; admin join address: " + mgr.AdminAddr())

	addr := fmt.Sprintf("%s:%d", cfg.BindAddr, cfg.Port)
	return srv.ListenAndServe(addr)
}

func runClusterJoin(cmd *cobra.Command, args []string) error {
	warnIfWarden(cmd)
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	cfg.Cluster.Enabled = true
	shards, _ := cmd.Flags().GetInt("shards")

	srv, err := server.New(cfg, shards)
	if err != nil {
		return fmt.Errorf("start server: %w", err)
	}

	store, err := storage.NewBoltStore(filepath.Join(cfg.DataDir, "cluster"))
	if err != nil {
		return err
	}
	mgr := cluster.NewManager(cluster.Config{
		NodeID:     nodeIDFor(cfg),
		RaftAddr:   cfg.Cluster.AnnounceAddr,
		ClientAddr: fmt.Sprintf("%s:%d", cfg.BindAddr, cfg.Port),
		DataDir:    cfg.DataDir,
	}, clusterstore.New(store))
	if err := mgr.Join(args[0]); err != nil {
		return fmt.Errorf("cluster join: %w", err)
	}
	srv.SetCluster(mgr)

	addr := fmt.Sprintf("%s:%d", cfg.BindAddr, cfg.Port)
	return srv.ListenAndServe(addr)
}

// runClusterMeet is a thin RESP client: it dials a running node's client
// port and issues CLUSTER MEET, rather than re-implementing cluster
// formation out-of-process (the node already owns the live Manager that
// a raw TCP "JOIN" envelope alone can't reach).
func runClusterMeet(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("addr")
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	w := resp.NewWriter(conn, resp.Proto2)
	if err := w.WriteValue(resp.BulkStrings([]string{"CLUSTER", "MEET", args[0]})); err != nil {
		return err
	}
	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		return fmt.Errorf("read reply: %w", err)
	}
	fmt.Print(line)
	return nil
}
