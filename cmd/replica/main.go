// Command replica runs a single Raft replica node, serving peer RPCs and
// client requests over gRPC and discovering cluster membership via
// memberlist gossip.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jathurchan/raftreplica/clustermembers"
	"github.com/jathurchan/raftreplica/logger"
	"github.com/jathurchan/raftreplica/logstorefile"
	"github.com/jathurchan/raftreplica/logstoremem"
	"github.com/jathurchan/raftreplica/raft"
	"github.com/jathurchan/raftreplica/transportgrpc"
	"github.com/jathurchan/raftreplica/types"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		log.Fatal(err)
	}
}

func newRootCmd() *cobra.Command {
	var (
		nodeID      string
		rpcBind     string
		gossipBind  string
		advertise   string
		seeds       []string
		dataDir     string
		electionMS  int
		heartbeatMS int
	)

	cmd := &cobra.Command{
		Use:   "replica",
		Short: "Run a single Raft replica node",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), runConfig{
				nodeID:      nodeID,
				rpcBind:     rpcBind,
				gossipBind:  gossipBind,
				advertise:   advertise,
				seeds:       seeds,
				dataDir:     dataDir,
				electionMS:  electionMS,
				heartbeatMS: heartbeatMS,
			})
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&nodeID, "id", "", "node id (required)")
	flags.StringVar(&rpcBind, "rpc-bind", ":8080", "address to serve Raft RPCs on")
	flags.StringVar(&gossipBind, "gossip-bind", ":7946", "address to bind membership gossip on")
	flags.StringVar(&advertise, "advertise", "", "gossip address advertised to peers (defaults to gossip-bind)")
	flags.StringSliceVar(&seeds, "seed", nil, "comma-separated seed gossip addresses to join")
	flags.StringVar(&dataDir, "data-dir", "", "directory for the durable log file (empty uses an in-memory log)")
	flags.IntVar(&electionMS, "election-timeout-ms", 300, "base election timeout in milliseconds")
	flags.IntVar(&heartbeatMS, "heartbeat-interval-ms", 50, "leader heartbeat interval in milliseconds")
	_ = cmd.MarkFlagRequired("id")

	return cmd
}

type runConfig struct {
	nodeID      string
	rpcBind     string
	gossipBind  string
	advertise   string
	seeds       []string
	dataDir     string
	electionMS  int
	heartbeatMS int
}

func run(ctx context.Context, cfg runConfig) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cluster, err := clustermembers.New(clustermembers.Options{
		NodeID:    types.NodeID(cfg.nodeID),
		Kind:      types.NodeActive,
		Bind:      cfg.gossipBind,
		Advertise: cfg.advertise,
	})
	if err != nil {
		return err
	}
	if err := cluster.Join(cfg.seeds); err != nil {
		log.Printf("replica: join seeds failed (continuing as a single-node cluster): %v", err)
	}

	transport := transportgrpc.NewClient(func(id types.NodeID) (string, bool) {
		// In this single-binary demo, operators run one replica per machine
		// and pass --rpc-bind explicitly per peer in production; this
		// resolver only covers the local node's own RPC address for a
		// single-node smoke test, and every other peer is unresolved.
		if id == types.NodeID(cfg.nodeID) {
			return cfg.rpcBind, true
		}
		return "", false
	})

	store := logStoreFor(cfg.dataDir, cfg.nodeID)

	opts := raft.DefaultOptions().
		WithElectionTimeout(time.Duration(cfg.electionMS) * time.Millisecond).
		WithHeartbeatInterval(time.Duration(cfg.heartbeatMS) * time.Millisecond)

	replica, err := raft.NewBuilder(types.NodeID(cfg.nodeID)).
		WithOptions(opts).
		WithLogStore(store).
		WithTransport(transport).
		WithCluster(cluster).
		WithCommitHandler(echoCommitHandler).
		WithLogger(logger.NewStdLogger("info")).
		WithMetrics(raft.NewPrometheusMetrics()).
		Build()
	if err != nil {
		return err
	}

	if err := replica.Open(ctx); err != nil {
		return err
	}

	server := transportgrpc.NewServer(cfg.rpcBind, replica)
	if err := server.Start(); err != nil {
		return err
	}
	log.Printf("replica: %s serving RPCs on %s, gossip on %s", cfg.nodeID, cfg.rpcBind, cfg.gossipBind)

	<-ctx.Done()
	log.Printf("replica: %s shutting down", cfg.nodeID)

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Stop(stopCtx)
	_ = cluster.Leave()
	return replica.Close(stopCtx)
}

// echoCommitHandler is a placeholder state machine: it returns the written
// value as its own result, standing in for a real application until one is
// wired via WithCommitHandler by an embedding program.
func echoCommitHandler(key, entry []byte) ([]byte, error) {
	return entry, nil
}

func logStoreFor(dataDir, nodeID string) raft.LogStore {
	if dataDir == "" {
		return logstoremem.New()
	}
	return logstorefile.New(strings.TrimRight(dataDir, "/") + "/" + nodeID + ".log")
}
