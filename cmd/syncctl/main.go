// Command syncctl is the operator-facing entrypoint for one convergence
// node: it runs the peer-facing sync server, drives one-shot syncs
// against a peer, and lets an operator record or inspect rows directly
// against the local store.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/tidalsync/core/pkg/apply"
	"github.com/tidalsync/core/pkg/audit"
	"github.com/tidalsync/core/pkg/config"
	"github.com/tidalsync/core/pkg/convergence"
	"github.com/tidalsync/core/pkg/errs"
	"github.com/tidalsync/core/pkg/idgen"
	"github.com/tidalsync/core/pkg/observability"
	"github.com/tidalsync/core/pkg/oplog"
	"github.com/tidalsync/core/pkg/retry"
	"github.com/tidalsync/core/pkg/rowstore"
	"github.com/tidalsync/core/pkg/store/postgres"
	"github.com/tidalsync/core/pkg/store/sqlite"
	"github.com/tidalsync/core/pkg/transport/httptransport"
)

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run is the entrypoint for testing: it dispatches on args[1] the way a
// real process would, without touching package-level state.
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		printUsage(stdout)
		return 2
	}

	switch args[1] {
	case "serve":
		return runServeCmd(args[2:], stdout, stderr)
	case "sync":
		return runSyncCmd(args[2:], stdout, stderr)
	case "record":
		return runRecordCmd(args[2:], stdout, stderr)
	case "get":
		return runGetCmd(args[2:], stdout, stderr)
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", args[1])
		printUsage(stderr)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "syncctl - LWW convergence node")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "USAGE:")
	fmt.Fprintln(w, "  syncctl <command> [flags]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "COMMANDS:")
	fmt.Fprintln(w, "  serve    Run the peer-facing sync HTTP server")
	fmt.Fprintln(w, "  sync     Run one sync round against a peer")
	fmt.Fprintln(w, "  record   Apply one local field mutation")
	fmt.Fprintln(w, "  get      Print a row's current fields")
	fmt.Fprintln(w, "  help     Show this help")
}

// nodeStores bundles the op-log and row store an Engine runs over, plus
// whatever needs closing at process exit.
type nodeStores struct {
	OpLog   oplog.Store
	RowView rowstore.Store
	Closer  io.Closer
}

func openStores(ctx context.Context, cfg *config.Config) (*nodeStores, error) {
	switch cfg.StoreBackend {
	case "", "memory":
		return &nodeStores{OpLog: oplog.NewMemStore(), RowView: rowstore.NewMemStore()}, nil
	case "sqlite":
		s, err := sqlite.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return &nodeStores{OpLog: s.OpLog, RowView: s.RowView, Closer: s}, nil
	case "postgres":
		s, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return &nodeStores{OpLog: s.OpLog, RowView: s.RowView, Closer: s}, nil
	default:
		return nil, errs.New(errs.Format, "syncctl.open_stores", "unknown STORE_BACKEND: "+cfg.StoreBackend)
	}
}

func buildEngine(ctx context.Context, cfg *config.Config, auditSink io.Writer) (*convergence.Engine, io.Closer, error) {
	if cfg.NodeID == "" {
		nodeID, err := idgen.NewNodeID()
		if err != nil {
			return nil, nil, err
		}
		cfg.NodeID = nodeID
	}
	if cfg.GroupID == "" {
		cfg.GroupID = idgen.NewGroupID()
	}

	stores, err := openStores(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	applyEngine := apply.New(stores.OpLog, stores.RowView)
	engine := convergence.New(cfg.NodeID, cfg.GroupID, applyEngine)
	engine.Audit = audit.NewLoggerWithWriter(cfg.NodeID, auditSink)
	return engine, stores.Closer, nil
}

func tokenSigner() *httptransport.TokenSigner {
	secret := os.Getenv("SYNC_TOKEN_SECRET")
	if secret == "" {
		return nil
	}
	return httptransport.NewTokenSigner([]byte(secret))
}

func runServeCmd(args []string, stdout, stderr io.Writer) int {
	ctx := context.Background()
	cfg := config.Load()

	engine, closer, err := buildEngine(ctx, cfg, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "building engine failed: %v\n", err)
		return 1
	}
	if closer != nil {
		defer closer.Close()
	}

	provider, err := observability.New(nil)
	if err != nil {
		fmt.Fprintf(stderr, "observability init failed: %v\n", err)
		return 1
	}
	engine.Observability = provider

	handler, err := httptransport.NewHandler(engine, tokenSigner())
	if err != nil {
		fmt.Fprintf(stderr, "building handler failed: %v\n", err)
		return 1
	}

	mux := http.NewServeMux()
	mux.Handle("/sync", handler)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	addr := ":8080"
	if v := os.Getenv("SYNC_LISTEN_ADDR"); v != "" {
		addr = v
	}

	logger := slog.Default().With("node_id", cfg.NodeID, "group_id", cfg.GroupID)
	logger.Info("syncctl: listening", "addr", addr)

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("syncctl: server error: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logger.Info("syncctl: shutting down")
	return 0
}

func runSyncCmd(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("sync", stderr)
	peer := fs.String("peer", "", "Peer sync endpoint URL, or peer node id for non-http backends (REQUIRED)")
	backend := fs.String("backend", "http", "Transport backend: http, file, s3, gcs, redis")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *peer == "" {
		fmt.Fprintln(stderr, "Error: --peer is required")
		return 2
	}

	ctx := context.Background()
	cfg := config.Load()

	engine, closer, err := buildEngine(ctx, cfg, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "building engine failed: %v\n", err)
		return 1
	}
	if closer != nil {
		defer closer.Close()
	}
	if provider, err := observability.New(nil); err == nil {
		engine.Observability = provider
	}

	client, err := buildTransport(ctx, *backend, *peer)
	if err != nil {
		fmt.Fprintf(stderr, "building transport failed: %v\n", err)
		return 1
	}

	policy := retry.BackoffPolicy{PolicyID: "syncctl.sync", BaseMs: 200, MaxMs: 5000, MaxJitterMs: 100, MaxAttempts: 5}
	params := retry.BackoffParams{PolicyID: policy.PolicyID, Backend: *backend, PeerID: *peer}

	err = retry.ExecuteSync(ctx, params, policy, func() error {
		return engine.Sync(ctx, client, nil, nil)
	})
	if err != nil {
		fmt.Fprintf(stderr, "sync failed: %v\n", err)
		if kind, ok := errs.KindOf(err); ok {
			fmt.Fprintf(stderr, "error kind: %s (retriable=%v)\n", kind, kind.Retriable())
		}
		return 1
	}

	fmt.Fprintln(stdout, "sync complete")
	return 0
}

func runRecordCmd(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("record", stderr)
	dataset := fs.String("dataset", "", "Dataset name (REQUIRED)")
	row := fs.String("row", "", "Row id (REQUIRED)")
	column := fs.String("column", "", "Column name (REQUIRED)")
	value := fs.String("value", "", "Value to record, as a JSON literal (REQUIRED)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *dataset == "" || *row == "" || *column == "" || *value == "" {
		fmt.Fprintln(stderr, "Error: --dataset, --row, --column, and --value are required")
		return 2
	}

	decoded, err := decodeJSONLiteral(*value)
	if err != nil {
		fmt.Fprintf(stderr, "Error: --value is not valid JSON: %v\n", err)
		return 2
	}

	ctx := context.Background()
	cfg := config.Load()

	engine, closer, err := buildEngine(ctx, cfg, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "building engine failed: %v\n", err)
		return 1
	}
	if closer != nil {
		defer closer.Close()
	}

	outcome, err := engine.Record(ctx, *dataset, *row, *column, decoded)
	if err != nil {
		fmt.Fprintf(stderr, "record failed: %v\n", err)
		return 1
	}

	fmt.Fprintf(stdout, "%s (node_id=%s)\n", outcome, cfg.NodeID)
	return 0
}

func runGetCmd(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("get", stderr)
	dataset := fs.String("dataset", "", "Dataset name (REQUIRED)")
	row := fs.String("row", "", "Row id (REQUIRED)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *dataset == "" || *row == "" {
		fmt.Fprintln(stderr, "Error: --dataset and --row are required")
		return 2
	}

	ctx := context.Background()
	cfg := config.Load()

	stores, err := openStores(ctx, cfg)
	if err != nil {
		fmt.Fprintf(stderr, "opening stores failed: %v\n", err)
		return 1
	}
	if stores.Closer != nil {
		defer stores.Closer.Close()
	}

	fields, ok, err := stores.RowView.Get(ctx, *dataset, *row)
	if err != nil {
		fmt.Fprintf(stderr, "get failed: %v\n", err)
		return 1
	}
	if !ok {
		fmt.Fprintln(stdout, "(row not found)")
		return 0
	}
	for column, value := range fields {
		fmt.Fprintf(stdout, "%s = %v\n", column, value)
	}
	return 0
}
