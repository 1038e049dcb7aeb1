package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/canonical/sqliteweb/internal/api"
	"github.com/canonical/sqliteweb/internal/bus"
	"github.com/canonical/sqliteweb/internal/config"
	"github.com/canonical/sqliteweb/internal/coordinator"
	"github.com/canonical/sqliteweb/internal/dbworker"
	"github.com/canonical/sqliteweb/internal/host"
	"github.com/canonical/sqliteweb/internal/lock"
	"github.com/canonical/sqliteweb/internal/logger"
	"github.com/canonical/sqliteweb/internal/sanitize"
)

const defaultBusPort = 47321

var (
	flagDBName            string
	flagFollowerTimeoutMs int64
	flagQueryTimeoutMs    int64
	flagDBOnly            bool
	flagDataDir           string
	flagDebugAddr         string
	flagLogLevel          string
)

var rootCmd = &cobra.Command{
	Use:   "sqliteworkerd",
	Short: "sqliteworkerd runs one tab's coordinator for a shared, leader-elected SQL database",
	RunE:  runRoot,
}

func init() {
	rootCmd.Flags().StringVar(&flagDBName, "db-name", "", "database identity (overrides __DB_NAME)")
	rootCmd.Flags().Int64Var(&flagFollowerTimeoutMs, "follower-timeout-ms", 0, "leader probe budget in ms; negative means infinite (overrides __FOLLOWER_TIMEOUT_MS)")
	rootCmd.Flags().Int64Var(&flagQueryTimeoutMs, "query-timeout-ms", 0, "follower query timeout in ms; negative means infinite (overrides __QUERY_TIMEOUT_MS)")
	rootCmd.Flags().StringVar(&flagDataDir, "data-dir", ".", "directory holding the database file and lock file")
	rootCmd.Flags().StringVar(&flagDebugAddr, "debug-addr", "", "if set, serve the /healthz, /status, /events debug API on this address")
	rootCmd.Flags().StringVar(&flagLogLevel, "log-level", "info", "log level: debug, info, warn, error")

	rootCmd.Flags().BoolVar(&flagDBOnly, "db-only", false, "run as a DB-worker child, speaking the stdio protocol on stdin/stdout")
	_ = rootCmd.Flags().MarkHidden("db-only")

	rootCmd.AddCommand(statusCmd)
}

func applyFlagOverrides(cmd *cobra.Command) {
	if cmd.Flags().Changed("db-name") {
		os.Setenv("__DB_NAME", flagDBName)
	}

	if cmd.Flags().Changed("follower-timeout-ms") {
		os.Setenv("__FOLLOWER_TIMEOUT_MS", strconv.FormatInt(flagFollowerTimeoutMs, 10))
	}

	if cmd.Flags().Changed("query-timeout-ms") {
		os.Setenv("__QUERY_TIMEOUT_MS", strconv.FormatInt(flagQueryTimeoutMs, 10))
	}

	if cmd.Flags().Changed("db-only") {
		os.Setenv("__DB_ONLY", strconv.FormatBool(flagDBOnly))
	}
}

func runRoot(cmd *cobra.Command, _ []string) error {
	logger.SetLevel(flagLogLevel)
	applyFlagOverrides(cmd)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if cfg.DBOnly {
		return runDBOnly(cfg)
	}

	return runTab(cfg)
}

// runDBOnly is cmd/sqliteworkerd re-exec'd by its own parent tab (spec.md
// §4.3, §4.5): it never elects, never touches the bus or the lock, it only
// owns the SQL engine and speaks the child stdio protocol.
func runDBOnly(cfg config.WorkerConfig) error {
	ctx, cancel := signalContext()
	defer cancel()

	return dbworker.RunChild(ctx, dbworker.ChildConfig{DBName: cfg.DBName, DataDir: flagDataDir}, os.Stdin, os.Stdout)
}

// runTab starts one full tab: bus, lock, coordinator, host handle, and
// (spawned only on promotion) a DB-worker child.
func runTab(cfg config.WorkerConfig) error {
	ctx, cancel := signalContext()
	defer cancel()

	busName := sanitize.BusName(cfg.DBName)
	tabBus, err := bus.NewUDPBus(busName, defaultBusPort)
	if err != nil {
		return fmt.Errorf("sqliteworkerd: join broadcast bus: %w", err)
	}
	defer tabBus.Close()

	locker := lock.NewFileLock(flagDataDir, cfg.DBName)

	coord := coordinator.New(cfg.ToCoordinatorConfig(), tabBus, locker, dbworker.Spawn, nil)
	handle := host.New(coord)
	coord.SetHost(handle)

	coord.Start(ctx)
	defer func() {
		if err := coord.Close(); err != nil {
			logger.Warn("sqliteworkerd coordinator shutdown reported errors", logger.Ctx{"err": err})
		}
	}()

	if flagDebugAddr != "" {
		go serveDebugAPI(coord, tabBus)
	}

	logger.Info("sqliteworkerd tab started", logger.Ctx{"workerId": coord.WorkerID(), "db": cfg.DBName})

	<-ctx.Done()
	return nil
}

func serveDebugAPI(coord *coordinator.Coordinator, tabBus bus.Bus) {
	srv := &http.Server{Addr: flagDebugAddr, Handler: api.NewRouter(coord, tabBus)}
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Warn("debug API server exited", logger.Ctx{"err": err})
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
