// Package main is the CLI entry point for privacyd.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/dbrox/privacyd/internal/config"
	"github.com/dbrox/privacyd/internal/daemon"
	"github.com/dbrox/privacyd/internal/domain"
	"github.com/dbrox/privacyd/internal/infra"
	"github.com/dbrox/privacyd/internal/policy"
	"github.com/dbrox/privacyd/internal/usecase"
)

var (
	// Version info (set via ldflags)
	Version   = "0.1.0"
	Commit    = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "privacyd",
	Short: "Privacy activity daemon - reports microphone, screen and camera use",
	Long: `privacyd watches the PipeWire registry, the camera device nodes and
the process table, and fuses them into a single answer to "is the
microphone in use? is the screen captured? is a camera open?".

It only observes and reports. It attributes nothing, blocks nothing
and stores nothing.`,
	Version: Version,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the daemon in the foreground",
	Long: `Starts the PipeWire registry monitor and the camera device watcher,
aggregates their events and logs every activity transition until
interrupted.`,
	RunE: runDaemon,
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Probe current activity once and exit",
	Long: `Performs a one-shot probe: scans open camera descriptors and dumps the
PipeWire registry, then prints which sensors are currently in use.`,
	RunE: runCheck,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Prints version, commit, and build time. Use --json for machine-readable output.`,
	Run:   runVersion,
}

var (
	configPath string
	jsonOutput bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to TOML config file")
	versionCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(versionCmd)
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := createLogger(cfg.LogPath)
	defer func() { _ = logger.Sync() }()

	// Set up graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("received shutdown signal")
		cancel()
	}()

	rules := policy.NewRegistry()
	monitor := infra.NewRegistryMonitor(cfg.PipewireDump, rules, logger)
	scanner := infra.NewProcScanner(cfg.DevicePathPrefix(), cfg.FlatpakMarker, logger)
	watcher := infra.NewDeviceWatcher(cfg.DevDir, cfg.DeviceNamePrefix, scanner, logger)
	aggregator := usecase.NewActivityAggregator(logger)

	d := daemon.New(
		daemon.Config{
			TickInterval:  cfg.TickInterval.Duration,
			QueueCapacity: cfg.QueueCapacity,
		},
		aggregator,
		logger,
		monitor,
		watcher,
	)

	err = d.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := zap.NewNop()
	ctx := context.Background()

	rules := policy.NewRegistry()
	monitor := infra.NewRegistryMonitor(cfg.PipewireDump, rules, logger)
	scanner := infra.NewProcScanner(cfg.DevicePathPrefix(), cfg.FlatpakMarker, logger)
	aggregator := usecase.NewActivityAggregator(logger)

	baseline, err := scanner.Scan(ctx)
	if err != nil {
		return fmt.Errorf("baseline scan failed: %w", err)
	}
	aggregator.Apply(domain.Event{Kind: domain.EventPreviousState, Baseline: baseline})

	nodes, err := monitor.CollectOnce(ctx)
	if err != nil {
		// The camera side still works without PipeWire; report partial
		// visibility instead of nothing.
		fmt.Printf("Warning: PipeWire registry unavailable: %v\n", err)
	}
	for _, ev := range nodes {
		aggregator.Apply(ev)
	}

	snap := aggregator.Recompute()

	fmt.Println("\n=== Privacy Activity ===")
	fmt.Printf("Microphone:   %s\n", inUse(snap.MicrophoneActive))
	fmt.Printf("Screen share: %s\n", inUse(snap.ScreenShareActive))
	fmt.Printf("Camera:       %s\n", inUse(snap.CameraActive))
	if !snap.Any() {
		fmt.Println("\nNo sensor is in use.")
	}
	fmt.Println("========================")

	return nil
}

func inUse(active bool) string {
	if active {
		return "IN USE"
	}
	return "idle"
}

func createLogger(logPath string) *zap.Logger {
	cfg := zap.NewProductionConfig()
	if logPath != "" {
		cfg.OutputPaths = []string{logPath}
		cfg.ErrorOutputPaths = []string{logPath}
	} else {
		cfg.OutputPaths = []string{"stderr"}
		cfg.ErrorOutputPaths = []string{"stderr"}
	}
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build()
	if err != nil {
		// Fallback to stderr if file logging fails
		logger, _ = zap.NewProduction()
	}
	return logger
}

func runVersion(cmd *cobra.Command, args []string) {
	if jsonOutput {
		fmt.Printf(`{"version":"%s","commit":"%s","build_time":"%s"}`+"\n",
			Version, Commit, BuildTime)
	} else {
		fmt.Printf("privacyd %s (commit: %s, built: %s)\n",
			Version, Commit, BuildTime)
	}
}
