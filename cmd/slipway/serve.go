package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/slipway-sh/slipway/pkg/alert"
	"github.com/slipway-sh/slipway/pkg/api"
	"github.com/slipway-sh/slipway/pkg/bucket"
	"github.com/slipway-sh/slipway/pkg/config"
	"github.com/slipway-sh/slipway/pkg/events"
	"github.com/slipway-sh/slipway/pkg/log"
	"github.com/slipway-sh/slipway/pkg/maintainer"
	"github.com/slipway-sh/slipway/pkg/manager"
	"github.com/slipway-sh/slipway/pkg/metrics"
	"github.com/slipway-sh/slipway/pkg/monitor"
	"github.com/slipway-sh/slipway/pkg/pool"
	"github.com/slipway-sh/slipway/pkg/reaper"
	"github.com/slipway-sh/slipway/pkg/resources"
	"github.com/slipway-sh/slipway/pkg/runtime"
	"github.com/slipway-sh/slipway/pkg/stats"
	"github.com/slipway-sh/slipway/pkg/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the workspace control plane",
	Long: `Run the control plane: the HTTP API, the pre-warm pool maintainer,
the health monitor, and the cleanup reaper, against a local containerd.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("config", "", "Path to YAML configuration file")
	serveCmd.Flags().String("listen", "", "API listen address (overrides config)")
	serveCmd.Flags().String("domain", "", "Public domain workspace URLs are built on (overrides config)")
	serveCmd.Flags().String("data-dir", "", "Directory for databases (overrides config)")
	serveCmd.Flags().Int("pool-target", -1, "Pre-warm pool size (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("listen") {
		cfg.Listen, _ = cmd.Flags().GetString("listen")
	}
	if cmd.Flags().Changed("domain") {
		cfg.Domain, _ = cmd.Flags().GetString("domain")
	}
	if cmd.Flags().Changed("data-dir") {
		cfg.DataDir, _ = cmd.Flags().GetString("data-dir")
	}
	if cmd.Flags().Changed("pool-target") {
		cfg.Pool.Target, _ = cmd.Flags().GetInt("pool-target")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log.Init(log.Config{
		Level:      log.Level(cfg.Log.Level),
		JSONOutput: cfg.Log.JSON,
	})
	metrics.SetVersion(Version)

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	st, err := store.NewBoltStore(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()
	metrics.RegisterComponent("store", true, "")
	fmt.Println("✓ Store opened")

	rt, err := runtime.NewContainerd(cfg.Runtime.Socket, cfg.Runtime.Namespace, cfg.Runtime.Image)
	if err != nil {
		return fmt.Errorf("failed to connect to containerd: %w", err)
	}
	defer rt.Close()
	rt = rt.WithLimits(cfg.Resources.CPUCoresLimit, cfg.Resources.MemoryBytesLimit)
	metrics.RegisterComponent("runtime", true, "")
	fmt.Println("✓ Container runtime connected")

	var recorder stats.Recorder = stats.Disabled{}
	if cfg.Stats.Enabled {
		rec, err := stats.NewBolt(cfg.DataDir)
		if err != nil {
			return fmt.Errorf("failed to open stats database: %w", err)
		}
		recorder = rec.WithStartupObserver(metrics.ObserveStartupDuration)
		metrics.RegisterComponent("stats", true, "")
	}
	defer recorder.Close()

	liveCount := func() int {
		records, err := rt.List(context.Background())
		if err != nil {
			return 0
		}
		return len(records)
	}
	probe, err := resources.NewProbe(cfg.DataDir, cfg.Resources.MemThresholdPct, cfg.Resources.CPUThresholdPct, liveCount)
	if err != nil {
		return fmt.Errorf("failed to create resource probe: %w", err)
	}

	registry := pool.NewRegistry(cfg.Pool.Target)

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	mon := monitor.NewMonitor(st, registry, broker, recorder).
		WithInterval(cfg.Loops.Health.Std()).
		WithMaxFailures(cfg.Health.MaxConsecutiveFailures).
		WithProbeTimeout(cfg.Health.ProbeTimeout.Std())

	mnt := maintainer.NewMaintainer(rt, registry, st, probe, broker, cfg.Domain, cfg.VNCPassword).
		WithInterval(cfg.Loops.Queue.Std()).
		WithSpawnDelay(cfg.Pool.SpawnDelay.Std()).
		WithReadiness(cfg.Pool.ReadinessInterval.Std(), cfg.Pool.ReadinessCap.Std()).
		WithProber(mon)

	// The monitor evicts pool entries through the maintainer; the
	// maintainer and manager trigger eager probes through the monitor.
	mon.WithFailureHandler(mnt)

	mgr := manager.NewManager(rt, st, registry, bucket.NewS3Validator(), probe, broker, recorder, manager.Config{
		Domain:        cfg.Domain,
		DefaultRegion: cfg.Region,
		DefaultCreds:  cfg.Credentials,
		VNCPassword:   cfg.VNCPassword,
	}).WithProber(mon)

	rp := reaper.NewReaper(st, rt).
		WithInterval(cfg.Loops.Cleanup.Std())

	collector := metrics.NewCollector(st, registry, probe)

	var alerter *alert.Alerter
	if cfg.Alerts.WebhookURL != "" {
		alerter = alert.NewAlerter(broker, cfg.Alerts.WebhookURL, cfg.Alerts.Cooldown.Std())
		metrics.RegisterComponent("alerts", true, "")
	}

	mon.Start()
	mnt.Start()
	rp.Start()
	collector.Start()
	if alerter != nil {
		alerter.Start()
	}
	fmt.Println("✓ Background loops started")

	apiServer := api.NewServer(mgr, cfg.Listen).
		WithAuthToken(cfg.AuthToken).
		WithCORSOrigins(cfg.CORSOrigins).
		WithHealthSource(mon)

	errCh := make(chan error, 1)
	go func() {
		if err := apiServer.Start(); err != nil {
			errCh <- fmt.Errorf("API server error: %w", err)
		}
	}()

	fmt.Printf("✓ API listening on %s (domain %s, pool target %d)\n", cfg.Listen, cfg.Domain, cfg.Pool.Target)
	fmt.Println()
	fmt.Println("Control plane is running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		fmt.Println("\nShutting down...")
	case err := <-errCh:
		fmt.Fprintf(os.Stderr, "\nError: %v\n", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		log.WithComponent("serve").Warn().Err(err).Msg("API shutdown did not drain cleanly")
	}

	if alerter != nil {
		alerter.Stop()
	}
	collector.Stop()
	rp.Stop()
	mnt.Stop()
	mon.Stop()

	fmt.Println("✓ Shutdown complete")
	return nil
}
