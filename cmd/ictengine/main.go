package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/sawpanic/ictengine/internal/alerts"
	"github.com/sawpanic/ictengine/internal/audit"
	"github.com/sawpanic/ictengine/internal/broker"
	"github.com/sawpanic/ictengine/internal/config"
	"github.com/sawpanic/ictengine/internal/detect"
	"github.com/sawpanic/ictengine/internal/domain"
	"github.com/sawpanic/ictengine/internal/execution"
	"github.com/sawpanic/ictengine/internal/health"
	"github.com/sawpanic/ictengine/internal/memory"
	"github.com/sawpanic/ictengine/internal/metrics"
	"github.com/sawpanic/ictengine/internal/pipeline"
	"github.com/sawpanic/ictengine/internal/risk"
	"github.com/sawpanic/ictengine/internal/session"
	"github.com/sawpanic/ictengine/internal/signals"
)

const (
	appName = "ictengine"
	version = "v0.1.0"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "ICT real-time trading analysis and execution engine",
		Version: version,
		Run:     runDefaultEntry,
	}
	rootCmd.PersistentFlags().String("config", "", "path to YAML config file")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the live pipeline and execution router",
		RunE:  runEngine,
	}
	runCmd.Flags().Bool("sim", false, "force sim-mode boot flag regardless of config")

	healthCmd := &cobra.Command{
		Use:   "health",
		Short: "Print a one-shot composite health report",
		RunE:  runHealthCheck,
	}

	memoryStatsCmd := &cobra.Command{
		Use:   "memory-stats",
		Short: "Print pattern-memory statistics for a symbol/timeframe",
		RunE:  runMemoryStats,
	}
	memoryStatsCmd.Flags().String("symbol", "EURUSD", "symbol to report")
	memoryStatsCmd.Flags().String("timeframe", string(domain.M15), "timeframe to report")

	selftestCmd := &cobra.Command{
		Use:   "selftest",
		Short: "Run an offline resilience self-test (no network, sim adapter only)",
		RunE:  runSelfTest,
	}

	rootCmd.AddCommand(runCmd, healthCmd, memoryStatsCmd, selftestCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

// runDefaultEntry prints a one-line subcommand hint to stderr and exits with
// status 2 in non-interactive contexts, and a short status banner in an
// interactive terminal; this engine has no menu UI.
func runDefaultEntry(cmd *cobra.Command, args []string) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Fprintf(os.Stderr, "Use a subcommand for automation: %s run | %s health | %s memory-stats | %s selftest\n", appName, appName, appName, appName)
		os.Exit(2)
	}
	fmt.Printf("%s %s — run '%s --help' for available commands.\n", appName, version, appName)
}

func loadConfig(cmd *cobra.Command) (*config.AppConfig, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path, _ = cmd.Root().PersistentFlags().GetString("config")
	}
	return config.Load(path)
}

// runEngine wires the pipeline, memory store, risk/compliance gates, the
// execution router, and its supporting metrics/alerts/audit collaborators,
// then runs until interrupted.
func runEngine(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if forceSim, _ := cmd.Flags().GetBool("sim"); forceSim {
		cfg.SimMode = true
	}

	adapter, err := buildAdapter(cfg)
	if err != nil {
		return fmt.Errorf("build adapter: %w", err)
	}

	pcfg := pipeline.DefaultConfig()
	pcfg.Symbols = cfg.Pipeline.Symbols
	pcfg.TickInterval = time.Duration(cfg.Pipeline.TickIntervalSec * float64(time.Second))
	pcfg.MaxTickAge = time.Duration(cfg.Pipeline.MaxTickAgeSec) * time.Second
	pcfg.BufferSize = cfg.Pipeline.BufferSize
	pcfg.ShutdownTimeout = time.Duration(cfg.Pipeline.ShutdownTimeoutSec * float64(time.Second))
	pcfg.CallbackBudgetMs = cfg.Pipeline.CallbackBudgetMs
	pcfg.SimMode = cfg.SimMode

	pl := pipeline.New(pcfg, adapter, log.Logger)

	memStore, err := memory.New(memory.Config{
		MaxRecordsPerSymbol: 200,
		MaxAgeDays:          float64(cfg.Detectors.MaxAgeDays),
		PersistPath:         cfg.DataRoot + "/memory/fvg_memory.json",
	})
	if err != nil {
		return fmt.Errorf("open memory store: %w", err)
	}

	alertDispatcher, err := alerts.New(cfg.DataRoot+"/alerts", alerts.DefaultMaxFileSize)
	if err != nil {
		return fmt.Errorf("open alerts dispatcher: %w", err)
	}
	auditLog, err := audit.New(cfg.DataRoot + "/audit/execution_audit.jsonl")
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	metricsAgg := metrics.New(metrics.Config{
		LatencySamplesLimit: cfg.Metrics.LatencySamplesLimit,
		HistoryLimit:        cfg.Metrics.HistoryLimit,
		Dir:                 cfg.Metrics.MetricsDir,
	})

	rateLimiter := risk.NewRateLimiter(risk.RateLimiterConfig{
		Enabled:       cfg.RateLimit.Enabled,
		GlobalRate:    cfg.RateLimit.GlobalRate,
		PerSymbolRate: cfg.RateLimit.PerSymbolRate,
		WindowSec:     float64(cfg.RateLimit.WindowSec),
	})
	compliance := risk.NewComplianceChecker(risk.ComplianceConfig{
		Blacklist:       toSet(cfg.Risk.Blacklist),
		MaxSpreadPoints: cfg.Risk.MaxSpreadPoints,
		LossCooldownSec: cfg.Risk.LossCooldownSec,
	})
	sizer := risk.PositionSizer{RiskPct: cfg.Risk.RiskPct, MaxSymbolVolume: cfg.Risk.MaxSymbolVolume}
	exposure := risk.NewExposureTracker(cfg.DataRoot + "/session/exposure.json")

	healthMonitor := health.New(health.Config{
		LatencyWarnMs:        cfg.Health.MaxLatencyMs * 0.6,
		LatencyFailMs:        cfg.Health.MaxLatencyMs,
		MarketDataWarnAgeSec: cfg.Health.MaxMarketDataAgeSec * 0.5,
		MarketDataFailAgeSec: cfg.Health.MaxMarketDataAgeSec,
		HeartbeatWarnAgeSec:  cfg.Health.MaxHeartbeatAgeSec * 0.5,
		HeartbeatFailAgeSec:  cfg.Health.MaxHeartbeatAgeSec,
		CacheTTL:             time.Second,
	}, func() bool { return adapter.IsConnected() })

	breaker := execution.NewBreaker(execution.BreakerConfig{
		FailureThreshold: cfg.Router.CircuitBreakerThreshold,
		WindowSec:        cfg.Router.CircuitBreakerWindowSec,
		CooldownSec:      cfg.Router.CircuitBreakerCooldownSec,
	})

	sessionMgr, err := session.New(session.DefaultConfig(cfg.DataRoot))
	if err != nil {
		return fmt.Errorf("open session state: %w", err)
	}

	router := execution.New(execution.Config{
		RateLimiter:     rateLimiter,
		Compliance:      compliance,
		Sizer:           &sizer,
		Exposure:        exposure,
		Health:          healthMonitor,
		Breaker:         breaker,
		MaxRetries:      cfg.Router.MaxRetries,
		RetryDelay:      time.Duration(cfg.Router.RetryDelaySeconds * float64(time.Second)),
		LatencyProvider: func() float64 { return 0 },
		MaxLatencyMs:    cfg.Router.MaxLatencyMs,
		Metrics:         metricsAgg,
		Alerts:          alertDispatcher,
		Audit:           auditLog,
		Session:         sessionMgr,
	}, adapter, nil)

	sigCfg := signals.DefaultConfig()
	sigCfg.Base = detect.BaseThresholds{
		MinGapSizePips:    cfg.Detectors.MinGapSizePips,
		FillTolerancePips: cfg.Detectors.FillTolerancePips,
	}
	sigEngine := signals.New(sigCfg, pl, memStore, router, log.Logger)

	pl.RegisterCallback(func(symbol string, tf domain.Timeframe, tick domain.Tick, snap domain.Snapshot) {
		healthMonitor.ReportTick(tick.Timestamp)
		sigEngine.OnTick(symbol, tf, tick, snap)
	})

	if !pl.Start(context.Background()) {
		return fmt.Errorf("pipeline already running")
	}
	log.Info().Strs("symbols", cfg.Pipeline.Symbols).Bool("sim_mode", cfg.SimMode).Msg("engine started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info().Msg("shutting down")
	pl.Stop()
	_ = metricsAgg.Shutdown()
	_ = auditLog.Shutdown(nil)
	_ = memStore.Save()
	_ = sessionMgr.Shutdown()
	return nil
}

func toSet(items []string) map[string]bool {
	out := make(map[string]bool, len(items))
	for _, s := range items {
		out[s] = true
	}
	return out
}

func buildAdapter(cfg *config.AppConfig) (broker.Adapter, error) {
	if cfg.SimMode {
		sim := broker.NewSimAdapter()
		return sim, nil
	}
	wsCfg := broker.DefaultWSAdapterConfig("")
	return broker.NewWSAdapter(wsCfg, log.Logger, nil), nil
}

func runHealthCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	mon := health.New(health.Config{
		LatencyWarnMs:        cfg.Health.MaxLatencyMs * 0.6,
		LatencyFailMs:        cfg.Health.MaxLatencyMs,
		MarketDataWarnAgeSec: cfg.Health.MaxMarketDataAgeSec * 0.5,
		MarketDataFailAgeSec: cfg.Health.MaxMarketDataAgeSec,
		HeartbeatWarnAgeSec:  cfg.Health.MaxHeartbeatAgeSec * 0.5,
		HeartbeatFailAgeSec:  cfg.Health.MaxHeartbeatAgeSec,
		CacheTTL:             time.Second,
	}, nil)
	now := time.Now()
	fmt.Printf("healthy=%v reasons=%v\n", mon.IsHealthy(now), mon.Reasons(now))
	return nil
}

func runMemoryStats(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	symbol, _ := cmd.Flags().GetString("symbol")
	tf, _ := cmd.Flags().GetString("timeframe")

	store, err := memory.New(memory.Config{
		MaxRecordsPerSymbol: 200,
		MaxAgeDays:          float64(cfg.Detectors.MaxAgeDays),
		PersistPath:         cfg.DataRoot + "/memory/fvg_memory.json",
	})
	if err != nil {
		return err
	}
	stats := store.Statistics(symbol, domain.Timeframe(tf))
	fmt.Printf("symbol=%s timeframe=%s count=%d filled=%d partial=%d unfilled=%d success_rate=%.4f\n",
		symbol, tf, stats.Count, stats.Filled, stats.Partial, stats.Unfilled, stats.SuccessRate)
	return nil
}

// runSelfTest exercises the pipeline against the deterministic simulator
// with no network access, per spec.md's offline resilience requirement.
func runSelfTest(cmd *cobra.Command, args []string) error {
	sim := broker.NewSimAdapter()
	now := time.Now()
	sim.SeedTicks("EURUSD", []domain.Tick{
		{Symbol: "EURUSD", Bid: 1.1000, Ask: 1.1001, Timestamp: now},
		{Symbol: "EURUSD", Bid: 1.1002, Ask: 1.1003, Timestamp: now.Add(100 * time.Millisecond)},
	})

	pcfg := pipeline.DefaultConfig()
	pcfg.Symbols = []string{"EURUSD"}
	pcfg.SimMode = true
	pcfg.TickInterval = 10 * time.Millisecond

	pl := pipeline.New(pcfg, sim, log.Logger)
	received := 0
	pl.RegisterCallback(func(symbol string, tf domain.Timeframe, tick domain.Tick, snap domain.Snapshot) {
		received++
	})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	pl.Start(ctx)
	<-ctx.Done()
	pl.Stop()

	if received == 0 {
		return fmt.Errorf("selftest failed: no ticks delivered to callback")
	}
	fmt.Printf("selftest OK: %d callback deliveries, %d rejected ticks, %d fetch errors\n", received, pl.RejectedCount(), pl.FetchErrorCount())
	return nil
}
