package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/netiads/iads/internal/api"
	"github.com/netiads/iads/internal/aps"
	"github.com/netiads/iads/internal/audit"
	"github.com/netiads/iads/internal/config"
	"github.com/netiads/iads/internal/domain"
	"github.com/netiads/iads/internal/em"
	"github.com/netiads/iads/internal/esm"
	"github.com/netiads/iads/internal/observability"
	"github.com/netiads/iads/internal/probe"
	"github.com/netiads/iads/internal/rfu"
	"github.com/netiads/iads/internal/scheduler"
	"github.com/netiads/iads/internal/topology"
	"github.com/netiads/iads/internal/uq"
)

var (
	serveSeed       int64
	serveEntities   []string
	serveCoreLinks  []string
	serveSimulate   bool
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().Int64Var(&serveSeed, "seed", 1, "seed for the simulated probe executor's RNG")
	serveCmd.Flags().StringSliceVar(&serveEntities, "entity", nil, "link entity to track at startup, format SRC_DPID-SRC_PORT:DST_DPID-DST_PORT (repeatable)")
	serveCmd.Flags().StringSliceVar(&serveCoreLinks, "core-entity", nil, "entity whose rtt events escalate to plr/bandwidth triggers (repeatable, must also be passed via --entity)")
	serveCmd.Flags().BoolVar(&serveSimulate, "simulate", true, "use the built-in simulated probe executor instead of a real OpenFlow backend")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scheduler loop and HTTP API",
	Long: `serve wires the Entity State Manager, Uncertainty Quantifier, Event
Manager, Active Probing Scheduler, and Result Fusion Unit into one Core,
runs the round loop against a probe executor, and exposes the status,
report, and metrics endpoints over HTTP until interrupted.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if !serveSimulate {
		return fmt.Errorf("serve: no OpenFlow-backed probe executor is built into this binary; omit --simulate=false")
	}

	core := buildCore(cfg)
	coreSet := make(map[string]bool, len(serveCoreLinks))
	for _, e := range serveCoreLinks {
		coreSet[e] = true
	}
	for _, e := range serveEntities {
		core.AddEntity(domain.EntityID(e), coreSet[e])
	}

	pe := probe.NewSimulatedExecutor(serveSeed, cfg.System.MaxParallelProbes)
	feed := topology.NewFeed(0)

	loopCfg := scheduler.LoopConfig{
		RoundInterval:    time.Duration(cfg.System.ProbeIntervalDefault * float64(time.Second)),
		AnalyzerInterval: time.Minute,
		RoundTimeout:     time.Duration(cfg.System.RoundTimeoutSeconds * float64(time.Second)),
	}
	loop := scheduler.NewLoop(core, pe, feed, loopCfg)

	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)
	loop.SetMetrics(metrics)
	loop.SetTracer(observability.NewTracer(observability.DefaultTracerConfig()))

	if cfg.Audit.Enabled {
		db, err := audit.Open(cfg.Audit.Path)
		if err != nil {
			return fmt.Errorf("open audit database: %w", err)
		}
		defer db.Close()
		loop.SetAudit(db)
	}

	var gatherer prometheus.Gatherer
	if cfg.Server.EnableMetrics {
		gatherer = reg
	}
	srv := api.NewServer(core, gatherer)
	httpServer := &http.Server{Addr: cfg.Server.ListenAddr, Handler: srv.Handler()}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		fmt.Fprintf(os.Stdout, "iadsd listening on %s\n", cfg.Server.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(os.Stderr, "http server: %v\n", err)
		}
	}()

	loop.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// buildCore wires the five component managers from cfg, the way a
// composition root assembles long-lived dependencies once at startup.
func buildCore(cfg config.Config) *scheduler.Core {
	now := time.Now

	esmCfg := esm.Config{
		ProbeIntervalDefault: cfg.System.ProbeIntervalDefault,
		ProbeIntervalMin:     cfg.System.ProbeIntervalMin,
		ProbeIntervalMax:     cfg.System.ProbeIntervalMax,
		MaxUncertainty:       cfg.APS.MaxUncertainty,
		MaxStability:         cfg.APS.MaxStability,
		Init: esm.InitParams{
			LivenessAlpha: cfg.Init.Liveness.Alpha, LivenessBeta: cfg.Init.Liveness.Beta,
			RTTMu: cfg.Init.RTT.Mu, RTTSigma2: cfg.Init.RTT.Sigma2,
			PLRMu: cfg.Init.PLR.Mu, PLRSigma2: cfg.Init.PLR.Sigma2,
			BWMu: cfg.Init.Bandwidth.Mu, BWSigma2: cfg.Init.Bandwidth.Sigma2,
		},
		Noise: esm.NoiseParams{
			RTT: cfg.Noise.RTT, PLR: cfg.Noise.PLR, Bandwidth: cfg.Noise.Bandwidth, Liveness: cfg.Noise.Liveness,
		},
		Now: now,
	}
	esmMgr := esm.New(esmCfg)

	emCfg := em.Config{
		LivenessThreshold:  cfg.Events.LivenessThreshold,
		StabilityThreshold: cfg.Events.StabilityThreshold,
		RTTSpikeFactor:     cfg.Events.RTTSpikeFactor,
		MaxRecentEvents:    cfg.Events.MaxRecentEvents,
		MaxStability:       cfg.APS.MaxStability,
		SlidingWindow:      time.Duration(cfg.System.SlidingWindow * float64(time.Second)),
		Now:                now,
	}
	emMgr := em.New(emCfg)
	esmMgr.SetEventSource(emMgr)

	uqMgr := uq.New(esmMgr)

	cmab := aps.NewCMAB(serveSeed)
	ctlc := aps.NewCTLC(aps.CTLCConfig{
		Kp:              cfg.APS.Kp,
		TargetStability: cfg.APS.TargetStability,
		MinInterval:     cfg.System.ProbeIntervalMin,
		MaxInterval:     cfg.System.ProbeIntervalMax,
	})
	prio := aps.NewPRIO(aps.PrioConfig{
		Weights: aps.PriorityWeights{
			EIG: cfg.APS.PriorityWeights.EIG, Urgency: cfg.APS.PriorityWeights.Urgency,
			PolicyMatch: cfg.APS.PriorityWeights.PolicyMatch, EventTrig: cfg.APS.PriorityWeights.EventTrig,
		},
		MaxUncertainty: cfg.APS.MaxUncertainty,
		MaxStability:   cfg.APS.MaxStability,
	})
	sched := aps.NewScheduler(cmab, ctlc, prio)

	fusion := rfu.New(rfu.Config{
		UncertaintyWeight:       cfg.Reward.UncertaintyWeight,
		CostWeight:              cfg.Reward.CostWeight,
		MaxUncertaintyReduction: cfg.Reward.MaxUncertaintyReduction,
	}, cfg.System.TopK)

	return scheduler.NewCore(esmMgr, uqMgr, emMgr, sched, fusion, cfg.System.TopK)
}
