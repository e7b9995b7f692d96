package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/gateway-fm/jointsim/internal/account"
	"github.com/gateway-fm/jointsim/internal/config"
	"github.com/gateway-fm/jointsim/internal/contract"
	"github.com/gateway-fm/jointsim/internal/execnode"
	"github.com/gateway-fm/jointsim/internal/ledger"
	"github.com/gateway-fm/jointsim/internal/metrics"
	"github.com/gateway-fm/jointsim/internal/ratelimit"
	"github.com/gateway-fm/jointsim/internal/report"
	"github.com/gateway-fm/jointsim/internal/rpc"
	"github.com/gateway-fm/jointsim/internal/sim"
	"github.com/gateway-fm/jointsim/internal/status"
	"github.com/gateway-fm/jointsim/internal/storage"
	"github.com/gateway-fm/jointsim/internal/transport"
)

// app is everything a phase command needs.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	ledger   ledger.Ledger
	rng      sim.Rand
	seed     uint64
	observer sim.Observer
	tracker  *status.Tracker
}

type phaseFunc func(ctx context.Context, a *app) error

// withApp loads configuration, wires the ledger and observers, optionally
// serves the status API, and runs fn. The tracker always records the outcome.
func withApp(cmd *cobra.Command, fn phaseFunc) error {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return err
	}
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, cmd.OutOrStdout())
	ctx := cmd.Context()

	rng, seed := sim.NewRand(cfg.Seed)
	reg := prometheus.NewRegistry()
	prom := metrics.NewPrometheusMetrics(reg)
	tracker := status.NewTracker(cfg.RunConfig(seed))
	logger = logger.With(slog.String("run_id", tracker.RunID()))

	logger.Info("starting jointsim",
		slog.String("backend", cfg.Backend),
		slog.Int("participants", cfg.Participants),
		slog.Float64("probability", cfg.Probability),
		slog.Float64("mean_balance", cfg.MeanBalance),
		slog.Int("rounds", cfg.Rounds),
		slog.Int("batch_size", cfg.BatchSize),
		slog.Uint64("seed", seed),
	)

	stopServer := func() {}
	if cfg.ListenAddr != "" {
		stopServer = serveStatus(ctx, cfg, tracker, reg, logger)
	}
	defer stopServer()

	l, err := openLedger(ctx, cfg, ledger.CallObservers{prom, tracker}, logger)
	if err != nil {
		tracker.Finish(err)
		return err
	}
	if cfg.MaxTxRate > 0 {
		l = ledger.Throttle(l, ratelimit.New(cfg.MaxTxRate))
		logger.Info("pacing ledger submissions", slog.Float64("max_tx_rate", cfg.MaxTxRate))
	}

	a := &app{
		cfg:      cfg,
		logger:   logger,
		ledger:   l,
		rng:      rng,
		seed:     seed,
		observer: sim.Observers{prom, tracker},
		tracker:  tracker,
	}
	err = fn(ctx, a)
	tracker.Finish(err)

	snap := tracker.Snapshot()
	logger.Info("run finished",
		slog.String("status", string(snap.Status)),
		slog.Int64("elapsed_ms", snap.ElapsedMs),
		slog.Uint64("seed", seed),
	)
	return err
}

// serveStatus runs the status server until the returned stop function is called.
func serveStatus(ctx context.Context, cfg *config.Config, tracker *status.Tracker, reg *prometheus.Registry, logger *slog.Logger) func() {
	srvCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	srv := transport.NewServer(tracker, reg, logger, cfg.CORSAllowedOrigins)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := srv.ListenAndServe(srvCtx, cfg.ListenAddr); err != nil {
			logger.Error("status server failed", slog.String("error", err.Error()))
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

func newLogger(level, format string, w io.Writer) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// openLedger returns the configured backend, instrumented with observer.
func openLedger(ctx context.Context, cfg *config.Config, observer ledger.CallObserver, logger *slog.Logger) (ledger.Ledger, error) {
	if cfg.Backend == config.BackendMemory {
		logger.Info("using in-memory ledger")
		return ledger.Instrument(ledger.NewMemory(), observer), nil
	}

	env, err := dialNode(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	address := common.HexToAddress(cfg.ContractAddress)
	if cfg.ContractAddress == "" {
		res, err := env.deploy(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		address = res.Address
	} else {
		code, err := env.client.GetCode(ctx, address.Hex())
		if err != nil {
			return nil, fmt.Errorf("failed to check contract %s: %w", address.Hex(), err)
		}
		if code == "" || code == "0x" {
			return nil, fmt.Errorf("no contract code at %s", address.Hex())
		}
	}

	c, err := ledger.NewContract(ledger.ContractConfig{
		Address:   address,
		Artifact:  env.artifact,
		Client:    env.client,
		Submitter: env.submitter,
		Waiter:    env.waiter,
		GasLimit:  cfg.GasLimit,
		Observer:  observer,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}
	logger.Info("using contract ledger", slog.String("contract", address.Hex()))
	return c, nil
}

// nodeEnv is a connected node plus the means to transact on it.
type nodeEnv struct {
	profile   *execnode.NodeProfile
	client    rpc.Client
	chainID   *big.Int
	artifact  *ledger.Artifact
	submitter ledger.Submitter
	waiter    *ledger.ReceiptWaiter
}

func dialNode(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*nodeEnv, error) {
	profile := cfg.Profile()
	if profile == nil {
		return nil, fmt.Errorf("unknown node profile: %s", cfg.NodeProfile)
	}
	url := cfg.EffectiveRPCURL()
	client := rpc.NewHTTPClient(rpc.DefaultClientConfig(url))

	chainID := big.NewInt(cfg.ChainID)
	if cfg.ChainID == 0 {
		id, err := client.ChainID(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch chain id from %s: %w", url, err)
		}
		chainID = id
	}

	art, err := ledger.LoadArtifact(cfg.ArtifactPath)
	if err != nil {
		return nil, err
	}

	var submitter ledger.Submitter
	if cfg.PrivateKey != "" {
		acc, err := account.NewAccountFromHex(cfg.PrivateKey)
		if err != nil {
			return nil, fmt.Errorf("invalid private key: %w", err)
		}
		fees, err := ledger.ResolveFees(ctx, client, profile.RequiresLegacyTx, cfg.GasTipCap, cfg.GasFeeCap)
		if err != nil {
			return nil, err
		}
		submitter, err = ledger.NewSignedSubmitter(ctx, client, acc, chainID, fees, logger)
		if err != nil {
			return nil, err
		}
	} else {
		var gasPrice *big.Int
		if cfg.GasFeeCap > 0 {
			gasPrice = new(big.Int).SetUint64(cfg.GasFeeCap)
		}
		submitter, err = ledger.NewUnlockedSubmitter(ctx, client, gasPrice)
		if err != nil {
			return nil, err
		}
	}

	logger.Info("connected to node",
		slog.String("profile", profile.String()),
		slog.String("rpc_url", url),
		slog.String("chain_id", chainID.String()),
		slog.String("from", submitter.From().Hex()),
		slog.Bool("legacy_tx", profile.RequiresLegacyTx),
	)

	return &nodeEnv{
		profile:   profile,
		client:    client,
		chainID:   chainID,
		artifact:  art,
		submitter: submitter,
		waiter:    ledger.NewReceiptWaiter(client, cfg.ConfirmTimeout, profile.InstantMining),
	}, nil
}

// deploy ensures the artifact is deployed, consulting the deployment cache when one is configured.
func (e *nodeEnv) deploy(ctx context.Context, cfg *config.Config, logger *slog.Logger) (contract.Result, error) {
	if !e.artifact.CanDeploy() {
		return contract.Result{}, fmt.Errorf("no contract address configured and the artifact has no bytecode: set --contract or --artifact")
	}

	var cache storage.DeploymentCache
	if cfg.DatabasePath != "" {
		store, err := storage.NewSQLiteStorage(cfg.DatabasePath)
		if err != nil {
			logger.Warn("deployment cache unavailable",
				slog.String("path", cfg.DatabasePath),
				slog.String("error", err.Error()),
			)
		} else {
			defer store.Close()
			cache = store
		}
	}

	d := contract.NewDeployer(e.client, e.submitter, e.waiter, cache, logger)
	return d.EnsureDeployed(ctx, e.artifact, e.chainID.Int64())
}

func runAll(ctx context.Context, a *app) error {
	rep, err := sim.RunAll(ctx, a.ledger, a.cfg.Simulation(), a.rng, a.observer, a.logger)
	if err == nil || rep.Simulate.Attempts > 0 {
		a.writeReport(rep.Simulate)
	}
	return err
}

func runProvision(ctx context.Context, a *app) error {
	_, err := sim.NewProvisioner(a.ledger, a.cfg.Participants, a.observer, a.logger).Run(ctx)
	return err
}

func runFabricate(ctx context.Context, a *app) error {
	_, err := sim.NewFabricator(a.ledger, sim.FabricateConfig{
		Participants: a.cfg.Participants,
		Probability:  a.cfg.Probability,
		MeanBalance:  a.cfg.MeanBalance,
	}, a.rng, a.observer, a.logger).Run(ctx)
	return err
}

func runSimulate(ctx context.Context, a *app) error {
	res, err := sim.NewSimulator(a.ledger, sim.SimulateConfig{
		Participants: a.cfg.Participants,
		Rounds:       a.cfg.Rounds,
		BatchSize:    a.cfg.BatchSize,
	}, a.rng, a.observer, a.logger).Run(ctx)
	a.writeReport(res)
	return err
}

// writeReport renders the chart and CSV. Failures are logged, not returned:
// the series is also available from the status API and the logs.
func (a *app) writeReport(res sim.SimulateResult) {
	if a.cfg.ChartPath != "" {
		err := report.SaveChart(a.cfg.ChartPath, res.Series)
		switch {
		case errors.Is(err, report.ErrEmptySeries):
			a.logger.Warn("no attempts were counted, skipping chart")
		case err != nil:
			a.logger.Error("failed to save chart", slog.String("path", a.cfg.ChartPath), slog.String("error", err.Error()))
		default:
			a.logger.Info("saved chart", slog.String("path", a.cfg.ChartPath))
		}
	}
	if a.cfg.CSVPath != "" {
		if err := report.SaveCSV(a.cfg.CSVPath, res.Series); err != nil {
			a.logger.Error("failed to save csv", slog.String("path", a.cfg.CSVPath), slog.String("error", err.Error()))
		} else {
			a.logger.Info("saved csv", slog.String("path", a.cfg.CSVPath), slog.Int("samples", len(res.Series)))
		}
	}
}
