package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/dabridge/prover/internal/config"
	"github.com/dabridge/prover/internal/dacore/nmt"
	"github.com/dabridge/prover/internal/dacore/types"
	"github.com/dabridge/prover/internal/danode"
	"github.com/dabridge/prover/internal/errs"
	"github.com/dabridge/prover/internal/evmrpc"
	"github.com/dabridge/prover/internal/facade"
	"github.com/dabridge/prover/internal/httpapi"
	"github.com/dabridge/prover/internal/indexer"
	"github.com/dabridge/prover/internal/metrics"
	"github.com/dabridge/prover/internal/orchestrator"
	"github.com/dabridge/prover/internal/proverclient"
	"github.com/dabridge/prover/internal/registry"
	"github.com/dabridge/prover/internal/scheduler"
	"github.com/dabridge/prover/internal/witness"
	"github.com/dabridge/prover/internal/zkvm/blockprogram"
	apimw "github.com/dabridge/prover/server/api/middleware"

	serverapi "github.com/dabridge/prover/server/api"
)

// App wires together every subsystem the proving service needs and
// drives their lifecycle, grounded on shared-publisher-leader-app's
// App (NewApp/initialize/Run/shutdown), with the teacher's
// publisher/consensus/transport/batch sections replaced by this
// domain's registry/oracle/facade/scheduler sections.
type App struct {
	cfg *config.Config
	log zerolog.Logger

	registry registry.Service
	facade   *facade.Facade

	jobCollector *httpapi.JobCollector
	httpServer   *serverapi.Server
	metricsSrv   *http.Server
	metrics      *metrics.Metrics
	sched        scheduler.Scheduler

	cancel context.CancelFunc
}

// NewApp constructs and wires every App component.
func NewApp(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	app := &App{
		cfg: cfg,
		log: log.With().Str("component", "app").Logger(),
	}
	if err := app.initialize(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize app: %w", err)
	}
	return app, nil
}

func (a *App) initialize(ctx context.Context) error {
	reg, err := registry.NewGenesisService(a.cfg.Registry.GenesisPath, a.log)
	if err != nil {
		return fmt.Errorf("initialize registry: %w", err)
	}
	a.registry = reg

	f, err := a.initializeFacade(ctx)
	if err != nil {
		return fmt.Errorf("initialize facade: %w", err)
	}
	a.facade = f

	a.metrics = metrics.New()
	a.jobCollector = httpapi.NewJobCollector(ctx, a.log)

	if err := a.initializeHTTPServer(); err != nil {
		return fmt.Errorf("initialize http server: %w", err)
	}
	a.initializeMetricsServer()
	a.initializeScheduler()

	return nil
}

// initializeFacade dials the EVM rollup and light client RPC endpoints
// and wires every oracle the facade depends on.
func (a *App) initializeFacade(ctx context.Context) (*facade.Facade, error) {
	dialCtx, cancel := context.WithTimeout(ctx, startupTimeout)
	defer cancel()

	rollupRPC, err := ethclient.DialContext(dialCtx, a.cfg.EVM.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial EVM RPC %s: %w", a.cfg.EVM.RPCURL, err)
	}
	lightClientRPC, err := ethclient.DialContext(dialCtx, a.cfg.EVM.LightClientRPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial light client RPC %s: %w", a.cfg.EVM.LightClientRPCURL, err)
	}

	lightClient, err := evmrpc.NewLightClientAdapter(lightClientRPC, a.cfg.EVM.LightClientContractHex, a.log)
	if err != nil {
		return nil, fmt.Errorf("build light client adapter: %w", err)
	}

	indexerClient, err := indexer.NewClient(a.cfg.Indexer.URL, nil, a.log)
	if err != nil {
		return nil, fmt.Errorf("build indexer client: %w", err)
	}

	daClient, err := danode.NewClient(a.cfg.DA.NodeURL, a.cfg.DA.NodeAuthToken, nil, a.log)
	if err != nil {
		return nil, fmt.Errorf("build DA node client: %w", err)
	}

	nmtSource, err := nmt.NewHTTPSource(a.cfg.DA.NodeURL, nil, a.log)
	if err != nil {
		return nil, fmt.Errorf("build NMT source: %w", err)
	}

	namespace, err := decodeNamespace(a.cfg.DA.NamespaceHex)
	if err != nil {
		return nil, err
	}

	prover, err := a.buildProverClient()
	if err != nil {
		return nil, err
	}

	orch := &orchestrator.Orchestrator{
		Assembler: &witness.ClassicAssembler{Headers: daClient, Blobs: daClient, NMT: nmtSource},
		Prover:    prover,
		Log:       a.log,
	}

	var stateTransitionVK, stateMembershipVK []byte
	if a.cfg.Proving.Mode == config.ProverModeMock {
		stateTransitionVK = []byte("mock-state-transition-vk")
		stateMembershipVK = []byte("mock-state-membership-vk")
	}

	return &facade.Facade{
		Orchestrator:          orch,
		Indexer:               indexerClient,
		RollupHeight:          evmrpc.NewRollupClient(rollupRPC, a.log),
		LightClient:           lightClient,
		BlockInput:            evmrpc.NewRollupBlockFetcher(rollupRPC, a.log),
		Membership:            daClient,
		Namespace:             namespace,
		StateTransitionVKHash: stateTransitionVK,
		StateMembershipVKHash: stateMembershipVK,
		ServiceName:           "prover-node",
		Log:                   a.log,
	}, nil
}

// buildProverClient selects the proving backend per PROVER_MODE.
func (a *App) buildProverClient() (proverclient.ProverClient, error) {
	switch config.ProverMode(a.cfg.Proving.Mode) {
	case config.ProverModeCPU:
		return proverclient.NewHTTPClient(a.cfg.Proving.BackendURL, nil, a.log)
	case config.ProverModeMock:
		// mockEDSSize mirrors Celestia mainnet's current square size. The
		// mock client runs blockprogram.Program.Verify on every per-block
		// job, so its NMT and row-range checks take the square size from
		// this constant, not from the fetched DA header.
		const mockEDSSize = 128
		executor := blockprogram.RLPHeaderExecutor{
			OpcodeTracking: a.cfg.Proving.OpcodeTracking,
			Log:            a.log,
		}
		if a.cfg.Proving.CustomBeneficiaryHex != "" {
			raw, err := hex.DecodeString(strings.TrimPrefix(a.cfg.Proving.CustomBeneficiaryHex, "0x"))
			if err != nil {
				return nil, fmt.Errorf("decode proving.custom_beneficiary_hex: %w", err)
			}
			var beneficiary [types.AddressSize]byte
			copy(beneficiary[:], raw)
			executor.CustomBeneficiary = &beneficiary
		}
		program := &blockprogram.Program{Executor: executor, EDSSize: mockEDSSize}
		return proverclient.NewMockProverClient(program), nil
	default:
		return nil, fmt.Errorf("unknown prover mode %q", a.cfg.Proving.Mode)
	}
}

func decodeNamespace(namespaceHex string) (types.Namespace, error) {
	raw, err := hex.DecodeString(namespaceHex)
	if err != nil {
		return types.Namespace{}, fmt.Errorf("decode namespace hex: %w", err)
	}
	var ns types.Namespace
	copy(ns[:], raw)
	return ns, nil
}

// initializeHTTPServer builds the async job submission/status surface
// (internal/httpapi) plus health/readiness endpoints, reusing the
// teacher's server/api.Server and its middleware chain.
func (a *App) initializeHTTPServer() error {
	apiCfg := serverapi.Config{
		ListenAddr:        a.cfg.HTTP.ListenAddr,
		ReadHeaderTimeout: a.cfg.HTTP.ReadHeaderTimeout,
		ReadTimeout:       a.cfg.HTTP.ReadTimeout,
		WriteTimeout:      a.cfg.HTTP.WriteTimeout,
		IdleTimeout:       a.cfg.HTTP.IdleTimeout,
		MaxHeaderBytes:    a.cfg.HTTP.MaxHeaderBytes,
	}
	s := serverapi.NewServer(apiCfg, a.log)
	s.Use(apimw.Recover(a.log))
	s.Use(apimw.RequestID())
	s.Use(apimw.Logger(a.log))

	s.Router.HandleFunc("/health", a.handleHealth).Methods(http.MethodGet)
	s.Router.HandleFunc("/ready", a.handleReady).Methods(http.MethodGet)

	handler := httpapi.NewHandler(a.facade, a.jobCollector, a.log)
	handler.RegisterMux(s.Router)

	a.httpServer = s
	return nil
}

// initializeMetricsServer starts a dedicated listener for /metrics,
// separate from the job-submission HTTP surface, per SPEC_FULL.md's
// ambient ops section.
func (a *App) initializeMetricsServer() {
	if !a.cfg.Metrics.Enabled {
		return
	}
	mux := http.NewServeMux()
	mux.Handle(a.cfg.Metrics.Path, promhttp.HandlerFor(a.metrics.Registry(), promhttp.HandlerOpts{}))
	a.metricsSrv = &http.Server{
		Addr:    fmt.Sprintf(":%d", a.cfg.Metrics.Port),
		Handler: mux,
	}
}

// initializeScheduler builds the periodic re-check driver: every tick,
// attempt prove_state_transition for every active rollup in the
// registry, tolerating AlreadyCurrent as the expected steady state.
func (a *App) initializeScheduler() {
	s := scheduler.NewPollScheduler(scheduler.Config{
		Interval: a.cfg.Scheduler.Interval,
		Logger:   a.log,
	})
	s.SetHandler(func(ctx context.Context, tick scheduler.Tick) error {
		return a.recheckActiveRollups(ctx, tick)
	})
	a.sched = s
}

func (a *App) recheckActiveRollups(ctx context.Context, tick scheduler.Tick) error {
	chainIDs, err := a.registry.GetActiveRollups(ctx)
	if err != nil {
		return fmt.Errorf("list active rollups: %w", err)
	}

	for _, chainID := range chainIDs {
		clientID := hex.EncodeToString(chainID)
		start := time.Now()
		_, _, _, err := a.facade.ProveStateTransition(ctx, clientID)
		a.metrics.RecordProvingDuration("state_transition", time.Since(start).Seconds())

		var proverErr *errs.ProverErr
		switch {
		case err == nil:
			a.log.Info().Str("client_id", clientID).Uint64("tick", tick.Sequence).Msg("advanced light client")
		case errors.As(err, &proverErr) && proverErr.Kind == errs.TypeAlreadyCurrent:
			a.log.Debug().Str("client_id", clientID).Msg("light client already current")
		default:
			a.metrics.RecordError("scheduler_recheck_failed", "state_transition")
			a.log.Error().Err(err).Str("client_id", clientID).Msg("failed to advance light client")
		}
	}
	return nil
}

// Run starts every subsystem and blocks until a shutdown signal or
// context cancellation, then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	if err := a.sched.Start(runCtx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	go func() {
		if err := a.httpServer.Start(runCtx); err != nil {
			a.log.Error().Err(err).Msg("HTTP server error")
		}
	}()

	if a.metricsSrv != nil {
		go func() {
			a.log.Info().Str("addr", a.metricsSrv.Addr).Msg("metrics server starting")
			if err := a.metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.log.Error().Err(err).Msg("metrics server error")
			}
		}()
	}

	return a.runWithGracefulShutdown(runCtx)
}

func (a *App) runWithGracefulShutdown(ctx context.Context) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	a.log.Info().Msg("prover-node started successfully")

	select {
	case <-ctx.Done():
		a.log.Info().Msg("context canceled, initiating shutdown")
	case sig := <-sigCh:
		a.log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
	}

	if a.cancel != nil {
		a.cancel()
	}
	return a.shutdown()
}

func (a *App) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := a.sched.Stop(shutdownCtx); err != nil {
		a.log.Error().Err(err).Msg("scheduler shutdown error")
	}
	if a.metricsSrv != nil {
		if err := a.metricsSrv.Shutdown(shutdownCtx); err != nil {
			a.log.Error().Err(err).Msg("metrics server shutdown error")
		}
	}
	a.jobCollector.Close()

	a.log.Info().Msg("graceful shutdown complete")
	return nil
}

func (a *App) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"healthy","timestamp":"%s"}`, time.Now().UTC().Format(time.RFC3339))
}

func (a *App) handleReady(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"ready"}`)
}
