// Package orchestrator wires the operation builder, relayer, delegation
// oracle, and submission store into one long-running service with an HTTP
// surface.
package orchestrator

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/go-co-op/gocron/v2"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/cluster1900/eip7702-fulldemo-sub000/core/chainio/delegate"
	"github.com/cluster1900/eip7702-fulldemo-sub000/core/config"
	"github.com/cluster1900/eip7702-fulldemo-sub000/core/services"
	"github.com/cluster1900/eip7702-fulldemo-sub000/metrics"
	"github.com/cluster1900/eip7702-fulldemo-sub000/pkg/eip7702/relayer"
	"github.com/cluster1900/eip7702-fulldemo-sub000/pkg/logger"
	"github.com/cluster1900/eip7702-fulldemo-sub000/storage"
	"github.com/cluster1900/eip7702-fulldemo-sub000/version"
)

const sweepInterval = 15 * time.Second

type OrchestratorStatus string

const (
	initStatus     OrchestratorStatus = "init"
	runningStatus  OrchestratorStatus = "running"
	shutdownStatus OrchestratorStatus = "shutdown"
)

func RunWithConfig(configPath string) error {
	nodeConfig, err := config.NewConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to parse config file %s, make sure it exists and is valid yaml: %w", configPath, err)
	}

	orch, err := NewOrchestrator(nodeConfig)
	if err != nil {
		return fmt.Errorf("cannot initialize orchestrator from config: %w", err)
	}

	return orch.Start(context.Background())
}

type Orchestrator struct {
	logger logger.Logger
	config *config.Config

	ethRpcClient *ethclient.Client
	rpcClient    *relayer.SettlementClient
	oracle       *relayer.Oracle
	relayer      *relayer.Relayer

	db          storage.Storage
	submissions *SubmissionStore

	tokenMeta *services.TokenMetadataService
	metrics   metrics.MetricsGenerator
	registry  *prometheus.Registry

	scheduler gocron.Scheduler

	status    OrchestratorStatus
	startedAt time.Time
}

// NewOrchestrator creates an Orchestrator with the provided config. Network
// clients are dialed in Start, not here, so a bad RPC endpoint fails loudly
// at startup instead of at construction.
func NewOrchestrator(c *config.Config) (*Orchestrator, error) {
	registry := prometheus.NewRegistry()

	return &Orchestrator{
		logger:   c.Logger,
		config:   c,
		metrics:  metrics.NewOrchestratorMetrics(registry),
		registry: registry,
		status:   initStatus,
	}, nil
}

// init dials the chain and relay endpoints and builds the relayer stack on
// top of them.
func (orch *Orchestrator) init(ctx context.Context) error {
	var err error

	orch.ethRpcClient, err = ethclient.Dial(orch.config.EthRpcUrl)
	if err != nil {
		return fmt.Errorf("cannot dial eth rpc %s: %w", orch.config.EthRpcUrl, err)
	}

	chainID, err := orch.ethRpcClient.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("cannot query chain id: %w", err)
	}
	if chainID.Cmp(orch.config.ChainID) != 0 {
		return fmt.Errorf("configured chain id %s does not match node chain id %s", orch.config.ChainID, chainID)
	}

	delegate.SetSettlementAddress(orch.config.SettlementAddress)

	orch.rpcClient, err = relayer.NewSettlementClient(orch.config.RelayRpcUrl)
	if err != nil {
		return fmt.Errorf("cannot dial relay rpc %s: %w", orch.config.RelayRpcUrl, err)
	}

	cache, err := relayer.NewCache(orch.config.OracleCacheTTL)
	if err != nil {
		return fmt.Errorf("cannot initialize oracle cache: %w", err)
	}
	orch.oracle = relayer.NewOracle(orch.ethRpcClient, cache, orch.logger)

	policy := relayer.DefaultRetryPolicy()
	policy.OnRetry = func(kind relayer.FailureKind) {
		orch.metrics.IncNumRelayRetries(kind.String())
	}

	orch.relayer = relayer.New(
		orch.ethRpcClient,
		orch.rpcClient,
		orch.oracle,
		orch.config.ChainID,
		policy,
		orch.logger,
	)

	orch.tokenMeta = services.NewTokenMetadataService(
		orch.config.TokenMetadataURL,
		orch.ethRpcClient,
		orch.logger,
	)

	return nil
}

// Open and setup our database
func (orch *Orchestrator) initDB() error {
	var err error
	orch.db, err = storage.NewWithPath(orch.config.StoragePath)
	if err != nil {
		return err
	}

	orch.submissions = NewSubmissionStore(orch.db)

	return orch.db.Setup()
}

func (orch *Orchestrator) startSweeper(ctx context.Context) error {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return err
	}
	orch.scheduler = scheduler

	_, err = scheduler.NewJob(
		gocron.DurationJob(sweepInterval),
		gocron.NewTask(func() {
			orch.sweepPendingSubmissions(ctx)
		}),
	)
	if err != nil {
		return err
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(time.Minute),
		gocron.NewTask(func() {
			orch.metrics.AddUptime(float64(time.Since(orch.startedAt).Milliseconds()))
			orch.startedAt = time.Now()
			if err := orch.db.Vacuum(); err != nil {
				// badger returns an error when there is nothing to collect
				orch.logger.Debugf("storage vacuum skipped: %v", err)
			}
		}),
	)
	if err != nil {
		return err
	}

	scheduler.Start()
	return nil
}

func (orch *Orchestrator) Start(ctx context.Context) error {
	orch.logger.Infof("Starting orchestrator %s", version.Get())
	orch.startedAt = time.Now()

	if err := orch.init(ctx); err != nil {
		return err
	}

	orch.logger.Infof("Initialize storage")
	if err := orch.initDB(); err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	orch.logger.Infof("Starting receipt sweeper")
	if err := orch.startSweeper(ctx); err != nil {
		return fmt.Errorf("failed to start sweeper: %w", err)
	}

	orch.logger.Infof("Starting http server")
	orch.startHttpServer(ctx)
	orch.status = runningStatus

	// Setup wait signal
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan bool, 1)
	go func() {
		<-sigs
		done <- true
	}()

	<-done
	orch.logger.Infof("Shutting down...")

	orch.status = shutdownStatus
	if orch.scheduler != nil {
		if err := orch.scheduler.Shutdown(); err != nil {
			orch.logger.Warnf("scheduler shutdown: %v", err)
		}
	}

	return orch.db.Close()
}

func (orch *Orchestrator) IsShutdown() bool {
	return orch.status == shutdownStatus
}
