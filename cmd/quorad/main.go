package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"quorachain/config"
	"quorachain/core/events"
	"quorachain/core/execution"
	"quorachain/core/genesis"
	"quorachain/core/state"
	"quorachain/crypto"
	"quorachain/native/asset"
	"quorachain/native/governance"
	"quorachain/native/metadata"
	"quorachain/observability/logging"
	"quorachain/storage"
)

var genesisAppliedKey = []byte("quorad/genesis-applied")

type blockFile struct {
	Height      uint64   `json:"height"`
	Timestamp   uint64   `json:"timestamp"`
	CyclesLimit uint64   `json:"cyclesLimit"`
	Proposer    string   `json:"proposer"`
	Txs         []txSpec `json:"txs"`
}

type txSpec struct {
	Caller      string          `json:"caller"`
	Service     string          `json:"service"`
	Method      string          `json:"method"`
	Payload     json.RawMessage `json:"payload"`
	CyclesLimit uint64          `json:"cyclesLimit"`
}

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	genesisFlag := flag.String("genesis", "", "Path to a genesis spec JSON file (overrides config GenesisFile)")
	blockFlag := flag.String("block", "", "Path to a block JSON file to execute after bootstrap")
	logLevelFlag := flag.String("log-level", "info", "Log level: debug, info, warn, or error")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("QUORA_ENV"))
	logger := logging.Setup("quorad", env, logging.ParseLevel(*logLevelFlag))

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Error("Failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "chaindata"))
	if err != nil {
		logger.Error("Failed to open database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	registry := execution.NewRegistry()
	gateway := execution.NewGateway(registry)

	metadataSvc := metadata.NewService(state.NewServiceStore(db, metadata.ServiceName))
	assetSvc := asset.NewService(state.NewServiceStore(db, asset.ServiceName))
	governanceSvc := governance.NewService(state.NewServiceStore(db, governance.ServiceName), gateway)
	governanceSvc.SetLogger(logger)
	governanceSvc.SetClearProfitsOnSettle(cfg.ClearProfitsOnSettle)

	for _, svc := range []execution.Service{metadataSvc, assetSvc, governanceSvc} {
		if err := registry.Register(svc); err != nil {
			logger.Error("Failed to register service", slog.Any("error", err))
			os.Exit(1)
		}
	}

	dispatcher := execution.NewDispatcher(registry)
	dispatcher.SetLogger(logger)
	emitter := &events.MemoryEmitter{}
	dispatcher.SetEmitter(emitter)

	if err := bootstrapGenesis(db, dispatcher, cfg, *genesisFlag, logger); err != nil {
		logger.Error("Genesis bootstrap failed", slog.Any("error", err))
		os.Exit(1)
	}

	if *blockFlag != "" {
		if err := executeBlockFile(dispatcher, *blockFlag, logger); err != nil {
			logger.Error("Block execution failed", slog.Any("error", err))
			os.Exit(1)
		}
		for _, evt := range emitter.Events {
			logger.Info("event", slog.String("service", evt.Service), slog.String("topic", evt.Topic), slog.String("payload", evt.Payload))
		}
		return
	}

	http.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: cfg.MetricsAddress}
	go func() {
		logger.Info("Serving metrics", slog.String("address", cfg.MetricsAddress))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Metrics server failed", slog.Any("error", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info("Shutting down")
	server.Close()
}

func bootstrapGenesis(db storage.Database, dispatcher *execution.Dispatcher, cfg *config.Config, override string, logger *slog.Logger) error {
	applied, err := db.Has(genesisAppliedKey)
	if err != nil {
		return err
	}
	if applied {
		logger.Info("Genesis already applied, skipping")
		return nil
	}

	path := cfg.GenesisFile
	if override != "" {
		path = override
	}
	spec, err := genesis.LoadFromFile(path)
	if err != nil {
		return err
	}
	if err := spec.Apply(dispatcher); err != nil {
		return err
	}
	if err := db.Put(genesisAppliedKey, []byte{1}); err != nil {
		return err
	}
	logger.Info("Genesis applied",
		slog.Uint64("chainId", spec.ChainID),
		slog.Uint64("timestamp", spec.Timestamp()))
	return nil
}

func executeBlockFile(dispatcher *execution.Dispatcher, path string, logger *slog.Logger) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read block file %s: %w", path, err)
	}
	var block blockFile
	if err := json.Unmarshal(data, &block); err != nil {
		return fmt.Errorf("decode block file %s: %w", path, err)
	}

	params := execution.BlockParams{
		Height:      block.Height,
		Timestamp:   block.Timestamp,
		CyclesLimit: block.CyclesLimit,
	}
	if strings.TrimSpace(block.Proposer) != "" {
		proposer, err := crypto.DecodeAddress(block.Proposer)
		if err != nil {
			return fmt.Errorf("decode proposer: %w", err)
		}
		params.Proposer = proposer
	}

	txs := make([]execution.Transaction, 0, len(block.Txs))
	for i, spec := range block.Txs {
		caller, err := crypto.DecodeAddress(spec.Caller)
		if err != nil {
			return fmt.Errorf("tx %d: decode caller: %w", i, err)
		}
		txs = append(txs, execution.Transaction{
			Caller:      caller,
			Service:     spec.Service,
			Method:      spec.Method,
			Payload:     string(spec.Payload),
			CyclesLimit: spec.CyclesLimit,
		})
	}

	responses := dispatcher.ExecBlock(params, txs)
	for i, resp := range responses {
		if resp.IsError() {
			logger.Warn("transaction failed",
				slog.Int("index", i),
				slog.Uint64("code", resp.Code),
				slog.String("error", resp.ErrorMessage))
			continue
		}
		logger.Info("transaction applied", slog.Int("index", i), slog.String("data", resp.Data))
	}
	return nil
}
