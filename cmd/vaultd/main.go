package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"crowdvault/config"
	"crowdvault/core/state"
	"crowdvault/native/common"
	"crowdvault/native/dispute"
	"crowdvault/native/escrow"
	"crowdvault/native/system"
	"crowdvault/observability"
	"crowdvault/observability/logging"
	"crowdvault/storage"
)

func main() {
	configPath := flag.String("config", "./config.toml", "path to the TOML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Setup("vaultd", "").Error("failed to load config", "path", *configPath, "error", err)
		os.Exit(1)
	}
	logger := logging.Setup("vaultd", cfg.Environment)

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		logger.Error("failed to open database", "dir", cfg.DataDir, "error", err)
		os.Exit(1)
	}
	defer db.Close()
	manager := state.NewManager(db)

	if err := manager.RegisterToken(cfg.DisputeToken, cfg.DisputeToken, 6); err != nil {
		logger.Error("failed to register dispute token", "token", cfg.DisputeToken, "error", err)
		os.Exit(1)
	}

	emitter := observability.NewEventCounter()

	sys := system.NewEngine()
	sys.SetState(manager)
	sys.SetEmitter(emitter)

	esc := escrow.NewEngine()
	esc.SetState(manager)
	esc.SetTransferer(manager)
	esc.SetAdminView(sys)
	esc.SetPauseView(sys)
	esc.SetEmitter(emitter)
	esc.SetVault(state.ModuleVaultAddress(common.ModuleEscrow))

	disp := dispute.NewEngine()
	disp.SetState(manager)
	disp.SetTransferer(manager)
	disp.SetEscrowBridge(esc)
	disp.SetAdminView(sys)
	disp.SetPauseView(sys)
	disp.SetEmitter(emitter)
	disp.SetVault(state.ModuleVaultAddress(common.ModuleDispute))
	disp.SetWindows(cfg.CommitWindowSeconds, cfg.RevealWindowSeconds, cfg.AppealWindowSeconds)
	esc.SetDisputeView(disp)

	observability.Vault().SetPause(sys.IsPaused(common.ModuleEscrow))
	if pool, err := disp.FeePool(); err == nil {
		observability.Vault().SetFeePool(pool)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: cfg.MetricsAddress, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
			os.Exit(1)
		}
	}()

	logger.Info("vaultd started",
		"data_dir", cfg.DataDir,
		"metrics_address", cfg.MetricsAddress,
		"dispute_token", cfg.DisputeToken,
	)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("metrics server shutdown failed", "error", err)
	}
}
