package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/tainadesingsil-coder/Interaopen/internal/config"
	"github.com/tainadesingsil-coder/Interaopen/internal/db"
	"github.com/tainadesingsil-coder/Interaopen/internal/edge/bridge"
	"github.com/tainadesingsil-coder/Interaopen/internal/edge/crypto"
	"github.com/tainadesingsil-coder/Interaopen/internal/edge/orchestrator"
	"github.com/tainadesingsil-coder/Interaopen/internal/edge/replay"
	"github.com/tainadesingsil-coder/Interaopen/internal/edge/service"
	sqlitestore "github.com/tainadesingsil-coder/Interaopen/internal/edge/store/sqlite"
	"github.com/tainadesingsil-coder/Interaopen/internal/httpapi"
	"github.com/tainadesingsil-coder/Interaopen/internal/lockctl"
)

func main() {
	cfg := config.FromEnv()

	zapCfg := zap.NewProductionConfig()
	if cfg.Debug {
		zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err := zapCfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cipher, err := crypto.NewCipher(cfg.AESKeyB64)
	if err != nil {
		logger.Fatal("EDGE_AES256_KEY_B64 is unusable", zap.Error(err))
	}

	tables, err := config.LoadTables(cfg.TablesPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Warn("tables file missing; starting with empty credential and beacon tables",
				zap.String("path", cfg.TablesPath))
		} else {
			logger.Fatal("load tables", zap.Error(err))
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := db.Open(ctx, db.Config{Path: cfg.DBPath})
	if err != nil {
		logger.Fatal("open database", zap.Error(err))
	}
	defer conn.Close()

	writer := db.NewWorker(conn)
	defer writer.Close()

	outbox := sqlitestore.NewOutboxStore(conn, writer)

	accessSvc := service.NewAccessService(service.CredentialTable(tables.Credentials))
	coercionSvc := service.NewCoercionService(service.CoercionConfig{
		HRThreshold:    cfg.HRThreshold,
		StepsThreshold: cfg.StepsThreshold,
		Cooldown:       cfg.AlertCooldown,
	})
	roundsSvc := service.NewRoundsService(service.RoundsConfig{
		MinRSSI:           cfg.BeaconMinRSSI,
		BeaconCheckpoints: tables.BeaconCheckpoints,
		Cooldown:          cfg.CheckinCooldown,
	})

	var lock service.LockController
	if cfg.LockControllerURL != "" {
		lock = lockctl.NewClient(cfg.LockControllerURL)
	}

	// The hardware BLE driver is linked in separately; without it the
	// HTTP surface still serves decisions and the loops no-op or retry.
	device := bridge.NewUnavailable()

	router := service.NewEventRouter(service.RouterDeps{
		Cipher:    cipher,
		Coercion:  coercionSvc,
		Access:    accessSvc,
		Outbox:    outbox,
		Device:    device,
		Lock:      lock,
		Logger:    logger,
		MirrorURL: cfg.TelemetryMirrorURL,
	})

	replayer := replay.NewReplayer(outbox, replay.Config{
		RemoteURL: cfg.SyncURL,
		BatchSize: cfg.SyncBatch,
	}, logger)

	orch := orchestrator.New(orchestrator.Config{
		DeviceAddress:  cfg.WatchAddress,
		GuardID:        cfg.GuardID,
		RemoteURL:      cfg.SyncURL,
		ConnectBackoff: cfg.ConnectBackoff,
		ScanWindow:     cfg.ScanWindow,
		ScanRetry:      cfg.ScanRetry,
		ReplayInterval: cfg.SyncInterval,
	}, device, router, roundsSvc, outbox, replayer, logger)

	srv := httpapi.NewServer(httpapi.Dependencies{
		Logger: logger,
		Addr:   cfg.HTTPAddr,
		Cipher: cipher,
		Router: router,
	})

	go func() {
		logger.Info("listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", zap.Error(err))
			stop()
		}
	}()

	orchDone := make(chan error, 1)
	go func() { orchDone <- orch.Run(ctx) }()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)

	if err := <-orchDone; err != nil {
		logger.Error("orchestrator exit", zap.Error(err))
	}
}
