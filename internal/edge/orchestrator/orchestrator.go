// Package orchestrator owns the three long-lived background loops
// (device connection, proximity scanning, outbox replay) and the
// shutdown sequence that stops them cleanly.
package orchestrator

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tainadesingsil-coder/Interaopen/internal/edge/bridge"
	"github.com/tainadesingsil-coder/Interaopen/internal/edge/replay"
	"github.com/tainadesingsil-coder/Interaopen/internal/edge/service"
	"github.com/tainadesingsil-coder/Interaopen/internal/edge/store"
)

const (
	DefaultConnectBackoff = 8 * time.Second
	DefaultScanWindow     = 4 * time.Second
	DefaultScanRetry      = 2 * time.Second
	DefaultReplayInterval = 30 * time.Second
)

type Config struct {
	// DeviceAddress is the wearable's transport address. Empty disables
	// the connection loop.
	DeviceAddress string

	// GuardID attributes proximity sightings to the guard carrying the
	// paired wearable.
	GuardID string

	// RemoteURL is the replay endpoint. Empty disables the replay loop.
	RemoteURL string

	ConnectBackoff time.Duration
	ScanWindow     time.Duration
	ScanRetry      time.Duration
	ReplayInterval time.Duration
}

// Orchestrator runs the three loops under one cancellation signal. The
// loops are isolated: a failure in one is recorded and retried on that
// loop's own schedule and never stops the others. Only cancellation ends
// a loop.
type Orchestrator struct {
	cfg      Config
	device   bridge.DeviceBridge
	router   *service.EventRouter
	rounds   *service.RoundsService
	outbox   store.OutboxStore
	replayer *replay.Replayer
	logger   *zap.Logger
}

func New(
	cfg Config,
	device bridge.DeviceBridge,
	router *service.EventRouter,
	rounds *service.RoundsService,
	outbox store.OutboxStore,
	replayer *replay.Replayer,
	logger *zap.Logger,
) *Orchestrator {
	if cfg.ConnectBackoff <= 0 {
		cfg.ConnectBackoff = DefaultConnectBackoff
	}
	if cfg.ScanWindow <= 0 {
		cfg.ScanWindow = DefaultScanWindow
	}
	if cfg.ScanRetry <= 0 {
		cfg.ScanRetry = DefaultScanRetry
	}
	if cfg.ReplayInterval <= 0 {
		cfg.ReplayInterval = DefaultReplayInterval
	}
	return &Orchestrator{
		cfg:      cfg,
		device:   device,
		router:   router,
		rounds:   rounds,
		outbox:   outbox,
		replayer: replayer,
		logger:   logger,
	}
}

// Run blocks until ctx is cancelled. The device bridge is torn down on the
// way out regardless of which loop observed cancellation first.
func (o *Orchestrator) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	o.device.OnNotification(func(data []byte) {
		o.router.HandleNotification(ctx, data)
	})

	g.Go(func() error { return o.connectionLoop(ctx) })
	g.Go(func() error { return o.scanLoop(ctx) })
	g.Go(func() error { return o.replayLoop(ctx) })

	err := g.Wait()

	// Teardown must not depend on the cancelled run context.
	discCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if derr := o.device.Disconnect(discCtx); derr != nil {
		o.logger.Warn("bridge disconnect on shutdown", zap.Error(derr))
	}

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (o *Orchestrator) connectionLoop(ctx context.Context) error {
	if o.cfg.DeviceAddress == "" {
		o.logger.Info("connection loop disabled: no device address configured")
		return nil
	}

	for {
		if !o.device.IsConnected() {
			if err := o.device.Connect(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				o.recordLoopError(ctx, service.EventConnectionError, err)
			} else {
				o.logger.Info("watch connected", zap.String("address", o.cfg.DeviceAddress))
			}
		}
		if err := sleep(ctx, o.cfg.ConnectBackoff); err != nil {
			return err
		}
	}
}

func (o *Orchestrator) scanLoop(ctx context.Context) error {
	if !o.rounds.HasCheckpoints() {
		o.logger.Info("scan loop disabled: no beacon checkpoints configured")
		return nil
	}
	beaconIDs := o.rounds.BeaconIDs()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		sightings, err := o.device.ScanOnce(ctx, beaconIDs, o.cfg.ScanWindow)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			o.recordLoopError(ctx, service.EventScanError, err)
			if err := sleep(ctx, o.cfg.ScanRetry); err != nil {
				return err
			}
			continue
		}

		for _, s := range sightings {
			checkin := o.rounds.RegisterSighting(o.cfg.GuardID, s.BeaconID, s.RSSI, s.SeenAt)
			if checkin == nil {
				continue
			}
			if _, err := o.outbox.Append(ctx, service.EventRoundCheckin, service.CheckinPayload(checkin)); err != nil {
				o.logger.Error("record check-in failed", zap.Error(err))
			}
			o.logger.Info("round check-in",
				zap.String("guard_id", checkin.GuardID),
				zap.String("checkpoint", checkin.Checkpoint),
				zap.Int("rssi", checkin.RSSI))
		}
	}
}

func (o *Orchestrator) replayLoop(ctx context.Context) error {
	if o.cfg.RemoteURL == "" {
		o.logger.Info("replay loop disabled: no remote endpoint configured")
		return nil
	}

	ticker := time.NewTicker(o.cfg.ReplayInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		if err := o.replayer.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			o.logger.Error("outbox replay pass failed", zap.Error(err))
		}
	}
}

func (o *Orchestrator) recordLoopError(ctx context.Context, eventType string, loopErr error) {
	if _, err := o.outbox.Append(ctx, eventType, map[string]any{"error": loopErr.Error()}); err != nil {
		o.logger.Error("record loop error failed",
			zap.String("event_type", eventType),
			zap.Error(err))
	}
}

// sleep waits for d or until ctx is cancelled, whichever comes first.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
