package orchestrator_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/tainadesingsil-coder/Interaopen/internal/edge/bridge"
	"github.com/tainadesingsil-coder/Interaopen/internal/edge/orchestrator"
	"github.com/tainadesingsil-coder/Interaopen/internal/edge/service"
	"github.com/tainadesingsil-coder/Interaopen/internal/edge/store/memory"
	"github.com/tainadesingsil-coder/Interaopen/internal/edge/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// loopBridge is a scriptable bridge for loop tests. ScanOnce blocks for the
// window (or cancellation) before returning, like a real timed scan.
type loopBridge struct {
	mu          sync.Mutex
	connected   bool
	connectErr  error
	scanErr     error
	sightings   []types.BeaconSighting
	connects    int
	scans       int
	disconnects int
	handler     bridge.NotificationHandler
}

func (b *loopBridge) Connect(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connects++
	if b.connectErr != nil {
		return b.connectErr
	}
	b.connected = true
	return nil
}

func (b *loopBridge) Disconnect(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.disconnects++
	b.connected = false
	return nil
}

func (b *loopBridge) IsConnected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connected
}

func (b *loopBridge) SendCommand(context.Context, []byte) error { return nil }

func (b *loopBridge) ScanOnce(ctx context.Context, _ []string, window time.Duration) ([]types.BeaconSighting, error) {
	t := time.NewTimer(window)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-t.C:
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.scans++
	if b.scanErr != nil {
		return nil, b.scanErr
	}
	out := make([]types.BeaconSighting, len(b.sightings))
	copy(out, b.sightings)
	return out, nil
}

func (b *loopBridge) OnNotification(h bridge.NotificationHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handler = h
}

func (b *loopBridge) counts() (connects, scans, disconnects int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connects, b.scans, b.disconnects
}

func newTestOrchestrator(t *testing.T, cfg orchestrator.Config, device *loopBridge, checkpoints map[string]string) (*orchestrator.Orchestrator, *memory.OutboxStore) {
	t.Helper()

	outbox := memory.NewOutboxStore()
	rounds := service.NewRoundsService(service.RoundsConfig{
		MinRSSI:           -80,
		BeaconCheckpoints: checkpoints,
	})
	router := service.NewEventRouter(service.RouterDeps{
		Coercion: service.NewCoercionService(service.CoercionConfig{HRThreshold: 130, StepsThreshold: 5}),
		Access:   service.NewAccessService(nil),
		Outbox:   outbox,
		Device:   device,
		Logger:   zap.NewNop(),
	})
	return orchestrator.New(cfg, device, router, rounds, outbox, nil, zap.NewNop()), outbox
}

func runFor(t *testing.T, o *orchestrator.Orchestrator, d time.Duration) error {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- o.Run(ctx) }()

	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("orchestrator did not stop after cancellation")
		return nil
	}
}

func TestRun_AllLoopsDisabledReturnsPromptly(t *testing.T) {
	device := &loopBridge{}
	o, outbox := newTestOrchestrator(t, orchestrator.Config{}, device, nil)

	// No address, no checkpoints, no remote: every loop no-ops.
	err := runFor(t, o, 50*time.Millisecond)
	require.NoError(t, err)

	connects, scans, _ := device.counts()
	assert.Zero(t, connects)
	assert.Zero(t, scans)
	assert.Empty(t, outbox.Events())
}

func TestRun_DisconnectsBridgeOnShutdown(t *testing.T) {
	device := &loopBridge{}
	o, _ := newTestOrchestrator(t, orchestrator.Config{
		DeviceAddress:  "AA:BB:CC:DD:EE:FF",
		ConnectBackoff: time.Hour,
	}, device, nil)

	require.NoError(t, runFor(t, o, 50*time.Millisecond))

	_, _, disconnects := device.counts()
	assert.Equal(t, 1, disconnects)
	assert.False(t, device.IsConnected())
}

func TestRun_ConnectionFailureRecordedAndRetried(t *testing.T) {
	device := &loopBridge{connectErr: errors.New("device unreachable")}
	o, outbox := newTestOrchestrator(t, orchestrator.Config{
		DeviceAddress:  "AA:BB:CC:DD:EE:FF",
		ConnectBackoff: 10 * time.Millisecond,
	}, device, nil)

	require.NoError(t, runFor(t, o, 60*time.Millisecond))

	connects, _, _ := device.counts()
	assert.GreaterOrEqual(t, connects, 2, "connect should be retried on backoff")

	events := outbox.Events()
	require.NotEmpty(t, events)
	for _, ev := range events {
		assert.Equal(t, service.EventConnectionError, ev.EventType)
		assert.Equal(t, "device unreachable", ev.Payload["error"])
	}
}

func TestRun_ScanSightingsBecomeCheckins(t *testing.T) {
	device := &loopBridge{
		connected: true,
		sightings: []types.BeaconSighting{
			{BeaconID: "AA:11", RSSI: -60},
			{BeaconID: "FF:99", RSSI: -55}, // unmapped, dropped
		},
	}
	o, outbox := newTestOrchestrator(t, orchestrator.Config{
		GuardID:    "guard-1",
		ScanWindow: 10 * time.Millisecond,
	}, device, map[string]string{"AA:11": "lobby"})

	require.NoError(t, runFor(t, o, 80*time.Millisecond))

	// Multiple scan passes completed, but the cooldown keeps the lobby
	// check-in to exactly one event.
	_, scans, _ := device.counts()
	assert.GreaterOrEqual(t, scans, 2)

	events := outbox.Events()
	require.Len(t, events, 1)
	assert.Equal(t, service.EventRoundCheckin, events[0].EventType)
	assert.Equal(t, "guard-1", events[0].Payload["guard_id"])
	assert.Equal(t, "lobby", events[0].Payload["checkpoint"])
}

func TestRun_ScanFailureRecordedAndLoopContinues(t *testing.T) {
	device := &loopBridge{scanErr: errors.New("radio busy")}
	o, outbox := newTestOrchestrator(t, orchestrator.Config{
		GuardID:    "guard-1",
		ScanWindow: 5 * time.Millisecond,
		ScanRetry:  5 * time.Millisecond,
	}, device, map[string]string{"AA:11": "lobby"})

	require.NoError(t, runFor(t, o, 60*time.Millisecond))

	_, scans, _ := device.counts()
	assert.GreaterOrEqual(t, scans, 2, "scan should be retried after a failure")

	events := outbox.Events()
	require.NotEmpty(t, events)
	for _, ev := range events {
		assert.Equal(t, service.EventScanError, ev.EventType)
	}
}

func TestRun_NotificationsReachTheRouter(t *testing.T) {
	device := &loopBridge{}
	o, outbox := newTestOrchestrator(t, orchestrator.Config{}, device, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- o.Run(ctx) }()

	// Run registers the handler before starting the loops, but give the
	// goroutine a moment to get there.
	require.Eventually(t, func() bool {
		device.mu.Lock()
		defer device.mu.Unlock()
		return device.handler != nil
	}, time.Second, 5*time.Millisecond)

	device.mu.Lock()
	h := device.handler
	device.mu.Unlock()
	h([]byte("garbled packet"))

	events := outbox.Events()
	require.Len(t, events, 1)
	assert.Equal(t, service.EventRawPacket, events[0].EventType)

	cancel()
	require.NoError(t, <-done)
}
