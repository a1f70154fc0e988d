package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/tainadesingsil-coder/Interaopen/internal/edge/bridge"
	"github.com/tainadesingsil-coder/Interaopen/internal/edge/crypto"
	"github.com/tainadesingsil-coder/Interaopen/internal/edge/store"
	"github.com/tainadesingsil-coder/Interaopen/internal/edge/types"
)

// Outbox event types appended by the router and the background loops.
const (
	EventCoercionAlert   = "silent_coercion_alert"
	EventAccessDecision  = "intercom_access_decision"
	EventRoundCheckin    = "round_checkin"
	EventPacketError     = "watch_packet_error"
	EventRawPacket       = "watch_raw_packet"
	EventUnknownPacket   = "watch_unknown_packet"
	EventNotifyError     = "watch_notify_error"
	EventLockError       = "lock_trigger_error"
	EventConnectionError = "watch_connection_error"
	EventScanError       = "beacon_scan_error"
)

// LockController actuates the local lock. Called only on granted decisions.
type LockController interface {
	Unlock(ctx context.Context, lockID string) error
}

type RouterDeps struct {
	Cipher   *crypto.Cipher
	Coercion *CoercionService
	Access   *AccessService
	Outbox   store.OutboxStore
	Device   bridge.DeviceBridge
	Lock     LockController // optional
	Logger   *zap.Logger

	// MirrorURL, when set, receives a best-effort copy of every telemetry
	// sample. Mirror failures never affect the primary path.
	MirrorURL  string
	HTTPClient *http.Client
}

// EventRouter is the single entry point for inbound events from both the
// wearable notification stream and the HTTP shell. Every outcome it
// produces (decision, alert, or error) lands in the outbox exactly once.
type EventRouter struct {
	cipher    *crypto.Cipher
	coercion  *CoercionService
	access    *AccessService
	outbox    store.OutboxStore
	device    bridge.DeviceBridge
	lock      LockController
	mirrorURL string
	client    *http.Client
	logger    *zap.Logger
}

func NewEventRouter(d RouterDeps) *EventRouter {
	client := d.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &EventRouter{
		cipher:    d.Cipher,
		coercion:  d.Coercion,
		access:    d.Access,
		outbox:    d.Outbox,
		device:    d.Device,
		lock:      d.Lock,
		mirrorURL: d.MirrorURL,
		client:    client,
		logger:    d.Logger,
	}
}

// HandleNotification decodes and dispatches one raw wearable notification.
func (r *EventRouter) HandleNotification(ctx context.Context, raw []byte) {
	r.HandlePacket(ctx, bridge.DecodePacket(raw, r.cipher))
}

// HandlePacket dispatches an already-decoded packet.
func (r *EventRouter) HandlePacket(ctx context.Context, pkt bridge.Packet) {
	switch pkt.Kind {
	case bridge.PacketTelemetry:
		r.HandleTelemetry(ctx, *pkt.Telemetry)
	case bridge.PacketIntercomDecision:
		r.HandleIntercomDecision(ctx, *pkt.Intercom)
	case bridge.PacketAuthError, bridge.PacketDecodeError:
		// Malformed payloads are recorded and dropped, never retried.
		r.record(ctx, EventPacketError, map[string]any{
			"error":     pkt.Err,
			"encrypted": pkt.Encrypted,
		})
	case bridge.PacketRaw:
		payload := map[string]any{}
		if pkt.RawHex != "" {
			payload["raw_hex"] = pkt.RawHex
		}
		if pkt.RawText != "" {
			payload["raw_text"] = pkt.RawText
		}
		r.record(ctx, EventRawPacket, payload)
	case bridge.PacketUnknown:
		r.record(ctx, EventUnknownPacket, map[string]any{"fields": pkt.Fields})
	}
}

// HandleTelemetry mirrors the sample (best effort) and runs the coercion
// detector. Returns the alert when one fired.
func (r *EventRouter) HandleTelemetry(ctx context.Context, sample types.TelemetrySample) *types.CoercionAlert {
	if r.mirrorURL != "" {
		// Fire-and-forget on a detached context: the mirror must never
		// block or fail the decision path.
		go r.mirrorSample(sample)
	}

	alert := r.coercion.Evaluate(sample)
	if alert == nil {
		return nil
	}

	r.record(ctx, EventCoercionAlert, alertPayload(alert))
	return alert
}

// HandleIntercomDecision evaluates access for a visitor decision, records
// the outcome, and on a grant actuates the lock and acknowledges the
// wearable. Lock and notify failures are recorded, never raised.
func (r *EventRouter) HandleIntercomDecision(ctx context.Context, dec bridge.IntercomDecision) types.AccessDecision {
	decision := r.access.Evaluate(dec.CredentialID, dec.LockID, dec.ResidentID)

	r.record(ctx, EventAccessDecision, map[string]any{
		"credential_id": dec.CredentialID,
		"lock_id":       decision.LockID,
		"granted":       decision.Granted,
		"reason":        decision.Reason,
		"resident_id":   decision.ResidentID,
	})

	if !decision.Granted {
		return decision
	}

	if r.lock != nil {
		if err := r.lock.Unlock(ctx, decision.LockID); err != nil {
			r.record(ctx, EventLockError, map[string]any{
				"lock_id": decision.LockID,
				"error":   err.Error(),
			})
		}
	}

	r.notifyWatch(ctx, decision)
	return decision
}

func (r *EventRouter) notifyWatch(ctx context.Context, decision types.AccessDecision) {
	if r.device == nil || !r.device.IsConnected() {
		return
	}

	cmd, err := bridge.HapticAlertCommand(
		"Access granted",
		fmt.Sprintf("Lock %s released", decision.LockID),
		map[string]any{"resident_id": decision.ResidentID},
		time.Now().UTC(),
	)
	if err != nil {
		r.logger.Error("build haptic command", zap.Error(err))
		return
	}

	if err := r.device.SendCommand(ctx, cmd); err != nil {
		r.record(ctx, EventNotifyError, map[string]any{
			"lock_id": decision.LockID,
			"error":   err.Error(),
		})
	}
}

// record persists an outcome to the outbox. Errors are logged and not
// returned: a failed audit write must not change the caller's outcome.
func (r *EventRouter) record(ctx context.Context, eventType string, payload map[string]any) {
	if _, err := r.outbox.Append(ctx, eventType, payload); err != nil {
		r.logger.Error("outbox append failed",
			zap.String("event_type", eventType),
			zap.Error(err))
	}
}

func (r *EventRouter) mirrorSample(sample types.TelemetrySample) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	body, err := json.Marshal(sample)
	if err != nil {
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.mirrorURL, bytes.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		r.logger.Debug("telemetry mirror failed", zap.Error(err))
		return
	}
	_ = resp.Body.Close()
}

func alertPayload(alert *types.CoercionAlert) map[string]any {
	payload := map[string]any{
		"kind":              alert.Kind,
		"device_id":         alert.DeviceID,
		"hr_bpm":            alert.HeartRateBPM,
		"steps_last_minute": alert.StepsLastMinute,
		"activity_detected": alert.ActivityDetected,
		"triggered_at":      alert.TriggeredAt.Format(time.RFC3339Nano),
	}
	if alert.SpO2 != nil {
		payload["spo2"] = *alert.SpO2
	}
	return payload
}

// CheckinPayload serializes a check-in for the outbox; used by the scan
// loop so the event shape stays in one place.
func CheckinPayload(c *types.Checkin) map[string]any {
	return map[string]any{
		"guard_id":      c.GuardID,
		"beacon_id":     c.BeaconID,
		"checkpoint":    c.Checkpoint,
		"rssi":          c.RSSI,
		"checked_in_at": c.CheckedInAt.Format(time.RFC3339Nano),
	}
}
