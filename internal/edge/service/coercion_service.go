package service

import (
	"sync"
	"time"

	"github.com/tainadesingsil-coder/Interaopen/internal/edge/types"
)

// DefaultAlertCooldown is the minimum spacing between coercion alerts for
// the same device.
const DefaultAlertCooldown = 180 * time.Second

type CoercionConfig struct {
	// HRThreshold is the heart rate at or above which a sample may alert.
	HRThreshold int

	// StepsThreshold is the maximum steps_last_minute still considered
	// "no corroborating activity".
	StepsThreshold int

	// Cooldown between alerts per device. Defaults to 180s.
	Cooldown time.Duration

	// Now supplies the clock; defaults to UTC wall time. Tests inject a
	// fake clock here.
	Now func() time.Time
}

// CoercionService raises a duress alert when a sample shows elevated heart
// rate with no physical activity. One independent cooldown per device id.
//
// The cooldown is compared and stamped against evaluation-time "now", not
// the sample's RecordedAt. This is deliberate: a late-arriving sample must
// not retroactively suppress or reopen the cooldown window. Keep it this
// way unless the product behavior changes.
//
// The per-device map grows with distinct device ids and is never evicted;
// the watch population is small and fixed per deployment.
type CoercionService struct {
	cfg CoercionConfig
	now func() time.Time

	mu        sync.Mutex
	lastAlert map[string]time.Time
}

func NewCoercionService(cfg CoercionConfig) *CoercionService {
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultAlertCooldown
	}
	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &CoercionService{
		cfg:       cfg,
		now:       now,
		lastAlert: make(map[string]time.Time),
	}
}

// Evaluate inspects one sample and returns an alert, or nil when the rule
// does not fire. A simple per-sample rule: no sliding window, no history
// beyond the last alert time per device.
func (s *CoercionService) Evaluate(sample types.TelemetrySample) *types.CoercionAlert {
	if sample.HeartRateBPM < s.cfg.HRThreshold {
		return nil
	}
	if sample.ActivityDetected {
		return nil
	}
	if sample.StepsLastMinute > s.cfg.StepsThreshold {
		return nil
	}

	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if last, ok := s.lastAlert[sample.DeviceID]; ok && now.Sub(last) < s.cfg.Cooldown {
		return nil
	}
	s.lastAlert[sample.DeviceID] = now

	return &types.CoercionAlert{
		Kind:             types.CoercionAlertKind,
		DeviceID:         sample.DeviceID,
		HeartRateBPM:     sample.HeartRateBPM,
		SpO2:             sample.SpO2,
		StepsLastMinute:  sample.StepsLastMinute,
		ActivityDetected: sample.ActivityDetected,
		TriggeredAt:      now,
	}
}
