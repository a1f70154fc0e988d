package service

import (
	"strings"
	"sync"
	"time"

	"github.com/tainadesingsil-coder/Interaopen/internal/edge/types"
)

// DefaultCheckinCooldown is the minimum spacing between check-ins for the
// same (guard, checkpoint) pair.
const DefaultCheckinCooldown = 300 * time.Second

type RoundsConfig struct {
	// MinRSSI is the weakest signal accepted as a sighting.
	MinRSSI int

	// BeaconCheckpoints maps beacon ids (normalized uppercase) to
	// checkpoint names. Loaded once at startup, immutable afterwards.
	BeaconCheckpoints map[string]string

	// Cooldown between check-ins per (guard, checkpoint). Defaults to 300s.
	Cooldown time.Duration

	// Now supplies the clock; defaults to UTC wall time.
	Now func() time.Time
}

type checkinKey struct {
	guardID    string
	checkpoint string
}

// RoundsService deduplicates guard-round check-ins from proximity
// sightings. Rejections (weak signal, unknown beacon, within cooldown)
// are routine input, not failures, and return nil.
//
// The per-(guard, checkpoint) map grows with pairs seen and is never
// evicted; it is bounded by guards × checkpoints.
type RoundsService struct {
	cfg RoundsConfig
	now func() time.Time

	mu   sync.Mutex
	last map[checkinKey]time.Time
}

func NewRoundsService(cfg RoundsConfig) *RoundsService {
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultCheckinCooldown
	}
	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}

	checkpoints := make(map[string]string, len(cfg.BeaconCheckpoints))
	for beacon, checkpoint := range cfg.BeaconCheckpoints {
		beacon = strings.ToUpper(strings.TrimSpace(beacon))
		if beacon != "" {
			checkpoints[beacon] = checkpoint
		}
	}
	cfg.BeaconCheckpoints = checkpoints

	return &RoundsService{
		cfg:  cfg,
		now:  now,
		last: make(map[checkinKey]time.Time),
	}
}

// HasCheckpoints reports whether any beacon is mapped; the scan loop
// no-ops entirely when false.
func (s *RoundsService) HasCheckpoints() bool {
	return len(s.cfg.BeaconCheckpoints) > 0
}

// BeaconIDs returns the known beacon ids for the proximity scanner.
func (s *RoundsService) BeaconIDs() []string {
	ids := make([]string, 0, len(s.cfg.BeaconCheckpoints))
	for beacon := range s.cfg.BeaconCheckpoints {
		ids = append(ids, beacon)
	}
	return ids
}

// RegisterSighting maps a proximity sighting to a checkpoint check-in.
// observedAt defaults to the current wall clock when zero. A sighting
// observed earlier than the recorded last check-in for the same key never
// moves that timestamp backward.
func (s *RoundsService) RegisterSighting(guardID, beaconID string, rssi int, observedAt time.Time) *types.Checkin {
	if rssi < s.cfg.MinRSSI {
		return nil
	}

	beaconID = strings.ToUpper(strings.TrimSpace(beaconID))
	checkpoint, ok := s.cfg.BeaconCheckpoints[beaconID]
	if !ok {
		return nil
	}

	if observedAt.IsZero() {
		observedAt = s.now()
	}
	key := checkinKey{guardID: guardID, checkpoint: checkpoint}

	s.mu.Lock()
	defer s.mu.Unlock()

	// A negative delta (out-of-order sighting) counts as within cooldown.
	if last, ok := s.last[key]; ok && observedAt.Sub(last) < s.cfg.Cooldown {
		return nil
	}
	s.last[key] = observedAt

	return &types.Checkin{
		GuardID:     guardID,
		BeaconID:    beaconID,
		Checkpoint:  checkpoint,
		RSSI:        rssi,
		CheckedInAt: observedAt,
	}
}
