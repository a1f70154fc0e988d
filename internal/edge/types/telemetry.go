package types

import "time"

// TelemetrySample is one biometric reading streamed from a watch.
// Transient: consumed once by the coercion detector and not stored.
type TelemetrySample struct {
	DeviceID         string    `json:"device_id"`
	HeartRateBPM     int       `json:"hr_bpm"`
	SpO2             *float64  `json:"spo2,omitempty"`
	StepsLastMinute  int       `json:"steps_last_minute"`
	ActivityDetected bool      `json:"activity_detected"`
	RecordedAt       time.Time `json:"recorded_at"`
}

// CoercionAlertKind tags every duress alert emitted by the detector.
const CoercionAlertKind = "silent_coercion_alert"

// CoercionAlert is a duress signal: elevated heart rate with no
// corroborating physical activity. TriggeredAt is stamped at evaluation
// time, not from the sample's RecordedAt.
type CoercionAlert struct {
	Kind             string    `json:"kind"`
	DeviceID         string    `json:"device_id"`
	HeartRateBPM     int       `json:"hr_bpm"`
	SpO2             *float64  `json:"spo2,omitempty"`
	StepsLastMinute  int       `json:"steps_last_minute"`
	ActivityDetected bool      `json:"activity_detected"`
	TriggeredAt      time.Time `json:"triggered_at"`
}
