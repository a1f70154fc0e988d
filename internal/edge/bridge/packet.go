package bridge

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/tainadesingsil-coder/Interaopen/internal/edge/crypto"
	"github.com/tainadesingsil-coder/Interaopen/internal/edge/types"
)

// PacketKind is the closed set of inbound packet classifications.
type PacketKind string

const (
	PacketTelemetry        PacketKind = "telemetry"
	PacketIntercomDecision PacketKind = "intercom_decision"

	// PacketRaw holds payloads that are not JSON at all: preserved as hex
	// or text rather than dropped.
	PacketRaw PacketKind = "raw"

	// PacketUnknown is valid JSON that matches no recognized schema.
	PacketUnknown PacketKind = "unknown"

	// PacketAuthError is an envelope that failed decryption: bad base64,
	// failed tag verification, or non-object plaintext. The sender could
	// not prove knowledge of the key.
	PacketAuthError PacketKind = "auth_error"

	// PacketDecodeError is a recognized type whose fields fail schema
	// validation. Distinct from PacketAuthError: the payload may have
	// arrived in a perfectly valid envelope. Both are recorded and
	// dropped, never retried: re-decoding a malformed payload cannot
	// succeed.
	PacketDecodeError PacketKind = "decode_error"
)

// IntercomDecision is a resident's visitor decision relayed from the
// wearable or the intercom API.
type IntercomDecision struct {
	CredentialID string
	LockID       string
	ResidentID   string
}

// Packet is the decoded form of one inbound payload. Exactly one of the
// kind-specific fields is populated, per Kind.
type Packet struct {
	Kind      PacketKind
	Encrypted bool

	Telemetry *types.TelemetrySample
	Intercom  *IntercomDecision
	Fields    map[string]any // decoded object, for PacketUnknown
	RawHex    string
	RawText   string
	Err       string // for PacketAuthError and PacketDecodeError
}

// DecodePacket turns a raw wearable notification (or an HTTP request body
// of the same shape) into a classified Packet. Both transports funnel
// through here, so the envelope handling and schema validation are
// identical regardless of where a payload arrived.
func DecodePacket(raw []byte, cipher *crypto.Cipher) Packet {
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return Packet{Kind: PacketRaw, RawHex: hex.EncodeToString(raw)}
	}

	var decoded any
	if err := json.Unmarshal([]byte(text), &decoded); err != nil {
		return Packet{Kind: PacketRaw, RawText: text}
	}

	obj, ok := decoded.(map[string]any)
	if !ok {
		return Packet{Kind: PacketUnknown, Fields: map[string]any{"payload": decoded}}
	}

	encrypted := false
	if isEnvelope(obj) {
		nonceB64, _ := obj["nonce_b64"].(string)
		ciphertextB64, _ := obj["ciphertext_b64"].(string)

		inner, err := cipher.Decrypt(nonceB64, ciphertextB64)
		if err != nil {
			return Packet{Kind: PacketAuthError, Encrypted: true, Err: err.Error()}
		}
		obj = inner
		encrypted = true
	}

	pkt := classifyObject(obj)
	pkt.Encrypted = encrypted
	return pkt
}

func isEnvelope(obj map[string]any) bool {
	_, hasNonce := obj["nonce_b64"]
	_, hasCiphertext := obj["ciphertext_b64"]
	return hasNonce && hasCiphertext
}

func classifyObject(obj map[string]any) Packet {
	kind, _ := obj["type"].(string)
	switch kind {
	case "telemetry":
		sample, err := parseTelemetry(obj)
		if err != nil {
			return Packet{Kind: PacketDecodeError, Err: err.Error()}
		}
		return Packet{Kind: PacketTelemetry, Telemetry: sample}
	case "intercom_decision":
		dec, err := parseIntercomDecision(obj)
		if err != nil {
			return Packet{Kind: PacketDecodeError, Err: err.Error()}
		}
		return Packet{Kind: PacketIntercomDecision, Intercom: dec}
	default:
		return Packet{Kind: PacketUnknown, Fields: obj}
	}
}

func parseTelemetry(obj map[string]any) (*types.TelemetrySample, error) {
	deviceID, ok := obj["device_id"].(string)
	if !ok || strings.TrimSpace(deviceID) == "" {
		return nil, fmt.Errorf("telemetry: device_id is required")
	}

	hr, err := intField(obj, "hr_bpm")
	if err != nil {
		return nil, err
	}
	if hr < 0 || hr > 260 {
		return nil, fmt.Errorf("telemetry: hr_bpm %d out of range [0,260]", hr)
	}

	steps, err := intField(obj, "steps_last_minute")
	if err != nil {
		return nil, err
	}
	if steps < 0 {
		return nil, fmt.Errorf("telemetry: steps_last_minute must be >= 0")
	}

	activity, ok := obj["activity_detected"].(bool)
	if !ok {
		return nil, fmt.Errorf("telemetry: activity_detected must be a boolean")
	}

	sample := &types.TelemetrySample{
		DeviceID:         deviceID,
		HeartRateBPM:     hr,
		StepsLastMinute:  steps,
		ActivityDetected: activity,
		RecordedAt:       time.Now().UTC(),
	}

	if raw, present := obj["spo2"]; present && raw != nil {
		spo2, ok := raw.(float64)
		if !ok || spo2 < 50 || spo2 > 100 {
			return nil, fmt.Errorf("telemetry: spo2 out of range [50,100]")
		}
		sample.SpO2 = &spo2
	}

	if raw, present := obj["recorded_at"]; present {
		text, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("telemetry: recorded_at must be a timestamp string")
		}
		t, err := time.Parse(time.RFC3339, text)
		if err != nil {
			return nil, fmt.Errorf("telemetry: recorded_at: %v", err)
		}
		sample.RecordedAt = t.UTC()
	}

	return sample, nil
}

func parseIntercomDecision(obj map[string]any) (*IntercomDecision, error) {
	credentialID, ok := obj["credential_id"].(string)
	if !ok || strings.TrimSpace(credentialID) == "" {
		return nil, fmt.Errorf("intercom_decision: credential_id is required")
	}
	lockID, ok := obj["lock_id"].(string)
	if !ok || strings.TrimSpace(lockID) == "" {
		return nil, fmt.Errorf("intercom_decision: lock_id is required")
	}

	dec := &IntercomDecision{
		CredentialID: strings.TrimSpace(credentialID),
		LockID:       strings.TrimSpace(lockID),
	}
	if raw, present := obj["resident_id"]; present && raw != nil {
		residentID, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("intercom_decision: resident_id must be a string")
		}
		dec.ResidentID = strings.TrimSpace(residentID)
	}
	return dec, nil
}

func intField(obj map[string]any, key string) (int, error) {
	raw, present := obj[key]
	if !present {
		return 0, fmt.Errorf("telemetry: %s is required", key)
	}
	f, ok := raw.(float64)
	if !ok || f != math.Trunc(f) {
		return 0, fmt.Errorf("telemetry: %s must be an integer", key)
	}
	return int(f), nil
}
