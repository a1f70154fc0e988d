package types

// Decision reasons. CredentialNotRegistered and ResidentMismatch are
// expected business outcomes, not errors.
const (
	ReasonAccessGranted           = "access_granted"
	ReasonCredentialNotRegistered = "credential_not_registered"
	ReasonResidentMismatch        = "resident_mismatch"
)

// AccessDecision is produced fresh per evaluation and never persisted as an
// entity; it is serialized into an outbox event by the caller.
type AccessDecision struct {
	Granted    bool   `json:"granted"`
	Reason     string `json:"reason"`
	ResidentID string `json:"resident_id,omitempty"`
	LockID     string `json:"lock_id"`
}
