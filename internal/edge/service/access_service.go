package service

import (
	"strings"

	"github.com/tainadesingsil-coder/Interaopen/internal/edge/types"
)

// CredentialTable maps credential identifiers to resident identifiers.
// Loaded once at startup and immutable for the process lifetime.
type CredentialTable map[string]string

// AccessService resolves a decrypted credential into a grant/deny decision.
// It is a pure function of the table and its inputs: no I/O, no clock.
// Side effects (lock actuation, outbox persistence) belong to the caller
// and happen only on a granted decision.
type AccessService struct {
	table CredentialTable
}

func NewAccessService(table CredentialTable) *AccessService {
	t := make(CredentialTable, len(table))
	for cred, resident := range table {
		cred = strings.TrimSpace(cred)
		if cred != "" {
			t[cred] = strings.TrimSpace(resident)
		}
	}
	return &AccessService{table: t}
}

// Evaluate decides access for credentialID at lockID. residentID is
// optional; when supplied it must match the table's resident for that
// credential.
func (s *AccessService) Evaluate(credentialID, lockID, residentID string) types.AccessDecision {
	credentialID = strings.TrimSpace(credentialID)

	resident, ok := s.table[credentialID]
	if !ok {
		return types.AccessDecision{
			Granted: false,
			Reason:  types.ReasonCredentialNotRegistered,
			LockID:  lockID,
		}
	}

	if residentID != "" && residentID != resident {
		return types.AccessDecision{
			Granted: false,
			Reason:  types.ReasonResidentMismatch,
			LockID:  lockID,
		}
	}

	return types.AccessDecision{
		Granted:    true,
		Reason:     types.ReasonAccessGranted,
		ResidentID: resident,
		LockID:     lockID,
	}
}
