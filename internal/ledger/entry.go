package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// ActionRecord is the flattened action stored in each audit entry.
type ActionRecord struct {
	Type   string         `json:"type"`
	Params map[string]any `json:"params,omitempty"`
}

// ResultRecord captures the execution outcome for the audited action.
type ResultRecord struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// PermissionRecord captures the permission decision that governed the
// action. Denials record the non-leaking reason string.
type PermissionRecord struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// Metadata holds observability fields that never influence the decision.
type Metadata struct {
	LatencyMs int64 `json:"latencyMs"`
}

// Entry is one line in the hash-chained JSONL audit log. Field order is
// fixed by the struct and params maps marshal with sorted keys, so
// json.Marshal of an Entry is canonical and reproducible for hashing.
//
// Hash covers the canonical JSON of the entry without its hash field,
// concatenated with PreviousHash. PreviousHash is the hash of the
// immediately preceding entry in the chain; the first entry of a fresh
// ledger uses the empty anchor.
type Entry struct {
	ID           string           `json:"id"`
	TimestampMs  int64            `json:"timestampMs"`
	UserID       string           `json:"userId"`
	TenantID     string           `json:"tenantId,omitempty"`
	Action       ActionRecord     `json:"action"`
	Result       ResultRecord     `json:"result"`
	Permission   PermissionRecord `json:"permission"`
	Metadata     Metadata         `json:"metadata"`
	Hash         string           `json:"hash,omitempty"`
	PreviousHash string           `json:"previousHash"`
}

// chainHash computes the SHA-256 chain hash for the entry. The receiver
// is a copy, so clearing Hash before marshalling (omitempty drops the
// field entirely) never mutates the caller's value.
func (e Entry) chainHash() (string, error) {
	e.Hash = ""
	payload, err := json.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("marshal entry for hashing: %w", err)
	}
	h := sha256.New()
	h.Write(payload)
	h.Write([]byte(e.PreviousHash))
	return hex.EncodeToString(h.Sum(nil)), nil
}
