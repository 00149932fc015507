package models

import "time"

// ApiKey is a long-lived credential. No endpoint in this service exchanges
// a key's secret for a bearer token; the auth middleware only accepts
// kind=apiKey tokens and checks the key row they name. Only its hash is
// ever persisted; the plaintext secret is returned to the caller once, on
// creation or rotation.
type ApiKey struct {
	ID        string     `json:"id" db:"id"`
	UserID    string     `json:"userId" db:"user_id"`
	TokenHash string     `json:"-" db:"token_hash"`
	Active    bool       `json:"active" db:"active"`
	ExpiresAt time.Time  `json:"expiresAt" db:"expires_at"`
	CreatedAt time.Time  `json:"createdAt" db:"created_at"`
	RotatedAt *time.Time `json:"rotatedAt,omitempty" db:"rotated_at"`
}

// CreateApiKeyResponse is returned once on key creation or rotation; it is
// the only time the plaintext secret is ever exposed.
type CreateApiKeyResponse struct {
	ApiKey *ApiKey `json:"apiKey"`
	Secret string  `json:"secret"`
}

// RotateApiKeyRequest is the body of PATCH /user/{id}/api-key.
type RotateApiKeyRequest struct {
	Rotate bool `json:"rotate"`
}
