// Package credential implements payment-bound bearer credentials.
//
// A credential is minted against a single payment commitment hash and
// carries an append-only chain of caveats folded into an HMAC-SHA256
// signature chain. Any holder can append further caveats and re-derive
// a valid, more restrictive signature without contacting the issuer;
// only the issuer (who holds the server secret) can verify the chain.
package credential

import (
	"encoding/binary"
	"time"
)

// Recognized caveat keys. Unrecognized keys are accepted and ignored by
// the verifier, which is what makes holder-side attenuation possible.
const (
	// CaveatResourceID scopes the credential to exactly one resource.
	CaveatResourceID = "resource_id"

	// CaveatExpiresAt is the unix timestamp (decimal seconds) after
	// which the credential is no longer valid.
	CaveatExpiresAt = "expires_at"

	// CaveatService is an informational service tag. Any value is
	// accepted at verification time.
	CaveatService = "service"
)

// Caveat is a single named restriction clause in a credential.
type Caveat struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// bytes returns the canonical byte form folded into the HMAC chain.
// Key and value are length-prefixed so the encoding is injective: no
// two distinct (key, value) pairs fold to the same bytes, even when a
// value contains the key/value separator characters.
func (c Caveat) bytes() []byte {
	buf := make([]byte, 0, 16+len(c.Key)+len(c.Value))
	buf = binary.BigEndian.AppendUint64(buf, uint64(len(c.Key)))
	buf = append(buf, c.Key...)
	buf = binary.BigEndian.AppendUint64(buf, uint64(len(c.Value)))
	buf = append(buf, c.Value...)
	return buf
}

// Credential is a signed, scoped bearer credential. Its Identifier is
// the commitment hash of the payment it is bound to; its Signature is
// the root of an HMAC chain over the identifier and the caveats in
// order. The identifier is immutable once minted and the caveat list is
// read-only after serialization.
type Credential struct {
	// Location identifies the issuer (e.g. "satgate.example.com").
	Location string

	// Identifier is the payment commitment hash. The settlement
	// secret of the bound payment must SHA-256 to this value.
	Identifier []byte

	// Caveats are the restriction clauses, in signing order.
	Caveats []Caveat

	// Signature is the final HMAC chain value.
	Signature []byte
}

// Token is a presented credential plus the claimed settlement secret.
// It is transient: constructed by the requester, never persisted by the
// issuer.
type Token struct {
	Credential *Credential
	Secret     []byte
}

// VerifyResult contains the verified scope of a successfully presented
// token.
type VerifyResult struct {
	// ResourceID is the resource the credential is scoped to.
	ResourceID string

	// ExpiresAt is when the credential stops verifying.
	ExpiresAt time.Time
}

// VerifyOptions configures credential verification.
type VerifyOptions struct {
	// Now overrides the current time (for testing).
	Now func() time.Time
}
