package credential

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
	"slices"
	"strconv"
	"time"
)

// MinSecretLen is the minimum length of the server secret in bytes.
const MinSecretLen = 32

// Minter mints and verifies payment-bound credentials for one issuer.
// It is purely functional given its inputs and safe for concurrent use:
// any number of Mint and Verify calls may run in parallel.
type Minter struct {
	secret   []byte
	location string
}

// NewMinter creates a Minter from the fixed server secret and the
// issuer location tag. The secret must be at least MinSecretLen bytes.
func NewMinter(secret []byte, location string) (*Minter, error) {
	if len(secret) < MinSecretLen {
		return nil, fmt.Errorf("server secret must be at least %d bytes, got %d", MinSecretLen, len(secret))
	}
	return &Minter{
		secret:   slices.Clone(secret),
		location: location,
	}, nil
}

// Location returns the issuer location tag.
func (m *Minter) Location() string {
	return m.location
}

// Mint builds a credential bound to the given payment commitment hash.
// Exactly three caveats are appended, in fixed order: resource_id,
// expires_at (now + validity) and service. The returned credential is
// valid under this minter's secret; the holder may attenuate it further
// via Credential.Attenuate.
func (m *Minter) Mint(paymentHash []byte, resourceID string, validity time.Duration, service string) (*Credential, error) {
	if len(paymentHash) != sha256.Size {
		return nil, fmt.Errorf("payment commitment hash must be %d bytes, got %d", sha256.Size, len(paymentHash))
	}
	cred := &Credential{
		Location:   m.location,
		Identifier: slices.Clone(paymentHash),
		Caveats: []Caveat{
			{Key: CaveatResourceID, Value: resourceID},
			{Key: CaveatExpiresAt, Value: strconv.FormatInt(time.Now().Add(validity).Unix(), 10)},
			{Key: CaveatService, Value: service},
		},
	}
	cred.Signature = m.chain(cred)
	return cred, nil
}

// Verify checks a presented token against the requested resource.
// Steps run in order and short-circuit on the first failure:
//
//  1. SHA-256(secret) must equal the credential identifier
//     (PAYMENT_NOT_VERIFIED).
//  2. Caveats are walked in stored order: resource_id must match
//     exactly (RESOURCE_MISMATCH), expires_at must be in the future
//     (CREDENTIAL_EXPIRED); service and unrecognized keys are accepted
//     unconditionally. A credential with no resource_id caveat at all
//     fails (RESOURCE_MISMATCH).
//  3. The HMAC chain is recomputed from the server secret and compared
//     to the stored signature (SIGNATURE_INVALID).
//
// Verification reads and writes no state; two calls on the same token
// differ only through the clock.
func (m *Minter) Verify(tok *Token, resourceID string, opts VerifyOptions) (*VerifyResult, error) {
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	if tok == nil || tok.Credential == nil {
		return nil, NewError(ErrCodeTokenMalformed, "no credential presented")
	}
	cred := tok.Credential

	digest := sha256.Sum256(tok.Secret)
	if subtle.ConstantTimeCompare(digest[:], cred.Identifier) != 1 {
		return nil, ErrPaymentNotVerified
	}

	result := &VerifyResult{}
	scoped := false
	for _, cv := range cred.Caveats {
		switch cv.Key {
		case CaveatResourceID:
			if cv.Value != resourceID {
				return nil, NewError(ErrCodeResourceMismatch,
					fmt.Sprintf("credential is scoped to %q, not %q", cv.Value, resourceID))
			}
			scoped = true
			result.ResourceID = cv.Value
		case CaveatExpiresAt:
			exp, err := strconv.ParseInt(cv.Value, 10, 64)
			if err != nil {
				return nil, WrapError(ErrCodeTokenMalformed, "invalid expires_at caveat", err)
			}
			expiresAt := time.Unix(exp, 0)
			if !now().Before(expiresAt) {
				return nil, NewError(ErrCodeExpired,
					fmt.Sprintf("credential expired at %s", expiresAt.UTC().Format(time.RFC3339)))
			}
			result.ExpiresAt = expiresAt
		default:
			// service and unrecognized keys are accepted as-is; a
			// holder may have attenuated its own token with caveats
			// this issuer does not interpret.
		}
	}
	if !scoped {
		// Every minted credential carries a resource_id caveat, so a
		// credential without one was not produced by this issuer's Mint
		// and must not pass as a wildcard.
		return nil, NewError(ErrCodeResourceMismatch, "credential carries no resource scope")
	}

	want := m.chain(cred)
	if subtle.ConstantTimeCompare(want, cred.Signature) != 1 {
		return nil, ErrSignatureInvalid
	}
	return result, nil
}

// chain recomputes the full HMAC chain over identifier and caveats.
func (m *Minter) chain(cred *Credential) []byte {
	sig := hmacSum(m.secret, cred.Identifier)
	for _, cv := range cred.Caveats {
		sig = hmacSum(sig, cv.bytes())
	}
	return sig
}

// Attenuate returns a copy of the credential narrowed by one more
// caveat. The new signature is derived from the current one, so no
// server secret is needed: any holder can restrict its own token. The
// receiver is not modified.
func (c *Credential) Attenuate(key, value string) *Credential {
	cv := Caveat{Key: key, Value: value}
	return &Credential{
		Location:   c.Location,
		Identifier: slices.Clone(c.Identifier),
		Caveats:    append(slices.Clone(c.Caveats), cv),
		Signature:  hmacSum(c.Signature, cv.bytes()),
	}
}

func hmacSum(key, data []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	return mac.Sum(nil)
}
