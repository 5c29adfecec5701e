package credential_test

import (
	"crypto/rand"
	"crypto/sha256"
	"strconv"
	"testing"
	"time"

	"github.com/satgate/satgate-core/pkg/credential"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mintForSecret mints a credential bound to the given settlement secret
// and returns the presentable token for it.
func mintForSecret(t *testing.T, m *credential.Minter, secret []byte, resourceID string, validity time.Duration) *credential.Token {
	t.Helper()
	hash := sha256.Sum256(secret)
	cred, err := m.Mint(hash[:], resourceID, validity, "satgate")
	require.NoError(t, err)
	return &credential.Token{Credential: cred, Secret: secret}
}

func newTestMinter(t *testing.T) *credential.Minter {
	t.Helper()
	secret := make([]byte, 32)
	_, err := rand.Read(secret)
	require.NoError(t, err)
	m, err := credential.NewMinter(secret, "satgate.test")
	require.NoError(t, err)
	return m
}

func TestNewMinterRejectsShortSecret(t *testing.T) {
	_, err := credential.NewMinter([]byte("too-short"), "satgate.test")
	require.Error(t, err)
}

func TestVerifyBinding(t *testing.T) {
	m := newTestMinter(t)
	paid := []byte("settlement-secret-for-this-payment")
	tok := mintForSecret(t, m, paid, "premium", time.Hour)

	result, err := m.Verify(tok, "premium", credential.VerifyOptions{})
	require.NoError(t, err)
	assert.Equal(t, "premium", result.ResourceID)
	assert.True(t, result.ExpiresAt.After(time.Now()))

	// Any other secret must fail the payment binding, even one that is
	// only a single byte off.
	wrong := append([]byte(nil), paid...)
	wrong[0] ^= 0x01
	_, err = m.Verify(&credential.Token{Credential: tok.Credential, Secret: wrong}, "premium", credential.VerifyOptions{})
	require.ErrorIs(t, err, credential.ErrPaymentNotVerified)
}

func TestVerifyScopeIsolation(t *testing.T) {
	m := newTestMinter(t)
	tok := mintForSecret(t, m, []byte("secret-a"), "resource-a", time.Hour)

	_, err := m.Verify(tok, "resource-b", credential.VerifyOptions{})
	require.ErrorIs(t, err, credential.ErrResourceMismatch)
	// The failure carries the token's actual scope for diagnostics.
	assert.Contains(t, err.Error(), "resource-a")
}

func TestVerifyExpiryMonotonicity(t *testing.T) {
	m := newTestMinter(t)
	tok := mintForSecret(t, m, []byte("expiring-secret"), "premium", 30*time.Minute)

	var expiresAt time.Time
	for _, cv := range tok.Credential.Caveats {
		if cv.Key == credential.CaveatExpiresAt {
			exp, err := strconv.ParseInt(cv.Value, 10, 64)
			require.NoError(t, err)
			expiresAt = time.Unix(exp, 0)
		}
	}
	require.False(t, expiresAt.IsZero())

	// Any clock strictly before T verifies; exactly T and later fail.
	for _, tc := range []struct {
		name string
		now  time.Time
		ok   bool
	}{
		{"just minted", expiresAt.Add(-30 * time.Minute), true},
		{"one second left", expiresAt.Add(-time.Second), true},
		{"exactly at expiry", expiresAt, false},
		{"one second past", expiresAt.Add(time.Second), false},
		{"long past", expiresAt.Add(1801 * time.Second), false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := m.Verify(tok, "premium", credential.VerifyOptions{
				Now: func() time.Time { return tc.now },
			})
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, credential.ErrExpired)
			}
		})
	}
}

func TestVerifyTamperRejection(t *testing.T) {
	m := newTestMinter(t)

	t.Run("signature bit flip", func(t *testing.T) {
		tok := mintForSecret(t, m, []byte("tamper-secret"), "premium", time.Hour)
		tok.Credential.Signature[3] ^= 0x10
		_, err := m.Verify(tok, "premium", credential.VerifyOptions{})
		assert.ErrorIs(t, err, credential.ErrSignatureInvalid)
	})

	t.Run("identifier bit flip", func(t *testing.T) {
		tok := mintForSecret(t, m, []byte("tamper-secret"), "premium", time.Hour)
		tok.Credential.Identifier[0] ^= 0x01
		_, err := m.Verify(tok, "premium", credential.VerifyOptions{})
		assert.ErrorIs(t, err, credential.ErrPaymentNotVerified)
	})

	t.Run("service caveat value flip", func(t *testing.T) {
		tok := mintForSecret(t, m, []byte("tamper-secret"), "premium", time.Hour)
		for i, cv := range tok.Credential.Caveats {
			if cv.Key == credential.CaveatService {
				tok.Credential.Caveats[i].Value = cv.Value + "x"
			}
		}
		_, err := m.Verify(tok, "premium", credential.VerifyOptions{})
		assert.ErrorIs(t, err, credential.ErrSignatureInvalid)
	})

	t.Run("caveat removal", func(t *testing.T) {
		tok := mintForSecret(t, m, []byte("tamper-secret"), "premium", time.Hour)
		tok.Credential.Caveats = tok.Credential.Caveats[:2]
		_, err := m.Verify(tok, "premium", credential.VerifyOptions{})
		assert.ErrorIs(t, err, credential.ErrSignatureInvalid)
	})
}

func TestVerifyCaveatBoundariesAreUnambiguous(t *testing.T) {
	m := newTestMinter(t)
	secret := []byte("separator-secret")

	// Resource IDs default to URL paths, so "=" is legal in them. A
	// holder must not be able to move bytes between a caveat's key and
	// value without invalidating the chain.
	tok := mintForSecret(t, m, secret, "cheap=1", time.Hour)
	_, err := m.Verify(tok, "cheap=1", credential.VerifyOptions{})
	require.NoError(t, err)

	resplit := &credential.Credential{
		Location:   tok.Credential.Location,
		Identifier: tok.Credential.Identifier,
		Caveats:    append([]credential.Caveat(nil), tok.Credential.Caveats...),
		Signature:  tok.Credential.Signature,
	}
	for i, cv := range resplit.Caveats {
		if cv.Key == credential.CaveatResourceID {
			// resource_id="cheap=1" re-split as resource_id=cheap="1":
			// same concatenated bytes, different clause.
			resplit.Caveats[i] = credential.Caveat{Key: "resource_id=cheap", Value: "1"}
		}
	}
	forged := &credential.Token{Credential: resplit, Secret: secret}
	_, err = m.Verify(forged, "expensive", credential.VerifyOptions{})
	require.Error(t, err)
	assert.NotErrorIs(t, err, credential.ErrExpired)
}

func TestVerifyRequiresResourceScope(t *testing.T) {
	m := newTestMinter(t)
	tok := mintForSecret(t, m, []byte("unscoped-secret"), "premium", time.Hour)

	// A credential that carries no resource_id caveat at all must not
	// verify as a wildcard, regardless of its signature.
	unscoped := &credential.Credential{
		Location:   tok.Credential.Location,
		Identifier: tok.Credential.Identifier,
		Caveats:    tok.Credential.Caveats[1:],
		Signature:  tok.Credential.Signature,
	}
	_, err := m.Verify(&credential.Token{Credential: unscoped, Secret: tok.Secret}, "anything", credential.VerifyOptions{})
	require.ErrorIs(t, err, credential.ErrResourceMismatch)
}

func TestAttenuationTransparency(t *testing.T) {
	m := newTestMinter(t)
	tok := mintForSecret(t, m, []byte("attenuate-secret"), "premium", time.Hour)

	// A holder appends a caveat this issuer does not recognize; the
	// derived signature must still verify and the result is unchanged.
	narrowed := tok.Credential.Attenuate("max_uses", "1")
	result, err := m.Verify(&credential.Token{Credential: narrowed, Secret: tok.Secret}, "premium", credential.VerifyOptions{})
	require.NoError(t, err)
	assert.Equal(t, "premium", result.ResourceID)

	// The original credential is untouched.
	assert.Len(t, tok.Credential.Caveats, 3)
	_, err = m.Verify(tok, "premium", credential.VerifyOptions{})
	assert.NoError(t, err)

	// But an attenuated caveat cannot be stripped again: removing it
	// leaves a signature derived from it.
	stripped := &credential.Credential{
		Location:   narrowed.Location,
		Identifier: narrowed.Identifier,
		Caveats:    narrowed.Caveats[:3],
		Signature:  narrowed.Signature,
	}
	_, err = m.Verify(&credential.Token{Credential: stripped, Secret: tok.Secret}, "premium", credential.VerifyOptions{})
	assert.ErrorIs(t, err, credential.ErrSignatureInvalid)
}

func TestAttenuationByHolderCanTightenScope(t *testing.T) {
	m := newTestMinter(t)
	tok := mintForSecret(t, m, []byte("delegate-secret"), "premium", time.Hour)

	// Appending a second resource_id caveat restricts the token to the
	// intersection: the delegated copy no longer verifies for the
	// original resource.
	delegated := tok.Credential.Attenuate(credential.CaveatResourceID, "other")
	_, err := m.Verify(&credential.Token{Credential: delegated, Secret: tok.Secret}, "premium", credential.VerifyOptions{})
	assert.ErrorIs(t, err, credential.ErrResourceMismatch)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	m := newTestMinter(t)
	tok := mintForSecret(t, m, []byte("roundtrip-secret"), "premium", time.Hour)

	decoded, err := credential.Decode(tok.Credential.Encode())
	require.NoError(t, err)
	assert.Equal(t, tok.Credential, decoded)

	// The decoded credential still verifies.
	_, err = m.Verify(&credential.Token{Credential: decoded, Secret: tok.Secret}, "premium", credential.VerifyOptions{})
	assert.NoError(t, err)
}

func TestParseToken(t *testing.T) {
	m := newTestMinter(t)
	tok := mintForSecret(t, m, []byte("wire-secret"), "premium", time.Hour)

	parsed, err := credential.ParseToken(tok.String())
	require.NoError(t, err)
	assert.Equal(t, tok.Credential, parsed.Credential)
	assert.Equal(t, tok.Secret, parsed.Secret)

	for name, presented := range map[string]string{
		"missing colon":   tok.Credential.Encode(),
		"empty credential": ":deadbeef",
		"empty secret":    tok.Credential.Encode() + ":",
		"non-hex secret":  tok.Credential.Encode() + ":not-hex!",
		"garbage":         "%%%:zz",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := credential.ParseToken(presented)
			assert.ErrorIs(t, err, credential.ErrTokenMalformed)
		})
	}
}
