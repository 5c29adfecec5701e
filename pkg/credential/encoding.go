package credential

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"strings"
)

// credentialJSON is the wire form of a Credential. Byte fields are
// hex-encoded so the JSON round-trips losslessly.
type credentialJSON struct {
	Location   string   `json:"location"`
	Identifier string   `json:"identifier"`
	Caveats    []Caveat `json:"caveats,omitempty"`
	Signature  string   `json:"signature"`
}

// Encode serializes the credential as base64url(JSON). The result
// contains no colon, so it can be joined with a secret into a
// presentable token unambiguously.
func (c *Credential) Encode() string {
	wire := credentialJSON{
		Location:   c.Location,
		Identifier: hex.EncodeToString(c.Identifier),
		Caveats:    c.Caveats,
		Signature:  hex.EncodeToString(c.Signature),
	}
	// Marshal of a plain struct with string fields cannot fail.
	data, _ := json.Marshal(wire)
	return base64.RawURLEncoding.EncodeToString(data)
}

// Decode parses a serialized credential produced by Encode. Any parse
// failure is reported as TOKEN_MALFORMED.
func Decode(encoded string) (*Credential, error) {
	data, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, WrapError(ErrCodeTokenMalformed, "credential is not valid base64url", err)
	}
	var wire credentialJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, WrapError(ErrCodeTokenMalformed, "credential is not valid JSON", err)
	}
	identifier, err := hex.DecodeString(wire.Identifier)
	if err != nil {
		return nil, WrapError(ErrCodeTokenMalformed, "credential identifier is not valid hex", err)
	}
	if len(identifier) == 0 {
		return nil, NewError(ErrCodeTokenMalformed, "credential identifier is empty")
	}
	signature, err := hex.DecodeString(wire.Signature)
	if err != nil {
		return nil, WrapError(ErrCodeTokenMalformed, "credential signature is not valid hex", err)
	}
	return &Credential{
		Location:   wire.Location,
		Identifier: identifier,
		Caveats:    wire.Caveats,
		Signature:  signature,
	}, nil
}

// String assembles the presentable wire token:
// <serialized credential>:<hex settlement secret>.
func (t *Token) String() string {
	return t.Credential.Encode() + ":" + hex.EncodeToString(t.Secret)
}

// ParseToken splits and decodes a presented wire token. A missing
// colon, empty halves or a non-hex secret are rejected with
// TOKEN_MALFORMED rather than being coerced to "no token".
func ParseToken(presented string) (*Token, error) {
	credPart, secretPart, found := strings.Cut(presented, ":")
	if !found {
		return nil, NewError(ErrCodeTokenMalformed, "token must be <credential>:<hex secret>")
	}
	if credPart == "" {
		return nil, NewError(ErrCodeTokenMalformed, "token credential part is empty")
	}
	if secretPart == "" {
		return nil, NewError(ErrCodeTokenMalformed, "token secret part is empty")
	}
	cred, err := Decode(credPart)
	if err != nil {
		return nil, err
	}
	secret, err := hex.DecodeString(secretPart)
	if err != nil {
		return nil, WrapError(ErrCodeTokenMalformed, "token secret is not valid hex", err)
	}
	return &Token{Credential: cred, Secret: secret}, nil
}
