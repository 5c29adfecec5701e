// Package challenge implements the issuer-side challenge protocol: it
// turns "no credential" into a priced challenge and "credential
// present" into an admit/deny decision. Both directions are stateless:
// every outcome is a pure function of the request, the presented token
// and the server secret.
package challenge

import (
	"fmt"
	"net/http"
	"strings"
)

// Scheme is the authentication scheme name used on the wire, in both
// the WWW-Authenticate challenge and the Authorization header.
const Scheme = "L402"

// TokenTemplate is the fixed-format description of how a presentable
// token is assembled from the challenge.
const TokenTemplate = "<credential>:<hex settlement secret>"

// Challenge is the wire-level priced challenge handed to an
// unauthenticated requester. It is representable both as a
// WWW-Authenticate header value (Header) and as a JSON response body
// for introspection.
type Challenge struct {
	// Credential is the serialized credential minted for this
	// challenge.
	Credential string `json:"credential"`

	// Invoice is the payment request whose settlement secret completes
	// the credential.
	Invoice string `json:"invoice"`

	// Price is the amount to pay, in the payment network's base unit.
	Price int64 `json:"price"`

	// ValiditySeconds is how long the credential verifies once paid.
	ValiditySeconds int64 `json:"validity_seconds"`

	// ResourceID is the resource this challenge is for.
	ResourceID string `json:"resource_id"`

	// TokenTemplate describes how to assemble the presentable token.
	TokenTemplate string `json:"token_template"`

	// Reason carries the human-readable cause when this challenge
	// replaced a failed token presentation, so the requester can tell
	// "never paid" from "token expired" from "wrong resource".
	Reason string `json:"reason,omitempty"`
}

// Header renders the structured header-style form of the challenge.
func (c *Challenge) Header() string {
	return fmt.Sprintf("%s credential=%q, invoice=%q", Scheme, c.Credential, c.Invoice)
}

// ExtractToken pulls a presented wire token from an HTTP request:
// either "Authorization: L402 <token>" or the X-Payment-Token header.
// Returns empty when no token is presented at all; a present-but-bogus
// header value is returned as-is so the handler can classify it as
// malformed rather than absent.
func ExtractToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, Scheme+" ") {
		return strings.TrimPrefix(auth, Scheme+" ")
	}
	return r.Header.Get("X-Payment-Token")
}
