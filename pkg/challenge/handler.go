package challenge

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/satgate/satgate-core/internal/metrics"
	"github.com/satgate/satgate-core/pkg/credential"
	"github.com/satgate/satgate-core/pkg/gateway"
)

// Config holds the issuer-side protocol configuration. The issuer
// identity lives on the Minter, not here.
type Config struct {
	// Service is the informational service tag caveat value.
	Service string

	// DefaultPrice is the price, in base units, for resources without
	// an explicit entry in Prices.
	DefaultPrice int64

	// Prices maps resource IDs to their price in base units.
	Prices map[string]int64

	// Validity is how long minted credentials verify.
	Validity time.Duration

	// Now overrides the verification clock (for testing).
	Now func() time.Time
}

// Handler orchestrates the challenge protocol for incoming requests.
// It holds no per-request state and is safe for concurrent use.
type Handler struct {
	minter *credential.Minter
	gw     gateway.Gateway
	cfg    Config
}

// NewHandler creates a Handler minting with minter and pricing payment
// requests through gw.
func NewHandler(minter *credential.Minter, gw gateway.Gateway, cfg Config) *Handler {
	if cfg.Service == "" {
		cfg.Service = minter.Location()
	}
	return &Handler{minter: minter, gw: gw, cfg: cfg}
}

// Decision is the per-request outcome of the protocol. Exactly one of
// the two shapes holds: Authenticated with a verification result, or
// unauthenticated with a fresh priced challenge.
type Decision struct {
	Authenticated bool
	Result        *credential.VerifyResult
	Challenge     *Challenge
}

// Handle runs the protocol state machine for one request.
//
// With no presented token it mints a fresh credential against a new
// payment request and returns the priced challenge. With a presented
// token it verifies; success authenticates, and any failure falls back
// to a fresh challenge annotated with the failure cause — there is no
// retry-without-repaying. A malformed token is a distinct cause, not
// silently coerced to "no token".
//
// The only error return is a gateway failure: without a real payment
// request no credential can be minted, so the caller must surface a
// service-unavailable condition.
func (h *Handler) Handle(ctx context.Context, resourceID, presented string) (*Decision, error) {
	if presented == "" {
		metrics.ChallengesTotal.WithLabelValues("no_token").Inc()
		return h.issueChallenge(ctx, resourceID, "")
	}

	tok, err := credential.ParseToken(presented)
	var result *credential.VerifyResult
	if err == nil {
		result, err = h.minter.Verify(tok, resourceID, credential.VerifyOptions{Now: h.cfg.Now})
	}
	if err != nil {
		code := credential.GetErrorCode(err)
		if code == "" {
			code = credential.ErrCodeTokenMalformed
		}
		metrics.VerificationsTotal.WithLabelValues(code).Inc()
		metrics.ChallengesTotal.WithLabelValues(code).Inc()
		log.Debug().Str("resource_id", resourceID).Str("code", code).Msg("token rejected, issuing fresh challenge")
		return h.issueChallenge(ctx, resourceID, err.Error())
	}

	metrics.VerificationsTotal.WithLabelValues("ok").Inc()
	return &Decision{Authenticated: true, Result: result}, nil
}

// issueChallenge creates a payment request sized at the resource's
// price, mints a credential bound to its commitment hash and wraps both
// into the wire challenge. Each call costs one payment-request
// creation against the node.
func (h *Handler) issueChallenge(ctx context.Context, resourceID, reason string) (*Decision, error) {
	price := h.priceFor(resourceID)
	validitySeconds := int64(h.cfg.Validity / time.Second)

	pr, err := h.gw.CreatePaymentRequest(ctx, price, h.cfg.Service+" "+resourceID, validitySeconds)
	if err != nil {
		return nil, err
	}
	cred, err := h.minter.Mint(pr.CommitmentHash, resourceID, h.cfg.Validity, h.cfg.Service)
	if err != nil {
		return nil, err
	}

	return &Decision{
		Challenge: &Challenge{
			Credential:      cred.Encode(),
			Invoice:         pr.Request,
			Price:           price,
			ValiditySeconds: validitySeconds,
			ResourceID:      resourceID,
			TokenTemplate:   TokenTemplate,
			Reason:          reason,
		},
	}, nil
}

func (h *Handler) priceFor(resourceID string) int64 {
	if price, ok := h.cfg.Prices[resourceID]; ok {
		return price
	}
	return h.cfg.DefaultPrice
}
