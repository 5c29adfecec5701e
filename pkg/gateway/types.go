// Package gateway provides the client boundary to the external payment
// network node. The node is treated as an opaque service: it can create
// payment requests, pay them, decode them and report settlement status.
package gateway

import (
	"context"
)

// Gateway is the payment network boundary. All operations may fail with
// a GATEWAY_UNAVAILABLE error when the node is unreachable; Settle may
// additionally fail with PAYMENT_FAILED when the node reports that the
// payment itself did not go through.
type Gateway interface {
	// CreatePaymentRequest asks the node for a new payment request of
	// the given amount (in the network's base unit). The returned
	// commitment hash is what the settlement secret must SHA-256 to.
	CreatePaymentRequest(ctx context.Context, amount int64, memo string, expirySeconds int64) (*PaymentRequest, error)

	// Settle pays a payment request and returns the revealed
	// settlement secret along with the routing fee actually paid.
	Settle(ctx context.Context, request string) (*Settlement, error)

	// Decode inspects a payment request without committing funds.
	Decode(ctx context.Context, request string) (*DecodedRequest, error)

	// CheckSettlement reports whether the payment behind a commitment
	// hash has settled. Idempotent and side-effect-free.
	CheckSettlement(ctx context.Context, commitmentHash []byte) (*SettlementStatus, error)

	// ChannelBalance reports the node's spendable balances.
	ChannelBalance(ctx context.Context) (*Balance, error)
}

// PaymentRequest is a freshly created receivable.
type PaymentRequest struct {
	// CommitmentHash is the payment hash the settlement secret must
	// match.
	CommitmentHash []byte

	// Request is the encoded payment request string handed to payers.
	Request string
}

// Settlement is the result of paying a payment request.
type Settlement struct {
	// Secret is the settlement secret revealed by the payment.
	Secret []byte

	// Fee is the routing fee paid on top of the amount, in base units.
	Fee int64
}

// DecodedRequest is the read-only view of a payment request.
type DecodedRequest struct {
	Amount         int64
	Memo           string
	Destination    string
	CommitmentHash []byte
	ExpirySeconds  int64
}

// SettlementStatus reports inbound settlement state for a receivable.
type SettlementStatus struct {
	Settled        bool
	AmountReceived int64
}

// Balance is the node's channel balance snapshot, in base units.
type Balance struct {
	Local       int64
	Remote      int64
	PendingOpen int64
}
