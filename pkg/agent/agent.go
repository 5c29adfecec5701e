// Package agent implements the consumer side of the challenge
// protocol: a budget-enforced authorization agent that turns a priced
// challenge into spendable proof of payment. Every settlement is
// checked against a fixed budget ceiling and recorded in a persistent
// spend ledger before the secret is handed back to the driver.
package agent

import (
	"context"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/satgate/satgate-core/pkg/gateway"
	"github.com/satgate/satgate-core/pkg/ledger"
)

// SecretPrefixLen is how many hex characters of the settlement secret
// are kept in the ledger. Enough to correlate a payment with its
// challenge, without persisting the spendable secret itself.
const SecretPrefixLen = 16

// LedgerStore is the persistence handle the agent records spend
// through. *ledger.Store implements it.
type LedgerStore interface {
	Load() (*ledger.Ledger, error)
	Append(p ledger.Payment) error
	Path() string
}

// Agent is a budget-enforced payment agent. The ledger is its only
// mutable state; the mutex serializes the read-check-write sequence
// across Settle so two concurrent settlements can never both pass the
// ceiling check against a stale total.
type Agent struct {
	gw      gateway.Gateway
	store   LedgerStore
	ceiling int64

	mu sync.Mutex
}

// New creates an Agent spending through gw, recording into store, and
// never exceeding ceiling base units of cumulative spend.
func New(gw gateway.Gateway, store LedgerStore, ceiling int64) *Agent {
	return &Agent{
		gw:      gw,
		store:   store,
		ceiling: ceiling,
	}
}

// Outcome is the result of a successful settlement.
type Outcome struct {
	// Secret is the settlement secret revealed by the payment.
	Secret []byte

	// Amount, Fee and TotalCost are in base units; TotalCost is what
	// was debited from the budget.
	Amount    int64
	Fee       int64
	TotalCost int64

	// Remaining is the budget left after this settlement.
	Remaining int64
}

// Status is a point-in-time view of the budget.
type Status struct {
	Ceiling   int64
	Spent     int64
	Remaining int64
	History   []ledger.Payment
}

// Inspect decodes a payment request without committing funds.
func (a *Agent) Inspect(ctx context.Context, request string) (*gateway.DecodedRequest, error) {
	return a.gw.Decode(ctx, request)
}

// Settle pays a payment request if it fits the budget. The ceiling
// check happens before the gateway is contacted; a request that does
// not fit returns BUDGET_EXCEEDED without any network traffic.
//
// The caller may abandon an in-flight settlement through ctx. The
// payment itself is irrevocable once the node accepts it, so the pay
// and the ledger append run detached from the caller's cancellation: a
// success that lands after the caller gave up is still recorded, and
// Settle returns ctx.Err() to the caller. Ledger correctness takes
// priority over cancellation promptness.
func (a *Agent) Settle(ctx context.Context, request string) (*Outcome, error) {
	dec, err := a.gw.Decode(ctx, request)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	led, err := a.store.Load()
	if err != nil {
		a.mu.Unlock()
		return nil, err
	}
	remaining := a.ceiling - led.TotalSpent
	if dec.Amount > remaining {
		a.mu.Unlock()
		return nil, NewError(ErrCodeBudgetExceeded,
			fmt.Sprintf("payment of %d exceeds remaining budget %d (ceiling %d, spent %d)",
				dec.Amount, remaining, a.ceiling, led.TotalSpent))
	}

	// The mutex is held until the payment resolves, even if the caller
	// abandons: the goroutine below owns the unlock. This keeps the
	// ceiling check and the debit atomic with respect to other Settle
	// calls.
	done := make(chan settleResult, 1)
	payCtx := context.WithoutCancel(ctx)
	go func() {
		defer a.mu.Unlock()
		done <- a.payAndRecord(payCtx, dec, request, led.TotalSpent)
	}()

	select {
	case res := <-done:
		return res.outcome, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type settleResult struct {
	outcome *Outcome
	err     error
}

// payAndRecord performs the gateway payment and the ledger append. The
// caller must hold a.mu.
func (a *Agent) payAndRecord(ctx context.Context, dec *gateway.DecodedRequest, request string, spentBefore int64) settleResult {
	st, err := a.gw.Settle(ctx, request)
	if err != nil {
		// No speculative debit: a failed payment leaves the ledger
		// untouched.
		return settleResult{err: err}
	}

	totalCost := dec.Amount + st.Fee
	entry := ledger.Payment{
		Amount:       dec.Amount,
		Fee:          st.Fee,
		TotalCost:    totalCost,
		SecretPrefix: secretPrefix(st.Secret),
		Memo:         dec.Memo,
		Timestamp:    time.Now().UTC(),
	}
	if err := a.store.Append(entry); err != nil {
		// The payment went through but the record is gone. Surface it
		// loudly: the budget invariant is broken until the operator
		// reconciles the ledger by hand.
		log.Error().Err(err).
			Int64("amount", dec.Amount).
			Int64("fee", st.Fee).
			Str("secret_prefix", entry.SecretPrefix).
			Str("ledger", a.store.Path()).
			Msg("completed payment could not be recorded")
		return settleResult{err: WrapError(ErrCodeLedgerWriteFailed,
			fmt.Sprintf("payment of %d settled but could not be recorded in %s", dec.Amount, a.store.Path()), err)}
	}

	return settleResult{outcome: &Outcome{
		Secret:    st.Secret,
		Amount:    dec.Amount,
		Fee:       st.Fee,
		TotalCost: totalCost,
		Remaining: a.ceiling - spentBefore - totalCost,
	}}
}

// CreateReceivable creates an inbound payment request. Receiving is not
// spending, so the ledger is not touched.
func (a *Agent) CreateReceivable(ctx context.Context, amount int64, memo string, expirySeconds int64) (*gateway.PaymentRequest, error) {
	return a.gw.CreatePaymentRequest(ctx, amount, memo, expirySeconds)
}

// CheckSettlement polls for inbound settlement of a receivable.
// Idempotent and side-effect-free.
func (a *Agent) CheckSettlement(ctx context.Context, commitmentHash []byte) (*gateway.SettlementStatus, error) {
	return a.gw.CheckSettlement(ctx, commitmentHash)
}

// BudgetStatus is a pure read of the ledger.
func (a *Agent) BudgetStatus() (*Status, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	led, err := a.store.Load()
	if err != nil {
		return nil, err
	}
	return &Status{
		Ceiling:   a.ceiling,
		Spent:     led.TotalSpent,
		Remaining: a.ceiling - led.TotalSpent,
		History:   led.Payments,
	}, nil
}

func secretPrefix(secret []byte) string {
	s := hex.EncodeToString(secret)
	if len(s) > SecretPrefixLen {
		return s[:SecretPrefixLen]
	}
	return s
}
