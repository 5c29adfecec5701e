package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/satgate/satgate-core/internal/config"
	"github.com/satgate/satgate-core/internal/logging"
	"github.com/satgate/satgate-core/pkg/agent"
	"github.com/satgate/satgate-core/pkg/gateway"
	"github.com/satgate/satgate-core/pkg/ledger"
)

var flagAgentJSON bool

func init() {
	agentCmd.PersistentFlags().BoolVar(&flagAgentJSON, "json", false, "Output results as JSON")

	agentCmd.AddCommand(agentInspectCmd)
	agentCmd.AddCommand(agentSettleCmd)
	agentCmd.AddCommand(agentBudgetCmd)
	agentCmd.AddCommand(agentReceiveCmd)
	agentCmd.AddCommand(agentCheckCmd)
	rootCmd.AddCommand(agentCmd)
}

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Budget-enforced payment agent",
	Long: `Drive the consumer-side agent: inspect and settle payment requests
within a budget ceiling, create receivables and read the spend ledger.
Configuration comes from the environment (see SATGATE_* variables).`,
}

// newAgent builds the agent from the environment.
func newAgent() (*agent.Agent, error) {
	logCfg, err := config.LoadLog()
	if err != nil {
		return nil, err
	}
	logging.Init(logCfg)

	gwCfg, err := config.LoadGateway()
	if err != nil {
		return nil, err
	}
	agentCfg, err := config.LoadAgent()
	if err != nil {
		return nil, err
	}

	gw := gateway.NewClient(gwCfg.Endpoint, gwCfg.APIKey)
	gw.HTTPClient.Timeout = gwCfg.Timeout
	return agent.New(gw, ledger.OpenStore(agentCfg.LedgerPath), agentCfg.BudgetCeiling), nil
}

func printResult(v any) error {
	if flagAgentJSON {
		return json.NewEncoder(os.Stdout).Encode(v)
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

var agentInspectCmd = &cobra.Command{
	Use:   "inspect [payment-request]",
	Short: "Decode a payment request without paying it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newAgent()
		if err != nil {
			return err
		}
		dec, err := a.Inspect(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printResult(map[string]any{
			"amount":          dec.Amount,
			"memo":            dec.Memo,
			"destination":     dec.Destination,
			"commitment_hash": hex.EncodeToString(dec.CommitmentHash),
			"expiry_seconds":  dec.ExpirySeconds,
		})
	},
}

var agentSettleCmd = &cobra.Command{
	Use:   "settle [payment-request]",
	Short: "Pay a payment request within the budget and print the settlement secret",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newAgent()
		if err != nil {
			return err
		}
		out, err := a.Settle(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printResult(map[string]any{
			"secret":     hex.EncodeToString(out.Secret),
			"amount":     out.Amount,
			"fee":        out.Fee,
			"total_cost": out.TotalCost,
			"remaining":  out.Remaining,
		})
	},
}

var agentBudgetCmd = &cobra.Command{
	Use:   "budget",
	Short: "Show budget ceiling, spend and payment history",
	Args:  cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		a, err := newAgent()
		if err != nil {
			return err
		}
		status, err := a.BudgetStatus()
		if err != nil {
			return err
		}
		return printResult(status)
	},
}

var (
	flagReceiveMemo   string
	flagReceiveExpiry int64
)

func init() {
	agentReceiveCmd.Flags().StringVar(&flagReceiveMemo, "memo", "", "Memo to attach to the payment request")
	agentReceiveCmd.Flags().Int64Var(&flagReceiveExpiry, "expiry", 3600, "Payment request expiry in seconds")
}

var agentReceiveCmd = &cobra.Command{
	Use:   "receive [amount]",
	Short: "Create an inbound payment request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var amount int64
		if _, err := fmt.Sscanf(args[0], "%d", &amount); err != nil || amount <= 0 {
			return fmt.Errorf("amount must be a positive integer, got %q", args[0])
		}
		a, err := newAgent()
		if err != nil {
			return err
		}
		pr, err := a.CreateReceivable(cmd.Context(), amount, flagReceiveMemo, flagReceiveExpiry)
		if err != nil {
			return err
		}
		return printResult(map[string]any{
			"payment_request": pr.Request,
			"commitment_hash": hex.EncodeToString(pr.CommitmentHash),
		})
	},
}

var agentCheckCmd = &cobra.Command{
	Use:   "check [commitment-hash-hex]",
	Short: "Poll settlement status of a receivable",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hash, err := hex.DecodeString(args[0])
		if err != nil {
			return fmt.Errorf("commitment hash must be hex: %w", err)
		}
		a, err := newAgent()
		if err != nil {
			return err
		}
		status, err := a.CheckSettlement(cmd.Context(), hash)
		if err != nil {
			return err
		}
		return printResult(status)
	},
}
