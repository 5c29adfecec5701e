// Package main is the entry point for the satgate CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "satgate",
	Short: "Payment-bound credential issuer and agent",
	Long: `satgate issues and verifies bearer credentials whose validity is bound
to completion of a payment. It ships the issuer-side challenge server and
the consumer-side budget-enforced agent.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
