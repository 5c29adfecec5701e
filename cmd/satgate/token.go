package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/satgate/satgate-core/pkg/credential"
)

var (
	flagVerifyResource string
	flagVerifySecret   string
)

func init() {
	tokenVerifyCmd.Flags().StringVar(&flagVerifyResource, "resource", "", "Resource ID to verify against")
	tokenVerifyCmd.Flags().StringVar(&flagVerifySecret, "server-secret", "", "Issuer server secret")
	_ = tokenVerifyCmd.MarkFlagRequired("resource")
	_ = tokenVerifyCmd.MarkFlagRequired("server-secret")

	tokenCmd.AddCommand(tokenDecodeCmd)
	tokenCmd.AddCommand(tokenVerifyCmd)
	rootCmd.AddCommand(tokenCmd)
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Inspect and verify presentable tokens",
}

var tokenDecodeCmd = &cobra.Command{
	Use:   "decode [token]",
	Short: "Decode a presentable token without verifying it",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		tok, err := credential.ParseToken(args[0])
		if err != nil {
			return err
		}
		caveats := make([]map[string]string, 0, len(tok.Credential.Caveats))
		for _, cv := range tok.Credential.Caveats {
			caveats = append(caveats, map[string]string{"key": cv.Key, "value": cv.Value})
		}
		return json.NewEncoder(os.Stdout).Encode(map[string]any{
			"location":      tok.Credential.Location,
			"identifier":    hex.EncodeToString(tok.Credential.Identifier),
			"caveats":       caveats,
			"signature":     hex.EncodeToString(tok.Credential.Signature),
			"secret_prefix": hex.EncodeToString(tok.Secret)[:min(8, len(tok.Secret)*2)],
		})
	},
}

var tokenVerifyCmd = &cobra.Command{
	Use:   "verify [token]",
	Short: "Verify a presentable token against a resource",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		tok, err := credential.ParseToken(args[0])
		if err != nil {
			return err
		}
		minter, err := credential.NewMinter([]byte(flagVerifySecret), tok.Credential.Location)
		if err != nil {
			return err
		}
		result, err := minter.Verify(tok, flagVerifyResource, credential.VerifyOptions{})
		if err != nil {
			return err
		}
		fmt.Printf("valid: resource %q, expires %s\n",
			result.ResourceID, result.ExpiresAt.UTC().Format(time.RFC3339))
		return nil
	},
}
