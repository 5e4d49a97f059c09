package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/iliyamo/floor-allocation/internal/utils"
)

var (
	tokenSubject string
	tokenTTL     int
)

func init() {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an ADMIN access token for the allocation endpoints",
		Long: `The token command signs an HS256 JWT with JWT_SECRET for an operator
or for the donation tracker's approval workflow.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := os.Getenv("JWT_SECRET")
			if secret == "" {
				return errors.New("JWT_SECRET is not set")
			}
			tok, err := utils.NewAccessToken(secret, tokenSubject, utils.RoleAdmin, tokenTTL)
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(map[string]any{"token": tok.Token, "expires_at": tok.Exp})
			}
			fmt.Println(tok.Token)
			return nil
		},
	}
	cmd.Flags().StringVar(&tokenSubject, "subject", "operator", "Token subject")
	cmd.Flags().IntVar(&tokenTTL, "ttl", 60, "Lifetime in minutes")
	rootCmd.AddCommand(cmd)
}
