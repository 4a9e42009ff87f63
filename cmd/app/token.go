package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	ucport "pet-subscription-sync/internal/domain/ports/usecase"
	"pet-subscription-sync/internal/infra/api"
)

var (
	tokenUser  string
	tokenEmail string
	tokenTTL   time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint an identity token for calling the sync endpoint (dev mode only)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !devMode {
			return errors.New("token minting requires --dev")
		}
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		tok, err := api.NewTokenVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer).
			Mint(ucport.Identity{UserID: tokenUser, Email: tokenEmail}, tokenTTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenUser, "user", "", "user id placed in sub")
	tokenCmd.Flags().StringVar(&tokenEmail, "email", "", "email claim")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", time.Hour, "token lifetime")
	_ = tokenCmd.MarkFlagRequired("user")
}
