package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/healthsync/symptom-triage/internal/shared/auth"
	"github.com/spf13/cobra"
)

// tokenCmd mints a bearer token for local testing against AUTH_ENABLED servers.
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a signed development token",
	RunE:  runToken,
}

var (
	tokenUser    string
	tokenTTL     time.Duration
	tokenAccess  string
	tokenRefresh string
)

func init() {
	tokenCmd.Flags().StringVar(&tokenUser, "user", "", "user id (token subject)")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime")
	tokenCmd.Flags().StringVar(&tokenAccess, "wearable-access-token", "", "linked wearable access token")
	tokenCmd.Flags().StringVar(&tokenRefresh, "wearable-refresh-token", "", "linked wearable refresh token")
}

func runToken(cmd *cobra.Command, args []string) error {
	if tokenUser == "" {
		return errors.New("--user is required")
	}
	if cfg.Server.Env == "production" {
		return errors.New("refusing to issue development tokens in production")
	}

	token, err := auth.IssueToken(cfg.Auth.JWTSecret, auth.User{
		ID:                   tokenUser,
		WearableAccessToken:  tokenAccess,
		WearableRefreshToken: tokenRefresh,
	}, tokenTTL)
	if err != nil {
		return fmt.Errorf("failed to sign token: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
