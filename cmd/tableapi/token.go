package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/dwidge/table-api/authn"
	"github.com/dwidge/table-api/records"
	"github.com/spf13/cobra"
)

var tokenFlags struct {
	callerID  int64
	roleID    int64
	companyID int64
	ttl       time.Duration
}

// tokenCmd signs a bearer token with the configured secret, for local use
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a signed bearer token",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Auth.JWTSecret == "" {
			return errors.New("auth.jwt_secret is required to issue tokens")
		}
		issuer, err := authn.NewJWTResolver([]byte(cfg.Auth.JWTSecret), authn.WithIssuer(cfg.Auth.Issuer))
		if err != nil {
			return err
		}

		auth := &records.Auth{RoleID: tokenFlags.roleID}
		if cmd.Flags().Changed("id") {
			auth.CallerID = &tokenFlags.callerID
		}
		if cmd.Flags().Changed("company") {
			auth.CompanyID = &tokenFlags.companyID
		}

		token, err := issuer.Issue(auth, tokenFlags.ttl)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().Int64Var(&tokenFlags.callerID, "id", 0, "caller id")
	tokenCmd.Flags().Int64Var(&tokenFlags.roleID, "role", 0, "role id")
	tokenCmd.Flags().Int64Var(&tokenFlags.companyID, "company", 0, "company id, omit for a caller that only reads shared rows")
	tokenCmd.Flags().DurationVar(&tokenFlags.ttl, "ttl", time.Hour, "token lifetime")
	rootCmd.AddCommand(tokenCmd)
}
