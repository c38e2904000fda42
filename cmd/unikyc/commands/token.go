package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	jwttoken "unikyc/internal/jwt_token"
	id "unikyc/pkg/domain"
)

var tokenTTL time.Duration

var tokenCmd = &cobra.Command{
	Use:   "token <address>",
	Short: "Issue a bearer token for an account address",
	Long: `token signs an access token with the configured key. Intended for
development and operator tooling; production tokens come from the wallet
sign-in flow.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		addr, err := id.ParseAddress(args[0])
		if err != nil {
			return err
		}
		ttl := tokenTTL
		if ttl <= 0 {
			ttl = cfg.Auth.TokenTTL
		}
		jwtService := jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.Issuer, cfg.Auth.Audience)
		token, err := jwtService.GenerateAccessToken(addr, ttl)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "token lifetime (defaults to auth.token_ttl)")
}
