package main

import (
	"fmt"
	"time"

	"github.com/kube-rca/rca-worker/internal/config"
	"github.com/kube-rca/rca-worker/internal/service"
	"github.com/spf13/cobra"
)

var tokenOpts struct {
	subject string
	ttl     time.Duration
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a gateway JWT signed with AI_GATEWAY_SECRET",
	RunE: func(cmd *cobra.Command, args []string) error {
		token, err := service.NewGatewayAuth(config.Load().Auth).IssueToken(tokenOpts.subject, tokenOpts.ttl)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenOpts.subject, "subject", "collector", "caller identifier stored in the token")
	tokenCmd.Flags().DurationVar(&tokenOpts.ttl, "ttl", 0, "token lifetime (0 = no expiry)")
}
