package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"boop/server/internal/utils"
)

var tokenCmd = &cobra.Command{
	Use:     "token [uid]",
	Short:   "Print a signed JWT for a user",
	Example: "boop token user1",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		token, err := utils.GenerateToken([]byte(cfg.JWTSecret), args[0], cfg.JWTExpiry)
		if err != nil {
			return fmt.Errorf("failed to sign token: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}
