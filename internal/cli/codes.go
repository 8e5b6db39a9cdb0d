package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cleverdevil/dwell/internal/utils"
)

// NewSweepCodesCommand creates the sweep-codes command.
func NewSweepCodesCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "sweep-codes",
		Short:        "Delete expired authorization codes",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			codes, db, err := rootOpts.openCodes(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			n, err := codes.DeleteExpired(cmd.Context(), time.Now())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "removed %d expired code(s)\n", n)
			return err
		},
	}
}

// NewRevokeCodeCommand creates the revoke-code command. The argument is the
// raw code a client holds; only its hash is looked up.
func NewRevokeCodeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "revoke-code <code>",
		Short:        "Revoke an authorization code",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			codes, db, err := rootOpts.openCodes(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			hash := utils.HashCode(args[0])
			if _, err := codes.FindByHash(cmd.Context(), hash); err != nil {
				return fmt.Errorf("code not found: %w", err)
			}
			if err := codes.Revoke(cmd.Context(), hash); err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "revoked")
			return err
		},
	}
}
