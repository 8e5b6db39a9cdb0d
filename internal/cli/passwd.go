package cli

import (
	"bufio"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cleverdevil/dwell/internal/utils"
)

// NewPasswdCommand creates the passwd command. It prints a bcrypt hash for
// the password_hash field of a site file credential.
func NewPasswdCommand() *cobra.Command {
	var (
		password string
		cost     int
	)
	defaultCost, err := strconv.Atoi(envOr("BCRYPT_COST", "12"))
	if err != nil {
		defaultCost = 12
	}

	cmd := &cobra.Command{
		Use:   "passwd",
		Short: "Hash a password for the site file",
		Long: `Hash a password with bcrypt and print the result.

The password is read from --password or, when that is empty, from the
first line of standard input.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			plain := password
			if plain == "" {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return errors.New("no password given")
				}
				plain = strings.TrimRight(line, "\r\n")
			}
			if plain == "" {
				return errors.New("empty password")
			}
			hash, err := utils.HashPassword(plain, cost)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), hash)
			return err
		},
	}

	cmd.Flags().StringVar(&password, "password", "", "password to hash (default: read stdin)")
	cmd.Flags().IntVar(&cost, "cost", defaultCost, "bcrypt cost")
	return cmd
}
