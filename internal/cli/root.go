// Package cli implements dwellctl, the operator tool for a dwell site.
package cli

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cleverdevil/dwell/internal/database"
	"github.com/cleverdevil/dwell/internal/repository"
)

// RootOptions holds global flags for all commands. Defaults come from the
// same environment variables the server reads.
type RootOptions struct {
	DBDriver string
	DBDSN    string
}

// NewRootCommand creates the root command for dwellctl.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "dwellctl",
		Short: "Operator commands for a dwell site",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch opts.DBDriver {
			case "sqlite3", "mysql":
				return nil
			}
			return fmt.Errorf("invalid db driver %q: must be sqlite3 or mysql", opts.DBDriver)
		},
	}

	// Global flags
	cmd.PersistentFlags().StringVar(&opts.DBDriver, "db-driver", envOr("AUTH_DB_DRIVER", "sqlite3"), "authorization database driver (sqlite3|mysql)")
	cmd.PersistentFlags().StringVar(&opts.DBDSN, "db-dsn", envOr("AUTH_DB_DSN", "data/indieauth.db"), "authorization database DSN or sqlite path")

	// Add subcommands
	cmd.AddCommand(NewPasswdCommand())
	cmd.AddCommand(NewSweepCodesCommand(opts))
	cmd.AddCommand(NewRevokeCodeCommand(opts))
	cmd.AddCommand(NewReindexCommand())

	return cmd
}

// openCodes opens the codes table named by the global flags.
func (o *RootOptions) openCodes(ctx context.Context) (*repository.CodeRepo, *sql.DB, error) {
	dsn := o.DBDSN
	if o.DBDriver == "sqlite3" {
		dsn = database.SQLiteDSN(dsn)
	}
	db, err := database.Open(o.DBDriver, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s database: %w", o.DBDriver, err)
	}
	codes := repository.NewCodeRepo(db)
	if err := codes.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	return codes, db, nil
}

func envOr(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}
