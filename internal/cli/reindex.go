package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cleverdevil/dwell/internal/queue"
)

// publishFunc sends a reindex request. Tests substitute a recorder.
type publishFunc func(ctx context.Context, url, queueName, reason string) error

// NewReindexCommand creates the reindex command, which asks running
// servers to rebuild their index through the broker.
func NewReindexCommand() *cobra.Command {
	return newReindexCommand(queue.PublishReindex)
}

func newReindexCommand(publish publishFunc) *cobra.Command {
	var (
		url, queueName, reason string
		timeout                time.Duration
	)

	cmd := &cobra.Command{
		Use:   "reindex",
		Short: "Ask running servers to rebuild the index",
		Long: `Publish a reindex request on the broker.

Use after writing documents straight into the content tree, for example
from an importer. Every server consuming the reindex queue rebuilds.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if url == "" {
				return errors.New("no broker configured: set --amqp-url or RABBITMQ_URL")
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			if err := publish(ctx, url, queueName, reason); err != nil {
				return fmt.Errorf("publish reindex: %w", err)
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "reindex requested on %s\n", queueName)
			return err
		},
	}

	cmd.Flags().StringVar(&url, "amqp-url", envOr("RABBITMQ_URL", envOr("AMQP_URL", "")), "broker URL")
	cmd.Flags().StringVar(&queueName, "queue", envOr("REINDEX_QUEUE", "dwell.reindex"), "reindex queue name")
	cmd.Flags().StringVar(&reason, "reason", "dwellctl", "reason recorded in the server log")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "publish timeout")
	return cmd
}
