package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/project-registry/internal/report"
	"github.com/sells-group/project-registry/internal/resilience"
)

var dlqCmd = &cobra.Command{
	Use:   "dlq",
	Short: "Show the dead letter queue size",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		count, err := st.CountDLQ(ctx)
		if err != nil {
			return eris.Wrap(err, "dlq count")
		}
		fmt.Fprintf(os.Stdout, "Dead letter entries:\t%d\n", count)
		return nil
	},
}

var dlqReplayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Re-process due dead letter entries",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx, "run")
		if err != nil {
			return err
		}
		defer env.Close()

		limit, _ := cmd.Flags().GetInt("limit")
		errorType, _ := cmd.Flags().GetString("error-type")

		res, err := env.Pipeline.ReplayDLQ(ctx, resilience.DLQFilter{ErrorType: errorType, Limit: limit})
		if err != nil {
			return eris.Wrap(err, "dlq replay")
		}

		remaining, err := env.Store.CountDLQ(ctx)
		if err != nil {
			zap.L().Warn("dlq count after replay", zap.Error(err))
		}
		return report.Replay(os.Stdout, res, remaining)
	},
}

func init() {
	dlqReplayCmd.Flags().Int("limit", 100, "maximum entries to replay")
	dlqReplayCmd.Flags().String("error-type", "", "only replay entries of this class (transient or permanent)")

	dlqCmd.AddCommand(dlqReplayCmd)
	rootCmd.AddCommand(dlqCmd)
}
