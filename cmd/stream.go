package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/project-registry/internal/model"
)

var streamFlags itemFlags

var streamCmd = &cobra.Command{
	Use:   "stream",
	Short: "Process raw items and print progress events as NDJSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		applyWorkers(streamFlags)

		env, err := initPipeline(ctx, "run")
		if err != nil {
			return err
		}
		defer env.Close()

		items, err := gatherItems(ctx, streamFlags, env.Lexicon)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		env.Pipeline.RunStreaming(ctx, items, func(ev model.ProgressEvent) {
			if err := enc.Encode(ev); err != nil {
				zap.L().Warn("write progress event", zap.Error(err))
			}
		})
		return nil
	},
}

func init() {
	addItemFlags(streamCmd, &streamFlags)
	rootCmd.AddCommand(streamCmd)
}
