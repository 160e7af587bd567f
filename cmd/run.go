package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/project-registry/internal/report"
)

var (
	runFlags itemFlags
	runJSON  bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Process raw items as one batch",
	Long:  "Reads raw items from --input, article pages given with --url and/or the configured sources, runs them through the pipeline and prints the run summary.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		applyWorkers(runFlags)

		env, err := initPipeline(ctx, "run")
		if err != nil {
			return err
		}
		defer env.Close()

		items, err := gatherItems(ctx, runFlags, env.Lexicon)
		if err != nil {
			return err
		}

		sum := env.Pipeline.Run(ctx, items)
		zap.L().Info("batch complete",
			zap.Int("processed", sum.Processed),
			zap.Int("added", sum.Added),
			zap.Int("updated", sum.Updated),
		)

		if runJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(sum)
		}
		return report.Summary(os.Stdout, sum)
	},
}

func addItemFlags(cmd *cobra.Command, f *itemFlags) {
	cmd.Flags().StringVar(&f.input, "input", "", "file of raw items as a JSON array or NDJSON (- for stdin)")
	cmd.Flags().StringSliceVar(&f.urls, "url", nil, "fetch and process a single article URL (repeatable)")
	cmd.Flags().BoolVar(&f.collect, "collect", false, "fetch items from the configured sources")
	cmd.Flags().IntVar(&f.workers, "workers", 0, "parallel workers (default from config)")
}

func init() {
	addItemFlags(runCmd, &runFlags)
	runCmd.Flags().BoolVar(&runJSON, "json", false, "print the summary as JSON")
	rootCmd.AddCommand(runCmd)
}
