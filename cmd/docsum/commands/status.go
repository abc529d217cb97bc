package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dgallion1/docsum/internal/pipeline"
)

// NewStatusCmd creates the status command.
func NewStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status FILE",
		Short: "Show what a summarize run on FILE would resume from",
		Long: `Show the checkpoint for a document without changing it.

The checkpoint is found by content, so a renamed copy of the same file
reports the same progress.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			log := newLogger(cmd, cfg)
			ctx := cmd.Context()

			doc, err := loadFile(args[0])
			if err != nil {
				return err
			}
			store, err := openStore(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer store.Close()

			st, err := pipeline.Inspect(ctx, store, doc.Content)
			if err != nil {
				return fmt.Errorf("inspecting checkpoint: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Task:   %s\n", st.TaskID)
			fmt.Fprintf(out, "Status: %s\n", st)
			return nil
		},
	}
}
