package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/dgallion1/docsum/internal/checkpoint"
)

var listJSON bool

// NewCheckpointsCmd creates the checkpoints command group.
func NewCheckpointsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "checkpoints",
		Aliases: []string{"cp"},
		Short:   "Inspect and manage saved progress",
		Long: `Inspect and manage checkpoints of unfinished summarization runs.

A checkpoint is removed automatically once its run succeeds. Deleting one
makes the next run on that content start from the first chunk.`,
	}

	cmd.AddCommand(newCheckpointsListCmd())
	cmd.AddCommand(newCheckpointsShowCmd())
	cmd.AddCommand(newCheckpointsDeleteCmd())

	return cmd
}

func newCheckpointsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved checkpoints, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			store, err := openStore(ctx, cfg, newLogger(cmd, cfg))
			if err != nil {
				return err
			}
			defer store.Close()

			records, err := store.List(ctx)
			if err != nil {
				return fmt.Errorf("listing checkpoints: %w", err)
			}

			out := cmd.OutOrStdout()
			if listJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(records)
			}
			if len(records) == 0 {
				fmt.Fprintln(out, "No checkpoints.")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TASK\tFILE\tPROGRESS\tTOKENS\tUPDATED")
			for _, rec := range records {
				fmt.Fprintf(w, "%s\t%s\t%d/%d\t%s\t%s\n",
					rec.TaskID[:12],
					rec.Metadata.Filename,
					rec.Completed(), rec.TotalChunks,
					humanize.Comma(rec.Usage.TotalTokens),
					humanize.Time(rec.UpdatedAt))
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&listJSON, "json", false, "Print full records as JSON")
	return cmd
}

func newCheckpointsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show TASK_ID",
		Short: "Print one checkpoint as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			store, err := openStore(ctx, cfg, newLogger(cmd, cfg))
			if err != nil {
				return err
			}
			defer store.Close()

			taskID, err := resolveTaskID(cmd, store, args[0])
			if err != nil {
				return err
			}
			rec, err := store.Load(ctx, taskID)
			if err != nil {
				return err
			}
			if rec == nil {
				return fmt.Errorf("no checkpoint for %s", taskID)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(rec)
		},
	}
}

func newCheckpointsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "delete TASK_ID",
		Aliases: []string{"rm"},
		Short:   "Delete a checkpoint",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			store, err := openStore(ctx, cfg, newLogger(cmd, cfg))
			if err != nil {
				return err
			}
			defer store.Close()

			taskID, err := resolveTaskID(cmd, store, args[0])
			if err != nil {
				return err
			}
			if err := store.Delete(ctx, taskID); err != nil {
				return fmt.Errorf("deleting checkpoint: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", taskID)
			return nil
		},
	}
}

// resolveTaskID accepts a full task id or a unique prefix of one, as
// printed by list.
func resolveTaskID(cmd *cobra.Command, store checkpoint.Store, arg string) (string, error) {
	if checkpoint.ValidTaskID(arg) {
		return arg, nil
	}
	if arg == "" {
		return "", errors.New("task id is required")
	}
	records, err := store.List(cmd.Context())
	if err != nil {
		return "", fmt.Errorf("listing checkpoints: %w", err)
	}
	var match string
	for _, rec := range records {
		if strings.HasPrefix(rec.TaskID, arg) {
			if match != "" {
				return "", fmt.Errorf("task id prefix %q is ambiguous", arg)
			}
			match = rec.TaskID
		}
	}
	if match == "" {
		return "", fmt.Errorf("no checkpoint matches %q", arg)
	}
	return match, nil
}
