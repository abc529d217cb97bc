package commands

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/dgallion1/docsum/internal/completion"
	"github.com/dgallion1/docsum/internal/config"
	"github.com/dgallion1/docsum/internal/doctree"
	"github.com/dgallion1/docsum/internal/parser"
	"github.com/dgallion1/docsum/internal/pipeline"
)

var (
	sumReduce     bool
	sumChunkSize  int
	sumOverlap    int
	sumDirectives string
	sumOut        string
	sumProvider   string
	sumModel      string
)

// NewSummarizeCmd creates the summarize command.
func NewSummarizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summarize FILE",
		Short: "Summarize a document",
		Long: `Summarize a document chunk by chunk.

Each finished chunk is checkpointed. If the run is interrupted or a call
fails, rerunning the same command resumes after the last saved chunk.

Examples:
  docsum summarize report.pdf
  docsum summarize notes.md --reduce --out summary.txt
  docsum summarize big.txt --chunk-size 4000 --overlap 200`,
		Args: cobra.ExactArgs(1),
		RunE: runSummarize,
	}

	cmd.Flags().BoolVar(&sumReduce, "reduce", false, "Merge chunk summaries with one extra call")
	cmd.Flags().IntVar(&sumChunkSize, "chunk-size", 0, "Maximum chunk size in characters (default from config)")
	cmd.Flags().IntVar(&sumOverlap, "overlap", 0, "Characters shared between consecutive chunks")
	cmd.Flags().StringVar(&sumDirectives, "directives", "", "Extra instructions added to every prompt")
	cmd.Flags().StringVarP(&sumOut, "out", "o", "", "Write the summary to a file instead of stdout")
	cmd.Flags().StringVar(&sumProvider, "provider", "", "Completion provider (anthropic, openai, gemini, echo)")
	cmd.Flags().StringVar(&sumModel, "model", "", "Model name for the provider")

	return cmd
}

func runSummarize(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("provider") {
		cfg.LLM.Provider = sumProvider
		if !flags.Changed("model") {
			cfg.LLM.Model = ""
		}
	}
	if flags.Changed("model") {
		cfg.LLM.Model = sumModel
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = config.DefaultModel(cfg.LLM.Provider)
	}
	if flags.Changed("chunk-size") {
		cfg.Chunking.Size = sumChunkSize
	}
	if flags.Changed("overlap") {
		cfg.Chunking.Overlap = sumOverlap
	}
	if flags.Changed("reduce") {
		cfg.Chunking.Reduce = sumReduce
	}
	if err := cfg.ChunkConfig().Validate(); err != nil {
		return err
	}
	if err := cfg.ValidateProvider(); err != nil {
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

	stats := completion.NewLLMStats(cfg.LLM.StatsWindow)
	client, err := completion.Stack(ctx, cfg.ProviderConfig(), cfg.RetryPolicy(), stats, log)
	if err != nil {
		return err
	}

	stderr := cmd.ErrOrStderr()
	s := pipeline.NewSummarizer(client, store, log)
	result, err := s.Summarize(ctx, doc, pipeline.Options{
		Chunking:   cfg.ChunkConfig(),
		Directives: sumDirectives,
		Reduce:     cfg.Chunking.Reduce,
		Progress: func(p pipeline.Progress) {
			fmt.Fprintf(stderr, "chunk %d/%d done (%s tokens)\n", p.Completed, p.Total, humanize.Comma(p.Usage.TotalTokens))
		},
	})
	if err != nil {
		var runErr *pipeline.RunError
		if errors.As(err, &runErr) && runErr.TaskID != "" {
			fmt.Fprintln(stderr, "Progress is saved; rerun the same command to resume.")
		}
		return err
	}

	if err := writeSummary(cmd.OutOrStdout(), result.Summary); err != nil {
		return err
	}

	if result.ResumedFrom > 0 {
		fmt.Fprintf(stderr, "Resumed after chunk %d of %d.\n", result.ResumedFrom, result.TotalChunks)
	}
	fmt.Fprintf(stderr, "Summarized %s characters into %s in %d chunks, %s tokens.\n",
		humanize.Comma(int64(result.OriginalLength)),
		humanize.Comma(int64(result.SummaryLength)),
		result.TotalChunks,
		humanize.Comma(result.Usage.TotalTokens))
	return nil
}

func loadFile(path string) (doctree.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return doctree.Document{}, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	return parser.LoadDocument(f, path)
}

func writeSummary(stdout io.Writer, summary string) error {
	if sumOut == "" {
		_, err := fmt.Fprintln(stdout, summary)
		return err
	}
	if err := os.WriteFile(sumOut, []byte(summary+"\n"), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", sumOut, err)
	}
	return nil
}
