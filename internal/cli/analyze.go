package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/deploy-doctor/internal/config"
	"github.com/deploy-doctor/internal/domain"
	"github.com/deploy-doctor/internal/formatter"
	"github.com/deploy-doctor/internal/logger"
	"github.com/deploy-doctor/internal/service"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type analyzeOptions struct {
	variant    string
	context    string
	output     string
	writeFiles string
	verbose    bool
}

// NewAnalyzeCmd builds the analyze subcommand.
func NewAnalyzeCmd() *cobra.Command {
	opts := &analyzeOptions{}

	cmd := &cobra.Command{
		Use:   "analyze [FILE|-]",
		Short: "Analyze a deployment log",
		Long: `Analyze a build or runtime log read from FILE, or from stdin when FILE is "-" or omitted.

Examples:
  # Diagnose a failed Render build
  doctor analyze build.log --context "Render, n8n"

  # Ask for corrected files and write them to ./fix
  doctor analyze build.log --variant file-fix --write-files ./fix

  # Pipe a log and get JSON
  docker logs n8n 2>&1 | doctor analyze -o json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, args, opts)
		},
	}

	cmd.Flags().StringVar(&opts.variant, "variant", string(domain.DefaultVariant), "Result shape (log-diagnosis, file-fix)")
	cmd.Flags().StringVarP(&opts.context, "context", "c", "", "Deployment context, e.g. hosting platform or project type")
	cmd.Flags().StringVarP(&opts.output, "output", "o", formatter.FormatHuman, "Output format (human, json, yaml)")
	cmd.Flags().StringVar(&opts.writeFiles, "write-files", "", "Directory to write proposed files to (file-fix only)")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose logging to stderr")

	return cmd
}

func runAnalyze(cmd *cobra.Command, args []string, opts *analyzeOptions) error {
	switch opts.output {
	case formatter.FormatHuman, formatter.FormatJSON, formatter.FormatYAML:
	default:
		return fmt.Errorf("unknown output format %q (use human, json or yaml)", opts.output)
	}

	variant, err := domain.ParseVariant(opts.variant)
	if err != nil {
		return err
	}

	logText, err := readInput(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}

	req, err := domain.NewAnalysisRequest(logText, opts.context, variant)
	if err != nil {
		return err
	}

	zapLogger, err := logger.NewCLI(opts.verbose)
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	defer zapLogger.Sync()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	analyzer, err := service.Build(cfg, zapLogger)
	if err != nil {
		return err
	}
	session := service.NewSession(analyzer)

	stdout := cmd.OutOrStdout()
	human := opts.output == formatter.FormatHuman

	var s *spinner.Spinner
	if human && !opts.verbose {
		s = spinner.New(spinner.CharSets[11], 100*time.Millisecond, spinner.WithWriter(cmd.ErrOrStderr()))
		s.Suffix = fmt.Sprintf(" Analyzing with %s...", analyzer.Provider())
		s.Start()
	}

	result, err := session.Submit(cmd.Context(), req)
	if s != nil {
		s.Stop()
	}
	if err != nil {
		return err
	}

	if human {
		printSuccess(cmd.ErrOrStderr(), "Analysis complete")
	}
	if err := formatter.Render(stdout, result, opts.output); err != nil {
		return err
	}

	if opts.writeFiles != "" {
		if result.FileFix == nil {
			zapLogger.Warn("--write-files ignored: result has no files", zap.String("variant", string(result.Variant)))
			return nil
		}
		paths, err := formatter.WriteFiles(opts.writeFiles, result.FileFix)
		if err != nil {
			return err
		}
		for _, p := range paths {
			printSuccess(cmd.ErrOrStderr(), "Wrote "+p)
		}
	}

	return nil
}

func readInput(stdin io.Reader, args []string) (string, error) {
	r := stdin
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return "", fmt.Errorf("open log: %w", err)
		}
		defer f.Close()
		r = f
	}

	data, err := io.ReadAll(io.LimitReader(r, domain.MaxInputBytes))
	if err != nil {
		return "", fmt.Errorf("read log: %w", err)
	}
	return string(data), nil
}

func printSuccess(w io.Writer, msg string) {
	color.New(color.FgGreen).Fprintf(w, "✓ %s\n", msg)
}
