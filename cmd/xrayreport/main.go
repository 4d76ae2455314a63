package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/torosent/xrayload/internal/analysis"
	"github.com/torosent/xrayload/internal/logging"
	"github.com/torosent/xrayload/internal/output"
)

const completionMessage = "Analysis complete. See response_time.png, failure_counts.png, and metrics_summary.txt"

func main() {
	if err := newRootCommand(os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	var (
		outputDir string
		logLevel  string
		logFormat string
		theme     string
	)

	cmd := &cobra.Command{
		Use:           "xrayreport <report.csv>",
		Short:         "Summarize and chart an xrayload performance report",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := logging.NewWithWriter(logLevel, logFormat, stderr)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			res, err := analysis.New(log).Analyze(args[0])
			if err != nil {
				log.Error("failed to analyze report", zap.String("path", args[0]), zap.Error(err))
				return err
			}
			if _, err := output.Emit(outputDir, res, theme, log); err != nil {
				log.Error("failed to write analysis outputs", zap.Error(err))
				return err
			}
			fmt.Fprintln(stdout, completionMessage)
			return nil
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	flags := cmd.Flags()
	flags.StringVar(&outputDir, "output-dir", ".", "Directory for response_time.png, failure_counts.png and metrics_summary.txt")
	flags.StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	flags.StringVar(&logFormat, "log-format", logging.FormatConsole, "Log format: console or json")
	flags.StringVar(&theme, "theme", output.PreferredTheme, "Chart theme (unknown themes fall back to the plain default)")
	return cmd
}
