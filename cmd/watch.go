package cmd

import (
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gnoswap-labs/borrowck/formatter"
	"github.com/gnoswap-labs/borrowck/internal"
	tt "github.com/gnoswap-labs/borrowck/internal/types"
)

var watchCmd = &cobra.Command{
	Use:   "watch [dirs...]",
	Short: "Re-verify trace files whenever they change",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			args = []string{"."}
		}
		engine, err := newEngine()
		if err != nil {
			return err
		}

		watcher := internal.NewWatcher(engine, logger, args...)
		watcher.OnReport(reportChange(cmd.OutOrStdout()))
		if err := watcher.Start(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		fmt.Fprintf(cmd.OutOrStdout(), "watching %d director%s, press Ctrl+C to stop\n", len(args), pluralSuffix(len(args)))
		<-ctx.Done()
		return watcher.Stop()
	},
}

func pluralSuffix(n int) string {
	if n == 1 {
		return "y"
	}
	return "ies"
}

func reportChange(out io.Writer) internal.ReportFunc {
	return func(filename string, issues []tt.Issue, err error) {
		if err != nil {
			logger.Error("Error verifying file", zap.String("file", filename), zap.Error(err))
			fmt.Fprintf(out, "%s: %v\n", filename, err)
			return
		}
		if len(issues) == 0 {
			fmt.Fprintf(out, "%s: ok\n", filename)
			return
		}
		sourceCode, readErr := internal.ReadSourceCode(filename)
		if readErr != nil {
			sourceCode = &internal.SourceCode{}
		}
		fmt.Fprint(out, formatter.GenerateFormattedIssue(issues, sourceCode))
		fmt.Fprintf(out, "%s: %s\n", filename, formatter.Summary(issues))
	}
}
