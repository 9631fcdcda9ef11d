package cmd

import (
	"errors"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/gnoswap-labs/borrowck/check"
)

const defaultTimeout = 5 * time.Minute

var (
	cfgFile  string
	timeout  time.Duration
	cacheDir string
	verbose  bool

	logger = zap.NewNop()
)

// ErrIssuesFound is returned when a run reports error-level issues.
var ErrIssuesFound = errors.New("issues found")

var rootCmd = &cobra.Command{
	Use:               "borrowck [paths...]",
	Short:             "borrowck - verify ownership and borrowing in operation traces",
	TraverseChildren:  true, // Prioritize subcommands
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setupLogger,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return cmd.Help()
		}
		// borrowck [path1 path2 ...] behaves like the check subcommand
		return checkCmd.RunE(cmd, args)
	},
}

// Execute runs the root command.
func Execute() error {
	defer func() { _ = logger.Sync() }()
	return rootCmd.Execute()
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", check.DefaultConfigFile, "Path to the configuration file")
	flags.DurationVar(&timeout, "timeout", defaultTimeout, "Give up after this long")
	flags.StringVar(&cacheDir, "cache-dir", "", "Reuse results of unchanged traces stored in this directory")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Log every operation and violation")

	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(explainCmd)
}

func setupLogger(cmd *cobra.Command, _ []string) error {
	config := zap.NewDevelopmentConfig()
	config.OutputPaths = []string{"stderr"}
	config.DisableStacktrace = true
	config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	config.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	if verbose {
		config.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}

	built, err := config.Build()
	if err != nil {
		return err
	}
	logger = built
	return nil
}
