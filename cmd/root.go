package cmd

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"b2downloader/config"
	"b2downloader/internal/logging"
	"b2downloader/internal/mirror"
)

// ErrRunFailed is returned under --strict when a run ends in FAILURE.
var ErrRunFailed = errors.New("run failed")

// openSession is replaced in tests.
var openSession mirror.SessionFactory = mirror.OpenS3

var rootCmd = &cobra.Command{
	Use:   "b2downloader",
	Short: "Mirror the latest version of every object in a B2 bucket",
	Long: `b2downloader downloads the latest version of every object in a Backblaze B2
bucket into a local directory, keeping the object key hierarchy, and reports
the result by email.

Configuration is loaded from .env file or environment variables. Flags
override the environment.`,
	Example: `  # Mirror the configured bucket into the default directory
  b2downloader

  # Mirror another bucket into a specific directory with 4 workers
  b2downloader --bucket nightly-backups --download-dir /srv/restore --concurrency 4

  # Print the run summary as JSON and fail the process on FAILURE
  b2downloader --json --strict`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDownload(cmd)
	},
}

func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.AddCommand(checkCmd)

	rootCmd.PersistentFlags().StringP("bucket", "b", "", "Override bucket name from config")
	rootCmd.PersistentFlags().String("download-dir", config.DefaultDownloadDir, "Local directory to mirror into")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().Bool("json", false, "Print the result as JSON")

	rootCmd.SetUsageTemplate(usageTemplate)
}

// setup loads the configuration and installs the process logger.
func setup(cmd *cobra.Command) (*config.Config, *zap.Logger, error) {
	verbose := isVerbose(cmd)
	logging.Init("info", verbose)

	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return nil, nil, err
	}

	level := cfg.LogLevel
	if verbose {
		level = "debug"
	}
	return cfg, logging.Init(level, verbose), nil
}

func isVerbose(cmd *cobra.Command) bool {
	verbose, _ := cmd.Flags().GetBool("verbose")
	return verbose
}

func isJSON(cmd *cobra.Command) bool {
	asJSON, _ := cmd.Flags().GetBool("json")
	return asJSON
}

const usageTemplate = `Usage:{{if .Runnable}}
  {{.UseLine}}{{end}}{{if .HasAvailableSubCommands}}
  {{.CommandPath}} [command]{{end}}{{if gt (len .Aliases) 0}}

Aliases:
  {{.NameAndAliases}}{{end}}{{if .HasExample}}

Examples:
{{.Example}}{{end}}{{if .HasAvailableSubCommands}}

Available Commands:{{range .Commands}}{{if (or .IsAvailableCommand (eq .Name "help"))}}
  {{rpad .Name .NamePadding }} {{.Short}}{{end}}{{end}}{{end}}{{if .HasAvailableLocalFlags}}

Flags:
{{.LocalFlags.FlagUsages | trimTrailingWhitespaces}}{{end}}{{if .HasAvailableInheritedFlags}}

Global Flags:
{{.InheritedFlags.FlagUsages | trimTrailingWhitespaces}}{{end}}{{if .HasHelpSubCommands}}

Additional help topics:{{range .Commands}}{{if .IsAdditionalHelpTopicCommand}}
  {{rpad .Name .NamePadding }} {{.Short}}{{end}}{{end}}{{end}}{{if .HasAvailableSubCommands}}

Use "{{.CommandPath}} [command] --help" for more information about a command.{{end}}
`
