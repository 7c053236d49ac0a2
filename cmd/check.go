package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"b2downloader/internal/mirror"
	"b2downloader/pkg/utils"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify credentials and bucket access without downloading",
	Long: `Validate the configuration, authorize against the storage endpoint and
confirm the bucket exists. Nothing is listed, downloaded or emailed.

The bucket name is taken from the configuration unless overridden with --bucket flag.`,
	Example: `  # Check the configured bucket
  b2downloader check

  # Check another bucket and print JSON
  b2downloader check --bucket my-other-bucket --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCheck(cmd)
	},
}

func runCheck(cmd *cobra.Command) error {
	out := cmd.OutOrStdout()

	cfg, log, err := setup(cmd)
	if err != nil {
		utils.PrintError(cmd.ErrOrStderr(), err, "check")
		return err
	}
	defer func() { _ = log.Sync() }()

	if isVerbose(cmd) {
		cmd.Printf("Checking bucket: %s\n", cfg.BucketName)
	}

	res := mirror.New(cfg, openSession, nil, log).Check(cmd.Context())

	if isJSON(cmd) {
		if err := utils.PrintJSON(out, res); err != nil {
			utils.PrintError(cmd.ErrOrStderr(), err, "check")
			return err
		}
	} else {
		fmt.Fprintf(out, "Bucket:      %s\n", res.BucketName)
		fmt.Fprintf(out, "Authorized:  %t\n", res.Authorized)
		fmt.Fprintf(out, "Reachable:   %t\n", res.BucketReachable)
		fmt.Fprintf(out, "Mail:        %t\n", res.MailConfigured)
		if res.Error != "" {
			fmt.Fprintf(out, "Error:       %s\n", res.Error)
		}
	}

	if !res.OK() {
		return fmt.Errorf("check failed: %s", res.Error)
	}
	return nil
}
