package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"b2downloader/internal/mirror"
	"b2downloader/internal/models"
	"b2downloader/internal/notify"
	"b2downloader/pkg/utils"
)

func runDownload(cmd *cobra.Command) error {
	out := cmd.OutOrStdout()

	cfg, log, err := setup(cmd)
	if err != nil {
		utils.PrintError(cmd.ErrOrStderr(), err, "download")
		return err
	}
	defer func() { _ = log.Sync() }()

	m := mirror.New(cfg, openSession, notify.New(cfg, log), log, mirror.WithOutput(out))
	summary := m.Run(cmd.Context())

	if isJSON(cmd) {
		if err := utils.PrintJSON(out, summary); err != nil {
			log.Error("Failed to print summary", zap.Error(err))
		}
	} else {
		printSummary(out, summary)
	}

	strict, _ := cmd.Flags().GetBool("strict")
	if strict && summary.Outcome == models.OutcomeFailure {
		return fmt.Errorf("%w: %s", ErrRunFailed, summary.Error)
	}
	return nil
}

func printSummary(w io.Writer, s *models.RunSummary) {
	duration := utils.FormatDuration(s.Duration())
	switch s.Outcome {
	case models.OutcomeSuccess:
		fmt.Fprintf(w, "Run %s SUCCESS: %d of %d file(s) downloaded from %s (%s) in %s",
			s.RunID, len(s.Succeeded), s.TotalObjects, s.BucketName, utils.FormatBytes(s.TotalBytes), duration)
		if len(s.Failed) > 0 {
			fmt.Fprintf(w, ", %d failed", len(s.Failed))
		}
		fmt.Fprintln(w)
	case models.OutcomeEmpty:
		fmt.Fprintf(w, "Run %s EMPTY: no files found in %s (0 total, 0 succeeded, 0 failed) in %s\n",
			s.RunID, s.BucketName, duration)
	default:
		fmt.Fprintf(w, "Run %s FAILURE: %d total, %d succeeded, %d failed in %s: %s\n",
			s.RunID, s.TotalObjects, len(s.Succeeded), len(s.Failed), duration, s.Error)
	}
}

func init() {
	rootCmd.Flags().Int("concurrency", 1, "Number of parallel transfers")
	rootCmd.Flags().Bool("strict", false, "Exit with a non-zero status when the run fails")
}
