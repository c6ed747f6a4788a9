package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/curtbushko/zoom-recordings/internal/filename"
	"github.com/curtbushko/zoom-recordings/internal/logging"
	"github.com/curtbushko/zoom-recordings/internal/progress"
	"github.com/curtbushko/zoom-recordings/internal/zoom"
)

// createDownloadCommand creates the download subcommand
func createDownloadCommand(opts *cliOptions) *cobra.Command {
	var (
		window     rangeFlags
		outputDir  string
		noProgress bool
	)

	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download the files of every recording in a date range",
		Long: `Downloads every file of every recording in the date range into
<output-dir>/YYYY/MM/DD/<topic>-<HHMM>.<extension>, using the UTC start time
of the recording. Existing files are overwritten.`,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.closeInto(&err)

			from, to, pageSize, err := window.window(a.cfg.Download.PageSize)
			if err != nil {
				return err
			}
			if outputDir == "" {
				outputDir = a.cfg.Download.OutputDir
			}
			if err := a.restoreTokens(); err != nil {
				return err
			}

			ctx := cmd.Context()

			// Progress only fires while saving, after the reporter exists.
			var reporter *progress.Reporter
			onProgress := func(file zoom.RecordingFile, written, total int64) {
				reporter.OnProgress(file, written, total)
			}

			recordings, err := a.catalog(cmd.OutOrStdout(), onProgress).ListRecordings(ctx, from, to, pageSize)
			if err != nil {
				return fmt.Errorf("failed to list recordings: %w", err)
			}
			if len(recordings) == 0 {
				cmd.Println("No recordings found")
				return nil
			}

			reporter = progress.NewReporter(len(recordings), progress.ReporterConfig{
				ShowProgressBar: !noProgress,
				Writer:          cmd.ErrOrStderr(),
				ShowSpeed:       true,
				ShowETA:         true,
			}, a.logger)

			sanitizer := filename.NewFileSanitizer(filename.FileSanitizerOptions{})
			for _, rec := range recordings {
				recCtx := logging.WithRequestID(ctx, logging.GenerateRequestID())
				prefix := sanitizer.PathPrefix(outputDir, rec)

				a.logger.DebugWithContext(recCtx, "Saving recording %s (%s) to %s", rec.UUID, rec.Topic, prefix)
				err := rec.Save(recCtx, prefix, opts.verbose)
				if err != nil {
					a.logger.ErrorWithContext(recCtx, "Recording %s failed: %v", rec.UUID, err)
				}
				reporter.RecordingDone(rec, err)
				a.metrics.ObserveRecording(rec, err)
			}

			summary := reporter.Finish(ctx)
			a.metrics.AddBytes(summary.TotalBytes)

			if summary.FailedRecordings > 0 {
				return fmt.Errorf("%d of %d recordings failed to download", summary.FailedRecordings, summary.TotalRecordings)
			}
			return nil
		},
	}

	window.register(cmd)
	cmd.Flags().StringVar(&outputDir, "output-dir", "", "base download directory (default: download.output_dir)")
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "disable progress bars")

	return cmd
}
