package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"ytscribe/internal/app"
	"ytscribe/internal/storage"
)

// errProblems makes the process exit non-zero when a run finished but some
// of its items did not.
var errProblems = errors.New("not every item succeeded")

func newVideoCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "video <url-or-id>",
		Short: "Save the transcript of one video",
		Example: `  ytscribe video "https://www.youtube.com/watch?v=dQw4w9WgXcQ"
  ytscribe video dQw4w9WgXcQ --format json --lang de,en`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer s.Close()
			return runVideo(cmd.Context(), s.runner, cmd.OutOrStdout(), cmd.ErrOrStderr(), args[0])
		},
	}
}

func newBatchCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "batch <file>",
		Short: "Save transcripts for every video listed in a text or CSV file",
		Long: `batch reads one video URL or ID per line from a text file, or the first
column of a CSV file (the header row is skipped). Blank lines and lines
starting with # are ignored. A JSON run report is written to the output
directory.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer s.Close()
			return runBatch(cmd.Context(), s.runner, cmd.OutOrStdout(), cmd.ErrOrStderr(), args[0])
		},
	}
}

func newChannelCmd(opts *options) *cobra.Command {
	var transcripts bool
	cmd := &cobra.Command{
		Use:   "channel <url-or-handle>",
		Short: "Write a CSV of every video on a channel",
		Example: `  ytscribe channel https://www.youtube.com/@veritasium
  ytscribe channel UCHnyfMqiRRG1u-2MsSQLbXA --transcripts`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer s.Close()
			return runChannel(cmd.Context(), s.runner, cmd.OutOrStdout(), cmd.ErrOrStderr(), args[0], transcripts)
		},
	}
	cmd.Flags().BoolVarP(&transcripts, "transcripts", "t", false, "also save the transcript of every listed video")
	return cmd
}

func newDupesCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "dupes [dir]",
		Short: "Find transcripts with identical content",
		Long: `dupes compares the transcript files directly inside dir and writes
duplicates.txt there when any share the same content. Without dir it
compares the output directory and every channel directory in it as one
set, and writes the report to the output directory.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			var dir string
			if len(args) == 1 {
				dir = args[0]
			}
			return runDupes(s.runner, cmd.OutOrStdout(), cmd.ErrOrStderr(), dir)
		},
	}
}

func newMenuCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "menu",
		Short: "Start the interactive menu",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMenuCmd(cmd, opts)
		},
	}
}

func runVideo(ctx context.Context, r *app.Runner, stdout, stderr io.Writer, input string) error {
	out, err := r.FetchVideo(ctx, input)
	if err != nil {
		return err
	}
	if out.Status == storage.StatusExists {
		fmt.Fprintln(stderr, "Transcript already exists, skipping.")
	} else {
		fmt.Fprintf(stderr, "Transcript saved for %s\n", out.Video.ID)
	}
	fmt.Fprintln(stdout, out.Path)
	return nil
}

func runBatch(ctx context.Context, r *app.Runner, stdout, stderr io.Writer, path string) error {
	report, err := r.ProcessList(ctx, path)
	if report != nil {
		printSummary(stderr, report)
		fmt.Fprintln(stdout, filepath.Join(r.Writer.Dir(), report.FileName()))
	}
	if err != nil {
		return err
	}
	return problems(report)
}

func runChannel(ctx context.Context, r *app.Runner, stdout, stderr io.Writer, input string, transcripts bool) error {
	res, err := r.FetchChannel(ctx, input, transcripts)
	if res != nil {
		fmt.Fprintf(stderr, "Listed %d videos of %s\n", res.Videos, res.Channel)
		if transcripts || res.Report.Skipped > 0 {
			printSummary(stderr, res.Report)
		}
		if res.CSVPath != "" {
			fmt.Fprintln(stdout, res.CSVPath)
		}
	}
	if err != nil {
		return err
	}
	return problems(res.Report)
}

func runDupes(r *app.Runner, stdout, stderr io.Writer, dir string) error {
	scan, err := r.FindDuplicates(dir)
	if err != nil {
		return err
	}
	if len(scan.Groups) == 0 {
		fmt.Fprintln(stderr, "No duplicate transcripts found.")
		return nil
	}
	fmt.Fprint(stdout, storage.FormatDuplicates(scan.Groups))
	fmt.Fprintf(stderr, "%d groups of duplicates, listed in %s\n", len(scan.Groups), scan.ReportPath)
	return nil
}

func printSummary(w io.Writer, report *storage.RunReport) {
	fmt.Fprintf(w, "Written: %d  Already present: %d  Skipped: %d  Failed: %d\n",
		report.Written, report.Exists, report.Skipped, report.Failed)
	for _, item := range report.Items {
		if item.Status == storage.StatusSkipped || item.Status == storage.StatusFailed {
			fmt.Fprintf(w, "  %s %s: %s\n", item.Status, item.Input, item.Reason)
		}
	}
	if report.Aborted != "" {
		fmt.Fprintf(w, "Run stopped early: %s\n", report.Aborted)
	}
}

func problems(report *storage.RunReport) error {
	if report == nil || !report.HasProblems() {
		return nil
	}
	return fmt.Errorf("%w: %d skipped, %d failed", errProblems, report.Skipped, report.Failed)
}
