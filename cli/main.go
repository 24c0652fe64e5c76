// Command ytscribe downloads YouTube transcripts, batch lists of them and
// channel video listings.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"ytscribe/internal/app"
	"ytscribe/internal/config"
	"ytscribe/internal/logging"
	"ytscribe/internal/progress"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// options are the persistent flags shared by every command.
type options struct {
	configPath string
	output     string
	format     string
	langs      []string
	overwrite  bool
	maxLength  int
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "ytscribe",
		Short: "Download YouTube transcripts and channel video listings",
		Long: `ytscribe saves YouTube transcripts as txt, json, srt or vtt files, processes
lists of videos from a text or CSV file, writes a CSV of every video on a
channel and finds duplicate transcripts.

Without a command it starts an interactive menu. Channel listing and full
video metadata need a YouTube Data API key in API_KEY (a .env file works).`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMenuCmd(cmd, opts)
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&opts.configPath, "config", "", "config file (default ./ytscribe.json, then ~/.config/ytscribe/ytscribe.json)")
	f.StringVarP(&opts.output, "output", "o", "", "output directory")
	f.StringVarP(&opts.format, "format", "f", "", "transcript format: txt, json, srt or vtt")
	f.StringSliceVarP(&opts.langs, "lang", "l", nil, "caption languages in order of preference (e.g. en,de)")
	f.BoolVar(&opts.overwrite, "overwrite", false, "replace files that already exist")
	f.IntVar(&opts.maxLength, "max-length", 0, "maximum length of the title part of file names")

	root.AddCommand(
		newVideoCmd(opts),
		newBatchCmd(opts),
		newChannelCmd(opts),
		newDupesCmd(opts),
		newMenuCmd(opts),
	)
	return root
}

// load reads the configuration and applies the flags that were set.
func (o *options) load(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("output") {
		cfg.OutputDir = o.output
	}
	if flags.Changed("format") {
		cfg.OutputFormat = strings.ToLower(o.format)
	}
	if flags.Changed("lang") {
		cfg.Languages = o.langs
	}
	if flags.Changed("overwrite") {
		cfg.Overwrite = o.overwrite
	}
	if flags.Changed("max-length") {
		cfg.FilenameMaxLength = o.maxLength
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// session is a loaded configuration with its runner and log file.
type session struct {
	cfg    *config.Config
	runner *app.Runner
	logs   io.Closer
}

func (o *options) open(cmd *cobra.Command) (*session, error) {
	cfg, err := o.load(cmd)
	if err != nil {
		return nil, err
	}

	logger, logs, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, err
	}
	logger.Info().Str("command", cmd.Name()).Str("config", cfg.Source()).Msg("ytscribe started")

	r, err := app.Build(cmd.Context(), cfg, logger, progressFactory(cmd.ErrOrStderr()))
	if err != nil {
		logs.Close()
		return nil, err
	}
	return &session{cfg: cfg, runner: r, logs: logs}, nil
}

func (s *session) Close() error {
	return errors.Join(s.runner.Close(), s.logs.Close())
}

// progressFactory draws progress on w, in place when w is a terminal.
func progressFactory(w io.Writer) func(label string, total int) app.Progress {
	return func(label string, total int) app.Progress {
		if f, ok := w.(*os.File); ok {
			return progress.New(f, label, total)
		}
		return progress.NewWriter(w, false, 0, label, total)
	}
}
