package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

const menuText = `
Main Menu
1. Get video transcript
2. Get transcripts from a video list file
3. Fetch channel videos and save to file
4. Find duplicate transcripts
5. Quit
`

// menuActions are the operations behind the menu entries.
type menuActions struct {
	video   func(ctx context.Context, input string) error
	batch   func(ctx context.Context, path string) error
	channel func(ctx context.Context, input string, transcripts bool) error
	dupes   func(ctx context.Context, dir string) error
}

func runMenuCmd(cmd *cobra.Command, opts *options) error {
	s, err := opts.open(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()
	actions := menuActions{
		video: func(ctx context.Context, input string) error {
			return runVideo(ctx, s.runner, stdout, stderr, input)
		},
		batch: func(ctx context.Context, path string) error {
			return runBatch(ctx, s.runner, stdout, stderr, path)
		},
		channel: func(ctx context.Context, input string, transcripts bool) error {
			return runChannel(ctx, s.runner, stdout, stderr, input, transcripts)
		},
		dupes: func(_ context.Context, dir string) error {
			return runDupes(s.runner, stdout, stderr, dir)
		},
	}
	return runMenu(cmd.Context(), cmd.InOrStdin(), stderr, actions)
}

// runMenu loops until the user quits or input ends. A failed action is
// reported and the menu shown again.
func runMenu(ctx context.Context, in io.Reader, out io.Writer, a menuActions) error {
	sc := bufio.NewScanner(in)
	ask := func(prompt string) (string, bool) {
		fmt.Fprint(out, prompt)
		if !sc.Scan() {
			return "", false
		}
		return strings.TrimSpace(sc.Text()), true
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		fmt.Fprint(out, menuText)
		choice, ok := ask("Enter your choice: ")
		if !ok {
			return sc.Err()
		}

		var err error
		switch choice {
		case "1":
			input, ok := ask("Enter the video URL: ")
			if !ok {
				return sc.Err()
			}
			err = a.video(ctx, input)
		case "2":
			path, ok := ask("Enter the path to the file (Text/CSV): ")
			if !ok {
				return sc.Err()
			}
			err = a.batch(ctx, path)
		case "3":
			input, ok := ask("Enter channel URL: ")
			if !ok {
				return sc.Err()
			}
			answer, ok := ask("Also save every video's transcript? [y/N]: ")
			if !ok {
				return sc.Err()
			}
			err = a.channel(ctx, input, strings.EqualFold(answer, "y") || strings.EqualFold(answer, "yes"))
		case "4":
			dir, ok := ask("Enter the path to search for duplicates (blank for the output directory): ")
			if !ok {
				return sc.Err()
			}
			err = a.dupes(ctx, dir)
		case "5":
			fmt.Fprintln(out, "Goodbye!")
			return nil
		default:
			fmt.Fprintln(out, "Invalid choice. Please try again.")
			continue
		}

		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			fmt.Fprintf(out, "Error: %v\n", err)
		}
	}
}
