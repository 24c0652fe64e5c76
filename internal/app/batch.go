package app

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"ytscribe/internal/storage"
	"ytscribe/youtube"
)

// ReadInputs reads a batch file: a .csv whose first column holds video URLs
// or IDs below a header row, or any other file with one URL or ID per line.
// Blank lines and lines starting with # are ignored.
func ReadInputs(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input file: %w", err)
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return readCSVInputs(f)
	}

	var inputs []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		inputs = append(inputs, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read input file: %w", err)
	}
	return inputs, nil
}

func readCSVInputs(r io.Reader) ([]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var inputs []string
	for row := 0; ; row++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read input csv: %w", err)
		}
		if row == 0 || len(rec) == 0 {
			continue
		}
		if v := strings.TrimSpace(rec[0]); v != "" {
			inputs = append(inputs, v)
		}
	}
	return inputs, nil
}

// ProcessList fetches a transcript for every entry of the batch file at
// path. Items fail independently and are recorded in the run report, which
// is saved to the output directory. A fatal error stops the batch; the
// report is still saved and the error returned.
func (r *Runner) ProcessList(ctx context.Context, path string) (*storage.RunReport, error) {
	inputs, err := ReadInputs(path)
	if err != nil {
		return nil, err
	}

	report := storage.NewRunReport("batch", path)
	log := r.Logger.With().Str("run_id", report.RunID).Logger()
	log.Info().Str("source", path).Int("items", len(inputs)).Msg("batch started")

	bar := r.Progress("batch", len(inputs))
	runErr := r.runItems(ctx, report, bar, inputs)
	bar.Finish()

	if runErr != nil {
		report.Abort(runErr)
		log.Error().Err(runErr).Msg("batch aborted")
	}
	if _, err := report.Save(r.Writer.Dir()); err != nil {
		return report, errors.Join(runErr, err)
	}
	log.Info().Int("written", report.Written).Int("exists", report.Exists).
		Int("skipped", report.Skipped).Int("failed", report.Failed).Msg("batch finished")
	return report, runErr
}

func (r *Runner) runItems(ctx context.Context, report *storage.RunReport, bar Progress, inputs []string) error {
	for _, input := range inputs {
		if err := ctx.Err(); err != nil {
			return err
		}

		out, err := r.FetchVideo(ctx, input)
		if youtube.IsFatal(err) {
			return err
		}
		item := storage.ReportItem{Input: input, VideoID: out.Video.ID, Path: out.Path, Status: out.Status}
		if err != nil {
			item.Status, item.Reason = classify(err)
			item.Path = ""
		}
		report.Add(item)
		bar.Step(input, string(item.Status))

		if err != nil && ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return nil
}
