package app

import (
	"context"
	"errors"
	"fmt"

	"ytscribe/internal/storage"
	"ytscribe/youtube"
)

// ChannelResult is the outcome of FetchChannel.
type ChannelResult struct {
	Channel youtube.ChannelInfo
	CSVPath string
	Videos  int
	Report  *storage.RunReport
}

// FetchChannel lists every video of the channel named by input into
// <output_dir>/<channel>/<channel>_<channel id>.csv and, with transcripts
// set, fetches each listed video's transcript into the same directory.
//
// Listing needs the Data API. If the listing stops early the partial CSV is
// still written and the pagination error returned.
func (r *Runner) FetchChannel(ctx context.Context, input string, transcripts bool) (*ChannelResult, error) {
	if r.Metadata == nil {
		return nil, youtube.ErrNoAPIKey
	}
	ref, err := r.Extractor.Channel(input)
	if err != nil {
		return nil, err
	}

	info, err := r.Metadata.ResolveChannel(ctx, ref)
	if err != nil {
		return nil, err
	}

	report := storage.NewRunReport("channel", input)
	log := r.Logger.With().Str("run_id", report.RunID).Str("channel", ref.String()).Logger()
	w := r.channelWriter(info.Title, info.ID)
	res := &ChannelResult{Channel: info, Report: report}

	var records []youtube.VideoRecord
	var listErr error
	opts := &youtube.ListOptions{
		Durations: r.Durations,
		OnSkip: func(s youtube.SkippedItem) {
			log.Warn().Str("video_id", s.ID).Str("reason", s.Reason).Msg("listing item skipped")
			report.Add(storage.ReportItem{Input: s.ID, VideoID: s.ID, Status: storage.StatusSkipped, Reason: s.Reason})
		},
	}
	for rec, err := range youtube.ListChannelVideos(ctx, ref, r.Metadata.FetchPage, opts) {
		if err != nil {
			listErr = err
			break
		}
		records = append(records, rec)
	}
	res.Videos = len(records)
	log.Info().Int("videos", len(records)).Msg("channel listed")

	name := r.Sanitizer.Sanitize(info.Title, info.ID)
	csvRes, err := w.WriteVideoListCSV(info.ID, name, records)
	if err != nil {
		return res, r.finishChannel(report, w, errors.Join(listErr, err))
	}
	res.CSVPath = csvRes.Path
	if listErr != nil {
		log.Error().Err(listErr).Msg("listing stopped early")
		return res, r.finishChannel(report, w, listErr)
	}

	if transcripts {
		bar := r.Progress(info.Title, len(records))
		err := r.channelTranscripts(ctx, w, report, bar, info, records)
		bar.Finish()
		if err != nil {
			return res, r.finishChannel(report, w, err)
		}
	}
	return res, r.finishChannel(report, w, nil)
}

func (r *Runner) channelTranscripts(ctx context.Context, w *storage.Writer, report *storage.RunReport, bar Progress, info youtube.ChannelInfo, records []youtube.VideoRecord) error {
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return err
		}

		md, err := r.Metadata.VideoMetadata(ctx, rec.ID)
		if err != nil {
			if youtube.IsFatal(err) {
				return err
			}
			md = youtube.VideoMetadata{ID: rec.ID, Title: rec.Title, ChannelTitle: info.Title, PublishedAt: rec.PublishedAt}
		}

		out, err := r.transcribe(ctx, w, md)
		item := storage.ReportItem{Input: rec.ID.ID, VideoID: rec.ID.ID, Path: out.Path, Status: out.Status}
		if err != nil {
			if youtube.IsFatal(err) {
				return err
			}
			item.Status, item.Reason = classify(err)
			item.Path = ""
		}
		report.Add(item)
		bar.Step(rec.ID.ID, string(item.Status))
	}
	return nil
}

// finishChannel saves the report into the channel directory and returns
// runErr, joined with any save failure.
func (r *Runner) finishChannel(report *storage.RunReport, w *storage.Writer, runErr error) error {
	if runErr != nil {
		report.Abort(runErr)
	}
	if _, err := report.Save(w.Dir()); err != nil {
		return errors.Join(runErr, fmt.Errorf("save report: %w", err))
	}
	return runErr
}
