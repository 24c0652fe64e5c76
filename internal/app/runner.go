// Package app runs ytscribe's operations: a single video, a batch file, a
// channel listing and the duplicate scan. The CLI is a thin layer over it.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/rs/zerolog"

	"ytscribe/internal/storage"
	"ytscribe/youtube"
)

// MetadataSource is the Data API side of ytscribe. *youtube.APIClient
// implements it.
type MetadataSource interface {
	VideoMetadata(ctx context.Context, video youtube.VideoRef) (youtube.VideoMetadata, error)
	ResolveChannel(ctx context.Context, ref youtube.ChannelRef) (youtube.ChannelInfo, error)
	FetchPage(ctx context.Context, ref youtube.ChannelRef, cursor string) (*youtube.Page, error)
}

// TitleSource looks a title up without the Data API. *youtube.CaptionClient
// implements it.
type TitleSource interface {
	VideoTitle(ctx context.Context, video youtube.VideoRef) (string, error)
}

// Progress receives one Step per processed item.
type Progress interface {
	Step(item, status string)
	Finish()
}

type nopProgress struct{}

func (nopProgress) Step(string, string) {}
func (nopProgress) Finish()             {}

// Deps are the collaborators of a Runner. Metadata and Titles may be nil.
type Deps struct {
	Extractor   *youtube.Extractor
	Sanitizer   *storage.Sanitizer
	Durations   *youtube.DurationParser
	Writer      *storage.Writer
	Transcripts youtube.TranscriptTransport
	Titles      TitleSource
	Metadata    MetadataSource
	Languages   []string
	Logger      zerolog.Logger
	// Progress starts a progress display for a batch of total items.
	Progress func(label string, total int) Progress
}

// Runner executes ytscribe operations sequentially.
type Runner struct {
	Deps
	closer io.Closer
}

// New returns a Runner over d.
func New(d Deps) *Runner {
	if d.Progress == nil {
		d.Progress = func(string, int) Progress { return nopProgress{} }
	}
	if d.Durations == nil {
		d.Durations = youtube.NewDurationParser(nil)
	}
	return &Runner{Deps: d}
}

// Close releases the HTTP connections opened by Build.
func (r *Runner) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// VideoOutcome describes one processed video.
type VideoOutcome struct {
	Video  youtube.VideoRef
	Title  string
	Path   string
	Status storage.ItemStatus
}

// FetchVideo extracts the video ID from input, looks its metadata up and
// writes its transcript. The returned error is the item's failure; it
// matches youtube.ErrFatal when the whole run must stop.
func (r *Runner) FetchVideo(ctx context.Context, input string) (VideoOutcome, error) {
	ref, err := r.Extractor.VideoID(input)
	if err != nil {
		return VideoOutcome{}, err
	}

	md, err := r.videoMetadata(ctx, ref)
	if err != nil {
		return VideoOutcome{Video: ref}, err
	}

	w := r.Writer
	if md.ChannelTitle != "" {
		w = r.channelWriter(md.ChannelTitle, md.ChannelID)
	}
	return r.transcribe(ctx, w, md)
}

// videoMetadata returns what is known about ref. Only fatal Data API errors
// are returned; anything else leaves the title to the watch page, and then
// to the video ID.
func (r *Runner) videoMetadata(ctx context.Context, ref youtube.VideoRef) (youtube.VideoMetadata, error) {
	log := r.Logger.With().Str("video_id", ref.ID).Logger()

	if r.Metadata != nil {
		md, err := r.Metadata.VideoMetadata(ctx, ref)
		if err == nil {
			return md, nil
		}
		if youtube.IsFatal(err) {
			return youtube.VideoMetadata{}, err
		}
		log.Warn().Err(err).Msg("metadata lookup failed")
	}

	md := youtube.VideoMetadata{ID: ref}
	if r.Titles != nil {
		title, err := r.Titles.VideoTitle(ctx, ref)
		if err != nil {
			log.Warn().Err(err).Msg("title lookup failed")
		}
		md.Title = title
	}
	return md, nil
}

// transcribe fetches md's transcript and writes it with w, unless the
// target file already exists.
func (r *Runner) transcribe(ctx context.Context, w *storage.Writer, md youtube.VideoMetadata) (VideoOutcome, error) {
	ref := md.ID
	log := r.Logger.With().Str("video_id", ref.ID).Logger()
	name := r.Sanitizer.Sanitize(md.Title, ref.ID)
	out := VideoOutcome{Video: ref, Title: md.Title, Path: w.TranscriptPath(ref, name)}

	if w.Exists(out.Path) {
		log.Info().Str("path", out.Path).Msg("transcript already on disk")
		out.Status = storage.StatusExists
		return out, nil
	}

	segments, err := youtube.FetchTranscript(ctx, ref, r.Transcripts, r.Languages)
	if err != nil {
		log.Warn().Err(err).Msg("transcript fetch failed")
		return out, err
	}

	res, err := w.WriteTranscript(ref, name, segments, storage.TranscriptMeta{
		VideoURL:    ref.URL(),
		ChannelName: md.ChannelTitle,
		Title:       md.Title,
		PublishedAt: md.PublishedAt,
		Duration:    md.Duration,
		Tags:        md.Tags,
	})
	if err != nil {
		log.Error().Err(err).Msg("write failed")
		return out, err
	}

	out.Path = res.Path
	out.Status = storage.StatusWritten
	if res.Skipped {
		out.Status = storage.StatusExists
	}
	log.Info().Str("path", res.Path).Int("segments", len(segments)).Str("status", string(out.Status)).Msg("transcript saved")
	return out, nil
}

// channelWriter writes into output_dir/<sanitized channel title>.
func (r *Runner) channelWriter(title, fallback string) *storage.Writer {
	if fallback == "" {
		fallback = "channel"
	}
	name := r.Sanitizer.Sanitize(title, fallback)
	return r.Writer.In(filepath.Join(r.Writer.Dir(), name.Base))
}

// classify maps an item error onto a report status and reason.
func classify(err error) (storage.ItemStatus, string) {
	var (
		ee *youtube.ExtractionError
		fe *youtube.FetchError
		we *storage.WriteError
	)
	switch {
	case errors.As(err, &ee):
		return storage.StatusSkipped, string(ee.Reason)
	case errors.As(err, &fe):
		if fe.Retryable() {
			return storage.StatusFailed, fmt.Sprintf("%s: %v", fe.Kind, fe.Err)
		}
		return storage.StatusSkipped, string(fe.Kind)
	case errors.As(err, &we):
		return storage.StatusFailed, fmt.Sprintf("%s: %v", we.Kind, we.Err)
	default:
		return storage.StatusFailed, err.Error()
	}
}
