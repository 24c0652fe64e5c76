package youtube

import (
	"context"
	"fmt"
	"iter"
	"time"
)

// PageItem is one raw entry of a channel listing page, as the metadata API
// returned it.
type PageItem struct {
	ID          string
	Title       string
	PublishedAt string // RFC 3339
	ISODuration string
}

// Page is one page of a channel listing. An empty NextCursor ends the listing.
type Page struct {
	Items      []PageItem
	NextCursor string
}

// PageFetchFunc fetches the page of channel's videos at cursor. The first
// call receives an empty cursor.
type PageFetchFunc func(ctx context.Context, channel ChannelRef, cursor string) (*Page, error)

// SkippedItem reports a page item that could not become a VideoRecord.
type SkippedItem struct {
	ID     string
	Reason string
}

// ListOptions configures ListChannelVideos. The zero value is usable.
type ListOptions struct {
	// Durations parses each item's ISO duration. nil selects the default pattern.
	Durations *DurationParser
	// OnSkip is called for every malformed item. The listing continues.
	OnSkip func(SkippedItem)
}

// ListChannelVideos pages through channel's videos with fetch and yields
// them in API order. The sequence is lazy: no page is fetched before the
// first element is requested, and breaking out of the range stops paging.
//
// A fetch error ends the sequence and is yielded once as a *PaginationError,
// fatal when the cause matches ErrFatal. A cursor equal to the one just used
// is a fatal ErrRepeatedCursor. The sequence can be ranged over only once;
// later ranges yield ErrSequenceConsumed.
func ListChannelVideos(ctx context.Context, channel ChannelRef, fetch PageFetchFunc, opts *ListOptions) iter.Seq2[VideoRecord, error] {
	var o ListOptions
	if opts != nil {
		o = *opts
	}
	if o.Durations == nil {
		o.Durations = NewDurationParser(nil)
	}

	consumed := false
	return func(yield func(VideoRecord, error) bool) {
		if consumed {
			yield(VideoRecord{}, ErrSequenceConsumed)
			return
		}
		consumed = true

		cursor := ""
		for page := 1; ; page++ {
			if err := ctx.Err(); err != nil {
				yield(VideoRecord{}, &PaginationError{Channel: channel, Page: page, Kind: PaginationTransient, Err: err})
				return
			}

			p, err := fetch(ctx, channel, cursor)
			if err != nil {
				kind := PaginationTransient
				if IsFatal(err) {
					kind = PaginationFatal
				}
				yield(VideoRecord{}, &PaginationError{Channel: channel, Page: page, Kind: kind, Err: err})
				return
			}
			if p == nil {
				return
			}

			for _, item := range p.Items {
				rec, reason := o.record(item)
				if reason != "" {
					if o.OnSkip != nil {
						o.OnSkip(SkippedItem{ID: item.ID, Reason: reason})
					}
					continue
				}
				if !yield(rec, nil) {
					return
				}
			}

			if p.NextCursor == "" {
				return
			}
			if p.NextCursor == cursor {
				yield(VideoRecord{}, &PaginationError{Channel: channel, Page: page, Kind: PaginationFatal, Err: ErrRepeatedCursor})
				return
			}
			cursor = p.NextCursor
		}
	}
}

// record converts a page item, or returns why it cannot.
func (o *ListOptions) record(item PageItem) (VideoRecord, string) {
	ref, err := NewVideoRef(item.ID)
	if err != nil {
		return VideoRecord{}, fmt.Sprintf("invalid video id %q", item.ID)
	}
	published, err := time.Parse(time.RFC3339, item.PublishedAt)
	if err != nil {
		return VideoRecord{}, fmt.Sprintf("invalid published_at %q", item.PublishedAt)
	}
	secs, err := o.Durations.Parse(item.ISODuration)
	if err != nil {
		return VideoRecord{}, fmt.Sprintf("invalid duration %q", item.ISODuration)
	}
	return VideoRecord{
		ID:              ref,
		Title:           item.Title,
		PublishedAt:     published,
		DurationSeconds: secs,
	}, ""
}
