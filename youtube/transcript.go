package youtube

import (
	"context"
	"errors"
)

// TranscriptTransport retrieves caption segments for one video. Failures it
// can classify are returned as *FetchError; anything else is treated as a
// transport failure.
type TranscriptTransport interface {
	Captions(ctx context.Context, video VideoRef, langs []string) ([]TranscriptSegment, error)
}

// FetchTranscript returns video's caption segments in the order the transport
// delivered them, picking a track by langs (preference order, DefaultLanguages
// when empty). Errors are always *FetchError.
func FetchTranscript(ctx context.Context, video VideoRef, transport TranscriptTransport, langs []string) ([]TranscriptSegment, error) {
	if len(langs) == 0 {
		langs = DefaultLanguages
	}

	segments, err := transport.Captions(ctx, video, langs)
	if err != nil {
		var fe *FetchError
		if errors.As(err, &fe) {
			if fe.Video.ID == "" {
				fe.Video = video
			}
			return nil, fe
		}
		return nil, &FetchError{Video: video, Kind: FetchTransport, Err: err}
	}
	return segments, nil
}
