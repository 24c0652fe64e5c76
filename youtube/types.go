// Package youtube turns user input into YouTube identifiers and talks to the
// two YouTube services ytscribe depends on: the Data API v3 for channel and
// video metadata, and the watch page plus timedtext endpoint for captions.
package youtube

import (
	"fmt"
	"regexp"
	"time"
)

var videoIDShape = regexp.MustCompile(`^[0-9A-Za-z_-]{11}$`)

// VideoRef is a validated 11-character video ID.
type VideoRef struct {
	ID string
}

// NewVideoRef validates id and wraps it.
func NewVideoRef(id string) (VideoRef, error) {
	if !videoIDShape.MatchString(id) {
		return VideoRef{}, &ExtractionError{Input: id, Reason: ReasonInvalidLength}
	}
	return VideoRef{ID: id}, nil
}

// String returns the bare ID.
func (v VideoRef) String() string { return v.ID }

// URL returns the canonical watch URL.
func (v VideoRef) URL() string { return "https://www.youtube.com/watch?v=" + v.ID }

// ChannelKind says how a ChannelRef identifies its channel.
type ChannelKind string

const (
	ChannelKindID     ChannelKind = "id"
	ChannelKindHandle ChannelKind = "handle"
	ChannelKindCustom ChannelKind = "custom"
	ChannelKindUser   ChannelKind = "user"
)

// ChannelRef identifies a channel by ID, @handle, custom URL name or legacy
// username. Value never carries the "@" of a handle.
type ChannelRef struct {
	Value string
	Kind  ChannelKind
}

func (c ChannelRef) String() string {
	switch c.Kind {
	case ChannelKindHandle:
		return "@" + c.Value
	case ChannelKindCustom:
		return "c/" + c.Value
	case ChannelKindUser:
		return "user/" + c.Value
	default:
		return c.Value
	}
}

// VideoRecord is one row of a channel listing.
type VideoRecord struct {
	ID              VideoRef
	Title           string
	PublishedAt     time.Time
	DurationSeconds int
}

// TranscriptSegment is one timed caption line. Start and Duration are seconds.
type TranscriptSegment struct {
	Text     string
	Start    float64
	Duration float64
}

// VideoMetadata is what the Data API tells us about a single video.
type VideoMetadata struct {
	ID           VideoRef
	Title        string
	ChannelID    string
	ChannelTitle string
	PublishedAt  time.Time
	// Duration is the raw ISO 8601 value, e.g. "PT4M13S".
	Duration string
	Tags     []string
}

// ChannelInfo is a resolved channel.
type ChannelInfo struct {
	ID                string
	Title             string
	UploadsPlaylistID string
}

func (c ChannelInfo) String() string {
	return fmt.Sprintf("%s (%s)", c.Title, c.ID)
}

// DefaultLanguages is the caption language preference when none is given.
var DefaultLanguages = []string{"en"}
