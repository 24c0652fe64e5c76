package youtube

import (
	"regexp"
	"strings"
)

var (
	bareToken     = regexp.MustCompile(`^[0-9A-Za-z_-]+$`)
	bareChannelID = regexp.MustCompile(`^UC[0-9A-Za-z_-]{22}$`)
	bareHandle    = regexp.MustCompile(`^@([^\s/?#@]+)$`)
)

// Extractor parses free-form input into video and channel references using
// the configured patterns.
type Extractor struct {
	video   *regexp.Regexp
	channel *regexp.Regexp
}

// NewExtractor returns an Extractor. The video pattern's first capture group
// must stop at the end of the ID; the channel pattern may use the named
// groups id, handle, custom and user to say what it captured.
func NewExtractor(video, channel *regexp.Regexp) *Extractor {
	return &Extractor{video: video, channel: channel}
}

// VideoID extracts a video reference from a watch, short, embed, shorts or
// live URL, or from a bare 11-character ID.
func (x *Extractor) VideoID(input string) (VideoRef, error) {
	s := strings.TrimSpace(input)

	if m := x.video.FindStringSubmatch(s); m != nil {
		id := firstGroup(m)
		if !videoIDShape.MatchString(id) {
			return VideoRef{}, &ExtractionError{Input: input, Reason: ReasonInvalidLength}
		}
		return VideoRef{ID: id}, nil
	}

	if bareToken.MatchString(s) {
		if len(s) != 11 {
			return VideoRef{}, &ExtractionError{Input: input, Reason: ReasonInvalidLength}
		}
		return VideoRef{ID: s}, nil
	}

	return VideoRef{}, &ExtractionError{Input: input, Reason: ReasonNoMatch}
}

// Channel extracts a channel reference from a /channel/, /c/, /user/ or /@
// URL, a bare @handle, or a bare UC... channel ID.
func (x *Extractor) Channel(input string) (ChannelRef, error) {
	s := strings.TrimSpace(input)

	if m := x.channel.FindStringSubmatch(s); m != nil {
		ref, ok := x.channelFromMatch(m)
		if !ok {
			return ChannelRef{}, &ExtractionError{Input: input, Reason: ReasonInvalidLength}
		}
		return ref, nil
	}

	if m := bareHandle.FindStringSubmatch(s); m != nil {
		return ChannelRef{Value: m[1], Kind: ChannelKindHandle}, nil
	}
	if bareChannelID.MatchString(s) {
		return ChannelRef{Value: s, Kind: ChannelKindID}, nil
	}

	return ChannelRef{}, &ExtractionError{Input: input, Reason: ReasonNoMatch}
}

func (x *Extractor) channelFromMatch(m []string) (ChannelRef, bool) {
	names := x.channel.SubexpNames()
	for i := 1; i < len(m); i++ {
		if m[i] == "" {
			continue
		}
		value := m[i]
		var kind ChannelKind
		switch names[i] {
		case "id":
			kind = ChannelKindID
		case "handle":
			kind = ChannelKindHandle
		case "custom":
			kind = ChannelKindCustom
		case "user":
			kind = ChannelKindUser
		default:
			// Unnamed group: a channel ID if it looks like one, else a handle.
			kind = ChannelKindHandle
			if bareChannelID.MatchString(value) {
				kind = ChannelKindID
			}
		}
		value = strings.TrimPrefix(value, "@")
		if value == "" {
			return ChannelRef{}, false
		}
		if kind == ChannelKindID && !bareChannelID.MatchString(value) {
			return ChannelRef{}, false
		}
		return ChannelRef{Value: value, Kind: kind}, true
	}
	return ChannelRef{}, false
}

func firstGroup(m []string) string {
	for _, g := range m[1:] {
		if g != "" {
			return g
		}
	}
	return ""
}
