package youtube

import (
	"errors"
	"fmt"
)

// ErrFatal is in the chain of every error that must abort a whole run
// (rejected API key, exhausted quota, a pagination loop).
var ErrFatal = errors.New("youtube: fatal")

// fatalError is a sentinel that also matches ErrFatal.
type fatalError struct{ msg string }

func (e *fatalError) Error() string        { return e.msg }
func (e *fatalError) Is(target error) bool { return target == ErrFatal }

// Sentinel errors.
var (
	ErrQuotaExceeded    error = &fatalError{"youtube: API quota exceeded"}
	ErrUnauthorized     error = &fatalError{"youtube: API key rejected"}
	ErrChannelNotFound        = errors.New("youtube: channel not found")
	ErrVideoNotFound          = errors.New("youtube: video not found")
	ErrNoAPIKey               = errors.New("youtube: API key required")
	ErrSequenceConsumed       = errors.New("youtube: video sequence already consumed")
	ErrRepeatedCursor         = errors.New("youtube: pagination cursor repeated")
)

// IsFatal reports whether err must abort the whole run.
func IsFatal(err error) bool {
	return errors.Is(err, ErrFatal)
}

// ExtractionReason explains an ExtractionError.
type ExtractionReason string

const (
	ReasonNoMatch       ExtractionReason = "no_match"
	ReasonInvalidLength ExtractionReason = "invalid_length"
)

// ExtractionError is returned when input cannot be turned into a video or
// channel reference.
type ExtractionError struct {
	Input  string
	Reason ExtractionReason
}

func (e *ExtractionError) Error() string {
	switch e.Reason {
	case ReasonInvalidLength:
		return fmt.Sprintf("youtube: %q does not contain a valid identifier", e.Input)
	default:
		return fmt.Sprintf("youtube: %q is not a recognised YouTube URL or ID", e.Input)
	}
}

// ParseError is returned for a malformed ISO 8601 duration.
type ParseError struct {
	Input string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("youtube: cannot parse duration %q: %v", e.Input, e.Err)
	}
	return fmt.Sprintf("youtube: cannot parse duration %q", e.Input)
}

func (e *ParseError) Unwrap() error { return e.Err }

// PaginationKind separates errors that end only this listing from those
// that end the run.
type PaginationKind string

const (
	PaginationTransient PaginationKind = "transient"
	PaginationFatal     PaginationKind = "fatal"
)

// PaginationError ends a channel listing. It is yielded once, as the last
// element of the sequence.
type PaginationError struct {
	Channel ChannelRef
	Page    int
	Kind    PaginationKind
	Err     error
}

func (e *PaginationError) Error() string {
	return fmt.Sprintf("youtube: listing %s failed on page %d (%s): %v", e.Channel, e.Page, e.Kind, e.Err)
}

func (e *PaginationError) Unwrap() error { return e.Err }

// Is makes a fatal PaginationError match ErrFatal even when its cause does not.
func (e *PaginationError) Is(target error) bool {
	return target == ErrFatal && e.Kind == PaginationFatal
}

// FetchKind classifies a failed transcript fetch.
type FetchKind string

const (
	// FetchTranscriptsDisabled: the owner turned captions off.
	FetchTranscriptsDisabled FetchKind = "transcripts_disabled"
	// FetchNotFound: the video is unavailable, private or deleted.
	FetchNotFound FetchKind = "not_found"
	// FetchNoTranscript: captions exist but none in the requested languages.
	FetchNoTranscript FetchKind = "no_transcript"
	// FetchTransport: network, rate limiting or an unexpected response.
	FetchTransport FetchKind = "transport"
)

// FetchError is returned by FetchTranscript.
type FetchError struct {
	Video VideoRef
	Kind  FetchKind
	Err   error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("youtube: transcript for %s: %s: %v", e.Video.ID, e.Kind, e.Err)
	}
	return fmt.Sprintf("youtube: transcript for %s: %s", e.Video.ID, e.Kind)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Retryable reports whether a later attempt could succeed.
func (e *FetchError) Retryable() bool { return e.Kind == FetchTransport }
