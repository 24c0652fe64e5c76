package ytscribe

import (
	"errors"

	"ytscribe/internal/retry"
	"ytscribe/internal/storage"
	"ytscribe/youtube"
)

// Type aliases for convenient error handling.
type (
	// ExtractionError reports input that is not a video or channel reference.
	ExtractionError = youtube.ExtractionError
	// ParseError reports a malformed ISO 8601 duration.
	ParseError = youtube.ParseError
	// FetchError reports a failed transcript fetch and its kind.
	FetchError = youtube.FetchError
	// PaginationError ends a channel listing early.
	PaginationError = youtube.PaginationError
	// WriteError reports a failed output file write.
	WriteError = storage.WriteError
	// ExhaustedError wraps the last error once every retry has failed.
	ExhaustedError = retry.ExhaustedError
)

// Sentinel errors exported from sub-packages.
var (
	// ErrFatal is in the chain of every error that must stop a run.
	ErrFatal = youtube.ErrFatal
	// ErrQuotaExceeded: the Data API quota is used up for the day.
	ErrQuotaExceeded = youtube.ErrQuotaExceeded
	// ErrUnauthorized: the Data API rejected the key.
	ErrUnauthorized = youtube.ErrUnauthorized
	// ErrNoAPIKey: the operation needs the Data API and no key is set.
	ErrNoAPIKey = youtube.ErrNoAPIKey

	ErrChannelNotFound = youtube.ErrChannelNotFound
	ErrVideoNotFound   = youtube.ErrVideoNotFound
)

// IsFatal reports whether err must stop the whole run rather than one item.
func IsFatal(err error) bool {
	return youtube.IsFatal(err)
}

// IsRetryable reports whether a later attempt might succeed: a transport
// failure while fetching a transcript, or any non-final error the retry
// policy would try again.
func IsRetryable(err error) bool {
	if err == nil || IsFatal(err) {
		return false
	}
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Retryable()
	}
	var ee *ExtractionError
	if errors.As(err, &ee) {
		return false
	}
	var pe *ParseError
	if errors.As(err, &pe) {
		return false
	}
	return retry.IsRetryable(err)
}
