// Package ytscribe downloads YouTube transcripts and channel video listings.
//
// The command in ./cli is the usual entry point. The packages underneath can
// be used directly:
//
//   - youtube: video and channel reference extraction, ISO 8601 durations,
//     channel listing over the Data API, and transcript retrieval
//   - internal/storage: file name sanitizing, transcript and CSV output,
//     duplicate detection, run reports
//   - internal/app: the operations the CLI exposes
//
// Configuration
//
// Settings are read in this order, later sources winning:
//
//  1. Default values
//  2. Config file (ytscribe.json, or ~/.config/ytscribe/ytscribe.json)
//  3. .env and the process environment (API_KEY, YTSCRIBE_*)
//  4. Command line flags
//
// Without API_KEY transcripts still work, titles come from the watch page,
// and channel listing is unavailable.
//
// Error Handling
//
// Every item of a batch or channel run fails on its own; the run goes on.
// A few errors end the whole run instead. Check for them with IsFatal:
//
//	if ytscribe.IsFatal(err) {
//		log.Fatal(err) // quota exhausted, API key rejected, ...
//	}
//
// Extracting error details:
//
//	var fe *ytscribe.FetchError
//	if errors.As(err, &fe) && fe.Kind == youtube.FetchTranscriptsDisabled {
//		fmt.Println("captions are off for", fe.Video)
//	}
package ytscribe
