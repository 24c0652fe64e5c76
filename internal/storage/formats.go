package storage

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"ytscribe/internal/config"
	"ytscribe/youtube"
)

var (
	regexMetachars = regexp.MustCompile(`[\\^$.|?*+(){}\[\]]`)
	outsideBMP     = regexp.MustCompile(`[^\x{0000}-\x{FFFF}]`)
	lineBreaks     = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")
)

// TranscriptMeta is written into the json format's metadata block.
type TranscriptMeta struct {
	VideoURL    string
	ChannelName string
	Title       string
	PublishedAt time.Time
	Duration    string
	Tags        []string
}

// Extension returns the file extension, with the dot, for an output format.
func Extension(format string) (string, error) {
	switch format {
	case config.FormatTXT, config.FormatJSON, config.FormatSRT, config.FormatVTT:
		return "." + format, nil
	default:
		return "", fmt.Errorf("unknown output format: %q", format)
	}
}

// EncodeTranscript renders segments in the given output format.
func EncodeTranscript(format string, segments []youtube.TranscriptSegment, meta TranscriptMeta) ([]byte, error) {
	switch format {
	case config.FormatTXT:
		return []byte(toPlainText(segments)), nil
	case config.FormatJSON:
		return toJSON(segments, meta)
	case config.FormatSRT:
		return []byte(toSRT(segments)), nil
	case config.FormatVTT:
		return []byte(toVTT(segments)), nil
	default:
		return nil, fmt.Errorf("unknown output format: %q", format)
	}
}

// toPlainText writes one line per segment. Line breaks inside a segment
// become spaces so that lines and segments stay in step.
func toPlainText(segments []youtube.TranscriptSegment) string {
	var sb strings.Builder
	for _, s := range segments {
		sb.WriteString(lineBreaks.Replace(s.Text))
		sb.WriteByte('\n')
	}
	return sb.String()
}

type jsonTranscript struct {
	Metadata   jsonMetadata  `json:"metadata"`
	Transcript []jsonSegment `json:"transcript"`
}

type jsonMetadata struct {
	VideoURL    string   `json:"video_url"`
	ChannelName string   `json:"channel_name"`
	VideoTitle  string   `json:"video_title"`
	PublishDate string   `json:"publish_date"`
	Duration    string   `json:"duration"`
	Tags        []string `json:"tags"`
}

type jsonSegment struct {
	Text  string  `json:"text"`
	At    string  `json:"at"`
	Start float64 `json:"start"`
}

func toJSON(segments []youtube.TranscriptSegment, meta TranscriptMeta) ([]byte, error) {
	doc := jsonTranscript{
		Metadata: jsonMetadata{
			VideoURL:    meta.VideoURL,
			ChannelName: orUnknown(meta.ChannelName),
			VideoTitle:  orUnknown(meta.Title),
			PublishDate: "Unknown",
			Duration:    orUnknown(meta.Duration),
			Tags:        meta.Tags,
		},
		Transcript: make([]jsonSegment, 0, len(segments)),
	}
	if !meta.PublishedAt.IsZero() {
		doc.Metadata.PublishDate = meta.PublishedAt.UTC().Format(time.RFC3339)
	}
	if doc.Metadata.Tags == nil {
		doc.Metadata.Tags = []string{}
	}
	for _, s := range segments {
		doc.Transcript = append(doc.Transcript, jsonSegment{
			Text:  SanitizeText(s.Text),
			At:    youtube.FormatClock(s.Start),
			Start: s.Start,
		})
	}

	data, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

func toSRT(segments []youtube.TranscriptSegment) string {
	var sb strings.Builder
	for i, s := range segments {
		fmt.Fprintf(&sb, "%d\n%s --> %s\n%s\n\n", i+1, formatSRTTime(s.Start), formatSRTTime(s.Start+s.Duration), s.Text)
	}
	return sb.String()
}

func toVTT(segments []youtube.TranscriptSegment) string {
	var sb strings.Builder
	sb.WriteString("WEBVTT\n\n")
	for _, s := range segments {
		fmt.Fprintf(&sb, "%s --> %s\n%s\n\n", formatVTTTime(s.Start), formatVTTTime(s.Start+s.Duration), s.Text)
	}
	return sb.String()
}

// SanitizeText removes regex metacharacters and characters outside the
// Basic Multilingual Plane, and collapses whitespace.
func SanitizeText(text string) string {
	text = regexMetachars.ReplaceAllString(text, "")
	text = outsideBMP.ReplaceAllString(text, "")
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(text, " "))
}

// formatVTTTime formats seconds as HH:MM:SS.mmm.
func formatVTTTime(seconds float64) string {
	ms := int64(seconds*1000 + 0.5)
	if ms < 0 {
		ms = 0
	}
	h := ms / 3_600_000
	m := ms / 60_000 % 60
	s := ms / 1000 % 60
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms%1000)
}

// formatSRTTime formats seconds as HH:MM:SS,mmm.
func formatSRTTime(seconds float64) string {
	return strings.Replace(formatVTTTime(seconds), ".", ",", 1)
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}
