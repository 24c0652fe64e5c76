package storage

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"ytscribe/youtube"
)

var sampleSegments = []youtube.TranscriptSegment{
	{Text: "Hello", Start: 0, Duration: 2},
	{Text: "World", Start: 2, Duration: 2.5},
}

func TestToPlainText(t *testing.T) {
	segments := []youtube.TranscriptSegment{
		{Text: "first"},
		{Text: "second\nline"},
		{Text: "third\r\nline"},
	}

	output, err := EncodeTranscript("txt", segments, TranscriptMeta{})
	if err != nil {
		t.Fatalf("EncodeTranscript(txt) failed: %v", err)
	}

	want := "first\nsecond line\nthird line\n"
	if string(output) != want {
		t.Errorf("EncodeTranscript(txt) = %q, want %q", output, want)
	}
}

func TestToSRT(t *testing.T) {
	output, err := EncodeTranscript("srt", sampleSegments, TranscriptMeta{})
	if err != nil {
		t.Fatalf("EncodeTranscript(srt) failed: %v", err)
	}

	want := "1\n00:00:00,000 --> 00:00:02,000\nHello\n\n2\n00:00:02,000 --> 00:00:04,500\nWorld\n\n"
	if string(output) != want {
		t.Errorf("EncodeTranscript(srt) = %q, want %q", output, want)
	}
}

func TestToVTT(t *testing.T) {
	output, err := EncodeTranscript("vtt", sampleSegments, TranscriptMeta{})
	if err != nil {
		t.Fatalf("EncodeTranscript(vtt) failed: %v", err)
	}

	s := string(output)
	if !strings.HasPrefix(s, "WEBVTT\n\n") {
		t.Error("VTT output missing WEBVTT header")
	}
	if !strings.Contains(s, "00:00:02.000 --> 00:00:04.500\nWorld") {
		t.Errorf("VTT output missing second cue: %q", s)
	}
}

func TestToJSON(t *testing.T) {
	meta := TranscriptMeta{
		VideoURL:    "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		ChannelName: "Rick Astley",
		Title:       "Never Gonna Give You Up",
		PublishedAt: time.Date(2009, 10, 25, 6, 57, 33, 0, time.UTC),
		Duration:    "PT3M33S",
		Tags:        []string{"rick", "astley"},
	}
	segments := []youtube.TranscriptSegment{
		{Text: "we're no strangers (to love)", Start: 18.8},
		{Text: "you   know [the] rules 🎵", Start: 3725},
	}

	output, err := EncodeTranscript("json", segments, meta)
	if err != nil {
		t.Fatalf("EncodeTranscript(json) failed: %v", err)
	}

	var doc struct {
		Metadata   map[string]any `json:"metadata"`
		Transcript []struct {
			Text  string  `json:"text"`
			At    string  `json:"at"`
			Start float64 `json:"start"`
		} `json:"transcript"`
	}
	if err := json.Unmarshal(output, &doc); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}

	if doc.Metadata["video_title"] != "Never Gonna Give You Up" {
		t.Errorf("video_title = %v", doc.Metadata["video_title"])
	}
	if doc.Metadata["publish_date"] != "2009-10-25T06:57:33Z" {
		t.Errorf("publish_date = %v", doc.Metadata["publish_date"])
	}
	if len(doc.Transcript) != 2 {
		t.Fatalf("got %d segments, want 2", len(doc.Transcript))
	}
	if got := doc.Transcript[0]; got.Text != "we're no strangers to love" || got.At != "00:18" {
		t.Errorf("segment 0 = %+v", got)
	}
	if got := doc.Transcript[1]; got.Text != "you know the rules" || got.At != "01:02:05" {
		t.Errorf("segment 1 = %+v", got)
	}
}

func TestToJSONUnknownMetadata(t *testing.T) {
	output, err := EncodeTranscript("json", nil, TranscriptMeta{})
	if err != nil {
		t.Fatalf("EncodeTranscript(json) failed: %v", err)
	}
	s := string(output)
	for _, want := range []string{`"channel_name": "Unknown"`, `"publish_date": "Unknown"`, `"tags": []`, `"transcript": []`} {
		if !strings.Contains(s, want) {
			t.Errorf("output missing %s:\n%s", want, s)
		}
	}
}

func TestEncodeTranscriptUnknownFormat(t *testing.T) {
	if _, err := EncodeTranscript("ttml", sampleSegments, TranscriptMeta{}); err == nil {
		t.Error("EncodeTranscript(ttml) should fail")
	}
	if _, err := Extension("docx"); err == nil {
		t.Error("Extension(docx) should fail")
	}
}

func TestSanitizeText(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain text", "plain text"},
		{"a.b*c?d", "abcd"},
		{"  spaced \t out\n ", "spaced out"},
		{"emoji 😀 gone", "emoji gone"},
		{"ünïcödé stays", "ünïcödé stays"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := SanitizeText(tt.in); got != tt.want {
			t.Errorf("SanitizeText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatVTTTime(t *testing.T) {
	tests := []struct {
		seconds float64
		want    string
	}{
		{0, "00:00:00.000"},
		{1.5, "00:00:01.500"},
		{61.001, "00:01:01.001"},
		{3723.25, "01:02:03.250"},
	}
	for _, tt := range tests {
		if got := formatVTTTime(tt.seconds); got != tt.want {
			t.Errorf("formatVTTTime(%v) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}
