package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ytscribe/internal/config"
	"ytscribe/internal/progress"
	"ytscribe/internal/storage"
	"ytscribe/youtube"
)

type fakeTranscripts struct {
	segments map[string][]youtube.TranscriptSegment
	errs     map[string]error
	calls    []string
}

func (f *fakeTranscripts) Captions(_ context.Context, v youtube.VideoRef, _ []string) ([]youtube.TranscriptSegment, error) {
	f.calls = append(f.calls, v.ID)
	if err, ok := f.errs[v.ID]; ok {
		return nil, err
	}
	if s, ok := f.segments[v.ID]; ok {
		return s, nil
	}
	return []youtube.TranscriptSegment{{Text: "transcript of " + v.ID}}, nil
}

type fakeTitles map[string]string

func (f fakeTitles) VideoTitle(_ context.Context, v youtube.VideoRef) (string, error) {
	if t, ok := f[v.ID]; ok {
		return t, nil
	}
	return "", &youtube.FetchError{Video: v, Kind: youtube.FetchNotFound}
}

type fakeMetadata struct {
	videos    map[string]youtube.VideoMetadata
	videoErrs map[string]error
	channel   youtube.ChannelInfo
	pages     map[string]*youtube.Page
	pageErrs  map[string]error
}

func (f *fakeMetadata) VideoMetadata(_ context.Context, v youtube.VideoRef) (youtube.VideoMetadata, error) {
	if err, ok := f.videoErrs[v.ID]; ok {
		return youtube.VideoMetadata{}, err
	}
	md, ok := f.videos[v.ID]
	if !ok {
		return youtube.VideoMetadata{}, youtube.ErrVideoNotFound
	}
	return md, nil
}

func (f *fakeMetadata) ResolveChannel(_ context.Context, ref youtube.ChannelRef) (youtube.ChannelInfo, error) {
	if f.channel.ID == "" {
		return youtube.ChannelInfo{}, youtube.ErrChannelNotFound
	}
	return f.channel, nil
}

func (f *fakeMetadata) FetchPage(_ context.Context, _ youtube.ChannelRef, cursor string) (*youtube.Page, error) {
	if err, ok := f.pageErrs[cursor]; ok {
		return nil, err
	}
	return f.pages[cursor], nil
}

type fixture struct {
	runner      *Runner
	out         string
	transcripts *fakeTranscripts
	progress    *bytes.Buffer
}

func newFixture(t *testing.T, format string, md MetadataSource, titles TitleSource) *fixture {
	t.Helper()
	patterns, err := config.DefaultConfig().Compile()
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "transcripts")
	w, err := storage.NewWriter(out, format, false)
	require.NoError(t, err)

	f := &fixture{out: out, transcripts: &fakeTranscripts{}, progress: &bytes.Buffer{}}
	f.runner = New(Deps{
		Extractor:   youtube.NewExtractor(patterns.VideoID, patterns.Channel),
		Sanitizer:   storage.NewSanitizer(36, patterns.SanitizeFilename),
		Durations:   youtube.NewDurationParser(patterns.ISODuration),
		Writer:      w,
		Transcripts: f.transcripts,
		Titles:      titles,
		Metadata:    md,
		Languages:   []string{"en"},
		Logger:      zerolog.Nop(),
		Progress: func(label string, total int) Progress {
			return progress.NewWriter(f.progress, false, 80, label, total)
		},
	})
	return f
}

func rickMetadata() *fakeMetadata {
	return &fakeMetadata{videos: map[string]youtube.VideoMetadata{
		"dQw4w9WgXcQ": {
			ID:           youtube.VideoRef{ID: "dQw4w9WgXcQ"},
			Title:        "Never Gonna Give You Up!",
			ChannelID:    "UCuAXFkgsw1L7xaCfnd5JJOw",
			ChannelTitle: "Rick Astley",
			PublishedAt:  time.Date(2009, 10, 25, 6, 57, 33, 0, time.UTC),
			Duration:     "PT3M33S",
		},
	}}
}

func TestFetchVideoWithMetadata(t *testing.T) {
	f := newFixture(t, "txt", rickMetadata(), nil)
	f.transcripts.segments = map[string][]youtube.TranscriptSegment{
		"dQw4w9WgXcQ": {{Text: "We're no strangers to love"}, {Text: "You know the rules"}},
	}

	out, err := f.runner.FetchVideo(context.Background(), "https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=30s")

	require.NoError(t, err)
	assert.Equal(t, storage.StatusWritten, out.Status)
	assert.Equal(t, filepath.Join(f.out, "Rick Astley", "Never Gonna Give You Up_dQw4w9WgXcQ.txt"), out.Path)
	data, err := os.ReadFile(out.Path)
	require.NoError(t, err)
	assert.Equal(t, "We're no strangers to love\nYou know the rules\n", string(data))
}

func TestFetchVideoJSONCarriesMetadata(t *testing.T) {
	f := newFixture(t, "json", rickMetadata(), nil)

	out, err := f.runner.FetchVideo(context.Background(), "dQw4w9WgXcQ")

	require.NoError(t, err)
	data, err := os.ReadFile(out.Path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"channel_name": "Rick Astley"`)
	assert.Contains(t, string(data), `"duration": "PT3M33S"`)
	assert.Contains(t, string(data), `"at": "00:00"`)
}

func TestFetchVideoWithoutMetadataUsesWatchPageTitle(t *testing.T) {
	f := newFixture(t, "txt", nil, fakeTitles{"dQw4w9WgXcQ": "Watch Page: Title"})

	out, err := f.runner.FetchVideo(context.Background(), "https://youtu.be/dQw4w9WgXcQ")

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(f.out, "Watch Page Title_dQw4w9WgXcQ.txt"), out.Path)
}

func TestFetchVideoTitleFallsBackToID(t *testing.T) {
	f := newFixture(t, "txt", nil, fakeTitles{})

	out, err := f.runner.FetchVideo(context.Background(), "dQw4w9WgXcQ")

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(f.out, "dQw4w9WgXcQ_dQw4w9WgXcQ.txt"), out.Path)
}

func TestFetchVideoExistingFileNotRefetched(t *testing.T) {
	f := newFixture(t, "txt", rickMetadata(), nil)

	first, err := f.runner.FetchVideo(context.Background(), "dQw4w9WgXcQ")
	require.NoError(t, err)
	second, err := f.runner.FetchVideo(context.Background(), "dQw4w9WgXcQ")
	require.NoError(t, err)

	assert.Equal(t, storage.StatusExists, second.Status)
	assert.Equal(t, first.Path, second.Path)
	assert.Len(t, f.transcripts.calls, 1)
}

func TestFetchVideoErrors(t *testing.T) {
	f := newFixture(t, "txt", nil, fakeTitles{})
	f.transcripts.errs = map[string]error{
		"disabled000": &youtube.FetchError{Kind: youtube.FetchTranscriptsDisabled},
	}

	_, err := f.runner.FetchVideo(context.Background(), "not a video")
	var ee *youtube.ExtractionError
	require.ErrorAs(t, err, &ee)

	_, err = f.runner.FetchVideo(context.Background(), "disabled000")
	var fe *youtube.FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, youtube.FetchTranscriptsDisabled, fe.Kind)
}

func TestFetchVideoFatalMetadataError(t *testing.T) {
	md := rickMetadata()
	md.videoErrs = map[string]error{"dQw4w9WgXcQ": fmt.Errorf("videos.list: %w", youtube.ErrQuotaExceeded)}
	f := newFixture(t, "txt", md, nil)

	_, err := f.runner.FetchVideo(context.Background(), "dQw4w9WgXcQ")

	assert.True(t, youtube.IsFatal(err))
	assert.Empty(t, f.transcripts.calls)
}

func writeInput(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestProcessListIsolatesItems(t *testing.T) {
	f := newFixture(t, "txt", nil, fakeTitles{"aaaaaaaaaaa": "A", "bbbbbbbbbbb": "B"})
	f.transcripts.errs = map[string]error{
		"ccccccccccc": &youtube.FetchError{Kind: youtube.FetchTranscriptsDisabled},
		"ddddddddddd": &youtube.FetchError{Kind: youtube.FetchTransport, Err: errors.New("connection reset")},
	}
	list := writeInput(t, "list.txt", strings.Join([]string{
		"# my videos",
		"https://www.youtube.com/watch?v=aaaaaaaaaaa",
		"",
		"hello world",
		"ccccccccccc",
		"https://youtu.be/ddddddddddd",
		"bbbbbbbbbbb",
	}, "\n"))

	report, err := f.runner.ProcessList(context.Background(), list)

	require.NoError(t, err)
	assert.Equal(t, 2, report.Written)
	assert.Equal(t, 2, report.Skipped)
	assert.Equal(t, 1, report.Failed)
	assert.True(t, report.HasProblems())

	require.Len(t, report.Items, 5)
	assert.Equal(t, storage.ReportItem{Input: "hello world", Status: storage.StatusSkipped, Reason: "no_match"}, report.Items[1])
	assert.Equal(t, "transcripts_disabled", report.Items[2].Reason)
	assert.Contains(t, report.Items[3].Reason, "transport")
	assert.Equal(t, "bbbbbbbbbbb", report.Items[4].VideoID)

	saved, err := storage.LoadRunReport(filepath.Join(f.out, report.FileName()))
	require.NoError(t, err)
	assert.Equal(t, report.RunID, saved.RunID)
	assert.Len(t, saved.Items, 5)

	assert.Contains(t, f.progress.String(), "[5/5] bbbbbbbbbbb: written")
	assert.Contains(t, f.progress.String(), "batch: 5/5")
}

func TestProcessListCSV(t *testing.T) {
	f := newFixture(t, "txt", nil, fakeTitles{})
	list := writeInput(t, "videos.csv", "id,title\naaaaaaaaaaa,First\n\"https://youtu.be/bbbbbbbbbbb\",Second\n")

	report, err := f.runner.ProcessList(context.Background(), list)

	require.NoError(t, err)
	assert.Equal(t, 2, report.Written)
	assert.Equal(t, []string{"aaaaaaaaaaa", "bbbbbbbbbbb"}, f.transcripts.calls)
}

func TestProcessListFatalAborts(t *testing.T) {
	md := rickMetadata()
	md.videoErrs = map[string]error{"bbbbbbbbbbb": youtube.ErrQuotaExceeded}
	md.videos["aaaaaaaaaaa"] = youtube.VideoMetadata{ID: youtube.VideoRef{ID: "aaaaaaaaaaa"}, Title: "A"}
	f := newFixture(t, "txt", md, nil)
	list := writeInput(t, "list.txt", "aaaaaaaaaaa\nbbbbbbbbbbb\nccccccccccc\n")

	report, err := f.runner.ProcessList(context.Background(), list)

	require.Error(t, err)
	assert.True(t, youtube.IsFatal(err))
	require.NotNil(t, report)
	assert.Len(t, report.Items, 1)
	assert.NotEmpty(t, report.Aborted)
	assert.Equal(t, []string{"aaaaaaaaaaa"}, f.transcripts.calls)
	assert.FileExists(t, filepath.Join(f.out, report.FileName()))
}

func TestProcessListMissingFile(t *testing.T) {
	f := newFixture(t, "txt", nil, nil)
	_, err := f.runner.ProcessList(context.Background(), filepath.Join(t.TempDir(), "nope.txt"))
	assert.Error(t, err)
}

func channelMetadata() *fakeMetadata {
	item := func(id, title string) youtube.PageItem {
		return youtube.PageItem{ID: id, Title: title, PublishedAt: "2024-01-02T03:04:05Z", ISODuration: "PT2M"}
	}
	md := &fakeMetadata{
		channel: youtube.ChannelInfo{ID: "UCuAXFkgsw1L7xaCfnd5JJOw", Title: "Test: Channel", UploadsPlaylistID: "UUuAXFkgsw1L7xaCfnd5JJOw"},
		pages: map[string]*youtube.Page{
			"":   {Items: []youtube.PageItem{item("aaaaaaaaaaa", "First"), {ID: "bbbbbbbbbbb"}}, NextCursor: "p2"},
			"p2": {Items: []youtube.PageItem{item("ccccccccccc", "Third")}},
		},
		videos: map[string]youtube.VideoMetadata{},
	}
	for _, id := range []string{"aaaaaaaaaaa", "ccccccccccc"} {
		md.videos[id] = youtube.VideoMetadata{ID: youtube.VideoRef{ID: id}, Title: "Video " + id[:1], ChannelTitle: "Test: Channel"}
	}
	return md
}

func TestFetchChannelWritesCSV(t *testing.T) {
	f := newFixture(t, "txt", channelMetadata(), nil)

	res, err := f.runner.FetchChannel(context.Background(), "https://www.youtube.com/@test", false)

	require.NoError(t, err)
	assert.Equal(t, 2, res.Videos)
	assert.Equal(t, filepath.Join(f.out, "Test Channel", "Test Channel_UCuAXFkgsw1L7xaCfnd5JJOw.csv"), res.CSVPath)

	data, err := os.ReadFile(res.CSVPath)
	require.NoError(t, err)
	assert.Equal(t, "id,title,published_at,duration_seconds\n"+
		"aaaaaaaaaaa,First,2024-01-02T03:04:05Z,120\n"+
		"ccccccccccc,Third,2024-01-02T03:04:05Z,120\n", string(data))

	assert.Equal(t, 1, res.Report.Skipped)
	assert.Empty(t, f.transcripts.calls)
	assert.FileExists(t, filepath.Join(f.out, "Test Channel", res.Report.FileName()))
}

func TestFetchChannelReplacesListing(t *testing.T) {
	md := channelMetadata()
	f := newFixture(t, "txt", md, nil)

	first, err := f.runner.FetchChannel(context.Background(), "@test", false)
	require.NoError(t, err)

	md.pages[""].Items[0].Title = "First (edited)"
	md.pages["p2"].Items = append(md.pages["p2"].Items, youtube.PageItem{
		ID: "ddddddddddd", Title: "Fourth", PublishedAt: "2024-02-03T04:05:06Z", ISODuration: "PT1M",
	})
	second, err := f.runner.FetchChannel(context.Background(), "@test", false)
	require.NoError(t, err)

	assert.Equal(t, first.CSVPath, second.CSVPath)
	assert.Equal(t, 3, second.Videos)
	data, err := os.ReadFile(second.CSVPath)
	require.NoError(t, err)
	assert.Equal(t, "id,title,published_at,duration_seconds\n"+
		"aaaaaaaaaaa,First (edited),2024-01-02T03:04:05Z,120\n"+
		"ccccccccccc,Third,2024-01-02T03:04:05Z,120\n"+
		"ddddddddddd,Fourth,2024-02-03T04:05:06Z,60\n", string(data))
}

func TestFetchChannelWithTranscripts(t *testing.T) {
	f := newFixture(t, "txt", channelMetadata(), nil)

	res, err := f.runner.FetchChannel(context.Background(), "@test", true)

	require.NoError(t, err)
	assert.Equal(t, []string{"aaaaaaaaaaa", "ccccccccccc"}, f.transcripts.calls)
	assert.Equal(t, 2, res.Report.Written)
	assert.FileExists(t, filepath.Join(f.out, "Test Channel", "Video a_aaaaaaaaaaa.txt"))
	assert.FileExists(t, filepath.Join(f.out, "Test Channel", "Video c_ccccccccccc.txt"))
	assert.Contains(t, f.progress.String(), "Test: Channel: 2/2")
}

func TestFetchChannelPaginationErrorKeepsPartialCSV(t *testing.T) {
	md := channelMetadata()
	md.pageErrs = map[string]error{"p2": fmt.Errorf("playlistItems.list: %w", youtube.ErrQuotaExceeded)}
	f := newFixture(t, "txt", md, nil)

	res, err := f.runner.FetchChannel(context.Background(), "@test", true)

	require.Error(t, err)
	assert.True(t, youtube.IsFatal(err))
	var pe *youtube.PaginationError
	assert.ErrorAs(t, err, &pe)
	require.NotNil(t, res)
	assert.Equal(t, 1, res.Videos)
	assert.FileExists(t, res.CSVPath)
	assert.Empty(t, f.transcripts.calls)
	assert.NotEmpty(t, res.Report.Aborted)
}

func TestFetchChannelRequiresAPIKey(t *testing.T) {
	f := newFixture(t, "txt", nil, nil)
	_, err := f.runner.FetchChannel(context.Background(), "@test", false)
	assert.ErrorIs(t, err, youtube.ErrNoAPIKey)
}

func TestFetchChannelNotFound(t *testing.T) {
	f := newFixture(t, "txt", &fakeMetadata{}, nil)
	_, err := f.runner.FetchChannel(context.Background(), "@nobody", false)
	assert.ErrorIs(t, err, youtube.ErrChannelNotFound)
	assert.False(t, youtube.IsFatal(err))
}

func TestFindDuplicates(t *testing.T) {
	f := newFixture(t, "txt", nil, fakeTitles{"aaaaaaaaaaa": "Same", "bbbbbbbbbbb": "Same"})
	f.transcripts.segments = map[string][]youtube.TranscriptSegment{
		"aaaaaaaaaaa": {{Text: "identical"}},
		"bbbbbbbbbbb": {{Text: "identical"}},
	}
	for _, id := range []string{"aaaaaaaaaaa", "bbbbbbbbbbb", "ccccccccccc"} {
		_, err := f.runner.FetchVideo(context.Background(), id)
		require.NoError(t, err)
	}

	scan, err := f.runner.FindDuplicates("")

	require.NoError(t, err)
	require.Len(t, scan.Groups, 1)
	assert.Equal(t, []string{
		filepath.Join(f.out, "Same_aaaaaaaaaaa.txt"),
		filepath.Join(f.out, "Same_bbbbbbbbbbb.txt"),
	}, scan.Groups[0].Paths)
	assert.Equal(t, filepath.Join(f.out, storage.DuplicatesFile), scan.ReportPath)
}

func TestFindDuplicatesInChannelDir(t *testing.T) {
	md := rickMetadata()
	md.videos["aaaaaaaaaaa"] = youtube.VideoMetadata{ID: youtube.VideoRef{ID: "aaaaaaaaaaa"}, Title: "Take One", ChannelTitle: "Rick Astley"}
	md.videos["bbbbbbbbbbb"] = youtube.VideoMetadata{ID: youtube.VideoRef{ID: "bbbbbbbbbbb"}, Title: "Take Two", ChannelTitle: "Rick Astley"}
	f := newFixture(t, "txt", md, nil)
	f.transcripts.segments = map[string][]youtube.TranscriptSegment{
		"aaaaaaaaaaa": {{Text: "identical"}},
		"bbbbbbbbbbb": {{Text: "identical"}},
	}
	for _, id := range []string{"aaaaaaaaaaa", "bbbbbbbbbbb", "dQw4w9WgXcQ"} {
		_, err := f.runner.FetchVideo(context.Background(), id)
		require.NoError(t, err)
	}
	channelDir := filepath.Join(f.out, "Rick Astley")
	require.FileExists(t, filepath.Join(channelDir, "Take One_aaaaaaaaaaa.txt"))

	scan, err := f.runner.FindDuplicates("")

	require.NoError(t, err)
	require.Len(t, scan.Groups, 1)
	assert.Equal(t, []string{
		filepath.Join(channelDir, "Take One_aaaaaaaaaaa.txt"),
		filepath.Join(channelDir, "Take Two_bbbbbbbbbbb.txt"),
	}, scan.Groups[0].Paths)
	assert.Equal(t, filepath.Join(f.out, storage.DuplicatesFile), scan.ReportPath)
}

func TestFindDuplicatesNone(t *testing.T) {
	f := newFixture(t, "txt", nil, nil)
	dir := t.TempDir()

	scan, err := f.runner.FindDuplicates(dir)

	require.NoError(t, err)
	assert.Empty(t, scan.Groups)
	assert.Empty(t, scan.ReportPath)
	assert.NoFileExists(t, filepath.Join(dir, storage.DuplicatesFile))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status storage.ItemStatus
		reason string
	}{
		{"extraction", &youtube.ExtractionError{Reason: youtube.ReasonInvalidLength}, storage.StatusSkipped, "invalid_length"},
		{"not found", &youtube.FetchError{Kind: youtube.FetchNotFound}, storage.StatusSkipped, "not_found"},
		{"no transcript", &youtube.FetchError{Kind: youtube.FetchNoTranscript}, storage.StatusSkipped, "no_transcript"},
		{"transport", &youtube.FetchError{Kind: youtube.FetchTransport, Err: errors.New("eof")}, storage.StatusFailed, "transport: eof"},
		{"write", &storage.WriteError{Op: "write", Kind: storage.WriteKindIO, Err: errors.New("disk full")}, storage.StatusFailed, "io: disk full"},
		{"other", errors.New("boom"), storage.StatusFailed, "boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, reason := classify(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.reason, reason)
		})
	}
}

func TestReadInputs(t *testing.T) {
	txt := writeInput(t, "in.txt", "  aaaaaaaaaaa  \n#comment\n\r\nhttps://youtu.be/bbbbbbbbbbb\r\n")
	got, err := ReadInputs(txt)
	require.NoError(t, err)
	assert.Equal(t, []string{"aaaaaaaaaaa", "https://youtu.be/bbbbbbbbbbb"}, got)

	csvPath := writeInput(t, "in.CSV", "video\naaaaaaaaaaa,extra,cols\n\n ,blank\nbbbbbbbbbbb\n")
	got, err = ReadInputs(csvPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"aaaaaaaaaaa", "bbbbbbbbbbb"}, got)
}
