package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ytscribe/internal/storage"
	"ytscribe/youtube"
)

// isolate runs the test in an empty directory with no config file, .env or
// API key in reach.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", dir)
	t.Setenv("API_KEY", "")
	t.Setenv("YTSCRIBE_API_KEY", "")
	t.Setenv("YTSCRIBE_OUTPUT_DIR", "")
	t.Setenv("YTSCRIBE_OUTPUT_FORMAT", "")
	return dir
}

func execute(t *testing.T, stdin string, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetArgs(args)
	root.SetIn(strings.NewReader(stdin))
	root.SetOut(&out)
	root.SetErr(&errOut)
	err = root.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func TestDupesCommand(t *testing.T) {
	dir := isolate(t)
	out := filepath.Join(dir, "out")
	require.NoError(t, os.MkdirAll(out, 0o755))
	for _, name := range []string{"A_aaaaaaaaaaa.txt", "B_bbbbbbbbbbb.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(out, name), []byte("same words\n"), 0o644))
	}

	stdout, stderr, err := execute(t, "", "dupes", "--output", out)

	require.NoError(t, err)
	assert.Contains(t, stdout, "Duplicate: ")
	assert.Contains(t, stdout, "A_aaaaaaaaaaa.txt")
	assert.Contains(t, stdout, "B_bbbbbbbbbbb.txt")
	assert.Contains(t, stderr, "1 groups of duplicates")
	assert.FileExists(t, filepath.Join(out, storage.DuplicatesFile))
}

func TestVideoCommandRejectsBadInput(t *testing.T) {
	isolate(t)

	_, _, err := execute(t, "", "video", "not a video")

	var ee *youtube.ExtractionError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, youtube.ReasonNoMatch, ee.Reason)
}

func TestChannelCommandNeedsAPIKey(t *testing.T) {
	isolate(t)

	_, _, err := execute(t, "", "channel", "@someone")

	assert.ErrorIs(t, err, youtube.ErrNoAPIKey)
}

func TestInvalidFormatFlag(t *testing.T) {
	isolate(t)

	_, _, err := execute(t, "", "video", "dQw4w9WgXcQ", "--format", "docx")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "output_format")
}

func TestBatchCommandReportsProblems(t *testing.T) {
	dir := isolate(t)
	list := filepath.Join(dir, "list.txt")
	require.NoError(t, os.WriteFile(list, []byte("# nothing usable\nhello world\nabc\n"), 0o644))
	out := filepath.Join(dir, "out")

	stdout, stderr, err := execute(t, "", "batch", list, "-o", out)

	require.Error(t, err)
	assert.True(t, errors.Is(err, errProblems))
	assert.Contains(t, stderr, "Skipped: 2")
	assert.Contains(t, stderr, "skipped abc: invalid_length")

	reportPath := strings.TrimSpace(stdout)
	report, err := storage.LoadRunReport(reportPath)
	require.NoError(t, err)
	assert.Equal(t, "batch", report.Command)
	assert.Len(t, report.Items, 2)
}

func TestMenuIsDefault(t *testing.T) {
	dir := isolate(t)
	out := filepath.Join(dir, "out")
	require.NoError(t, os.MkdirAll(out, 0o755))

	_, stderr, err := execute(t, "4\n\n5\n", "--output", out)

	require.NoError(t, err)
	assert.Contains(t, stderr, "Main Menu")
	assert.Contains(t, stderr, "No duplicate transcripts found.")
	assert.Contains(t, stderr, "Goodbye!")
}

func TestProblems(t *testing.T) {
	assert.NoError(t, problems(nil))

	report := storage.NewRunReport("batch", "list.txt")
	report.Add(storage.ReportItem{Status: storage.StatusWritten})
	report.Add(storage.ReportItem{Status: storage.StatusExists})
	assert.NoError(t, problems(report))

	report.Add(storage.ReportItem{Status: storage.StatusFailed})
	err := problems(report)
	assert.ErrorIs(t, err, errProblems)
	assert.Contains(t, err.Error(), "0 skipped, 1 failed")
}
