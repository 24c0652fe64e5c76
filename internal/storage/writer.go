package storage

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"ytscribe/youtube"
)

// CSVHeader is the first row of every channel listing.
var CSVHeader = []string{"id", "title", "published_at", "duration_seconds"}

// WriteResult says where an output file went. Skipped is set when the file
// already existed and overwriting was off; the file was not touched.
type WriteResult struct {
	Path    string
	Skipped bool
}

// Writer writes output files into one directory.
type Writer struct {
	dir       string
	format    string
	ext       string
	overwrite bool
}

// NewWriter returns a Writer for dir using the given transcript format.
// The directory is created on first write.
func NewWriter(dir, format string, overwrite bool) (*Writer, error) {
	ext, err := Extension(format)
	if err != nil {
		return nil, err
	}
	return &Writer{dir: dir, format: format, ext: ext, overwrite: overwrite}, nil
}

// Dir returns the output directory.
func (w *Writer) Dir() string { return w.dir }

// In returns a Writer with the same settings writing into dir.
func (w *Writer) In(dir string) *Writer {
	c := *w
	c.dir = dir
	return &c
}

// TranscriptPath returns the path WriteTranscript would use.
func (w *Writer) TranscriptPath(video youtube.VideoRef, name SanitizedFilename) string {
	return filepath.Join(w.dir, name.Base+"_"+video.ID+w.ext)
}

// Exists reports whether path is already on disk and would be left alone.
func (w *Writer) Exists(path string) bool {
	if w.overwrite {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

// WriteTranscript writes segments to dir/<name>_<video id>.<ext>.
func (w *Writer) WriteTranscript(video youtube.VideoRef, name SanitizedFilename, segments []youtube.TranscriptSegment, meta TranscriptMeta) (WriteResult, error) {
	path := w.TranscriptPath(video, name)
	if meta.VideoURL == "" {
		meta.VideoURL = video.URL()
	}
	data, err := EncodeTranscript(w.format, segments, meta)
	if err != nil {
		return WriteResult{Path: path}, ioError("encode", path, err)
	}
	return w.write(path, data)
}

// WriteVideoListCSV writes records to dir/<name>_<channel id>.csv in the
// order given. The listing is a snapshot of the channel, so an earlier file
// is always replaced whatever the overwrite setting.
func (w *Writer) WriteVideoListCSV(channelID string, name SanitizedFilename, records []youtube.VideoRecord) (WriteResult, error) {
	path := filepath.Join(w.dir, name.Base+"_"+channelID+".csv")

	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	if err := cw.Write(CSVHeader); err != nil {
		return WriteResult{Path: path}, ioError("encode", path, err)
	}
	for _, r := range records {
		row := []string{
			r.ID.ID,
			r.Title,
			r.PublishedAt.UTC().Format(time.RFC3339),
			strconv.Itoa(r.DurationSeconds),
		}
		if err := cw.Write(row); err != nil {
			return WriteResult{Path: path}, ioError("encode", path, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return WriteResult{Path: path}, ioError("encode", path, err)
	}
	if err := writeAtomic(path, buf.Bytes()); err != nil {
		return WriteResult{Path: path}, ioError("write", path, err)
	}
	return WriteResult{Path: path}, nil
}

func (w *Writer) write(path string, data []byte) (WriteResult, error) {
	if !w.overwrite {
		_, err := os.Stat(path)
		switch {
		case err == nil:
			return WriteResult{Path: path, Skipped: true}, nil
		case !errors.Is(err, fs.ErrNotExist):
			return WriteResult{Path: path}, ioError("stat", path, err)
		}
	}
	if err := writeAtomic(path, data); err != nil {
		return WriteResult{Path: path}, ioError("write", path, err)
	}
	return WriteResult{Path: path}, nil
}
