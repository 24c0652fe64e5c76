package app

import (
	"os"
	"path/filepath"

	"ytscribe/internal/storage"
)

// DuplicateScan is the result of FindDuplicates.
type DuplicateScan struct {
	Groups []storage.DuplicateGroup
	// ReportPath is empty when no duplicates were found.
	ReportPath string
}

// FindDuplicates scans dir for duplicate transcripts and writes
// duplicates.txt there when any are found. An empty dir means the output
// directory together with each channel directory beneath it, compared as
// one set.
func (r *Runner) FindDuplicates(dir string) (*DuplicateScan, error) {
	dirs := []string{dir}
	if dir == "" {
		dir = r.Writer.Dir()
		var err error
		if dirs, err = outputDirs(dir); err != nil {
			return nil, err
		}
	}
	groups, err := storage.FindDuplicates(dirs...)
	if err != nil {
		return nil, err
	}

	scan := &DuplicateScan{Groups: groups}
	if len(groups) == 0 {
		r.Logger.Info().Str("dir", dir).Int("dirs", len(dirs)).Msg("no duplicate transcripts")
		return scan, nil
	}

	path, err := storage.WriteDuplicatesReport(dir, groups)
	if err != nil {
		return scan, err
	}
	scan.ReportPath = path
	r.Logger.Info().Str("dir", dir).Int("dirs", len(dirs)).Int("groups", len(groups)).Str("report", path).Msg("duplicate transcripts found")
	return scan, nil
}

// outputDirs returns root followed by its immediate subdirectories, where
// channel runs put their transcripts.
func outputDirs(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, &storage.WriteError{Op: "read", Path: root, Kind: storage.WriteKindIO, Err: err}
	}
	dirs := []string{root}
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, filepath.Join(root, e.Name()))
		}
	}
	return dirs, nil
}
