package storage

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// DuplicatesFile is the report written next to the scanned transcripts.
const DuplicatesFile = "duplicates.txt"

// transcriptFile matches the names WriteTranscript produces.
var transcriptFile = regexp.MustCompile(`^.+_[0-9A-Za-z_-]{11}\.(?:txt|json|srt|vtt)$`)

// DuplicateGroup is a set of transcript files with identical content.
// Paths are sorted; the first is treated as the original.
type DuplicateGroup struct {
	Hash  string
	Paths []string
}

// FindDuplicates hashes every transcript file directly inside each of dirs
// and returns the groups of two or more files with the same content, ordered
// by their first path. Files in different directories are compared with each
// other. Line endings are normalized before hashing, so a CRLF copy of a file
// counts as a duplicate. Nothing is modified.
func FindDuplicates(dirs ...string) ([]DuplicateGroup, error) {
	byHash := make(map[string][]string)
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, ioError("read", dir, err)
		}
		for _, e := range entries {
			if !e.Type().IsRegular() || !transcriptFile.MatchString(e.Name()) {
				continue
			}
			path := filepath.Join(dir, e.Name())
			sum, err := hashNormalized(path)
			if err != nil {
				return nil, err
			}
			byHash[sum] = append(byHash[sum], path)
		}
	}

	var groups []DuplicateGroup
	for sum, paths := range byHash {
		if len(paths) < 2 {
			continue
		}
		sort.Strings(paths)
		groups = append(groups, DuplicateGroup{Hash: sum, Paths: paths})
	}
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].Paths[0] < groups[j].Paths[0]
	})
	return groups, nil
}

func hashNormalized(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", ioError("read", path, err)
	}
	data = bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n"))
	data = bytes.ReplaceAll(data, []byte("\r"), []byte("\n"))
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// FormatDuplicates renders groups as "Duplicate:" / "Original:" pairs, one
// pair per extra copy.
func FormatDuplicates(groups []DuplicateGroup) string {
	var sb strings.Builder
	for _, g := range groups {
		original := g.Paths[0]
		for _, dup := range g.Paths[1:] {
			fmt.Fprintf(&sb, "Duplicate: %s\nOriginal: %s\n\n", dup, original)
		}
	}
	return sb.String()
}

// WriteDuplicatesReport writes FormatDuplicates(groups) to dir/duplicates.txt,
// replacing any earlier report.
func WriteDuplicatesReport(dir string, groups []DuplicateGroup) (string, error) {
	path := filepath.Join(dir, DuplicatesFile)
	if err := writeAtomic(path, []byte(FormatDuplicates(groups))); err != nil {
		return path, ioError("write", path, err)
	}
	return path, nil
}
