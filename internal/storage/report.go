package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

const reportVersion = "1.0"

// ItemStatus is the outcome of one batch item.
type ItemStatus string

const (
	StatusWritten ItemStatus = "written"
	StatusExists  ItemStatus = "exists"
	StatusSkipped ItemStatus = "skipped"
	StatusFailed  ItemStatus = "failed"
)

// ReportItem is one line of a batch.
type ReportItem struct {
	Input   string     `json:"input"`
	VideoID string     `json:"video_id,omitempty"`
	Status  ItemStatus `json:"status"`
	Reason  string     `json:"reason,omitempty"`
	Path    string     `json:"path,omitempty"`
}

// RunReport records every item of one batch or channel run.
type RunReport struct {
	Version    string       `json:"version"`
	RunID      string       `json:"run_id"`
	Command    string       `json:"command"`
	Source     string       `json:"source,omitempty"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Written    int          `json:"written"`
	Exists     int          `json:"exists"`
	Skipped    int          `json:"skipped"`
	Failed     int          `json:"failed"`
	Aborted    string       `json:"aborted,omitempty"`
	Items      []ReportItem `json:"items"`
}

// NewRunReport starts a report with a fresh run ID.
func NewRunReport(command, source string) *RunReport {
	return &RunReport{
		Version:   reportVersion,
		RunID:     uuid.NewString(),
		Command:   command,
		Source:    source,
		StartedAt: time.Now().UTC(),
		Items:     []ReportItem{},
	}
}

// Add records an item and updates the counters.
func (r *RunReport) Add(item ReportItem) {
	r.Items = append(r.Items, item)
	switch item.Status {
	case StatusWritten:
		r.Written++
	case StatusExists:
		r.Exists++
	case StatusSkipped:
		r.Skipped++
	case StatusFailed:
		r.Failed++
	}
}

// Abort marks the run as stopped early by err.
func (r *RunReport) Abort(err error) {
	r.Aborted = err.Error()
}

// HasProblems reports whether any item was skipped or failed, or the run
// was aborted.
func (r *RunReport) HasProblems() bool {
	return r.Skipped > 0 || r.Failed > 0 || r.Aborted != ""
}

// FileName returns report-<run id>.json.
func (r *RunReport) FileName() string {
	return "report-" + r.RunID + ".json"
}

// Save stamps FinishedAt and writes the report into dir.
func (r *RunReport) Save(dir string) (string, error) {
	r.FinishedAt = time.Now().UTC()
	path := filepath.Join(dir, r.FileName())

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return path, ioError("encode", path, err)
	}
	if err := writeAtomic(path, append(data, '\n')); err != nil {
		return path, ioError("write", path, err)
	}
	return path, nil
}

// LoadRunReport reads a report written by Save.
func LoadRunReport(path string) (*RunReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ioError("read", path, err)
	}
	var r RunReport
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse run report %s: %w", path, err)
	}
	return &r, nil
}
