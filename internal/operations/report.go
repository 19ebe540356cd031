package operations

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kebairia/backman/internal/catalog"
)

// RunReportFilename is written into the backup root after every run.
const RunReportFilename = "last-run.json"

// JobReport is the outcome of one source's backup job.
type JobReport struct {
	Name         string                     `json:"name"`
	Kind         catalog.Kind               `json:"kind"`
	Status       JobStatus                  `json:"status"`
	Skipped      bool                       `json:"skipped,omitempty"`
	Error        string                     `json:"error,omitempty"`
	ArtifactPath string                     `json:"artifact_path,omitempty"`
	SizeBytes    int64                      `json:"size_bytes,omitempty"`
	Duration     time.Duration              `json:"duration_ms,omitempty"`
	Destinations []catalog.DestinationState `json:"destinations,omitempty"`
}

// RunReport aggregates all jobs of one backup run.
type RunReport struct {
	StartedAt   time.Time   `json:"started_at"`
	CompletedAt time.Time   `json:"completed_at"`
	Status      JobStatus   `json:"status"`
	DryRun      bool        `json:"dry_run,omitempty"`
	Jobs        []JobReport `json:"jobs"`
}

// Write persists the report as JSON in dir.
func (r *RunReport) Write(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("ensure report directory %q: %w", dir, err)
	}
	path := filepath.Join(dir, RunReportFilename)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report file %q: %w", path, err)
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(r); err != nil {
		return fmt.Errorf("encode report JSON: %w", err)
	}
	return nil
}
