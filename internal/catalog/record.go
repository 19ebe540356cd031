package catalog

import (
	"fmt"
	"strings"
	"time"

	"github.com/kebairia/backman/internal/config"
)

// Kind identifies what a backup artifact was collected from.
type Kind string

const (
	KindFiles        Kind = "files"
	KindMySQLDump    Kind = "mysql"
	KindPostgresDump Kind = "postgres"
	KindDockerVolume Kind = "docker-volume"
)

// Status is the lifecycle state of a backup record. A record becomes
// Complete only after checksum computation and the atomic rename succeed.
type Status string

const (
	StatusBuilding Status = "building"
	StatusComplete Status = "complete"
	StatusFailed   Status = "failed"
)

// DestStatus tracks one destination's sync state for a record. Entries are
// append-only per job and never move from Synced back to Pending.
type DestStatus string

const (
	DestPending DestStatus = "pending"
	DestSynced  DestStatus = "synced"
	DestFailed  DestStatus = "failed"
)

// DestKind discriminates the DestinationRef variant.
type DestKind string

const (
	DestLocal  DestKind = "local"
	DestRemote DestKind = "remote"
	DestS3     DestKind = "s3"
)

// DestinationRef names one configured destination. Only the fields of the
// active variant are set.
type DestinationRef struct {
	Kind DestKind `json:"kind"`

	// Local and Remote
	Path string `json:"path,omitempty"`

	// Remote
	Host string `json:"host,omitempty"`
	User string `json:"user,omitempty"`

	// S3
	Bucket string `json:"bucket,omitempty"`
	Prefix string `json:"prefix,omitempty"`
}

func (r DestinationRef) String() string {
	switch r.Kind {
	case DestRemote:
		return fmt.Sprintf("%s@%s:%s", r.User, r.Host, r.Path)
	case DestS3:
		return fmt.Sprintf("s3://%s/%s", r.Bucket, r.Prefix)
	default:
		return fmt.Sprintf("local:%s", r.Path)
	}
}

// DestinationState is one entry of BackupRecord.Destinations.
type DestinationState struct {
	Ref      DestinationRef `json:"ref"`
	Status   DestStatus     `json:"status"`
	Attempts int            `json:"attempts"`
	Error    string         `json:"error,omitempty"`
}

// BackupRecord is one completed (or failed) backup job for a logical source.
type BackupRecord struct {
	ID           string             `json:"id"`
	LogicalName  string             `json:"logical_name"`
	Kind         Kind               `json:"kind"`
	CreatedAt    time.Time          `json:"created_at"`
	ArtifactPath string             `json:"artifact_path"`
	Checksum     string             `json:"checksum"`
	SizeBytes    int64              `json:"size_bytes"`
	Destinations []DestinationState `json:"destinations,omitempty"`
	Status       Status             `json:"status"`
}

// SidecarPath returns the checksum sidecar path for the record's artifact.
func (r *BackupRecord) SidecarPath() string {
	return r.ArtifactPath + SidecarSuffix
}

// RecordID derives the opaque record identifier from the logical name and
// creation time. It is reconstructible from a directory scan alone.
func RecordID(logicalName string, createdAt time.Time) string {
	return logicalName + "@" + createdAt.UTC().Format(config.TimestampLayout)
}

// ArtifactName returns the canonical artifact file name for a job.
func ArtifactName(logicalName string, createdAt time.Time) string {
	return fmt.Sprintf("%s_%s%s",
		logicalName, createdAt.UTC().Format(config.TimestampLayout), ArtifactSuffix)
}

// ParseArtifactName splits <name>_<YYYYMMDD_HHMMSS>.tar.gz back into the
// logical name and creation time.
func ParseArtifactName(base string) (logicalName string, createdAt time.Time, err error) {
	if !strings.HasSuffix(base, ArtifactSuffix) {
		return "", time.Time{}, fmt.Errorf("artifact %q: missing %s suffix", base, ArtifactSuffix)
	}
	stem := strings.TrimSuffix(base, ArtifactSuffix)

	// The timestamp itself contains one underscore, so cut at the
	// second-to-last one.
	i := strings.LastIndex(stem, "_")
	if i <= 0 {
		return "", time.Time{}, fmt.Errorf("artifact %q: no timestamp", base)
	}
	j := strings.LastIndex(stem[:i], "_")
	if j <= 0 {
		return "", time.Time{}, fmt.Errorf("artifact %q: no timestamp", base)
	}

	ts, err := time.ParseInLocation(config.TimestampLayout, stem[j+1:], time.UTC)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("artifact %q: bad timestamp: %w", base, err)
	}
	return stem[:j], ts, nil
}
