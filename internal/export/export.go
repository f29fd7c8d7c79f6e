// Package export runs collection exports in the background. A job queries a
// collection through the record service, renders the matching records in
// each requested format and stores the artifacts in a blob store.
package export

import (
	"context"
	"errors"
	"strings"
	"time"

	"crmcore/internal/core"
	"crmcore/pkg/domain"
)

// Status describes the lifecycle stage of an export job.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further transitions follow s.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// Format names an artifact encoding.
type Format string

const (
	FormatJSON   Format = "json"
	FormatCSV    Format = "csv"
	FormatSQLite Format = "sqlite"
)

var formats = []Format{FormatJSON, FormatCSV, FormatSQLite}

// Formats lists the supported encodings.
func Formats() []Format { return append([]Format(nil), formats...) }

// ParseFormat resolves a format name case-insensitively.
func ParseFormat(raw string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range formats {
		if f == known {
			return f, nil
		}
	}
	return "", domain.InvalidArgumentError{Field: "format", Value: raw, Reason: "unsupported export format"}
}

// Artifact is one stored rendering of an export.
type Artifact struct {
	Format      Format `json:"format"`
	Key         string `json:"key"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size_bytes"`
	Rows        int    `json:"rows"`
	ETag        string `json:"etag,omitempty"`
	URL         string `json:"url,omitempty"`
}

// Request asks for the records of Kind matching Criteria.
type Request struct {
	Kind        domain.EntityType
	Criteria    core.Criteria
	Formats     []Format
	RequestedBy string
}

// Job tracks an export request and its artifacts.
type Job struct {
	ID          string            `json:"id"`
	Kind        domain.EntityType `json:"kind"`
	Criteria    core.Criteria     `json:"criteria"`
	Formats     []Format          `json:"formats"`
	RequestedBy string            `json:"requested_by,omitempty"`
	Status      Status            `json:"status"`
	Error       string            `json:"error,omitempty"`
	Rows        int               `json:"rows"`
	Artifacts   []Artifact        `json:"artifacts,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
}

func (j *Job) copy() Job {
	out := *j
	out.Formats = append([]Format(nil), j.Formats...)
	out.Artifacts = append([]Artifact(nil), j.Artifacts...)
	if j.Criteria.Filters != nil {
		out.Criteria.Filters = make(map[string]string, len(j.Criteria.Filters))
		for k, v := range j.Criteria.Filters {
			out.Criteria.Filters[k] = v
		}
	}
	if j.CompletedAt != nil {
		at := *j.CompletedAt
		out.CompletedAt = &at
	}
	return out
}

// Source supplies the records to export. *core.Service satisfies it.
type Source interface {
	Query(ctx context.Context, kind domain.EntityType, c core.Criteria) ([]domain.Record, error)
}

// Notifier is told about every job that reaches a terminal status.
type Notifier interface {
	ExportFinished(ctx context.Context, job Job) error
}

var (
	// ErrQueueFull is returned by Enqueue when the backlog is at capacity.
	ErrQueueFull = errors.New("export queue full")
	// ErrStopped is returned by Enqueue after Stop.
	ErrStopped = errors.New("export worker stopped")
	// ErrUnknownJob is returned by Wait for an ID that was never enqueued.
	ErrUnknownJob = errors.New("unknown export job")
)
