package domain

import "time"

type JobType string

const (
	JobTypeScan    JobType = "scan"
	JobTypeAnalyze JobType = "analyze"
	JobTypeMove    JobType = "move"
)

type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusAnalyzing JobStatus = "analyzing"
	JobStatusReady     JobStatus = "ready"
	JobStatusAccepted  JobStatus = "accepted"
	JobStatusMoving    JobStatus = "moving"
	JobStatusSkipped   JobStatus = "skipped"
	JobStatusCompleted JobStatus = "completed"
	JobStatusError     JobStatus = "error"
)

// AllStatuses is the closed set of values the store may persist, in
// pipeline order. Counts histograms are zero-filled over this list.
var AllStatuses = []JobStatus{
	JobStatusQueued,
	JobStatusAnalyzing,
	JobStatusReady,
	JobStatusAccepted,
	JobStatusMoving,
	JobStatusSkipped,
	JobStatusCompleted,
	JobStatusError,
}

func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusQueued, JobStatusAnalyzing, JobStatusReady, JobStatusAccepted,
		JobStatusMoving, JobStatusSkipped, JobStatusCompleted, JobStatusError:
		return true
	}
	return false
}

// Terminal reports whether a job in this status will never be picked up
// again without operator intervention.
func (s JobStatus) Terminal() bool {
	return s == JobStatusSkipped || s == JobStatusCompleted || s == JobStatusError
}

// transitions encodes the legal state machine. analyzing→queued is the
// stale-reset path; error→queued is the operator retry path. Reconsideration
// (any non-terminal → queued) is validated separately because it also
// rewrites the job payload.
var transitions = map[JobStatus][]JobStatus{
	JobStatusQueued:    {JobStatusAnalyzing},
	JobStatusAnalyzing: {JobStatusReady, JobStatusError, JobStatusQueued},
	JobStatusReady:     {JobStatusAccepted, JobStatusSkipped, JobStatusQueued},
	JobStatusAccepted:  {JobStatusMoving, JobStatusQueued},
	JobStatusMoving:    {JobStatusCompleted, JobStatusError},
	JobStatusError:     {JobStatusQueued},
}

// CanTransition reports whether from→to is a legal status change.
func CanTransition(from, to JobStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Job is a unit of pipeline work persisted by the store. IDs are assigned
// on insert and never reused. Nullable text columns default to the empty
// string in the schema so rows scan cleanly.
type Job struct {
	ID           int64      `json:"id" db:"id"`
	FolderPath   string     `json:"folder_path" db:"folder_path"`
	Type         JobType    `json:"job_type" db:"job_type"`
	Status       JobStatus  `json:"status" db:"status"`
	MetadataJSON string     `json:"metadata_json,omitempty" db:"metadata_json"`
	UserFeedback string     `json:"user_feedback,omitempty" db:"user_feedback"`
	ArtistHint   string     `json:"artist_hint,omitempty" db:"artist_hint"`
	ResultJSON   string     `json:"result_json,omitempty" db:"result_json"`
	Error        string     `json:"error,omitempty" db:"error"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
	StartedAt    *time.Time `json:"started_at,omitempty" db:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty" db:"completed_at"`
}
