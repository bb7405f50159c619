package models

import "time"

// Run statuses
const (
	RunStatusSuccess = "success"
	RunStatusFailure = "failure"
)

// RunRecord is one archived utility invocation
type RunRecord struct {
	ID         string    `json:"id" db:"id"`
	Tool       string    `json:"tool" db:"tool"`
	Arguments  string    `json:"arguments" db:"arguments"`
	Status     string    `json:"status" db:"status"`
	ExitCode   int       `json:"exit_code" db:"exit_code"`
	RowsIn     int       `json:"rows_in" db:"rows_in"`
	RowsOut    int       `json:"rows_out" db:"rows_out"`
	Message    string    `json:"message" db:"message"`
	StartedAt  time.Time `json:"started_at" db:"started_at"`
	DurationMS int64     `json:"duration_ms" db:"duration_ms"`
}

// DigestSummary is an archived digest row tied to its run
type DigestSummary struct {
	RunID string `json:"run_id" db:"run_id"`
	DigestRow
}

// RunSummary is what a utility reports back to the runner
type RunSummary struct {
	RowsIn  int
	RowsOut int
	Message string
	Digest  []DigestRow
}
