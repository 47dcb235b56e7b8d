package model

import "time"

// SyncStatus is the outcome of a synchronization run.
type SyncStatus string

const (
	SyncStatusSuccess SyncStatus = "success"
	SyncStatusPartial SyncStatus = "partial"
	SyncStatusError   SyncStatus = "error"
)

// SyncRun is the audit entry written once per pipeline invocation.
type SyncRun struct {
	ID           string        `json:"id"`
	Source       string        `json:"source"`
	Endpoint     string        `json:"endpoint"`
	Status       SyncStatus    `json:"status"`
	Processed    int           `json:"records_processed"`
	Inserted     int           `json:"records_inserted"`
	Updated      int           `json:"records_updated"`
	Failed       int           `json:"records_failed"`
	ErrorMessage string        `json:"error_message,omitempty"`
	Elapsed      time.Duration `json:"elapsed_ns"`
	StartedAt    time.Time     `json:"started_at"`
	CompletedAt  time.Time     `json:"completed_at"`
}

// Counts accumulates per-record outcomes of a run.
type Counts struct {
	Processed int
	Inserted  int
	Updated   int
	Failed    int
}

// Add sums o into c.
func (c *Counts) Add(o Counts) {
	c.Processed += o.Processed
	c.Inserted += o.Inserted
	c.Updated += o.Updated
	c.Failed += o.Failed
}

// Status derives the run status from the counters and a stage error.
func (c Counts) Status(stageErr error) SyncStatus {
	switch {
	case stageErr != nil:
		return SyncStatusError
	case c.Failed > 0:
		return SyncStatusPartial
	default:
		return SyncStatusSuccess
	}
}

// Apply copies the counters onto run.
func (c Counts) Apply(run *SyncRun) {
	run.Processed = c.Processed
	run.Inserted = c.Inserted
	run.Updated = c.Updated
	run.Failed = c.Failed
}
