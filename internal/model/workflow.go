package model

import "time"

const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
)

// WorkflowRun is one execution of a workflow function for one event. The ID is
// the event ID so an event can never start two runs.
type WorkflowRun struct {
	ID         string `gorm:"primaryKey"`
	Function   string `gorm:"index;not null"`
	Event      string `gorm:"not null"`
	Payload    string
	Status     string `gorm:"index;not null"`
	Attempts   int    `gorm:"not null;default:0"`
	Error      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
	FinishedAt *time.Time
}

// WorkflowStep is the checkpointed JSON output of a step that succeeded
type WorkflowStep struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	RunID     string `gorm:"uniqueIndex:idx_workflow_step_run_name;not null"`
	Name      string `gorm:"uniqueIndex:idx_workflow_step_run_name;not null"`
	Output    string
	CreatedAt time.Time
}
