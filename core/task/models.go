package task

import (
	"strings"
	"time"

	"github.com/jorgead/ritmatiza/core"
)

// Submission statuses
const (
	StatusPending  = "PENDING"
	StatusApproved = "APPROVED"
	StatusRejected = "REJECTED"
)

type Task struct {
	ID            string    `json:"id" db:"id"`
	Title         string    `json:"title" db:"title"`
	Body          string    `json:"body" db:"body"`
	Reward        int       `json:"reward" db:"reward"`
	CreatorID     string    `json:"creator_id" db:"creator_id"`
	AllowResubmit bool      `json:"allow_resubmit" db:"allow_resubmit"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"` // UTC
}

// TaskInfo is a Task joined with its creator's display name.
type TaskInfo struct {
	Task
	CreatorName string `json:"creator_name"`
}

// StudentTask is a Task annotated with the requesting student's own latest
// submission, for the student dashboard.
type StudentTask struct {
	TaskInfo
	SubmissionStatus string  `json:"submission_status"`
	SubmissionID     *string `json:"submission_id"`
}

type Submission struct {
	ID        string     `json:"id"`
	TaskID    string     `json:"task_id"`
	StudentID string     `json:"student_id"`
	Artifact  string     `json:"artifact"`
	Status    string     `json:"status"`
	GraderID  *string    `json:"grader_id"`
	GradedAt  *time.Time `json:"graded_at"`
	CreatedAt time.Time  `json:"created_at"` // UTC
}

// SubmissionInfo is a Submission joined with task and student display data.
type SubmissionInfo struct {
	Submission
	TaskTitle   string `json:"task_title"`
	StudentName string `json:"student_name"`
}

// NewTask contains information needed to create a Task. Tasks are immutable
// once created.
type NewTask struct {
	Title         string `json:"title" validate:"required,max=255"`
	Body          string `json:"body" validate:"required"`
	Reward        int    `json:"reward" validate:"required,min=1"`
	AllowResubmit bool   `json:"allow_resubmit"`
}

func (nt *NewTask) Validate() error {
	nt.Title = core.CleanString(nt.Title)
	nt.Body = core.CleanString(nt.Body)
	return core.Validate.Struct(nt)
}

// NewSubmission contains information needed to submit work against a Task.
type NewSubmission struct {
	Artifact string `json:"artifact" validate:"required,max=500"`
}

func (ns *NewSubmission) Validate() error {
	ns.Artifact = core.CleanString(ns.Artifact)
	return core.Validate.Struct(ns)
}

// Grade contains a grading decision for a Submission.
type Grade struct {
	Status string `json:"status" validate:"required,oneof=APPROVED REJECTED"`
}

func (g *Grade) Validate() error {
	g.Status = strings.ToUpper(core.CleanString(g.Status))
	return core.Validate.Struct(g)
}
