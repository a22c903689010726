package task

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/jorgead/ritmatiza/core"
	"github.com/jorgead/ritmatiza/core/user"
)

// LatestTasksCount is the size of the platform-wide "latest tasks" view shown
// to visitors and to students without an assigned teacher.
const LatestTasksCount = 3

var (
	// errors
	ErrTaskNotFound       = errors.New("task not found")
	ErrSubmissionNotFound = errors.New("submission not found")
	ErrSubmissionExists   = errors.New("a submission for this task already exists")

	errSubmissionPending  = "a submission for this task is already pending review"
	errSubmissionApproved = "this task was already approved and does not allow resubmission"
	errInvalidGradeStatus = "status must be one of [APPROVED REJECTED]"
)

type (
	Repository interface {
		CreateTask(ctx context.Context, t Task) (Task, error)
		GetTaskByID(ctx context.Context, id string) (Task, error)
		QueryAllTasks(ctx context.Context) ([]TaskInfo, error)
		QueryLatestTasks(ctx context.Context, limit int) ([]TaskInfo, error)
		QueryTasksByCreator(ctx context.Context, creatorID string, limit int) ([]TaskInfo, error)

		// CreateSubmission returns ErrSubmissionExists when (task, student)
		// already has a submission; concurrent first submissions yield exactly
		// one row.
		CreateSubmission(ctx context.Context, sub Submission) (Submission, error)
		UpdateSubmission(ctx context.Context, sub Submission) (Submission, error)
		GetSubmissionByID(ctx context.Context, id string) (Submission, error)
		// GetLatestSubmission returns the newest submission for (task, student),
		// or ErrSubmissionNotFound.
		GetLatestSubmission(ctx context.Context, taskID, studentID string) (Submission, error)
		QuerySubmissionsByTask(ctx context.Context, taskID string) ([]SubmissionInfo, error)
		QuerySubmissionsByStudent(ctx context.Context, studentID string) ([]SubmissionInfo, error)
		// GradeSubmission applies the grading decision as one atomic unit: the
		// status write and, on a transition into APPROVED, a single point credit
		// of `reward` to the submission's student. A submission already APPROVED
		// is never re-credited, no matter how many concurrent graders race.
		GradeSubmission(ctx context.Context, id, graderID, status string, reward int) (Submission, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Create creates a new task; teacher-or-admin.
func (svc *Service) Create(ctx context.Context, principal user.User, nt NewTask) (Task, error) {
	if !user.Allows(principal.Role, user.CapTeacherOrAdmin) {
		return Task{}, core.ErrPermissionDenied
	}

	t := Task{
		Title:         nt.Title,
		Body:          nt.Body,
		Reward:        nt.Reward,
		CreatorID:     principal.ID,
		AllowResubmit: nt.AllowResubmit,
		CreatedAt:     time.Now().UTC(),
	}
	return svc.repo.CreateTask(ctx, t)
}

func (svc *Service) GetByID(ctx context.Context, id string) (Task, error) {
	return svc.repo.GetTaskByID(ctx, id)
}

// Latest returns the platform-wide latest tasks; no authentication required.
func (svc *Service) Latest(ctx context.Context) ([]TaskInfo, error) {
	return svc.repo.QueryLatestTasks(ctx, LatestTasksCount)
}

func (svc *Service) ListAll(ctx context.Context) ([]TaskInfo, error) {
	return svc.repo.QueryAllTasks(ctx)
}

// ForStudent returns the student dashboard task list: the assigned teacher's
// latest tasks, or the platform-wide latest when no teacher is assigned. Each
// task is annotated with the student's own newest submission.
func (svc *Service) ForStudent(ctx context.Context, student user.User) ([]StudentTask, error) {
	var (
		tasks []TaskInfo
		err   error
	)
	if student.TeacherID != nil {
		tasks, err = svc.repo.QueryTasksByCreator(ctx, *student.TeacherID, LatestTasksCount)
	} else {
		tasks, err = svc.repo.QueryLatestTasks(ctx, LatestTasksCount)
	}
	if err != nil {
		return nil, err
	}

	sts := make([]StudentTask, 0, len(tasks))
	for _, t := range tasks {
		st := StudentTask{TaskInfo: t, SubmissionStatus: StatusPending}
		sub, err := svc.repo.GetLatestSubmission(ctx, t.ID, student.ID)
		if err == nil {
			st.SubmissionStatus = sub.Status
			subID := sub.ID
			st.SubmissionID = &subID
		} else if err != ErrSubmissionNotFound {
			return nil, errors.Wrap(err, "finding latest submission")
		}
		sts = append(sts, st)
	}
	return sts, nil
}

// Submit hands in work for a task. A student keeps exactly one live submission
// per task: re-submission is rejected while one is PENDING, or after approval
// when the task disallows it; otherwise the prior submission is overwritten
// back to PENDING.
func (svc *Service) Submit(ctx context.Context, principal user.User, taskID string, ns NewSubmission) (Submission, error) {
	t, err := svc.repo.GetTaskByID(ctx, taskID)
	if err != nil {
		return Submission{}, err
	}

	prev, err := svc.repo.GetLatestSubmission(ctx, t.ID, principal.ID)
	switch err {
	case nil:
		if prev.Status == StatusPending {
			return Submission{}, core.NewConflictError("task_id", errSubmissionPending)
		}
		if prev.Status == StatusApproved && !t.AllowResubmit {
			return Submission{}, core.NewConflictError("task_id", errSubmissionApproved)
		}
		prev.Artifact = ns.Artifact
		prev.Status = StatusPending
		prev.GraderID = nil
		prev.GradedAt = nil
		prev.CreatedAt = time.Now().UTC()
		return svc.repo.UpdateSubmission(ctx, prev)
	case ErrSubmissionNotFound:
		sub := Submission{
			TaskID:    t.ID,
			StudentID: principal.ID,
			Artifact:  ns.Artifact,
			Status:    StatusPending,
			CreatedAt: time.Now().UTC(),
		}
		sub, err = svc.repo.CreateSubmission(ctx, sub)
		if err == ErrSubmissionExists { // lost the race to another first submission
			return Submission{}, core.NewConflictError("task_id", errSubmissionPending)
		}
		return sub, err
	default:
		return Submission{}, errors.Wrap(err, "finding latest submission")
	}
}

// Grade records a grading decision; teacher-or-admin. Approval credits the
// task's reward to the student exactly once, atomically with the status write.
func (svc *Service) Grade(ctx context.Context, principal user.User, submissionID string, g Grade) (Submission, error) {
	if !user.Allows(principal.Role, user.CapTeacherOrAdmin) {
		return Submission{}, core.ErrPermissionDenied
	}
	// not every caller goes through Grade.Validate
	if g.Status != StatusApproved && g.Status != StatusRejected {
		return Submission{}, core.NewValidationError(nil, core.FieldError{Field: "status", Error: errInvalidGradeStatus})
	}

	sub, err := svc.repo.GetSubmissionByID(ctx, submissionID)
	if err != nil {
		return Submission{}, err
	}
	t, err := svc.repo.GetTaskByID(ctx, sub.TaskID)
	if err != nil {
		return Submission{}, errors.Wrap(err, "finding submission's task")
	}

	return svc.repo.GradeSubmission(ctx, sub.ID, principal.ID, g.Status, t.Reward)
}

// Submissions returns all submissions for a task; teacher-or-admin.
func (svc *Service) Submissions(ctx context.Context, principal user.User, taskID string) ([]SubmissionInfo, error) {
	if !user.Allows(principal.Role, user.CapTeacherOrAdmin) {
		return nil, core.ErrPermissionDenied
	}
	if _, err := svc.repo.GetTaskByID(ctx, taskID); err != nil {
		return nil, err
	}
	return svc.repo.QuerySubmissionsByTask(ctx, taskID)
}

// MySubmissions returns the principal's own submissions joined with task titles.
func (svc *Service) MySubmissions(ctx context.Context, principal user.User) ([]SubmissionInfo, error) {
	return svc.repo.QuerySubmissionsByStudent(ctx, principal.ID)
}
