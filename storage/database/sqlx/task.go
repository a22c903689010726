package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/jorgead/ritmatiza/core/task"
)

type taskInfoRow struct {
	task.Task
	CreatorName string `db:"creator_name"`
}

type submissionRow struct {
	ID        string       `db:"id"`
	TaskID    string       `db:"task_id"`
	StudentID string       `db:"student_id"`
	Artifact  string       `db:"artifact"`
	Status    string       `db:"status"`
	GraderID  *string      `db:"grader_id"`
	GradedAt  sql.NullTime `db:"graded_at"`
	CreatedAt time.Time    `db:"created_at"`

	TaskTitle   string `db:"task_title"`
	StudentName string `db:"student_name"`
}

func (r submissionRow) submission() task.Submission {
	sub := task.Submission{
		ID:        r.ID,
		TaskID:    r.TaskID,
		StudentID: r.StudentID,
		Artifact:  r.Artifact,
		Status:    r.Status,
		GraderID:  r.GraderID,
		CreatedAt: r.CreatedAt,
	}
	if r.GradedAt.Valid {
		t := r.GradedAt.Time
		sub.GradedAt = &t
	}
	return sub
}

func (r submissionRow) info() task.SubmissionInfo {
	return task.SubmissionInfo{
		Submission:  r.submission(),
		TaskTitle:   r.TaskTitle,
		StudentName: r.StudentName,
	}
}

const taskInfoQuery = `
	SELECT t.id, t.title, t.body, t.reward, t.creator_id, t.allow_resubmit, t.created_at, u.name AS creator_name
	FROM task t
	JOIN "user" u ON u.id = t.creator_id`

const submissionInfoQuery = `
	SELECT s.id, s.task_id, s.student_id, s.artifact, s.status, s.grader_id, s.graded_at, s.created_at,
		   t.title AS task_title, u.name AS student_name
	FROM submission s
	JOIN task t ON t.id = s.task_id
	JOIN "user" u ON u.id = s.student_id`

type taskRepository struct {
	db *sqlx.DB
}

var _ task.Repository = (*taskRepository)(nil) // interface compliance check

func NewTaskRepository(db *sqlx.DB) *taskRepository {
	return &taskRepository{db: db}
}

func (repo taskRepository) CreateTask(ctx context.Context, t task.Task) (task.Task, error) {
	t.ID = uuid.New().String()
	query := `INSERT INTO task (id, title, body, reward, creator_id, allow_resubmit, created_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := repo.db.ExecContext(ctx, query, t.ID, t.Title, t.Body, t.Reward, t.CreatorID, t.AllowResubmit, t.CreatedAt)
	if err != nil {
		return task.Task{}, errors.Wrap(err, "inserting task")
	}
	return t, nil
}

func (repo taskRepository) GetTaskByID(ctx context.Context, id string) (task.Task, error) {
	var t task.Task
	if err := repo.db.GetContext(ctx, &t, `SELECT * FROM task WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return task.Task{}, task.ErrTaskNotFound
		}
		return task.Task{}, errors.Wrap(err, "finding task by id")
	}
	return t, nil
}

func (repo taskRepository) QueryAllTasks(ctx context.Context) ([]task.TaskInfo, error) {
	var rows []taskInfoRow
	if err := repo.db.SelectContext(ctx, &rows, taskInfoQuery+` ORDER BY t.created_at DESC`); err != nil {
		return nil, errors.Wrap(err, "querying tasks")
	}
	return taskInfosFromRows(rows), nil
}

func (repo taskRepository) QueryLatestTasks(ctx context.Context, limit int) ([]task.TaskInfo, error) {
	var rows []taskInfoRow
	query := taskInfoQuery + ` ORDER BY t.created_at DESC LIMIT $1`
	if err := repo.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, errors.Wrap(err, "querying latest tasks")
	}
	return taskInfosFromRows(rows), nil
}

func (repo taskRepository) QueryTasksByCreator(ctx context.Context, creatorID string, limit int) ([]task.TaskInfo, error) {
	var rows []taskInfoRow
	query := taskInfoQuery + ` WHERE t.creator_id = $1 ORDER BY t.created_at DESC LIMIT $2`
	if err := repo.db.SelectContext(ctx, &rows, query, creatorID, limit); err != nil {
		return nil, errors.Wrap(err, "querying tasks by creator")
	}
	return taskInfosFromRows(rows), nil
}

func taskInfosFromRows(rows []taskInfoRow) []task.TaskInfo {
	infos := make([]task.TaskInfo, 0, len(rows))
	for _, r := range rows {
		infos = append(infos, task.TaskInfo{Task: r.Task, CreatorName: r.CreatorName})
	}
	return infos
}

func (repo taskRepository) CreateSubmission(ctx context.Context, sub task.Submission) (task.Submission, error) {
	sub.ID = uuid.New().String()
	query := `INSERT INTO submission (id, task_id, student_id, artifact, status, created_at)
			  VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := repo.db.ExecContext(ctx, query, sub.ID, sub.TaskID, sub.StudentID, sub.Artifact, sub.Status, sub.CreatedAt)
	if err != nil {
		if pqErr, ok := errors.Cause(err).(*pq.Error); ok && pqErr.Code == uniqueViolation {
			return task.Submission{}, task.ErrSubmissionExists
		}
		return task.Submission{}, errors.Wrap(err, "inserting submission")
	}
	return sub, nil
}

func (repo taskRepository) UpdateSubmission(ctx context.Context, sub task.Submission) (task.Submission, error) {
	query := `UPDATE submission
			  SET artifact = $2, status = $3, grader_id = $4, graded_at = $5, created_at = $6
			  WHERE id = $1`
	var gradedAt sql.NullTime
	if sub.GradedAt != nil {
		gradedAt = sql.NullTime{Time: *sub.GradedAt, Valid: true}
	}
	res, err := repo.db.ExecContext(ctx, query, sub.ID, sub.Artifact, sub.Status, sub.GraderID, gradedAt, sub.CreatedAt)
	if err != nil {
		return task.Submission{}, errors.Wrap(err, "updating submission")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return task.Submission{}, task.ErrSubmissionNotFound
	}
	return sub, nil
}

func (repo taskRepository) GetSubmissionByID(ctx context.Context, id string) (task.Submission, error) {
	var row submissionRow
	query := `SELECT id, task_id, student_id, artifact, status, grader_id, graded_at, created_at
			  FROM submission WHERE id = $1`
	if err := repo.db.GetContext(ctx, &row, query, id); err != nil {
		if err == sql.ErrNoRows {
			return task.Submission{}, task.ErrSubmissionNotFound
		}
		return task.Submission{}, errors.Wrap(err, "finding submission by id")
	}
	return row.submission(), nil
}

func (repo taskRepository) GetLatestSubmission(ctx context.Context, taskID, studentID string) (task.Submission, error) {
	var row submissionRow
	query := `SELECT id, task_id, student_id, artifact, status, grader_id, graded_at, created_at
			  FROM submission WHERE task_id = $1 AND student_id = $2
			  ORDER BY created_at DESC LIMIT 1`
	if err := repo.db.GetContext(ctx, &row, query, taskID, studentID); err != nil {
		if err == sql.ErrNoRows {
			return task.Submission{}, task.ErrSubmissionNotFound
		}
		return task.Submission{}, errors.Wrap(err, "finding latest submission")
	}
	return row.submission(), nil
}

func (repo taskRepository) QuerySubmissionsByTask(ctx context.Context, taskID string) ([]task.SubmissionInfo, error) {
	var rows []submissionRow
	query := submissionInfoQuery + ` WHERE s.task_id = $1 ORDER BY s.created_at DESC`
	if err := repo.db.SelectContext(ctx, &rows, query, taskID); err != nil {
		return nil, errors.Wrap(err, "querying submissions by task")
	}
	return submissionInfosFromRows(rows), nil
}

func (repo taskRepository) QuerySubmissionsByStudent(ctx context.Context, studentID string) ([]task.SubmissionInfo, error) {
	var rows []submissionRow
	query := submissionInfoQuery + ` WHERE s.student_id = $1 ORDER BY s.created_at DESC`
	if err := repo.db.SelectContext(ctx, &rows, query, studentID); err != nil {
		return nil, errors.Wrap(err, "querying submissions by student")
	}
	return submissionInfosFromRows(rows), nil
}

func submissionInfosFromRows(rows []submissionRow) []task.SubmissionInfo {
	infos := make([]task.SubmissionInfo, 0, len(rows))
	for _, r := range rows {
		infos = append(infos, r.info())
	}
	return infos
}

// GradeSubmission runs the status write and the point credit in one
// transaction. The row is locked and its prior status re-checked so that two
// concurrent APPROVE calls credit the student exactly once.
func (repo taskRepository) GradeSubmission(ctx context.Context, id, graderID, status string, reward int) (task.Submission, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return task.Submission{}, errors.Wrap(err, "beginning grading transaction")
	}
	defer func() { _ = tx.Rollback() }()

	var row submissionRow
	query := `SELECT id, task_id, student_id, artifact, status, grader_id, graded_at, created_at
			  FROM submission WHERE id = $1 FOR UPDATE`
	if err := tx.GetContext(ctx, &row, query, id); err != nil {
		if err == sql.ErrNoRows {
			return task.Submission{}, task.ErrSubmissionNotFound
		}
		return task.Submission{}, errors.Wrap(err, "locking submission")
	}

	now := time.Now().UTC()
	update := `UPDATE submission SET status = $2, grader_id = $3, graded_at = $4 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, update, id, status, graderID, now); err != nil {
		return task.Submission{}, errors.Wrap(err, "updating submission status")
	}

	// credit only on a transition into APPROVED; APPROVED -> APPROVED is a no-op
	if status == task.StatusApproved && row.Status != task.StatusApproved {
		credit := `UPDATE "user" SET points = points + $2, updated_at = $3 WHERE id = $1`
		if _, err := tx.ExecContext(ctx, credit, row.StudentID, reward, now); err != nil {
			return task.Submission{}, errors.Wrap(err, "crediting points")
		}
	}

	if err := tx.Commit(); err != nil {
		return task.Submission{}, errors.Wrap(err, "committing grading transaction")
	}

	sub := row.submission()
	sub.Status = status
	sub.GraderID = &graderID
	sub.GradedAt = &now
	return sub, nil
}
