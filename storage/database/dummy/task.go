package dummydb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jorgead/ritmatiza/core/task"
)

type taskRepository struct {
	db    *taskTable
	users *userTable
}

var _ task.Repository = (*taskRepository)(nil) // interface compliance check

func NewTaskRepository(db *DB) *taskRepository {
	return &taskRepository{db: db.task, users: db.user}
}

func (repo *taskRepository) userName(id string) string {
	repo.users.RLock()
	defer repo.users.RUnlock()

	if usr, ok := repo.users.table[id]; ok {
		return usr.Name
	}
	return ""
}

func (repo *taskRepository) queryTasks() []task.Task {
	tasks := make([]task.Task, 0, len(repo.db.tasks))
	for _, t := range repo.db.tasks {
		tasks = append(tasks, *t)
	}
	// newest first
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].CreatedAt.After(tasks[j].CreatedAt) })
	return tasks
}

func (repo *taskRepository) infos(tasks []task.Task) []task.TaskInfo {
	infos := make([]task.TaskInfo, 0, len(tasks))
	for _, t := range tasks {
		infos = append(infos, task.TaskInfo{Task: t, CreatorName: repo.userName(t.CreatorID)})
	}
	return infos
}

func (repo *taskRepository) CreateTask(ctx context.Context, t task.Task) (task.Task, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	t.ID = uuid.New().String()
	repo.db.tasks[t.ID] = &t
	return t, nil
}

func (repo *taskRepository) GetTaskByID(ctx context.Context, id string) (task.Task, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if t, ok := repo.db.tasks[id]; ok {
		return *t, nil
	}
	return task.Task{}, task.ErrTaskNotFound
}

func (repo *taskRepository) QueryAllTasks(ctx context.Context) ([]task.TaskInfo, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return repo.infos(repo.queryTasks()), nil
}

func (repo *taskRepository) QueryLatestTasks(ctx context.Context, limit int) ([]task.TaskInfo, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	tasks := repo.queryTasks()
	if len(tasks) > limit {
		tasks = tasks[:limit]
	}
	return repo.infos(tasks), nil
}

func (repo *taskRepository) QueryTasksByCreator(ctx context.Context, creatorID string, limit int) ([]task.TaskInfo, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var tasks []task.Task
	for _, t := range repo.queryTasks() {
		if t.CreatorID == creatorID {
			tasks = append(tasks, t)
		}
	}
	if len(tasks) > limit {
		tasks = tasks[:limit]
	}
	return repo.infos(tasks), nil
}

// CreateSubmission mirrors the production constraint on (task_id, student_id):
// of two concurrent first submissions, exactly one insert succeeds.
func (repo *taskRepository) CreateSubmission(ctx context.Context, sub task.Submission) (task.Submission, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, prev := range repo.db.submissions {
		if prev.TaskID == sub.TaskID && prev.StudentID == sub.StudentID {
			return task.Submission{}, task.ErrSubmissionExists
		}
	}

	sub.ID = uuid.New().String()
	repo.db.submissions[sub.ID] = &sub
	return sub, nil
}

func (repo *taskRepository) UpdateSubmission(ctx context.Context, sub task.Submission) (task.Submission, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.submissions[sub.ID]; !ok {
		return task.Submission{}, task.ErrSubmissionNotFound
	}
	repo.db.submissions[sub.ID] = &sub
	return sub, nil
}

func (repo *taskRepository) GetSubmissionByID(ctx context.Context, id string) (task.Submission, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if sub, ok := repo.db.submissions[id]; ok {
		return *sub, nil
	}
	return task.Submission{}, task.ErrSubmissionNotFound
}

func (repo *taskRepository) GetLatestSubmission(ctx context.Context, taskID, studentID string) (task.Submission, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var latest *task.Submission
	for _, sub := range repo.db.submissions {
		if sub.TaskID != taskID || sub.StudentID != studentID {
			continue
		}
		if latest == nil || sub.CreatedAt.After(latest.CreatedAt) {
			latest = sub
		}
	}
	if latest == nil {
		return task.Submission{}, task.ErrSubmissionNotFound
	}
	return *latest, nil
}

func (repo *taskRepository) querySubmissions(match func(task.Submission) bool) []task.SubmissionInfo {
	var infos []task.SubmissionInfo
	for _, sub := range repo.db.submissions {
		if !match(*sub) {
			continue
		}
		info := task.SubmissionInfo{
			Submission:  *sub,
			StudentName: repo.userName(sub.StudentID),
		}
		if t, ok := repo.db.tasks[sub.TaskID]; ok {
			info.TaskTitle = t.Title
		}
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].CreatedAt.After(infos[j].CreatedAt) })
	return infos
}

func (repo *taskRepository) QuerySubmissionsByTask(ctx context.Context, taskID string) ([]task.SubmissionInfo, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return repo.querySubmissions(func(sub task.Submission) bool { return sub.TaskID == taskID }), nil
}

func (repo *taskRepository) QuerySubmissionsByStudent(ctx context.Context, studentID string) ([]task.SubmissionInfo, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return repo.querySubmissions(func(sub task.Submission) bool { return sub.StudentID == studentID }), nil
}

// GradeSubmission mirrors the production repo's transactional grading: the
// status check and the point credit happen under one lock, so concurrent
// APPROVE calls credit exactly once.
func (repo *taskRepository) GradeSubmission(ctx context.Context, id, graderID, status string, reward int) (task.Submission, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	sub, ok := repo.db.submissions[id]
	if !ok {
		return task.Submission{}, task.ErrSubmissionNotFound
	}

	creditable := status == task.StatusApproved && sub.Status != task.StatusApproved

	now := time.Now().UTC()
	sub.Status = status
	sub.GraderID = &graderID
	sub.GradedAt = &now

	if creditable {
		repo.users.Lock()
		if student, ok := repo.users.table[sub.StudentID]; ok {
			student.Points += reward
		}
		repo.users.Unlock()
	}
	return *sub, nil
}
