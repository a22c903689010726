package task_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jorgead/ritmatiza/core"
	"github.com/jorgead/ritmatiza/core/task"
	"github.com/jorgead/ritmatiza/core/user"
	dummydb "github.com/jorgead/ritmatiza/storage/database/dummy"
)

func setup(t *testing.T) (*task.Service, user.Repository) {
	t.Helper()
	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open() failed: %v", err)
	}
	return task.NewService(dummydb.NewTaskRepository(db)), dummydb.NewUserRepository(db)
}

func createUser(t *testing.T, repo user.Repository, name, email, role string, teacherID *string) user.User {
	t.Helper()
	now := time.Now().UTC()
	usr, err := repo.CreateUser(context.Background(), user.User{
		Name:      name,
		Email:     email,
		Role:      role,
		TeacherID: teacherID,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	return usr
}

func createTask(t *testing.T, svc *task.Service, creator user.User, title string, reward int, allowResubmit bool) task.Task {
	t.Helper()
	tsk, err := svc.Create(context.Background(), creator, task.NewTask{
		Title: title, Body: "do it", Reward: reward, AllowResubmit: allowResubmit,
	})
	if err != nil {
		t.Fatalf("createTask() failed: %v", err)
	}
	return tsk
}

func TestService_Create(t *testing.T) {
	svc, usrRepo := setup(t)
	ctx := context.Background()

	teacher := createUser(t, usrRepo, "Teacher", "teacher@test.cd", user.RoleTeacher, nil)
	admin := createUser(t, usrRepo, "Admin", "admin@test.cd", user.RoleAdmin, nil)
	student := createUser(t, usrRepo, "Kid", "kid@test.cd", user.RoleStudent, &teacher.ID)

	_, err := svc.Create(ctx, student, task.NewTask{Title: "Nope", Body: "b", Reward: 5})
	if err != core.ErrPermissionDenied {
		t.Errorf("Create() as student error = %v, want ErrPermissionDenied", err)
	}

	for _, principal := range []user.User{teacher, admin} {
		tsk, err := svc.Create(ctx, principal, task.NewTask{Title: "Read ch.1", Body: "b", Reward: 5})
		if err != nil {
			t.Fatalf("Create() as %s failed: %v", principal.Role, err)
		}
		if tsk.CreatorID != principal.ID {
			t.Errorf("Create() creatorID = %q, want %q", tsk.CreatorID, principal.ID)
		}
	}

	// round trip
	tsk := createTask(t, svc, teacher, "Round trip", 10, true)
	got, err := svc.GetByID(ctx, tsk.ID)
	if err != nil {
		t.Fatalf("GetByID() failed: %v", err)
	}
	if got.Title != "Round trip" || got.Reward != 10 || !got.AllowResubmit {
		t.Errorf("GetByID() = %+v, want created task back", got)
	}
}

func TestService_Submit(t *testing.T) {
	svc, usrRepo := setup(t)
	ctx := context.Background()

	teacher := createUser(t, usrRepo, "Teacher", "teacher@test.cd", user.RoleTeacher, nil)
	student := createUser(t, usrRepo, "Kid", "kid@test.cd", user.RoleStudent, &teacher.ID)
	strict := createTask(t, svc, teacher, "No resubmit", 5, false)
	lenient := createTask(t, svc, teacher, "Resubmit ok", 5, true)

	if _, err := svc.Submit(ctx, student, "nope", task.NewSubmission{Artifact: "a.pdf"}); err != task.ErrTaskNotFound {
		t.Errorf("Submit() unknown task error = %v, want ErrTaskNotFound", err)
	}

	sub, err := svc.Submit(ctx, student, strict.ID, task.NewSubmission{Artifact: "a.pdf"})
	if err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}
	if sub.Status != task.StatusPending {
		t.Errorf("Submit() status = %q, want PENDING", sub.Status)
	}

	// a second submission while one is pending conflicts
	if _, err = svc.Submit(ctx, student, strict.ID, task.NewSubmission{Artifact: "b.pdf"}); err == nil {
		t.Error("Submit() while pending should conflict")
	} else if _, ok := err.(*core.ConflictError); !ok {
		t.Errorf("Submit() while pending error = %v, want ConflictError", err)
	}

	// approval locks a no-resubmit task
	if _, err = svc.Grade(ctx, teacher, sub.ID, task.Grade{Status: task.StatusApproved}); err != nil {
		t.Fatalf("Grade() failed: %v", err)
	}
	if _, err = svc.Submit(ctx, student, strict.ID, task.NewSubmission{Artifact: "b.pdf"}); err == nil {
		t.Error("Submit() after approval should conflict")
	} else if _, ok := err.(*core.ConflictError); !ok {
		t.Errorf("Submit() after approval error = %v, want ConflictError", err)
	}

	// rejection reopens the task
	sub2, err := svc.Submit(ctx, student, lenient.ID, task.NewSubmission{Artifact: "a.pdf"})
	if err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}
	if _, err = svc.Grade(ctx, teacher, sub2.ID, task.Grade{Status: task.StatusRejected}); err != nil {
		t.Fatalf("Grade() failed: %v", err)
	}
	redo, err := svc.Submit(ctx, student, lenient.ID, task.NewSubmission{Artifact: "b.pdf"})
	if err != nil {
		t.Fatalf("Submit() after rejection failed: %v", err)
	}
	if redo.ID != sub2.ID {
		t.Errorf("Submit() after rejection created a new submission; want overwrite of %q", sub2.ID)
	}
	if redo.Status != task.StatusPending || redo.GraderID != nil || redo.GradedAt != nil {
		t.Errorf("Submit() after rejection = %+v, want reset to PENDING", redo)
	}

	// approval on a resubmittable task also reopens it
	if _, err = svc.Grade(ctx, teacher, redo.ID, task.Grade{Status: task.StatusApproved}); err != nil {
		t.Fatalf("Grade() failed: %v", err)
	}
	if _, err = svc.Submit(ctx, student, lenient.ID, task.NewSubmission{Artifact: "c.pdf"}); err != nil {
		t.Errorf("Submit() after approval with allow_resubmit failed: %v", err)
	}
}

func TestService_Submit_concurrentYieldsOneRow(t *testing.T) {
	svc, usrRepo := setup(t)
	ctx := context.Background()

	teacher := createUser(t, usrRepo, "Teacher", "teacher@test.cd", user.RoleTeacher, nil)
	student := createUser(t, usrRepo, "Kid", "kid@test.cd", user.RoleStudent, &teacher.ID)
	tsk := createTask(t, svc, teacher, "Raced", 5, false)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var okCount int
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Submit(ctx, student, tsk.ID, task.NewSubmission{Artifact: "a.pdf"})
			if err == nil {
				mu.Lock()
				okCount++
				mu.Unlock()
			} else if _, ok := err.(*core.ConflictError); !ok {
				t.Errorf("Submit() error = %v, want ConflictError", err)
			}
		}()
	}
	wg.Wait()

	if okCount != 1 {
		t.Errorf("concurrent Submit() succeeded %d times, want 1", okCount)
	}
	mine, err := svc.MySubmissions(ctx, student)
	if err != nil {
		t.Fatalf("MySubmissions() failed: %v", err)
	}
	if len(mine) != 1 {
		t.Errorf("MySubmissions() returned %d, want 1", len(mine))
	}
}

func TestService_Grade(t *testing.T) {
	svc, usrRepo := setup(t)
	ctx := context.Background()

	teacher := createUser(t, usrRepo, "Teacher", "teacher@test.cd", user.RoleTeacher, nil)
	student := createUser(t, usrRepo, "Kid", "kid@test.cd", user.RoleStudent, &teacher.ID)
	tsk := createTask(t, svc, teacher, "Graded", 25, false)

	sub, err := svc.Submit(ctx, student, tsk.ID, task.NewSubmission{Artifact: "a.pdf"})
	if err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}

	if _, err = svc.Grade(ctx, student, sub.ID, task.Grade{Status: task.StatusApproved}); err != core.ErrPermissionDenied {
		t.Errorf("Grade() as student error = %v, want ErrPermissionDenied", err)
	}
	if _, err = svc.Grade(ctx, teacher, "nope", task.Grade{Status: task.StatusApproved}); err != task.ErrSubmissionNotFound {
		t.Errorf("Grade() unknown submission error = %v, want ErrSubmissionNotFound", err)
	}
	// only APPROVED/REJECTED may be persisted, whoever the caller is
	if _, err = svc.Grade(ctx, teacher, sub.ID, task.Grade{Status: "MAYBE"}); err == nil {
		t.Error("Grade() with unknown status should fail")
	} else if _, ok := err.(*core.ValidationError); !ok {
		t.Errorf("Grade() with unknown status error = %v, want ValidationError", err)
	}

	points := func() int {
		usr, err := usrRepo.GetUserByID(ctx, student.ID)
		if err != nil {
			t.Fatalf("GetUserByID() failed: %v", err)
		}
		return usr.Points
	}

	graded, err := svc.Grade(ctx, teacher, sub.ID, task.Grade{Status: task.StatusApproved})
	if err != nil {
		t.Fatalf("Grade() failed: %v", err)
	}
	if graded.Status != task.StatusApproved || graded.GraderID == nil || *graded.GraderID != teacher.ID || graded.GradedAt == nil {
		t.Errorf("Grade() = %+v, want APPROVED by %q", graded, teacher.ID)
	}
	if got := points(); got != 25 {
		t.Errorf("points after approval = %d, want 25", got)
	}

	// re-approving never credits twice
	if _, err = svc.Grade(ctx, teacher, sub.ID, task.Grade{Status: task.StatusApproved}); err != nil {
		t.Fatalf("Grade() failed: %v", err)
	}
	if got := points(); got != 25 {
		t.Errorf("points after re-approval = %d, want 25", got)
	}

	// rejection does not credit; a later approval does, once
	if _, err = svc.Grade(ctx, teacher, sub.ID, task.Grade{Status: task.StatusRejected}); err != nil {
		t.Fatalf("Grade() failed: %v", err)
	}
	if got := points(); got != 25 {
		t.Errorf("points after rejection = %d, want 25", got)
	}
	if _, err = svc.Grade(ctx, teacher, sub.ID, task.Grade{Status: task.StatusApproved}); err != nil {
		t.Fatalf("Grade() failed: %v", err)
	}
	if got := points(); got != 50 {
		t.Errorf("points after re-approval of rejected = %d, want 50", got)
	}
}

func TestService_Grade_concurrentApprovalsCreditOnce(t *testing.T) {
	svc, usrRepo := setup(t)
	ctx := context.Background()

	teacher := createUser(t, usrRepo, "Teacher", "teacher@test.cd", user.RoleTeacher, nil)
	student := createUser(t, usrRepo, "Kid", "kid@test.cd", user.RoleStudent, &teacher.ID)
	tsk := createTask(t, svc, teacher, "Raced", 10, false)

	sub, err := svc.Submit(ctx, student, tsk.ID, task.NewSubmission{Artifact: "a.pdf"})
	if err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Grade(ctx, teacher, sub.ID, task.Grade{Status: task.StatusApproved}); err != nil {
				t.Errorf("Grade() failed: %v", err)
			}
		}()
	}
	wg.Wait()

	usr, err := usrRepo.GetUserByID(ctx, student.ID)
	if err != nil {
		t.Fatalf("GetUserByID() failed: %v", err)
	}
	if usr.Points != 10 {
		t.Errorf("points after concurrent approvals = %d, want 10", usr.Points)
	}
}

func TestService_ForStudent(t *testing.T) {
	svc, usrRepo := setup(t)
	ctx := context.Background()

	teacher := createUser(t, usrRepo, "Teacher", "teacher@test.cd", user.RoleTeacher, nil)
	other := createUser(t, usrRepo, "Other", "other@test.cd", user.RoleTeacher, nil)
	kid := createUser(t, usrRepo, "Kid", "kid@test.cd", user.RoleStudent, &teacher.ID)
	stray := createUser(t, usrRepo, "Stray", "stray@test.cd", user.RoleStudent, nil)

	t1 := createTask(t, svc, teacher, "T1", 5, false)
	time.Sleep(time.Millisecond)
	createTask(t, svc, other, "O1", 5, false)
	time.Sleep(time.Millisecond)
	t2 := createTask(t, svc, teacher, "T2", 5, false)

	sub, err := svc.Submit(ctx, kid, t1.ID, task.NewSubmission{Artifact: "a.pdf"})
	if err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}
	if _, err = svc.Grade(ctx, teacher, sub.ID, task.Grade{Status: task.StatusApproved}); err != nil {
		t.Fatalf("Grade() failed: %v", err)
	}

	// supervised student: only the assigned teacher's tasks, newest first
	got, err := svc.ForStudent(ctx, kid)
	if err != nil {
		t.Fatalf("ForStudent() failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ForStudent() returned %d tasks, want 2", len(got))
	}
	if got[0].ID != t2.ID || got[1].ID != t1.ID {
		t.Errorf("ForStudent() order = [%s, %s], want [%s, %s]", got[0].Title, got[1].Title, t2.Title, t1.Title)
	}
	if got[0].SubmissionStatus != task.StatusPending || got[0].SubmissionID != nil {
		t.Errorf("ForStudent() unsubmitted task annotation = %+v", got[0])
	}
	if got[1].SubmissionStatus != task.StatusApproved || got[1].SubmissionID == nil {
		t.Errorf("ForStudent() submitted task annotation = %+v", got[1])
	}

	// unsupervised student: the platform-wide latest
	got, err = svc.ForStudent(ctx, stray)
	if err != nil {
		t.Fatalf("ForStudent() failed: %v", err)
	}
	if len(got) != 3 {
		t.Errorf("ForStudent() without supervisor returned %d tasks, want 3", len(got))
	}
}

func TestService_Latest(t *testing.T) {
	svc, usrRepo := setup(t)
	ctx := context.Background()

	teacher := createUser(t, usrRepo, "Teacher", "teacher@test.cd", user.RoleTeacher, nil)
	for i, title := range []string{"T1", "T2", "T3", "T4"} {
		createTask(t, svc, teacher, title, i+1, false)
		time.Sleep(time.Millisecond)
	}

	got, err := svc.Latest(ctx)
	if err != nil {
		t.Fatalf("Latest() failed: %v", err)
	}
	if len(got) != task.LatestTasksCount {
		t.Fatalf("Latest() returned %d tasks, want %d", len(got), task.LatestTasksCount)
	}
	if got[0].Title != "T4" || got[2].Title != "T2" {
		t.Errorf("Latest() order = [%s %s %s], want newest first", got[0].Title, got[1].Title, got[2].Title)
	}
}

func TestService_Submissions(t *testing.T) {
	svc, usrRepo := setup(t)
	ctx := context.Background()

	teacher := createUser(t, usrRepo, "Teacher", "teacher@test.cd", user.RoleTeacher, nil)
	kid1 := createUser(t, usrRepo, "Kid1", "kid1@test.cd", user.RoleStudent, &teacher.ID)
	kid2 := createUser(t, usrRepo, "Kid2", "kid2@test.cd", user.RoleStudent, &teacher.ID)
	tsk := createTask(t, svc, teacher, "T", 5, false)

	if _, err := svc.Submit(ctx, kid1, tsk.ID, task.NewSubmission{Artifact: "a.pdf"}); err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}
	if _, err := svc.Submit(ctx, kid2, tsk.ID, task.NewSubmission{Artifact: "b.pdf"}); err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}

	if _, err := svc.Submissions(ctx, kid1, tsk.ID); err != core.ErrPermissionDenied {
		t.Errorf("Submissions() as student error = %v, want ErrPermissionDenied", err)
	}
	if _, err := svc.Submissions(ctx, teacher, "nope"); err != task.ErrTaskNotFound {
		t.Errorf("Submissions() unknown task error = %v, want ErrTaskNotFound", err)
	}

	subs, err := svc.Submissions(ctx, teacher, tsk.ID)
	if err != nil {
		t.Fatalf("Submissions() failed: %v", err)
	}
	if len(subs) != 2 {
		t.Errorf("Submissions() returned %d, want 2", len(subs))
	}
	for _, sub := range subs {
		if sub.TaskTitle != "T" || sub.StudentName == "" {
			t.Errorf("Submissions() info = %+v, want joined task and student data", sub)
		}
	}

	mine, err := svc.MySubmissions(ctx, kid1)
	if err != nil {
		t.Fatalf("MySubmissions() failed: %v", err)
	}
	if len(mine) != 1 || mine[0].StudentID != kid1.ID {
		t.Errorf("MySubmissions() = %+v, want kid1's single submission", mine)
	}
}
