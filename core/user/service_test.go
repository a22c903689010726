package user_test

import (
	"context"
	"testing"
	"time"

	"github.com/jorgead/ritmatiza/core"
	"github.com/jorgead/ritmatiza/core/user"
	dummydb "github.com/jorgead/ritmatiza/storage/database/dummy"
)

func setup(t *testing.T) (*user.Service, user.Repository) {
	t.Helper()
	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open() failed: %v", err)
	}
	repo := dummydb.NewUserRepository(db)
	return user.NewService(repo), repo
}

func createUser(t *testing.T, repo user.Repository, name, email, pwd, role string, teacherID *string) user.User {
	t.Helper()
	now := time.Now().UTC()
	usr := user.User{
		Name:      name,
		Email:     email,
		Role:      role,
		TeacherID: teacherID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("createUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	return usr
}

func TestService_Register(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	usr, err := svc.Register(ctx, user.NewUser{Name: "Jane Doe", Email: "jane@test.cd", Password: "secret1"})
	if err != nil {
		t.Fatalf("Register() failed: %v", err)
	}
	if usr.Role != user.RoleStudent {
		t.Errorf("Register() role = %q, want %q", usr.Role, user.RoleStudent)
	}
	if usr.Points != 0 {
		t.Errorf("Register() points = %d, want 0", usr.Points)
	}
	if usr.TeacherID != nil {
		t.Errorf("Register() teacherID = %v, want nil", *usr.TeacherID)
	}
	if err := usr.CheckPassword("secret1"); err != nil {
		t.Error("Register() password not set")
	}

	// duplicate email conflicts
	_, err = svc.Register(ctx, user.NewUser{Name: "Other", Email: "jane@test.cd", Password: "secret2"})
	if _, ok := err.(*core.ConflictError); !ok {
		t.Errorf("Register() dup email error = %v, want ConflictError", err)
	}
}

func TestService_Authenticate(t *testing.T) {
	svc, repo := setup(t)
	ctx := context.Background()

	usr := createUser(t, repo, "Jane", "jane@test.cd", "secret1", user.RoleStudent, nil)

	got, err := svc.Authenticate(ctx, "Jane@Test.CD", "secret1")
	if err != nil {
		t.Fatalf("Authenticate() failed: %v", err)
	}
	if got.ID != usr.ID {
		t.Errorf("Authenticate() id = %q, want %q", got.ID, usr.ID)
	}

	if _, err = svc.Authenticate(ctx, "jane@test.cd", "nope"); err == nil {
		t.Error("Authenticate() wrong password should fail")
	} else if _, ok := err.(*core.ValidationError); !ok {
		t.Errorf("Authenticate() wrong password error = %v, want ValidationError", err)
	}

	if _, err = svc.Authenticate(ctx, "ghost@test.cd", "secret1"); err == nil {
		t.Error("Authenticate() unknown email should fail")
	} else if _, ok := err.(*core.ValidationError); !ok {
		t.Errorf("Authenticate() unknown email error = %v, want ValidationError", err)
	}
}

func TestService_Create(t *testing.T) {
	svc, repo := setup(t)
	ctx := context.Background()

	admin := createUser(t, repo, "Admin", "admin@test.cd", "pwd", user.RoleAdmin, nil)
	teacher := createUser(t, repo, "Teacher", "teacher@test.cd", "pwd", user.RoleTeacher, nil)
	student := createUser(t, repo, "Student", "student@test.cd", "pwd", user.RoleStudent, &teacher.ID)

	// only admins
	for _, principal := range []user.User{teacher, student} {
		_, err := svc.Create(ctx, principal, user.AdminNewUser{
			Name: "X", Email: "x@test.cd", Password: "secret1", Role: user.RoleTeacher,
		})
		if err != core.ErrPermissionDenied {
			t.Errorf("Create() as %s error = %v, want ErrPermissionDenied", principal.Role, err)
		}
	}

	// a student needs a supervising teacher
	_, err := svc.Create(ctx, admin, user.AdminNewUser{
		Name: "Kid", Email: "kid@test.cd", Password: "secret1", Role: user.RoleStudent,
	})
	if _, ok := err.(*core.ValidationError); !ok {
		t.Errorf("Create() student without teacher error = %v, want ValidationError", err)
	}

	// the supervisor must be a teacher or admin
	_, err = svc.Create(ctx, admin, user.AdminNewUser{
		Name: "Kid", Email: "kid@test.cd", Password: "secret1", Role: user.RoleStudent, TeacherID: &student.ID,
	})
	if _, ok := err.(*core.ValidationError); !ok {
		t.Errorf("Create() student supervised by student error = %v, want ValidationError", err)
	}

	kid, err := svc.Create(ctx, admin, user.AdminNewUser{
		Name: "Kid", Email: "kid@test.cd", Password: "secret1", Role: user.RoleStudent, TeacherID: &teacher.ID,
	})
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	if kid.TeacherID == nil || *kid.TeacherID != teacher.ID {
		t.Errorf("Create() teacherID = %v, want %q", kid.TeacherID, teacher.ID)
	}

	// non-students never carry a supervisor
	prof, err := svc.Create(ctx, admin, user.AdminNewUser{
		Name: "Prof", Email: "prof@test.cd", Password: "secret1", Role: user.RoleTeacher, TeacherID: &teacher.ID,
	})
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	if prof.TeacherID != nil {
		t.Errorf("Create() teacher teacherID = %v, want nil", *prof.TeacherID)
	}
}

func TestService_UpdateProfile(t *testing.T) {
	svc, repo := setup(t)
	ctx := context.Background()

	usr := createUser(t, repo, "Jane", "jane@test.cd", "secret1", user.RoleStudent, nil)

	// nothing to update
	if _, err := svc.UpdateProfile(ctx, usr, user.UpdateProfile{}); err == nil {
		t.Error("UpdateProfile() empty update should fail")
	}

	// email change re-verifies the current email
	_, err := svc.UpdateProfile(ctx, usr, user.UpdateProfile{Email: "new@test.cd", CurrentEmail: "wrong@test.cd"})
	if err != core.ErrPermissionDenied {
		t.Errorf("UpdateProfile() wrong current email error = %v, want ErrPermissionDenied", err)
	}

	// password change re-verifies the current password
	_, err = svc.UpdateProfile(ctx, usr, user.UpdateProfile{Password: "secret2", CurrentPassword: "nope"})
	if err != core.ErrPermissionDenied {
		t.Errorf("UpdateProfile() wrong current password error = %v, want ErrPermissionDenied", err)
	}

	updated, err := svc.UpdateProfile(ctx, usr, user.UpdateProfile{
		Email: "new@test.cd", CurrentEmail: "jane@test.cd",
		Password: "secret2", CurrentPassword: "secret1",
	})
	if err != nil {
		t.Fatalf("UpdateProfile() failed: %v", err)
	}
	if updated.Email != "new@test.cd" {
		t.Errorf("UpdateProfile() email = %q, want new@test.cd", updated.Email)
	}
	if err := updated.CheckPassword("secret2"); err != nil {
		t.Error("UpdateProfile() password not updated")
	}
}

func TestService_Directory(t *testing.T) {
	svc, repo := setup(t)
	ctx := context.Background()

	admin := createUser(t, repo, "Admin", "admin@test.cd", "", user.RoleAdmin, nil)
	teacher := createUser(t, repo, "Teacher", "teacher@test.cd", "", user.RoleTeacher, nil)
	other := createUser(t, repo, "Other", "other@test.cd", "", user.RoleTeacher, nil)
	kid1 := createUser(t, repo, "Kid1", "kid1@test.cd", "", user.RoleStudent, &teacher.ID)
	kid2 := createUser(t, repo, "Kid2", "kid2@test.cd", "", user.RoleStudent, &teacher.ID)
	stray := createUser(t, repo, "Stray", "stray@test.cd", "", user.RoleStudent, &other.ID)

	all, err := svc.Directory(ctx, admin)
	if err != nil {
		t.Fatalf("Directory() as admin failed: %v", err)
	}
	if len(all) != 6 {
		t.Errorf("Directory() as admin returned %d users, want 6", len(all))
	}

	mine, err := svc.Directory(ctx, teacher)
	if err != nil {
		t.Fatalf("Directory() as teacher failed: %v", err)
	}
	if len(mine) != 2 {
		t.Fatalf("Directory() as teacher returned %d users, want 2", len(mine))
	}
	for _, usr := range mine {
		if usr.ID != kid1.ID && usr.ID != kid2.ID {
			t.Errorf("Directory() as teacher returned unexpected user %q", usr.Email)
		}
	}

	if _, err = svc.Directory(ctx, stray); err != core.ErrPermissionDenied {
		t.Errorf("Directory() as student error = %v, want ErrPermissionDenied", err)
	}
}

func TestService_Teachers(t *testing.T) {
	svc, repo := setup(t)
	ctx := context.Background()

	admin := createUser(t, repo, "Admin", "admin@test.cd", "", user.RoleAdmin, nil)
	teacher := createUser(t, repo, "Teacher", "teacher@test.cd", "", user.RoleTeacher, nil)
	createUser(t, repo, "Kid", "kid@test.cd", "", user.RoleStudent, &teacher.ID)

	got, err := svc.Teachers(ctx, admin)
	if err != nil {
		t.Fatalf("Teachers() failed: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("Teachers() returned %d users, want 2", len(got))
	}
	for _, usr := range got {
		if usr.Role == user.RoleStudent {
			t.Errorf("Teachers() returned student %q", usr.Email)
		}
	}

	if _, err = svc.Teachers(ctx, teacher); err != core.ErrPermissionDenied {
		t.Errorf("Teachers() as teacher error = %v, want ErrPermissionDenied", err)
	}
}

func TestService_MyTeacher(t *testing.T) {
	svc, repo := setup(t)
	ctx := context.Background()

	teacher := createUser(t, repo, "Teacher", "teacher@test.cd", "", user.RoleTeacher, nil)
	kid := createUser(t, repo, "Kid", "kid@test.cd", "", user.RoleStudent, &teacher.ID)
	stray := createUser(t, repo, "Stray", "stray@test.cd", "", user.RoleStudent, nil)

	info, err := svc.MyTeacher(ctx, kid)
	if err != nil {
		t.Fatalf("MyTeacher() failed: %v", err)
	}
	if info == nil || info.ID != teacher.ID || info.Name != "Teacher" {
		t.Errorf("MyTeacher() = %+v, want teacher %q", info, teacher.ID)
	}

	if info, err = svc.MyTeacher(ctx, stray); err != nil || info != nil {
		t.Errorf("MyTeacher() without supervisor = (%+v, %v), want (nil, nil)", info, err)
	}
	if info, err = svc.MyTeacher(ctx, teacher); err != nil || info != nil {
		t.Errorf("MyTeacher() as teacher = (%+v, %v), want (nil, nil)", info, err)
	}
}
