package user

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/jorgead/ritmatiza/core"
)

var (
	// errors
	ErrNotFound    = errors.New("user not found")
	ErrEmailExists = errors.New("a user with this email already exists")

	errNotATeacher = "this user is not a teacher or admin"
	errTeacherReqd = "a supervising teacher is required for students"
)

type (
	Repository interface {
		CheckEmailUniqueness(ctx context.Context, email string, excludedUsers ...User) error
		CreateUser(ctx context.Context, usr User) (User, error)
		GetUserByID(ctx context.Context, id string) (User, error)
		GetUserByEmail(ctx context.Context, email string) (User, error)
		QueryAllUsers(ctx context.Context) ([]User, error)
		QueryUsersByTeacher(ctx context.Context, teacherID string) ([]User, error)
		QueryUsersByRole(ctx context.Context, roles ...string) ([]User, error)
		UpdateUser(ctx context.Context, usr User) (User, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) checkUniqueness(ctx context.Context, email string, exclUsers ...User) error {
	if err := svc.repo.CheckEmailUniqueness(ctx, email, exclUsers...); err != nil {
		if err == ErrEmailExists {
			return core.NewConflictError("email", err.Error())
		}
		return err
	}
	return nil
}

// checkTeacherLink ensures a supervisor reference points to a TEACHER or ADMIN.
func (svc *Service) checkTeacherLink(ctx context.Context, teacherID *string) error {
	if teacherID == nil || *teacherID == "" {
		return core.NewValidationError(nil, core.FieldError{Field: "teacher_id", Error: errTeacherReqd})
	}
	sup, err := svc.repo.GetUserByID(ctx, *teacherID)
	if err != nil {
		if err == ErrNotFound {
			return core.NewValidationError(nil, core.FieldError{Field: "teacher_id", Error: errNotATeacher})
		}
		return errors.Wrap(err, "finding teacher")
	}
	if !Allows(sup.Role, CapTeacherOrAdmin) {
		return core.NewValidationError(nil, core.FieldError{Field: "teacher_id", Error: errNotATeacher})
	}
	return nil
}

// Register self-registers a STUDENT with 0 points and no supervisor.
func (svc *Service) Register(ctx context.Context, nu NewUser) (User, error) {
	if err := svc.checkUniqueness(ctx, nu.Email); err != nil {
		return User{}, err
	}

	now := time.Now().UTC()
	usr := User{
		Name:      nu.Name,
		Email:     nu.Email,
		Role:      RoleStudent,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	return svc.repo.CreateUser(ctx, usr)
}

// Create creates a user with any role; admin only. STUDENTs must be linked to a
// supervising TEACHER/ADMIN, other roles never carry a supervisor.
func (svc *Service) Create(ctx context.Context, principal User, nu AdminNewUser) (User, error) {
	if !Allows(principal.Role, CapAdminOnly) {
		return User{}, core.ErrPermissionDenied
	}
	if err := svc.checkUniqueness(ctx, nu.Email); err != nil {
		return User{}, err
	}

	var teacherID *string
	if nu.Role == RoleStudent {
		if err := svc.checkTeacherLink(ctx, nu.TeacherID); err != nil {
			return User{}, err
		}
		teacherID = nu.TeacherID
	}

	now := time.Now().UTC()
	usr := User{
		Name:      nu.Name,
		Email:     nu.Email,
		Role:      nu.Role,
		TeacherID: teacherID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	return svc.repo.CreateUser(ctx, usr)
}

// Authenticate checks credentials and returns the matching user.
func (svc *Service) Authenticate(ctx context.Context, email, pwd string) (User, error) {
	usr, err := svc.repo.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
	if err != nil {
		if err == ErrNotFound {
			return User{}, core.NewValidationError(errors.New("invalid credentials"))
		}
		return User{}, errors.Wrap(err, "finding user by email")
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return User{}, core.NewValidationError(errors.New("invalid credentials"))
	}
	return usr, nil
}

func (svc *Service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUserByID(ctx, id)
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
}

func (svc *Service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	usr.LastLogin = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

// UpdateProfile lets a user change their own email and/or password, with
// re-verification of the current value in both cases.
func (svc *Service) UpdateProfile(ctx context.Context, usr User, up UpdateProfile) (User, error) {
	if up.IsEmpty() {
		return User{}, core.NewValidationError(errors.New("nothing to update"))
	}

	if up.Email != "" {
		if up.CurrentEmail != usr.Email {
			return User{}, core.ErrPermissionDenied
		}
		if err := svc.checkUniqueness(ctx, up.Email, usr); err != nil {
			return User{}, err
		}
		usr.Email = up.Email
	}
	if up.Password != "" {
		if err := usr.CheckPassword(up.CurrentPassword); err != nil {
			return User{}, core.ErrPermissionDenied
		}
		if err := usr.SetPassword(up.Password); err != nil {
			return User{}, errors.Wrap(err, "hashing password")
		}
	}

	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

// AdminUpdate lets an admin change a user's name, role, points or supervisor.
func (svc *Service) AdminUpdate(ctx context.Context, principal User, id string, uu AdminUpdateUser) (User, error) {
	if !Allows(principal.Role, CapAdminOnly) {
		return User{}, core.ErrPermissionDenied
	}

	usr, err := svc.repo.GetUserByID(ctx, id)
	if err != nil {
		return User{}, err
	}

	if uu.Name != "" {
		usr.Name = uu.Name
	}
	if uu.Role != "" {
		usr.Role = uu.Role
	}
	if uu.Points != nil {
		usr.Points = *uu.Points
	}
	if usr.Role == RoleStudent {
		if uu.TeacherID != nil {
			if err := svc.checkTeacherLink(ctx, uu.TeacherID); err != nil {
				return User{}, err
			}
			usr.TeacherID = uu.TeacherID
		}
	} else {
		usr.TeacherID = nil
	}

	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

// Directory returns the user listing scoped by role: admins see everyone,
// teachers see their directly supervised students.
func (svc *Service) Directory(ctx context.Context, principal User) ([]User, error) {
	switch {
	case principal.IsAdmin():
		return svc.repo.QueryAllUsers(ctx)
	case principal.IsTeacher():
		return svc.repo.QueryUsersByTeacher(ctx, principal.ID)
	}
	return nil, core.ErrPermissionDenied
}

// Teachers returns all TEACHER/ADMIN users, for supervisor assignment; admin only.
func (svc *Service) Teachers(ctx context.Context, principal User) ([]User, error) {
	if !Allows(principal.Role, CapAdminOnly) {
		return nil, core.ErrPermissionDenied
	}
	return svc.repo.QueryUsersByRole(ctx, RoleTeacher, RoleAdmin)
}

// MyTeacher returns the student's assigned teacher, or nil if the user is not a
// student or has no supervisor.
func (svc *Service) MyTeacher(ctx context.Context, usr User) (*TeacherInfo, error) {
	if !usr.IsStudent() || usr.TeacherID == nil {
		return nil, nil
	}
	sup, err := svc.repo.GetUserByID(ctx, *usr.TeacherID)
	if err != nil {
		if err == ErrNotFound {
			return nil, nil
		}
		return nil, errors.Wrap(err, "finding teacher")
	}
	return &TeacherInfo{ID: sup.ID, Name: sup.Name, Email: sup.Email}, nil
}
