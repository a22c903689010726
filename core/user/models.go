package user

import (
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/jorgead/ritmatiza/core"
)

type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Role         string    `json:"role"`
	Points       int       `json:"points"`
	TeacherID    *string   `json:"teacher_id"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
	LastLogin    time.Time `json:"last_login"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) IsAdmin() bool   { return u.Role == RoleAdmin }
func (u *User) IsTeacher() bool { return u.Role == RoleTeacher }
func (u *User) IsStudent() bool { return u.Role == RoleStudent }

// NewUser contains information needed to self-register a new User.
// Self-registration always yields a STUDENT with 0 points.
type NewUser struct {
	Name     string `json:"name" validate:"required,max=255"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=6"`
}

func (nu *NewUser) Validate() error {
	nu.Name = core.CleanString(nu.Name)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	return core.Validate.Struct(nu)
}

// AdminNewUser contains information needed by an admin to create a User with any
// role. A STUDENT must be assigned a supervising teacher; other roles have none.
type AdminNewUser struct {
	Name      string  `json:"name" validate:"required,max=100"`
	Email     string  `json:"email" validate:"required,email,max=255"`
	Password  string  `json:"password" validate:"required,min=6"`
	Role      string  `json:"role" validate:"required,oneofroles"`
	TeacherID *string `json:"teacher_id"`
}

func (nu *AdminNewUser) Validate() error {
	nu.Name = core.CleanString(nu.Name)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.Role = CleanRole(nu.Role)
	return core.Validate.Struct(nu)
}

// UpdateProfile defines what a user may change on their own account.
// Changing the email requires re-entering the current one; changing the
// password requires the current password.
type UpdateProfile struct {
	Email           string `json:"email" validate:"omitempty,email,max=255"`
	CurrentEmail    string `json:"current_email" validate:"required_with=Email"`
	Password        string `json:"password" validate:"omitempty,min=6"`
	CurrentPassword string `json:"current_password" validate:"required_with=Password"`
}

func (up *UpdateProfile) Validate() error {
	up.Email = core.CleanString(up.Email, true /* lower */)
	up.CurrentEmail = core.CleanString(up.CurrentEmail, true /* lower */)
	return core.Validate.Struct(up)
}

func (up *UpdateProfile) IsEmpty() bool {
	return up.Email == "" && up.Password == ""
}

// AdminUpdateUser defines what an admin may change on any account.
type AdminUpdateUser struct {
	Name      string  `json:"name" validate:"omitempty,max=100"`
	Role      string  `json:"role" validate:"omitempty,oneofroles"`
	Points    *int    `json:"points" validate:"omitempty,min=0"`
	TeacherID *string `json:"teacher_id"`
}

func (uu *AdminUpdateUser) Validate() error {
	uu.Name = core.CleanString(uu.Name)
	if uu.Role != "" {
		uu.Role = CleanRole(uu.Role)
	}
	return core.Validate.Struct(uu)
}

// TeacherInfo is the public view of a student's assigned teacher.
type TeacherInfo struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}
