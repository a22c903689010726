package user

import "strings"

// Roles. A user has exactly one role, stored canonicalized to uppercase.
const (
	RoleStudent = "STUDENT"
	RoleTeacher = "TEACHER"
	RoleAdmin   = "ADMIN"
)

var (
	AllRoles = []string{RoleStudent, RoleTeacher, RoleAdmin}

	Roles = []Role{
		{Name: "Student", Value: RoleStudent},
		{Name: "Teacher", Value: RoleTeacher},
		{Name: "Admin", Value: RoleAdmin},
	}
)

type Role struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// CleanRole canonicalizes a role value received at an input boundary.
func CleanRole(role string) string {
	return strings.ToUpper(strings.TrimSpace(role))
}

func IsValidRole(role string) bool {
	switch role {
	case RoleStudent, RoleTeacher, RoleAdmin:
		return true
	}
	return false
}

// Capability names an authorization check. Every mutating operation evaluates
// exactly one capability against the acting user's role before touching state.
type Capability string

const (
	CapAdminOnly      Capability = "admin-only"
	CapTeacherOrAdmin Capability = "teacher-or-admin"
	CapStudentOrAdmin Capability = "student-or-admin"
)

var capabilityRoles = map[Capability][]string{
	CapAdminOnly:      {RoleAdmin},
	CapTeacherOrAdmin: {RoleTeacher, RoleAdmin},
	CapStudentOrAdmin: {RoleStudent, RoleAdmin},
}

// Allows reports whether a role holds a capability. Roles are compared in their
// canonical form only; there is no hierarchy beyond the explicit groupings.
func Allows(role string, cap Capability) bool {
	for _, r := range capabilityRoles[cap] {
		if r == role {
			return true
		}
	}
	return false
}
