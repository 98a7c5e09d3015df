// Package access provides the single authorization capability used by every
// command and query: "may this actor act on this student". Teachers are
// scoped to the students they own; admins operate globally on both read and
// write paths.
package access

import (
	"github.com/zhuldyz-hub/zhuldyz-hub/internal/domain/shared"
	"github.com/zhuldyz-hub/zhuldyz-hub/internal/domain/student"
)

// Role is the coarse permission level of an authenticated user.
type Role string

const (
	// RoleTeacher may only act on students they own.
	RoleTeacher Role = "teacher"

	// RoleAdmin may act on any student.
	RoleAdmin Role = "admin"
)

// IsValid reports whether the role is one of the known values.
func (r Role) IsValid() bool {
	return r == RoleTeacher || r == RoleAdmin
}

// Actor is the authenticated caller of an operation, produced by the
// authentication layer and evaluated exactly once per operation.
type Actor struct {
	// TeacherID identifies the acting user.
	TeacherID student.TeacherID

	// Role determines the scope of the actor.
	Role Role
}

// NewActor builds an actor, defaulting an unknown role to teacher scope.
func NewActor(teacherID student.TeacherID, role Role) Actor {
	if !role.IsValid() {
		role = RoleTeacher
	}
	return Actor{TeacherID: teacherID, Role: role}
}

// IsAdmin reports whether the actor has global scope.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// CanActOn reports whether the actor may mutate or read the given student.
func (a Actor) CanActOn(s *student.Student) bool {
	if s == nil {
		return false
	}
	if a.IsAdmin() {
		return true
	}
	return s.OwnedBy(a.TeacherID)
}

// Authorize returns nil when the actor may act on the student, or a
// Forbidden domain error naming the operation otherwise.
func (a Actor) Authorize(op string, s *student.Student) error {
	if a.CanActOn(s) {
		return nil
	}
	return shared.NewDomainError("access", op, shared.ErrForbidden,
		"student belongs to another teacher")
}

// Scope limits read queries: empty means platform-wide (admin), otherwise
// results are restricted to one teacher's students.
type Scope struct {
	TeacherID student.TeacherID
}

// ScopeAll is the unrestricted scope.
var ScopeAll = Scope{}

// ScopeFor returns the read scope for an actor: admins see everything,
// teachers see their own students.
func ScopeFor(a Actor) Scope {
	if a.IsAdmin() {
		return ScopeAll
	}
	return Scope{TeacherID: a.TeacherID}
}

// Restricted reports whether the scope is limited to one teacher.
func (s Scope) Restricted() bool {
	return s.TeacherID != ""
}
