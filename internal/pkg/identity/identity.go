// Package identity carries the authenticated caller through service calls.
package identity

import "github.com/google/uuid"

const (
	RoleStudent = "student"
	RoleTeacher = "teacher"
	RoleAdmin   = "admin"
	// RoleSystem is used by background jobs and payment events.
	RoleSystem = "system"
)

// Actor is the caller of a core operation
type Actor struct {
	ID   uuid.UUID
	Role string
}

func Student(id uuid.UUID) Actor { return Actor{ID: id, Role: RoleStudent} }
func Teacher(id uuid.UUID) Actor { return Actor{ID: id, Role: RoleTeacher} }
func Admin(id uuid.UUID) Actor   { return Actor{ID: id, Role: RoleAdmin} }

// System returns the actor used for scheduled and webhook-driven work
func System() Actor { return Actor{Role: RoleSystem} }

func (a Actor) IsAdmin() bool   { return a.Role == RoleAdmin }
func (a Actor) IsTeacher() bool { return a.Role == RoleTeacher }
func (a Actor) IsStudent() bool { return a.Role == RoleStudent }
func (a Actor) IsSystem() bool  { return a.Role == RoleSystem }

// Privileged reports whether the actor bypasses party checks
func (a Actor) Privileged() bool { return a.IsAdmin() || a.IsSystem() }

// SeesEarnings reports whether earnings figures may be shown to the actor
func (a Actor) SeesEarnings() bool { return a.IsTeacher() || a.IsAdmin() }

// ValidRole reports whether role may appear in a bearer token
func ValidRole(role string) bool {
	switch role {
	case RoleStudent, RoleTeacher, RoleAdmin:
		return true
	}
	return false
}
