package model

import "fmt"

// Role is the closed set of account capabilities. Unknown strings never pass
// ParseRole, so role checks downstream can switch exhaustively.
type Role string

const (
	RoleAdmin        Role = "ADMIN"
	RoleProfessional Role = "PROFESSIONAL"
	RoleClient       Role = "CLIENT"
)

func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleAdmin, RoleProfessional, RoleClient:
		return Role(s), nil
	default:
		return "", fmt.Errorf("unknown role: %q", s)
	}
}

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleProfessional, RoleClient:
		return true
	}
	return false
}

func (r Role) String() string {
	return string(r)
}
