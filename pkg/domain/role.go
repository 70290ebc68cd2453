package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Role enumerates the closed set of roster roles. The numeric value is the
// stable code used in storage and query parameters.
type Role int

// Canonical roles in code order.
const (
	RoleSuperAdmin Role = iota
	RoleAdmin
	RoleModerator
	RoleEditor
	RoleAuthor
	RoleContributor
	RoleUser

	roleCount int = iota
)

// Indexed by Role and sized by roleCount, so a new role cannot outgrow the tables.
var roleLabels = [roleCount]string{
	RoleSuperAdmin:  "SuperAdmin",
	RoleAdmin:       "Admin",
	RoleModerator:   "Moderator",
	RoleEditor:      "Editor",
	RoleAuthor:      "Author",
	RoleContributor: "Contributor",
	RoleUser:        "User",
}

var roleBadgeClasses = [roleCount]string{
	RoleSuperAdmin:  "bg-dark",
	RoleAdmin:       "bg-primary",
	RoleModerator:   "bg-warning",
	RoleEditor:      "bg-info",
	RoleAuthor:      "bg-success",
	RoleContributor: "bg-secondary",
	RoleUser:        "bg-light text-dark",
}

// Roles returns every role in code order.
func Roles() []Role {
	out := make([]Role, roleCount)
	for i := range out {
		out[i] = Role(i)
	}
	return out
}

// Valid reports whether r is one of the canonical roles.
func (r Role) Valid() bool { return r >= 0 && int(r) < roleCount }

// String returns the display label, or "Unknown" for codes outside the enum.
func (r Role) String() string {
	if !r.Valid() {
		return "Unknown"
	}
	return roleLabels[r]
}

// BadgeClass returns the style class used when rendering the role badge.
func (r Role) BadgeClass() string {
	if !r.Valid() {
		return ""
	}
	return roleBadgeClasses[r]
}

// ParseRole accepts a numeric code or a label (case-insensitive).
func ParseRole(s string) (Role, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		r := Role(n)
		if !r.Valid() {
			return 0, fmt.Errorf("unknown role code %d", n)
		}
		return r, nil
	}
	for i, label := range roleLabels {
		if strings.EqualFold(label, s) {
			return Role(i), nil
		}
	}
	return 0, fmt.Errorf("unknown role %q", s)
}
