package domain

import "fmt"

// StatusFilter selects users by their active flag. The numeric value is the
// wire code carried in the status query parameter.
type StatusFilter int

// Status filter codes.
const (
	StatusAll StatusFilter = iota
	StatusActive
	StatusInactive
)

// Valid reports whether s is a known status code.
func (s StatusFilter) Valid() bool { return s >= StatusAll && s <= StatusInactive }

func (s StatusFilter) String() string {
	switch s {
	case StatusAll:
		return "all"
	case StatusActive:
		return "active"
	case StatusInactive:
		return "inactive"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// ParseStatusFilter accepts the labels all, active and inactive.
func ParseStatusFilter(s string) (StatusFilter, error) {
	switch s {
	case "all":
		return StatusAll, nil
	case "active":
		return StatusActive, nil
	case "inactive":
		return StatusInactive, nil
	}
	return 0, fmt.Errorf("unknown status filter %q", s)
}

// RoleFilter is either "all roles" or exactly one role. The zero value means all.
type RoleFilter struct {
	role Role
	set  bool
}

// AllRoles returns the filter that keeps every role.
func AllRoles() RoleFilter { return RoleFilter{} }

// OnlyRole returns a filter matching exactly r.
func OnlyRole(r Role) RoleFilter { return RoleFilter{role: r, set: true} }

// IsAll reports whether the filter keeps every role.
func (f RoleFilter) IsAll() bool { return !f.set }

// Role returns the targeted role and false when the filter is all.
func (f RoleFilter) Role() (Role, bool) { return f.role, f.set }

// Matches reports whether r passes the filter.
func (f RoleFilter) Matches(r Role) bool { return !f.set || f.role == r }

func (f RoleFilter) String() string {
	if !f.set {
		return "all"
	}
	return f.role.String()
}

// Default pagination and filter values used when no query parameter is present.
const (
	DefaultPage         = 1
	DefaultItemsPerPage = 5
	DefaultStatus       = StatusActive
)

// PageSizes lists the items-per-page choices offered by the pagination control.
var PageSizes = []int{5, 10, 20, 50}

// FilterState is the typed view state driving a list query.
type FilterState struct {
	Status       StatusFilter
	Role         RoleFilter
	Search       string
	CurrentPage  int
	ItemsPerPage int
}

// DefaultFilterState returns the state used on first load with no parameters.
func DefaultFilterState() FilterState {
	return FilterState{
		Status:       DefaultStatus,
		Role:         AllRoles(),
		CurrentPage:  DefaultPage,
		ItemsPerPage: DefaultItemsPerPage,
	}
}

// Page is one page of filtered users plus the filtered count before pagination.
type Page struct {
	Users      []User `json:"users"`
	TotalCount int    `json:"totalCount"`
}
