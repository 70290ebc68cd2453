// Package query runs the list pipeline over a roster snapshot: status filter,
// role filter, free-text search, then pagination. There is no sort stage;
// store order is preserved throughout.
package query

import (
	"strings"

	"rosterkit/pkg/domain"
)

// Filter applies the status, role and search stages and returns the matching
// records in input order. The input slice is not modified.
func Filter(records []domain.User, f domain.FilterState) []domain.User {
	term := strings.ToLower(strings.TrimSpace(f.Search))
	out := make([]domain.User, 0, len(records))
	for _, u := range records {
		if !matchStatus(u, f.Status) || !f.Role.Matches(u.Role) || !matchSearch(u, term) {
			continue
		}
		out = append(out, u)
	}
	return out
}

func matchStatus(u domain.User, s domain.StatusFilter) bool {
	switch s {
	case domain.StatusActive:
		return u.IsActive
	case domain.StatusInactive:
		return !u.IsActive
	default:
		return true
	}
}

// matchSearch expects term already trimmed and lower-cased.
func matchSearch(u domain.User, term string) bool {
	if term == "" {
		return true
	}
	return strings.Contains(strings.ToLower(u.Name), term) ||
		strings.Contains(strings.ToLower(u.Email), term) ||
		strings.Contains(strings.ToLower(u.Phone), term)
}

// Run filters records and returns the requested page together with the
// filtered count. Pages or sizes below 1 and pages past the end yield an
// empty page with the count intact.
func Run(records []domain.User, f domain.FilterState) domain.Page {
	filtered := Filter(records, f)
	page := domain.Page{Users: []domain.User{}, TotalCount: len(filtered)}
	if f.CurrentPage < 1 || f.ItemsPerPage < 1 {
		return page
	}
	// compare before multiplying so huge query values cannot overflow
	if f.CurrentPage-1 > len(filtered)/f.ItemsPerPage {
		return page
	}
	start := (f.CurrentPage - 1) * f.ItemsPerPage
	if start >= len(filtered) {
		return page
	}
	end := len(filtered)
	if f.ItemsPerPage < end-start {
		end = start + f.ItemsPerPage
	}
	page.Users = domain.CloneUsers(filtered[start:end])
	return page
}

// TotalPages is ceil(total/size), never less than 1.
func TotalPages(total, size int) int {
	if size < 1 || total <= 0 {
		return 1
	}
	return (total-1)/size + 1
}

// Clamp pulls page back to the last page when it overflows and reports
// whether it changed. Pages below 1 are left to the caller.
func Clamp(page, total, size int) (int, bool) {
	if last := TotalPages(total, size); page > last {
		return last, true
	}
	return page, false
}
