// Package viewstate maps list filter state to and from URL query parameters
// and debounces free-text search input.
package viewstate

import (
	"net/url"
	"strconv"
	"strings"

	"rosterkit/pkg/domain"
)

// Query parameter names.
const (
	ParamPage         = "page"
	ParamItemsPerPage = "itemsPerPage"
	ParamSearch       = "search"
	ParamStatus       = "status"
	ParamRole         = "role"

	roleAll = "all"
)

// Decode reads filter state from query parameters. Absent, non-numeric or
// non-positive numbers fall back to defaults; unknown status codes mean
// active and unknown role codes mean all. Decode never fails.
func Decode(q url.Values) domain.FilterState {
	f := domain.DefaultFilterState()
	f.CurrentPage = positiveOr(q.Get(ParamPage), domain.DefaultPage)
	f.ItemsPerPage = positiveOr(q.Get(ParamItemsPerPage), domain.DefaultItemsPerPage)
	f.Search = q.Get(ParamSearch)
	if n, err := strconv.Atoi(strings.TrimSpace(q.Get(ParamStatus))); err == nil {
		if s := domain.StatusFilter(n); s.Valid() {
			f.Status = s
		}
	}
	f.Role = decodeRole(q.Get(ParamRole))
	return f
}

func positiveOr(raw string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 1 {
		return fallback
	}
	return n
}

func decodeRole(raw string) domain.RoleFilter {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == roleAll {
		return domain.AllRoles()
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return domain.AllRoles()
	}
	if r := domain.Role(n); r.Valid() {
		return domain.OnlyRole(r)
	}
	return domain.AllRoles()
}

// Encode merges f into a copy of current. Keys it does not own are kept;
// search is dropped when empty and role when it is all.
func Encode(f domain.FilterState, current url.Values) url.Values {
	out := make(url.Values, len(current)+5)
	for k, v := range current {
		out[k] = append([]string(nil), v...)
	}
	out.Set(ParamPage, strconv.Itoa(f.CurrentPage))
	out.Set(ParamItemsPerPage, strconv.Itoa(f.ItemsPerPage))
	out.Set(ParamStatus, strconv.Itoa(int(f.Status)))
	if f.Search != "" {
		out.Set(ParamSearch, f.Search)
	} else {
		out.Del(ParamSearch)
	}
	if r, ok := f.Role.Role(); ok {
		out.Set(ParamRole, strconv.Itoa(int(r)))
	} else {
		out.Del(ParamRole)
	}
	return out
}
