package httpapi

import (
	"rosterkit/internal/listview"
	"rosterkit/internal/viewstate"
	"rosterkit/pkg/domain"
)

type roleDTO struct {
	Code       int    `json:"code"`
	Label      string `json:"label"`
	BadgeClass string `json:"badgeClass"`
}

type stateDTO struct {
	Page         int    `json:"page"`
	ItemsPerPage int    `json:"itemsPerPage"`
	Search       string `json:"search"`
	Status       string `json:"status"`
	StatusCode   int    `json:"statusCode"`
	Role         string `json:"role"`
	RoleCode     *int   `json:"roleCode,omitempty"`
}

func newStateDTO(f domain.FilterState) stateDTO {
	out := stateDTO{
		Page:         f.CurrentPage,
		ItemsPerPage: f.ItemsPerPage,
		Search:       f.Search,
		Status:       f.Status.String(),
		StatusCode:   int(f.Status),
		Role:         f.Role.String(),
	}
	if r, ok := f.Role.Role(); ok {
		code := int(r)
		out.RoleCode = &code
	}
	return out
}

type listResponse struct {
	Users      []domain.User `json:"users"`
	TotalCount int           `json:"totalCount"`
	TotalPages int           `json:"totalPages"`
	State      stateDTO      `json:"state"`
	Query      string        `json:"query"`
}

func newListResponse(c *listview.Controller, nav *listview.MemoryNavigator) listResponse {
	page := c.Page()
	state := c.State()
	return listResponse{
		Users:      page.Users,
		TotalCount: page.TotalCount,
		TotalPages: c.TotalPages(),
		State:      newStateDTO(state),
		Query:      viewstate.Encode(state, nav.Query()).Encode(),
	}
}

type mutationResponse struct {
	User    *domain.User `json:"user,omitempty"`
	Updated *int         `json:"updated,omitempty"`
	Removed *int         `json:"removed,omitempty"`
	View    listResponse `json:"view"`
}
