package validation

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"rosterkit/pkg/domain"
)

type takenEmails map[string]int

func (t takenEmails) EmailTaken(email string, excludeID int) bool {
	id, ok := t[strings.ToLower(strings.TrimSpace(email))]
	return ok && id != excludeID
}

func validUser() domain.User {
	return domain.User{ID: 0, Name: "Ada", Age: 36, Email: "ada@example.com", Role: domain.RoleEditor}
}

func TestUserRules(t *testing.T) {
	emails := takenEmails{"bob@example.com": 7}
	cases := []struct {
		name   string
		mutate func(*domain.User)
		want   Errors
	}{
		{"valid", func(*domain.User) {}, nil},
		{"blank name", func(u *domain.User) { u.Name = "  " }, Errors{"name": CodeRequired}},
		{"too young", func(u *domain.User) { u.Age = 17 }, Errors{"age": CodeMin}},
		{"lower bound", func(u *domain.User) { u.Age = 18 }, nil},
		{"upper bound", func(u *domain.User) { u.Age = 120 }, nil},
		{"too old", func(u *domain.User) { u.Age = 121 }, Errors{"age": CodeMax}},
		{"missing email", func(u *domain.User) { u.Email = "" }, Errors{"email": CodeRequired}},
		{"malformed email", func(u *domain.User) { u.Email = "not-an-email" }, Errors{"email": CodeEmail}},
		{"display name", func(u *domain.User) { u.Email = "Ada <ada@example.com>" }, Errors{"email": CodeEmail}},
		{"taken email", func(u *domain.User) { u.Email = " BOB@example.com " }, Errors{"email": CodeNotUnique}},
		{"own email on update", func(u *domain.User) { u.ID = 7; u.Email = "bob@example.com" }, nil},
		{"unknown role", func(u *domain.User) { u.Role = domain.Role(9) }, Errors{"role": CodeUnknownRole}},
		{"bad child", func(u *domain.User) { u.Children = []domain.Column{{Column: "team", Value: ""}} }, Errors{"children[0].value": CodeRequired}},
		{
			"several",
			func(u *domain.User) { u.Name = ""; u.Age = 0; u.Role = -1 },
			Errors{"name": CodeRequired, "age": CodeMin, "role": CodeUnknownRole},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			u := validUser()
			tc.mutate(&u)
			err := User(u, emails)
			if tc.want == nil {
				if err != nil {
					t.Fatalf("expected valid, got %v", err)
				}
				return
			}
			got, ok := AsErrors(err)
			if !ok {
				t.Fatalf("expected Errors, got %v", err)
			}
			if fmt.Sprint(got) != fmt.Sprint(tc.want) {
				t.Fatalf("got %v want %v", got, tc.want)
			}
		})
	}
}

func TestUserWithoutChecker(t *testing.T) {
	u := validUser()
	u.Email = "bob@example.com"
	if err := User(u, nil); err != nil {
		t.Fatalf("uniqueness must be skipped without a checker: %v", err)
	}
}

func TestColumnAndErrorText(t *testing.T) {
	err := Column(domain.Column{})
	if err == nil {
		t.Fatalf("expected errors")
	}
	if got := err.Error(); got != "validation failed: column: required, value: required" {
		t.Fatalf("unexpected message %q", got)
	}
	if Column(domain.Column{Column: "team", Value: "blue"}) != nil {
		t.Fatalf("valid column rejected")
	}
	if _, ok := AsErrors(errors.New("other")); ok {
		t.Fatalf("plain error is not Errors")
	}
}

type holders map[string][]int

func (h holders) EmailHolders(email string) []int {
	return h[strings.ToLower(strings.TrimSpace(email))]
}

func TestBatch(t *testing.T) {
	index := holders{"a@example.com": {1}, "b@example.com": {2}, "c@example.com": {3}}
	user := func(id int, email string) domain.User {
		u := validUser()
		u.ID, u.Email = id, email
		return u
	}
	cases := []struct {
		name  string
		users []domain.User
		want  int
		code  string
	}{
		{"unchanged", []domain.User{user(1, "a@example.com"), user(2, "b@example.com")}, -1, ""},
		{"swap", []domain.User{user(1, "b@example.com"), user(2, "a@example.com")}, -1, ""},
		{"rotation", []domain.User{user(1, "b@example.com"), user(2, "c@example.com"), user(3, "a@example.com")}, -1, ""},
		{"same new email", []domain.User{user(1, "dup@example.com"), user(2, " DUP@example.com")}, 1, CodeNotUnique},
		{"held outside", []domain.User{user(1, "c@example.com"), user(2, "b@example.com")}, 0, CodeNotUnique},
		{"repeated record", []domain.User{user(1, "a@example.com"), user(1, "a@example.com")}, -1, ""},
		{"bad format wins", []domain.User{user(1, "x@example.com"), user(2, "x@")}, 1, CodeEmail},
		{"other field", []domain.User{user(1, "a@example.com"), {ID: 2, Age: 30, Email: "b@example.com"}}, 1, ""},
	}
	for _, tc := range cases {
		i, err := Batch(tc.users, index)
		if i != tc.want {
			t.Fatalf("%s: index %d, want %d (%v)", tc.name, i, tc.want, err)
		}
		if tc.want < 0 {
			if err != nil {
				t.Fatalf("%s: unexpected error %v", tc.name, err)
			}
			continue
		}
		errs, ok := AsErrors(err)
		if !ok {
			t.Fatalf("%s: expected field errors, got %v", tc.name, err)
		}
		if tc.code != "" && errs["email"] != tc.code {
			t.Fatalf("%s: email code %q, want %q", tc.name, errs["email"], tc.code)
		}
	}
	if i, err := Batch([]domain.User{user(1, "c@example.com")}, nil); i != -1 || err != nil {
		t.Fatalf("nil index skips store lookups: %d %v", i, err)
	}
}
