// Package validation holds the edit-form rules applied before a record reaches
// the roster store.
package validation

import (
	"errors"
	"fmt"
	"net/mail"
	"sort"
	"strings"

	"rosterkit/pkg/domain"
)

// Age bounds accepted by the edit form.
const (
	MinAge = 18
	MaxAge = 120
)

// Field-level failure codes.
const (
	CodeRequired    = "required"
	CodeMin         = "min"
	CodeMax         = "max"
	CodeEmail       = "email"
	CodeNotUnique   = "notUniqueEmail"
	CodeUnknownRole = "role"
)

// EmailChecker reports whether email is used by a record other than excludeID.
// roster.Store satisfies it.
type EmailChecker interface {
	EmailTaken(email string, excludeID int) bool
}

// Errors maps a field name to its failure code.
type Errors map[string]string

func (e Errors) Error() string {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = fmt.Sprintf("%s: %s", f, e[f])
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

// AsErrors extracts field errors from err.
func AsErrors(err error) (Errors, bool) {
	var errs Errors
	if errors.As(err, &errs) {
		return errs, true
	}
	return nil, false
}

// User checks a record about to be added (ID 0) or updated. emails may be nil
// to skip the uniqueness rule.
func User(u domain.User, emails EmailChecker) error {
	errs := Errors{}
	if strings.TrimSpace(u.Name) == "" {
		errs["name"] = CodeRequired
	}
	switch {
	case u.Age < MinAge:
		errs["age"] = CodeMin
	case u.Age > MaxAge:
		errs["age"] = CodeMax
	}
	email := strings.TrimSpace(u.Email)
	switch {
	case email == "":
		errs["email"] = CodeRequired
	case !validEmail(email):
		errs["email"] = CodeEmail
	case emails != nil && emails.EmailTaken(email, u.ID):
		errs["email"] = CodeNotUnique
	}
	if !u.Role.Valid() {
		errs["role"] = CodeUnknownRole
	}
	for i, col := range u.Children {
		if err := Column(col); err != nil {
			for f, code := range err.(Errors) {
				errs[fmt.Sprintf("children[%d].%s", i, f)] = code
			}
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// EmailIndex lists the ids of records using an email. roster.Store
// satisfies it.
type EmailIndex interface {
	EmailHolders(email string) []int
}

// Batch checks records saved together and returns the index of the first
// failing one. Emails must differ across the batch and from records outside
// it; records inside the batch may trade emails with each other.
func Batch(users []domain.User, index EmailIndex) (int, error) {
	members := make(map[int]bool, len(users))
	for _, u := range users {
		members[u.ID] = true
	}
	var emails EmailChecker
	if index != nil {
		emails = outsideBatch{index: index, members: members}
	}
	seen := make(map[string]int, len(users))
	for i, u := range users {
		errs, _ := AsErrors(User(u, emails))
		key := strings.ToLower(strings.TrimSpace(u.Email))
		if _, bad := errs["email"]; !bad && key != "" {
			if id, dup := seen[key]; dup && id != u.ID {
				if errs == nil {
					errs = Errors{}
				}
				errs["email"] = CodeNotUnique
			} else if !dup {
				seen[key] = u.ID
			}
		}
		if len(errs) > 0 {
			return i, errs
		}
	}
	return -1, nil
}

type outsideBatch struct {
	index   EmailIndex
	members map[int]bool
}

func (o outsideBatch) EmailTaken(email string, excludeID int) bool {
	for _, id := range o.index.EmailHolders(email) {
		if id != excludeID && !o.members[id] {
			return true
		}
	}
	return false
}

// Column checks an extra attribute; both parts are required.
func Column(col domain.Column) error {
	errs := Errors{}
	if strings.TrimSpace(col.Column) == "" {
		errs["column"] = CodeRequired
	}
	if strings.TrimSpace(col.Value) == "" {
		errs["value"] = CodeRequired
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// validEmail accepts a bare addr-spec with a domain part.
func validEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Name != "" || addr.Address != s {
		return false
	}
	at := strings.LastIndexByte(s, '@')
	return at > 0 && at < len(s)-1
}
