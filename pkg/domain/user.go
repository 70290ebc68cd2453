// Package domain defines the roster entities and the value types that drive
// list queries: users, roles, status and role filters, and pagination state.
package domain

// Column is an ad hoc extra attribute attached to a user record.
type Column struct {
	Column string `json:"column"`
	Value  string `json:"value"`
}

// User is a single roster record. The JSON shape is the persisted layout.
type User struct {
	ID             int      `json:"id"`
	Name           string   `json:"name"`
	Age            int      `json:"age"`
	Email          string   `json:"email"`
	Phone          string   `json:"phone"`
	Address        string   `json:"address"`
	RegisteredDate string   `json:"registeredDate"`
	IsActive       bool     `json:"isActive"`
	Role           Role     `json:"role"`
	Children       []Column `json:"children,omitempty"`
}

// Clone returns a deep copy of the user; Children is never shared.
func (u User) Clone() User {
	cp := u
	if u.Children != nil {
		cp.Children = make([]Column, len(u.Children))
		copy(cp.Children, u.Children)
	}
	return cp
}

// CloneUsers deep copies a slice of users preserving order.
func CloneUsers(in []User) []User {
	if in == nil {
		return nil
	}
	out := make([]User, len(in))
	for i, u := range in {
		out[i] = u.Clone()
	}
	return out
}

// ChunkColumns splits columns into consecutive groups of at most size entries,
// used to lay extra attributes out in rows.
func ChunkColumns(cols []Column, size int) [][]Column {
	if size <= 0 || len(cols) == 0 {
		return nil
	}
	chunks := make([][]Column, 0, (len(cols)+size-1)/size)
	for i := 0; i < len(cols); i += size {
		end := i + size
		if end > len(cols) {
			end = len(cols)
		}
		chunks = append(chunks, cols[i:end])
	}
	return chunks
}
