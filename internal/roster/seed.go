package roster

import "rosterkit/pkg/domain"

// DefaultUsers returns the built-in collection used when no roster has been
// persisted yet. Eight of the twelve records are active.
func DefaultUsers() []domain.User {
	return []domain.User{
		{ID: 1, Name: "John Smith", Age: 34, Email: "john.smith@example.com", Phone: "555-0101", Address: "12 Oak Street, Springfield", RegisteredDate: "2023-01-15", IsActive: true, Role: domain.RoleSuperAdmin},
		{ID: 2, Name: "Maria Garcia", Age: 28, Email: "maria.garcia@example.com", Phone: "555-0102", Address: "48 Pine Avenue, Riverside", RegisteredDate: "2023-02-03", IsActive: true, Role: domain.RoleAdmin},
		{ID: 3, Name: "David Chen", Age: 41, Email: "david.chen@example.com", Phone: "555-0103", Address: "7 Maple Court, Fairview", RegisteredDate: "2023-02-21", IsActive: false, Role: domain.RoleModerator},
		{ID: 4, Name: "Sarah Johnson", Age: 37, Email: "sarah.j@example.com", Phone: "555-0104", Address: "301 Cedar Road, Lakeside", RegisteredDate: "2023-03-09", IsActive: true, Role: domain.RoleEditor},
		{ID: 5, Name: "Ahmed Hassan", Age: 45, Email: "ahmed.hassan@example.com", Phone: "555-0105", Address: "19 Birch Lane, Georgetown", RegisteredDate: "2023-03-30", IsActive: true, Role: domain.RoleAuthor},
		{ID: 6, Name: "Emily Brown", Age: 23, Email: "emily.brown@example.com", Phone: "555-0106", Address: "88 Elm Street, Madison", RegisteredDate: "2023-04-12", IsActive: false, Role: domain.RoleContributor},
		{ID: 7, Name: "Lucas Silva", Age: 31, Email: "lucas.silva@example.com", Phone: "555-0107", Address: "5 Willow Way, Clinton", RegisteredDate: "2023-05-02", IsActive: true, Role: domain.RoleUser},
		{ID: 8, Name: "Olivia Martin", Age: 52, Email: "olivia.martin@example.com", Phone: "555-0108", Address: "260 Aspen Drive, Salem", RegisteredDate: "2023-05-27", IsActive: true, Role: domain.RoleUser},
		{ID: 9, Name: "Kenji Tanaka", Age: 39, Email: "kenji.tanaka@example.com", Phone: "555-0109", Address: "14 Spruce Street, Franklin", RegisteredDate: "2023-06-18", IsActive: false, Role: domain.RoleEditor},
		{ID: 10, Name: "Priya Patel", Age: 26, Email: "priya.patel@example.com", Phone: "555-0110", Address: "73 Poplar Avenue, Greenville", RegisteredDate: "2023-07-07", IsActive: true, Role: domain.RoleAuthor},
		{ID: 11, Name: "Noah Williams", Age: 60, Email: "noah.williams@example.com", Phone: "555-0111", Address: "2 Chestnut Place, Bristol", RegisteredDate: "2023-08-14", IsActive: false, Role: domain.RoleContributor},
		{ID: 12, Name: "Sofia Rossi", Age: 33, Email: "sofia.rossi@example.com", Phone: "555-0112", Address: "40 Hawthorn Road, Dover", RegisteredDate: "2023-09-01", IsActive: true, Role: domain.RoleModerator},
	}
}
