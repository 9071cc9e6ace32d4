// Package identity carries the authenticated caller through core operations.
// Authentication itself happens at the HTTP boundary; the scheduling core
// trusts the identity it is handed and never consults ambient state.
package identity

// Role classifies the caller for audit purposes.
type Role string

const (
	RolePatient Role = "patient"
	RoleStaff   Role = "staff"
	RoleSystem  Role = "system"
)

// Identity identifies the actor performing a scheduling operation.
type Identity struct {
	SubjectID string
	Role      Role
}

// System returns the identity used for internally triggered operations
// such as waitlist promotion and offer expiry.
func System() Identity {
	return Identity{SubjectID: "scheduler", Role: RoleSystem}
}

// IsStaff reports whether the caller may perform staff-only transitions.
func (id Identity) IsStaff() bool {
	return id.Role == RoleStaff || id.Role == RoleSystem
}
