package model

// RoleAdmin is the role string granting access to every booking.
const RoleAdmin = "admin"

// Identity is the caller as reported by the identity verifier.
type Identity struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// IsAdmin reports whether the caller holds the administrative role.
func (i Identity) IsAdmin() bool { return i.Role == RoleAdmin }

// CanManage reports whether the caller may act on a resource owned by
// ownerID: administrators may act on anything, others only on their own.
func (i Identity) CanManage(ownerID string) bool {
	if i.ID == "" {
		return false
	}
	return i.IsAdmin() || i.ID == ownerID
}
