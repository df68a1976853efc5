package shared

// Roles recognised by the HTTP layer.
const (
	// RoleOfficer covers scanning, posting movements and submitting counts.
	RoleOfficer = "officer"
	// RoleApprover may approve or reject opname corrections.
	RoleApprover = "approver"
)
