package domain

// OperatorRole controls what an operator may do through the HTTP API.
type OperatorRole string

const (
	OperatorRoleOwner  OperatorRole = "OWNER"
	OperatorRoleViewer OperatorRole = "VIEWER"
)

// ParseOperatorRole maps configuration strings to roles.
func ParseOperatorRole(raw string) (OperatorRole, bool) {
	switch raw {
	case "owner", "OWNER":
		return OperatorRoleOwner, true
	case "viewer", "VIEWER":
		return OperatorRoleViewer, true
	}
	return "", false
}

// Operator is a configured HTTP API account.
type Operator struct {
	Username     string
	Role         OperatorRole
	PasswordHash string
}
