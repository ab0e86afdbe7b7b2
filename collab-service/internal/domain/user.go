package domain

// Role is a marketplace role.
type Role string

const (
	RoleClient     Role = "client"
	RoleContractor Role = "contractor"
	RoleSupplier   Role = "supplier"
	RoleAdmin      Role = "admin"
)

// ProviderRoles are the roles allowed to bid.
var ProviderRoles = []Role{RoleContractor, RoleSupplier}

func (r Role) Valid() bool {
	switch r {
	case RoleClient, RoleContractor, RoleSupplier, RoleAdmin:
		return true
	}
	return false
}

// IsProvider reports whether the role is a service provider.
func (r Role) IsProvider() bool {
	return r == RoleContractor || r == RoleSupplier
}

type User struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName,omitempty"`
	Role        Role   `json:"role"`
	Points      int64  `json:"points"`
}

// Name returns the display name, falling back to the username.
func (u *User) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Username
}

// Actor is the authenticated caller of a ledger or dispatcher operation.
type Actor struct {
	ID   int64
	Name string
	Role Role
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}
