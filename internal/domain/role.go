package domain

// Role type for API authorization. Tokens are issued by the external auth
// system; this service only reads the claim.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)
