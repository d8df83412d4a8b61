// Package auth resolves who is calling the API and what they may do.  Roles
// come from Keycloak realm roles and are closed over a fixed enum; each role
// maps to a capability set that handlers and services check instead of
// comparing role strings.
package auth

// Role is a Keycloak realm role recognised by the portal.
type Role string

const (
	RoleSuperuser       Role = "superuser"
	RoleMinistry        Role = "ministry_of_health"
	RoleHealthAuthority Role = "health_authority"
	RoleEmployer        Role = "employer"
	RoleParticipant     Role = "participant"
)

// rolePriority decides which role wins when a token carries several.
var rolePriority = []Role{
	RoleSuperuser,
	RoleMinistry,
	RoleHealthAuthority,
	RoleEmployer,
	RoleParticipant,
}

// Capability is a bit set of permissions derived from a role.
type Capability uint16

const (
	CanTransition Capability = 1 << iota
	CanArchive
	CanManageROS
	CanCorrectROS
	CanViewReports
	CanViewAllRegions
	CanManageSites
	CanManageUsers
	CanEditParticipants
)

var roleCapabilities = map[Role]Capability{
	RoleSuperuser: CanTransition | CanArchive | CanManageROS | CanCorrectROS | CanViewReports |
		CanViewAllRegions | CanManageSites | CanManageUsers | CanEditParticipants,
	RoleMinistry: CanTransition | CanArchive | CanManageROS | CanCorrectROS | CanViewReports |
		CanViewAllRegions | CanManageSites | CanManageUsers | CanEditParticipants,
	RoleHealthAuthority: CanTransition | CanArchive | CanManageROS | CanViewReports,
	RoleEmployer:        CanTransition | CanArchive | CanManageROS,
	RoleParticipant:     0,
}

// Capabilities returns the permission set granted to r.  Unknown roles get
// nothing.
func (r Role) Capabilities() Capability { return roleCapabilities[r] }

// Has reports whether every bit of want is present in c.
func (c Capability) Has(want Capability) bool { return want != 0 && c&want == want }

// IsMinistry reports whether r sees every site and region.
func (r Role) IsMinistry() bool { return r == RoleMinistry || r == RoleSuperuser }

// ParseRole maps a realm role name to a Role.
func ParseRole(s string) (Role, bool) {
	for _, r := range rolePriority {
		if string(r) == s {
			return r, true
		}
	}
	return "", false
}
