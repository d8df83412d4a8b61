package auth

import (
	"slices"
	"strings"

	"github.com/iliyamo/hcap-portal/internal/model"
)

// ContextKey is the echo.Context key the resolved Actor is stored under.
const ContextKey = "actor"

// regionRolePrefix marks realm roles granting a health region, e.g.
// "region_fraser".
const regionRolePrefix = "region_"

// Actor is the authenticated caller, resolved once per request and passed
// down to services.
type Actor struct {
	ID       string   `json:"id"`       // Keycloak subject
	Username string   `json:"username"` // preferred_username claim
	Email    string   `json:"email"`
	Role     Role     `json:"role"`
	Regions  []string `json:"regions"` // canonical region names
	Sites    []int64  `json:"sites"`   // employer_sites.id values the actor may act on
}

// NewActor picks the highest-priority portal role from realmRoles and
// collects the region roles.  An actor with no recognised role has no
// capabilities.
func NewActor(id, username, email string, realmRoles []string, sites []int64) Actor {
	a := Actor{ID: id, Username: username, Email: email, Sites: sites}
	held := make(map[Role]bool, len(realmRoles))
	for _, raw := range realmRoles {
		if r, ok := ParseRole(raw); ok {
			held[r] = true
			continue
		}
		if strings.HasPrefix(raw, regionRolePrefix) {
			if region, ok := model.NormalizeRegion(strings.TrimPrefix(raw, regionRolePrefix)); ok && !slices.Contains(a.Regions, region) {
				a.Regions = append(a.Regions, region)
			}
		}
	}
	for _, r := range rolePriority {
		if held[r] {
			a.Role = r
			break
		}
	}
	return a
}

// Can reports whether the actor's role grants c.
func (a Actor) Can(c Capability) bool { return a.Role.Capabilities().Has(c) }

// CanViewRegion reports whether report data for region is visible.
func (a Actor) CanViewRegion(region string) bool {
	if a.Can(CanViewAllRegions) {
		return true
	}
	if !a.Can(CanViewReports) {
		return false
	}
	canonical, ok := model.NormalizeRegion(region)
	return ok && slices.Contains(a.Regions, canonical)
}

// RegionScope returns the regions queries must be limited to, or nil when
// the actor sees all of them.
func (a Actor) RegionScope() []string {
	if a.Can(CanViewAllRegions) {
		return nil
	}
	if a.Regions == nil {
		return []string{}
	}
	return a.Regions
}

// HasSite reports whether the actor may act on the given employer site.
func (a Actor) HasSite(siteID int64) bool {
	return a.Role.IsMinistry() || slices.Contains(a.Sites, siteID)
}
