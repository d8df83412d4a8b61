package model

import "strings"

// Health regions used for site ownership and report scoping.
const (
	RegionInterior         = "Interior"
	RegionFraser           = "Fraser"
	RegionVancouverCoastal = "Vancouver Coastal"
	RegionVancouverIsland  = "Vancouver Island"
	RegionNorthern         = "Northern"
)

// Regions lists every health region in display order.
var Regions = []string{
	RegionInterior,
	RegionFraser,
	RegionVancouverCoastal,
	RegionVancouverIsland,
	RegionNorthern,
}

// NormalizeRegion maps a case-insensitive name or slug ("vancouver_coastal",
// "vancouver-island") to its canonical region.  ok is false for unknown input.
func NormalizeRegion(raw string) (string, bool) {
	key := strings.NewReplacer("_", " ", "-", " ").Replace(strings.TrimSpace(raw))
	for _, r := range Regions {
		if strings.EqualFold(r, key) {
			return r, true
		}
	}
	return "", false
}
