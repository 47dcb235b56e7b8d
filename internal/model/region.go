package model

// Region is a first-level administrative unit (IBGE "UF").
type Region struct {
	ID           int64  `json:"id" db:"id"`
	Code         string `json:"code" db:"code"`
	Name         string `json:"name" db:"name"`
	Abbreviation string `json:"abbreviation" db:"abbreviation"`
	Macroregion  string `json:"macroregion" db:"macroregion"`
}

// RegionUpdate lists the mutable fields of a Region.
type RegionUpdate struct {
	Name         string
	Abbreviation string
	Macroregion  string
}

// Update returns the mutable fields of r.
func (r Region) Update() RegionUpdate {
	return RegionUpdate{Name: r.Name, Abbreviation: r.Abbreviation, Macroregion: r.Macroregion}
}

// DefaultCountry is stored on every sub-region.
const DefaultCountry = "Brasil"

// SubRegion is a municipality owned by a Region.
type SubRegion struct {
	ID       int64  `json:"id" db:"id"`
	Code     string `json:"code" db:"code"`
	Name     string `json:"name" db:"name"`
	RegionID int64  `json:"region_id" db:"region_id"`
	// RegionCode is the owning Region's natural code as reported by the
	// source. It is resolved to RegionID before persisting.
	RegionCode string `json:"region_code,omitempty" db:"-"`
	Country    string `json:"country" db:"country"`
}

// SubRegionUpdate lists the mutable fields of a SubRegion.
type SubRegionUpdate struct {
	Name     string
	RegionID int64
	Country  string
}

// Update returns the mutable fields of s.
func (s SubRegion) Update() SubRegionUpdate {
	return SubRegionUpdate{Name: s.Name, RegionID: s.RegionID, Country: s.Country}
}
