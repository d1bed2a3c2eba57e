package models

// City mirrors CityData/City from the remote store. The incharge payload is
// stored verbatim as JSON text; its shape is owned by the source system.
type City struct {
	ID           uint   `gorm:"primary_key" json:"id"`
	Name         string `gorm:"uniqueIndex;size:155;not null" json:"name"`
	IsActive     bool   `gorm:"default:true" json:"is_active"`
	CityIncharge string `gorm:"type:text" json:"city_incharge"`
}
