package models

// Part mirrors CompaniesData/wevois/Parts. The return-required flag comes
// through as free text in the source feed and is kept string-typed on purpose.
type Part struct {
	ID                    uint   `gorm:"primary_key" json:"id"`
	PartId                string `gorm:"uniqueIndex;size:255;not null" json:"part_id"`
	Code                  string `gorm:"size:255" json:"code"`
	Name                  string `gorm:"size:255" json:"name"`
	Unit                  string `gorm:"size:255" json:"unit"`
	Image                 string `gorm:"size:255" json:"image"`
	IsReturnRequiredValue string `gorm:"size:255" json:"is_return_required_value"`
}
