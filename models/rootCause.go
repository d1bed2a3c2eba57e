package models

type RootCause struct {
	ID          uint   `gorm:"primary_key" json:"id"`
	FirebaseId  string `gorm:"uniqueIndex;size:255;not null" json:"firebase_id"`
	Name        string `gorm:"size:255" json:"name"`
	CreatedById string `gorm:"size:25" json:"created_by_id"`
}
