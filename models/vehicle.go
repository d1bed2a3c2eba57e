package models

import "time"

type Vehicle struct {
	ID          uint   `gorm:"primary_key" json:"id"`
	VehicleNo   string `gorm:"uniqueIndex;size:255;not null" json:"vehicle_no"`
	CurrentCity string `gorm:"size:255" json:"current_city"`
	IsActive    bool   `gorm:"default:true" json:"is_active"`

	TransferHistory []CityTransferHistory `gorm:"foreignKey:VehicleId" json:"transfer_history,omitempty"`
}

// CityTransferHistory keeps one row per (vehicle, timestamp); replaying the
// remote snapshot must not duplicate rows.
type CityTransferHistory struct {
	ID            uint      `gorm:"primary_key" json:"id"`
	VehicleId     uint      `gorm:"uniqueIndex:idx_vehicle_transferred_at,priority:1;not null" json:"vehicle_id"`
	Vehicle       *Vehicle  `gorm:"constraint:OnDelete:CASCADE" json:"vehicle,omitempty"`
	NewCity       string    `gorm:"size:255" json:"new_city"`
	TransferredAt time.Time `gorm:"uniqueIndex:idx_vehicle_transferred_at,priority:2;not null" json:"transferred_at"`
	TransferredBy string    `gorm:"size:255" json:"transferred_by"`
}
