package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Issue mirrors CompaniesData/wevois/VehicleIssues/Issues. The vehicle
// reference is a plain string, not a foreign key: the source feed may name
// vehicles that have not been synced yet, and the link must not break ingestion.
type Issue struct {
	ID                   uint                `gorm:"primary_key" json:"id"`
	FirebaseId           string              `gorm:"uniqueIndex;size:255;not null" json:"firebase_id"`
	Vehicle              string              `gorm:"size:255" json:"vehicle"`
	VehicleIssue         string              `gorm:"type:text" json:"vehicle_issue"`
	CanRunInWard         string              `gorm:"size:255" json:"can_run_in_ward"`
	CanRunInWardResolved string              `gorm:"size:255" json:"can_run_in_ward_resolved"`
	City                 string              `gorm:"size:255" json:"city"`
	DriverId             string              `gorm:"size:255" json:"driver_id"`
	DriverName           string              `gorm:"size:255" json:"driver_name"`
	MechanicName         string              `gorm:"size:255" json:"mechanic_name"`
	JobCardId            string              `gorm:"size:255" json:"job_card_id"`
	RepairCost           decimal.NullDecimal `gorm:"type:decimal(10,2)" json:"repair_cost"`
	ResolvedDate         *time.Time          `json:"resolved_date"`
	ResolvedDescription  string              `gorm:"type:text" json:"resolved_description"`
	RootCauses           string              `gorm:"type:text" json:"root_causes"`
	WorkingHrs           decimal.NullDecimal `gorm:"type:decimal(6,2)" json:"working_hrs"`
	IsBillAvailable      string              `gorm:"size:255" json:"is_bill_available"`
	UnpaidBills          decimal.Decimal     `gorm:"type:decimal(10,2);default:0" json:"unpaid_bills"`
	Status               string              `gorm:"size:255" json:"status"`
	ReopenKey            string              `gorm:"size:255" json:"reopen_key"`
	UpdateKey            string              `gorm:"size:255" json:"update_key"`
	ConfirmBy            string              `gorm:"size:255" json:"confirm_by"`
	ConfirmDate          *time.Time          `json:"confirm_date"`
	CreatedBy            string              `gorm:"size:255" json:"created_by"`
	CreatedTime          string              `gorm:"size:8" json:"created_time"`
	CreationDate         *time.Time          `gorm:"type:date" json:"creation_date"`
	Date                 *time.Time          `gorm:"type:date" json:"date"`
	Description          string              `gorm:"type:text" json:"description"`
	CreatedAt            time.Time           `json:"created_at"`

	IssueParts []IssuePart `gorm:"foreignKey:IssueFirebaseId;references:FirebaseId" json:"issue_parts,omitempty"`
}

// IssuePart links an issue (by its remote natural key, nullable so rows
// survive parent deletion) to a part. Amount is computed at write time as
// price-per-unit times quantity and is never re-derived afterwards.
type IssuePart struct {
	ID              uint            `gorm:"primary_key" json:"id"`
	IssueFirebaseId *string         `gorm:"column:firebase_id;uniqueIndex:idx_issue_part_stock,priority:1,length:128;size:255" json:"issue_firebase_id"`
	PartId          uint            `gorm:"uniqueIndex:idx_issue_part_stock,priority:2;not null" json:"part_id"`
	Part            *Part           `gorm:"constraint:OnDelete:CASCADE" json:"part,omitempty"`
	Stock           string          `gorm:"uniqueIndex:idx_issue_part_stock,priority:3,length:64;size:255" json:"stock"`
	Qty             uint            `json:"qty"`
	Price           decimal.Decimal `gorm:"type:decimal(10,2)" json:"price"`
	Amount          decimal.Decimal `gorm:"type:decimal(20,2)" json:"amount"`
	PurchaseId      string          `gorm:"size:255" json:"purchase_id"`
}
