package models

type Vendor struct {
	ID         uint   `gorm:"primary_key" json:"id"`
	FirebaseId string `gorm:"uniqueIndex;size:255;not null" json:"firebase_id"`
	Name       string `gorm:"size:255" json:"name"`
	Contact    string `gorm:"size:50" json:"contact"`
	Address    string `gorm:"type:text" json:"address"`
	City       string `gorm:"size:100" json:"city"`

	AccountName   string `gorm:"size:255" json:"account_name"`
	AccountNumber string `gorm:"size:100" json:"account_number"`
	BankName      string `gorm:"size:255" json:"bank_name"`
	BranchName    string `gorm:"size:255" json:"branch_name"`
	IfscCode      string `gorm:"size:50" json:"ifsc_code"`
	UpiId         string `gorm:"size:100" json:"upi_id"`
}
