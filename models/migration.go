package models

import (
	"log"

	"github.com/wevois/vm_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&City{}, &Vehicle{}, &CityTransferHistory{},
		&Part{}, &Vendor{}, &RootCause{},
		&Issue{}, &IssuePart{},
		&SyncRun{}, &SyncRunError{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
