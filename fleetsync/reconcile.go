package fleetsync

import (
	"bytes"
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"net"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wevois/vm_backend/models"
	"gorm.io/gorm"
)

// sourceRecord is one flattened leaf of the remote payload. Path carries the
// ancestor keys for nested trees (issue id, part id, stock id); Key is the
// human-readable identifier used in diagnostics.
type sourceRecord struct {
	Key    string
	Path   []string
	Fields map[string]any
}

// upsertPlan is what an entity mapping produces for one record: the target
// model, the natural-key columns, the replaceable fields and any columns
// written only on create.
type upsertPlan struct {
	Model      any
	Keys       map[string]any
	Fields     map[string]any
	CreateOnly map[string]any
}

// entityConfig drives the shared reconciler. Per-entity policy (natural key,
// coercion, reference resolution, orphan handling) lives entirely in Flatten
// and Map; the loop itself is identical for every entity.
type entityConfig struct {
	Entity  string
	Route   string
	Paths   []string
	Flatten func(payloads []map[string]json.RawMessage) []sourceRecord
	Map     func(tx *gorm.DB, rec sourceRecord, diag *diagnostics) (*upsertPlan, error)
}

func companyRoot() string {
	root := strings.Trim(strings.TrimSpace(os.Getenv("SYNC_COMPANY_ROOT")), "/")
	if root == "" {
		root = "CompaniesData/wevois"
	}
	return root
}

// EntityConfigs returns the full entity-configuration table, one entry per
// sync endpoint.
func EntityConfigs() []entityConfig {
	root := companyRoot()
	return []entityConfig{
		issuesConfig(root),
		issuePartsConfig(root),
		partsConfig(root),
		vendorsConfig(root),
		vehiclesConfig(root),
		citiesConfig(root),
		rootCausesConfig(root),
		transferHistoryConfig(root),
	}
}

// reconcile runs one pass over the flattened payload. A record failure is
// recorded and the loop moves on; only infrastructure-level errors escape
// and roll the surrounding transaction back.
func reconcile(tx *gorm.DB, cfg entityConfig, payloads []map[string]json.RawMessage, sum *SyncSummary, diag *diagnostics) error {
	for _, rec := range cfg.Flatten(payloads) {
		plan, err := cfg.Map(tx, rec, diag)
		if err != nil {
			if isInfraError(err) {
				return err
			}
			var recErr *recordError
			if errors.As(err, &recErr) {
				diag.add(cfg.Entity, rec.Key, recErr.code, recErr.message)
			} else {
				diag.add(cfg.Entity, rec.Key, "invalid_record", err.Error())
			}
			continue
		}
		if plan == nil {
			continue
		}

		created, err := Upsert(tx, plan.Model, plan.Keys, plan.Fields, plan.CreateOnly)
		if err != nil {
			if isInfraError(err) {
				return err
			}
			diag.add(cfg.Entity, rec.Key, "upsert_failed", err.Error())
			continue
		}
		if created {
			sum.Created++
		} else {
			sum.Updated++
		}
	}
	return nil
}

// isInfraError separates storage/connectivity faults (which abort the batch
// and roll back) from per-record data problems (which do not).
func isInfraError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, gorm.ErrInvalidDB) || errors.Is(err, gorm.ErrInvalidTransaction) {
		return true
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// decodeRecord parses one raw document into a field map. Non-object values
// (scalar sentinels like "lastKey": 2 that the feed leaves behind) report
// false and are skipped silently, matching the source system's behavior.
func decodeRecord(raw json.RawMessage) (map[string]any, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, false
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, false
	}
	return fields, true
}

func sortedKeys(payload map[string]json.RawMessage) []string {
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// defaultFlatten turns a one-level payload into leaf records keyed by the
// remote document id.
func defaultFlatten(payloads []map[string]json.RawMessage) []sourceRecord {
	if len(payloads) == 0 {
		return nil
	}
	var out []sourceRecord
	for _, id := range sortedKeys(payloads[0]) {
		fields, ok := decodeRecord(payloads[0][id])
		if !ok {
			continue
		}
		out = append(out, sourceRecord{Key: id, Path: []string{id}, Fields: fields})
	}
	return out
}

func partsConfig(root string) entityConfig {
	return entityConfig{
		Entity:  "part",
		Route:   "parts",
		Paths:   []string{root + "/Parts"},
		Flatten: defaultFlatten,
		Map: func(tx *gorm.DB, rec sourceRecord, diag *diagnostics) (*upsertPlan, error) {
			return &upsertPlan{
				Model: &models.Part{},
				Keys:  map[string]any{"part_id": rec.Key},
				Fields: map[string]any{
					"code":                     StringFromAny(rec.Fields["code"]),
					"image":                    StringFromAny(rec.Fields["image"]),
					"is_return_required_value": StringFromAny(rec.Fields["isReturnRequiredValue"]),
					"name":                     StringFromAny(rec.Fields["name"]),
					"unit":                     StringFromAny(rec.Fields["unit"]),
				},
			}, nil
		},
	}
}

func vendorsConfig(root string) entityConfig {
	return entityConfig{
		Entity:  "vendor",
		Route:   "vendors",
		Paths:   []string{root + "/Vendors"},
		Flatten: defaultFlatten,
		Map: func(tx *gorm.DB, rec sourceRecord, diag *diagnostics) (*upsertPlan, error) {
			return &upsertPlan{
				Model: &models.Vendor{},
				Keys:  map[string]any{"firebase_id": rec.Key},
				Fields: map[string]any{
					"name":           StringFromAny(rec.Fields["name"]),
					"contact":        StringFromAny(rec.Fields["contact"]),
					"address":        StringFromAny(rec.Fields["address"]),
					"city":           StringFromAny(rec.Fields["city"]),
					"account_name":   StringFromAny(rec.Fields["Accountname"]),
					"account_number": StringFromAny(rec.Fields["Accountnumber"]),
					"bank_name":      StringFromAny(rec.Fields["BankName"]),
					"branch_name":    StringFromAny(rec.Fields["BranchName"]),
					"ifsc_code":      StringFromAny(rec.Fields["IfscCode"]),
					"upi_id":         StringFromAny(rec.Fields["UpiId"]),
				},
			}, nil
		},
	}
}

func vehiclesConfig(root string) entityConfig {
	return entityConfig{
		Entity:  "vehicle",
		Route:   "vehicles",
		Paths:   []string{root + "/VehicleData/Vehicle"},
		Flatten: defaultFlatten,
		Map: func(tx *gorm.DB, rec sourceRecord, diag *diagnostics) (*upsertPlan, error) {
			vehicleNo := strings.TrimSpace(StringFromAny(rec.Fields["vehicleNo"]))
			if vehicleNo == "" {
				return nil, errValidation("vehicle number missing")
			}
			return &upsertPlan{
				Model: &models.Vehicle{},
				Keys:  map[string]any{"vehicle_no": vehicleNo},
				Fields: map[string]any{
					"is_active":    FlexBool(rec.Fields["isActive"]),
					"current_city": StringFromAny(rec.Fields["currentCity"]),
				},
			}, nil
		},
	}
}

func citiesConfig(root string) entityConfig {
	return entityConfig{
		Entity: "city",
		Route:  "cities",
		Paths: []string{
			root + "/CityData/City",
			root + "/CityData/CityIncharge/Citywise",
		},
		// The incharge tree is keyed by the same city key as the city tree;
		// carry the raw incharge document along with each city record.
		Flatten: func(payloads []map[string]json.RawMessage) []sourceRecord {
			var incharges map[string]json.RawMessage
			if len(payloads) > 1 {
				incharges = payloads[1]
			}
			var out []sourceRecord
			for _, id := range sortedKeys(payloads[0]) {
				fields, ok := decodeRecord(payloads[0][id])
				if !ok {
					continue
				}
				if raw, ok := incharges[id]; ok {
					fields["_incharge"] = string(raw)
				}
				out = append(out, sourceRecord{Key: id, Path: []string{id}, Fields: fields})
			}
			return out
		},
		Map: func(tx *gorm.DB, rec sourceRecord, diag *diagnostics) (*upsertPlan, error) {
			name := strings.TrimSpace(StringFromAny(rec.Fields["name"]))
			if name == "" {
				return nil, errValidation("city name missing")
			}
			// Incharge is opaque passthrough; its shape belongs to the source.
			incharge, _ := rec.Fields["_incharge"].(string)
			return &upsertPlan{
				Model: &models.City{},
				Keys:  map[string]any{"name": name},
				Fields: map[string]any{
					"is_active":     FlexBool(rec.Fields["isActive"]),
					"city_incharge": incharge,
				},
			}, nil
		},
	}
}

func rootCausesConfig(root string) entityConfig {
	return entityConfig{
		Entity:  "root_cause",
		Route:   "root-causes",
		Paths:   []string{root + "/RootCauses"},
		Flatten: defaultFlatten,
		Map: func(tx *gorm.DB, rec sourceRecord, diag *diagnostics) (*upsertPlan, error) {
			return &upsertPlan{
				Model: &models.RootCause{},
				Keys:  map[string]any{"firebase_id": rec.Key},
				Fields: map[string]any{
					"name":          StringFromAny(rec.Fields["name"]),
					"created_by_id": StringFromAny(rec.Fields["CreatedById"]),
				},
			}, nil
		},
	}
}

func issuesConfig(root string) entityConfig {
	return entityConfig{
		Entity:  "issue",
		Route:   "issues",
		Paths:   []string{root + "/VehicleIssues/Issues"},
		Flatten: defaultFlatten,
		Map:     mapIssue,
	}
}

func mapIssue(tx *gorm.DB, rec sourceRecord, diag *diagnostics) (*upsertPlan, error) {
	f := rec.Fields

	repairCost, err := parsedDecimal(f["repairCost"], "repairCost")
	if err != nil {
		return nil, err
	}
	workingHrs := HoursFromAny(f["workingHrs"])
	if !workingHrs.Valid && strings.TrimSpace(StringFromAny(f["workingHrs"])) != "" {
		return nil, errValidation("uncoercible workingHrs %q", StringFromAny(f["workingHrs"]))
	}
	unpaidBills, err := parsedDecimal(f["unpaidBills"], "unpaidBills")
	if err != nil {
		return nil, err
	}

	fields := map[string]any{
		"vehicle":                  StringFromAny(f["vehicle"]),
		"vehicle_issue":            StringFromAny(f["vehicleIssue"]),
		"can_run_in_ward":          StringFromAny(f["canRunInWard"]),
		"can_run_in_ward_resolved": StringFromAny(f["canRunInWardResolved"]),
		"city":                     StringFromAny(f["city"]),
		"driver_id":                StringFromAny(f["driverId"]),
		"driver_name":              StringFromAny(f["driverName"]),
		"mechanic_name":            StringFromAny(f["mechanicName"]),
		"job_card_id":              StringFromAny(f["jobCardId"]),
		"repair_cost":              repairCost,
		"resolved_date":            DateTimeFromAny(f["resolvedDate"]),
		"resolved_description":     StringFromAny(f["resolvedDescription"]),
		"root_causes":              StringFromAny(f["rootCauses"]),
		"working_hrs":              workingHrs,
		"is_bill_available":        StringFromAny(f["isBillAvailable"]),
		"status":                   StringFromAny(f["status"]),
		"reopen_key":               StringFromAny(f["reopenKey"]),
		"update_key":               StringFromAny(f["updateKey"]),
		"confirm_by":               StringFromAny(f["confirmBy"]),
		"confirm_date":             DateTimeFromAny(f["confirmDate"]),
		"created_by":               StringFromAny(f["createdBy"]),
		"created_time":             ClockFromAny(f["createdTime"]),
		"creation_date":            DateFromAny(f["creationDate"]),
		"date":                     DateFromAny(f["date"]),
		"description":              StringFromAny(f["description"]),
	}
	if unpaidBills.Valid {
		fields["unpaid_bills"] = unpaidBills.Decimal
	}

	return &upsertPlan{
		Model:      &models.Issue{},
		Keys:       map[string]any{"firebase_id": rec.Key},
		Fields:     fields,
		CreateOnly: map[string]any{"created_at": time.Now().In(ReferenceZone())},
	}, nil
}

// parsedDecimal distinguishes "absent" (stored as null) from "present but
// malformed" (a record-level validation error).
func parsedDecimal(v any, field string) (decimal.NullDecimal, error) {
	d := DecimalFromAny(v)
	if !d.Valid && strings.TrimSpace(StringFromAny(v)) != "" {
		return decimal.NullDecimal{}, errValidation("uncoercible %s %q", field, StringFromAny(v))
	}
	return d, nil
}

func issuePartsConfig(root string) entityConfig {
	return entityConfig{
		Entity: "issue_part",
		Route:  "issue-parts",
		Paths:  []string{root + "/VehicleIssues/Issues"},
		// Two levels down: Issues/{issue}/parts/{part}/{stock} -> details.
		Flatten: func(payloads []map[string]json.RawMessage) []sourceRecord {
			if len(payloads) == 0 {
				return nil
			}
			var out []sourceRecord
			for _, issueID := range sortedKeys(payloads[0]) {
				issueFields, ok := decodeRecord(payloads[0][issueID])
				if !ok {
					continue
				}
				parts, ok := issueFields["parts"].(map[string]any)
				if !ok {
					continue
				}
				for _, partID := range sortedFieldKeys(parts) {
					stockEntries, ok := parts[partID].(map[string]any)
					if !ok {
						continue
					}
					for _, stockID := range sortedFieldKeys(stockEntries) {
						details, ok := stockEntries[stockID].(map[string]any)
						if !ok {
							continue
						}
						out = append(out, sourceRecord{
							Key:    issueID + "/" + partID + "/" + stockID,
							Path:   []string{issueID, partID, stockID},
							Fields: details,
						})
					}
				}
			}
			return out
		},
		Map: mapIssuePart,
	}
}

func mapIssuePart(tx *gorm.DB, rec sourceRecord, diag *diagnostics) (*upsertPlan, error) {
	issueID, partID, stockID := rec.Path[0], rec.Path[1], rec.Path[2]

	var issue models.Issue
	if err := tx.Where("firebase_id = ?", issueID).Take(&issue).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errReferenceMissing("issue '%s' not synced yet", issueID)
		}
		return nil, err
	}
	var part models.Part
	if err := tx.Where("part_id = ?", partID).Take(&part).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errReferenceMissing("part '%s' not synced yet", partID)
		}
		return nil, err
	}

	qty := DecimalFromAny(rec.Fields["qty"])
	if !qty.Valid || qty.Decimal.IntPart() <= 0 {
		return nil, errValidation("invalid qty %q", StringFromAny(rec.Fields["qty"]))
	}
	perUnit := DecimalFromAny(rec.Fields["amount"])
	if !perUnit.Valid {
		return nil, errValidation("missing amount")
	}
	// The feed's "amount" is per unit; the stored amount is always
	// per-unit times quantity, computed here and nowhere else.
	amount := perUnit.Decimal.Mul(qty.Decimal)
	if amount.Sign() <= 0 {
		return nil, errValidation("non-positive amount %s", amount.String())
	}

	price := DecimalFromAny(rec.Fields["price"]).Decimal

	return &upsertPlan{
		Model: &models.IssuePart{},
		Keys: map[string]any{
			"firebase_id": issue.FirebaseId,
			"part_id":     part.ID,
			"stock":       stockID,
		},
		Fields: map[string]any{
			"qty":         qty.Decimal.IntPart(),
			"price":       price,
			"amount":      amount,
			"purchase_id": StringFromAny(rec.Fields["purchaseId"]),
		},
	}, nil
}

func transferHistoryConfig(root string) entityConfig {
	return entityConfig{
		Entity: "city_transfer",
		Route:  "transfer-history",
		Paths: []string{
			root + "/VehicleData/Vehicle",
			root + "/VehicleData/CityTransferHistory",
		},
		// Transfer records are keyed by the vehicle's document id, not its
		// number; join the two trees and tag each leaf with the vehicle number.
		Flatten: func(payloads []map[string]json.RawMessage) []sourceRecord {
			var transfers map[string]json.RawMessage
			if len(payloads) > 1 {
				transfers = payloads[1]
			}
			var out []sourceRecord
			for _, vehicleID := range sortedKeys(payloads[0]) {
				vehicleFields, ok := decodeRecord(payloads[0][vehicleID])
				if !ok {
					continue
				}
				vehicleNo := strings.TrimSpace(StringFromAny(vehicleFields["vehicleNo"]))
				if vehicleNo == "" {
					continue
				}
				raw, ok := transfers[vehicleID]
				if !ok {
					continue
				}
				records, ok := decodeRecord(raw)
				if !ok {
					continue
				}
				for _, recID := range sortedFieldKeys(records) {
					fields, ok := records[recID].(map[string]any)
					if !ok {
						continue
					}
					fields["_vehicleNo"] = vehicleNo
					out = append(out, sourceRecord{
						Key:    vehicleNo + "/" + recID,
						Path:   []string{vehicleID, recID},
						Fields: fields,
					})
				}
			}
			return out
		},
		Map: mapCityTransfer,
	}
}

func mapCityTransfer(tx *gorm.DB, rec sourceRecord, diag *diagnostics) (*upsertPlan, error) {
	vehicleNo, _ := rec.Fields["_vehicleNo"].(string)

	var vehicle models.Vehicle
	if err := tx.Where("vehicle_no = ?", vehicleNo).Take(&vehicle).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Deliberate: no transfer history for vehicles we do not know.
			return nil, errReferenceMissing("vehicle '%s' not synced yet", vehicleNo)
		}
		return nil, err
	}

	at := DateTimeFromAny(rec.Fields["_at"])
	if at == nil {
		return nil, errValidation("unparsable transfer timestamp %q", StringFromAny(rec.Fields["_at"]))
	}

	return &upsertPlan{
		Model: &models.CityTransferHistory{},
		Keys: map[string]any{
			"vehicle_id":     vehicle.ID,
			"transferred_at": *at,
		},
		Fields: map[string]any{
			"new_city":       StringFromAny(rec.Fields["newCity"]),
			"transferred_by": StringFromAny(rec.Fields["_by"]),
		},
	}, nil
}

func sortedFieldKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
