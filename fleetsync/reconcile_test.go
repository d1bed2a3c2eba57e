package fleetsync

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func payload(docs map[string]string) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(docs))
	for k, v := range docs {
		out[k] = json.RawMessage(v)
	}
	return out
}

func TestDefaultFlattenSkipsScalarSentinels(t *testing.T) {
	recs := defaultFlatten([]map[string]json.RawMessage{payload(map[string]string{
		"-Nb":     `{"name":"Belt"}`,
		"-Na":     `{"name":"Filter"}`,
		"lastKey": `2`,
		"note":    `"free text"`,
	})})
	if len(recs) != 2 {
		t.Fatalf("got %d records; want 2", len(recs))
	}
	if recs[0].Key != "-Na" || recs[1].Key != "-Nb" {
		t.Errorf("records not in key order: %q, %q", recs[0].Key, recs[1].Key)
	}
	if recs[0].Fields["name"] != "Filter" {
		t.Errorf("fields not decoded: %#v", recs[0].Fields)
	}
}

func TestIssuePartsFlattenTwoLevels(t *testing.T) {
	cfg := issuePartsConfig("CompaniesData/wevois")
	recs := cfg.Flatten([]map[string]json.RawMessage{payload(map[string]string{
		"-Issue1": `{
			"vehicle": "RJ14-1001",
			"parts": {
				"-Part1": {
					"StockA": {"qty": "2", "amount": "150"},
					"StockB": {"qty": "1", "amount": "90"}
				},
				"-Part2": {
					"StockA": {"qty": "4", "amount": "25"}
				}
			}
		}`,
		"-Issue2": `{"vehicle": "RJ14-1002"}`,
		"count":   `2`,
	})})
	if len(recs) != 3 {
		t.Fatalf("got %d leaf records; want 3", len(recs))
	}
	first := recs[0]
	if first.Key != "-Issue1/-Part1/StockA" {
		t.Errorf("key = %q", first.Key)
	}
	if len(first.Path) != 3 || first.Path[0] != "-Issue1" || first.Path[1] != "-Part1" || first.Path[2] != "StockA" {
		t.Errorf("path = %v", first.Path)
	}
	if StringFromAny(first.Fields["qty"]) != "2" {
		t.Errorf("qty = %#v", first.Fields["qty"])
	}
}

func TestTransferHistoryFlattenJoinsVehicleNumber(t *testing.T) {
	cfg := transferHistoryConfig("CompaniesData/wevois")
	recs := cfg.Flatten([]map[string]json.RawMessage{
		payload(map[string]string{
			"veh1": `{"vehicleNo": "RJ14-1001"}`,
			"veh2": `{"vehicleNo": "RJ14-1002"}`,
			"veh3": `{"currentCity": "Jaipur"}`,
		}),
		payload(map[string]string{
			"veh1": `{
				"t1": {"_at": "2023-06-15T10:30:00", "_by": "admin", "newCity": "Jaipur"},
				"t2": {"_at": "2023-07-01T08:00:00", "_by": "admin", "newCity": "Kota"}
			}`,
		}),
	})
	if len(recs) != 2 {
		t.Fatalf("got %d records; want 2", len(recs))
	}
	if recs[0].Key != "RJ14-1001/t1" {
		t.Errorf("key = %q", recs[0].Key)
	}
	if recs[0].Fields["_vehicleNo"] != "RJ14-1001" {
		t.Errorf("vehicle number not joined: %#v", recs[0].Fields)
	}
}

func TestCitiesFlattenCarriesIncharge(t *testing.T) {
	cfg := citiesConfig("CompaniesData/wevois")
	recs := cfg.Flatten([]map[string]json.RawMessage{
		payload(map[string]string{
			"city1": `{"name": "Jaipur", "isActive": "true"}`,
			"city2": `{"name": "Kota", "isActive": "false"}`,
		}),
		payload(map[string]string{
			"city1": `{"incharge": "Ravi", "phone": "9999"}`,
		}),
	})
	if len(recs) != 2 {
		t.Fatalf("got %d records; want 2", len(recs))
	}
	if recs[0].Fields["_incharge"] == nil {
		t.Error("city1 should carry the raw incharge document")
	}
	if _, ok := recs[1].Fields["_incharge"]; ok {
		t.Error("city2 has no incharge document")
	}

	plan, err := cfg.Map(nil, recs[0], &diagnostics{})
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	if plan.Keys["name"] != "Jaipur" {
		t.Errorf("keys = %#v", plan.Keys)
	}
	if plan.Fields["is_active"] != true {
		t.Errorf("is_active = %#v", plan.Fields["is_active"])
	}
	if plan.Fields["city_incharge"] == "" {
		t.Error("city_incharge should hold the raw incharge JSON")
	}
}

func TestVehicleMapRejectsMissingNumber(t *testing.T) {
	cfg := vehiclesConfig("CompaniesData/wevois")

	_, err := cfg.Map(nil, sourceRecord{Key: "veh1", Fields: map[string]any{"currentCity": "Jaipur"}}, &diagnostics{})
	var recErr *recordError
	if !errors.As(err, &recErr) || recErr.code != "invalid_record" {
		t.Fatalf("expected an invalid_record error, got %v", err)
	}

	plan, err := cfg.Map(nil, sourceRecord{Key: "veh1", Fields: map[string]any{
		"vehicleNo":   " RJ14-1001 ",
		"isActive":    "true",
		"currentCity": "Jaipur",
	}}, &diagnostics{})
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	if plan.Keys["vehicle_no"] != "RJ14-1001" {
		t.Errorf("keys = %#v", plan.Keys)
	}
	if plan.Fields["is_active"] != true || plan.Fields["current_city"] != "Jaipur" {
		t.Errorf("fields = %#v", plan.Fields)
	}
}

func TestIssueMapCoercions(t *testing.T) {
	rec := sourceRecord{Key: "-Issue1", Fields: map[string]any{
		"vehicle":      "RJ14-1001",
		"repairCost":   "1500.50",
		"workingHrs":   "2:30",
		"status":       "Resolved",
		"resolvedDate": "2023-06-15T10:30:00",
		"createdTime":  "10:30",
		"creationDate": "2023-06-15",
	}}
	plan, err := mapIssue(nil, rec, &diagnostics{})
	if err != nil {
		t.Fatalf("mapIssue: %v", err)
	}
	if plan.Keys["firebase_id"] != "-Issue1" {
		t.Errorf("keys = %#v", plan.Keys)
	}

	cost := plan.Fields["repair_cost"].(decimal.NullDecimal)
	if !cost.Valid || cost.Decimal.String() != "1500.5" {
		t.Errorf("repair_cost = %+v", cost)
	}
	hrs := plan.Fields["working_hrs"].(decimal.NullDecimal)
	if !hrs.Valid || !hrs.Decimal.Equal(decimal.NewFromFloat(2.5)) {
		t.Errorf("working_hrs = %+v", hrs)
	}
	if plan.Fields["created_time"] != "10:30:00" {
		t.Errorf("created_time = %#v", plan.Fields["created_time"])
	}
	if plan.Fields["resolved_date"] == nil {
		t.Error("resolved_date should be parsed")
	}
	if plan.CreateOnly["created_at"] == nil {
		t.Error("created_at should be set on create only")
	}
	if _, ok := plan.Fields["unpaid_bills"]; ok {
		t.Error("absent unpaidBills should not be written")
	}
}

func TestIssueMapRejectsUncoercibleDecimal(t *testing.T) {
	rec := sourceRecord{Key: "-Issue1", Fields: map[string]any{
		"vehicle":    "RJ14-1001",
		"repairCost": "abc",
	}}
	_, err := mapIssue(nil, rec, &diagnostics{})
	var recErr *recordError
	if !errors.As(err, &recErr) || recErr.code != "invalid_record" {
		t.Fatalf("expected an invalid_record error, got %v", err)
	}

	// Absent is fine; stored as null.
	rec.Fields["repairCost"] = ""
	plan, err := mapIssue(nil, rec, &diagnostics{})
	if err != nil {
		t.Fatalf("mapIssue with empty repairCost: %v", err)
	}
	if cost := plan.Fields["repair_cost"].(decimal.NullDecimal); cost.Valid {
		t.Errorf("empty repairCost should be absent, got %s", cost.Decimal.String())
	}
}

func TestIsInfraError(t *testing.T) {
	if isInfraError(errValidation("bad record")) {
		t.Error("a validation error is not infrastructure")
	}
	if !isInfraError(errors.Join(errValidation("x"), errTimeout{})) {
		t.Error("a net timeout is infrastructure")
	}
}

type errTimeout struct{}

func (errTimeout) Error() string   { return "timeout" }
func (errTimeout) Timeout() bool   { return true }
func (errTimeout) Temporary() bool { return true }
