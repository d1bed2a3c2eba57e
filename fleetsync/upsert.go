package fleetsync

import (
	"errors"
	"fmt"
	"reflect"

	"gorm.io/gorm"
)

// ErrInvalidKey is returned when a natural-key column resolves to an empty
// value. The engine refuses to create rows with null keys; entities whose
// schema allows a null reference (orphaned issue parts) handle that before
// calling in.
var ErrInvalidKey = errors.New("invalid natural key")

// Upsert finds the row of model whose columns match keys exactly and
// overwrites the supplied fields, or creates the row when no match exists.
// Only supplied fields are touched on update; createOnly columns are written
// solely on the create path (audit timestamps and the like). Reports whether
// a create happened.
//
// No locking here: concurrent runs racing on the same key are arbitrated by
// the storage layer's transaction isolation alone.
func Upsert(tx *gorm.DB, model any, keys map[string]any, fields map[string]any, createOnly map[string]any) (bool, error) {
	for col, v := range keys {
		if isEmptyKeyValue(v) {
			return false, fmt.Errorf("%w: %s is empty", ErrInvalidKey, col)
		}
	}

	res := tx.Model(model).Where(keys).Limit(1).Find(model)
	if res.Error != nil {
		return false, res.Error
	}

	if res.RowsAffected > 0 {
		if len(fields) == 0 {
			return false, nil
		}
		if err := tx.Model(model).Where(keys).Updates(fields).Error; err != nil {
			return false, err
		}
		return false, nil
	}

	row := make(map[string]any, len(keys)+len(fields)+len(createOnly))
	for col, v := range keys {
		row[col] = v
	}
	for col, v := range fields {
		row[col] = v
	}
	for col, v := range createOnly {
		row[col] = v
	}
	if err := tx.Model(model).Create(row).Error; err != nil {
		return false, err
	}
	return true, nil
}

func isEmptyKeyValue(v any) bool {
	if v == nil {
		return true
	}
	switch val := v.(type) {
	case string:
		return val == ""
	case *string:
		return val == nil || *val == ""
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr {
		return rv.IsNil()
	}
	return false
}
