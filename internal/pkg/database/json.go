package database

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// JSON stores V as a JSON document column (jsonb on postgres, text on sqlite).
type JSON[T any] struct {
	V T
}

// NewJSON wraps v
func NewJSON[T any](v T) JSON[T] {
	return JSON[T]{V: v}
}

// Scan implements sql.Scanner
func (j *JSON[T]) Scan(value any) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		var zero T
		j.V = zero
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("database: cannot scan %T into JSON column", value)
	}
	if len(raw) == 0 {
		var zero T
		j.V = zero
		return nil
	}
	return json.Unmarshal(raw, &j.V)
}

// Value implements driver.Valuer
func (j JSON[T]) Value() (driver.Value, error) {
	b, err := json.Marshal(j.V)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// GormDataType implements schema.GormDataTypeInterface
func (JSON[T]) GormDataType() string {
	return "json"
}

// GormDBDataType picks the column type per dialect
func (JSON[T]) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	if db.Dialector.Name() == "postgres" {
		return "jsonb"
	}
	return "text"
}
