package types

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Scan is on pointer receivers; Value is on value receivers.
var (
	_ sql.Scanner   = (*MeasurementData)(nil)
	_ driver.Valuer = MeasurementData{}
	_ sql.Scanner   = (*ThresholdSnapshot)(nil)
	_ driver.Valuer = ThresholdSnapshot{}
	_ sql.Scanner   = (*MonthlyComparison)(nil)
	_ driver.Valuer = MonthlyComparison{}
)

// scanJSONB scans a JSONB database value into dest. It accepts both []byte
// and string representations.
func scanJSONB(dest interface{}, value interface{}) error {
	if value == nil {
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("jsonb: unsupported scan type %T", value)
	}
	return json.Unmarshal(data, dest)
}

// Scan implements sql.Scanner.
func (m *MeasurementData) Scan(value interface{}) error {
	type alias MeasurementData
	var a alias
	if err := scanJSONB(&a, value); err != nil {
		return err
	}
	*m = MeasurementData(a)
	return nil
}

// Value implements driver.Valuer.
func (m MeasurementData) Value() (driver.Value, error) {
	type alias MeasurementData
	return json.Marshal(alias(m))
}

// Scan implements sql.Scanner.
func (t *ThresholdSnapshot) Scan(value interface{}) error {
	type alias ThresholdSnapshot
	var a alias
	if err := scanJSONB(&a, value); err != nil {
		return err
	}
	*t = ThresholdSnapshot(a)
	return nil
}

// Value implements driver.Valuer.
func (t ThresholdSnapshot) Value() (driver.Value, error) {
	type alias ThresholdSnapshot
	return json.Marshal(alias(t))
}

// Scan implements sql.Scanner. Energy reports store the full comparison as
// report_data so a reload yields exactly the persisted figures.
func (c *MonthlyComparison) Scan(value interface{}) error {
	type alias MonthlyComparison
	var a alias
	if err := scanJSONB(&a, value); err != nil {
		return err
	}
	*c = MonthlyComparison(a)
	return nil
}

// Value implements driver.Valuer.
func (c MonthlyComparison) Value() (driver.Value, error) {
	type alias MonthlyComparison
	return json.Marshal(alias(c))
}
