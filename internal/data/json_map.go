package data

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONMap maps a JSONB column to a decoded Go map. A NULL column scans to a nil map.
type JSONMap map[string]any

var (
	_ driver.Valuer = (JSONMap)(nil)
	_ interface {
		Scan(src any) error
	} = (*JSONMap)(nil)
)

func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshaling JSONMap: %w", err)
	}
	return data, nil
}

func (m *JSONMap) Scan(src any) error {
	if src == nil {
		*m = nil
		return nil
	}

	var data []byte
	switch src := src.(type) {
	case []byte:
		data = src
	case string:
		data = []byte(src)
	default:
		return fmt.Errorf("unexpected type %T for JSONMap", src)
	}

	if err := json.Unmarshal(data, m); err != nil {
		return fmt.Errorf("unmarshaling JSONMap: %w", err)
	}
	return nil
}
