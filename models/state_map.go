package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// StateMap is the opaque, game-type-specific state payload carried by a
// session. The service stores and merges it but never interprets the keys —
// semantics belong to whatever game server owns the game_type.
type StateMap map[string]interface{}

// Value serializes the payload to JSON for the jsonb column.
func (m StateMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan deserializes a jsonb column back into the map.
func (m *StateMap) Scan(value interface{}) error {
	if value == nil {
		*m = StateMap{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported state column type %T", value)
	}
	if len(data) == 0 {
		*m = StateMap{}
		return nil
	}
	return json.Unmarshal(data, m)
}

// GormDataType tells GORM which column type to migrate to.
func (StateMap) GormDataType() string {
	return "jsonb"
}

// Merge returns a copy of the payload with the given keys overlaid.
// Existing keys not present in patch are preserved.
func (m StateMap) Merge(patch map[string]interface{}) StateMap {
	merged := make(StateMap, len(m)+len(patch))
	for k, v := range m {
		merged[k] = v
	}
	for k, v := range patch {
		merged[k] = v
	}
	return merged
}
