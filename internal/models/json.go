package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONColumn stores a JSON-serializable value in a text column.
type JSONColumn[T any] struct {
	Data T
}

func NewJSONColumn[T any](data T) JSONColumn[T] {
	return JSONColumn[T]{Data: data}
}

// Scan implements the sql.Scanner interface
func (c *JSONColumn[T]) Scan(value interface{}) error {
	var zero T
	switch v := value.(type) {
	case nil:
		c.Data = zero
		return nil
	case string:
		if v == "" {
			c.Data = zero
			return nil
		}
		return json.Unmarshal([]byte(v), &c.Data)
	case []byte:
		if len(v) == 0 {
			c.Data = zero
			return nil
		}
		return json.Unmarshal(v, &c.Data)
	default:
		return fmt.Errorf("cannot scan %T into JSONColumn", value)
	}
}

// Value implements the driver.Valuer interface
func (c JSONColumn[T]) Value() (driver.Value, error) {
	data, err := json.Marshal(c.Data)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (c JSONColumn[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Data)
}

func (c *JSONColumn[T]) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &c.Data)
}
