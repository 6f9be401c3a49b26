package validation

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/buger/jsonparser"
	"github.com/vmskonakanchi/ymts-crud-api/internal/model"
)

var (
	// ErrNotArray is returned when a batch is not a JSON array
	ErrNotArray = errors.New("data must be an array of rows")
	// ErrNotObject is returned when a row or document is not a JSON object
	ErrNotObject = errors.New("value must be a JSON object")
)

// DecodeBatch parses a JSON array of rows into descriptors, keeping the
// document order of rows and of keys inside each row.
func DecodeBatch(data []byte) (model.Batch, error) {
	_, dataType, _, err := jsonparser.Get(data)
	if err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if dataType != jsonparser.Array {
		return nil, ErrNotArray
	}

	batch := model.Batch{}
	var rowErr error
	_, err = jsonparser.ArrayEach(data, func(value []byte, dataType jsonparser.ValueType, offset int, err error) {
		if rowErr != nil {
			return
		}
		if err != nil {
			rowErr = err
			return
		}
		if dataType != jsonparser.Object {
			rowErr = fmt.Errorf("row %d: %w", len(batch), ErrNotObject)
			return
		}

		row, err := decodeRow(value)
		if err != nil {
			rowErr = fmt.Errorf("row %d: %w", len(batch), err)
			return
		}
		batch = append(batch, row)
	})
	if err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if rowErr != nil {
		return nil, rowErr
	}

	return batch, nil
}

// DecodeDocument parses a JSON object into an ordered Record
func DecodeDocument(data []byte) (model.Record, error) {
	_, dataType, _, err := jsonparser.Get(data)
	if err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if dataType != jsonparser.Object {
		return nil, ErrNotObject
	}
	return decodeObject(data)
}

func decodeRow(data []byte) (model.Row, error) {
	row := model.Row{}
	index := make(map[string]int)

	err := jsonparser.ObjectEach(data, func(key []byte, value []byte, dataType jsonparser.ValueType, offset int) error {
		d, err := decodeDescriptor(string(key), value, dataType)
		if err != nil {
			return err
		}
		// a repeated key keeps its first position and its last value
		if i, ok := index[d.Key]; ok {
			row[i] = d
			return nil
		}
		index[d.Key] = len(row)
		row = append(row, d)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return row, nil
}

func decodeDescriptor(key string, data []byte, dataType jsonparser.ValueType) (model.FieldDescriptor, error) {
	d := model.FieldDescriptor{Key: key}
	if dataType != jsonparser.Object {
		return d, nil
	}

	fields, err := decodeObject(data)
	if err != nil {
		return d, err
	}

	if t, ok := fields.Get("type"); ok && truthy(t) {
		d.HasType = true
		d.Type = model.FieldType(formatValue(t))
	}
	d.Value, _ = fields.Get("value")
	d.Constraints.Required, _ = fields.Get("required")
	d.Constraints.Min, _ = fields.Get("min")
	d.Constraints.Max, _ = fields.Get("max")
	d.Constraints.Pattern, _ = fields.Get("pattern")

	return d, nil
}

func decodeObject(data []byte) (model.Record, error) {
	r := model.Record{}
	err := jsonparser.ObjectEach(data, func(key []byte, value []byte, dataType jsonparser.ValueType, offset int) error {
		v, err := decodeValue(value, dataType)
		if err != nil {
			return err
		}
		r = r.Set(string(key), v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

func decodeArray(data []byte) ([]interface{}, error) {
	arr := []interface{}{}
	var itemErr error
	_, err := jsonparser.ArrayEach(data, func(value []byte, dataType jsonparser.ValueType, offset int, err error) {
		if itemErr != nil {
			return
		}
		if err != nil {
			itemErr = err
			return
		}
		v, err := decodeValue(value, dataType)
		if err != nil {
			itemErr = err
			return
		}
		arr = append(arr, v)
	})
	if err != nil {
		return nil, err
	}
	if itemErr != nil {
		return nil, itemErr
	}
	return arr, nil
}

func decodeValue(data []byte, dataType jsonparser.ValueType) (interface{}, error) {
	switch dataType {
	case jsonparser.String:
		return jsonparser.ParseString(data)
	case jsonparser.Number:
		if i, err := strconv.ParseInt(string(data), 10, 64); err == nil {
			return i, nil
		}
		return jsonparser.ParseFloat(data)
	case jsonparser.Boolean:
		return jsonparser.ParseBoolean(data)
	case jsonparser.Null:
		return nil, nil
	case jsonparser.Object:
		return decodeObject(data)
	case jsonparser.Array:
		return decodeArray(data)
	default:
		return nil, fmt.Errorf("unsupported JSON value %q", data)
	}
}
