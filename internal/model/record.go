package model

import (
	"bytes"
	"encoding/json"
)

// Field is a single key/value pair of a Record
type Field struct {
	Key   string
	Value interface{}
}

// Record is an ordered key/value document. Values are scalars, nested
// Records or []interface{}.
type Record []Field

// Get returns the value stored under key
func (r Record) Get(key string) (interface{}, bool) {
	for _, f := range r {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// Set replaces the value under key, appending the key if it is new
func (r Record) Set(key string, value interface{}) Record {
	for i := range r {
		if r[i].Key == key {
			r[i].Value = value
			return r
		}
	}
	return append(r, Field{Key: key, Value: value})
}

// Keys returns the keys in document order
func (r Record) Keys() []string {
	keys := make([]string, len(r))
	for i, f := range r {
		keys[i] = f.Key
	}
	return keys
}

// MarshalJSON encodes the record as a JSON object keeping key order
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		value, err := json.Marshal(f.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// InsertSummary is returned by a batch insert
type InsertSummary struct {
	InsertedCount int      `json:"inserted_count"`
	InsertedIDs   []string `json:"inserted_ids"`
}
