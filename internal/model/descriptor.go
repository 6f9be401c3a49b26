package model

// FieldType is the declared kind of a field descriptor
type FieldType string

const (
	FieldTypeString  FieldType = "string"
	FieldTypeNumber  FieldType = "number"
	FieldTypeBoolean FieldType = "boolean"
	FieldTypeArray   FieldType = "array"
	FieldTypeObject  FieldType = "object"
)

// AllowedFieldTypes lists every kind a descriptor may declare
var AllowedFieldTypes = []FieldType{
	FieldTypeString,
	FieldTypeNumber,
	FieldTypeBoolean,
	FieldTypeArray,
	FieldTypeObject,
}

// Constraints holds the optional guards of a descriptor exactly as they were
// sent. A nil field means the constraint is absent.
type Constraints struct {
	Required interface{}
	Min      interface{}
	Max      interface{}
	Pattern  interface{}
}

// FieldDescriptor is a self-describing request field
type FieldDescriptor struct {
	Key         string
	Type        FieldType
	HasType     bool
	Value       interface{}
	Constraints Constraints
}

// Row is an ordered set of descriptors validated and projected together
type Row []FieldDescriptor

// Batch is an ordered sequence of rows
type Batch []Row
