// Package schema defines the tagged-field contract model the relay validates
// against. Registry documents are parsed once into a Definition; the
// definition is replaced wholesale on refetch and never partially mutated.
package schema

import (
	"fmt"
)

// Identifier names a contract in a registry. Immutable, supplied by
// configuration rather than per record.
type Identifier struct {
	RegistryName string
	SchemaName   string
}

func (id Identifier) String() string {
	return id.RegistryName + "/" + id.SchemaName
}

// Type tags the runtime shape a field value must have.
type Type string

const (
	TypeString  Type = "string"
	TypeNumber  Type = "number"
	TypeBoolean Type = "boolean"
	TypeObject  Type = "object"
	TypeArray   Type = "array"
	TypeEnum    Type = "enum"
)

// Field describes one named field of a contract.
type Field struct {
	Name     string
	Required bool
	Type     Type

	// Enum lists the allowed members when Type is TypeEnum.
	Enum []string

	// Fields carries the declared shape of a nested object. Empty means any
	// object is accepted for this field.
	Fields []Field

	// Items carries the declared element shape of an array. Nil means any
	// elements are accepted.
	Items *Field
}

// Definition is a resolved contract: a set of uniquely named fields. The
// field slice is kept in a deterministic (lexicographic) order.
type Definition struct {
	name   string
	fields []Field
	index  map[string]int
}

// NewDefinition builds a Definition, enforcing field name uniqueness.
func NewDefinition(name string, fields []Field) (*Definition, error) {
	index := make(map[string]int, len(fields))
	for i, f := range fields {
		if f.Name == "" {
			return nil, fmt.Errorf("schema %q: field %d has no name", name, i)
		}
		if _, dup := index[f.Name]; dup {
			return nil, fmt.Errorf("schema %q: duplicate field %q", name, f.Name)
		}
		index[f.Name] = i
	}
	return &Definition{name: name, fields: fields, index: index}, nil
}

// Name returns the schema name; outbound envelopes use it as the detail type.
func (d *Definition) Name() string { return d.name }

// Fields returns the declared fields in deterministic order. Callers must
// not mutate the returned slice.
func (d *Definition) Fields() []Field { return d.fields }

// Field looks up a declared field by name.
func (d *Definition) Field(name string) (Field, bool) {
	i, ok := d.index[name]
	if !ok {
		return Field{}, false
	}
	return d.fields[i], true
}
