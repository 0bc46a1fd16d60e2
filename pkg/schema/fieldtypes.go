package schema

import (
	"fmt"
	"regexp"
	"strconv"
)

// Base field types. Every declared type resolves to one of these; the
// validator keys its coercions off the base type.
const (
	TypeString   = "string"
	TypeText     = "text"
	TypeTextarea = "textarea"
	TypeInteger  = "integer"
	TypeFloat    = "float"
	TypeDecimal  = "decimal"
	TypeBoolean  = "boolean"
	TypeDate     = "date"
	TypeDatetime = "datetime"
	TypeTime     = "time"
	TypeEmail    = "email"
	TypeURL      = "url"
	TypePhone    = "phone"
	TypeZip      = "zip"
	TypePassword = "password"
	TypeJSON     = "json"
	TypeLookup   = "smartlookup"
	TypeAddress  = "address"
)

// TypeInfo is the resolved form of a declared field type.
type TypeInfo struct {
	Base string
	// Rows and Cols are set for parametric textarea types.
	Rows int
	Cols int
}

// baseTypes maps plain declared types to themselves plus the boolean
// widget variants, which all normalise to boolean.
var baseTypes = map[string]string{
	TypeString:       TypeString,
	TypeText:         TypeText,
	TypeTextarea:     TypeTextarea,
	TypeInteger:      TypeInteger,
	"int":            TypeInteger,
	TypeFloat:        TypeFloat,
	TypeDecimal:      TypeDecimal,
	TypeBoolean:      TypeBoolean,
	"boolean-yn":     TypeBoolean,
	"boolean-tgl":    TypeBoolean,
	"boolean-toggle": TypeBoolean,
	"bool":           TypeBoolean,
	TypeDate:         TypeDate,
	TypeDatetime:     TypeDatetime,
	TypeTime:         TypeTime,
	TypeEmail:        TypeEmail,
	TypeURL:          TypeURL,
	TypePhone:        TypePhone,
	TypeZip:          TypeZip,
	TypePassword:     TypePassword,
	TypeJSON:         TypeJSON,
	TypeLookup:       TypeLookup,
	TypeAddress:      TypeAddress,
}

// textareaSized matches parametric textarea declarations such as
// textarea-r10c50.
var textareaSized = regexp.MustCompile(`^textarea-r([0-9]+)c([0-9]+)$`)

// ResolveType resolves a declared type string to its TypeInfo. Unknown
// types are a structural schema error.
func ResolveType(declared string) (TypeInfo, error) {
	if base, ok := baseTypes[declared]; ok {
		return TypeInfo{Base: base}, nil
	}
	if m := textareaSized.FindStringSubmatch(declared); m != nil {
		rows, _ := strconv.Atoi(m[1])
		cols, _ := strconv.Atoi(m[2])
		return TypeInfo{Base: TypeTextarea, Rows: rows, Cols: cols}, nil
	}
	return TypeInfo{}, fmt.Errorf("unknown field type %q", declared)
}
