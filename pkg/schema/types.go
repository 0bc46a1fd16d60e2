// Package schema models the JSON schema files that drive the CRUD
// engine. One file per model; the loader caches parsed schemas by
// (model, connection) and applies defaults so downstream code never
// sees a partial schema.
package schema

import (
	"encoding/json"
	"fmt"
)

// Schema describes one persisted entity.
type Schema struct {
	Model         string                `json:"model"`
	Table         string                `json:"table"`
	Connection    string                `json:"connection,omitempty"`
	PrimaryKey    string                `json:"primary_key,omitempty"`
	TitleField    string                `json:"title_field,omitempty"`
	Title         string                `json:"title,omitempty"`
	SingularTitle string                `json:"singular_title,omitempty"`
	Description   string                `json:"description,omitempty"`
	DefaultSort   map[string]string     `json:"default_sort,omitempty"`
	Timestamps    bool                  `json:"timestamps,omitempty"`
	SoftDelete    bool                  `json:"soft_delete,omitempty"`
	Permissions   map[string]string     `json:"permissions,omitempty"`
	Fields        map[string]*FieldSpec `json:"fields"`
	Details       []DetailSpec          `json:"details,omitempty"`
	Relationships []RelationshipSpec    `json:"relationships,omitempty"`
	Actions       []ActionSpec          `json:"actions,omitempty"`
	FormLayout    string                `json:"form_layout,omitempty"`

	// LegacyDetail is the deprecated singular form; the loader folds it
	// into Details.
	LegacyDetail *DetailSpec `json:"detail,omitempty"`
}

// FieldSpec describes one field of a schema.
type FieldSpec struct {
	Type          string           `json:"type"`
	Label         string           `json:"label,omitempty"`
	Description   string           `json:"description,omitempty"`
	Placeholder   string           `json:"placeholder,omitempty"`
	Icon          string           `json:"icon,omitempty"`
	Required      bool             `json:"required,omitempty"`
	Readonly      bool             `json:"readonly,omitempty"`
	Editable      *bool            `json:"editable,omitempty"`
	AutoIncrement bool             `json:"auto_increment,omitempty"`
	Computed      bool             `json:"computed,omitempty"`
	Sortable      bool             `json:"sortable,omitempty"`
	Filterable    bool             `json:"filterable,omitempty"`
	Searchable    bool             `json:"searchable,omitempty"`
	Listable      bool             `json:"listable,omitempty"`
	ShowIn        []string         `json:"show_in,omitempty"`
	Default       interface{}      `json:"default,omitempty"`
	Validation    *ValidationRules `json:"validation,omitempty"`
	FieldTemplate string           `json:"field_template,omitempty"`
	Lookup        string           `json:"lookup,omitempty"`
	LookupModel   string           `json:"lookup_model,omitempty"`
	LookupID      string           `json:"lookup_id,omitempty"`
	LookupDesc    string           `json:"lookup_desc,omitempty"`

	// Resolved by the loader from Type; not serialized.
	BaseType string `json:"-"`
	Rows     int    `json:"-"`
	Cols     int    `json:"-"`
}

// IsEditable reports whether client input may assign the field.
// Explicit `editable` wins; otherwise readonly, auto_increment and
// computed fields are not editable.
func (f *FieldSpec) IsEditable() bool {
	if f.Editable != nil {
		return *f.Editable
	}
	return !f.Readonly && !f.AutoIncrement && !f.Computed
}

// IsWritable reports whether the engine itself may persist the field.
// Computed fields never hit the table.
func (f *FieldSpec) IsWritable() bool {
	return !f.Computed
}

// ShownIn reports whether the field appears in the named view context.
// An empty show_in list means the field is shown everywhere.
func (f *FieldSpec) ShownIn(context string) bool {
	if len(f.ShowIn) == 0 {
		return true
	}
	for _, c := range f.ShowIn {
		if c == context {
			return true
		}
	}
	return false
}

// ValidationRules holds the named validation rules of a field.
type ValidationRules struct {
	Required bool        `json:"required,omitempty"`
	Length   *LengthRule `json:"length,omitempty"`
	Numeric  bool        `json:"numeric,omitempty"`
	Min      *float64    `json:"min,omitempty"`
	Max      *float64    `json:"max,omitempty"`
	Email    bool        `json:"email,omitempty"`
	Unique   bool        `json:"unique,omitempty"`
	Match    MatchRule   `json:"match,omitempty"`
	Pattern  string      `json:"pattern,omitempty"`
}

// LengthRule bounds the Unicode character count of a string field.
type LengthRule struct {
	Min *int `json:"min,omitempty"`
	Max *int `json:"max,omitempty"`
}

// MatchRule declares a confirmation companion. JSON `true` means the
// implicit companion `{field}_confirm`; a string names the companion
// field explicitly.
type MatchRule struct {
	Enabled bool
	Field   string
}

func (m *MatchRule) UnmarshalJSON(data []byte) error {
	var asBool bool
	if err := json.Unmarshal(data, &asBool); err == nil {
		m.Enabled = asBool
		return nil
	}
	var asString string
	if err := json.Unmarshal(data, &asString); err == nil {
		m.Enabled = asString != ""
		m.Field = asString
		return nil
	}
	return fmt.Errorf("match rule must be a boolean or a field name")
}

func (m MatchRule) MarshalJSON() ([]byte, error) {
	if m.Field != "" {
		return json.Marshal(m.Field)
	}
	return json.Marshal(m.Enabled)
}

// CompanionFor returns the confirmation field name for the given field.
func (m MatchRule) CompanionFor(field string) string {
	if m.Field != "" {
		return m.Field
	}
	return field + "_confirm"
}

// DetailSpec declares a simple has-many relationship for nested
// listing. A DetailSpec without foreign_key is many-to-many sugar and
// must be matched by a RelationshipSpec of the same name.
type DetailSpec struct {
	Model      string   `json:"model"`
	ForeignKey string   `json:"foreign_key,omitempty"`
	ListFields []string `json:"list_fields,omitempty"`
	Title      string   `json:"title,omitempty"`
}

// Relationship types.
const (
	RelationManyToMany           = "many_to_many"
	RelationBelongsToManyThrough = "belongs_to_many_through"
)

// RelationshipSpec declares an explicit many-to-many or through
// relationship.
type RelationshipSpec struct {
	Name       string        `json:"name"`
	Type       string        `json:"type"`
	PivotTable string        `json:"pivot_table,omitempty"`
	ForeignKey string        `json:"foreign_key,omitempty"`
	RelatedKey string        `json:"related_key,omitempty"`
	Through    []ThroughLink `json:"through,omitempty"`
}

// ThroughLink is one hop of a belongs_to_many_through chain.
// ForeignKey points back at the previous element (the parent's primary
// key for the first hop); LocalKey points forward to the next hop's
// ForeignKey, or to the related table's primary key on the last hop.
type ThroughLink struct {
	Table      string `json:"table"`
	LocalKey   string `json:"local_key"`
	ForeignKey string `json:"foreign_key"`
}

// Custom action types.
const (
	ActionFieldUpdate    = "field_update"
	ActionPasswordUpdate = "password_update"
	ActionCustom         = "custom"
)

// ActionSpec declares a custom verb beyond the standard CRUD set.
type ActionSpec struct {
	Key            string                 `json:"key"`
	Label          string                 `json:"label,omitempty"`
	Type           string                 `json:"type,omitempty"`
	Permission     string                 `json:"permission,omitempty"`
	Style          string                 `json:"style,omitempty"`
	Icon           string                 `json:"icon,omitempty"`
	Confirm        bool                   `json:"confirm,omitempty"`
	VisibleWhen    map[string]interface{} `json:"visible_when,omitempty"`
	Field          string                 `json:"field,omitempty"`
	ModalConfig    map[string]interface{} `json:"modal_config,omitempty"`
	SuccessMessage string                 `json:"success_message,omitempty"`
}

// SoftDeleteColumn is the tombstone column used when soft_delete is on.
const SoftDeleteColumn = "deleted_at"

// Timestamp columns managed when timestamps is on.
const (
	CreatedAtColumn = "created_at"
	UpdatedAtColumn = "updated_at"
)

// Field returns the field spec, or nil when the schema has no such
// field.
func (s *Schema) Field(name string) *FieldSpec {
	return s.Fields[name]
}

// HasField reports whether the schema declares the field.
func (s *Schema) HasField(name string) bool {
	_, ok := s.Fields[name]
	return ok
}

// PermissionFor resolves the permission slug for an action, falling
// back to crud6.{model}.{action}.
func (s *Schema) PermissionFor(action string) string {
	if slug, ok := s.Permissions[action]; ok && slug != "" {
		return slug
	}
	return fmt.Sprintf("crud6.%s.%s", s.Model, action)
}

// ActionByKey returns the custom action with the given key, or nil.
func (s *Schema) ActionByKey(key string) *ActionSpec {
	for i := range s.Actions {
		if s.Actions[i].Key == key {
			return &s.Actions[i]
		}
	}
	return nil
}

// RelationshipByName returns the relationship with the given name, or
// nil.
func (s *Schema) RelationshipByName(name string) *RelationshipSpec {
	for i := range s.Relationships {
		if s.Relationships[i].Name == name {
			return &s.Relationships[i]
		}
	}
	return nil
}

// DetailByModel returns the detail spec whose model matches, or nil.
func (s *Schema) DetailByModel(model string) *DetailSpec {
	for i := range s.Details {
		if s.Details[i].Model == model {
			return &s.Details[i]
		}
	}
	return nil
}

// fieldNamesWhere returns the names of fields passing the predicate,
// sorted for deterministic output.
func (s *Schema) fieldNamesWhere(pred func(*FieldSpec) bool) []string {
	names := make([]string, 0, len(s.Fields))
	for name, f := range s.Fields {
		if pred(f) {
			names = append(names, name)
		}
	}
	sortStrings(names)
	return names
}

// ListableFields returns the fields projected into list rows.
func (s *Schema) ListableFields() []string {
	return s.fieldNamesWhere(func(f *FieldSpec) bool {
		return f.Listable && f.BaseType != "password"
	})
}

// SortableFields returns the fields accepted in sorts[...].
func (s *Schema) SortableFields() []string {
	return s.fieldNamesWhere(func(f *FieldSpec) bool { return f.Sortable })
}

// FilterableFields returns the fields accepted in filters[...].
func (s *Schema) FilterableFields() []string {
	return s.fieldNamesWhere(func(f *FieldSpec) bool { return f.Filterable })
}

// SearchableFields returns the fields covered by search=.
func (s *Schema) SearchableFields() []string {
	return s.fieldNamesWhere(func(f *FieldSpec) bool { return f.Searchable })
}

// DisplayName returns the plural display title, falling back to the
// model name.
func (s *Schema) DisplayName() string {
	if s.Title != "" {
		return s.Title
	}
	return s.Model
}

// SingularDisplayName returns the singular display title, falling back
// to DisplayName.
func (s *Schema) SingularDisplayName() string {
	if s.SingularTitle != "" {
		return s.SingularTitle
	}
	return s.DisplayName()
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j] < s[j-1]; j-- {
			s[j], s[j-1] = s[j-1], s[j]
		}
	}
}
