package schema

// View contexts accepted by the schema endpoint.
const (
	ContextList   = "list"
	ContextForm   = "form"
	ContextDetail = "detail"
	ContextMeta   = "meta"
)

// KnownContext reports whether ctx is one of the supported view
// contexts.
func KnownContext(ctx string) bool {
	switch ctx {
	case ContextList, ContextForm, ContextDetail, ContextMeta:
		return true
	}
	return false
}

// MultiContextSchema is the payload returned when more than one view
// context is requested at once.
type MultiContextSchema struct {
	Model    string             `json:"model"`
	Contexts map[string]*Schema `json:"contexts"`
}

// admissible reports whether a field belongs in the given context.
// Password fields never surface in list or detail views.
func admissible(f *FieldSpec, ctx string) bool {
	switch ctx {
	case ContextList:
		return f.Listable && f.BaseType != TypePassword
	case ContextForm:
		return f.IsEditable()
	case ContextDetail:
		return f.ShownIn(ContextDetail) && f.BaseType != TypePassword
	case ContextMeta:
		return false
	}
	return false
}

// FilterForContext returns a shallow copy of s whose field map only
// contains the fields admissible in ctx. The meta context drops the
// field map entirely, leaving the entity-level attributes.
func (s *Schema) FilterForContext(ctx string) *Schema {
	out := *s
	if ctx == ContextMeta {
		out.Fields = map[string]*FieldSpec{}
		return &out
	}
	fields := make(map[string]*FieldSpec, len(s.Fields))
	for name, f := range s.Fields {
		if admissible(f, ctx) {
			fields[name] = f
		}
	}
	out.Fields = fields
	return &out
}

// ContextPayload builds the schema endpoint response body for the
// requested contexts. No contexts yields the full schema, one context
// yields a filtered schema, several yield a contexts object keyed by
// context name.
func (s *Schema) ContextPayload(contexts []string) interface{} {
	switch len(contexts) {
	case 0:
		return s
	case 1:
		return s.FilterForContext(contexts[0])
	}
	views := make(map[string]*Schema, len(contexts))
	for _, ctx := range contexts {
		views[ctx] = s.FilterForContext(ctx)
	}
	return &MultiContextSchema{Model: s.Model, Contexts: views}
}
