package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/bitechdev/CrudSpec/pkg/common"
	"github.com/bitechdev/CrudSpec/pkg/logger"
)

var (
	// ErrSchemaNotFound is returned when no schema file exists for a
	// model.
	ErrSchemaNotFound = errors.New("schema not found")

	// ErrSchemaMalformed is returned when a schema file exists but
	// cannot be parsed or fails structural validation.
	ErrSchemaMalformed = errors.New("schema malformed")
)

type cacheKey struct {
	model      string
	connection string
}

// Loader reads schema files from a directory and caches the parsed
// result per (model, connection).
type Loader struct {
	dir   string
	mu    sync.RWMutex
	cache map[cacheKey]*Schema
}

// NewLoader creates a loader rooted at dir.
func NewLoader(dir string) *Loader {
	return &Loader{
		dir:   dir,
		cache: make(map[cacheKey]*Schema),
	}
}

// GetSchema returns the schema for model on its declared (or default)
// connection.
func (l *Loader) GetSchema(model string) (*Schema, error) {
	return l.GetSchemaForConnection(model, "")
}

// GetSchemaForConnection returns the schema for model with the
// connection override applied. Cached entries are shared; callers must
// not mutate the returned schema.
func (l *Loader) GetSchemaForConnection(model, connection string) (*Schema, error) {
	key := cacheKey{model: model, connection: connection}

	l.mu.RLock()
	if s, ok := l.cache[key]; ok {
		l.mu.RUnlock()
		return s, nil
	}
	l.mu.RUnlock()

	l.mu.Lock()
	defer l.mu.Unlock()
	if s, ok := l.cache[key]; ok {
		return s, nil
	}

	s, err := l.load(model, connection)
	if err != nil {
		return nil, err
	}
	l.cache[key] = s
	logger.Debug("Loaded schema %s (connection=%q)", model, s.Connection)
	return s, nil
}

// Invalidate drops all cached entries for a model, forcing a re-read on
// next access.
func (l *Loader) Invalidate(model string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key := range l.cache {
		if key.model == model {
			delete(l.cache, key)
		}
	}
}

func (l *Loader) load(model, connection string) (*Schema, error) {
	if !common.ValidIdent(model) {
		return nil, fmt.Errorf("%w: invalid model name %q", ErrSchemaNotFound, model)
	}

	path := filepath.Join(l.dir, model+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrSchemaNotFound, model)
		}
		return nil, fmt.Errorf("%w: reading %s: %v", ErrSchemaMalformed, path, err)
	}

	var s Schema
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", ErrSchemaMalformed, path, err)
	}

	if err := normalize(&s, model, connection); err != nil {
		return nil, err
	}
	return &s, nil
}

// normalize applies defaults and validates the structural rules that
// every loaded schema must satisfy.
func normalize(s *Schema, model, connection string) error {
	if s.Model == "" {
		s.Model = model
	}
	if s.Model != model {
		return fmt.Errorf("%w: file %s.json declares model %q", ErrSchemaMalformed, model, s.Model)
	}
	if s.Table == "" {
		return fmt.Errorf("%w: %s: missing table", ErrSchemaMalformed, model)
	}
	if len(s.Fields) == 0 {
		return fmt.Errorf("%w: %s: no fields", ErrSchemaMalformed, model)
	}
	if s.PrimaryKey == "" {
		s.PrimaryKey = "id"
	}
	if connection != "" {
		s.Connection = connection
	}

	for name, f := range s.Fields {
		if f == nil {
			return fmt.Errorf("%w: %s: field %s is null", ErrSchemaMalformed, model, name)
		}
		info, err := ResolveType(f.Type)
		if err != nil {
			return fmt.Errorf("%w: %s: field %s: %v", ErrSchemaMalformed, model, name, err)
		}
		f.BaseType = info.Base
		f.Rows = info.Rows
		f.Cols = info.Cols

		if f.Validation != nil && f.Validation.Required {
			f.Required = true
		}
	}

	// Fold the deprecated singular detail into the details list.
	if s.LegacyDetail != nil {
		s.Details = append(s.Details, *s.LegacyDetail)
		s.LegacyDetail = nil
	}

	for i := range s.Relationships {
		r := &s.Relationships[i]
		if r.Name == "" {
			return fmt.Errorf("%w: %s: relationship without name", ErrSchemaMalformed, model)
		}
		switch r.Type {
		case RelationManyToMany:
			if r.PivotTable == "" || r.ForeignKey == "" || r.RelatedKey == "" {
				return fmt.Errorf("%w: %s: relationship %s: many_to_many needs pivot_table, foreign_key and related_key", ErrSchemaMalformed, model, r.Name)
			}
		case RelationBelongsToManyThrough:
			if len(r.Through) == 0 {
				return fmt.Errorf("%w: %s: relationship %s: through chain is empty", ErrSchemaMalformed, model, r.Name)
			}
		default:
			return fmt.Errorf("%w: %s: relationship %s: unknown type %q", ErrSchemaMalformed, model, r.Name, r.Type)
		}
	}

	for i := range s.Actions {
		a := &s.Actions[i]
		if a.Key == "" {
			return fmt.Errorf("%w: %s: action without key", ErrSchemaMalformed, model)
		}
		if a.Type == "" {
			a.Type = ActionCustom
		}
		switch a.Type {
		case ActionFieldUpdate, ActionPasswordUpdate, ActionCustom:
		default:
			return fmt.Errorf("%w: %s: action %s: unknown type %q", ErrSchemaMalformed, model, a.Key, a.Type)
		}
		if a.Type == ActionFieldUpdate && a.Field == "" {
			return fmt.Errorf("%w: %s: action %s: field_update needs a field", ErrSchemaMalformed, model, a.Key)
		}
	}

	return nil
}
