// Package sprunje builds paged, sorted, filtered list queries from a
// schema and the parsed query parameters, and shapes the standard list
// result envelope.
package sprunje

import (
	"context"
	"strings"

	"github.com/bitechdev/CrudSpec/pkg/cache"
	"github.com/bitechdev/CrudSpec/pkg/common"
	"github.com/bitechdev/CrudSpec/pkg/logger"
	"github.com/bitechdev/CrudSpec/pkg/schema"
)

// Extender mutates every query the sprunje builds. Relationship
// listings use it to add their joins and scoping.
type Extender func(common.SelectQuery) common.SelectQuery

// Result is the list response envelope.
type Result struct {
	Count         int                      `json:"count"`
	CountFiltered int                      `json:"count_filtered"`
	Rows          []map[string]interface{} `json:"rows"`
	Listable      []string                 `json:"listable"`
	Sortable      []string                 `json:"sortable"`
	Filterable    []string                 `json:"filterable"`
	Sorts         map[string]string        `json:"sorts"`
	Filters       map[string]string        `json:"filters"`
	Size          int                      `json:"size"`
	Page          int                      `json:"page"`
}

// Sprunje runs one list query.
type Sprunje struct {
	db        common.Database
	schema    *schema.Schema
	params    *Params
	extenders []Extender
	// listable, when set, replaces the schema's listable field set.
	listable []string
	// tableAlias overrides the column qualifier when extenders join
	// other tables.
	tableAlias string
}

// New creates a sprunje over db for the schema and parsed params.
// Sorts and filters naming unknown or unmarked fields are dropped
// rather than rejected.
func New(db common.Database, s *schema.Schema, params *Params) *Sprunje {
	kept := params.Sorts[:0]
	for _, sort := range params.Sorts {
		if f := s.Field(sort.Field); f != nil && f.Sortable {
			kept = append(kept, sort)
		}
	}
	params.Sorts = kept

	order := params.filterOrder[:0]
	for _, field := range params.filterOrder {
		if f := s.Field(field); f != nil && f.Filterable {
			order = append(order, field)
			continue
		}
		delete(params.Filters, field)
	}
	params.filterOrder = order

	return &Sprunje{db: db, schema: s, params: params}
}

// Extend registers a query extender.
func (sp *Sprunje) Extend(fn Extender) *Sprunje {
	sp.extenders = append(sp.extenders, fn)
	return sp
}

// WithListable overrides the schema's listable set. Fields unknown to
// the schema and password fields stay excluded.
func (sp *Sprunje) WithListable(fields []string) *Sprunje {
	kept := make([]string, 0, len(fields))
	for _, field := range fields {
		f := sp.schema.Field(field)
		if f == nil || f.BaseType == schema.TypePassword {
			continue
		}
		kept = append(kept, field)
	}
	sp.listable = kept
	return sp
}

// qualify returns the quoted, table-qualified column reference.
func (sp *Sprunje) qualify(column string) string {
	table := sp.tableAlias
	if table == "" {
		table = sp.schema.Table
	}
	return common.QuoteIdent(table) + "." + common.QuoteIdent(column)
}

// base builds the scoped FROM clause shared by the row and count
// queries: table, extenders, soft-delete exclusion.
func (sp *Sprunje) base() common.SelectQuery {
	q := sp.db.NewSelect().Table(sp.schema.Table)
	for _, fn := range sp.extenders {
		q = fn(q)
	}
	if sp.schema.SoftDelete {
		q = q.Where(sp.qualify(schema.SoftDeleteColumn) + " IS NULL")
	}
	return q
}

// applyFilters narrows q with the requested filters and search term.
// Values within one filter are ORed, fields are ANDed.
func (sp *Sprunje) applyFilters(q common.SelectQuery) common.SelectQuery {
	for _, field := range sp.params.filterOrder {
		values := sp.params.Filters[field]
		column := sp.qualify(field)
		exact := sp.exactMatch(field)
		q = q.WhereGroup(" AND ", func(g common.SelectQuery) common.SelectQuery {
			for _, v := range values {
				if exact {
					g = g.WhereOr(column+" = ?", v)
				} else {
					g = g.WhereOr("LOWER("+column+") LIKE ?", "%"+strings.ToLower(v)+"%")
				}
			}
			return g
		})
	}

	if sp.params.Search != "" {
		fields := sp.schema.SearchableFields()
		if len(fields) > 0 {
			needle := "%" + strings.ToLower(sp.params.Search) + "%"
			q = q.WhereGroup(" AND ", func(g common.SelectQuery) common.SelectQuery {
				for _, field := range fields {
					g = g.WhereOr("LOWER("+sp.qualify(field)+") LIKE ?", needle)
				}
				return g
			})
		}
	}
	return q
}

// exactMatch reports whether a filter on the field compares for
// equality instead of case-insensitive substring match.
func (sp *Sprunje) exactMatch(field string) bool {
	switch sp.schema.Field(field).BaseType {
	case schema.TypeInteger, schema.TypeFloat, schema.TypeDecimal, schema.TypeBoolean,
		schema.TypeDate, schema.TypeDatetime, schema.TypeTime:
		return true
	}
	return false
}

// applySorts orders q by the requested sorts, falling back to the
// schema's default sort, with the primary key as final tie-break.
func (sp *Sprunje) applySorts(q common.SelectQuery) common.SelectQuery {
	sorts := sp.params.Sorts
	if len(sorts) == 0 {
		// Default sorts are schema-authored, so the sortable flag that
		// gates client sorts does not apply; only unknown fields are
		// skipped.
		for _, field := range sortedKeys(sp.schema.DefaultSort) {
			if sp.schema.Field(field) == nil {
				continue
			}
			dir := sp.schema.DefaultSort[field]
			if dir != "desc" {
				dir = "asc"
			}
			sorts = append(sorts, Sort{Field: field, Dir: dir})
		}
	}

	pkSorted := false
	for _, s := range sorts {
		q = q.OrderExpr(sp.qualify(s.Field) + " " + directionSQL(s.Dir))
		if s.Field == sp.schema.PrimaryKey {
			pkSorted = true
		}
	}
	if !pkSorted {
		q = q.OrderExpr(sp.qualify(sp.schema.PrimaryKey) + " ASC")
	}
	return q
}

func directionSQL(dir string) string {
	if dir == "desc" {
		return "DESC"
	}
	return "ASC"
}

// listableSet returns the effective listable fields.
func (sp *Sprunje) listableSet() []string {
	if sp.listable != nil {
		return sp.listable
	}
	return sp.schema.ListableFields()
}

// projection returns the listable columns plus the primary key.
func (sp *Sprunje) projection() []string {
	columns := sp.listableSet()
	for _, c := range columns {
		if c == sp.schema.PrimaryKey {
			return columns
		}
	}
	return append(append([]string{}, columns...), sp.schema.PrimaryKey)
}

// GetResults runs the count and row queries and assembles the result
// envelope.
func (sp *Sprunje) GetResults(ctx context.Context) (*Result, error) {
	total, err := sp.total(ctx)
	if err != nil {
		return nil, err
	}

	filtered := total
	if sp.params.Filtered() {
		filtered, err = sp.applyFilters(sp.base()).Count(ctx)
		if err != nil {
			return nil, err
		}
	}

	q := sp.applyFilters(sp.base())
	for _, column := range sp.projection() {
		q = q.ColumnExpr(sp.qualify(column) + " AS " + common.QuoteIdent(column))
	}
	q = sp.applySorts(q)
	q = q.Limit(sp.params.Size).Offset(sp.params.Page * sp.params.Size)

	rows := make([]map[string]interface{}, 0, sp.params.Size)
	if err := q.Scan(ctx, &rows); err != nil {
		return nil, err
	}

	return &Result{
		Count:         total,
		CountFiltered: filtered,
		Rows:          rows,
		Listable:      sp.listableSet(),
		Sortable:      sp.schema.SortableFields(),
		Filterable:    sp.schema.FilterableFields(),
		Sorts:         sp.params.SortEcho(),
		Filters:       sp.params.FilterEcho(),
		Size:          sp.params.Size,
		Page:          sp.params.Page,
	}, nil
}

// total returns the unfiltered count of the scoped set, served from
// the query cache when possible. Cache trouble is logged and never
// fails the request.
func (sp *Sprunje) total(ctx context.Context) (int, error) {
	cacheable := len(sp.extenders) == 0
	connection := sp.schema.Connection
	if connection == "" {
		connection = "default"
	}
	key := cache.BuildQueryTotalKey(connection, sp.schema.Table, nil, "")

	if cacheable {
		var cached cache.CachedTotal
		if err := cache.GetDefaultCache().Get(ctx, key, &cached); err == nil {
			return cached.Total, nil
		}
	}

	total, err := sp.base().Count(ctx)
	if err != nil {
		return 0, err
	}

	if cacheable {
		tags := []string{cache.TableTag(connection, sp.schema.Table)}
		if err := cache.GetDefaultCache().SetWithTags(ctx, key, cache.CachedTotal{Total: total}, cache.QueryTotalTTL, tags); err != nil {
			logger.Debug("Failed to cache list total for %s: %v", sp.schema.Table, err)
		}
	}
	return total, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j] < keys[j-1]; j-- {
			keys[j], keys[j-1] = keys[j-1], keys[j]
		}
	}
	return keys
}
