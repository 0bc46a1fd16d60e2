package crudspec

import (
	"fmt"
	"net/http"
	"time"

	"github.com/bitechdev/CrudSpec/pkg/common"
	"github.com/bitechdev/CrudSpec/pkg/schema"
	"github.com/bitechdev/CrudSpec/pkg/sprunje"
)

// HandleRelation serves GET /{model}/{id}/{relation}: a sprunje over
// the related table scoped to the parent record. Resolution checks the
// schema's relationships by name first, then its details by model.
func (h *Handler) HandleRelation(w common.ResponseWriter, r common.Request) {
	start := time.Now()
	state, apiErr := h.resolve(r, true)
	if apiErr != nil {
		h.sendError(w, apiErr)
		return
	}
	if apiErr := h.authorize(r, state.schema, "read"); apiErr != nil {
		h.sendError(w, apiErr)
		return
	}

	relation := r.PathParam("relation")
	if relation == "" {
		// bunrouter shares one param name across methods on this path.
		relation = r.PathParam("field")
	}
	sp, apiErr := h.relationSprunje(r, state, relation)
	if apiErr != nil {
		h.sendError(w, apiErr)
		return
	}

	res, err := sp.GetResults(r.Context())
	h.observe("relation", state.model, start, err)
	if err != nil {
		h.sendError(w, classifyError(err, state.schema))
		return
	}
	h.sendJSON(w, http.StatusOK, res)
}

// relationSprunje resolves the relation name and builds the scoped
// sprunje over the related model's schema.
func (h *Handler) relationSprunje(r common.Request, state *requestState, relation string) (*sprunje.Sprunje, *apiError) {
	if !common.ValidIdent(relation) {
		return nil, newAPIError(http.StatusBadRequest, "Bad request", "Invalid relation name.")
	}

	params, err := h.parseParams(r)
	if err != nil {
		return nil, classifyError(err, state.schema)
	}
	parentID := state.record.PrimaryKey()

	if rel := state.schema.RelationshipByName(relation); rel != nil {
		related, apiErr := h.relatedSchema(state, relation)
		if apiErr != nil {
			return nil, apiErr
		}
		sp := sprunje.New(state.db, related, params)
		switch rel.Type {
		case schema.RelationManyToMany:
			h.extendManyToMany(sp, rel, related, parentID)
		case schema.RelationBelongsToManyThrough:
			h.extendThrough(sp, rel, related, parentID)
		}
		if detail := state.schema.DetailByModel(relation); detail != nil && len(detail.ListFields) > 0 {
			sp.WithListable(detail.ListFields)
		}
		return sp, nil
	}

	if detail := state.schema.DetailByModel(relation); detail != nil && detail.ForeignKey != "" {
		related, apiErr := h.relatedSchema(state, detail.Model)
		if apiErr != nil {
			return nil, apiErr
		}
		sp := sprunje.New(state.db, related, params)
		fk := detail.ForeignKey
		sp.Extend(func(q common.SelectQuery) common.SelectQuery {
			return q.Where(common.QuoteIdent(related.Table)+"."+common.QuoteIdent(fk)+" = ?", parentID)
		})
		if len(detail.ListFields) > 0 {
			sp.WithListable(detail.ListFields)
		}
		return sp, nil
	}

	return nil, newAPIError(http.StatusNotFound, "Not found", fmt.Sprintf("Model %s has no relation %s.", state.schema.Model, relation))
}

// relatedSchema loads the related model's schema on the parent's
// connection.
func (h *Handler) relatedSchema(state *requestState, model string) (*schema.Schema, *apiError) {
	related, err := h.deps.Schemas.GetSchemaForConnection(model, state.connection)
	if err != nil {
		return nil, classifyError(err, state.schema)
	}
	return related, nil
}

// extendManyToMany joins the pivot table and pins the pivot's foreign
// key to the parent. Identifiers come from admin-authored schema files,
// so they are quoted, never interpolated as values.
func (h *Handler) extendManyToMany(sp *sprunje.Sprunje, rel *schema.RelationshipSpec, related *schema.Schema, parentID interface{}) {
	pivot := common.QuoteIdent(rel.PivotTable)
	relatedPK := common.QuoteIdent(related.Table) + "." + common.QuoteIdent(related.PrimaryKey)
	sp.Extend(func(q common.SelectQuery) common.SelectQuery {
		return q.
			Join(fmt.Sprintf("JOIN %s ON %s.%s = %s", pivot, pivot, common.QuoteIdent(rel.RelatedKey), relatedPK)).
			Where(fmt.Sprintf("%s.%s = ?", pivot, common.QuoteIdent(rel.ForeignKey)), parentID)
	})
}

// extendThrough composes the declared chain into successive joins,
// walking from the related table back to the parent. The first hop is
// pinned to the parent's primary key.
func (h *Handler) extendThrough(sp *sprunje.Sprunje, rel *schema.RelationshipSpec, related *schema.Schema, parentID interface{}) {
	hops := rel.Through
	sp.Extend(func(q common.SelectQuery) common.SelectQuery {
		last := hops[len(hops)-1]
		q = q.Join(fmt.Sprintf("JOIN %s ON %s.%s = %s.%s",
			common.QuoteIdent(last.Table),
			common.QuoteIdent(last.Table), common.QuoteIdent(last.LocalKey),
			common.QuoteIdent(related.Table), common.QuoteIdent(related.PrimaryKey)))

		for i := len(hops) - 2; i >= 0; i-- {
			hop, next := hops[i], hops[i+1]
			q = q.Join(fmt.Sprintf("JOIN %s ON %s.%s = %s.%s",
				common.QuoteIdent(hop.Table),
				common.QuoteIdent(hop.Table), common.QuoteIdent(hop.LocalKey),
				common.QuoteIdent(next.Table), common.QuoteIdent(next.ForeignKey)))
		}

		first := hops[0]
		return q.Where(fmt.Sprintf("%s.%s = ?", common.QuoteIdent(first.Table), common.QuoteIdent(first.ForeignKey)), parentID)
	})
}
