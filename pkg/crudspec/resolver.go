package crudspec

import (
	"net/http"
	"strings"

	"github.com/bitechdev/CrudSpec/pkg/common"
	"github.com/bitechdev/CrudSpec/pkg/schema"
)

// requestState is what the resolver attaches to a request: the schema,
// the database it lives on, and the record when the route carries an
// id.
type requestState struct {
	model      string
	connection string
	schema     *schema.Schema
	db         common.Database
	record     *Record
}

// splitModel splits the route's model segment into model name and
// optional connection override ({model}@{connection}).
func splitModel(segment string) (model, connection string) {
	model, connection, _ = strings.Cut(segment, "@")
	return model, connection
}

// resolve runs the request-resolution steps shared by every handler:
// parse the model segment, load the schema, pick the connection, and
// when the route names an id, fetch the record. A nil apiError means
// the state is complete.
func (h *Handler) resolve(r common.Request, withRecord bool) (*requestState, *apiError) {
	model, connection := splitModel(r.PathParam("model"))
	if !common.ValidIdent(model) {
		return nil, newAPIError(http.StatusBadRequest, "Bad request", "Invalid model name.")
	}
	if connection != "" && !common.ValidIdent(connection) {
		return nil, newAPIError(http.StatusBadRequest, "Bad request", "Invalid connection name.")
	}

	s, err := h.deps.Schemas.GetSchemaForConnection(model, connection)
	if err != nil {
		return nil, classifyError(err, nil)
	}

	db, err := h.database(s)
	if err != nil {
		return nil, classifyError(err, s)
	}

	state := &requestState{
		model:      model,
		connection: connection,
		schema:     s,
		db:         db,
	}

	if withRecord {
		id := r.PathParam("id")
		if id == "" {
			return nil, newAPIError(http.StatusBadRequest, "Bad request", "Missing record id.")
		}
		record, err := FindRecord(r.Context(), db, s, id)
		if err != nil {
			return nil, classifyError(err, s)
		}
		state.record = record
	}

	return state, nil
}

// database picks the connection the schema declares, or the default.
func (h *Handler) database(s *schema.Schema) (common.Database, error) {
	if s.Connection != "" {
		return h.deps.DB.GetDatabase(s.Connection)
	}
	return h.deps.DB.GetDefaultDatabase()
}

// connectionName is the cache-tag connection label for the schema.
func connectionName(s *schema.Schema) string {
	if s.Connection != "" {
		return s.Connection
	}
	return "default"
}
