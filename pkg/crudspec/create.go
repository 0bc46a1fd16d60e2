package crudspec

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/bitechdev/CrudSpec/pkg/cache"
	"github.com/bitechdev/CrudSpec/pkg/common"
	"github.com/bitechdev/CrudSpec/pkg/logger"
	"github.com/bitechdev/CrudSpec/pkg/schema"
	"github.com/bitechdev/CrudSpec/pkg/validator"
)

// parseBody decodes the request body into a field map. An empty body is
// an empty map.
func parseBody(r common.Request) (map[string]interface{}, *apiError) {
	body, err := r.Body()
	if err != nil {
		return nil, newAPIError(http.StatusBadRequest, "Bad request", "Could not read the request body.")
	}
	if len(body) == 0 {
		return map[string]interface{}{}, nil
	}
	var input map[string]interface{}
	if err := json.Unmarshal(body, &input); err != nil {
		return nil, newAPIError(http.StatusBadRequest, "Bad request", "The request body is not valid JSON.")
	}
	return input, nil
}

// uniqueChecker probes the record's table for an existing value,
// excluding the record being updated.
func (h *Handler) uniqueChecker(state *requestState) validator.UniqueChecker {
	s := state.schema
	return func(ctx context.Context, field string, value interface{}, excludeID interface{}) (bool, error) {
		q := state.db.NewSelect().
			Table(s.Table).
			Where(common.QuoteIdent(field)+" = ?", value)
		if excludeID != nil {
			q = q.Where(common.QuoteIdent(s.PrimaryKey)+" != ?", excludeID)
		}
		return q.Exists(ctx)
	}
}

// hashPasswords replaces password-typed values with their hash before
// anything touches the database.
func (h *Handler) hashPasswords(s *schema.Schema, clean map[string]interface{}) error {
	for name, value := range clean {
		f := s.Field(name)
		if f == nil || f.BaseType != schema.TypePassword || value == nil {
			continue
		}
		plain, ok := value.(string)
		if !ok || plain == "" {
			continue
		}
		hashed, err := h.deps.Hasher.Hash(plain)
		if err != nil {
			return err
		}
		clean[name] = hashed
	}
	return nil
}

// invalidateListCache drops the cached list totals for the table after
// a committed write. Cache trouble never fails the request.
func (h *Handler) invalidateListCache(ctx context.Context, state *requestState) {
	if err := cache.InvalidateTable(ctx, connectionName(state.schema), state.schema.Table); err != nil {
		logger.Debug("Failed to invalidate list cache for %s: %v", state.schema.Table, err)
	}
}

// HandleCreate serves POST /{model}.
func (h *Handler) HandleCreate(w common.ResponseWriter, r common.Request) {
	start := time.Now()
	state, apiErr := h.resolve(r, false)
	if apiErr != nil {
		h.sendError(w, apiErr)
		return
	}
	if apiErr := h.authorize(r, state.schema, "create"); apiErr != nil {
		h.sendError(w, apiErr)
		return
	}

	input, apiErr := parseBody(r)
	if apiErr != nil {
		h.sendError(w, apiErr)
		return
	}

	ctx := r.Context()
	v := validator.New(state.schema, validator.WithUniqueChecker(h.uniqueChecker(state)))
	clean, errs, err := v.Validate(ctx, input, validator.ModeCreate, nil)
	if err != nil {
		h.observe("create", state.model, start, err)
		h.sendError(w, classifyError(err, state.schema))
		return
	}
	if errs.Any() {
		h.observe("create", state.model, start, nil)
		h.sendError(w, validationError(errs))
		return
	}

	if err := h.hashPasswords(state.schema, clean); err != nil {
		h.observe("create", state.model, start, err)
		h.sendError(w, classifyError(err, state.schema))
		return
	}

	record := NewRecord(state.schema)
	err = state.db.RunInTransaction(ctx, func(tx common.Database) error {
		if err := record.SetAll(clean); err != nil {
			return err
		}
		record.StampCreated(h.deps.Clock.Now())
		return record.Insert(ctx, tx)
	})
	h.observe("create", state.model, start, err)
	if err != nil {
		h.sendError(w, classifyError(err, state.schema))
		return
	}

	h.invalidateListCache(ctx, state)
	h.audit(r, "create", state.schema, record.PrimaryKey())

	name := h.translate(state.schema.SingularDisplayName(), nil)
	h.sendMessage(w, http.StatusCreated, common.MessageResponse{
		Title:       fmt.Sprintf("%s created", name),
		Description: fmt.Sprintf("%s %v has been created.", name, record.PrimaryKey()),
		Model:       state.schema.Model,
		ID:          record.PrimaryKey(),
		Data:        record.Fields(),
	})
}
