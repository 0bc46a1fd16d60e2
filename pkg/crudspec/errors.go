package crudspec

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/bitechdev/CrudSpec/pkg/schema"
	"github.com/bitechdev/CrudSpec/pkg/sprunje"
	"github.com/bitechdev/CrudSpec/pkg/validator"
)

// ErrRecordNotFound is returned when the primary-key lookup misses,
// soft-deleted rows included.
var ErrRecordNotFound = errors.New("record not found")

// apiError carries everything needed to write an error response.
type apiError struct {
	status      int
	title       string
	description string
	errors      validator.Errors
}

func (e *apiError) Error() string { return e.description }

func newAPIError(status int, title, description string) *apiError {
	return &apiError{status: status, title: title, description: description}
}

func validationError(errs validator.Errors) *apiError {
	return &apiError{
		status:      http.StatusBadRequest,
		title:       "Validation failed",
		description: "The submitted data did not pass validation.",
		errors:      errs,
	}
}

// classifyError maps an internal error to an apiError. Unique
// violations surfacing from the database become a 409 with the
// offending field mapped back into the validation error map.
func classifyError(err error, s *schema.Schema) *apiError {
	var api *apiError
	if errors.As(err, &api) {
		return api
	}

	switch {
	case errors.Is(err, ErrRecordNotFound), errors.Is(err, sql.ErrNoRows):
		return newAPIError(http.StatusNotFound, "Not found", "The requested record does not exist.")
	case errors.Is(err, schema.ErrSchemaNotFound):
		return newAPIError(http.StatusNotFound, "Not found", "No such model.")
	case errors.Is(err, schema.ErrSchemaMalformed):
		return newAPIError(http.StatusInternalServerError, "Server error", "The model schema could not be loaded.")
	case errors.Is(err, sprunje.ErrBadParameter):
		return newAPIError(http.StatusBadRequest, "Bad request", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return newAPIError(http.StatusGatewayTimeout, "Timeout", "The request timed out before it could complete.")
	}

	if field, ok := uniqueViolationField(err, s); ok {
		errs := make(validator.Errors)
		errs.Add(field, validator.RuleUnique)
		return &apiError{
			status:      http.StatusConflict,
			title:       "Conflict",
			description: "A record with the same value already exists.",
			errors:      errs,
		}
	}

	return newAPIError(http.StatusInternalServerError, "Server error", "An unexpected error occurred.")
}

// uniqueViolationField detects a database-level unique violation and
// maps it back to the schema field it hit.
func uniqueViolationField(err error, s *schema.Schema) (string, bool) {
	if err == nil {
		return "", false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fieldFromConstraint(pgErr.ConstraintName, s), true
	}

	msg := err.Error()
	if idx := strings.Index(msg, "UNIQUE constraint failed: "); idx >= 0 {
		// sqlite reports "UNIQUE constraint failed: table.column".
		rest := msg[idx+len("UNIQUE constraint failed: "):]
		if dot := strings.IndexByte(rest, '.'); dot >= 0 {
			column := strings.TrimSpace(rest[dot+1:])
			if comma := strings.IndexByte(column, ','); comma >= 0 {
				column = column[:comma]
			}
			if s != nil && s.HasField(column) {
				return column, true
			}
		}
		return fallbackUniqueField(s), true
	}
	if strings.Contains(msg, "Violation of UNIQUE KEY constraint") || strings.Contains(msg, "duplicate key") {
		return fieldFromConstraint(msg, s), true
	}
	return "", false
}

// fieldFromConstraint scans a constraint name or message for any field
// of the schema.
func fieldFromConstraint(text string, s *schema.Schema) string {
	if s != nil {
		for name := range s.Fields {
			if strings.Contains(text, name) {
				return name
			}
		}
	}
	return fallbackUniqueField(s)
}

func fallbackUniqueField(s *schema.Schema) string {
	if s != nil {
		return s.PrimaryKey
	}
	return "id"
}
