package common

// MessageResponse is the envelope for successful state-changing
// responses. Extras such as model, id or data ride alongside.
type MessageResponse struct {
	Title       string                 `json:"title"`
	Description string                 `json:"description"`
	Model       string                 `json:"model,omitempty"`
	ID          interface{}            `json:"id,omitempty"`
	Data        map[string]interface{} `json:"data,omitempty"`
}

// ReadResponse is the envelope for single-record reads.
type ReadResponse struct {
	Message          string                 `json:"message"`
	Model            string                 `json:"model"`
	ModelDisplayName string                 `json:"modelDisplayName"`
	ID               interface{}            `json:"id"`
	Data             map[string]interface{} `json:"data"`
	Breadcrumb       string                 `json:"breadcrumb"`
}

// SchemaResponse is the envelope for schema description requests.
type SchemaResponse struct {
	Message          string           `json:"message"`
	Model            string           `json:"model"`
	ModelDisplayName string           `json:"modelDisplayName"`
	Schema           interface{}      `json:"schema"`
	Breadcrumb       SchemaBreadcrumb `json:"breadcrumb"`
}

// SchemaBreadcrumb carries the display titles for schema responses.
type SchemaBreadcrumb struct {
	ModelTitle    string `json:"modelTitle"`
	SingularTitle string `json:"singularTitle"`
}

// ErrorResponse is the envelope for failed requests. Errors carries the
// per-field rule failures for validation errors and is omitted
// otherwise.
type ErrorResponse struct {
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Errors      map[string][]string `json:"errors,omitempty"`
}

// ConfigResponse is the trivial settings export at GET /api/crud6/config.
type ConfigResponse struct {
	DebugMode bool `json:"debug_mode"`
}
