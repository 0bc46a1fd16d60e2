package crudspec

import (
	"net/http"

	"github.com/bitechdev/CrudSpec/pkg/common"
	"github.com/bitechdev/CrudSpec/pkg/logger"
)

func (h *Handler) sendJSON(w common.ResponseWriter, status int, payload interface{}) {
	w.SetHeader("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := w.WriteJSON(payload); err != nil {
		logger.Error("Error sending response: %v", err)
	}
}

func (h *Handler) sendMessage(w common.ResponseWriter, status int, msg common.MessageResponse) {
	h.sendJSON(w, status, msg)
}

func (h *Handler) sendError(w common.ResponseWriter, apiErr *apiError) {
	h.sendJSON(w, apiErr.status, common.ErrorResponse{
		Title:       apiErr.title,
		Description: apiErr.description,
		Errors:      apiErr.errors,
	})
	if apiErr.status >= http.StatusInternalServerError {
		logger.Error("Request failed: %s", apiErr.description)
	}
}
