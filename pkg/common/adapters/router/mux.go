// Package router adapts gorilla/mux and uptrace/bunrouter to the
// common.Router interface.
package router

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/bitechdev/CrudSpec/pkg/common"
	"github.com/bitechdev/CrudSpec/pkg/logger"
)

// MuxAdapter adapts Gorilla Mux to the Router interface.
type MuxAdapter struct {
	router *mux.Router
}

// NewMuxAdapter creates a new Mux adapter.
func NewMuxAdapter(router *mux.Router) *MuxAdapter {
	return &MuxAdapter{router: router}
}

// NewMuxAdapterDefault creates a Mux adapter with a fresh router.
func NewMuxAdapterDefault() *MuxAdapter {
	return &MuxAdapter{router: mux.NewRouter()}
}

// GetMuxRouter returns the underlying mux router for direct access.
func (m *MuxAdapter) GetMuxRouter() *mux.Router {
	return m.router
}

func (m *MuxAdapter) HandleFunc(pattern string, handler common.HTTPHandlerFunc) common.RouteRegistration {
	return &MuxRouteRegistration{
		router:  m.router,
		pattern: pattern,
		handler: handler,
	}
}

func (m *MuxAdapter) ServeHTTP(w common.ResponseWriter, r common.Request) {
	m.router.ServeHTTP(w.UnderlyingResponseWriter(), r.UnderlyingRequest())
}

// MuxRouteRegistration implements RouteRegistration for Mux.
type MuxRouteRegistration struct {
	router  *mux.Router
	pattern string
	handler common.HTTPHandlerFunc
	route   *mux.Route
}

func (m *MuxRouteRegistration) ensureRoute() {
	if m.route != nil {
		return
	}
	m.route = m.router.HandleFunc(m.pattern, func(w http.ResponseWriter, r *http.Request) {
		reqAdapter := &HTTPRequest{req: r, vars: mux.Vars(r)}
		respAdapter := &HTTPResponseWriter{resp: w}
		m.handler(respAdapter, reqAdapter)
	})
}

func (m *MuxRouteRegistration) Methods(methods ...string) common.RouteRegistration {
	m.ensureRoute()
	m.route.Methods(methods...)
	return m
}

func (m *MuxRouteRegistration) PathPrefix(prefix string) common.RouteRegistration {
	m.ensureRoute()
	m.route.PathPrefix(prefix)
	return m
}

// HTTPRequest adapts a standard http.Request plus router path variables
// to the Request interface.
type HTTPRequest struct {
	req  *http.Request
	vars map[string]string
	body []byte
}

// NewHTTPRequest wraps r with an empty variable map.
func NewHTTPRequest(r *http.Request) *HTTPRequest {
	return &HTTPRequest{req: r, vars: make(map[string]string)}
}

// NewHTTPRequestWithVars wraps r with explicit path variables.
func NewHTTPRequestWithVars(r *http.Request, vars map[string]string) *HTTPRequest {
	if vars == nil {
		vars = make(map[string]string)
	}
	return &HTTPRequest{req: r, vars: vars}
}

func (h *HTTPRequest) Method() string {
	return h.req.Method
}

func (h *HTTPRequest) URL() string {
	return h.req.URL.String()
}

func (h *HTTPRequest) Header(key string) string {
	return h.req.Header.Get(key)
}

func (h *HTTPRequest) AllHeaders() map[string]string {
	headers := make(map[string]string)
	for key, values := range h.req.Header {
		if len(values) > 0 {
			headers[key] = values[0]
		}
	}
	return headers
}

func (h *HTTPRequest) Body() ([]byte, error) {
	if h.body != nil {
		return h.body, nil
	}
	if h.req.Body == nil {
		return nil, nil
	}
	defer h.req.Body.Close()
	body, err := io.ReadAll(h.req.Body)
	if err != nil {
		return nil, err
	}
	h.body = body
	return body, nil
}

func (h *HTTPRequest) PathParam(key string) string {
	return h.vars[key]
}

func (h *HTTPRequest) QueryParam(key string) string {
	return h.req.URL.Query().Get(key)
}

func (h *HTTPRequest) AllQueryParams() map[string][]string {
	return h.req.URL.Query()
}

func (h *HTTPRequest) Context() context.Context {
	return h.req.Context()
}

func (h *HTTPRequest) UnderlyingRequest() *http.Request {
	return h.req
}

// HTTPResponseWriter adapts http.ResponseWriter to the ResponseWriter
// interface.
type HTTPResponseWriter struct {
	resp   http.ResponseWriter
	status int
}

// NewHTTPResponseWriter wraps w.
func NewHTTPResponseWriter(w http.ResponseWriter) *HTTPResponseWriter {
	return &HTTPResponseWriter{resp: w}
}

func (h *HTTPResponseWriter) SetHeader(key, value string) {
	h.resp.Header().Set(key, value)
}

func (h *HTTPResponseWriter) WriteHeader(statusCode int) {
	h.status = statusCode
	h.resp.WriteHeader(statusCode)
}

func (h *HTTPResponseWriter) Write(data []byte) (int, error) {
	return h.resp.Write(data)
}

func (h *HTTPResponseWriter) WriteJSON(data interface{}) error {
	h.SetHeader("Content-Type", "application/json")
	if err := json.NewEncoder(h.resp).Encode(data); err != nil {
		logger.Warn("Failed to encode JSON response. %v", err)
		return err
	}
	return nil
}

func (h *HTTPResponseWriter) UnderlyingResponseWriter() http.ResponseWriter {
	return h.resp
}
