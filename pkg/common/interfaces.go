package common

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
)

// Database is the ORM-agnostic query surface the CRUD engine runs on.
// The bun adapter in adapters/database is the production implementation;
// a transaction obtained from BeginTx or RunInTransaction satisfies the
// same interface so handlers do not care whether they run inside one.
type Database interface {
	NewSelect() SelectQuery
	NewInsert() InsertQuery
	NewUpdate() UpdateQuery
	NewDelete() DeleteQuery

	// Raw SQL execution
	Exec(ctx context.Context, query string, args ...interface{}) (Result, error)
	Query(ctx context.Context, dest interface{}, query string, args ...interface{}) error

	// Transaction support
	BeginTx(ctx context.Context) (Database, error)
	CommitTx(ctx context.Context) error
	RollbackTx(ctx context.Context) error
	RunInTransaction(ctx context.Context, fn func(Database) error) error

	// GetUnderlyingDB returns the wrapped connection (*bun.DB or bun.Tx).
	GetUnderlyingDB() interface{}

	// DriverName returns the canonical driver name: "postgres",
	// "sqlite" or "mssql".
	DriverName() string
}

// SelectQuery builds a SELECT statement.
type SelectQuery interface {
	Table(table string) SelectQuery
	Column(columns ...string) SelectQuery
	ColumnExpr(query string, args ...interface{}) SelectQuery
	Where(query string, args ...interface{}) SelectQuery
	WhereOr(query string, args ...interface{}) SelectQuery
	WhereGroup(sep string, fn func(SelectQuery) SelectQuery) SelectQuery
	Join(query string, args ...interface{}) SelectQuery
	LeftJoin(query string, args ...interface{}) SelectQuery
	Order(order string) SelectQuery
	OrderExpr(order string, args ...interface{}) SelectQuery
	Limit(n int) SelectQuery
	Offset(n int) SelectQuery
	Group(group string) SelectQuery

	Scan(ctx context.Context, dest interface{}) error
	Count(ctx context.Context) (int, error)
	Exists(ctx context.Context) (bool, error)
}

// InsertQuery builds an INSERT statement.
type InsertQuery interface {
	Table(table string) InsertQuery
	Value(column string, value interface{}) InsertQuery
	Returning(columns ...string) InsertQuery

	Exec(ctx context.Context) (Result, error)
	// ExecReturning runs the insert and scans RETURNING output into dest.
	ExecReturning(ctx context.Context, dest interface{}) error
}

// UpdateQuery builds an UPDATE statement.
type UpdateQuery interface {
	Table(table string) UpdateQuery
	Set(column string, value interface{}) UpdateQuery
	SetMap(values map[string]interface{}) UpdateQuery
	Where(query string, args ...interface{}) UpdateQuery

	Exec(ctx context.Context) (Result, error)
}

// DeleteQuery builds a DELETE statement.
type DeleteQuery interface {
	Table(table string) DeleteQuery
	Where(query string, args ...interface{}) DeleteQuery

	Exec(ctx context.Context) (Result, error)
}

// Result reports the outcome of a statement execution.
type Result interface {
	RowsAffected() int64
	LastInsertId() (int64, error)
}

// Router abstracts the HTTP router.
type Router interface {
	HandleFunc(pattern string, handler HTTPHandlerFunc) RouteRegistration
	ServeHTTP(w ResponseWriter, r Request)
}

// RouteRegistration allows method chaining for route configuration.
type RouteRegistration interface {
	Methods(methods ...string) RouteRegistration
	PathPrefix(prefix string) RouteRegistration
}

// Request abstracts an HTTP request so handlers stay router-agnostic.
type Request interface {
	Method() string
	URL() string
	Header(key string) string
	AllHeaders() map[string]string
	Body() ([]byte, error)
	PathParam(key string) string
	QueryParam(key string) string
	AllQueryParams() map[string][]string
	Context() context.Context
	UnderlyingRequest() *http.Request
}

// ResponseWriter abstracts an HTTP response.
type ResponseWriter interface {
	SetHeader(key, value string)
	WriteHeader(statusCode int)
	Write(data []byte) (int, error)
	WriteJSON(data interface{}) error
	UnderlyingResponseWriter() http.ResponseWriter
}

// HTTPHandlerFunc is the router-agnostic handler signature.
type HTTPHandlerFunc func(ResponseWriter, Request)

// WrapHTTPRequest wraps a standard response writer and request into the
// common interfaces.
func WrapHTTPRequest(w http.ResponseWriter, r *http.Request) (ResponseWriter, Request) {
	return &StandardResponseWriter{w: w}, &StandardRequest{r: r}
}

// StandardResponseWriter adapts http.ResponseWriter.
type StandardResponseWriter struct {
	w      http.ResponseWriter
	status int
}

func (s *StandardResponseWriter) SetHeader(key, value string) {
	s.w.Header().Set(key, value)
}

func (s *StandardResponseWriter) WriteHeader(statusCode int) {
	s.status = statusCode
	s.w.WriteHeader(statusCode)
}

func (s *StandardResponseWriter) Write(data []byte) (int, error) {
	return s.w.Write(data)
}

func (s *StandardResponseWriter) WriteJSON(data interface{}) error {
	s.SetHeader("Content-Type", "application/json")
	return json.NewEncoder(s.w).Encode(data)
}

func (s *StandardResponseWriter) UnderlyingResponseWriter() http.ResponseWriter {
	return s.w
}

// StandardRequest adapts *http.Request. Path parameters must be supplied
// by a router adapter; the plain adapter returns "".
type StandardRequest struct {
	r    *http.Request
	body []byte
}

func (s *StandardRequest) Method() string {
	return s.r.Method
}

func (s *StandardRequest) URL() string {
	return s.r.URL.String()
}

func (s *StandardRequest) Header(key string) string {
	return s.r.Header.Get(key)
}

func (s *StandardRequest) AllHeaders() map[string]string {
	headers := make(map[string]string)
	for key, values := range s.r.Header {
		if len(values) > 0 {
			headers[key] = values[0]
		}
	}
	return headers
}

func (s *StandardRequest) Body() ([]byte, error) {
	if s.body != nil {
		return s.body, nil
	}
	if s.r.Body == nil {
		return nil, nil
	}
	defer s.r.Body.Close()
	body, err := io.ReadAll(s.r.Body)
	if err != nil {
		return nil, err
	}
	s.body = body
	return body, nil
}

func (s *StandardRequest) PathParam(key string) string {
	return ""
}

func (s *StandardRequest) QueryParam(key string) string {
	return s.r.URL.Query().Get(key)
}

func (s *StandardRequest) AllQueryParams() map[string][]string {
	return s.r.URL.Query()
}

func (s *StandardRequest) Context() context.Context {
	return s.r.Context()
}

func (s *StandardRequest) UnderlyingRequest() *http.Request {
	return s.r
}
