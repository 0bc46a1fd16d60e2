package router

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bunrouter"

	"github.com/bitechdev/CrudSpec/pkg/common"
)

func TestMuxAdapterRouting(t *testing.T) {
	adapter := NewMuxAdapter(mux.NewRouter())

	var gotModel, gotID string
	adapter.HandleFunc("/api/{model}/{id}", func(w common.ResponseWriter, r common.Request) {
		gotModel = r.PathParam("model")
		gotID = r.PathParam("id")
		w.WriteHeader(http.StatusOK)
	}).Methods("GET")

	rec := httptest.NewRecorder()
	adapter.GetMuxRouter().ServeHTTP(rec, httptest.NewRequest("GET", "/api/groups/7", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "groups", gotModel)
	assert.Equal(t, "7", gotID)

	rec = httptest.NewRecorder()
	adapter.GetMuxRouter().ServeHTTP(rec, httptest.NewRequest("POST", "/api/groups/7", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestBunRouterAdapterRouting(t *testing.T) {
	adapter := NewBunRouterAdapterDefault()

	var gotModel string
	adapter.HandleFunc("/api/:model", func(w common.ResponseWriter, r common.Request) {
		gotModel = r.PathParam("model")
		w.WriteHeader(http.StatusOK)
	}).Methods("GET")

	rec := httptest.NewRecorder()
	adapter.GetBunRouter().ServeHTTP(rec, httptest.NewRequest("GET", "/api/groups", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "groups", gotModel)
}

func TestHTTPRequestAccessors(t *testing.T) {
	httpReq := httptest.NewRequest("POST", "/api/groups?size=5&context=list&context=form",
		strings.NewReader(`{"name":"x"}`))
	httpReq.Header.Set("Content-Type", "application/json")

	req := NewHTTPRequestWithVars(httpReq, map[string]string{"model": "groups"})

	assert.Equal(t, "POST", req.Method())
	assert.Contains(t, req.URL(), "size=5")
	assert.Equal(t, "application/json", req.Header("Content-Type"))
	assert.Equal(t, "groups", req.PathParam("model"))
	assert.Equal(t, "5", req.QueryParam("size"))
	assert.Equal(t, []string{"list", "form"}, req.AllQueryParams()["context"])

	body, err := req.Body()
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"x"}`, string(body))

	// Body reads are memoized, a second call must not hit the drained reader.
	again, err := req.Body()
	require.NoError(t, err)
	assert.Equal(t, body, again)
}

func TestHTTPResponseWriterJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	w := NewHTTPResponseWriter(rec)

	w.WriteHeader(http.StatusCreated)
	require.NoError(t, w.WriteJSON(map[string]string{"title": "ok"}))

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"title":"ok"}`, rec.Body.String())
}

func TestBunRouterRequestParams(t *testing.T) {
	router := bunrouter.New()
	var gotModel, gotQuery string
	router.GET("/api/:model", func(w http.ResponseWriter, req bunrouter.Request) error {
		r := NewBunRouterRequest(req)
		gotModel = r.PathParam("model")
		gotQuery = r.QueryParam("size")
		w.WriteHeader(http.StatusNoContent)
		return nil
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/users?size=3", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "users", gotModel)
	assert.Equal(t, "3", gotQuery)
}
