package crudspec

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/uptrace/bunrouter"

	"github.com/bitechdev/CrudSpec/pkg/common/adapters/router"
)

// BasePath is the root of the CRUD API surface.
const BasePath = "/api/crud6"

// MiddlewareFunc wraps an http.Handler with additional behavior.
type MiddlewareFunc func(http.Handler) http.Handler

// SetupMuxRoutes registers the CRUD routes on a gorilla/mux router.
// authMiddleware is optional; when given it wraps every CRUD route.
func SetupMuxRoutes(muxRouter *mux.Router, handler *Handler, authMiddleware MiddlewareFunc) {
	sub := muxRouter.PathPrefix(BasePath).Subrouter()
	if authMiddleware != nil {
		sub.Use(mux.MiddlewareFunc(authMiddleware))
	}
	adapter := router.NewMuxAdapter(sub)

	// Literal segments before catch-all ones: mux matches in
	// registration order.
	adapter.HandleFunc("/config", handler.HandleConfig).Methods("GET")
	adapter.HandleFunc("/{model}/schema", handler.HandleSchema).Methods("GET")
	adapter.HandleFunc("/{model}", handler.HandleList).Methods("GET")
	adapter.HandleFunc("/{model}", handler.HandleCreate).Methods("POST")
	adapter.HandleFunc("/{model}/{id}", handler.HandleRead).Methods("GET")
	adapter.HandleFunc("/{model}/{id}", handler.HandleUpdate).Methods("PUT")
	adapter.HandleFunc("/{model}/{id}", handler.HandleDelete).Methods("DELETE")
	adapter.HandleFunc("/{model}/{id}/a/{action}", handler.HandleAction).Methods("POST")
	adapter.HandleFunc("/{model}/{id}/{field}", handler.HandlePatchField).Methods("PUT")
	adapter.HandleFunc("/{model}/{id}/{relation}", handler.HandleRelation).Methods("GET")
}

// SetupBunRouterRoutes registers the CRUD routes on a bunrouter.
func SetupBunRouterRoutes(bunRouter *bunrouter.Router, handler *Handler) {
	adapter := router.NewBunRouterAdapter(bunRouter)

	adapter.HandleFunc(BasePath+"/config", handler.HandleConfig).Methods("GET")
	adapter.HandleFunc(BasePath+"/:model/schema", handler.HandleSchema).Methods("GET")
	adapter.HandleFunc(BasePath+"/:model", handler.HandleList).Methods("GET")
	adapter.HandleFunc(BasePath+"/:model", handler.HandleCreate).Methods("POST")
	adapter.HandleFunc(BasePath+"/:model/:id", handler.HandleRead).Methods("GET")
	adapter.HandleFunc(BasePath+"/:model/:id", handler.HandleUpdate).Methods("PUT")
	adapter.HandleFunc(BasePath+"/:model/:id", handler.HandleDelete).Methods("DELETE")
	adapter.HandleFunc(BasePath+"/:model/:id/a/:action", handler.HandleAction).Methods("POST")
	// bunrouter requires one param name per path position, so the GET
	// relation route shares :field with the PUT patch route.
	adapter.HandleFunc(BasePath+"/:model/:id/:field", handler.HandlePatchField).Methods("PUT")
	adapter.HandleFunc(BasePath+"/:model/:id/:field", handler.HandleRelation).Methods("GET")
}
