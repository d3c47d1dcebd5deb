package main

import (
	"encoding/json"
	"net/http"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/go-pluto/orset/node"
	"github.com/gorilla/mux"
)

// newRouter builds the admin HTTP surface of a replica.
// metricsHandler may be nil if metrics are discarded.
func newRouter(logger log.Logger, svc node.Service, metricsHandler http.Handler) *mux.Router {

	router := mux.NewRouter()

	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	router.HandleFunc("/elements", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(logger, w, svc.Elements())
	}).Methods(http.MethodGet)

	router.HandleFunc("/elements/{elem:.+}", func(w http.ResponseWriter, r *http.Request) {

		if !svc.Contains(mux.Vars(r)["elem"]) {
			http.Error(w, "not a member", http.StatusNotFound)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}).Methods(http.MethodGet)

	router.HandleFunc("/state", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(logger, w, svc.Snapshot())
	}).Methods(http.MethodGet)

	if metricsHandler != nil {
		router.Handle("/metrics", metricsHandler).Methods(http.MethodGet)
	}

	return router
}

func writeJSON(logger log.Logger, w http.ResponseWriter, v interface{}) {

	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(v); err != nil {
		level.Warn(logger).Log("msg", "failed to write JSON response", "err", err)
	}
}
