package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"
)

// RegisterMux binds this package's routes onto a gorilla/mux router.
func (h *Handler) RegisterMux(r *mux.Router) {
	r.HandleFunc(routeSubmitJob, h.handleSubmitJob).Methods(http.MethodPost).Name(routeNameSubmitJob)
	r.HandleFunc(routeJobStatus, h.handleJobStatus).Methods(http.MethodGet).Name(routeNameJobStatus)
}
