package httpapi

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// ProofService is the subset of internal/facade.Facade this handler
// drives: the one long-running operation worth submitting as an async
// job rather than answering inline.
type ProofService interface {
	ProveStateTransition(ctx context.Context, clientID string) (proof, verifyingKeyHash, publicValues []byte, err error)
}

// Handler is the HTTP surface in front of a ProofService and a
// JobCollector.
type Handler struct {
	prover    ProofService
	collector *JobCollector
	log       zerolog.Logger
}

// NewHandler wires prover and collector into a Handler.
func NewHandler(prover ProofService, collector *JobCollector, log zerolog.Logger) *Handler {
	return &Handler{
		prover:    prover,
		collector: collector,
		log:       log.With().Str("component", "httpapi").Logger(),
	}
}

type submitJobReq struct {
	ClientID string `json:"client_id"`
}

// handleSubmitJob accepts a client ID and queues an async
// prove_state_transition run for it, returning the job's ID
// immediately.
func (h *Handler) handleSubmitJob(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}
	defer r.Body.Close()

	var req submitJobReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "failed to decode request")
		return
	}
	if strings.TrimSpace(req.ClientID) == "" {
		writeError(w, http.StatusBadRequest, "missing_client_id", "client_id is required")
		return
	}

	jobID := h.collector.Submit(req.ClientID)
	go h.runJob(jobID, req.ClientID)

	writeJSON(w, http.StatusAccepted, map[string]any{"job_id": jobID, "status": string(StateQueued)})
}

// runJob drives one async proving job to completion. It uses a detached
// background context rather than the request's, since the request may
// have already returned by the time proving finishes.
func (h *Handler) runJob(jobID, clientID string) {
	h.collector.MarkProving(jobID)

	proof, vkHash, publicValues, err := h.prover.ProveStateTransition(context.Background(), clientID)
	if err != nil {
		h.collector.Fail(jobID, err.Error())
		return
	}
	h.collector.Complete(jobID, proof, vkHash, publicValues)
}

// handleJobStatus reports a job's current state.
func (h *Handler) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	jobID := strings.TrimSpace(mux.Vars(r)["jobID"])
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "missing_path_param", "provide /v1/proofs/jobs/{jobID}/status")
		return
	}

	job, err := h.collector.GetStatus(jobID)
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found", err.Error())
		return
	}

	resp := map[string]any{
		"job_id":       job.ID,
		"client_id":    job.ClientID,
		"state":        string(job.State),
		"submitted_at": job.SubmittedAt,
	}
	if job.State == StateComplete {
		resp["proof"] = hex.EncodeToString(job.Proof)
		resp["verifying_key_hash"] = hex.EncodeToString(job.VerifyingKeyHash)
		resp["public_values"] = hex.EncodeToString(job.PublicValues)
		resp["completed_at"] = job.CompletedAt
	}
	if job.State == StateFailed {
		resp["error_message"] = job.ErrorMessage
		resp["completed_at"] = job.CompletedAt
	}

	writeJSON(w, http.StatusOK, resp)
}
