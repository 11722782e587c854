package httpapi

// Route patterns for the async proving-job HTTP surface.
const (
	routeSubmitJob = "/v1/proofs/jobs"
	routeJobStatus = "/v1/proofs/jobs/{jobID}/status"
)

// Route names for mux URL building.
const (
	routeNameSubmitJob = "proofs_submit_job"
	routeNameJobStatus = "proofs_job_status"
)
