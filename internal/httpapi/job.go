package httpapi

import "time"

// JobState is the lifecycle state of an asynchronously submitted proving
// job, mirroring the teacher's proofs.Status.State string states
// ("collecting", "proving", ...) but enumerated for this service's own
// three-stage pipeline: queued, proving, and a terminal state.
type JobState string

const (
	StateQueued   JobState = "queued"
	StateProving  JobState = "proving"
	StateComplete JobState = "complete"
	StateFailed   JobState = "failed"
)

// Job is one asynchronous prove_state_transition request and its result.
type Job struct {
	ID               string
	ClientID         string
	State            JobState
	Proof            []byte
	VerifyingKeyHash []byte
	PublicValues     []byte
	ErrorMessage     string
	SubmittedAt      time.Time
	CompletedAt      time.Time
}
