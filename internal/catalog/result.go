package catalog

import "time"

// Status summarizes how completely the source list was built.
type Status string

const (
	StatusHealthy  Status = "healthy"
	StatusDegraded Status = "degraded"
)

// SourceFailure records a remote repository that could not be added.
type SourceFailure struct {
	SourceID string `json:"source_id"`
	Reason   string `json:"reason"`
}

// InitResult is the outcome of building or reloading the remote sources.
type InitResult struct {
	Status   Status          `json:"status"`
	Sources  []string        `json:"sources"`
	Failures []SourceFailure `json:"failures,omitempty"`
	At       time.Time       `json:"at"`
}

// Degraded reports whether at least one configured repository was left out.
func (r InitResult) Degraded() bool {
	return r.Status == StatusDegraded
}

func newResult(sources []string, failures []SourceFailure) InitResult {
	status := StatusHealthy
	if len(failures) > 0 {
		status = StatusDegraded
	}
	return InitResult{
		Status:   status,
		Sources:  sources,
		Failures: failures,
		At:       time.Now().UTC(),
	}
}
