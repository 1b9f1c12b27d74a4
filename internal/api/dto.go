package api

import "time"

// Run is the API view of one tuning run. Runs are created by POSTing a job
// document in the YAML job-file schema (JSON bodies parse too).
type Run struct {
	ID          string         `json:"id"`
	Status      RunStatus      `json:"status"`
	Kernel      string         `json:"kernel"`
	Strategy    string         `json:"strategy"`
	CreatedAt   time.Time      `json:"created_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	Progress    float64        `json:"progress"`
	Best        map[string]int `json:"best,omitempty"`
	BestTimeMS  float64        `json:"best_time_ms"`
	Error       string         `json:"error,omitempty"`
	Trials      []Trial        `json:"trials,omitempty"`
}

// Trial is one measured configuration in a finished run.
type Trial struct {
	Parameters map[string]int `json:"parameters"`
	TimeMS     float64        `json:"time_ms"`
	Status     string         `json:"status"`
}

// RunList wraps the run collection.
type RunList struct {
	Runs []Run `json:"runs"`
}

// ResultsResponse carries a finished run's full result table.
type ResultsResponse struct {
	ID         string         `json:"id"`
	Status     RunStatus      `json:"status"`
	Best       map[string]int `json:"best,omitempty"`
	BestTimeMS float64        `json:"best_time_ms"`
	Trials     []Trial        `json:"trials"`
}

// DeleteRunResponse acknowledges a deletion.
type DeleteRunResponse struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

// APIError is the error envelope for every non-2xx response.
type APIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}
