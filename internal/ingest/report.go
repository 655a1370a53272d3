package ingest

import "time"

// ReportError is one (subject, message) pair accumulated during a run. The
// subject is the source path or item id the failure belongs to.
type ReportError struct {
	Subject string `json:"subject"`
	Message string `json:"message"`
}

// Report accumulates the outcome of one ingest run. Counters only ever
// increase while the run is active; the struct is not written to after the
// run finishes.
type Report struct {
	Started    time.Time `json:"started"`
	Finished   time.Time `json:"finished"`
	Planned    int       `json:"planned"`
	Probed     int       `json:"probed"`
	Hashed     int       `json:"hashed"`
	Created    int       `json:"created"`
	Moved      int       `json:"moved"`
	Duplicates int       `json:"duplicates"`
	Skipped    int       `json:"skipped"`

	Errors []ReportError `json:"errors,omitempty"`

	// Plan is populated on dry runs only.
	Plan []PlanItem `json:"plan,omitempty"`
}

// NewReport starts a report for a run beginning now.
func NewReport() *Report {
	return &Report{Started: time.Now()}
}

// AddError records a per-item failure, preserving arrival order.
func (r *Report) AddError(subject, message string) {
	r.Errors = append(r.Errors, ReportError{Subject: subject, Message: message})
}

// ErrorCount returns the number of per-item failures.
func (r *Report) ErrorCount() int { return len(r.Errors) }

// Finish stamps the end of the run.
func (r *Report) Finish() { r.Finished = time.Now() }

// Duration returns the wall time of the run.
func (r *Report) Duration() time.Duration { return r.Finished.Sub(r.Started) }

// Merge folds another report's counters and errors into this one. The
// earliest start and latest finish win.
func (r *Report) Merge(other *Report) {
	if other == nil {
		return
	}
	r.Planned += other.Planned
	r.Probed += other.Probed
	r.Hashed += other.Hashed
	r.Created += other.Created
	r.Moved += other.Moved
	r.Duplicates += other.Duplicates
	r.Skipped += other.Skipped
	r.Errors = append(r.Errors, other.Errors...)
	if !other.Started.IsZero() && (r.Started.IsZero() || other.Started.Before(r.Started)) {
		r.Started = other.Started
	}
	if other.Finished.After(r.Finished) {
		r.Finished = other.Finished
	}
}
