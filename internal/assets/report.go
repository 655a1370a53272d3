package assets

import "time"

// ItemError is one per-item failure, keyed by item id.
type ItemError struct {
	Subject string `json:"subject"`
	Message string `json:"message"`
}

// Report accumulates the outcome of one derivative-asset run.
type Report struct {
	Started    time.Time `json:"started"`
	Finished   time.Time `json:"finished"`
	Candidates int       `json:"candidates"`
	Thumbs     int       `json:"thumbs"`
	Sheets     int       `json:"sheets"`
	Updated    int       `json:"updated"`
	Skipped    int       `json:"skipped"`

	Errors []ItemError `json:"errors,omitempty"`
}

// NewReport starts a report for a run beginning now.
func NewReport() *Report {
	return &Report{Started: time.Now()}
}

// AddError records a per-item failure.
func (r *Report) AddError(subject, message string) {
	r.Errors = append(r.Errors, ItemError{Subject: subject, Message: message})
}

// ErrorCount returns the number of per-item failures.
func (r *Report) ErrorCount() int { return len(r.Errors) }

// Finish stamps the end of the run.
func (r *Report) Finish() { r.Finished = time.Now() }

// Merge folds another report's counters and errors into this one.
func (r *Report) Merge(other *Report) {
	if other == nil {
		return
	}
	r.Candidates += other.Candidates
	r.Thumbs += other.Thumbs
	r.Sheets += other.Sheets
	r.Updated += other.Updated
	r.Skipped += other.Skipped
	r.Errors = append(r.Errors, other.Errors...)
	if !other.Started.IsZero() && (r.Started.IsZero() || other.Started.Before(r.Started)) {
		r.Started = other.Started
	}
	if other.Finished.After(r.Finished) {
		r.Finished = other.Finished
	}
}
