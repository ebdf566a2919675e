package harness

// TraceEvent is one event of the log as recorded after a scenario ran.
type TraceEvent struct {
	Seq     int64  `json:"seq"`
	Stream  string `json:"stream"`
	Type    string `json:"type"`
	Command string `json:"command,omitempty"`
}

// Result is the outcome of a scenario.
type Result struct {
	// Pass is true when every flow expectation and assertion held.
	Pass bool `json:"pass"`

	Trace  []TraceEvent `json:"trace"`
	Errors []string     `json:"errors,omitempty"`

	// Digest is the projection's state digest after the flow.
	Digest string `json:"digest"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
