package harness

// TraceEvent records what one step did.
type TraceEvent struct {
	Step          int      `json:"step"`
	Kind          string   `json:"kind"`
	TransactionID string   `json:"transaction_id,omitempty"`
	ProductID     string   `json:"product_id,omitempty"`
	Outcome       string   `json:"outcome"`
	Purchased     []string `json:"purchased"`
}

// Trace outcomes.
const (
	OutcomeIngested = "ingested"
	OutcomeRejected = "rejected"
	OutcomeLoaded   = "loaded"
	OutcomePartial  = "partial"
	OutcomeApplied  = "applied"
)

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every assertion held.
	Pass bool `json:"pass"`

	Trace  []TraceEvent `json:"trace"`
	Errors []string     `json:"errors,omitempty"`

	// Rejected counts elements that never reached the reconciler.
	Rejected int `json:"rejected"`

	// Governing maps product id to the governing transaction id.
	Governing map[string]string `json:"governing"`
	Purchased []string          `json:"purchased"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:      true,
		Trace:     []TraceEvent{},
		Errors:    []string{},
		Governing: map[string]string{},
		Purchased: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

func (r *Result) addTrace(ev TraceEvent) {
	if ev.Purchased == nil {
		ev.Purchased = []string{}
	}
	r.Trace = append(r.Trace, ev)
}
