package harness

// StepTrace records the outcome of one step.
type StepTrace struct {
	Seq     int    `json:"seq"`
	Op      string `json:"op"`
	Year    int    `json:"year,omitempty"`
	Outcome string `json:"outcome"`
	TxID    string `json:"tx_id,omitempty"`

	Created    []int `json:"created,omitempty"`
	Modified   bool  `json:"modified"`
	Reconciled []int `json:"reconciled,omitempty"`
	Touched    []int `json:"touched,omitempty"`

	// Error is the full message of a failed step.
	Error string `json:"error,omitempty"`
}

// Committed reports whether the step committed.
func (s StepTrace) Committed() bool { return s.Outcome == OutcomeCommitted }

// CellValue is one snapshot cell.
type CellValue struct {
	Year  int    `json:"year"`
	Path  string `json:"path"`
	Value string `json:"value"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expect clause and assertion holds.
	Pass bool `json:"pass"`

	Trace []StepTrace `json:"trace"`

	// Errors lists failed expectations and assertions.
	Errors []string `json:"errors,omitempty"`

	DiskYears   []int       `json:"disk_years"`
	LoggedYears []int       `json:"logged_years"`
	Values      []CellValue `json:"values,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []StepTrace{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
