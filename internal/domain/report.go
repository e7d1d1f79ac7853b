package domain

import "time"

// OutcomeStatus per-entity result of one sync task.
type OutcomeStatus string

const (
	OutcomeSuccess   OutcomeStatus = "success"
	OutcomeAmbiguous OutcomeStatus = "ambiguous"
	OutcomeSkipped   OutcomeStatus = "skipped"
	OutcomeError     OutcomeStatus = "error"
)

// EntityOutcome what happened to one remote entity during a run.
type EntityOutcome struct {
	RemoteID    int64
	DisplayName string
	Status      OutcomeStatus
	Strategy    string // match strategy when matched
	Fetched     bool   // detail page was retrieved, whatever happened after

	ClientID     string   // local client touched or created
	CreatedNew   bool     // true when an unmatched record inserted a client
	FieldsFilled []string // canonical field names written by fill-empty
	VisitsAdded  int

	CandidateIDs []string // ambiguous candidates for manual resolution
	Suggestions  []string // near-miss hints for unmatched records
	Warnings     []string // non-fatal parse warnings
	Err          string   // error text for OutcomeError
}

// SyncReport the aggregate, externally visible output of one run besides
// the datastore mutations themselves. Rendering is out of engine scope.
type SyncReport struct {
	StartedAt  time.Time
	FinishedAt time.Time

	Fetched        int
	Matched        int
	Ambiguous      int
	UnmatchedNew   int
	Skipped        int
	Errors         int
	FieldsUpdated  map[string]int // canonical field name -> fill count
	VisitsInserted int
	ParseWarnings  int

	Outcomes []EntityOutcome

	// Aborted is set when the run stopped before processing every entity
	// (fatal auth failure or cancellation). Completed work is still valid.
	Aborted     bool
	AbortReason string
}

// NewSyncReport initializes counters for a run starting now.
func NewSyncReport() *SyncReport {
	return &SyncReport{
		StartedAt:     time.Now(),
		FieldsUpdated: make(map[string]int),
	}
}

// Record folds one entity outcome into the aggregate counters.
func (r *SyncReport) Record(o EntityOutcome) {
	r.Outcomes = append(r.Outcomes, o)
	r.ParseWarnings += len(o.Warnings)
	if o.Fetched {
		r.Fetched++
	}

	switch o.Status {
	case OutcomeSuccess:
		if o.CreatedNew {
			r.UnmatchedNew++
		} else {
			r.Matched++
		}
		for _, f := range o.FieldsFilled {
			r.FieldsUpdated[f]++
		}
		r.VisitsInserted += o.VisitsAdded
	case OutcomeAmbiguous:
		r.Ambiguous++
	case OutcomeSkipped:
		r.Skipped++
	case OutcomeError:
		r.Errors++
	}
}

// Duration run wall time.
func (r *SyncReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
