package models

import "time"

// RunPhase is the pipeline run state machine position.
type RunPhase string

const (
	PhaseStarted     RunPhase = "started"
	PhaseExtracting  RunPhase = "extracting"
	PhaseNormalizing RunPhase = "normalizing"
	PhaseValidating  RunPhase = "validating"
	PhaseLoading     RunPhase = "loading"
	PhaseCompleted   RunPhase = "completed"
	PhaseAborted     RunPhase = "aborted"
)

// SourceStats counts one source's contribution to a run.
type SourceStats struct {
	Fetched    int      `json:"fetched"`
	Normalized int      `json:"normalized"`
	Accepted   int      `json:"accepted"`
	Flagged    int      `json:"flagged"`
	Rejected   int      `json:"rejected"`
	Errors     []string `json:"errors,omitempty"`
}

// RunSummary is produced once per pipeline invocation and handed back to the
// external scheduler. It is never persisted.
type RunSummary struct {
	StartedAt  time.Time                   `json:"started_at"`
	FinishedAt time.Time                   `json:"finished_at"`
	Phase      RunPhase                    `json:"phase"`
	Written    int                         `json:"written"`
	Conflicts  int                         `json:"conflicts"`
	Sources    map[AssetClass]*SourceStats `json:"sources"`
}

// NewRunSummary starts a summary in the Started phase with stats slots for
// the given sources.
func NewRunSummary(classes ...AssetClass) *RunSummary {
	s := &RunSummary{
		StartedAt: time.Now().UTC(),
		Phase:     PhaseStarted,
		Sources:   make(map[AssetClass]*SourceStats, len(classes)),
	}
	for _, c := range classes {
		s.Sources[c] = &SourceStats{}
	}
	return s
}

// Stats returns the stats bucket for a class, creating it on first use.
func (s *RunSummary) Stats(class AssetClass) *SourceStats {
	st, ok := s.Sources[class]
	if !ok {
		st = &SourceStats{}
		s.Sources[class] = st
	}
	return st
}

// TotalFetched sums fetched counts across sources.
func (s *RunSummary) TotalFetched() int {
	n := 0
	for _, st := range s.Sources {
		n += st.Fetched
	}
	return n
}

// Failed reports whether the run ended in the aborted state.
func (s *RunSummary) Failed() bool { return s.Phase == PhaseAborted }
