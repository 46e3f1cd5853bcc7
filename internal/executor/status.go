package executor

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/alanyoungcy/jitoarb/internal/domain"
)

// Status is a point-in-time view of the loop for the status API.
type Status struct {
	State            State                    `json:"state"`
	ExecutionEnabled bool                     `json:"execution_enabled"`
	Cycles           uint64                   `json:"cycles"`
	FetchFailures    uint64                   `json:"fetch_failures"`
	Opportunities    uint64                   `json:"opportunities"`
	Submitted        uint64                   `json:"submitted"`
	Landed           uint64                   `json:"landed"`
	Failed           uint64                   `json:"failed"`
	Unknown          uint64                   `json:"unknown"`
	Errors           uint64                   `json:"errors"`
	LastCycleAt      time.Time                `json:"last_cycle_at"`
	LastOpportunity  *domain.Opportunity      `json:"last_opportunity,omitempty"`
	LastResult       *domain.SubmissionResult `json:"last_result,omitempty"`
	LastError        string                   `json:"last_error,omitempty"`
	Quotes           []domain.Quote           `json:"quotes,omitempty"`
}

type stats struct {
	cycles        atomic.Uint64
	fetchFailures atomic.Uint64
	opportunities atomic.Uint64
	submitted     atomic.Uint64
	landed        atomic.Uint64
	failed        atomic.Uint64
	unknown       atomic.Uint64
	errors        atomic.Uint64

	mu              sync.Mutex
	lastCycleAt     time.Time
	lastOpportunity *domain.Opportunity
	lastResult      *domain.SubmissionResult
	lastError       string
	quotes          []domain.Quote
}

func (s *stats) setLastCycle(t time.Time) {
	s.mu.Lock()
	s.lastCycleAt = t
	s.mu.Unlock()
}

func (s *stats) setOpportunity(o domain.Opportunity) {
	s.mu.Lock()
	s.lastOpportunity = &o
	s.mu.Unlock()
}

func (s *stats) setResult(r domain.SubmissionResult) {
	r.Raw = nil
	s.mu.Lock()
	s.lastResult = &r
	s.mu.Unlock()
}

func (s *stats) setError(err error) {
	s.mu.Lock()
	s.lastError = err.Error()
	s.mu.Unlock()
}

func (s *stats) setQuotes(q domain.QuoteSet) {
	all := q.All()
	s.mu.Lock()
	s.quotes = all
	s.mu.Unlock()
}

// Status returns a snapshot of counters and the latest cycle details.
func (l *Loop) Status() Status {
	st := Status{
		State:            l.State(),
		ExecutionEnabled: l.cfg.ExecutionEnabled,
		Cycles:           l.stats.cycles.Load(),
		FetchFailures:    l.stats.fetchFailures.Load(),
		Opportunities:    l.stats.opportunities.Load(),
		Submitted:        l.stats.submitted.Load(),
		Landed:           l.stats.landed.Load(),
		Failed:           l.stats.failed.Load(),
		Unknown:          l.stats.unknown.Load(),
		Errors:           l.stats.errors.Load(),
	}
	l.stats.mu.Lock()
	defer l.stats.mu.Unlock()
	st.LastCycleAt = l.stats.lastCycleAt
	st.LastError = l.stats.lastError
	if l.stats.lastOpportunity != nil {
		o := *l.stats.lastOpportunity
		st.LastOpportunity = &o
	}
	if l.stats.lastResult != nil {
		r := *l.stats.lastResult
		st.LastResult = &r
	}
	st.Quotes = append([]domain.Quote(nil), l.stats.quotes...)
	return st
}
