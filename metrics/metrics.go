// Package metrics provides in-process counters for the agents' /metrics
// endpoints. Counters are atomic and live for the life of the process;
// there is no external metrics backend.
package metrics

import "sync/atomic"

// Registry holds the counters one agent exposes. Methods are safe on a
// nil receiver, which then count nothing.
type Registry struct {
	requests            atomic.Int64
	awards              atomic.Int64
	noMatch             atomic.Int64
	noOpenTasks         atomic.Int64
	malformedRecords    atomic.Int64
	classifierFallbacks atomic.Int64
	ledgerFailures      atomic.Int64
	storeFailures       atomic.Int64
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{}
}

// IncRequests counts one handled HTTP request.
func (r *Registry) IncRequests() {
	if r == nil {
		return
	}
	r.requests.Add(1)
}

// IncAwards counts one granted award.
func (r *Registry) IncAwards() {
	if r == nil {
		return
	}
	r.awards.Add(1)
}

// IncNoMatch counts one award request that matched no task.
func (r *Registry) IncNoMatch() {
	if r == nil {
		return
	}
	r.noMatch.Add(1)
}

// IncNoOpenTasks counts one award request that found no open tasks.
func (r *Registry) IncNoOpenTasks() {
	if r == nil {
		return
	}
	r.noOpenTasks.Add(1)
}

// AddMalformedRecords counts store records dropped during extraction.
func (r *Registry) AddMalformedRecords(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.malformedRecords.Add(int64(n))
}

// IncClassifierFallbacks counts matches decided by the heuristic after a
// classifier attempt failed or was rejected.
func (r *Registry) IncClassifierFallbacks() {
	if r == nil {
		return
	}
	r.classifierFallbacks.Add(1)
}

// IncLedgerFailures counts swallowed ledger append failures.
func (r *Registry) IncLedgerFailures() {
	if r == nil {
		return
	}
	r.ledgerFailures.Add(1)
}

// IncStoreFailures counts fatal store failures surfaced to callers.
func (r *Registry) IncStoreFailures() {
	if r == nil {
		return
	}
	r.storeFailures.Add(1)
}

// Snapshot is a point-in-time copy of every counter.
type Snapshot struct {
	Requests            int64 `json:"requests"`
	Awards              int64 `json:"awards"`
	NoMatch             int64 `json:"no_match"`
	NoOpenTasks         int64 `json:"no_open_tasks"`
	MalformedRecords    int64 `json:"malformed_records"`
	ClassifierFallbacks int64 `json:"classifier_fallbacks"`
	LedgerFailures      int64 `json:"ledger_failures"`
	StoreFailures       int64 `json:"store_failures"`
}

// Snapshot returns the current counter values.
func (r *Registry) Snapshot() Snapshot {
	if r == nil {
		return Snapshot{}
	}
	return Snapshot{
		Requests:            r.requests.Load(),
		Awards:              r.awards.Load(),
		NoMatch:             r.noMatch.Load(),
		NoOpenTasks:         r.noOpenTasks.Load(),
		MalformedRecords:    r.malformedRecords.Load(),
		ClassifierFallbacks: r.classifierFallbacks.Load(),
		LedgerFailures:      r.ledgerFailures.Load(),
		StoreFailures:       r.storeFailures.Load(),
	}
}
