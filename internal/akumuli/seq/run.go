package seq

import (
	"sort"

	"github.com/embeddb/akumuli/internal/akumuli"
)

// SortedRun is a single time-ordered run of samples (spec §4.1, §9 "S3":
// a run's own internal order is never disturbed except by an explicit
// partition or merge). It is not safe for concurrent use — callers hold
// the owning Sequencer's run-index stripe lock around mutation.
type SortedRun struct {
	samples []akumuli.Sample
}

// NewSortedRun seeds a run with a single sample, the shape every new run
// starts in (spec §4.1 add: "if none, appends a new run").
func NewSortedRun(first akumuli.Sample) *SortedRun {
	return &SortedRun{samples: []akumuli.Sample{first}}
}

func (r *SortedRun) Len() int {
	if r == nil {
		return 0
	}
	return len(r.samples)
}

// Back returns the run's last (largest, by time order) element.
func (r *SortedRun) Back() akumuli.Sample {
	return r.samples[len(r.samples)-1]
}

// Append adds v to the end of the run. Callers are responsible for only
// doing so when v keeps the run in time order (spec §4.1: v is routed to
// the run whose back() is the largest element <= v).
func (r *SortedRun) Append(v akumuli.Sample) {
	r.samples = append(r.samples, v)
}

// PartitionAt splits the run at boundary: samples with Timestamp < boundary
// go to "before", the remainder stays in "after" (spec §4.1 make_checkpoint).
// Both halves are fresh runs; the receiver is left unmodified.
func (r *SortedRun) PartitionAt(boundary uint64) (before, after *SortedRun) {
	idx := sort.Search(len(r.samples), func(i int) bool {
		return r.samples[i].Timestamp >= boundary
	})
	before = &SortedRun{samples: append([]akumuli.Sample(nil), r.samples[:idx]...)}
	after = &SortedRun{samples: append([]akumuli.Sample(nil), r.samples[idx:]...)}
	return before, after
}

// SearchRange returns the contiguous sub-slice of samples whose timestamps
// fall within [lower, upper], found by binary search since the run is
// kept in time order (spec §4.1 search: "filters by [lowerbound,
// upperbound] via binary search"). The returned slice aliases the run's
// backing array and must not be mutated by the caller.
func (r *SortedRun) SearchRange(lower, upper uint64) []akumuli.Sample {
	if len(r.samples) == 0 || lower > upper {
		return nil
	}
	lo := sort.Search(len(r.samples), func(i int) bool {
		return r.samples[i].Timestamp >= lower
	})
	hi := sort.Search(len(r.samples), func(i int) bool {
		return r.samples[i].Timestamp > upper
	})
	if lo >= hi {
		return nil
	}
	return r.samples[lo:hi]
}
