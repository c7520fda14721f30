// Package akumuli holds the types shared across the storage core's
// components: the sample tuple, its two orderings, and the push-style
// query/consumer interface used by both the Sequencer and the Page
// (spec §3, §9).
package akumuli

import "math"

// ParamID identifies a time series ("series id" in spec.md's terms). It is
// produced upstream by the series-name parser/id matcher, out of scope
// for the storage core (spec §1).
type ParamID = uint64

const (
	// AkuChunkBwdID and AkuChunkFwdID mark the two sentinel entries that
	// frame a chunk in a Page's offset index (spec §3 P2, §6). They are the
	// two highest paramids, above Compressed, so a plain comparison
	// against Compressed tells an entry from a sentinel.
	AkuChunkBwdID ParamID = math.MaxUint64
	AkuChunkFwdID ParamID = math.MaxUint64 - 1

	// Compressed is the threshold: any entry whose paramid is >= Compressed
	// is a chunk sentinel rather than an uncompressed value entry (spec §4.2
	// scan algorithm, step 5).
	Compressed ParamID = math.MaxUint64 - 2
)

// Sample is the fundamental tuple the storage core operates on.
type Sample struct {
	ParamID   ParamID
	Timestamp uint64
	Value     float64
}

// LessTimeOrder orders samples as (timestamp, paramid) — the order used by
// the Sequencer and by Page scans (spec §3).
func LessTimeOrder(a, b Sample) bool {
	if a.Timestamp != b.Timestamp {
		return a.Timestamp < b.Timestamp
	}
	return a.ParamID < b.ParamID
}

// LessChunkOrder orders samples as (paramid, timestamp) — the order a chunk's
// columns are encoded in (spec §3, §4.4).
func LessChunkOrder(a, b Sample) bool {
	if a.ParamID != b.ParamID {
		return a.ParamID < b.ParamID
	}
	return a.Timestamp < b.Timestamp
}

// Direction selects which way a scan or merge walks its input.
type Direction int

const (
	Forward Direction = iota
	Backward
)

// Query describes a time-range scan (spec §4.2 search algorithm).
// Arbitrary predicates beyond the time window and paramid range are the
// query planner's job (out of scope, spec §1); Filter is the narrow hook
// it is consumed through. ParamIDLowerBound/ParamIDUpperBound are a
// coarser, structured restriction a caller that already knows which
// series it wants can set instead: unlike Filter, a Page's bounding box
// (spec §6) can prune against them before any entry is even read.
type Query struct {
	LowerBound uint64
	UpperBound uint64
	Direction  Direction
	Filter     func(Sample) bool

	// ParamIDLowerBound and ParamIDUpperBound, when both non-nil, narrow
	// the query to paramids in [*ParamIDLowerBound, *ParamIDUpperBound].
	// Nil (the default) means unrestricted.
	ParamIDLowerBound *ParamID
	ParamIDUpperBound *ParamID
}

// Matches reports whether s falls within the query's time window and
// paramid range and passes its filter, if any.
func (q *Query) Matches(s Sample) bool {
	if s.Timestamp < q.LowerBound || s.Timestamp > q.UpperBound {
		return false
	}
	if q.ParamIDLowerBound != nil && s.ParamID < *q.ParamIDLowerBound {
		return false
	}
	if q.ParamIDUpperBound != nil && s.ParamID > *q.ParamIDUpperBound {
		return false
	}
	if q.Filter != nil {
		return q.Filter(s)
	}
	return true
}

// Valid reports whether the query's bounds are well formed.
func (q *Query) Valid() bool {
	if q.LowerBound > q.UpperBound {
		return false
	}
	if q.ParamIDLowerBound != nil && q.ParamIDUpperBound != nil && *q.ParamIDLowerBound > *q.ParamIDUpperBound {
		return false
	}
	return true
}

// Sink is the push-style consumer callback used by both Sequencer.search
// and Page.search (spec §9): it returns false to request early
// termination, in which case the producer gracefully stops and preserves
// not-yet-delivered state rather than dropping it.
type Sink func(Sample) bool
