package page

import (
	"math"

	"github.com/golang/snappy"

	"github.com/embeddb/akumuli/internal/akumuli"
	"github.com/embeddb/akumuli/internal/akumuli/akuerr"
)

// Stage names one step of the search algorithm, reported to a
// SearchObserver (spec §9's redesign note: search statistics are handed
// to an injected observer instead of living in a package-level mutable
// counter, so concurrent pages never share mutable search-stats state).
type Stage int

const (
	StageFastPath Stage = iota
	StageHistogramSeed
	StageInterpolation
	StageBinarySearch
	StageScan
)

func (s Stage) String() string {
	switch s {
	case StageFastPath:
		return "fast_path"
	case StageHistogramSeed:
		return "histogram_seed"
	case StageInterpolation:
		return "interpolation"
	case StageBinarySearch:
		return "binary_search"
	case StageScan:
		return "scan"
	default:
		return "unknown"
	}
}

// SearchObserver is notified as Search progresses through its stages.
// begin/end are the offset-index bracket the stage narrowed the search
// to; StageScan instead reports begin 0 and end the number of entries
// scanned. StageInterpolation is reported once per interpolation step,
// and not at all when the seeded bracket already fits one OS page.
type SearchObserver interface {
	Observe(stage Stage, begin, end uint32)
}

// NopObserver implements SearchObserver by doing nothing; it is the
// default when callers don't care about search internals.
type NopObserver struct{}

func (NopObserver) Observe(Stage, uint32, uint32) {}

const (
	osPageSize            = 4096
	maxInterpolationSteps = 4
)

type interpolationState int

const (
	stateNone interpolationState = iota
	stateUndershoot
	stateOvershoot
)

// Search implements spec §4.2's five-step algorithm: fast path,
// histogram seed, damped interpolation, binary search, and a final
// directional scan that also expands any chunk sentinels it crosses.
func (p *Page) Search(q *akumuli.Query, observer SearchObserver, sink akumuli.Sink) error {
	if observer == nil {
		observer = NopObserver{}
	}
	if !q.Valid() {
		return akuerr.Wrap(akuerr.BadArg, "invalid query bounds")
	}

	count := p.h.count()
	outsideBBox := count == 0 ||
		q.UpperBound < p.h.bboxMinTS() || q.LowerBound > p.h.bboxMaxTS() ||
		(q.ParamIDUpperBound != nil && *q.ParamIDUpperBound < p.h.bboxMinID()) ||
		(q.ParamIDLowerBound != nil && *q.ParamIDLowerBound > p.h.bboxMaxID())
	if outsideBBox {
		observer.Observe(StageFastPath, 0, 0)
		return nil
	}
	observer.Observe(StageFastPath, 0, count)

	begin, end := p.histogramSeedRange(q.LowerBound, q.UpperBound)
	observer.Observe(StageHistogramSeed, begin, end)

	begin, end = p.interpolationSearch(q, begin, end, observer)

	landing := p.binarySearchLanding(q, begin, end)
	observer.Observe(StageBinarySearch, landing, landing)

	return p.scan(q, landing, observer, sink)
}

func (p *Page) fitsOnePage(begin, end uint32) bool {
	if begin >= end {
		return true
	}
	addrBegin := p.readOffsetIndex(begin)
	addrEnd := p.readOffsetIndex(end - 1)
	return addrBegin/osPageSize == addrEnd/osPageSize
}

func clampIndex(v int64, lo, hi uint32) uint32 {
	if v < int64(lo) {
		return lo
	}
	if v > int64(hi) {
		return hi
	}
	return uint32(v)
}

// interpolationSearch narrows [begin, end) toward the query's landing
// point using linear interpolation on the entries' timestamps, damping
// oscillation with a two-state undershoot/overshoot automaton that
// biases the next probe by the previous error (spec §4.2 step 3).
func (p *Page) interpolationSearch(q *akumuli.Query, begin, end uint32, observer SearchObserver) (uint32, uint32) {
	if begin >= end {
		return begin, end
	}
	target := q.LowerBound
	if q.Direction == akumuli.Backward {
		target = q.UpperBound
	}

	state := stateNone
	var prevErr int64

	for step := 0; step < maxInterpolationSteps && begin < end; step++ {
		if p.fitsOnePage(begin, end) {
			break
		}
		tsBegin := p.entryTimestamp(begin)
		tsEnd := p.entryTimestamp(end - 1)
		if tsEnd <= tsBegin {
			break
		}

		span := end - begin - 1
		frac := float64(int64(target)-int64(tsBegin)) / float64(int64(tsEnd)-int64(tsBegin))
		probe := int64(begin) + int64(frac*float64(span))
		if state != stateNone {
			probe += prevErr >> uint(step+1)
		}
		probeIdx := clampIndex(probe, begin, end-1)

		probeTs := p.entryTimestamp(probeIdx)
		switch {
		case probeTs < target:
			prevErr = int64(target - probeTs)
			state = stateUndershoot
			begin = probeIdx + 1
		case probeTs > target:
			prevErr = int64(probeTs - target)
			state = stateOvershoot
			end = probeIdx
		default:
			begin, end = probeIdx, probeIdx+1
		}
		observer.Observe(StageInterpolation, begin, end)
	}
	return begin, end
}

// binarySearchLanding narrows [begin, end) to a single landing index:
// the first entry at or after LowerBound for a forward scan, or the
// last entry at or before UpperBound for a backward one (spec §4.2
// step 4).
func (p *Page) binarySearchLanding(q *akumuli.Query, begin, end uint32) uint32 {
	if begin >= end {
		return begin
	}
	lo, hi := begin, end
	if q.Direction == akumuli.Forward {
		for lo < hi {
			mid := lo + (hi-lo)/2
			if p.entryTimestamp(mid) < q.LowerBound {
				lo = mid + 1
			} else {
				hi = mid
			}
		}
		return lo
	}
	for lo < hi {
		mid := lo + (hi-lo)/2
		if p.entryTimestamp(mid) > q.UpperBound {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	if lo == begin {
		return begin
	}
	return lo - 1
}

// scan walks from landing in the query's direction, emitting plain
// entries that match and expanding chunk sentinels that face the scan
// direction, stopping at the first entry outside the time window or the
// index leaving [0, count) (spec §4.2 step 5).
func (p *Page) scan(q *akumuli.Query, landing uint32, observer SearchObserver, sink akumuli.Sink) error {
	count := int64(p.h.count())
	step := int64(1)
	if q.Direction == akumuli.Backward {
		step = -1
	}

	scanned := 0
	for idx := int64(landing); idx >= 0 && idx < count; idx += step {
		scanned++
		i := uint32(idx)
		id := p.entryParamID(i)
		ts := p.entryTimestamp(i)

		if q.Direction == akumuli.Forward && ts > q.UpperBound {
			break
		}
		if q.Direction == akumuli.Backward && ts < q.LowerBound {
			break
		}

		if id < akumuli.Compressed {
			if ts >= q.LowerBound && ts <= q.UpperBound {
				payload := p.entryPayload(i)
				if p.compressBlobs {
					decompressed, err := snappy.Decode(nil, payload)
					if err != nil {
						return akuerr.Wrap(akuerr.BadData, "decompress entry payload: "+err.Error())
					}
					payload = decompressed
				}
				s := akumuli.Sample{ParamID: id, Timestamp: ts, Value: math.Float64frombits(leUint64(payload))}
				if q.Matches(s) {
					if !sink(s) {
						observer.Observe(StageScan, 0, uint32(scanned))
						return nil
					}
				}
			}
			continue
		}

		matchesDirection := (q.Direction == akumuli.Forward && id == akumuli.AkuChunkFwdID) ||
			(q.Direction == akumuli.Backward && id == akumuli.AkuChunkBwdID)
		if !matchesDirection {
			continue
		}
		cont, err := p.scanCompressedEntries(decodeChunkDesc(p.entryPayload(i)), q, sink)
		if err != nil {
			return err
		}
		if !cont {
			observer.Observe(StageScan, 0, uint32(scanned))
			return nil
		}
	}

	observer.Observe(StageScan, 0, uint32(scanned))
	return nil
}

func leUint64(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8 && i < len(b); i++ {
		v |= uint64(b[i]) << (8 * i)
	}
	return v
}

// scanCompressedEntries decodes a chunk's columns in place from the page
// buffer, verifies its CRC (a mismatch is fatal per spec §7), and emits
// the rows honoring direction and time bounds. Decode restores time
// order via convert_from_chunk_order, so both directions can stop at the
// first row outside the window.
func (p *Page) scanCompressedEntries(desc chunkDesc, q *akumuli.Query, sink akumuli.Sink) (bool, error) {
	chunk, err := p.decodeChunk(desc)
	if err != nil {
		return false, err
	}

	samples := chunk.Samples
	if q.Direction == akumuli.Backward {
		for i := len(samples) - 1; i >= 0; i-- {
			s := samples[i]
			if s.Timestamp < q.LowerBound {
				break
			}
			if s.Timestamp > q.UpperBound {
				continue
			}
			if q.Matches(s) {
				if !sink(s) {
					return false, nil
				}
			}
		}
		return true, nil
	}

	for _, s := range samples {
		if s.Timestamp > q.UpperBound {
			break
		}
		if s.Timestamp < q.LowerBound {
			continue
		}
		if q.Matches(s) {
			if !sink(s) {
				return false, nil
			}
		}
	}
	return true, nil
}
