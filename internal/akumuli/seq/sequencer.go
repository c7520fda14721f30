// Package seq implements the Sequencer (spec §4.1): the bounded-lateness
// reordering buffer that sits in front of every Page write. Writers insert
// samples into whichever run they best extend; once enough data has aged
// past the window W, make_checkpoint promotes it to a ready set that
// merge_and_compress drains into compressed chunks.
package seq

import (
	"sync"
	"sync/atomic"

	"github.com/embeddb/akumuli/internal/akumuli"
	"github.com/embeddb/akumuli/internal/akumuli/akuerr"
	"github.com/embeddb/akumuli/internal/akumuli/codec"
)

// defaultStripes mirrors the teacher's fixed shard count for its
// in-memory store's lock striping (numShards = 64); the Sequencer uses
// fewer stripes by default because its run count is expected to stay
// small (bounded by how many distinct "lanes" of lateness are active at
// once), not by per-series cardinality.
const defaultStripes = 16

// Page is the narrow interface the Sequencer flushes compressed chunks
// through. internal/akumuli/page.Page satisfies it.
type Page interface {
	CompleteChunk(c codec.Chunk) error
}

// FlushToken is the generation value returned by Add; callers treat an
// odd token as a signal to invoke MergeAndCompress (spec §4.1).
type FlushToken uint64

// IsFlushDue reports whether the token carries an odd (flusher-active)
// generation.
func (t FlushToken) IsFlushDue() bool { return t%2 == 1 }

// Config bundles a Sequencer's immutable tuning knobs.
type Config struct {
	// Window is W, the maximum lateness tolerated before a write is
	// rejected with LATE_WRITE (spec §4.1, §5).
	Window uint64
	// ChunkSize is C, both the minimum ready-set size that triggers a
	// real (non-reverted) checkpoint split and the target element count
	// of each chunk merge_and_compress assembles.
	ChunkSize int
	// Stripes is the number of run-index-striped locks guarding
	// individual run mutation, separate from the coarser resize lock
	// that guards the runs/ready slices themselves.
	Stripes int
}

// Sequencer is the bounded-lateness reordering buffer described by spec
// §4.1. The zero value is not usable; construct with NewSequencer.
type Sequencer struct {
	window    uint64
	chunkSize int

	// cpMu guards topTimestamp and checkpoint, the two fields every Add
	// call touches on its hot path. It is intentionally narrower than
	// resizeLock so late-write rejection never blocks on a concurrent
	// run-set resize.
	cpMu         sync.Mutex
	topTimestamp uint64
	checkpoint   uint64

	// resizeLock guards the identity (not contents) of runs and ready:
	// anything that adds, removes, or replaces a run wholesale takes the
	// write lock; anything that walks the current run set (Add's run
	// selection, Search's snapshot) takes the read lock.
	resizeLock sync.RWMutex
	runs       []*SortedRun
	ready      []*SortedRun

	// stripes guard in-place mutation (Append) of one run at a time,
	// indexed by the run's position in runs modulo len(stripes) — the
	// same sharded-mutex idiom the teacher's in-memory store uses for
	// per-device write concurrency, applied here to per-run concurrency
	// instead of per-device.
	stripes []sync.RWMutex

	// generation is the even/odd state machine of spec §4.1: even means
	// writers are free to mutate runs, odd means a flush is in flight
	// against ready. It is read without resizeLock by Search's snapshot
	// check, so it is atomic rather than plain-guarded.
	generation atomic.Uint64
}

// NewSequencer constructs a Sequencer with the given tuning. A zero or
// negative Stripes falls back to defaultStripes.
func NewSequencer(cfg Config) *Sequencer {
	stripes := cfg.Stripes
	if stripes <= 0 {
		stripes = defaultStripes
	}
	return &Sequencer{
		window:    cfg.Window,
		chunkSize: cfg.ChunkSize,
		stripes:   make([]sync.RWMutex, stripes),
	}
}

// Add inserts v, failing with LATE_WRITE if it falls further than the
// window behind the current top timestamp. Otherwise it updates
// top_timestamp, runs a checkpoint if v crossed into a new window bucket,
// and routes v into the run whose back() is the largest element <= v (or
// starts a fresh run if none qualifies). The returned token's generation
// tells the caller whether a flush is now due (spec §4.1).
func (s *Sequencer) Add(v akumuli.Sample) (FlushToken, error) {
	s.cpMu.Lock()
	if s.topTimestamp > v.Timestamp && s.topTimestamp-v.Timestamp > s.window {
		s.cpMu.Unlock()
		return 0, akuerr.Wrap(akuerr.LateWrite, "write falls outside the lateness window")
	}
	if v.Timestamp > s.topTimestamp {
		s.topTimestamp = v.Timestamp
	}
	newCheckpoint := s.bucketOf(s.topTimestamp)
	needsCheckpoint := s.window > 0 && newCheckpoint > s.checkpoint
	s.cpMu.Unlock()

	if needsCheckpoint {
		s.makeCheckpoint(newCheckpoint)
	}

	s.insert(v)

	return FlushToken(s.generation.Load()), nil
}

func (s *Sequencer) bucketOf(ts uint64) uint64 {
	if s.window == 0 {
		return 0
	}
	return ts / s.window
}

// insert routes v into the best-fit existing run, or appends a brand new
// one if v is smaller than every run's back() (spec §4.1 add).
func (s *Sequencer) insert(v akumuli.Sample) {
	s.resizeLock.RLock()
	best := -1
	for i, r := range s.runs {
		back := r.Back()
		if !akumuli.LessTimeOrder(v, back) {
			if best == -1 || akumuli.LessTimeOrder(s.runs[best].Back(), back) {
				best = i
			}
		}
	}
	if best >= 0 {
		stripe := &s.stripes[best%len(s.stripes)]
		stripe.Lock()
		s.runs[best].Append(v)
		stripe.Unlock()
		s.resizeLock.RUnlock()
		return
	}
	s.resizeLock.RUnlock()

	s.resizeLock.Lock()
	s.runs = append(s.runs, NewSortedRun(v))
	s.resizeLock.Unlock()
}

// makeCheckpoint is the spec §4.1 make_checkpoint: SINGLE-WRITER (callers
// serialize through resizeLock's write lock), it toggles generation
// even->odd, partitions every run at the old checkpoint boundary, and
// either promotes the "before" halves to ready or reverts the whole split
// if the promoted total doesn't clear ChunkSize.
func (s *Sequencer) makeCheckpoint(newCheckpoint uint64) {
	s.resizeLock.Lock()
	defer s.resizeLock.Unlock()

	s.cpMu.Lock()
	if newCheckpoint <= s.checkpoint {
		// Lost the race to another Add that already advanced the
		// checkpoint past this one.
		s.cpMu.Unlock()
		return
	}
	oldTop := s.checkpoint * s.window
	s.checkpoint = newCheckpoint
	s.cpMu.Unlock()

	s.generation.Add(1) // even -> odd

	promoted := make([]*SortedRun, 0, len(s.runs))
	kept := make([]*SortedRun, 0, len(s.runs))
	var readyTotal int
	for _, r := range s.runs {
		before, after := r.PartitionAt(oldTop)
		if before.Len() > 0 {
			promoted = append(promoted, before)
			readyTotal += before.Len()
		}
		if after.Len() > 0 {
			kept = append(kept, after)
		}
	}

	if readyTotal < s.chunkSize {
		// Amortize: too little to flush yet, revert the split entirely.
		s.generation.Add(1) // odd -> even
		return
	}

	s.runs = kept
	s.ready = append(s.ready, promoted...)
}

// MergeAndCompress drains ready into target, one up-to-ChunkSize chunk at
// a time, per spec §4.1. It requires an odd generation unless force is
// set (Close uses force). On success it toggles the generation back to
// even; on OVERFLOW from target it pushes the unflushed residue back into
// runs as fresh runs and returns the error without flipping generation.
func (s *Sequencer) MergeAndCompress(target Page, force bool) error {
	if !force && s.generation.Load()%2 == 0 {
		return akuerr.Wrap(akuerr.General, "merge_and_compress requires an odd generation")
	}

	s.resizeLock.Lock()
	ready := s.ready
	s.ready = nil
	s.resizeLock.Unlock()

	for len(ready) > 0 {
		var batch []akumuli.Sample
		emitted, leftover := mergeDrain(ready, akumuli.Forward, s.chunkSize, func(v akumuli.Sample) bool {
			batch = append(batch, v)
			return true
		})
		if emitted == 0 {
			break
		}

		err := target.CompleteChunk(codec.Chunk{Samples: batch})
		if err != nil {
			residue := make([]*SortedRun, 0, len(leftover)+1)
			residue = append(residue, &SortedRun{samples: batch})
			residue = append(residue, leftover...)

			s.resizeLock.Lock()
			s.runs = append(s.runs, residue...)
			s.resizeLock.Unlock()

			return err
		}

		ready = leftover
	}

	s.generation.Add(1) // odd -> even
	return nil
}

// Search reads the live run set under the resize lock, filters each run
// by the query's time bounds (binary search, spec §4.1), merges the
// per-run matches in query direction, and delivers them to sink. It
// aborts with BUSY if the generation changed between the snapshot and the
// merge, since that means a concurrent flush may have mutated a run out
// from under the copies just taken — the read is aborted, not retried
// internally (spec §4.1 failure semantics).
func (s *Sequencer) Search(q *akumuli.Query, expectedGeneration uint64, sink akumuli.Sink) error {
	if !q.Valid() {
		return akuerr.Wrap(akuerr.BadArg, "invalid query bounds")
	}

	s.resizeLock.RLock()
	runs := make([]*SortedRun, len(s.runs))
	copy(runs, s.runs)
	s.resizeLock.RUnlock()

	matches := make([]*SortedRun, 0, len(runs))
	for i, r := range runs {
		stripe := &s.stripes[i%len(s.stripes)]
		stripe.RLock()
		window := r.SearchRange(q.LowerBound, q.UpperBound)
		var filtered []akumuli.Sample
		if q.Filter == nil && q.ParamIDLowerBound == nil && q.ParamIDUpperBound == nil {
			filtered = append([]akumuli.Sample(nil), window...)
		} else {
			for _, v := range window {
				if q.Matches(v) {
					filtered = append(filtered, v)
				}
			}
		}
		stripe.RUnlock()
		if len(filtered) > 0 {
			matches = append(matches, &SortedRun{samples: filtered})
		}
	}

	if s.generation.Load() != expectedGeneration {
		return akuerr.Wrap(akuerr.Busy, "generation changed during scan")
	}

	mergeDrain(matches, q.Direction, 0, sink)
	return nil
}

// Close moves every remaining run to ready and forces a final
// MergeAndCompress (spec §4.1 close).
func (s *Sequencer) Close(target Page) error {
	s.resizeLock.Lock()
	s.ready = append(s.ready, s.runs...)
	s.runs = nil
	s.resizeLock.Unlock()

	if s.generation.Load()%2 == 0 {
		s.generation.Add(1)
	}
	return s.MergeAndCompress(target, true)
}

// GetWindow returns the current lateness floor (top_timestamp - W) and
// the current generation (spec §4.1 get_window).
func (s *Sequencer) GetWindow() (uint64, uint64) {
	s.cpMu.Lock()
	top := s.topTimestamp
	s.cpMu.Unlock()

	floor := uint64(0)
	if top > s.window {
		floor = top - s.window
	}
	return floor, s.generation.Load()
}
