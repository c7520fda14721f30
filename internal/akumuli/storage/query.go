package storage

import (
	"errors"
	"sort"

	"github.com/embeddb/akumuli/internal/akumuli"
	"github.com/embeddb/akumuli/internal/akumuli/akuerr"
	"github.com/embeddb/akumuli/internal/akumuli/volume"
)

// Query answers a time-range scan across the whole ring (spec §2's read
// data-flow): volumes are visited in age order relative to the active
// one — newest first for a backward scan, oldest first for a forward one
// — merging each volume's on-disk chunks with its still-unflushed
// Sequencer runs before handing samples to sink.
//
// The active index is snapshotted once at entry rather than re-read per
// volume: a concurrent Ring.Advance during the scan simply means this
// query's view of "age order" was decided before the rotation, which is
// the snapshot policy DESIGN.md's Open Question decision records in
// place of the original implementation's acknowledged seq_id/search race
// (spec §9). The read is not redone after a rotation; only a BUSY from a
// Sequencer search is retried, once.
func (s *Storage) Query(q *akumuli.Query, sink akumuli.Sink) error {
	if !q.Valid() {
		return akuerr.Wrap(akuerr.BadArg, "invalid query bounds")
	}

	activeSnapshot := s.ring.ActiveIndex()
	newestFirst := q.Direction == akumuli.Backward
	for _, vol := range s.ring.VolumesFrom(activeSnapshot, newestFirst) {
		cont, err := s.queryVolume(vol, q, sink)
		if err != nil {
			return err
		}
		if !cont {
			return nil
		}
	}
	return nil
}

// queryVolume merges one volume's durable Page data with its Sequencer's
// unflushed runs and delivers the result to sink in query order,
// reporting whether the caller's sink wants more.
func (s *Storage) queryVolume(vol *volume.Volume, q *akumuli.Query, sink akumuli.Sink) (bool, error) {
	var merged []akumuli.Sample

	if err := vol.Page.Search(q, nil, func(sample akumuli.Sample) bool {
		merged = append(merged, sample)
		return true
	}); err != nil {
		return false, err
	}

	seqSamples, err := s.searchSequencer(vol, q)
	if err != nil {
		return false, err
	}
	merged = append(merged, seqSamples...)

	sort.SliceStable(merged, func(i, j int) bool {
		if q.Direction == akumuli.Backward {
			return akumuli.LessTimeOrder(merged[j], merged[i])
		}
		return akumuli.LessTimeOrder(merged[i], merged[j])
	})

	for _, sample := range merged {
		if !sink(sample) {
			return false, nil
		}
	}
	return true, nil
}

// searchSequencer runs one Sequencer.Search, retrying exactly once on
// BUSY (a concurrent flush raced the snapshot) rather than looping
// unboundedly (spec §4.1 failure semantics: "the read is aborted, not
// retried internally" inside the Sequencer — Storage is the caller that
// owns the one permitted retry).
func (s *Storage) searchSequencer(vol *volume.Volume, q *akumuli.Query) ([]akumuli.Sample, error) {
	collectInto := func(out *[]akumuli.Sample) akumuli.Sink {
		return func(sample akumuli.Sample) bool {
			*out = append(*out, sample)
			return true
		}
	}

	var out []akumuli.Sample
	_, gen := vol.Seq.GetWindow()
	err := vol.Seq.Search(q, gen, collectInto(&out))
	if err == nil {
		return out, nil
	}
	if !errors.Is(err, akuerr.Busy) {
		return nil, err
	}

	out = nil
	_, gen = vol.Seq.GetWindow()
	if err := vol.Seq.Search(q, gen, collectInto(&out)); err != nil {
		return nil, err
	}
	return out, nil
}
