package seq

import (
	"container/heap"

	"github.com/embeddb/akumuli/internal/akumuli"
)

// cursor tracks how far a k-way merge has consumed one input run. step is
// +1 for a forward merge (pos walks up from the front of the run) and -1
// for a backward one (pos walks down from its back).
type cursor struct {
	run  *SortedRun
	pos  int
	step int
}

func (c *cursor) sample() akumuli.Sample { return c.run.samples[c.pos] }
func (c *cursor) done() bool             { return c.pos < 0 || c.pos >= len(c.run.samples) }

// mergeHeap is the skew-heap stand-in named by spec §4.1: a binary heap of
// (value, run_index) ordered by the scan direction's comparator. Go's
// container/heap gives the same amortized log-n pop/fix behavior a skew
// heap would, without hand-rolling pointer-based heap surgery.
type mergeHeap struct {
	cursors []*cursor
	dir     akumuli.Direction
}

func (h mergeHeap) Len() int { return len(h.cursors) }

func (h mergeHeap) Less(i, j int) bool {
	a, b := h.cursors[i].sample(), h.cursors[j].sample()
	if h.dir == akumuli.Backward {
		return akumuli.LessTimeOrder(b, a)
	}
	return akumuli.LessTimeOrder(a, b)
}

func (h mergeHeap) Swap(i, j int) { h.cursors[i], h.cursors[j] = h.cursors[j], h.cursors[i] }

func (h *mergeHeap) Push(x any) { h.cursors = append(h.cursors, x.(*cursor)) }

func (h *mergeHeap) Pop() any {
	n := len(h.cursors)
	last := h.cursors[n-1]
	h.cursors = h.cursors[:n-1]
	return last
}

// mergeDrain runs a k-way merge across runs in the requested direction,
// calling emit for each sample in merge order. It stops after limit
// samples (limit <= 0 means unlimited) or as soon as emit returns false.
//
// Whatever is left unconsumed is handed back as leftover, one fresh
// *SortedRun per input run that still has unconsumed samples (its tail
// for a forward merge, its head for a backward one) — this is the
// "rebuilds the remaining heap contents into a fresh runs array,
// preserving (S3)" behavior spec §4.1 requires of an interrupted merge:
// each leftover run keeps its own relative order, with no cross-run
// reordering performed on the unconsumed remainder.
func mergeDrain(runs []*SortedRun, dir akumuli.Direction, limit int, emit func(akumuli.Sample) bool) (emitted int, leftover []*SortedRun) {
	h := &mergeHeap{dir: dir}
	for _, r := range runs {
		if r.Len() > 0 {
			c := &cursor{run: r, step: 1}
			if dir == akumuli.Backward {
				c.pos, c.step = r.Len()-1, -1
			}
			h.cursors = append(h.cursors, c)
		}
	}
	heap.Init(h)

	for h.Len() > 0 {
		if limit > 0 && emitted >= limit {
			break
		}
		top := h.cursors[0]
		if !emit(top.sample()) {
			break
		}
		emitted++
		top.pos += top.step
		if top.done() {
			heap.Remove(h, 0)
		} else {
			heap.Fix(h, 0)
		}
	}

	for _, c := range h.cursors {
		if !c.done() {
			rest := c.run.samples[c.pos:]
			if c.step < 0 {
				rest = c.run.samples[:c.pos+1]
			}
			tail := append([]akumuli.Sample(nil), rest...)
			leftover = append(leftover, &SortedRun{samples: tail})
		}
	}
	return emitted, leftover
}
