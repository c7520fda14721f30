package page

import (
	"encoding/binary"
	"sort"
)

// histogramEntry is one reservoir sample: a timestamp paired with the
// offset-index slot it was drawn from, used to seed interpolation search
// (spec §4.2, §6 "histogram {size:u32, entries:[(ts:u64, index:u32)]}").
type histogramEntry struct {
	timestamp uint64
	index     uint32
}

func (p *Page) histogramEntryAddr(slot uint32) uint32 {
	return p.histogramBase() + slot*histogramEntrySize
}

func (p *Page) writeHistogramEntry(slot uint32, ts uint64, index uint32) {
	base := p.histogramEntryAddr(slot)
	binary.LittleEndian.PutUint64(p.buf[base:], ts)
	binary.LittleEndian.PutUint32(p.buf[base+8:], index)
}

func (p *Page) readHistogramEntry(slot uint32) histogramEntry {
	base := p.histogramEntryAddr(slot)
	return histogramEntry{
		timestamp: binary.LittleEndian.Uint64(p.buf[base:]),
		index:     binary.LittleEndian.Uint32(p.buf[base+8:]),
	}
}

// syncNextIndex is the histogram maintenance routine of spec §4.2: for
// the first H (histogram capacity) entries it just appends; past that it
// reservoir-samples using the caller-supplied random value. A sort=true
// call instead re-sorts the existing samples by timestamp.
func (p *Page) syncNextIndex(index uint32, ts uint64, randVal uint64, doSort bool) {
	if doSort {
		p.sortHistogram()
		return
	}

	size := p.h.histogramSize()
	if size < p.histogramCap {
		p.writeHistogramEntry(size, ts, index)
		p.h.setHistogramSize(size + 1)
		return
	}

	sc := p.h.syncCount()
	if sc == 0 {
		return
	}
	slot := randVal % uint64(sc)
	if slot < uint64(p.histogramCap) {
		p.writeHistogramEntry(uint32(slot), ts, index)
	}
}

func (p *Page) sortHistogram() {
	n := int(p.h.histogramSize())
	entries := make([]histogramEntry, n)
	for i := 0; i < n; i++ {
		entries[i] = p.readHistogramEntry(uint32(i))
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].timestamp < entries[j].timestamp })
	for i, e := range entries {
		p.writeHistogramEntry(uint32(i), e.timestamp, e.index)
	}
}

// histogramSeedRange binary-searches the histogram by timestamp and
// returns the [begin, end) offset-index bracket it implies, degrading to
// the full index range when the histogram is empty (spec §4.2 step 2).
func (p *Page) histogramSeedRange(lowerBound, upperBound uint64) (begin, end uint32) {
	n := int(p.h.histogramSize())
	if n == 0 {
		return 0, p.h.count()
	}

	entries := make([]histogramEntry, n)
	for i := 0; i < n; i++ {
		entries[i] = p.readHistogramEntry(uint32(i))
	}

	lo := sort.Search(n, func(i int) bool { return entries[i].timestamp >= lowerBound })
	hi := sort.Search(n, func(i int) bool { return entries[i].timestamp > upperBound })

	// Widen to the nearest sampled entries outside the bounds: unsampled
	// entries between them may still fall inside [lowerBound, upperBound].
	begin = 0
	if lo > 0 {
		begin = entries[lo-1].index
	}
	end = p.h.count()
	if hi < n {
		end = entries[hi].index + 1
	}
	if begin > end {
		begin, end = 0, p.h.count()
	}
	return begin, end
}
