// Package page implements the Page component of the storage core (spec
// §4.2, §6): append-only column-chunk storage backed by a fixed-size
// buffer, with CRC-protected chunks, a per-page bounding box, and a
// reservoir-sampled histogram that seeds interpolation search.
//
// A Page does not own how its buffer reaches disk — internal/akumuli/
// volume hands it an mmap'd slice (or, in tests, a plain byte slice) and
// is responsible for msync cadence.
package page

import (
	"encoding/binary"
	"hash/crc32"
	"math"
	"math/rand"

	"github.com/golang/snappy"

	"github.com/embeddb/akumuli/internal/akumuli"
	"github.com/embeddb/akumuli/internal/akumuli/akuerr"
	"github.com/embeddb/akumuli/internal/akumuli/cache"
	"github.com/embeddb/akumuli/internal/akumuli/codec"
)

// New initializes a fresh page over buf, which must be exactly the
// page's fixed capacity. histogramCapacity is H, fixed for the page's
// lifetime; it must be small enough that the histogram region plus the
// fixed header leaves room for at least one entry.
func New(buf []byte, pageID uint32, histogramCapacity uint32) *Page {
	p := &Page{buf: buf, h: header{buf: buf}, histogramCap: histogramCapacity}
	p.h.setVersion(pageVersion)
	p.h.setCount(0)
	p.h.setLastOffset(uint64(len(buf)))
	p.h.setSyncCount(0)
	p.h.setOpenCount(1)
	p.h.setCloseCount(0)
	p.h.setPageID(pageID)
	p.h.setLength(uint64(len(buf)))
	p.resetBoundingBox()
	p.h.setHistogramSize(0)
	return p
}

// NewWithCounters is New, except open_count and close_count are seeded
// from the caller rather than reset to (1, 0). The Volume Ring's
// safe-realloc uses this to carry a recycled page slot's rotation
// counters across the old-file-to-new-file swap (spec §4.3: "create a new
// empty page file at the original path inheriting open_count,
// close_count, and page_id").
func NewWithCounters(buf []byte, pageID, histogramCapacity, openCount, closeCount uint32) *Page {
	p := New(buf, pageID, histogramCapacity)
	p.h.setOpenCount(openCount)
	p.h.setCloseCount(closeCount)
	return p
}

// Open wraps an existing, previously initialized page buffer (e.g. one
// just mmap'd back from disk) without touching its header. histogramCap
// must match the value the page was created with, since it determines
// where the offset index begins.
func Open(buf []byte, histogramCapacity uint32) *Page {
	return &Page{buf: buf, h: header{buf: buf}, histogramCap: histogramCapacity}
}

func (p *Page) resetBoundingBox() {
	p.h.setBBoxMinID(math.MaxUint64)
	p.h.setBBoxMaxID(0)
	p.h.setBBoxMinTS(math.MaxUint64)
	p.h.setBBoxMaxTS(0)
}

// PageID returns the page's stable integer identifier (spec §6).
func (p *Page) PageID() uint32 { return p.h.pageID() }

// OpenCount and CloseCount expose the rotation bookkeeping counters a
// Volume Ring uses to pick which page to resume on restart.
func (p *Page) OpenCount() uint32  { return p.h.openCount() }
func (p *Page) CloseCount() uint32 { return p.h.closeCount() }

func (p *Page) offsetIndexTail() uint64 {
	return uint64(p.offsetIndexBase()) + uint64(p.h.count())*offsetIndexEntrySize
}

func (p *Page) readOffsetIndex(idx uint32) uint64 {
	base := p.offsetIndexBase() + idx*offsetIndexEntrySize
	return uint64(binary.LittleEndian.Uint32(p.buf[base:]))
}

func (p *Page) writeOffsetIndex(idx uint32, offset uint64) {
	base := p.offsetIndexBase() + idx*offsetIndexEntrySize
	binary.LittleEndian.PutUint32(p.buf[base:], uint32(offset))
}

func (p *Page) entryParamID(idx uint32) akumuli.ParamID {
	off := p.readOffsetIndex(idx)
	return binary.LittleEndian.Uint64(p.buf[off:])
}

func (p *Page) entryTimestamp(idx uint32) uint64 {
	off := p.readOffsetIndex(idx)
	return binary.LittleEndian.Uint64(p.buf[off+8:])
}

func (p *Page) entryLength(idx uint32) uint32 {
	off := p.readOffsetIndex(idx)
	return binary.LittleEndian.Uint32(p.buf[off+16:])
}

func (p *Page) entryPayload(idx uint32) []byte {
	off := p.readOffsetIndex(idx)
	length := p.entryLength(idx)
	return p.buf[off+entryHeaderSize : off+entryHeaderSize+uint64(length)]
}

// GetFreeSpace returns the byte range still available between the tail
// of the offset index and the current last_offset (spec §4.2).
func (p *Page) GetFreeSpace() uint64 {
	tail := p.offsetIndexTail()
	last := p.h.lastOffset()
	if last < tail {
		return 0
	}
	return last - tail
}

func (p *Page) updateBoundingBox(id akumuli.ParamID, ts uint64) {
	if id < p.h.bboxMinID() {
		p.h.setBBoxMinID(id)
	}
	if id > p.h.bboxMaxID() {
		p.h.setBBoxMaxID(id)
	}
	if ts < p.h.bboxMinTS() {
		p.h.setBBoxMinTS(ts)
	}
	if ts > p.h.bboxMaxTS() {
		p.h.setBBoxMaxTS(ts)
	}
}

// addEntry reserves space for one Entry {param_id, time, length, value}
// at the current last_offset (growing down) and appends its offset to
// the tail of the offset index (growing up). It never touches sync_count
// (spec §4.2 add_entry).
func (p *Page) addEntry(id akumuli.ParamID, ts uint64, payload []byte) (uint32, error) {
	entrySize := uint64(entryHeaderSize) + uint64(len(payload))
	last := p.h.lastOffset()
	tail := p.offsetIndexTail()
	if last < tail || entrySize > last-tail {
		return 0, akuerr.Wrap(akuerr.Overflow, "page full")
	}

	newLast := last - entrySize
	binary.LittleEndian.PutUint64(p.buf[newLast:], uint64(id))
	binary.LittleEndian.PutUint64(p.buf[newLast+8:], ts)
	binary.LittleEndian.PutUint32(p.buf[newLast+16:], uint32(len(payload)))
	copy(p.buf[newLast+entryHeaderSize:last], payload)
	p.h.setLastOffset(newLast)

	idx := p.h.count()
	p.writeOffsetIndex(idx, newLast)
	p.h.setCount(idx + 1)
	p.updateBoundingBox(id, ts)

	return idx, nil
}

// AddEntry is the public add_entry operation (spec §4.2): reserves space
// for a caller-supplied payload under an ordinary (non-sentinel)
// paramid.
func (p *Page) AddEntry(id akumuli.ParamID, ts uint64, payload []byte) error {
	if id >= akumuli.Compressed {
		return akuerr.Wrap(akuerr.BadData, "paramid collides with a reserved sentinel range")
	}
	if p.compressBlobs {
		payload = snappy.Encode(nil, payload)
	}
	_, err := p.addEntry(id, ts, payload)
	return err
}

// CompleteChunk encodes chunk's columns (internal/akumuli/codec),
// appends the result directly into the entries region, and frames it
// with a BWD sentinel (keyed at the chunk's first timestamp) and a FWD
// sentinel (keyed at its last), each carrying the ChunkDesc spec §6
// names. Both sentinel writes feed the histogram via syncNextIndex; a
// final sort=true call re-sorts it (spec §4.2).
func (p *Page) CompleteChunk(c codec.Chunk) error {
	if len(c.Samples) == 0 {
		return akuerr.Wrap(akuerr.BadData, "empty chunk")
	}

	encoded := c.Encode()
	blobLen := uint64(len(encoded))
	last := p.h.lastOffset()
	tail := p.offsetIndexTail()
	if last < tail || blobLen > last-tail {
		return akuerr.Wrap(akuerr.Overflow, "page full")
	}
	beginOffset := last - blobLen
	copy(p.buf[beginOffset:last], encoded)
	p.h.setLastOffset(beginOffset)

	firstTS, lastTS := c.Samples[0].Timestamp, c.Samples[0].Timestamp
	for _, s := range c.Samples {
		if s.Timestamp < firstTS {
			firstTS = s.Timestamp
		}
		if s.Timestamp > lastTS {
			lastTS = s.Timestamp
		}
	}

	desc := chunkDesc{
		nElements:   uint32(len(c.Samples)),
		beginOffset: uint32(beginOffset),
		endOffset:   uint32(last),
		checksum:    crc32.ChecksumIEEE(encoded),
	}
	descBytes := desc.encode()

	bwdIdx, err := p.addEntry(akumuli.AkuChunkBwdID, firstTS, descBytes)
	if err != nil {
		return err
	}
	p.syncNextIndex(bwdIdx, firstTS, p.rand(), false)

	fwdIdx, err := p.addEntry(akumuli.AkuChunkFwdID, lastTS, descBytes)
	if err != nil {
		return err
	}
	p.syncNextIndex(fwdIdx, lastTS, p.rand(), false)

	p.syncNextIndex(0, 0, 0, true)
	return nil
}

// decodeChunk returns the decoded chunk described by desc, consulting
// the attached ChunkCache first (spec §4.5) and verifying the CRC (a
// mismatch panics with a BAD_DATA error, fatal per spec §7) only on an
// actual cache miss — a cached entry was already verified the first time
// it was decoded.
func (p *Page) decodeChunk(desc chunkDesc) (codec.Chunk, error) {
	key := cache.Key{PageID: p.PageID(), BeginOffset: desc.beginOffset}
	if p.cache != nil {
		if chunk, ok := p.cache.Get(key); ok {
			return chunk, nil
		}
	}

	region := p.buf[desc.beginOffset:desc.endOffset]
	if crc32.ChecksumIEEE(region) != desc.checksum {
		panic(akuerr.Wrap(akuerr.BadData, "chunk CRC mismatch"))
	}
	chunk, err := codec.Decode(region, int(desc.nElements), false)
	if err != nil {
		return codec.Chunk{}, err
	}

	if p.cache != nil {
		p.cache.Put(key, chunk)
	}
	return chunk, nil
}

// rand draws a histogram reservoir-sampling index. It is not
// cryptographic and not seeded for reproducibility across process
// restarts — the histogram is a search accelerator, not durable state,
// so a skewed sample only costs a slightly worse search, never
// correctness.
func (p *Page) rand() uint64 { return rand.Uint64() }

// MarkSynced advances sync_count to the current entry count. The Volume
// Ring calls this only after actually msync'ing the page's buffer, so
// sync_count always reflects what is durable, not merely what is
// written (spec §4.2, §6 durability policy).
func (p *Page) MarkSynced() { p.h.setSyncCount(p.h.count()) }

// Reuse transitions a page back to empty for reassignment within the
// Volume Ring, resetting count, sync_count, last_offset, the bounding
// box, and histogram size — but not open_count, which the ring manages
// (spec §4.2 reuse).
func (p *Page) Reuse() {
	p.h.setCount(0)
	p.h.setSyncCount(0)
	p.h.setLastOffset(p.h.length())
	p.resetBoundingBox()
	p.h.setHistogramSize(0)
}

// MarkOpen and MarkClose advance the rotation counters the Volume Ring
// uses, on restart, to find the page that was active when the process
// last stopped.
func (p *Page) MarkOpen()  { p.h.setOpenCount(p.h.openCount() + 1) }
func (p *Page) MarkClose() { p.h.setCloseCount(p.h.closeCount() + 1) }

// Restore performs crash recovery (spec §4.2 restore): truncates count
// back to sync_count, discarding any unsynced tail, and rewinds
// last_offset and the histogram to match.
func (p *Page) Restore() error {
	sc := p.h.syncCount()
	if sc > p.h.count() {
		return akuerr.Wrap(akuerr.BadData, "sync_count exceeds count")
	}
	p.h.setCount(sc)

	if sc == 0 {
		p.h.setLastOffset(p.h.length())
	} else {
		p.h.setLastOffset(p.readOffsetIndex(sc - 1))
	}

	n := p.h.histogramSize()
	kept := make([]histogramEntry, 0, n)
	for i := uint32(0); i < n; i++ {
		e := p.readHistogramEntry(i)
		if e.index < sc {
			kept = append(kept, e)
		}
	}
	for i, e := range kept {
		p.writeHistogramEntry(uint32(i), e.timestamp, e.index)
	}
	p.h.setHistogramSize(uint32(len(kept)))

	p.resetBoundingBox()
	for i := uint32(0); i < sc; i++ {
		p.updateBoundingBox(p.entryParamID(i), p.entryTimestamp(i))
	}
	return nil
}
