package page

import (
	"encoding/binary"

	"github.com/embeddb/akumuli/internal/akumuli/cache"
)

// Byte layout of a Page's backing buffer (spec §6 "Page file layout",
// little-endian throughout): a fixed PageHeader (which itself embeds the
// histogram's fixed-capacity entry array), an offset index that grows
// upward as entries are appended, and an entries region that grows down
// from the end of the buffer.
const (
	headerOffVersion    = 0
	headerOffCount      = 4
	headerOffLastOffset = 8
	headerOffSyncCount  = 16
	headerOffOpenCount  = 20
	headerOffCloseCount = 24
	headerOffPageID     = 28
	headerOffLength     = 32
	headerOffBBoxMinID  = 40
	headerOffBBoxMaxID  = 48
	headerOffBBoxMinTS  = 56
	headerOffBBoxMaxTS  = 64
	headerOffHistSize   = 72

	// histogramFixedHeaderSize is the portion of the header before the
	// histogram's entry array begins.
	histogramFixedHeaderSize = 76
	histogramEntrySize       = 8 + 4 // ts:u64, index:u32

	entryHeaderSize = 8 + 8 + 4 // param_id:u64, time:u64, length:u32

	// offsetIndexEntrySize is one slot of the offset index (spec §6:
	// "offset index u32[count] growing up").
	offsetIndexEntrySize = 4

	// chunkDescSize is {n_elements:u32, begin_offset:u32, end_offset:u32,
	// checksum:u32} (spec §6).
	chunkDescSize = 16

	pageVersion = 1
)

// header is a thin typed view over the fixed-size prefix of a page's
// buffer. Every accessor reads/writes directly through to buf; a header
// value holds no state beyond that slice.
type header struct {
	buf []byte
}

func (h header) version() uint32     { return binary.LittleEndian.Uint32(h.buf[headerOffVersion:]) }
func (h header) setVersion(v uint32) { binary.LittleEndian.PutUint32(h.buf[headerOffVersion:], v) }

func (h header) count() uint32     { return binary.LittleEndian.Uint32(h.buf[headerOffCount:]) }
func (h header) setCount(v uint32) { binary.LittleEndian.PutUint32(h.buf[headerOffCount:], v) }

func (h header) lastOffset() uint64 { return binary.LittleEndian.Uint64(h.buf[headerOffLastOffset:]) }
func (h header) setLastOffset(v uint64) {
	binary.LittleEndian.PutUint64(h.buf[headerOffLastOffset:], v)
}

func (h header) syncCount() uint32     { return binary.LittleEndian.Uint32(h.buf[headerOffSyncCount:]) }
func (h header) setSyncCount(v uint32) { binary.LittleEndian.PutUint32(h.buf[headerOffSyncCount:], v) }

func (h header) openCount() uint32     { return binary.LittleEndian.Uint32(h.buf[headerOffOpenCount:]) }
func (h header) setOpenCount(v uint32) { binary.LittleEndian.PutUint32(h.buf[headerOffOpenCount:], v) }

func (h header) closeCount() uint32 { return binary.LittleEndian.Uint32(h.buf[headerOffCloseCount:]) }
func (h header) setCloseCount(v uint32) {
	binary.LittleEndian.PutUint32(h.buf[headerOffCloseCount:], v)
}

func (h header) pageID() uint32     { return binary.LittleEndian.Uint32(h.buf[headerOffPageID:]) }
func (h header) setPageID(v uint32) { binary.LittleEndian.PutUint32(h.buf[headerOffPageID:], v) }

func (h header) length() uint64     { return binary.LittleEndian.Uint64(h.buf[headerOffLength:]) }
func (h header) setLength(v uint64) { binary.LittleEndian.PutUint64(h.buf[headerOffLength:], v) }

func (h header) bboxMinID() uint64     { return binary.LittleEndian.Uint64(h.buf[headerOffBBoxMinID:]) }
func (h header) setBBoxMinID(v uint64) { binary.LittleEndian.PutUint64(h.buf[headerOffBBoxMinID:], v) }

func (h header) bboxMaxID() uint64     { return binary.LittleEndian.Uint64(h.buf[headerOffBBoxMaxID:]) }
func (h header) setBBoxMaxID(v uint64) { binary.LittleEndian.PutUint64(h.buf[headerOffBBoxMaxID:], v) }

func (h header) bboxMinTS() uint64     { return binary.LittleEndian.Uint64(h.buf[headerOffBBoxMinTS:]) }
func (h header) setBBoxMinTS(v uint64) { binary.LittleEndian.PutUint64(h.buf[headerOffBBoxMinTS:], v) }

func (h header) bboxMaxTS() uint64     { return binary.LittleEndian.Uint64(h.buf[headerOffBBoxMaxTS:]) }
func (h header) setBBoxMaxTS(v uint64) { binary.LittleEndian.PutUint64(h.buf[headerOffBBoxMaxTS:], v) }

func (h header) histogramSize() uint32 { return binary.LittleEndian.Uint32(h.buf[headerOffHistSize:]) }
func (h header) setHistogramSize(v uint32) {
	binary.LittleEndian.PutUint32(h.buf[headerOffHistSize:], v)
}

// histogramCap is fixed for the page's lifetime, derived from the total
// space reserved between the header's histogram-size field and the
// offset index — set once at creation and carried in the page struct
// rather than the buffer, since the buffer has no header-capacity field
// of its own (spec §6 only names a histogram "size", not a capacity).
type Page struct {
	buf          []byte
	h            header
	histogramCap uint32

	// cache is the optional shared chunk decode cache (spec §4.5). A nil
	// cache (the default) just means every scan decodes straight from
	// buf; Storage wires a real one in via SetCache.
	cache *cache.ChunkCache

	// compressBlobs mirrors AkumuliConfig.CompressBlobs: when set, a plain
	// entry's payload is snappy-compressed on AddEntry and decompressed
	// on scan, transparent to callers and to the on-disk Entry layout
	// (length is the post-compression length either way).
	compressBlobs bool
}

// SetCache attaches the process-wide Chunk Cache a scan consults before
// decoding a chunk sentinel's columns (spec §4.5). Passing nil (the
// zero-value default) disables caching for this page.
func (p *Page) SetCache(c *cache.ChunkCache) { p.cache = c }

// SetCompressBlobs toggles snappy compression of plain entries' payload
// bytes (spec §6 durability/storage knobs, DOMAIN STACK snappy wiring).
func (p *Page) SetCompressBlobs(v bool) { p.compressBlobs = v }

func (p *Page) histogramBase() uint32 { return histogramFixedHeaderSize }
func (p *Page) offsetIndexBase() uint32 {
	return histogramFixedHeaderSize + p.histogramCap*histogramEntrySize
}
