package page

import "encoding/binary"

// chunkDesc is the sentinel payload spec §6 names: {n_elements:u32,
// begin_offset:u32, end_offset:u32, checksum:u32}. checksum is the CRC-32
// of the page buffer's bytes in [begin_offset, end_offset) — the chunk's
// encoded columns are addressed directly rather than copied elsewhere.
type chunkDesc struct {
	nElements   uint32
	beginOffset uint32
	endOffset   uint32
	checksum    uint32
}

func (d chunkDesc) encode() []byte {
	buf := make([]byte, chunkDescSize)
	binary.LittleEndian.PutUint32(buf[0:], d.nElements)
	binary.LittleEndian.PutUint32(buf[4:], d.beginOffset)
	binary.LittleEndian.PutUint32(buf[8:], d.endOffset)
	binary.LittleEndian.PutUint32(buf[12:], d.checksum)
	return buf
}

func decodeChunkDesc(b []byte) chunkDesc {
	return chunkDesc{
		nElements:   binary.LittleEndian.Uint32(b[0:]),
		beginOffset: binary.LittleEndian.Uint32(b[4:]),
		endOffset:   binary.LittleEndian.Uint32(b[8:]),
		checksum:    binary.LittleEndian.Uint32(b[12:]),
	}
}
