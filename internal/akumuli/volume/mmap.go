//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly || solaris || aix

// Package volume implements the Volume Ring (spec §4.3): one Page plus its
// Sequencer and the memory map of its backing file, rotated round-robin by
// a Storage as pages fill.
package volume

import (
	"os"

	"golang.org/x/sys/unix"

	"github.com/embeddb/akumuli/internal/akumuli/akuerr"
)

// mapping owns one page file's memory map. Unlike the teacher's read-only
// mmapstore (which falls back to ReadAt on failure, since it only ever
// reads), a Volume's mapping must be read-write: the active page writes
// directly through it.
type mapping struct {
	file *os.File
	data []byte
}

// createMapping truncates path to exactly size bytes (page files are
// never grown after creation, spec §5) and maps it read-write.
func createMapping(path string, size int64) (*mapping, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, akuerr.Wrap(akuerr.General, "create volume file: "+err.Error())
	}
	if err := f.Truncate(size); err != nil {
		f.Close()
		return nil, akuerr.Wrap(akuerr.General, "truncate volume file: "+err.Error())
	}
	return mapExisting(f, size)
}

// openMapping maps an already-existing, already-sized page file.
func openMapping(path string) (*mapping, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return nil, akuerr.Wrap(akuerr.General, "open volume file: "+err.Error())
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, akuerr.Wrap(akuerr.General, "stat volume file: "+err.Error())
	}
	return mapExisting(f, info.Size())
}

func mapExisting(f *os.File, size int64) (*mapping, error) {
	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, akuerr.Wrap(akuerr.General, "mmap volume file: "+err.Error())
	}
	return &mapping{file: f, data: data}, nil
}

// sync msyncs the mapping, honoring the configured durability policy
// (storage callers decide whether/when to call this).
func (m *mapping) sync() error {
	if err := unix.Msync(m.data, unix.MS_SYNC); err != nil {
		return akuerr.Wrap(akuerr.General, "msync: "+err.Error())
	}
	return nil
}

// close unmaps and closes the backing file. It does not remove the file;
// callers that marked the mapping temporary do that separately once no
// reader can still be using it.
func (m *mapping) close() error {
	if err := unix.Munmap(m.data); err != nil {
		m.file.Close()
		return akuerr.Wrap(akuerr.General, "munmap: "+err.Error())
	}
	return m.file.Close()
}
