package volume

import (
	"os"

	"github.com/embeddb/akumuli/internal/akumuli/akuerr"
	"github.com/embeddb/akumuli/internal/akumuli/page"
	"github.com/embeddb/akumuli/internal/akumuli/seq"
)

// Volume is one Page plus its Sequencer and the memory map of its backing
// file (spec §3 "Volume"). A Ring owns an ordered slice of Volumes;
// exactly one is active at a time.
type Volume struct {
	Page *page.Page
	Seq  *seq.Sequencer

	path string
	m    *mapping
	// temporary marks a mapping whose file has already been logically
	// replaced by safe-realloc; its backing file is unlinked once this
	// Volume is closed (spec §4.3 safe_realloc: "keep the old mapped file
	// alive until all readers release it... file removed on last
	// reference"). In this single-writer, in-process engine the only
	// "reader" that can still hold the old mapping is an in-flight Query
	// against it, which Storage scopes to a single call — so "last
	// reference" reduces to "this Volume's own Close."
	temporary bool
}

// createVolume initializes a brand new page file at path, sized per cfg,
// and wraps it in a fresh Sequencer. openCount seeds the page's open_count
// (spec §4.3 "selection on open"): the ring's initial active slot is
// created with open_count 1 (it is active from the moment the ring
// exists), every other freshly created slot starts at 0 and only gains
// its first open_count via MarkOpen when a rotation first activates it.
func createVolume(path string, pageSize int64, pageID uint32, histogramCap uint32, seqCfg seq.Config, openCount uint32) (*Volume, error) {
	m, err := createMapping(path, pageSize)
	if err != nil {
		return nil, err
	}
	p := page.NewWithCounters(m.data, pageID, histogramCap, openCount, 0)
	return &Volume{Page: p, Seq: seq.NewSequencer(seqCfg), path: path, m: m}, nil
}

// openVolume maps an existing page file, restores it to its last durable
// state (spec §4.2 Restore), and wraps it in a fresh Sequencer — any
// unflushed data the Sequencer held before the last shutdown is gone by
// construction (it was never durable), matching spec §7: only the
// sync_count prefix survives a restart.
func openVolume(path string, histogramCap uint32, seqCfg seq.Config) (*Volume, error) {
	m, err := openMapping(path)
	if err != nil {
		return nil, err
	}
	p := page.Open(m.data, histogramCap)
	if err := p.Restore(); err != nil {
		m.close()
		return nil, err
	}
	return &Volume{Page: p, Seq: seq.NewSequencer(seqCfg), path: path, m: m}, nil
}

// Sync flushes the volume's page buffer to disk.
func (v *Volume) Sync() error {
	if err := v.m.sync(); err != nil {
		return err
	}
	v.Page.MarkSynced()
	return nil
}

// Close unmaps the volume's backing file, unlinking it first if it was
// marked temporary by a safe-realloc that has since completed.
func (v *Volume) Close() error {
	path := v.path
	temporary := v.temporary
	if err := v.m.close(); err != nil {
		return err
	}
	if temporary {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return akuerr.Wrap(akuerr.General, "remove temporary volume file: "+err.Error())
		}
	}
	return nil
}

// Path returns the volume's backing file path, for diagnostics and tests.
func (v *Volume) Path() string { return v.path }
