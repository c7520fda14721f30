// Package storage implements the Storage façade named by SPEC_FULL: it
// owns the metadata file, the Volume Ring, and the Chunk Cache, and wires
// them into the Write/Query operations spec §2 describes at the system
// level. Individual components (Sequencer, Page, Ring, codec) enforce
// their own invariants; Storage's job is orchestration — routing writes
// through the active volume, rotating on overflow, and applying the
// configured durability policy.
package storage

import (
	"errors"
	"os"
	"sync/atomic"

	"github.com/embeddb/akumuli/internal/akumuli"
	"github.com/embeddb/akumuli/internal/akumuli/akuerr"
	"github.com/embeddb/akumuli/internal/akumuli/cache"
	"github.com/embeddb/akumuli/internal/akumuli/seq"
	"github.com/embeddb/akumuli/internal/akumuli/volume"
	"github.com/embeddb/akumuli/internal/config"
	"github.com/embeddb/akumuli/internal/logging"
)

// Storage is the top-level handle a client opens once per named instance
// (spec §6 "<metapath>/<name>.akumuli" plus its ring of volume files).
type Storage struct {
	cfg    *config.Config
	logger *logging.Logger

	ring  *volume.Ring
	cache *cache.ChunkCache

	durability    config.Durability
	oddFlushCount atomic.Uint64 // counts odd-generation flushes, for DurabilityTradeoff's "every 8th"

	metaPath string
	meta     *metadata
}

// Open opens an existing instance named by cfg.Storage.Name, creating one
// (metadata file, page files, all sized per cfg.Akumuli) if none exists
// yet. This folds spec §4.3's "Selection on open" and the SUPPLEMENTED
// FEATURES recovery path into one entry point: volume.Open does the
// per-page restore/rotation-completion work.
func Open(cfg *config.Config, logger *logging.Logger) (*Storage, error) {
	if err := cfg.Validate(); err != nil {
		return nil, akuerr.Wrap(akuerr.BadArg, err.Error())
	}

	durability, err := config.ParseDurability(cfg.Akumuli.Durability)
	if err != nil {
		return nil, akuerr.Wrap(akuerr.BadArg, err.Error())
	}

	path := metadataPath(cfg.Storage.MetaPath, cfg.Storage.Name)
	meta, err := openOrCreateMetadata(path, cfg)
	if err != nil {
		return nil, err
	}

	chunkCache := cache.New(cfg.Akumuli.MaxCacheSize)

	ringCfg := volume.Config{
		VolPath:      cfg.Storage.VolPath,
		Name:         cfg.Storage.Name,
		NumPages:     cfg.Storage.NumPages,
		PageSize:     cfg.Akumuli.PageSize,
		HistogramCap: uint32(cfg.Akumuli.HistogramSize),
		SeqConfig: seq.Config{
			Window:    uint64(cfg.Akumuli.WindowSize.Nanoseconds()),
			ChunkSize: cfg.Akumuli.CompressionThreshold,
			Stripes:   cfg.Akumuli.RunStripes,
		},
		Cache:         chunkCache,
		CompressBlobs: cfg.Akumuli.CompressBlobs,
	}
	ring, err := volume.Open(ringCfg, logger)
	if err != nil {
		return nil, err
	}

	logger.Info("storage opened",
		"name", cfg.Storage.Name,
		"num_pages", cfg.Storage.NumPages,
		"active_index", ring.ActiveIndex(),
		"durability", durability.String())

	return &Storage{
		cfg:        cfg,
		logger:     logger,
		ring:       ring,
		cache:      chunkCache,
		durability: durability,
		metaPath:   path,
		meta:       meta,
	}, nil
}

func openOrCreateMetadata(path string, cfg *config.Config) (*metadata, error) {
	if _, err := os.Stat(path); err == nil {
		return loadMetadata(path)
	}
	return createMetadata(path, cfg.Storage.VolPath, cfg.Storage.Name, cfg.Storage.NumPages)
}

// Write appends one sample through the active volume's Sequencer,
// triggering a compress-and-flush (and, on page overflow, a ring
// rotation) exactly as spec §2's write data-flow describes.
func (s *Storage) Write(sample akumuli.Sample) error {
	idx := s.ring.ActiveIndex()
	vol := s.ring.Volume(idx)

	token, err := vol.Seq.Add(sample)
	if err != nil {
		return err
	}
	if !token.IsFlushDue() {
		return nil
	}
	return s.flush(idx)
}

// flush drains the Sequencer named by idx into its volume's page. On
// OVERFLOW it rotates the ring and retries against the new active
// volume — the unflushed residue already rode along via the Sequencer
// swap Ring.Advance performs (spec §2 step 4, §4.1 merge_and_compress
// failure semantics).
func (s *Storage) flush(idx int) error {
	vol := s.ring.Volume(idx)
	err := vol.Seq.MergeAndCompress(vol.Page, false)
	if err == nil {
		s.applyDurability(idx)
		return nil
	}
	if errors.Is(err, akuerr.Overflow) {
		s.logger.Info("page overflow, advancing volume ring", "index", idx)
		if rerr := s.ring.Advance(idx); rerr != nil {
			return rerr
		}
		return s.flush(s.ring.ActiveIndex())
	}
	return err
}

// applyDurability honors the fsync policy of spec §6: MAX syncs once
// after every successful flush (one sync covers all the chunks that
// flush completed; chunks are not synced one by one), TRADEOFF after
// every 8th, SPEED never here (only from Ring.Advance / Close, which
// always sync the volume they retire).
func (s *Storage) applyDurability(idx int) {
	switch s.durability {
	case config.DurabilityMax:
		if err := s.ring.Volume(idx).Sync(); err != nil {
			s.logger.Error("sync failed", "error", err)
		}
	case config.DurabilityTradeoff:
		if n := s.oddFlushCount.Add(1); n%8 == 0 {
			if err := s.ring.Volume(idx).Sync(); err != nil {
				s.logger.Error("sync failed", "error", err)
			}
		}
	case config.DurabilitySpeed:
	}
}

// Close flushes every volume's remaining in-memory data to its page and
// releases the ring's memory maps (spec §4.1 Sequencer.close, applied
// across the whole ring).
func (s *Storage) Close() error {
	for i := 0; i < s.ring.Len(); i++ {
		vol := s.ring.Volume(i)
		if err := vol.Seq.Close(vol.Page); err != nil && !errors.Is(err, akuerr.Overflow) {
			s.logger.Error("flush on close failed", "index", i, "error", err)
		}
		if err := vol.Sync(); err != nil {
			s.logger.Error("sync on close failed", "index", i, "error", err)
		}
	}
	return s.ring.Close()
}

// Cache exposes the chunk cache so Query (same package) and tests can
// reach it; it is not part of the public write/query surface on its own.
func (s *Storage) Cache() *cache.ChunkCache { return s.cache }
