package storage

import (
	"errors"
	"io"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/embeddb/akumuli/internal/akumuli"
	"github.com/embeddb/akumuli/internal/akumuli/akuerr"
	"github.com/embeddb/akumuli/internal/config"
	"github.com/embeddb/akumuli/internal/logging"
)

func testLogger() *logging.Logger {
	return logging.NewWithWriter(io.Discard, zerolog.Disabled)
}

func testConfig(dir string) *config.Config {
	return &config.Config{
		Storage: config.StorageConfig{
			Name:     "test",
			MetaPath: dir,
			VolPath:  dir,
			NumPages: 2,
		},
		Akumuli: config.AkumuliConfig{
			PageSize:             1 << 20,
			WindowSize:           1_000_000_000,
			CompressionThreshold: 1000,
			MaxCacheSize:         1 << 20,
			Durability:           "max",
			HistogramSize:        16,
			RunStripes:           4,
		},
		Logging: config.LoggingConfig{Level: "info", Format: "console"},
	}
}

func collectAll(t *testing.T, s *Storage, q *akumuli.Query) []akumuli.Sample {
	t.Helper()
	var out []akumuli.Sample
	require.NoError(t, s.Query(q, func(sample akumuli.Sample) bool {
		out = append(out, sample)
		return true
	}))
	return out
}

// TestStorageRoundTripSingleSample follows spec §8 scenario 1.
func TestStorageRoundTripSingleSample(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)

	s, err := Open(cfg, testLogger())
	require.NoError(t, err)
	require.NoError(t, s.Write(akumuli.Sample{ParamID: 7, Timestamp: 42, Value: 3.14}))
	require.NoError(t, s.Close())

	s2, err := Open(cfg, testLogger())
	require.NoError(t, err)
	defer s2.Close()

	samples := collectAll(t, s2, &akumuli.Query{LowerBound: 0, UpperBound: 100, Direction: akumuli.Forward})
	require.Len(t, samples, 1)
	assert.Equal(t, akumuli.Sample{ParamID: 7, Timestamp: 42, Value: 3.14}, samples[0])
}

// TestStorageLateWriteRejection follows spec §8 scenario 2.
func TestStorageLateWriteRejection(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	cfg.Akumuli.WindowSize = 500_000_000

	s, err := Open(cfg, testLogger())
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Write(akumuli.Sample{ParamID: 1, Timestamp: 1_000_000_000, Value: 1.0}))
	err = s.Write(akumuli.Sample{ParamID: 1, Timestamp: 0, Value: 2.0})
	require.Error(t, err)
	assert.True(t, errors.Is(err, akuerr.LateWrite))

	samples := collectAll(t, s, &akumuli.Query{LowerBound: 0, UpperBound: 2_000_000_000, Direction: akumuli.Forward})
	require.Len(t, samples, 1)
	assert.Equal(t, 1.0, samples[0].Value)
}

// TestStorageCompressionThreshold follows spec §8 scenario 3: enough
// samples to cross the compression threshold land in completed chunks
// that survive a close/reopen cycle, in time order.
func TestStorageCompressionThreshold(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	cfg.Akumuli.CompressionThreshold = 100
	cfg.Akumuli.WindowSize = 1 << 40
	cfg.Storage.NumPages = 1

	s, err := Open(cfg, testLogger())
	require.NoError(t, err)

	const n = 150
	for i := uint64(0); i < n; i++ {
		require.NoError(t, s.Write(akumuli.Sample{ParamID: 1, Timestamp: i + 1, Value: float64(i)}))
	}
	require.NoError(t, s.Close())

	s2, err := Open(cfg, testLogger())
	require.NoError(t, err)
	defer s2.Close()

	samples := collectAll(t, s2, &akumuli.Query{LowerBound: 0, UpperBound: ^uint64(0), Direction: akumuli.Forward})
	require.Len(t, samples, n)
	for i := 1; i < len(samples); i++ {
		assert.LessOrEqual(t, samples[i-1].Timestamp, samples[i].Timestamp)
	}
}

// TestStorageRotation follows spec §8 scenario 4: writing enough to
// overflow page 0 rotates the ring onto page 1, and every written sample
// remains retrievable.
func TestStorageRotation(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	cfg.Akumuli.PageSize = 4096
	cfg.Akumuli.CompressionThreshold = 20
	cfg.Akumuli.WindowSize = 5
	cfg.Storage.NumPages = 8 // generous ring: many small pages, so overflow rotates several times without any page's data being overwritten before every sample has been collected

	s, err := Open(cfg, testLogger())
	require.NoError(t, err)
	defer s.Close()

	const n = 1000
	for i := uint64(0); i < n; i++ {
		require.NoError(t, s.Write(akumuli.Sample{ParamID: 1, Timestamp: i + 1, Value: float64(i)}))
	}

	var rotated bool
	for i := 0; i < s.ring.Len(); i++ {
		if s.ring.Volume(i).Page.CloseCount() > 0 {
			rotated = true
			break
		}
	}
	assert.True(t, rotated, "expected at least one page overflow to rotate the ring")

	samples := collectAll(t, s, &akumuli.Query{LowerBound: 0, UpperBound: ^uint64(0), Direction: akumuli.Forward})
	require.Len(t, samples, n)
	for i := 1; i < len(samples); i++ {
		assert.LessOrEqual(t, samples[i-1].Timestamp, samples[i].Timestamp)
	}
}

// TestStorageBackwardScan follows spec §8 scenario 5.
func TestStorageBackwardScan(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	cfg.Akumuli.WindowSize = 1 << 40
	cfg.Storage.NumPages = 1

	s, err := Open(cfg, testLogger())
	require.NoError(t, err)
	defer s.Close()

	for ts := uint64(1); ts <= 1000; ts++ {
		require.NoError(t, s.Write(akumuli.Sample{ParamID: 1, Timestamp: ts, Value: float64(ts)}))
	}

	samples := collectAll(t, s, &akumuli.Query{LowerBound: 200, UpperBound: 800, Direction: akumuli.Backward})
	require.Len(t, samples, 601)
	for i := 1; i < len(samples); i++ {
		assert.Greater(t, samples[i-1].Timestamp, samples[i].Timestamp)
	}
	assert.Equal(t, uint64(800), samples[0].Timestamp)
	assert.Equal(t, uint64(200), samples[len(samples)-1].Timestamp)
}

func TestStorageOpenPersistsMetadata(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)

	s, err := Open(cfg, testLogger())
	require.NoError(t, err)
	require.NoError(t, s.Close())

	assert.FileExists(t, metadataPath(dir, "test"))

	s2, err := Open(cfg, testLogger())
	require.NoError(t, err)
	defer s2.Close()
	assert.Equal(t, s.meta.ID, s2.meta.ID)
}

func TestStorageQueryRejectsInvalidBounds(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)

	s, err := Open(cfg, testLogger())
	require.NoError(t, err)
	defer s.Close()

	err = s.Query(&akumuli.Query{LowerBound: 100, UpperBound: 0}, func(akumuli.Sample) bool { return true })
	assert.True(t, errors.Is(err, akuerr.BadArg))
}

// TestStorageCompressBlobsRoundTrip follows SPEC_FULL.md's CompressBlobs
// knob: enabling it must be transparent to readers across a close/reopen
// cycle.
func TestStorageCompressBlobsRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	cfg.Akumuli.CompressBlobs = true

	s, err := Open(cfg, testLogger())
	require.NoError(t, err)
	require.NoError(t, s.Write(akumuli.Sample{ParamID: 3, Timestamp: 10, Value: 9.25}))
	require.NoError(t, s.Close())

	s2, err := Open(cfg, testLogger())
	require.NoError(t, err)
	defer s2.Close()

	samples := collectAll(t, s2, &akumuli.Query{LowerBound: 0, UpperBound: 100, Direction: akumuli.Forward})
	require.Len(t, samples, 1)
	assert.Equal(t, akumuli.Sample{ParamID: 3, Timestamp: 10, Value: 9.25}, samples[0])
}

func TestMetadataPathJoinsMetaDirAndName(t *testing.T) {
	assert.Equal(t, filepath.Join("/a/b", "foo.akumuli"), metadataPath("/a/b", "foo"))
}
