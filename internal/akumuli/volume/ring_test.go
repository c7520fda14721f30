package volume

import (
	"io"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/embeddb/akumuli/internal/akumuli"
	"github.com/embeddb/akumuli/internal/logging"
)

func testLogger() *logging.Logger {
	return logging.NewWithWriter(io.Discard, zerolog.Disabled)
}

func testRingConfig(dir string, numPages int) Config {
	return Config{
		VolPath:      dir,
		Name:         "test",
		NumPages:     numPages,
		PageSize:     testPageSize,
		HistogramCap: 16,
		SeqConfig:    testSeqConfig(),
	}
}

func TestRingOpenCreatesAllPages(t *testing.T) {
	dir := t.TempDir()
	r, err := Open(testRingConfig(dir, 3), testLogger())
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, 3, r.Len())
	assert.Equal(t, 0, r.ActiveIndex())
	for i := 0; i < 3; i++ {
		assert.FileExists(t, filepath.Join(dir, "test_"+strconv.Itoa(i)+".volume"))
	}
}

func TestRingAdvanceRotatesAndResetsSuccessor(t *testing.T) {
	dir := t.TempDir()
	r, err := Open(testRingConfig(dir, 2), testLogger())
	require.NoError(t, err)
	defer r.Close()

	require.NoError(t, r.ActiveVolume().Page.AddEntry(1, 100, make([]byte, 8)))
	require.NoError(t, r.ActiveVolume().Page.AddEntry(2, 200, make([]byte, 8)))

	require.NoError(t, r.Advance(0))
	assert.Equal(t, 1, r.ActiveIndex())

	// Volume 1 was never active before this rotation (created with
	// open_count 0); MarkOpen during rotateFrom bumps it to 1, matching
	// spec §8 scenario 4's "open_count of page 1 to be 1".
	assert.Equal(t, uint32(0), r.ActiveVolume().Page.CloseCount())
	assert.Equal(t, uint32(1), r.ActiveVolume().Page.OpenCount())
}

func TestRingAdvanceLosesRaceIsNoop(t *testing.T) {
	dir := t.TempDir()
	r, err := Open(testRingConfig(dir, 2), testLogger())
	require.NoError(t, err)
	defer r.Close()

	require.NoError(t, r.Advance(0))
	require.Equal(t, 1, r.ActiveIndex())

	// currentRev no longer matches; stale caller's Advance is a no-op.
	require.NoError(t, r.Advance(0))
	assert.Equal(t, 1, r.ActiveIndex())
}

func TestRingVolumesFromOrdersByAge(t *testing.T) {
	dir := t.TempDir()
	r, err := Open(testRingConfig(dir, 3), testLogger())
	require.NoError(t, err)
	defer r.Close()

	require.NoError(t, r.Advance(0))
	require.Equal(t, 1, r.ActiveIndex())

	newestFirst := r.VolumesFrom(r.ActiveIndex(), true)
	require.Len(t, newestFirst, 3)
	assert.Same(t, r.Volume(1), newestFirst[0])
	assert.Same(t, r.Volume(0), newestFirst[1])
	assert.Same(t, r.Volume(2), newestFirst[2])

	oldestFirst := r.VolumesFrom(r.ActiveIndex(), false)
	require.Len(t, oldestFirst, 3)
	assert.Same(t, r.Volume(2), oldestFirst[0])
	assert.Same(t, r.Volume(0), oldestFirst[1])
	assert.Same(t, r.Volume(1), oldestFirst[2])
}

func TestRingOpenResumesInterruptedRotation(t *testing.T) {
	dir := t.TempDir()
	r, err := Open(testRingConfig(dir, 2), testLogger())
	require.NoError(t, err)

	// Simulate a crash mid-rotation: close the active page (bumping
	// close_count to equal open_count) without completing safe_realloc
	// on the successor, then release the ring's mappings with Ring.Close,
	// without the Ring.Advance that would have finished the rotation.
	active := r.ActiveVolume()
	active.Page.MarkClose()
	require.NoError(t, active.Sync())
	require.NoError(t, r.Close())

	r2, err := Open(testRingConfig(dir, 2), testLogger())
	require.NoError(t, err)
	defer r2.Close()

	// Recovery should have completed the rotation onto volume 1.
	assert.Equal(t, 1, r2.ActiveIndex())
}

func TestRingSafeReallocClearsSuccessorButKeepsRetiredVolumeData(t *testing.T) {
	dir := t.TempDir()
	r, err := Open(testRingConfig(dir, 2), testLogger())
	require.NoError(t, err)
	defer r.Close()

	require.NoError(t, r.ActiveVolume().Page.AddEntry(1, 100, make([]byte, 8)))
	retiredPath := r.Volume(0).Path()

	require.NoError(t, r.Advance(0))

	var samples []akumuli.Sample
	q := &akumuli.Query{LowerBound: 0, UpperBound: 10000, Direction: akumuli.Forward}
	require.NoError(t, r.Volume(0).Page.Search(q, nil, func(s akumuli.Sample) bool {
		samples = append(samples, s)
		return true
	}))
	assert.Len(t, samples, 1, "retired volume 0 keeps its data until its ring slot comes around again")
	assert.FileExists(t, retiredPath)

	var freshSamples []akumuli.Sample
	require.NoError(t, r.Volume(1).Page.Search(q, nil, func(s akumuli.Sample) bool {
		freshSamples = append(freshSamples, s)
		return true
	}))
	assert.Empty(t, freshSamples, "successor volume was reset by safe_realloc")
}

func TestRingCloseRemovesTemporaryFiles(t *testing.T) {
	dir := t.TempDir()
	r, err := Open(testRingConfig(dir, 2), testLogger())
	require.NoError(t, err)

	require.NoError(t, r.Advance(0))
	require.NoError(t, r.Close())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp")
	}
}
