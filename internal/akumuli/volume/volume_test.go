package volume

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/embeddb/akumuli/internal/akumuli"
	"github.com/embeddb/akumuli/internal/akumuli/seq"
)

const testPageSize = 64 * 1024

func testSeqConfig() seq.Config {
	return seq.Config{Window: 1000, ChunkSize: 16, Stripes: 4}
}

func TestCreateVolumeThenOpenRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "p0.volume")

	v, err := createVolume(path, testPageSize, 0, 16, testSeqConfig(), 1)
	require.NoError(t, err)
	require.NoError(t, v.Page.AddEntry(1, 100, make([]byte, 8)))
	require.NoError(t, v.Sync())
	require.NoError(t, v.Close())

	reopened, err := openVolume(path, 16, testSeqConfig())
	require.NoError(t, err)
	defer reopened.Close()

	assert.Equal(t, uint32(1), reopened.Page.OpenCount())
	assert.Equal(t, uint32(0), reopened.Page.CloseCount())
}

func TestOpenVolumeRestoresUnsyncedTailDiscarded(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "p0.volume")

	v, err := createVolume(path, testPageSize, 0, 16, testSeqConfig(), 1)
	require.NoError(t, err)
	require.NoError(t, v.Page.AddEntry(1, 100, make([]byte, 8)))
	require.NoError(t, v.Sync())
	require.NoError(t, v.Page.AddEntry(2, 200, make([]byte, 8))) // never synced
	require.NoError(t, v.Close())                                // no Sync after second write

	reopened, err := openVolume(path, 16, testSeqConfig())
	require.NoError(t, err)
	defer reopened.Close()

	var samples []akumuli.Sample
	q := &akumuli.Query{LowerBound: 0, UpperBound: 1000, Direction: akumuli.Forward}
	require.NoError(t, reopened.Page.Search(q, nil, func(s akumuli.Sample) bool {
		samples = append(samples, s)
		return true
	}))

	require.Len(t, samples, 1)
	assert.Equal(t, akumuli.ParamID(1), samples[0].ParamID)
}
