package archive

import (
	"archive/tar"
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/nlds-io/nlds/aggregator"
	"github.com/nlds-io/nlds/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeObjectStore struct {
	objects map[string][]byte
}

func newFakeObjectStore() *fakeObjectStore { return &fakeObjectStore{objects: map[string][]byte{}} }

func (f *fakeObjectStore) Get(ctx context.Context, bucket, key string) (io.ReadCloser, int64, error) {
	data, ok := f.objects[bucket+":"+key]
	if !ok {
		return nil, 0, errMissing("no such object")
	}
	return io.NopCloser(bytes.NewReader(data)), int64(len(data)), nil
}

func (f *fakeObjectStore) Put(ctx context.Context, bucket, key string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.objects[bucket+":"+key] = data
	return nil
}

type errMissing string

func (e errMissing) Error() string { return string(e) }

func TestPut_WritesSingleBinAsOneTarWithMatchingChecksum(t *testing.T) {
	store := newFakeObjectStore()
	bucket := "nlds.tx1"
	store.objects[bucket+":a.nc"] = []byte("aaaaaaaaaa")
	store.objects[bucket+":b.nc"] = []byte("bbbbb")

	filelist := []common.PathDetail{
		{OriginalPath: "a.nc", ObjectName: "a.nc", PathType: common.PathTypeFile, Size: 10},
		{OriginalPath: "b.nc", ObjectName: "b.nc", PathType: common.PathTypeFile, Size: 5},
	}

	cfg := Config{StagingDir: t.TempDir(), TargetAggCount: 1}
	results := Put(context.Background(), cfg, store, bucket, filelist)
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
	assert.Len(t, results[0].AggregationID, 16)
	assert.NotZero(t, results[0].Checksum)

	contents, err := os.ReadFile(results[0].TarPath)
	require.NoError(t, err)
	expectedChecksum := tarAdler32(t, contents)
	assert.Equal(t, expectedChecksum, results[0].Checksum)
}

func TestPut_SizeMismatchExcludesMemberAndRetriesRemainingBin(t *testing.T) {
	store := newFakeObjectStore()
	bucket := "nlds.tx1"
	store.objects[bucket+":bad.nc"] = []byte("short")
	store.objects[bucket+":good.nc"] = []byte("exactly10c")

	filelist := []common.PathDetail{
		{OriginalPath: "bad.nc", ObjectName: "bad.nc", PathType: common.PathTypeFile, Size: 999},
		{OriginalPath: "good.nc", ObjectName: "good.nc", PathType: common.PathTypeFile, Size: 10},
	}

	cfg := Config{StagingDir: t.TempDir(), TargetAggCount: 1}
	results := Put(context.Background(), cfg, store, bucket, filelist)
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
	require.Len(t, results[0].Members, 1)
	assert.Equal(t, "good.nc", results[0].Members[0].OriginalPath)
	assert.Equal(t, aggregator.AggregationID(results[0].Members), results[0].AggregationID)
}

func TestPut_AllMembersFailingExhaustsRetriesAndFailsBin(t *testing.T) {
	store := newFakeObjectStore()
	bucket := "nlds.tx1"

	filelist := []common.PathDetail{
		{OriginalPath: "missing1.nc", ObjectName: "missing1.nc", PathType: common.PathTypeFile, Size: 20},
		{OriginalPath: "missing2.nc", ObjectName: "missing2.nc", PathType: common.PathTypeFile, Size: 10},
	}

	cfg := Config{StagingDir: t.TempDir(), TargetAggCount: 1}
	results := Put(context.Background(), cfg, store, bucket, filelist)
	require.Len(t, results, 1)
	require.Error(t, results[0].Err)
	reason, ok := common.ReasonOf(results[0].Err)
	require.True(t, ok)
	assert.Equal(t, common.ReasonRetriesExhausted, reason)
	assert.Equal(t, filelist, results[0].Members)
}

func TestPut_EmptyFilelistPropagatesAggregatorError(t *testing.T) {
	store := newFakeObjectStore()
	cfg := Config{StagingDir: t.TempDir()}
	results := Put(context.Background(), cfg, store, "nlds.tx1", nil)
	require.Len(t, results, 1)
	require.Error(t, results[0].Err)
}

func TestGet_RehydratesMembersFromTarAndRecomputesChecksum(t *testing.T) {
	dir := t.TempDir()
	tarPath := filepath.Join(dir, "agg.tar")
	writeTestTar(t, tarPath, map[string][]byte{
		"a.nc": []byte("hello world"),
		"b.nc": []byte("goodbye"),
	})

	store := newFakeObjectStore()
	bucket := "nlds.tx1"
	filelist := []common.PathDetail{
		{OriginalPath: "a.nc", ObjectName: "a.nc", PathType: common.PathTypeFile},
	}

	results := Get(context.Background(), store, bucket, tarPath, filelist)
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
	assert.Equal(t, []byte("hello world"), store.objects[bucket+":a.nc"])
}

func TestGet_ChecksumMismatchProducesReasonedError(t *testing.T) {
	dir := t.TempDir()
	tarPath := filepath.Join(dir, "agg.tar")
	writeTestTar(t, tarPath, map[string][]byte{"a.nc": []byte("hello world")})

	store := newFakeObjectStore()
	bucket := "nlds.tx1"
	filelist := []common.PathDetail{
		{OriginalPath: "a.nc", ObjectName: "a.nc", PathType: common.PathTypeFile, Checksum: 1},
	}

	results := Get(context.Background(), store, bucket, tarPath, filelist)
	require.Len(t, results, 1)
	require.Error(t, results[0].Err)
	reason, ok := common.ReasonOf(results[0].Err)
	require.True(t, ok)
	assert.Equal(t, common.ReasonChecksumMismatch, reason)
}

func writeTestTar(t *testing.T, path string, members map[string][]byte) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	tw := tar.NewWriter(f)
	for name, content := range members {
		require.NoError(t, tw.WriteHeader(&tar.Header{Name: name, Size: int64(len(content)), Mode: 0o644, Typeflag: tar.TypeReg}))
		_, err := tw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
}

func tarAdler32(t *testing.T, tarBytes []byte) uint32 {
	t.Helper()
	cr := newChecksumReader(bytes.NewReader(tarBytes))
	_, err := io.Copy(io.Discard, cr)
	require.NoError(t, err)
	return cr.Sum32()
}
