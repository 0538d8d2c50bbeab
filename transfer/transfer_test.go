package transfer

import (
	"bytes"
	"context"
	"hash/adler32"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/nlds-io/nlds/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	objects map[string][]byte
}

func newFakeStore() *fakeStore { return &fakeStore{objects: map[string][]byte{}} }

func (f *fakeStore) EnsureBucket(ctx context.Context, bucket string) error { return nil }

func (f *fakeStore) Put(ctx context.Context, bucket, key string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.objects[bucket+":"+key] = data
	return nil
}

func (f *fakeStore) Get(ctx context.Context, bucket, key string) (io.ReadCloser, int64, error) {
	data, ok := f.objects[bucket+":"+key]
	if !ok {
		return nil, 0, errObjectMissingForTest
	}
	return io.NopCloser(bytes.NewReader(data)), int64(len(data)), nil
}

func (f *fakeStore) Delete(ctx context.Context, bucket, key string) error {
	delete(f.objects, bucket+":"+key)
	return nil
}

var errObjectMissingForTest = assertErr("object missing")

type assertErr string

func (e assertErr) Error() string { return string(e) }

func TestPut_ComputesAdler32ChecksumMatchingStdlib(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.nc")
	content := []byte("the quick brown fox jumps over the lazy dog")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	store := newFakeStore()
	txID := uuid.New()
	filelist := []common.PathDetail{{OriginalPath: path, PathType: common.PathTypeFile, Size: int64(len(content))}}

	results := Put(context.Background(), Config{}, store, txID, filelist)
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
	assert.Equal(t, adler32.Checksum(content), results[0].Checksum)
	assert.Equal(t, path, results[0].Item.ObjectName)
}

func TestPut_SkipsNonFileEntries(t *testing.T) {
	store := newFakeStore()
	txID := uuid.New()
	filelist := []common.PathDetail{{OriginalPath: "/some/dir", PathType: common.PathTypeDirectory}}

	results := Put(context.Background(), Config{}, store, txID, filelist)
	assert.Empty(t, results)
}

func TestGet_RoundTripsContentAndChecksum(t *testing.T) {
	store := newFakeStore()
	txID := uuid.New()
	bucket := "nlds." + txID.String()
	content := []byte("roundtrip me")
	store.objects[bucket+":file.nc"] = content

	destDir := t.TempDir()
	filelist := []common.PathDetail{{OriginalPath: "file.nc", ObjectName: "file.nc", PathType: common.PathTypeFile, Size: int64(len(content))}}

	results := Get(context.Background(), Config{}, store, txID, destDir, filelist)
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
	assert.Equal(t, adler32.Checksum(content), results[0].Checksum)

	got, err := os.ReadFile(filepath.Join(destDir, "file.nc"))
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestGet_SizeMismatchProducesReasonedError(t *testing.T) {
	store := newFakeStore()
	txID := uuid.New()
	bucket := "nlds." + txID.String()
	store.objects[bucket+":file.nc"] = []byte("short")

	destDir := t.TempDir()
	filelist := []common.PathDetail{{OriginalPath: "file.nc", ObjectName: "file.nc", PathType: common.PathTypeFile, Size: 999}}

	results := Get(context.Background(), Config{}, store, txID, destDir, filelist)
	require.Len(t, results, 1)
	require.Error(t, results[0].Err)
	reason, ok := common.ReasonOf(results[0].Err)
	require.True(t, ok)
	assert.Equal(t, common.ReasonSizeMismatch, reason)
}

func TestGet_ChecksumMismatchProducesReasonedError(t *testing.T) {
	store := newFakeStore()
	txID := uuid.New()
	bucket := "nlds." + txID.String()
	content := []byte("roundtrip me")
	store.objects[bucket+":file.nc"] = content

	destDir := t.TempDir()
	filelist := []common.PathDetail{{
		OriginalPath: "file.nc", ObjectName: "file.nc", PathType: common.PathTypeFile,
		Size: int64(len(content)), Checksum: adler32.Checksum(content) + 1,
	}}

	results := Get(context.Background(), Config{}, store, txID, destDir, filelist)
	require.Len(t, results, 1)
	require.Error(t, results[0].Err)
	reason, ok := common.ReasonOf(results[0].Err)
	require.True(t, ok)
	assert.Equal(t, common.ReasonChecksumMismatch, reason)
}

func TestDelete_RemovesObjects(t *testing.T) {
	store := newFakeStore()
	txID := uuid.New()
	bucket := "nlds." + txID.String()
	store.objects[bucket+":file.nc"] = []byte("x")

	filelist := []common.PathDetail{{OriginalPath: "file.nc", ObjectName: "file.nc", PathType: common.PathTypeFile}}
	results := Delete(context.Background(), store, txID, filelist)
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
	_, ok := store.objects[bucket+":file.nc"]
	assert.False(t, ok)
}
