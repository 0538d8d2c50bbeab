package indexer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nlds-io/nlds/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit_ChunksIntoMaxLen(t *testing.T) {
	filelist := make([]common.PathDetail, 5)
	var batches [][]common.PathDetail
	Split(filelist, 2, func(kind BatchKind, items []common.PathDetail) {
		assert.Equal(t, BatchIndexed, kind)
		batches = append(batches, items)
	})
	require.Len(t, batches, 3)
	assert.Len(t, batches[0], 2)
	assert.Len(t, batches[1], 2)
	assert.Len(t, batches[2], 1)
}

func TestIndex_MissingPathGoesToProblem(t *testing.T) {
	cfg := Config{FilelistMaxLength: 1000, MessageThreshold: 1 << 30, MaxRetries: 5}
	filelist := []common.PathDetail{{OriginalPath: "/does/not/exist"}}

	var problems []common.PathDetail
	Index(cfg, filelist, func(kind BatchKind, items []common.PathDetail) {
		if kind == BatchProblem {
			problems = append(problems, items...)
		}
	})
	require.Len(t, problems, 1)
	assert.Equal(t, 1, problems[0].RetryCount)
}

func TestIndex_RetriesExhaustedGoesToFailed(t *testing.T) {
	cfg := Config{FilelistMaxLength: 1000, MessageThreshold: 1 << 30, MaxRetries: 2}
	filelist := []common.PathDetail{{OriginalPath: "/does/not/exist", RetryCount: 3}}

	var failed []common.PathDetail
	Index(cfg, filelist, func(kind BatchKind, items []common.PathDetail) {
		if kind == BatchFailed {
			failed = append(failed, items...)
		}
	})
	require.Len(t, failed, 1)
	assert.Equal(t, "/does/not/exist", failed[0].OriginalPath)
}

func TestIndex_ReadableFileIsIndexed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.nc")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	cfg := Config{FilelistMaxLength: 1000, MessageThreshold: 1 << 30, MaxRetries: 5}
	filelist := []common.PathDetail{{OriginalPath: path}}

	var indexed []common.PathDetail
	Index(cfg, filelist, func(kind BatchKind, items []common.PathDetail) {
		if kind == BatchIndexed {
			indexed = append(indexed, items...)
		}
	})
	require.Len(t, indexed, 1)
	assert.Equal(t, path, indexed[0].OriginalPath)
	assert.Equal(t, common.PathTypeFile, indexed[0].PathType)
	assert.EqualValues(t, 5, indexed[0].Size)
}

func TestIndex_DirectoryWalksSubfilesWithJoinedPath(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "nested")
	require.NoError(t, os.Mkdir(sub, 0o755))
	filePath := filepath.Join(sub, "inner.nc")
	require.NoError(t, os.WriteFile(filePath, []byte("x"), 0o644))

	cfg := Config{FilelistMaxLength: 1000, MessageThreshold: 1 << 30, MaxRetries: 5}
	filelist := []common.PathDetail{{OriginalPath: dir}}

	var indexed []common.PathDetail
	Index(cfg, filelist, func(kind BatchKind, items []common.PathDetail) {
		if kind == BatchIndexed {
			indexed = append(indexed, items...)
		}
	})
	require.Len(t, indexed, 1)
	// REDESIGN FLAG (b): the indexed path must be the fully-joined path,
	// not the bare directory-entry name.
	assert.Equal(t, filePath, indexed[0].OriginalPath)
}

func TestIndex_MessageThresholdFlushesEarly(t *testing.T) {
	dir := t.TempDir()
	path1 := filepath.Join(dir, "a.nc")
	path2 := filepath.Join(dir, "b.nc")
	require.NoError(t, os.WriteFile(path1, make([]byte, 100), 0o644))
	require.NoError(t, os.WriteFile(path2, make([]byte, 100), 0o644))

	cfg := Config{FilelistMaxLength: 1000, MessageThreshold: 100, MaxRetries: 5}
	filelist := []common.PathDetail{{OriginalPath: path1}, {OriginalPath: path2}}

	var batches [][]common.PathDetail
	Index(cfg, filelist, func(kind BatchKind, items []common.PathDetail) {
		if kind == BatchIndexed {
			batches = append(batches, items)
		}
	})
	// with a 100-byte threshold and two 100-byte files, each file should
	// trigger its own flush rather than both arriving in one batch.
	assert.GreaterOrEqual(t, len(batches), 2)
}
