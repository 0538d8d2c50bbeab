// Package indexer ports the original's nlds_processors/index.py walk/
// permission-check logic to Go, fixing the REDESIGN FLAG (b) joined-path
// bug: the original called os.access(f, ...) on the bare directory-entry
// name rather than the joined path, so the access check almost always
// ran against a file in the process's own working directory instead of
// the one being indexed. This package always joins directory and entry
// name before stat/access.
package indexer

import (
	"os"
	"path/filepath"

	"github.com/nlds-io/nlds/common"
)

// Config mirrors the original's DEFAULT_CONSUMER_CONFIG, with
// MessageThreshold's authoritative default corrected to 1 GiB (spec.md
// §6), not the original's apparently-mistaken 1000-byte default.
type Config struct {
	FilelistMaxLength int
	MessageThreshold  int64
	MaxRetries        int
}

// BatchKind labels an emitted batch by where it is headed next.
type BatchKind string

const (
	// BatchIndexed is ready for cataloguing/transfer.
	BatchIndexed BatchKind = "indexed"
	// BatchProblem failed this pass but has retries remaining.
	BatchProblem BatchKind = "problem"
	// BatchFailed exhausted its retries and is terminal.
	BatchFailed BatchKind = "failed"
)

// BatchFunc receives one batch of items as it crosses a size or count
// threshold, mirroring the original's send_list.
type BatchFunc func(kind BatchKind, items []common.PathDetail)

// Split breaks filelist into chunks of at most maxLen, emitting each as
// BatchIndexed for resubmission to the index queue proper (mirroring
// IndexerConsumer.split, invoked when a filelist arrives larger than the
// configured maximum).
func Split(filelist []common.PathDetail, maxLen int, emit BatchFunc) {
	if maxLen <= 0 {
		emit(BatchIndexed, filelist)
		return
	}
	for i := 0; i < len(filelist); i += maxLen {
		end := i + maxLen
		if end > len(filelist) {
			end = len(filelist)
		}
		emit(BatchIndexed, filelist[i:end])
	}
}

// Index walks filelist, resolving directories into their contained
// files, checking read access on every file, and classifying each path
// into indexed / problem / failed, emitting batches as they cross
// cfg.MessageThreshold bytes or cfg.FilelistMaxLength items (mirroring
// IndexerConsumer.index).
func Index(cfg Config, filelist []common.PathDetail, emit BatchFunc) {
	var indexed, problem, failed []common.PathDetail
	var indexedSize int64

	flushIndexed := func() {
		if len(indexed) > 0 {
			emit(BatchIndexed, indexed)
			indexed = nil
			indexedSize = 0
		}
	}
	flushProblem := func() {
		if len(problem) >= cfg.FilelistMaxLength {
			emit(BatchProblem, problem)
			problem = nil
		}
	}
	flushFailed := func() {
		if len(failed) >= cfg.FilelistMaxLength {
			emit(BatchFailed, failed)
			failed = nil
		}
	}

	addProblem := func(item common.PathDetail) {
		item.RetryCount++
		problem = append(problem, item)
		flushProblem()
	}

	addIndexed := func(path string, info os.FileInfo, retryCount int) {
		indexed = append(indexed, statToPathDetail(path, info, retryCount))
		indexedSize += info.Size()
		if indexedSize >= cfg.MessageThreshold ||
			(cfg.FilelistMaxLength > 0 && len(indexed) >= cfg.FilelistMaxLength) {
			flushIndexed()
		}
	}

	for _, item := range filelist {
		if item.RetryCount > cfg.MaxRetries {
			failed = append(failed, item)
			flushFailed()
			continue
		}

		info, err := os.Lstat(item.OriginalPath)
		if err != nil {
			addProblem(item)
			continue
		}

		if info.IsDir() {
			walkErr := filepath.Walk(item.OriginalPath, func(path string, sub os.FileInfo, err error) error {
				if err != nil || sub.IsDir() {
					return nil
				}
				if accessErr := isReadable(path); accessErr != nil {
					addProblem(common.PathDetail{OriginalPath: path, RetryCount: item.RetryCount})
					return nil
				}
				addIndexed(path, sub, item.RetryCount)
				return nil
			})
			if walkErr != nil {
				addProblem(item)
			}
			continue
		}

		if accessErr := isReadable(item.OriginalPath); accessErr != nil {
			addProblem(item)
			continue
		}
		addIndexed(item.OriginalPath, info, item.RetryCount)
	}

	flushIndexed()
	if len(problem) > 0 {
		emit(BatchProblem, problem)
	}
	if len(failed) > 0 {
		emit(BatchFailed, failed)
	}
}

func statToPathDetail(path string, info os.FileInfo, retryCount int) common.PathDetail {
	pd := common.PathDetail{
		OriginalPath: path,
		Size:         info.Size(),
		Mode:         uint32(info.Mode().Perm()),
		AccessTime:   info.ModTime(),
		RetryCount:   retryCount,
	}
	switch {
	case info.Mode()&os.ModeSymlink != 0:
		pd.PathType = common.PathTypeLink
		if target, err := os.Readlink(path); err == nil {
			pd.LinkPath = target
		}
	case info.Mode().IsRegular():
		pd.PathType = common.PathTypeFile
	case info.IsDir():
		pd.PathType = common.PathTypeDirectory
	default:
		pd.PathType = common.PathTypeNotRecognised
	}
	return pd
}
