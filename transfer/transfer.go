// Package transfer implements the PUT/GET object-storage workers of
// spec.md §4.6: each file in a filelist is streamed to or from the
// per-transaction bucket in fixed-size chunks while an adler-32 checksum
// accumulates over the bytes seen, grounded on the teacher's
// storage/s3aws.go upload/download worker shape and the tape package's
// checksummed-stream pattern.
package transfer

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/nlds-io/nlds/common"
	"github.com/nlds-io/nlds/objectstore"
)

// Config mirrors spec.md §4.6's transfer_q block.
type Config struct {
	ChunkSize int // bytes, default 256 KiB
}

const defaultChunkSize = 256 * 1024

func (c Config) chunkSize() int {
	if c.ChunkSize <= 0 {
		return defaultChunkSize
	}
	return c.ChunkSize
}

// Store is the subset of objectstore.Client the workers need.
type Store interface {
	EnsureBucket(ctx context.Context, bucket string) error
	Put(ctx context.Context, bucket, key string, r io.Reader) error
	Get(ctx context.Context, bucket, key string) (io.ReadCloser, int64, error)
	Delete(ctx context.Context, bucket, key string) error
}

// Result is one file's outcome, carrying the checksum a caller should
// persist as the catalog Location's checksum (spec.md §4.6).
type Result struct {
	Item     common.PathDetail
	Checksum uint32
	Err      error
}

// Put streams every readable file in filelist into the transaction's
// bucket, object-keyed by the item's ObjectName (its OriginalPath when
// ObjectName is empty), accumulating an
// adler-32 checksum per file as it is read off disk (spec.md §4.6,
// testable property: PUT checksum equals the GET-time recomputed
// checksum).
func Put(ctx context.Context, cfg Config, store Store, transactionID uuid.UUID, filelist []common.PathDetail) []Result {
	bucket := objectstore.BucketName(transactionID)
	if err := store.EnsureBucket(ctx, bucket); err != nil {
		return failAll(filelist, common.ReasonWriteError, err)
	}

	results := make([]Result, 0, len(filelist))
	for _, item := range filelist {
		if item.PathType != common.PathTypeFile {
			continue
		}
		results = append(results, putOne(ctx, cfg, store, bucket, item))
	}
	return results
}

func putOne(ctx context.Context, cfg Config, store Store, bucket string, item common.PathDetail) Result {
	f, err := os.Open(item.OriginalPath)
	if err != nil {
		return Result{Item: item, Err: common.NewReasonedError(common.ReasonReadError, err)}
	}
	defer f.Close()

	buffered := bufio.NewReaderSize(f, cfg.chunkSize())
	checksummed := newChecksumReader(buffered)
	key := objectKey(item)
	if err := store.Put(ctx, bucket, key, checksummed); err != nil {
		return Result{Item: item, Err: common.NewReasonedError(common.ReasonWriteError, err)}
	}

	item.ObjectName = key
	item.Checksum = checksummed.Sum32()
	return Result{Item: item, Checksum: item.Checksum}
}

// Get streams every file in filelist out of the transaction's bucket to
// destDir, preserving the original relative layout under destDir,
// verifying the transferred size matches item.Size and, when item carries
// a non-zero stored checksum from a prior Put, that the recomputed
// adler-32 checksum matches it too — a mismatch is a per-file
// checksum_mismatch failure rather than a silently corrupted download
// (spec.md §4.6, §7).
func Get(ctx context.Context, cfg Config, store Store, transactionID uuid.UUID, destDir string, filelist []common.PathDetail) []Result {
	bucket := objectstore.BucketName(transactionID)

	results := make([]Result, 0, len(filelist))
	for _, item := range filelist {
		if item.PathType != common.PathTypeFile {
			continue
		}
		results = append(results, getOne(ctx, cfg, store, bucket, destDir, item))
	}
	return results
}

func getOne(ctx context.Context, cfg Config, store Store, bucket, destDir string, item common.PathDetail) Result {
	key := objectKey(item)
	body, size, err := store.Get(ctx, bucket, key)
	if err != nil {
		reason := common.ReasonReadError
		if err == objectstore.ErrObjectMissing {
			reason = common.ReasonObjectMissing
		}
		return Result{Item: item, Err: common.NewReasonedError(reason, err)}
	}
	defer body.Close()

	if item.Size != 0 && size != item.Size {
		return Result{Item: item, Err: common.NewReasonedError(common.ReasonSizeMismatch,
			fmt.Errorf("expected %d bytes, object store reports %d", item.Size, size))}
	}

	destPath := destDir + string(os.PathSeparator) + key
	if err := os.MkdirAll(parentDir(destPath), 0o755); err != nil {
		return Result{Item: item, Err: common.NewReasonedError(common.ReasonWriteError, err)}
	}
	out, err := os.Create(destPath)
	if err != nil {
		return Result{Item: item, Err: common.NewReasonedError(common.ReasonWriteError, err)}
	}
	defer out.Close()

	checksummed := newChecksumReader(body)
	buf := make([]byte, cfg.chunkSize())
	if _, err := io.CopyBuffer(out, checksummed, buf); err != nil {
		return Result{Item: item, Err: common.NewReasonedError(common.ReasonWriteError, err)}
	}

	sum := checksummed.Sum32()
	if item.Checksum != 0 && sum != item.Checksum {
		return Result{Item: item, Checksum: sum, Err: common.NewReasonedError(common.ReasonChecksumMismatch,
			fmt.Errorf("expected checksum %08x, recomputed %08x", item.Checksum, sum))}
	}

	return Result{Item: item, Checksum: sum}
}

// Delete removes every file in filelist from the transaction's bucket,
// used by the catalog-delete workflow once the catalog rows themselves
// are removed (spec.md §4.4).
func Delete(ctx context.Context, store Store, transactionID uuid.UUID, filelist []common.PathDetail) []Result {
	bucket := objectstore.BucketName(transactionID)

	results := make([]Result, 0, len(filelist))
	for _, item := range filelist {
		if item.PathType != common.PathTypeFile {
			continue
		}
		key := objectKey(item)
		if err := store.Delete(ctx, bucket, key); err != nil {
			results = append(results, Result{Item: item, Err: common.NewReasonedError(common.ReasonWriteError, err)})
			continue
		}
		results = append(results, Result{Item: item})
	}
	return results
}

func objectKey(item common.PathDetail) string {
	if item.ObjectName != "" {
		return item.ObjectName
	}
	return item.OriginalPath
}

func parentDir(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == os.PathSeparator {
			return path[:i]
		}
	}
	return "."
}

func failAll(filelist []common.PathDetail, reason common.FailureReason, err error) []Result {
	results := make([]Result, 0, len(filelist))
	for _, item := range filelist {
		results = append(results, Result{Item: item, Err: common.NewReasonedError(reason, err)})
	}
	return results
}
