// Package archive implements the tape PUT/GET workers of spec.md §4.7:
// PUT bins a filelist into aggregator.Aggregate groups and streams each
// group into one tar-formatted tape file via the tape/ package; GET
// reads a tape file's tar stream back out to the object store. Grounded
// on the original's S3ToTarfileStream/S3ToTarfileDisk PUT/GET pair.
package archive

import (
	"archive/tar"
	"context"
	"fmt"
	"hash/adler32"
	"io"
	"os"
	"path/filepath"

	"github.com/nlds-io/nlds/aggregator"
	"github.com/nlds-io/nlds/common"
	"github.com/nlds-io/nlds/tape"
)

// ObjectGetter is the subset of transfer.Store used to read a member's
// bytes back out of the object-store bucket ahead of writing it to tape.
type ObjectGetter interface {
	Get(ctx context.Context, bucket, key string) (io.ReadCloser, int64, error)
}

// ObjectPutter is the subset used by Get to stream a rehydrated member
// back into the object store.
type ObjectPutter interface {
	Put(ctx context.Context, bucket, key string, r io.Reader) error
}

// BinResult is one aggregation's outcome: its generated id, the tape
// file it was written to, the aggregate checksum, and any error that
// aborted the whole bin (spec.md §4.7, testable property: an aggregate's
// checksum covers header and body bytes of every member).
type BinResult struct {
	AggregationID string
	TarPath       string
	Checksum      uint32
	Members       []common.PathDetail
	Err           error
}

// Config carries the tape-staging directory archive writes into, one
// file per aggregation.
type Config struct {
	StagingDir     string
	TargetAggCount int
	TargetAggSize  int64
}

// Put bins filelist via aggregator.Aggregate and writes each bin to its
// own tar file under cfg.StagingDir, pre-flight checking every member's
// size against the object store before admitting it to the tar stream
// (mirrors S3ToTarfileStream._check_files_exist). When Aggregate rejects
// filelist (for example an empty one), Put returns a single BinResult
// carrying every member and a ReasonWriteError; empty bins are skipped.
func Put(ctx context.Context, cfg Config, store ObjectGetter, bucket string, filelist []common.PathDetail) []BinResult {
	bins, err := aggregator.Aggregate(filelist, cfg.TargetAggCount, cfg.TargetAggSize)
	if err != nil {
		return []BinResult{{Members: filelist, Err: common.NewReasonedError(common.ReasonWriteError, err)}}
	}

	results := make([]BinResult, 0, len(bins))
	for _, bin := range bins {
		if len(bin) == 0 {
			continue
		}
		results = append(results, putBin(ctx, cfg, store, bucket, bin))
	}
	return results
}

// putBin writes bin to a tar file, excluding and retrying around any
// per-member failure: on a Get/size/AddMember error for one member, that
// member is dropped from the bin, the aggregation id is regenerated over
// the members that remain, and the whole bin is rewritten from scratch
// (spec.md §4.6: "On any per-file error, remove the failing file from the
// bin, regenerate the bin-id, and retry"). A bin-level failure that isn't
// attributable to one member (the tar file itself can't be opened or
// closed) is not retried, since dropping a member would not fix it.
// Retries stop once every member has been excluded in turn; that
// "exhausted" bin fails the sub-record entirely.
func putBin(ctx context.Context, cfg Config, store ObjectGetter, bucket string, bin []common.PathDetail) BinResult {
	remaining := make([]common.PathDetail, len(bin))
	copy(remaining, bin)

	var lastErr error
	for len(remaining) > 0 {
		result, failedIdx, err := writeBinAttempt(ctx, store, bucket, cfg.StagingDir, remaining)
		if err == nil {
			return result
		}
		lastErr = err
		if failedIdx < 0 {
			break
		}
		remaining = append(remaining[:failedIdx:failedIdx], remaining[failedIdx+1:]...)
	}

	return BinResult{Members: bin, Err: common.NewReasonedError(common.ReasonRetriesExhausted, lastErr)}
}

// writeBinAttempt tries once to write members to a freshly named tar file.
// On success it returns the BinResult and a nil error. On a per-member
// failure it returns the index of the offending member (so the caller can
// exclude it and retry) and a non-nil error; on a bin-level failure not
// attributable to one member it returns a negative index.
func writeBinAttempt(ctx context.Context, store ObjectGetter, bucket, stagingDir string, members []common.PathDetail) (BinResult, int, error) {
	aggID := aggregator.AggregationID(members)
	tarPath := filepath.Join(stagingDir, aggID+".tar")

	local, err := tape.OpenLocalFile(tarPath)
	if err != nil {
		return BinResult{}, -1, common.NewReasonedError(common.ReasonWriteError, err)
	}
	defer local.Close()

	tw := tape.NewTarWriter(local)
	for i, member := range members {
		body, size, err := store.Get(ctx, bucket, objectKey(member))
		if err != nil {
			return BinResult{}, i, common.NewReasonedError(common.ReasonObjectMissing, err)
		}
		if member.Size != 0 && size != member.Size {
			body.Close()
			return BinResult{}, i, common.NewReasonedError(common.ReasonSizeMismatch,
				fmt.Errorf("member %s: expected %d bytes, object store reports %d", member.OriginalPath, member.Size, size))
		}

		addErr := tw.AddMember(objectKey(member), size, body)
		body.Close()
		if addErr != nil {
			return BinResult{}, i, common.NewReasonedError(common.ReasonWriteError, addErr)
		}
	}

	checksum, err := tw.Close()
	if err != nil {
		return BinResult{}, -1, common.NewReasonedError(common.ReasonWriteError, err)
	}

	return BinResult{AggregationID: aggID, TarPath: tarPath, Checksum: checksum, Members: members}, -1, nil
}

// MemberResult is one rehydrated member's outcome.
type MemberResult struct {
	Item     common.PathDetail
	Checksum uint32
	Err      error
}

// Get reads tarPath's tar stream member-by-member, recomputing each
// member's adler-32 checksum as it streams the bytes back into bucket via
// store.Put, mirroring the rehydration side of spec.md §4.7. When a
// filelist entry carries a non-zero stored checksum (set by transfer.Put
// before the member was archived), the recomputed checksum is compared
// against it; a mismatch is reported as checksum_mismatch rather than a
// silent success (spec.md §4.6, §7).
func Get(ctx context.Context, store ObjectPutter, bucket, tarPath string, filelist []common.PathDetail) []MemberResult {
	wanted := make(map[string]common.PathDetail, len(filelist))
	for _, item := range filelist {
		wanted[objectKey(item)] = item
	}

	f, err := os.Open(tarPath)
	if err != nil {
		return failAllMembers(filelist, err)
	}
	defer f.Close()

	tr := tar.NewReader(f)
	results := make([]MemberResult, 0, len(filelist))
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			results = append(results, MemberResult{Err: common.NewReasonedError(common.ReasonReadError, err)})
			break
		}
		item, ok := wanted[hdr.Name]
		if !ok {
			continue
		}

		checksummed := newChecksumReader(tr)
		if err := store.Put(ctx, bucket, hdr.Name, checksummed); err != nil {
			results = append(results, MemberResult{Item: item, Err: common.NewReasonedError(common.ReasonWriteError, err)})
			continue
		}

		sum := checksummed.Sum32()
		if item.Checksum != 0 && sum != item.Checksum {
			results = append(results, MemberResult{Item: item, Checksum: sum,
				Err: common.NewReasonedError(common.ReasonChecksumMismatch,
					fmt.Errorf("member %s: expected checksum %08x, recomputed %08x", hdr.Name, item.Checksum, sum))})
			continue
		}
		results = append(results, MemberResult{Item: item, Checksum: sum})
	}
	return results
}

func objectKey(item common.PathDetail) string {
	if item.ObjectName != "" {
		return item.ObjectName
	}
	return item.OriginalPath
}

func failAllMembers(filelist []common.PathDetail, err error) []MemberResult {
	results := make([]MemberResult, 0, len(filelist))
	for _, item := range filelist {
		results = append(results, MemberResult{Item: item, Err: common.NewReasonedError(common.ReasonReadError, err)})
	}
	return results
}

// checksumReader mirrors transfer.checksumReader; duplicated rather than
// exported across packages since each package's checksum is over a
// different unit of data (whole files here vs whole files there too, but
// archive/ reads from a tar.Reader, not an *os.File).
type checksumReader struct {
	r io.Reader
	h interface {
		Write(p []byte) (int, error)
		Sum32() uint32
	}
}

func newChecksumReader(r io.Reader) *checksumReader {
	return &checksumReader{r: r, h: adler32.New()}
}

func (c *checksumReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 {
		c.h.Write(p[:n])
	}
	return n, err
}

func (c *checksumReader) Sum32() uint32 { return c.h.Sum32() }
