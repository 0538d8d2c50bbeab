// Package tape implements the positional tape-file interface and
// adler-32-checksummed tar writer of spec.md §6, grounded on the
// original's Adler32File wrapper and S3ToTarfileStream/Disk classes
// (translated from their minio-backed Python shape into an io.Reader/
// io.Writer-based Go interface), with streaming-copy style borrowed from
// the teacher's storage/s3aws.go upload/download helpers.
package tape

import "fmt"

// Status mirrors the original's (status, payload) return convention for
// positional file operations: zero means success.
type Status int

const (
	StatusOK Status = 0
	StatusError Status = 1
)

// PositionalFile is a tape resource addressed by (offset, size) rather
// than a plain stream, matching spec.md §6's read/write/seek/tell
// interface (XRootD-backed in production, a local file in tests).
type PositionalFile interface {
	Read(offset int64, size int) (Status, []byte)
	Write(b []byte, offset int64, size int) (Status, int)
	Seek(pos int64)
	Tell() int64
}

// ChecksummedFile wraps a PositionalFile, maintaining a running adler-32
// checksum over every byte read or written, mirroring the original's
// Adler32File. The checksum is only meaningful for sequential access —
// non-sequential reads/writes (as tar performs when seeking between
// headers) still update it, but the result is not a checksum of any
// single contiguous region.
type ChecksummedFile struct {
	f       PositionalFile
	pointer int64
	sum     *runningChecksum
	last    uint32
}

// NewChecksummedFile wraps f, seeding the checksum the way adler32 seeds
// an empty sum (1), matching the original's `checksum=1` default.
func NewChecksummedFile(f PositionalFile) *ChecksummedFile {
	return &ChecksummedFile{f: f, sum: newChecksum(), last: 1}
}

// Read reads size bytes from the current pointer, advancing it and
// folding the bytes into the running checksum.
func (c *ChecksummedFile) Read(size int) ([]byte, error) {
	status, result := c.f.Read(c.pointer, size)
	if status != StatusOK {
		return nil, fmt.Errorf("tape: read failed at offset %d", c.pointer)
	}
	c.last = c.sum.update(result)
	c.pointer += int64(size)
	return result, nil
}

// Write writes b at the current pointer, advancing it and folding the
// bytes into the running checksum before the underlying write, matching
// the original's "update the checksum before we actually do the
// writing" comment.
func (c *ChecksummedFile) Write(b []byte) (int, error) {
	c.last = c.sum.update(b)
	status, n := c.f.Write(b, c.pointer, len(b))
	if status != StatusOK {
		return 0, fmt.Errorf("tape: write failed at offset %d", c.pointer)
	}
	c.pointer += int64(n)
	return n, nil
}

// Seek repositions the pointer to an absolute offset.
func (c *ChecksummedFile) Seek(whence int64) { c.pointer = whence }

// Tell reports the current pointer position.
func (c *ChecksummedFile) Tell() int64 { return c.pointer }

// Checksum returns the running adler-32 value.
func (c *ChecksummedFile) Checksum() uint32 { return c.last }
