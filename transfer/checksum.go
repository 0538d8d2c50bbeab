package transfer

import (
	"hash"
	"hash/adler32"
	"io"
)

// checksumReader wraps an io.Reader, folding every byte read through it
// into a running adler-32 sum, so PUT can compute a transfer checksum
// without a second pass over the file (spec.md §4.6). Mirrors the same
// incremental hash.Hash32 usage as tape.runningChecksum, but kept local
// since transfer/ checksums whole files, not tar-member streams.
type checksumReader struct {
	r io.Reader
	h hash.Hash32
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
