package tape

import (
	"archive/tar"
	"fmt"
	"io"
)

// TarWriter writes members sequentially into a ChecksummedFile, giving
// the aggregate adler-32 checksum of the whole tar stream once every
// member has been added, mirroring the original's per-aggregation tar
// write in S3ToTarfileStream.PUT (S3 -> Tarfile).
type TarWriter struct {
	cf  *ChecksummedFile
	tw  *tar.Writer
}

// NewTarWriter wraps f in a tar.Writer via a ChecksummedFile so every
// byte written — headers included — folds into the aggregate checksum.
func NewTarWriter(f PositionalFile) *TarWriter {
	cf := NewChecksummedFile(f)
	return &TarWriter{cf: cf, tw: tar.NewWriter(cf)}
}

// AddMember writes one file's header and content into the tar stream.
func (t *TarWriter) AddMember(name string, size int64, r io.Reader) error {
	hdr := &tar.Header{Name: name, Size: size, Mode: 0o644, Typeflag: tar.TypeReg}
	if err := t.tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("tape: write tar header for %s: %w", name, err)
	}
	if _, err := io.Copy(t.tw, r); err != nil {
		return fmt.Errorf("tape: write tar body for %s: %w", name, err)
	}
	return nil
}

// Close flushes the tar trailer and returns the aggregate adler-32
// checksum of the whole written stream.
func (t *TarWriter) Close() (uint32, error) {
	if err := t.tw.Close(); err != nil {
		return 0, fmt.Errorf("tape: close tar writer: %w", err)
	}
	return t.cf.Checksum(), nil
}
